package speech

import (
	"context"
	"sync"
)

// UpdateFunc receives the transcript for the question index that was active
// when capture started.
type UpdateFunc func(index int, transcript string)

// Capture drives a Recognizer for one question at a time. Start while
// capturing and Stop while idle are no-ops.
type Capture struct {
	mu         sync.Mutex
	recognizer Recognizer
	capturing  bool
	index      int
	transcript string
	onUpdate   UpdateFunc
	// epoch invalidates callbacks from an earlier capture
	epoch uint64
}

func NewCapture(recognizer Recognizer) *Capture {
	return &Capture{recognizer: recognizer}
}

// Start begins capturing for index. The recognizer's callback stays bound to
// that index even if the caller moves on.
func (c *Capture) Start(ctx context.Context, index int, onUpdate UpdateFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capturing {
		return nil
	}

	c.epoch++
	epoch := c.epoch
	if err := c.recognizer.Start(ctx, func(transcript string) {
		c.handleResult(epoch, transcript)
	}); err != nil {
		return err
	}

	c.capturing = true
	c.index = index
	c.transcript = ""
	c.onUpdate = onUpdate
	return nil
}

// handleResult overwrites the transcript. The update callback runs without
// holding the capture lock.
func (c *Capture) handleResult(epoch uint64, transcript string) {
	c.mu.Lock()
	if !c.capturing || epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.transcript = transcript
	index, onUpdate := c.index, c.onUpdate
	c.mu.Unlock()

	if onUpdate != nil {
		onUpdate(index, transcript)
	}
}

// Stop ends capture and returns the final transcript and the index it belongs to.
// Stopping while idle returns ok=false.
func (c *Capture) Stop() (index int, transcript string, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.capturing {
		return 0, "", false, nil
	}

	c.capturing = false
	c.epoch++
	c.onUpdate = nil
	err = c.recognizer.Stop()
	return c.index, c.transcript, true, err
}

// Capturing reports whether a capture is active
func (c *Capture) Capturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capturing
}

// Transcript returns the latest transcript of the active or last capture
func (c *Capture) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript
}
