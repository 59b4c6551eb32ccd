package speech

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"careercoach/internal/errors"
)

const microphoneMessage = "Error accessing microphone. Please check your permissions."

// Recognizer is a continuous, interim-enabled speech-to-text source.
// onResult receives the full transcript so far, never a delta.
type Recognizer interface {
	Start(ctx context.Context, onResult func(transcript string)) error
	Stop() error
}

// PushRecognizer is fed by a recognizer running outside the process, such as
// the browser posting its result list or a terminal reading typed lines.
type PushRecognizer struct {
	mu          sync.Mutex
	unavailable string
	onResult    func(string)
}

var _ Recognizer = (*PushRecognizer)(nil)

func NewPushRecognizer() *PushRecognizer {
	return &PushRecognizer{}
}

// SetUnavailable makes the next Start fail with MICROPHONE_UNAVAILABLE.
// An empty reason marks the capability available again.
func (p *PushRecognizer) SetUnavailable(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unavailable = reason
}

func (p *PushRecognizer) Start(ctx context.Context, onResult func(transcript string)) error {
	if err := ctx.Err(); err != nil {
		return errors.NewMicrophoneError(microphoneMessage, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unavailable != "" {
		return errors.NewMicrophoneError(microphoneMessage, fmt.Errorf("microphone %s", p.unavailable)).
			WithContext("reason", p.unavailable)
	}
	p.onResult = onResult
	return nil
}

func (p *PushRecognizer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onResult = nil
	return nil
}

// Push delivers the recognizer's cumulative result list. The results are
// concatenated in order. It reports false when no capture is listening.
func (p *PushRecognizer) Push(results []string) bool {
	p.mu.Lock()
	onResult := p.onResult
	p.mu.Unlock()

	if onResult == nil {
		return false
	}
	onResult(strings.Join(results, ""))
	return true
}

// Listening reports whether a capture is currently attached
func (p *PushRecognizer) Listening() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onResult != nil
}
