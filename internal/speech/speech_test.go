package speech

import (
	"context"
	"sync"
	"testing"

	"careercoach/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type update struct {
	index      int
	transcript string
}

type updateRecorder struct {
	mu      sync.Mutex
	updates []update
}

func (r *updateRecorder) record(index int, transcript string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update{index, transcript})
}

func (r *updateRecorder) all() []update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]update(nil), r.updates...)
}

type countingRecognizer struct {
	*PushRecognizer
	starts int
	stops  int
}

func (c *countingRecognizer) Start(ctx context.Context, onResult func(string)) error {
	c.starts++
	return c.PushRecognizer.Start(ctx, onResult)
}

func (c *countingRecognizer) Stop() error {
	c.stops++
	return c.PushRecognizer.Stop()
}

func TestResultsOverwriteTranscript(t *testing.T) {
	recognizer := NewPushRecognizer()
	capture := NewCapture(recognizer)
	recorder := &updateRecorder{}

	require.NoError(t, capture.Start(context.Background(), 2, recorder.record))

	assert.True(t, recognizer.Push([]string{"I led"}))
	assert.True(t, recognizer.Push([]string{"I led", " a team"}))
	assert.True(t, recognizer.Push([]string{"I led", " a team", " of five"}))

	assert.Equal(t, "I led a team of five", capture.Transcript())
	assert.Equal(t, []update{
		{2, "I led"},
		{2, "I led a team"},
		{2, "I led a team of five"},
	}, recorder.all())

	index, transcript, ok, err := capture.Stop()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, index)
	assert.Equal(t, "I led a team of five", transcript)
}

func TestStartStopAreIdempotent(t *testing.T) {
	recognizer := &countingRecognizer{PushRecognizer: NewPushRecognizer()}
	capture := NewCapture(recognizer)

	_, _, ok, err := capture.Stop()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, recognizer.stops)

	require.NoError(t, capture.Start(context.Background(), 0, nil))
	require.NoError(t, capture.Start(context.Background(), 1, nil))
	assert.Equal(t, 1, recognizer.starts)
	assert.True(t, capture.Capturing())

	_, _, ok, err = capture.Stop()
	require.NoError(t, err)
	assert.True(t, ok)
	_, _, ok, err = capture.Stop()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, recognizer.stops)
	assert.False(t, capture.Capturing())
}

func TestCallbackBoundToStartIndex(t *testing.T) {
	recognizer := NewPushRecognizer()
	capture := NewCapture(recognizer)
	recorder := &updateRecorder{}

	require.NoError(t, capture.Start(context.Background(), 0, recorder.record))
	recognizer.Push([]string{"first"})
	_, _, _, err := capture.Stop()
	require.NoError(t, err)

	// results arriving after stop are dropped
	assert.False(t, recognizer.Push([]string{"late"}))

	require.NoError(t, capture.Start(context.Background(), 1, recorder.record))
	assert.Empty(t, capture.Transcript())
	recognizer.Push([]string{"second"})

	assert.Equal(t, []update{{0, "first"}, {1, "second"}}, recorder.all())
}

func TestMicrophoneUnavailable(t *testing.T) {
	recognizer := NewPushRecognizer()
	recognizer.SetUnavailable("denied")
	capture := NewCapture(recognizer)

	err := capture.Start(context.Background(), 0, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeMicrophoneUnavailable))
	assert.Equal(t, "Error accessing microphone. Please check your permissions.", errors.UserMessage(err, ""))
	assert.False(t, capture.Capturing())
	assert.False(t, recognizer.Listening())

	recognizer.SetUnavailable("")
	require.NoError(t, capture.Start(context.Background(), 0, nil))
	assert.True(t, recognizer.Listening())
}

func TestStartWithCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewCapture(NewPushRecognizer()).Start(ctx, 0, nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeMicrophoneUnavailable))
}
