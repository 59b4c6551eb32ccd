package session

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"careercoach/internal/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = errors.NewLoggerWithWriter(io.Discard, slog.LevelDebug)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRegistryCreateGetDelete(t *testing.T) {
	r := NewRegistry[string](time.Minute, 0, nil, testLogger)
	defer r.Close()

	id, value := r.Create(func(id string) string { return "session " + id })
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, "session "+id, value)

	got, ok := r.Get(id)
	assert.True(t, ok)
	assert.Equal(t, value, got)
	assert.Equal(t, 1, r.Len())

	_, ok = r.Get("unknown")
	assert.False(t, ok)

	_, ok = r.Delete(id)
	assert.True(t, ok)
	_, ok = r.Delete(id)
	assert.False(t, ok)
	assert.Zero(t, r.Len())
}

func TestRegistryIdsAreUnique(t *testing.T) {
	r := NewRegistry[int](time.Minute, 0, nil, testLogger)
	defer r.Close()

	seen := make(map[string]bool)
	for i := range 50 {
		id, _ := r.Create(func(string) int { return i })
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestRegistrySweepEvictsIdleSessions(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	var evicted []string
	r := NewRegistry[string](10*time.Minute, 0, func(id, value string) {
		evicted = append(evicted, value)
	}, testLogger)
	r.now = clock.Now
	defer r.Close()

	idle, _ := r.Create(func(string) string { return "idle" })
	active, _ := r.Create(func(string) string { return "active" })

	clock.Advance(6 * time.Minute)
	_, ok := r.Get(active)
	require.True(t, ok)

	clock.Advance(6 * time.Minute)
	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, []string{"idle"}, evicted)

	_, ok = r.Get(idle)
	assert.False(t, ok)
	_, ok = r.Get(active)
	assert.True(t, ok)
}

func TestRegistryCloseIsIdempotent(t *testing.T) {
	r := NewRegistry[string](time.Minute, time.Millisecond, nil, testLogger)
	r.Close()
	r.Close()
}
