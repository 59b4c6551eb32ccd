package session

import (
	"sync"
	"time"

	"careercoach/internal/errors"

	"github.com/google/uuid"
)

type entry[T any] struct {
	value    T
	lastSeen time.Time
}

// Registry keeps live sessions in memory, keyed by a random UUID.
// Sessions idle for longer than the TTL are evicted by a janitor goroutine.
type Registry[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
	ttl     time.Duration
	onEvict func(id string, value T)
	done    chan struct{}
	once    sync.Once
	logger  *errors.Logger
	now     func() time.Time
}

// NewRegistry starts a registry whose janitor runs every cleanupInterval.
// onEvict, when set, is called for every expired session outside the lock.
func NewRegistry[T any](ttl, cleanupInterval time.Duration, onEvict func(id string, value T), logger *errors.Logger) *Registry[T] {
	r := &Registry[T]{
		entries: make(map[string]*entry[T]),
		ttl:     ttl,
		onEvict: onEvict,
		done:    make(chan struct{}),
		logger:  logger,
		now:     time.Now,
	}
	if cleanupInterval > 0 {
		go r.cleanupRoutine(cleanupInterval)
	}
	return r
}

// Create registers the value built for a fresh id
func (r *Registry[T]) Create(build func(id string) T) (string, T) {
	id := uuid.NewString()
	value := build(id)

	r.mu.Lock()
	r.entries[id] = &entry[T]{value: value, lastSeen: r.now()}
	r.mu.Unlock()
	return id, value
}

// Get returns the session and refreshes its idle timer
func (r *Registry[T]) Get(id string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		var zero T
		return zero, false
	}
	e.lastSeen = r.now()
	return e.value, true
}

// Delete removes the session without calling onEvict
func (r *Registry[T]) Delete(id string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		var zero T
		return zero, false
	}
	delete(r.entries, id)
	return e.value, true
}

func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep evicts idle sessions and returns how many were removed
func (r *Registry[T]) Sweep() int {
	type evicted struct {
		id    string
		value T
	}

	r.mu.Lock()
	now := r.now()
	var expired []evicted
	for id, e := range r.entries {
		if now.Sub(e.lastSeen) > r.ttl {
			expired = append(expired, evicted{id, e.value})
			delete(r.entries, id)
		}
	}
	remaining := len(r.entries)
	r.mu.Unlock()

	if r.onEvict != nil {
		for _, e := range expired {
			r.onEvict(e.id, e.value)
		}
	}
	if r.logger != nil && len(expired) > 0 {
		r.logger.Debug("Session cleanup completed",
			"evicted", len(expired),
			"remaining", remaining)
	}
	return len(expired)
}

func (r *Registry[T]) cleanupRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Sweep()
		case <-r.done:
			return
		}
	}
}

// Close stops the janitor
func (r *Registry[T]) Close() {
	r.once.Do(func() { close(r.done) })
}
