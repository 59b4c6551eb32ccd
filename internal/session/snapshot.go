package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"careercoach/internal/config"
	"careercoach/internal/errors"

	"github.com/redis/go-redis/v9"
)

// Snapshot kinds
const (
	KindInterview     = "interview"
	KindQuestionnaire = "questionnaire"
)

// ErrSnapshotNotFound is returned by Load for unknown or expired snapshots
var ErrSnapshotNotFound = stderrors.New("snapshot not found")

// Snapshots persists JSON copies of session state so finished reports stay
// readable after the live session is gone.
type Snapshots interface {
	Save(ctx context.Context, kind, id string, value any) error
	Load(ctx context.Context, kind, id string, into any) error
	Delete(ctx context.Context, kind, id string) error
	Close() error
}

// NewSnapshots builds the store selected by session.backend
func NewSnapshots(cfg config.SessionConfig, logger *errors.Logger) (Snapshots, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemorySnapshots(cfg.SnapshotTTL), nil
	case "redis":
		store, err := NewRedisSnapshots(cfg.Redis, cfg.SnapshotTTL)
		if err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
				fmt.Sprintf("Failed to connect to redis at %s:%d", cfg.Redis.Host, cfg.Redis.Port), err)
		}
		logger.Info("Session snapshots stored in redis",
			"addr", fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			"db", cfg.Redis.DB,
			"ttl", cfg.SnapshotTTL.String())
		return store, nil
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unknown session backend: %s", cfg.Backend), nil)
	}
}

func snapshotKey(prefix, kind, id string) string {
	return prefix + kind + ":" + id
}

type memorySnapshot struct {
	data    []byte
	expires time.Time
}

// MemorySnapshots keeps snapshots in process memory. A zero TTL never expires.
// Expired entries are dropped when read and swept from Save at most once per TTL.
type MemorySnapshots struct {
	mu        sync.Mutex
	data      map[string]memorySnapshot
	ttl       time.Duration
	nextSweep time.Time
	now       func() time.Time
}

func NewMemorySnapshots(ttl time.Duration) *MemorySnapshots {
	return &MemorySnapshots{data: make(map[string]memorySnapshot), ttl: ttl, now: time.Now}
}

func (s memorySnapshot) expired(now time.Time) bool {
	return !s.expires.IsZero() && now.After(s.expires)
}

func (m *MemorySnapshots) Save(ctx context.Context, kind, id string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s snapshot: %w", kind, err)
	}
	now := m.now()
	snap := memorySnapshot{data: data}
	if m.ttl > 0 {
		snap.expires = now.Add(m.ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ttl > 0 && !now.Before(m.nextSweep) {
		m.sweepLocked(now)
		m.nextSweep = now.Add(m.ttl)
	}
	m.data[snapshotKey("", kind, id)] = snap
	return nil
}

func (m *MemorySnapshots) Load(ctx context.Context, kind, id string, into any) error {
	key := snapshotKey("", kind, id)
	m.mu.Lock()
	snap, ok := m.data[key]
	if ok && snap.expired(m.now()) {
		delete(m.data, key)
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		return ErrSnapshotNotFound
	}
	if err := json.Unmarshal(snap.data, into); err != nil {
		return fmt.Errorf("decode %s snapshot: %w", kind, err)
	}
	return nil
}

func (m *MemorySnapshots) Delete(ctx context.Context, kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, snapshotKey("", kind, id))
	return nil
}

// Sweep drops expired snapshots and returns how many were removed
func (m *MemorySnapshots) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(m.now())
}

func (m *MemorySnapshots) sweepLocked(now time.Time) int {
	removed := 0
	for key, snap := range m.data {
		if snap.expired(now) {
			delete(m.data, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of snapshots held, expired or not
func (m *MemorySnapshots) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func (m *MemorySnapshots) Close() error { return nil }

// RedisSnapshots stores snapshots as JSON strings with a TTL
type RedisSnapshots struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSnapshots connects and pings the server before returning
func NewRedisSnapshots(cfg config.RedisConfig, ttl time.Duration) (*RedisSnapshots, error) {
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 6379
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisSnapshots{client: client, prefix: cfg.KeyPrefix, ttl: ttl}, nil
}

func (r *RedisSnapshots) Save(ctx context.Context, kind, id string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s snapshot: %w", kind, err)
	}
	return r.client.Set(ctx, snapshotKey(r.prefix, kind, id), data, r.ttl).Err()
}

func (r *RedisSnapshots) Load(ctx context.Context, kind, id string, into any) error {
	data, err := r.client.Get(ctx, snapshotKey(r.prefix, kind, id)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return ErrSnapshotNotFound
	}
	if err != nil {
		return fmt.Errorf("load %s snapshot: %w", kind, err)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("decode %s snapshot: %w", kind, err)
	}
	return nil
}

func (r *RedisSnapshots) Delete(ctx context.Context, kind, id string) error {
	return r.client.Del(ctx, snapshotKey(r.prefix, kind, id)).Err()
}

func (r *RedisSnapshots) Close() error {
	return r.client.Close()
}
