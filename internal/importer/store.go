package importer

// store.go persists import sessions between requests.
//
// MemoryStore keeps live *core.Session values in a map, the same way the
// upload service tracked active uploads. RedisStore keeps JSON snapshots so
// several server instances can share sessions; Redis expires idle keys on
// its own.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/fieldmap/internal/core"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when a session ID is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

// Store loads and saves sessions by ID.
//
// Callers must Put a session after every successful mutation; stores that
// serialize sessions do not see in-place changes.
type Store interface {
	Get(ctx context.Context, id string) (*core.Session, error)
	Put(ctx context.Context, s *core.Session) error
	Delete(ctx context.Context, id string) error
}

// Sweeper is implemented by stores that need idle sessions removed
// periodically.
type Sweeper interface {
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

// idleStore is a Sweeper that can remove sessions one at a time, so the
// service can hold each session's lock while it goes.
type idleStore interface {
	IdleSince(cutoff time.Time) []string
	RemoveIdle(id string, cutoff time.Time) bool
}

// MemoryStore is a process-local Store.
//
// Sessions are live pointers owned by whoever holds the session's lock, so
// the store never reads them after Put: idle checks use the update time
// recorded at Put.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	sess    *core.Session
	touched time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*core.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e.sess, nil
}

func (m *MemoryStore) Put(_ context.Context, s *core.Session) error {
	entry := memoryEntry{sess: s, touched: s.UpdatedAt()}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.ID()] = entry
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// IdleSince lists sessions last stored before cutoff.
func (m *MemoryStore) IdleSince(cutoff time.Time) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, e := range m.sessions {
		if e.touched.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

// RemoveIdle deletes id if it is still idle at cutoff.
func (m *MemoryStore) RemoveIdle(id string, cutoff time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok || !e.touched.Before(cutoff) {
		return false
	}
	delete(m.sessions, id)
	return true
}

// Sweep removes sessions last stored before cutoff. It does not wait for
// in-flight updates; Service.Sweep does.
func (m *MemoryStore) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	removed := 0
	for _, id := range m.IdleSince(cutoff) {
		if m.RemoveIdle(id, cutoff) {
			removed++
		}
	}
	return removed, nil
}

// redisKeyPrefix namespaces session keys.
const redisKeyPrefix = "fieldmap:session:"

// RedisStore keeps session snapshots in Redis with an idle TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to the Redis server at url (redis://host:port/db)
// and verifies the connection.
func NewRedisStore(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisStoreFromClient(client, ttl), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultIdleTimeout
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, id string) (*core.Session, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	s, err := core.RestoreSession(data)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	return s, nil
}

func (r *RedisStore) Put(ctx context.Context, s *core.Session) error {
	data, err := s.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID(), err)
	}
	if err := r.client.SetEx(ctx, redisKeyPrefix+s.ID(), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", s.ID(), err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// Close closes the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
