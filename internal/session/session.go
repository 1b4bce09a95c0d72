// Package session keeps the identity bound to each issued session token, so
// impersonation survives across requests and can be revoked.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"bureau.org/internal/auth"
	"bureau.org/internal/config"
	"bureau.org/internal/domain"
)

// Store persists session identities by session id.
type Store interface {
	Load(ctx context.Context, sid string) (auth.SessionIdentity, error)
	Save(ctx context.Context, sid string, id auth.SessionIdentity, ttl time.Duration) error
	Delete(ctx context.Context, sid string) error
}

type memoryEntry struct {
	identity auth.SessionIdentity
	expires  time.Time
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStore) Load(_ context.Context, sid string) (auth.SessionIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[sid]
	if !ok {
		return auth.SessionIdentity{}, fmt.Errorf("%w: session", domain.ErrNotFound)
	}
	if !e.expires.IsZero() && m.now().After(e.expires) {
		delete(m.entries, sid)
		return auth.SessionIdentity{}, fmt.Errorf("%w: session expired", domain.ErrNotFound)
	}
	return e.identity, nil
}

func (m *MemoryStore) Save(_ context.Context, sid string, id auth.SessionIdentity, ttl time.Duration) error {
	if sid == "" {
		return errors.New("session id is required")
	}
	e := memoryEntry{identity: id}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[sid] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sid string) error {
	m.mu.Lock()
	delete(m.entries, sid)
	m.mu.Unlock()
	return nil
}

const keyPrefix = "bureau:session:"

// RedisStore keeps sessions in Redis as JSON with a TTL.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// OpenRedis connects to cfg.Addr and pings it.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis: %v", domain.ErrBackendUnavailable, err)
	}
	return client, nil
}

func (r *RedisStore) Load(ctx context.Context, sid string) (auth.SessionIdentity, error) {
	raw, err := r.client.Get(ctx, keyPrefix+sid).Bytes()
	if errors.Is(err, redis.Nil) {
		return auth.SessionIdentity{}, fmt.Errorf("%w: session", domain.ErrNotFound)
	}
	if err != nil {
		return auth.SessionIdentity{}, fmt.Errorf("%w: redis get: %v", domain.ErrBackendUnavailable, err)
	}
	var id auth.SessionIdentity
	if err := json.Unmarshal(raw, &id); err != nil {
		return auth.SessionIdentity{}, fmt.Errorf("decode session: %w", err)
	}
	return id, nil
}

func (r *RedisStore) Save(ctx context.Context, sid string, id auth.SessionIdentity, ttl time.Duration) error {
	if sid == "" {
		return errors.New("session id is required")
	}
	raw, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+sid, raw, ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %v", domain.ErrBackendUnavailable, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, sid string) error {
	if err := r.client.Del(ctx, keyPrefix+sid).Err(); err != nil {
		return fmt.Errorf("%w: redis del: %v", domain.ErrBackendUnavailable, err)
	}
	return nil
}
