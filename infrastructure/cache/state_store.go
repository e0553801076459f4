package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IStateStore is a small expiring key-value store used for PKCE verifiers
// keyed by OAuth state token. Entries self-expire; Consume removes on read
// so a state can only be redeemed once.
type IStateStore interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Consume(ctx context.Context, key string) (string, bool)
}

const stateKeyPrefix = "oauth:state:"

type redisStateStore struct {
	client *redis.Client
}

// NewRedisStateStore backs the state store with redis so multiple instances
// can share the verifier space.
func NewRedisStateStore(client *redis.Client) IStateStore {
	return &redisStateStore{client: client}
}

func (s *redisStateStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, stateKeyPrefix+key, value, ttl).Err()
}

func (s *redisStateStore) Consume(ctx context.Context, key string) (string, bool) {
	value, err := s.client.GetDel(ctx, stateKeyPrefix+key).Result()
	if err != nil {
		return "", false
	}
	return value, true
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

type memoryStateStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryStateStore is the single-process fallback used when redis is not
// configured, and in tests.
func NewMemoryStateStore() IStateStore {
	return &memoryStateStore{entries: map[string]memoryEntry{}}
}

func (s *memoryStateStore) Put(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Opportunistic eviction keeps the map bounded without a janitor goroutine.
	now := time.Now()
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
		}
	}
	s.entries[key] = memoryEntry{value: value, expiresAt: now.Add(ttl)}
	return nil
}

func (s *memoryStateStore) Consume(_ context.Context, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return "", false
	}
	delete(s.entries, key)
	if time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.value, true
}
