package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyStore holds short-lived auth keys: OAuth state and revoked refresh tokens.
type KeyStore interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Take returns the value and deletes the key.
	Take(ctx context.Context, key string) (string, bool, error)
	// Claim sets key only if absent and reports whether this call set it.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("key store set: %w", err)
	}
	return nil
}

func (s *RedisStore) Take(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.GetDel(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("key store getdel: %w", err)
	}
	return v, true, nil
}

func (s *RedisStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("key store setnx: %w", err)
	}
	return ok, nil
}

// MemoryStore is a process-local KeyStore for single-instance deployments.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value   string
	expires time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	s.entries[key] = memoryEntry{value: value, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Take(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok {
		return "", false, nil
	}
	delete(s.entries, key)
	return e.value, true, nil
}

func (s *MemoryStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.entries[key] = memoryEntry{value: "1", expires: s.now().Add(ttl)}
	s.sweep()
	return true, nil
}

// live must be called with mu held.
func (s *MemoryStore) live(key string) (memoryEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return e, false
	}
	if !s.now().Before(e.expires) {
		delete(s.entries, key)
		return e, false
	}
	return e, true
}

// sweep must be called with mu held.
func (s *MemoryStore) sweep() {
	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, k)
		}
	}
}
