package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Store persists carts between requests.
type Store interface {
	Get(ctx context.Context, kind Kind, userID string) (*Cart, error)
	Put(ctx context.Context, kind Kind, userID string, c *Cart) error
	Delete(ctx context.Context, kind Kind, userID string) error
}

type memoryKey struct {
	kind   Kind
	userID string
}

// MemoryStore keeps carts in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[memoryKey]*Cart
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[memoryKey]*Cart)}
}

func (s *MemoryStore) Get(_ context.Context, kind Kind, userID string) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[memoryKey{kind, userID}]
	if !ok {
		return New(), nil
	}
	return c.clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, kind Kind, userID string, c *Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.carts[memoryKey{kind, userID}] = c.clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, kind Kind, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, memoryKey{kind, userID})
	return nil
}

type RedisStoreConfig struct {
	// KeyPrefix defaults to "bakery:cart".
	KeyPrefix string
	// TTL is refreshed on every write. Defaults to 72 hours.
	TTL time.Duration
}

// RedisStore keeps each cart as a JSON value under {prefix}:{kind}:{user}.
type RedisStore struct {
	client *redis.Client
	config RedisStoreConfig
}

func NewRedisStore(client *redis.Client, config RedisStoreConfig) *RedisStore {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "bakery:cart"
	}
	if config.TTL <= 0 {
		config.TTL = 72 * time.Hour
	}
	return &RedisStore{client: client, config: config}
}

func (s *RedisStore) key(kind Kind, userID string) string {
	return fmt.Sprintf("%s:%s:%s", s.config.KeyPrefix, kind, userID)
}

func (s *RedisStore) Get(ctx context.Context, kind Kind, userID string) (*Cart, error) {
	data, err := s.client.Get(ctx, s.key(kind, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	c := New()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return c, nil
}

func (s *RedisStore) Put(ctx context.Context, kind Kind, userID string, c *Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.client.Set(ctx, s.key(kind, userID), data, s.config.TTL).Err(); err != nil {
		return fmt.Errorf("put cart: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, kind Kind, userID string) error {
	if err := s.client.Del(ctx, s.key(kind, userID)).Err(); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
