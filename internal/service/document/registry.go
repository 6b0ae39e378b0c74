package document

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Registry guards against two runs of the same document. TryAcquire is an
// atomic check-and-insert; a false result means a run is already active.
type Registry interface {
	TryAcquire(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

// MemoryRegistry is the in-process Registry.
type MemoryRegistry struct {
	active sync.Map
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{}
}

func (r *MemoryRegistry) TryAcquire(ctx context.Context, id string) (bool, error) {
	_, loaded := r.active.LoadOrStore(id, struct{}{})
	return !loaded, nil
}

func (r *MemoryRegistry) Release(ctx context.Context, id string) error {
	r.active.Delete(id)
	return nil
}

// Active reports whether id is currently held.
func (r *MemoryRegistry) Active(id string) bool {
	_, ok := r.active.Load(id)
	return ok
}

// RedisRegistry shares the guard between worker processes. Keys expire after
// ttl so a crashed worker cannot hold a document forever.
type RedisRegistry struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisRegistry(client *redis.Client, ttl time.Duration) *RedisRegistry {
	return &RedisRegistry{
		client: client,
		prefix: "document:active:",
		ttl:    ttl,
	}
}

func (r *RedisRegistry) TryAcquire(ctx context.Context, id string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.prefix+id, time.Now().UTC().Format(time.RFC3339), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire document guard: %w", err)
	}
	return ok, nil
}

func (r *RedisRegistry) Release(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.prefix+id).Err(); err != nil {
		return fmt.Errorf("failed to release document guard: %w", err)
	}
	return nil
}
