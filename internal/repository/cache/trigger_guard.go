package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dafibh/condo/condo-backend/internal/config"
	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/redis/go-redis/v9"
)

const triggerKeyPrefix = "condo:trigger:"

// RedisTriggerGuard implements domain.TriggerGuard with SETNX, so duplicate
// deliveries are dropped across every API instance
type RedisTriggerGuard struct {
	client *redis.Client
}

// NewRedisTriggerGuard connects to Redis and verifies the connection
func NewRedisTriggerGuard(ctx context.Context, cfg config.RedisConfig) (*RedisTriggerGuard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisTriggerGuard{client: client}, nil
}

// NewRedisTriggerGuardWithClient wraps an existing client
func NewRedisTriggerGuardWithClient(client *redis.Client) *RedisTriggerGuard {
	return &RedisTriggerGuard{client: client}
}

// Acquire sets key if it does not exist; true means this caller owns the trigger
func (g *RedisTriggerGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, triggerKeyPrefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: trigger guard: %v", domain.ErrStoreUnavailable, err)
	}
	return ok, nil
}

// Close closes the Redis client
func (g *RedisTriggerGuard) Close() error {
	return g.client.Close()
}

// MemoryTriggerGuard implements domain.TriggerGuard for a single instance
type MemoryTriggerGuard struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewMemoryTriggerGuard creates an in-memory guard
func NewMemoryTriggerGuard() *MemoryTriggerGuard {
	return &MemoryTriggerGuard{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Acquire claims key until ttl elapses. Expired keys are pruned on each call.
func (g *MemoryTriggerGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for k, exp := range g.expires {
		if !now.Before(exp) {
			delete(g.expires, k)
		}
	}

	if _, held := g.expires[key]; held {
		return false, nil
	}
	g.expires[key] = now.Add(ttl)
	return true, nil
}

var (
	_ domain.TriggerGuard = (*RedisTriggerGuard)(nil)
	_ domain.TriggerGuard = (*MemoryTriggerGuard)(nil)
)
