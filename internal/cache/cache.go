package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/desertthunder/vidx/internal/shared"
)

// Store is a TTL cache of encoded response payloads.
type Store interface {
	// Get returns the payload for k. Expired entries report ok == false.
	Get(ctx context.Context, k Key) (payload []byte, ok bool, err error)
	// Set stores payload for ttl. A non-positive ttl is a no-op.
	Set(ctx context.Context, k Key, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, k Key) error
	// InvalidateNamespace drops every entry of ns.
	InvalidateNamespace(ctx context.Context, ns Namespace) error
	Clear(ctx context.Context) error
	// Generation reports the invalidation counter of ns. InvalidateNamespace(ns) and Clear advance it.
	Generation(ctx context.Context, ns Namespace) (uint64, error)
	// SetIfGeneration is Set, skipped when k's namespace has moved past gen.
	SetIfGeneration(ctx context.Context, k Key, payload []byte, ttl time.Duration, gen uint64) error
}

// New builds the backend selected by cfg.Backend ("memory" or "redis").
func New(cfg shared.CacheConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		client, err := NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return NewRedis(client, ""), nil
	default:
		return nil, fmt.Errorf("%w: unknown cache backend %q", shared.ErrInvalidConfig, cfg.Backend)
	}
}

// Fetch is a typed read-through: on a hit it decodes the cached payload, on a miss it calls load
// and stores the encoded result for ttl.
//
// A result is not stored if k's namespace was invalidated while load ran.
// Cache failures never fail the read; a broken backend degrades to calling load every time.
func Fetch[T any](ctx context.Context, s Store, k Key, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var (
		gen    uint64
		genErr error
	)
	if s != nil {
		if payload, ok, err := s.Get(ctx, k); err == nil && ok {
			var v T
			if err := json.Unmarshal(payload, &v); err == nil {
				return v, nil
			}
		}
		gen, genErr = s.Generation(ctx, k.Namespace)
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}

	if s != nil && genErr == nil {
		if payload, err := json.Marshal(v); err == nil {
			_ = s.SetIfGeneration(ctx, k, payload, ttl, gen)
		}
	}
	return v, nil
}

// NewRedisClient connects to addr and pings it before returning.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}
