package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "vidx:cache:"

// Redis is a [Store] on a shared redis instance.
//
// Each namespace keeps a SET of its member keys so invalidation never issues a KEYS or SCAN over the keyspace.
// Redis' own TTL handles expiry.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps client. An empty prefix uses "vidx:cache:".
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(k Key) string {
	return r.prefix + k.String()
}

func (r *Redis) members(ns Namespace) string {
	return r.prefix + "ns:" + string(ns)
}

// Generation counters live under "gen:" and survive Clear.
func (r *Redis) genPrefix() string {
	return r.prefix + "gen:"
}

func (r *Redis) epochKey() string {
	return r.genPrefix() + "*epoch"
}

func (r *Redis) genKeys(ns Namespace) []string {
	return []string{r.epochKey(), r.genPrefix() + string(ns)}
}

func (r *Redis) generation(ctx context.Context, c redis.Cmdable, ns Namespace) (uint64, error) {
	vals, err := c.MGet(ctx, r.genKeys(ns)...).Result()
	if err != nil {
		return 0, fmt.Errorf("cache: generation %s: %w", ns, err)
	}
	var gen uint64
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cache: generation %s: %w", ns, err)
		}
		gen += n
	}
	return gen, nil
}

func (r *Redis) Get(ctx context.Context, k Key) ([]byte, bool, error) {
	payload, err := r.client.Get(ctx, r.key(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get %s: %w", k, err)
	}
	return payload, true, nil
}

func (r *Redis) Set(ctx context.Context, k Key, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(k), payload, ttl)
		pipe.SAdd(ctx, r.members(k.Namespace), r.key(k))
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache: set %s: %w", k, err)
	}
	return nil
}

func (r *Redis) Generation(ctx context.Context, ns Namespace) (uint64, error) {
	return r.generation(ctx, r.client, ns)
}

// SetIfGeneration watches the generation keys so an invalidation landing between the check and the write aborts it.
func (r *Redis) SetIfGeneration(ctx context.Context, k Key, payload []byte, ttl time.Duration, gen uint64) error {
	if ttl <= 0 {
		return nil
	}
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := r.generation(ctx, tx, k.Namespace)
		if err != nil {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key(k), payload, ttl)
			pipe.SAdd(ctx, r.members(k.Namespace), r.key(k))
			return nil
		})
		return err
	}, r.genKeys(k.Namespace)...)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cache: set %s: %w", k, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, k Key) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key(k))
		pipe.SRem(ctx, r.members(k.Namespace), r.key(k))
		return nil
	})
	return err
}

func (r *Redis) InvalidateNamespace(ctx context.Context, ns Namespace) error {
	keys, err := r.client.SMembers(ctx, r.members(ns)).Result()
	if err != nil {
		return fmt.Errorf("cache: list namespace %s: %w", ns, err)
	}
	keys = append(keys, r.members(ns))
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.Incr(ctx, r.genPrefix()+string(ns))
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache: invalidate namespace %s: %w", ns, err)
	}
	return nil
}

// Clear drops every cached key under the prefix and advances every namespace's generation.
func (r *Redis) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		if strings.HasPrefix(iter.Val(), r.genPrefix()) {
			continue
		}
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache: scan: %w", err)
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			pipe.Del(ctx, keys...)
		}
		pipe.Incr(ctx, r.epochKey())
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache: clear: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
