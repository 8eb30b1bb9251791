package cache

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/desertthunder/vidx/internal/shared"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newRedisStore(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client, "test:"), mr
}

func TestKey(t *testing.T) {
	t.Run("Deterministic Params Hash", func(t *testing.T) {
		a := NewKey(Videos, "list", map[string]any{"page": 1, "sort": "new"})
		b := NewKey(Videos, "list", map[string]any{"sort": "new", "page": 1})
		if a != b {
			t.Errorf("expected equal keys, got %v and %v", a, b)
		}

		c := NewKey(Videos, "list", map[string]any{"page": 2, "sort": "new"})
		if a == c {
			t.Error("expected different params to produce different keys")
		}
	})

	t.Run("URL Values Ignore Insertion Order", func(t *testing.T) {
		v1 := url.Values{}
		v1.Set("q", "go")
		v1.Set("page", "1")
		v2 := url.Values{}
		v2.Set("page", "1")
		v2.Set("q", "go")

		if HashParams(v1) != HashParams(v2) {
			t.Error("expected identical hashes for equal url.Values")
		}
	})

	t.Run("String", func(t *testing.T) {
		if got := NewKey(Playlists, "p1", nil).String(); got != "playlists:p1" {
			t.Errorf("unexpected key string %q", got)
		}
	})
}

func TestTTLs(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		ttl := DefaultTTLs()
		if ttl.For(Detail) != 5*time.Minute || ttl.For(List) != 2*time.Minute {
			t.Errorf("unexpected detail/list TTLs: %+v", ttl)
		}
		if ttl.For(Static) != time.Hour || ttl.For(Volatile) != time.Minute || ttl.For(Search) != time.Minute {
			t.Errorf("unexpected static/volatile/search TTLs: %+v", ttl)
		}
	})

	t.Run("Config Overrides", func(t *testing.T) {
		ttl := TTLsFromConfig(shared.CacheConfig{DetailTTL: "10s", ListTTL: "bogus"})
		if ttl.Detail != 10*time.Second {
			t.Errorf("expected detail override, got %v", ttl.Detail)
		}
		if ttl.List != 2*time.Minute {
			t.Errorf("expected invalid list override to fall back, got %v", ttl.List)
		}
	})
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	k := NewKey(Videos, "v1", nil)

	t.Run("Round Trip Before Expiry", func(t *testing.T) {
		m := NewMemory().WithClock(clock.Now)
		payload := []byte(`{"id":"v1","title":"Intro"}`)

		if err := m.Set(ctx, k, payload, time.Minute); err != nil {
			t.Fatalf("set: %v", err)
		}
		clock.Advance(59 * time.Second)

		got, ok, err := m.Get(ctx, k)
		if err != nil || !ok {
			t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("expected %s, got %s", payload, got)
		}
	})

	t.Run("Lazy Expiry", func(t *testing.T) {
		m := NewMemory().WithClock(clock.Now)
		_ = m.Set(ctx, k, []byte("x"), time.Minute)

		clock.Advance(time.Minute)
		if m.Len() != 1 {
			t.Fatalf("expected entry to be physically present before read, got %d", m.Len())
		}

		if _, ok, _ := m.Get(ctx, k); ok {
			t.Error("expected miss once TTL elapsed")
		}
		if m.Len() != 0 {
			t.Errorf("expected expired entry to be dropped on read, got %d", m.Len())
		}
	})

	t.Run("Payload Is Copied", func(t *testing.T) {
		m := NewMemory()
		payload := []byte("abc")
		_ = m.Set(ctx, k, payload, time.Minute)
		payload[0] = 'z'

		got, _, _ := m.Get(ctx, k)
		if string(got) != "abc" {
			t.Errorf("expected stored copy to be unaffected, got %s", got)
		}
	})

	t.Run("Invalidate Namespace", func(t *testing.T) {
		m := NewMemory()
		_ = m.Set(ctx, NewKey(Videos, "list", url.Values{"page": {"1"}}), []byte("l"), time.Minute)
		_ = m.Set(ctx, NewKey(Videos, "v1", nil), []byte("d"), time.Minute)
		pk := NewKey(Playlists, "p1", nil)
		_ = m.Set(ctx, pk, []byte("p"), time.Minute)

		if err := m.InvalidateNamespace(ctx, Videos); err != nil {
			t.Fatalf("invalidate: %v", err)
		}

		if _, ok, _ := m.Get(ctx, NewKey(Videos, "v1", nil)); ok {
			t.Error("expected videos entries to be gone")
		}
		if _, ok, _ := m.Get(ctx, pk); !ok {
			t.Error("expected playlists entries to survive")
		}
	})

	t.Run("Non Positive TTL Is Not Stored", func(t *testing.T) {
		m := NewMemory()
		_ = m.Set(ctx, k, []byte("x"), 0)
		if m.Len() != 0 {
			t.Error("expected zero TTL to skip storage")
		}
	})
}

func TestRedis(t *testing.T) {
	ctx := context.Background()

	t.Run("Round Trip And Expiry", func(t *testing.T) {
		store, mr := newRedisStore(t)
		k := NewKey(Videos, "v1", nil)
		payload := []byte(`{"id":"v1"}`)

		if err := store.Set(ctx, k, payload, time.Minute); err != nil {
			t.Fatalf("set: %v", err)
		}

		got, ok, err := store.Get(ctx, k)
		if err != nil || !ok || !bytes.Equal(got, payload) {
			t.Fatalf("expected hit with %s, got %s ok=%v err=%v", payload, got, ok, err)
		}

		mr.FastForward(time.Minute + time.Second)
		if _, ok, _ := store.Get(ctx, k); ok {
			t.Error("expected miss after TTL")
		}
	})

	t.Run("Invalidate Namespace", func(t *testing.T) {
		store, mr := newRedisStore(t)
		_ = store.Set(ctx, NewKey(Playlists, "list", nil), []byte("a"), time.Minute)
		_ = store.Set(ctx, NewKey(Playlists, "p1", nil), []byte("b"), time.Minute)
		_ = store.Set(ctx, NewKey(Videos, "v1", nil), []byte("c"), time.Minute)

		if err := store.InvalidateNamespace(ctx, Playlists); err != nil {
			t.Fatalf("invalidate: %v", err)
		}

		if mr.Exists("test:playlists:p1") || mr.Exists("test:ns:playlists") {
			t.Error("expected playlists keys and member set to be deleted")
		}
		if !mr.Exists("test:videos:v1") {
			t.Error("expected videos key to survive")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		store, mr := newRedisStore(t)
		_ = store.Set(ctx, NewKey(Videos, "v1", nil), []byte("c"), time.Minute)
		mr.Set("other:key", "keep")

		if err := store.Clear(ctx); err != nil {
			t.Fatalf("clear: %v", err)
		}
		if mr.Exists("test:videos:v1") {
			t.Error("expected cache key to be cleared")
		}
		if !mr.Exists("other:key") {
			t.Error("expected keys outside the prefix to survive")
		}
	})
}

func TestFetch(t *testing.T) {
	ctx := context.Background()
	type item struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}

	t.Run("Hit Skips Loader", func(t *testing.T) {
		m := NewMemory()
		k := NewKey(Videos, "v1", nil)
		calls := 0
		load := func(context.Context) (item, error) {
			calls++
			return item{ID: "v1", Title: "Intro"}, nil
		}

		for range 3 {
			got, err := Fetch(ctx, m, k, time.Minute, load)
			if err != nil {
				t.Fatalf("fetch: %v", err)
			}
			if got.Title != "Intro" {
				t.Errorf("unexpected item %+v", got)
			}
		}
		if calls != 1 {
			t.Errorf("expected loader called once, got %d", calls)
		}
	})

	t.Run("Errors Are Not Cached", func(t *testing.T) {
		m := NewMemory()
		k := NewKey(Videos, "v1", nil)
		boom := errors.New("boom")

		if _, err := Fetch(ctx, m, k, time.Minute, func(context.Context) (item, error) { return item{}, boom }); !errors.Is(err, boom) {
			t.Fatalf("expected loader error, got %v", err)
		}
		if m.Len() != 0 {
			t.Error("expected failed load to leave cache empty")
		}
	})

	t.Run("Invalidation During Load Is Not Stored", func(t *testing.T) {
		redisStore, _ := newRedisStore(t)
		backends := []struct {
			name  string
			store Store
		}{
			{"Memory", NewMemory()},
			{"Redis", redisStore},
		}
		invalidations := []struct {
			name string
			run  func(Store) error
		}{
			{"Namespace", func(s Store) error { return s.InvalidateNamespace(ctx, Videos) }},
			{"Clear", func(s Store) error { return s.Clear(ctx) }},
		}

		for _, b := range backends {
			for _, inv := range invalidations {
				t.Run(b.name+" "+inv.name, func(t *testing.T) {
					k := NewKey(Videos, "v-"+inv.name, nil)
					stale := func(context.Context) (item, error) {
						if err := inv.run(b.store); err != nil {
							t.Fatalf("invalidate: %v", err)
						}
						return item{ID: "v1", Title: "Old"}, nil
					}
					if _, err := Fetch(ctx, b.store, k, time.Minute, stale); err != nil {
						t.Fatalf("fetch: %v", err)
					}
					if _, ok, _ := b.store.Get(ctx, k); ok {
						t.Fatal("expected result loaded across an invalidation to be dropped")
					}

					fresh := func(context.Context) (item, error) { return item{ID: "v1", Title: "New"}, nil }
					if _, err := Fetch(ctx, b.store, k, time.Minute, fresh); err != nil {
						t.Fatalf("fetch: %v", err)
					}
					if _, ok, _ := b.store.Get(ctx, k); !ok {
						t.Error("expected the next load to be cached")
					}
				})
			}
		}
	})

	t.Run("Nil Store", func(t *testing.T) {
		got, err := Fetch(ctx, nil, Key{}, time.Minute, func(context.Context) (item, error) { return item{ID: "x"}, nil })
		if err != nil || got.ID != "x" {
			t.Errorf("expected pass-through, got %+v %v", got, err)
		}
	})
}

func TestNew(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		s, err := New(shared.CacheConfig{Backend: "memory"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := s.(*Memory); !ok {
			t.Errorf("expected *Memory, got %T", s)
		}
	})

	t.Run("Redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		s, err := New(shared.CacheConfig{Backend: "redis", RedisAddr: mr.Addr()})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := s.(*Redis); !ok {
			t.Errorf("expected *Redis, got %T", s)
		}
	})

	t.Run("Unknown Backend", func(t *testing.T) {
		if _, err := New(shared.CacheConfig{Backend: "memcached"}); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
