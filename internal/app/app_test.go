package app

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/vidx/internal/api"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/services"
	"github.com/desertthunder/vidx/internal/shared"
	vtesting "github.com/desertthunder/vidx/internal/testing"
)

func testConfig(baseURL string) *shared.Config {
	cfg := shared.DefaultConfig()
	cfg.API.BaseURL = baseURL
	cfg.API.RateLimit = 0
	cfg.Database.Path = ":memory:"
	cfg.Cache.Backend = "memory"
	return cfg
}

func newContainer(t *testing.T, b *vtesting.Backend, opts Options) *Container {
	t.Helper()
	if opts.Config == nil {
		opts.Config = testConfig(b.URL())
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewDiscardLogger()
	}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("failed to build container: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNew(t *testing.T) {
	t.Run("Requires Config", func(t *testing.T) {
		if _, err := New(Options{}); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
		cfg := testConfig("")
		if _, err := New(Options{Config: cfg}); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig for empty base url, got %v", err)
		}
	})

	t.Run("Unknown Cache Backend", func(t *testing.T) {
		cfg := testConfig("http://127.0.0.1:1")
		cfg.Cache.Backend = "memcached"
		if _, err := New(Options{Config: cfg, Logger: shared.NewDiscardLogger()}); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestSession(t *testing.T) {
	ctx := context.Background()

	t.Run("Login Persists Across Containers", func(t *testing.T) {
		b := vtesting.NewBackend(t)
		b.SeedUser("hana", "hana@example.com", "Secret#123", true)
		first := newContainer(t, b, Options{})

		if err := first.Auth.Login(ctx, models.Credentials{Login: "hana", Password: "Secret#123"}); err != nil {
			t.Fatalf("login failed: %v", err)
		}

		second := newContainer(t, b, Options{Config: first.Config, DB: first.DB})
		if err := second.Start(ctx); err != nil {
			t.Fatalf("restore failed: %v", err)
		}
		s := second.Auth.Session()
		if !s.IsAuthenticated || s.User.Username != "hana" {
			t.Errorf("expected restored session, got %+v", s)
		}
	})

	t.Run("Start Without Tokens", func(t *testing.T) {
		b := vtesting.NewBackend(t)
		c := newContainer(t, b, Options{})
		if err := c.Start(ctx); err != nil {
			t.Fatal(err)
		}
		if c.Auth.IsAuthenticated() {
			t.Error("expected signed out")
		}
		if b.TotalCalls() != 0 {
			t.Errorf("expected no requests, got %d", b.TotalCalls())
		}
	})

	t.Run("Failed Refresh Ends Session", func(t *testing.T) {
		b := vtesting.NewBackend(t)
		b.SeedUser("ivo", "ivo@example.com", "Secret#123", true)
		c := newContainer(t, b, Options{})
		if err := c.Auth.Login(ctx, models.Credentials{Login: "ivo", Password: "Secret#123"}); err != nil {
			t.Fatal(err)
		}

		b.ExpireAccessTokens()
		b.RevokeRefreshTokens()

		_, err := c.VideoService.History(ctx, models.ListParams{})
		if !api.IsKind(err, api.KindAuth) || !errors.Is(err, shared.ErrSessionExpired) {
			t.Fatalf("expected expired session error, got %v", err)
		}

		st := c.Auth.Snapshot()
		if st.Session.IsAuthenticated || !st.Expired {
			t.Errorf("expected expired sign-out, got %+v", st)
		}
		if tok, _ := c.Tokens.Load(ctx); tok != nil {
			t.Error("expected persisted tokens to be cleared")
		}
		if saved, _ := c.Sessions.Load(ctx); saved.IsAuthenticated {
			t.Error("expected persisted session to be cleared")
		}
	})
}

func TestListen(t *testing.T) {
	b := vtesting.NewBackend(t)
	b.SeedUser("jun", "jun@example.com", "Secret#123", true)
	c := newContainer(t, b, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Auth.Login(ctx, models.Credentials{Login: "jun", Password: "Secret#123"}); err != nil {
		t.Fatal(err)
	}
	go c.Listen(ctx)
	waitFor(t, "listener", func() bool { return b.Listeners() == 1 })

	task, err := c.Uploads.Start(ctx, services.VideoUpload{
		Metadata: models.VideoMetadata{Title: "Clip"},
		FileName: "clip.webm",
		Size:     4,
		Open:     func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader("data")), nil },
	})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if task.Status != models.UploadProcessing {
		t.Fatalf("expected processing, got %s", task.Status)
	}

	b.FailProcessing(task.VideoID, "unsupported codec")
	waitFor(t, "failure event", func() bool {
		got, _ := c.Uploads.Task(task.ID)
		return got.Status == models.UploadError && got.Error == "unsupported codec"
	})
}
