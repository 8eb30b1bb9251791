package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/vidx/internal/api"
	"github.com/desertthunder/vidx/internal/cache"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/services"
	"github.com/desertthunder/vidx/internal/shared"
	"github.com/desertthunder/vidx/internal/stores"
	vtesting "github.com/desertthunder/vidx/internal/testing"
)

type tracker struct {
	mu        sync.Mutex
	confirmed []string
	failed    map[string]string
}

func (t *tracker) Confirm(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id == "unknown" {
		return shared.ErrUploadNotFound
	}
	t.confirmed = append(t.confirmed, id)
	return nil
}

func (t *tracker) Fail(id, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failed == nil {
		t.failed = map[string]string{}
	}
	t.failed[id] = reason
	return nil
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

func TestNewListener(t *testing.T) {
	tc := []struct {
		base    string
		want    string
		wantErr bool
	}{
		{"http://localhost:4000/api", "ws://localhost:4000/api/events", false},
		{"https://example.com/api/", "wss://example.com/api/events", false},
		{"ftp://example.com", "", true},
	}
	for _, c := range tc {
		t.Run(c.base, func(t *testing.T) {
			l, err := NewListener(c.base, nil, nil)
			if c.wantErr {
				if !errors.Is(err, shared.ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if l.url != c.want {
				t.Errorf("expected %s, got %s", c.want, l.url)
			}
		})
	}
}

func TestUploadHandler(t *testing.T) {
	tr := &tracker{}
	h := UploadHandler(tr, nil)

	payload := func(v any) json.RawMessage {
		data, _ := json.Marshal(v)
		return data
	}
	h(Event{Type: EventVideoProcessed, Payload: payload(VideoPayload{VideoID: "v1"})})
	h(Event{Type: EventVideoFailed, Payload: payload(VideoPayload{VideoID: "v2", Error: "bad codec"})})
	h(Event{Type: EventVideoProcessed, Payload: payload(VideoPayload{VideoID: "unknown"})})
	h(Event{Type: "comment.created", Payload: payload(map[string]string{"id": "c1"})})
	h(Event{Type: EventVideoProcessed, Payload: json.RawMessage(`"oops"`)})

	if len(tr.confirmed) != 1 || tr.confirmed[0] != "v1" {
		t.Errorf("expected v1 confirmed, got %v", tr.confirmed)
	}
	if tr.failed["v2"] != "bad codec" {
		t.Errorf("expected v2 failed, got %v", tr.failed)
	}
}

func TestListener(t *testing.T) {
	t.Run("Processing Event Completes Upload", func(t *testing.T) {
		b := vtesting.NewBackend(t)
		u := b.SeedUser("erin", "erin@example.com", "Secret#123", true)
		access, refresh := b.IssueTokens(u.ID)
		client := api.NewClient(api.Options{BaseURL: b.URL(), Tokens: api.NewMemoryTokens(api.NewToken(access, refresh))})
		videos := services.NewVideoService(client, nil, cache.TTLs{}, services.UploadRules{}, nil)
		uploads := stores.NewUploadStore(videos, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		l, err := NewListener(b.URL(), client.TokenSource(ctx), nil)
		if err != nil {
			t.Fatal(err)
		}
		done := make(chan error, 1)
		go func() { done <- l.Run(ctx, UploadHandler(uploads, nil)) }()
		waitFor(t, "listener to connect", func() bool { return b.Listeners() == 1 })

		task, err := uploads.Start(ctx, services.VideoUpload{
			Metadata: models.VideoMetadata{Title: "Live"},
			FileName: "live.mp4",
			Size:     8,
			Open:     func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader("12345678")), nil },
		})
		if err != nil {
			t.Fatal(err)
		}
		b.CompleteProcessing(task.VideoID)
		waitFor(t, "upload to complete", func() bool {
			got, _ := uploads.Task(task.ID)
			return got.Status == models.UploadCompleted
		})

		cancel()
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("Reconnects After Drop", func(t *testing.T) {
		b := vtesting.NewBackend(t)
		u := b.SeedUser("finn", "finn@example.com", "Secret#123", true)
		access, refresh := b.IssueTokens(u.ID)
		client := api.NewClient(api.Options{BaseURL: b.URL(), Tokens: api.NewMemoryTokens(api.NewToken(access, refresh))})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		l, err := NewListener(b.URL(), client.TokenSource(ctx), nil)
		if err != nil {
			t.Fatal(err)
		}
		l.MinBackoff = 10 * time.Millisecond

		var mu sync.Mutex
		connects := 0
		l.OnConnect(func() {
			mu.Lock()
			connects++
			mu.Unlock()
		})
		go l.Run(ctx, func(Event) {})
		waitFor(t, "first connect", func() bool { return b.Listeners() == 1 })

		b.DropListeners()
		waitFor(t, "reconnect", func() bool {
			mu.Lock()
			defer mu.Unlock()
			return connects >= 2
		})
	})
}
