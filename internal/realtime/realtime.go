// Package realtime listens for server-pushed events over a websocket.
//
// The backend pushes `{type, payload}` messages on /events. The access token is passed as the
// token query parameter since browsers cannot set headers on websocket upgrades.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"

	"github.com/desertthunder/vidx/internal/shared"
)

const (
	EventVideoProcessed = "video.processed"
	EventVideoFailed    = "video.failed"

	minBackoff = 500 * time.Millisecond
	maxBackoff = 30 * time.Second
)

// Event is one pushed message.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// VideoPayload is the payload of the video.* events.
type VideoPayload struct {
	VideoID string `json:"videoId"`
	Error   string `json:"error,omitempty"`
}

// Handler receives every decoded event.
type Handler func(Event)

// Listener keeps a websocket open and reconnects with exponential backoff until its context ends.
type Listener struct {
	url    string
	tokens oauth2.TokenSource
	dialer *websocket.Dialer
	logger *log.Logger

	MinBackoff time.Duration
	MaxBackoff time.Duration

	mu        sync.Mutex
	connected bool
	onConnect []func()
}

// NewListener derives the websocket URL from the API base URL (http→ws, https→wss).
func NewListener(baseURL string, tokens oauth2.TokenSource, logger *log.Logger) (*Listener, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/events")
	if err != nil {
		return nil, fmt.Errorf("%w: bad base url: %v", shared.ErrInvalidConfig, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", shared.ErrInvalidConfig, u.Scheme)
	}
	if logger == nil {
		logger = shared.NewDiscardLogger()
	}
	return &Listener{
		url:        u.String(),
		tokens:     tokens,
		dialer:     websocket.DefaultDialer,
		logger:     shared.WithLogger(logger, "component", "realtime"),
		MinBackoff: minBackoff,
		MaxBackoff: maxBackoff,
	}, nil
}

// OnConnect registers fn to run after every successful dial.
func (l *Listener) OnConnect(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onConnect = append(l.onConnect, fn)
}

func (l *Listener) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *Listener) setConnected(v bool) {
	l.mu.Lock()
	l.connected = v
	hooks := append([]func(){}, l.onConnect...)
	l.mu.Unlock()
	if v {
		for _, fn := range hooks {
			fn()
		}
	}
}

// Run dials, reads events into handle, and reconnects on failure. It returns ctx's error.
func (l *Listener) Run(ctx context.Context, handle Handler) error {
	backoff := l.MinBackoff
	for {
		err := l.session(ctx, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			backoff = l.MinBackoff
		}
		l.logger.Debug("event stream closed, reconnecting", "err", err, "in", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, l.MaxBackoff)
	}
}

// session runs one connection until it fails. A connection that delivered events returns nil.
func (l *Listener) session(ctx context.Context, handle Handler) error {
	tok, err := l.tokens.Token()
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}
	u, _ := url.Parse(l.url)
	q := u.Query()
	q.Set("token", tok.AccessToken)
	u.RawQuery = q.Encode()

	conn, _, err := l.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}
	l.setConnected(true)
	defer l.setConnected(false)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	received := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if received {
				return nil
			}
			return err
		}
		received = true
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			l.logger.Warn("dropping malformed event", "err", err)
			continue
		}
		handle(ev)
	}
}

// UploadTracker is the part of [stores.UploadStore] fed by processing events.
type UploadTracker interface {
	Confirm(videoID string) error
	Fail(videoID, reason string) error
}

// UploadHandler routes video.processed and video.failed into tracker. Events for videos the
// tracker does not know are ignored.
func UploadHandler(tracker UploadTracker, logger *log.Logger) Handler {
	if logger == nil {
		logger = shared.NewDiscardLogger()
	}
	return func(ev Event) {
		var p VideoPayload
		if ev.Type != EventVideoProcessed && ev.Type != EventVideoFailed {
			return
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil || p.VideoID == "" {
			logger.Warn("bad video event payload", "type", ev.Type)
			return
		}
		var err error
		if ev.Type == EventVideoProcessed {
			err = tracker.Confirm(p.VideoID)
		} else {
			err = tracker.Fail(p.VideoID, p.Error)
		}
		if err != nil && !errors.Is(err, shared.ErrUploadNotFound) {
			logger.Warn("failed to apply video event", "type", ev.Type, "video", p.VideoID, "err", err)
		}
	}
}
