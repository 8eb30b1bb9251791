package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

// PlaylistAPI is the part of [services.PlaylistService] the engine drives.
type PlaylistAPI interface {
	Get(ctx context.Context, id string) (*models.Playlist, error)
	AddVideo(ctx context.Context, playlistID, videoID string) (*models.Playlist, error)
}

// Engine runs bulk playlist operations.
type Engine struct {
	playlists  PlaylistAPI
	logger     *log.Logger
	retries    int
	retryDelay time.Duration
}

func NewEngine(playlists PlaylistAPI, logger *log.Logger) *Engine {
	if logger == nil {
		logger = shared.NewDiscardLogger()
	}
	return &Engine{playlists: playlists, logger: shared.WithLogger(logger, "component", "tasks"), retries: 1}
}

// WithRetry makes playlist fetches retry transient failures. Adds are never retried.
func (e *Engine) WithRetry(attempts int, delay time.Duration) *Engine {
	e.retries = attempts
	e.retryDelay = delay
	return e
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
