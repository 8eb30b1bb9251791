// Package app builds the object graph shared by the CLI and the TUI.
//
// A [Container] is created once per process from a [shared.Config]. It owns the SQLite handle and
// the cache backend and closes both in [Container.Close]. Nothing in it is global: tests build as
// many containers as they like against fake backends.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/vidx/internal/api"
	"github.com/desertthunder/vidx/internal/cache"
	"github.com/desertthunder/vidx/internal/realtime"
	"github.com/desertthunder/vidx/internal/repositories"
	"github.com/desertthunder/vidx/internal/search"
	"github.com/desertthunder/vidx/internal/services"
	"github.com/desertthunder/vidx/internal/shared"
	"github.com/desertthunder/vidx/internal/stores"
	"github.com/desertthunder/vidx/internal/tasks"
)

// Options override parts of the graph. Only Config is required.
type Options struct {
	Config     *shared.Config
	Logger     *log.Logger
	HTTPClient *http.Client
	DB         *sql.DB     // migrated database; opened from Config.Database when nil
	Cache      cache.Store // built from Config.Cache when nil
}

type Container struct {
	Config *shared.Config
	Logger *log.Logger
	DB     *sql.DB
	Cache  cache.Store
	Client *api.Client

	Tokens   *repositories.TokenRepository
	Sessions *repositories.SessionRepository
	History  *repositories.SearchHistoryRepository

	AuthService     *services.AuthService
	VideoService    *services.VideoService
	PlaylistService *services.PlaylistService

	Auth      *stores.AuthStore
	Videos    *stores.VideoStore
	Playlists *stores.PlaylistStore
	Uploads   *stores.UploadStore
	Search    *search.Searcher
	Tasks     *tasks.Engine

	closers []io.Closer
}

// New wires every component. When a token refresh fails the client reports it to the auth store,
// which clears the persisted session.
func New(opts Options) (*Container, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", shared.ErrMissingConfig)
	}
	if cfg.API.BaseURL == "" {
		return nil, fmt.Errorf("%w: api.base_url is required", shared.ErrMissingConfig)
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
		shared.SetLogLevel(logger, cfg.Log.ParseLevel())
	}

	c := &Container{Config: cfg, Logger: logger, DB: opts.DB, Cache: opts.Cache}

	if c.DB == nil {
		db, err := shared.OpenDatabase(cfg.Database)
		if err != nil {
			return nil, err
		}
		c.DB = db
		c.closers = append(c.closers, db)
	}

	if c.Cache == nil {
		store, err := cache.New(cfg.Cache)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Cache = store
		if closer, ok := store.(io.Closer); ok {
			c.closers = append(c.closers, closer)
		}
	}

	c.Tokens = repositories.NewTokenRepository(c.DB)
	c.Sessions = repositories.NewSessionRepository(c.DB)
	c.History = repositories.NewSearchHistoryRepository(c.DB, cfg.Search.HistoryLimit)

	clientOpts := api.OptionsFromConfig(cfg.API)
	clientOpts.HTTPClient = opts.HTTPClient
	clientOpts.Tokens = c.Tokens
	clientOpts.Logger = logger
	c.Client = api.NewClient(clientOpts)

	ttl := cache.TTLsFromConfig(cfg.Cache)
	c.AuthService = services.NewAuthService(c.Client, logger)
	c.VideoService = services.NewVideoService(c.Client, c.Cache, ttl, services.UploadRulesFromConfig(cfg.Upload), logger)
	c.PlaylistService = services.NewPlaylistService(c.Client, c.Cache, ttl, logger)

	c.Auth = stores.NewAuthStore(c.AuthService, c.Sessions, logger)
	c.Videos = stores.NewVideoStore(c.VideoService)
	c.Playlists = stores.NewPlaylistStore(c.PlaylistService)
	c.Uploads = stores.NewUploadStore(c.VideoService, logger)

	searchOpts := search.OptionsFromConfig(cfg.Search)
	searchOpts.Logger = logger
	c.Search = search.New(c.VideoService, c.PlaylistService, c.History, searchOpts)
	c.Tasks = tasks.NewEngine(c.PlaylistService, logger).WithRetry(cfg.API.Retries, cfg.API.RetryDelay())

	c.Client.OnSessionEnded(c.Auth.HandleSessionEnded)
	return c, nil
}

// Start restores the persisted session.
func (c *Container) Start(ctx context.Context) error {
	return c.Auth.Restore(ctx)
}

// Listener builds a realtime listener authenticated with the client's tokens.
func (c *Container) Listener(ctx context.Context) (*realtime.Listener, error) {
	return realtime.NewListener(c.Client.BaseURL(), c.Client.TokenSource(ctx), c.Logger)
}

// Listen feeds processing events into the upload store until ctx ends.
func (c *Container) Listen(ctx context.Context) error {
	l, err := c.Listener(ctx)
	if err != nil {
		return err
	}
	return l.Run(ctx, realtime.UploadHandler(c.Uploads, c.Logger))
}

// Close stops the searcher and releases the resources the container opened.
func (c *Container) Close() error {
	if c.Search != nil {
		c.Search.Close()
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
