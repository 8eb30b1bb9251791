package stores

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/vidx/internal/api"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

// AuthAPI is the part of [services.AuthService] the store uses.
type AuthAPI interface {
	Register(ctx context.Context, r models.Registration) (*models.AuthResponse, error)
	Login(ctx context.Context, c models.Credentials) (*models.AuthResponse, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) (*oauth2.Token, error)
	Me(ctx context.Context) (*models.User, error)
	HasTokens(ctx context.Context) bool
}

// SessionPersister keeps the session slice across runs; [repositories.SessionRepository] implements it.
type SessionPersister interface {
	Load(ctx context.Context) (models.Session, error)
	Save(ctx context.Context, s models.Session) error
	Clear(ctx context.Context) error
}

// AuthState is a copy of the store's state.
type AuthState struct {
	Session models.Session
	Status  Status
	Err     error
	// Expired is set when the session ended because a token refresh failed.
	Expired bool
}

// AuthStore owns the session.
type AuthStore struct {
	subscribers
	api      AuthAPI
	sessions SessionPersister
	logger   *log.Logger

	mu    sync.Mutex
	state AuthState
}

// NewAuthStore builds the store. sessions may be nil to keep the session in memory only.
func NewAuthStore(auth AuthAPI, sessions SessionPersister, logger *log.Logger) *AuthStore {
	if logger == nil {
		logger = shared.NewDiscardLogger()
	}
	return &AuthStore{
		api:      auth,
		sessions: sessions,
		logger:   shared.WithLogger(logger, "store", "auth"),
		state:    AuthState{Status: StatusIdle},
	}
}

func (s *AuthStore) Snapshot() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.state
	if s.state.Session.User != nil {
		u := *s.state.Session.User
		out.Session.User = &u
	}
	return out
}

func (s *AuthStore) Session() models.Session { return s.Snapshot().Session }

func (s *AuthStore) IsAuthenticated() bool { return s.Snapshot().Session.IsAuthenticated }

func (s *AuthStore) set(fn func(*AuthState)) {
	s.mu.Lock()
	fn(&s.state)
	s.mu.Unlock()
	s.notify()
}

func (s *AuthStore) begin() {
	s.set(func(st *AuthState) { st.Status, st.Err = StatusLoading, nil })
}

func (s *AuthStore) fail(ctx context.Context, prev AuthState, err error) error {
	if stop, cerr := cancelled(ctx, err); stop {
		s.set(func(st *AuthState) { *st = prev })
		return cerr
	}
	s.set(func(st *AuthState) { st.Status, st.Err = StatusFailure, err })
	return err
}

func (s *AuthStore) signedIn(ctx context.Context, u models.User) error {
	session := models.NewSession(u)
	s.set(func(st *AuthState) {
		*st = AuthState{Session: session, Status: StatusSuccess}
	})
	if s.sessions != nil {
		if err := s.sessions.Save(context.WithoutCancel(ctx), session); err != nil {
			s.logger.Warn("failed to persist session", "err", err)
		}
	}
	return nil
}

func (s *AuthStore) Login(ctx context.Context, c models.Credentials) error {
	prev := s.Snapshot()
	s.begin()
	resp, err := s.api.Login(ctx, c)
	if err != nil || ctx.Err() != nil {
		return s.fail(ctx, prev, err)
	}
	return s.signedIn(ctx, resp.User)
}

func (s *AuthStore) Register(ctx context.Context, r models.Registration) error {
	prev := s.Snapshot()
	s.begin()
	resp, err := s.api.Register(ctx, r)
	if err != nil || ctx.Err() != nil {
		return s.fail(ctx, prev, err)
	}
	return s.signedIn(ctx, resp.User)
}

// Logout clears tokens and the persisted session. It always ends signed out.
func (s *AuthStore) Logout(ctx context.Context) error {
	err := s.api.Logout(ctx)
	s.clear(ctx, false)
	return err
}

// Refresh rotates the token pair. A failure ends the session through the client's hook.
func (s *AuthStore) Refresh(ctx context.Context) error {
	_, err := s.api.Refresh(ctx)
	return err
}

// Reload fetches the current user and updates the session.
func (s *AuthStore) Reload(ctx context.Context) error {
	prev := s.Snapshot()
	s.begin()
	u, err := s.api.Me(ctx)
	if err != nil || ctx.Err() != nil {
		if api.IsKind(err, api.KindAuth) {
			s.clear(ctx, errors.Is(err, shared.ErrSessionExpired))
			return err
		}
		return s.fail(ctx, prev, err)
	}
	return s.signedIn(ctx, *u)
}

// Restore rebuilds the session from storage at startup and confirms it with the server.
// Without tokens the persisted slice is discarded.
func (s *AuthStore) Restore(ctx context.Context) error {
	if s.sessions != nil {
		saved, err := s.sessions.Load(ctx)
		if err != nil {
			s.logger.Warn("failed to load session", "err", err)
		} else if saved.IsAuthenticated {
			s.set(func(st *AuthState) { st.Session = saved })
		}
	}
	if !s.api.HasTokens(ctx) {
		s.clear(ctx, false)
		return nil
	}
	return s.Reload(ctx)
}

// HandleSessionEnded is registered with [api.Client.OnSessionEnded]; it forces a logout.
func (s *AuthStore) HandleSessionEnded(cause error) {
	s.logger.Warn("session ended", "cause", cause)
	s.clear(context.Background(), true)
}

func (s *AuthStore) clear(ctx context.Context, expired bool) {
	s.set(func(st *AuthState) {
		*st = AuthState{Status: StatusIdle, Expired: expired}
		if expired {
			st.Err = shared.ErrSessionExpired
		}
	})
	if s.sessions != nil {
		if err := s.sessions.Clear(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to clear session", "err", err)
		}
	}
}

// Require returns [shared.ErrNotAuthenticated] when signed out.
func (s *AuthStore) Require() error {
	if !s.IsAuthenticated() {
		return shared.ErrNotAuthenticated
	}
	return nil
}
