package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/desertthunder/vidx/internal/models"
)

// SessionRepository persists the session slice: the signed-in user and the auth flag.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Load returns the persisted session, or an anonymous one when nothing is stored.
func (r *SessionRepository) Load(ctx context.Context) (models.Session, error) {
	var (
		userJSON string
		authed   bool
	)
	err := r.db.QueryRowContext(ctx, "SELECT user_json, is_authenticated FROM session WHERE id = 1").Scan(&userJSON, &authed)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, nil
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to query session: %w", err)
	}

	var user models.User
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		return models.Session{}, fmt.Errorf("failed to decode persisted user: %w", err)
	}
	if !authed {
		return models.Session{}, nil
	}
	return models.NewSession(user), nil
}

// Save stores s. Anonymous sessions are stored as a cleared record.
func (r *SessionRepository) Save(ctx context.Context, s models.Session) error {
	if s.User == nil || !s.IsAuthenticated {
		return r.Clear(ctx)
	}

	data, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	query := `
		INSERT INTO session (id, user_json, is_authenticated, updated_at) VALUES (1, ?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET user_json = excluded.user_json, is_authenticated = 1, updated_at = CURRENT_TIMESTAMP
	`
	if _, err := r.db.ExecContext(ctx, query, string(data)); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM session"); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
