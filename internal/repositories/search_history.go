package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DefaultHistoryLimit caps the number of stored terms.
const DefaultHistoryLimit = 100

// SearchHistoryRepository keeps search terms most-recent-first, de-duplicated by exact term.
type SearchHistoryRepository struct {
	db    *sql.DB
	limit int
	now   func() time.Time
}

// NewSearchHistoryRepository creates a repository capped at limit entries (100 when limit <= 0).
func NewSearchHistoryRepository(db *sql.DB, limit int) *SearchHistoryRepository {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &SearchHistoryRepository{db: db, limit: limit, now: time.Now}
}

// Add records term as the most recent search and trims the oldest entries beyond the cap.
// Blank terms are ignored.
func (r *SearchHistoryRepository) Add(ctx context.Context, term string) error {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var last sql.NullInt64
		if err := tx.QueryRowContext(ctx, "SELECT MAX(searched_at) FROM search_history").Scan(&last); err != nil {
			return fmt.Errorf("failed to read history: %w", err)
		}
		// Strictly increasing stamps keep ordering stable when the clock does not advance.
		stamp := r.now().UnixNano()
		if last.Valid && stamp <= last.Int64 {
			stamp = last.Int64 + 1
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO search_history (term, searched_at) VALUES (?, ?)
			ON CONFLICT(term) DO UPDATE SET searched_at = excluded.searched_at
		`, term, stamp); err != nil {
			return fmt.Errorf("failed to record search: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM search_history WHERE term NOT IN (
				SELECT term FROM search_history ORDER BY searched_at DESC LIMIT ?
			)
		`, r.limit); err != nil {
			return fmt.Errorf("failed to trim history: %w", err)
		}
		return nil
	})
}

// List returns up to limit terms, most recent first. limit <= 0 returns everything stored.
func (r *SearchHistoryRepository) List(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = r.limit
	}

	rows, err := r.db.QueryContext(ctx, "SELECT term FROM search_history ORDER BY searched_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	terms := []string{}
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		terms = append(terms, term)
	}
	return terms, rows.Err()
}

func (r *SearchHistoryRepository) Remove(ctx context.Context, term string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM search_history WHERE term = ?", term); err != nil {
		return fmt.Errorf("failed to remove search term: %w", err)
	}
	return nil
}

func (r *SearchHistoryRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM search_history"); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}
