package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Load Empty", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))

		s, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.IsAuthenticated || s.User != nil {
			t.Errorf("expected anonymous session, got %+v", s)
		}
	})

	t.Run("Save And Load", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		user := models.User{ID: "u1", Username: "river", Email: "river@example.com", Role: models.RoleCreator, EmailVerified: true}

		if err := repo.Save(ctx, models.NewSession(user)); err != nil {
			t.Fatalf("failed to save session: %v", err)
		}

		s, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("failed to load session: %v", err)
		}
		if !s.IsAuthenticated || s.User == nil || s.User.Username != "river" {
			t.Errorf("unexpected session %+v", s)
		}
		if !s.Permissions.CanUpload {
			t.Error("expected permissions to be derived on load")
		}
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		_ = repo.Save(ctx, models.NewSession(models.User{ID: "u1", Username: "first"}))
		_ = repo.Save(ctx, models.NewSession(models.User{ID: "u2", Username: "second"}))

		s, _ := repo.Load(ctx)
		if s.User.Username != "second" {
			t.Errorf("expected latest user, got %s", s.User.Username)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		_ = repo.Save(ctx, models.NewSession(models.User{ID: "u1"}))

		if err := repo.Save(ctx, models.Session{}); err != nil {
			t.Fatalf("failed to save anonymous session: %v", err)
		}
		if s, _ := repo.Load(ctx); s.IsAuthenticated {
			t.Error("expected session to be cleared")
		}
	})
}

func TestTokenRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Round Trip", func(t *testing.T) {
		repo := NewTokenRepository(setupTestDB(t))
		exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

		if err := repo.Save(ctx, &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: exp}); err != nil {
			t.Fatalf("failed to save tokens: %v", err)
		}

		tok, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("failed to load tokens: %v", err)
		}
		if tok.AccessToken != "a" || tok.RefreshToken != "r" || tok.TokenType != "Bearer" {
			t.Errorf("unexpected token %+v", tok)
		}
		if !tok.Expiry.Equal(exp) {
			t.Errorf("expected expiry %v, got %v", exp, tok.Expiry)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		repo := NewTokenRepository(setupTestDB(t))
		_ = repo.Save(ctx, &oauth2.Token{AccessToken: "a"})

		if err := repo.Clear(ctx); err != nil {
			t.Fatalf("failed to clear: %v", err)
		}
		tok, err := repo.Load(ctx)
		if err != nil || tok != nil {
			t.Errorf("expected no token, got %+v %v", tok, err)
		}
	})

	t.Run("Tokens Stay Out Of Session Table", func(t *testing.T) {
		db := setupTestDB(t)
		_ = NewTokenRepository(db).Save(ctx, &oauth2.Token{AccessToken: "secret"})

		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM session").Scan(&n); err != nil {
			t.Fatalf("query: %v", err)
		}
		if n != 0 {
			t.Errorf("expected empty session table, got %d rows", n)
		}
	})
}

func TestSearchHistoryRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Most Recent First And Deduplicated", func(t *testing.T) {
		repo := NewSearchHistoryRepository(setupTestDB(t), 100)
		for _, term := range []string{"go", "rust", "go", "zig"} {
			if err := repo.Add(ctx, term); err != nil {
				t.Fatalf("add %q: %v", term, err)
			}
		}

		got, err := repo.List(ctx, 0)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		want := []string{"zig", "go", "rust"}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("Capped", func(t *testing.T) {
		repo := NewSearchHistoryRepository(setupTestDB(t), 100)
		for i := range 105 {
			if err := repo.Add(ctx, fmt.Sprintf("term-%03d", i)); err != nil {
				t.Fatalf("add: %v", err)
			}
		}

		all, _ := repo.List(ctx, 0)
		if len(all) != 100 {
			t.Fatalf("expected 100 entries, got %d", len(all))
		}
		if all[0] != "term-104" || all[99] != "term-005" {
			t.Errorf("unexpected bounds %s .. %s", all[0], all[99])
		}

		recent, _ := repo.List(ctx, 10)
		if len(recent) != 10 || recent[0] != "term-104" {
			t.Errorf("unexpected recent slice %v", recent)
		}
	})

	t.Run("Blank Terms Ignored", func(t *testing.T) {
		repo := NewSearchHistoryRepository(setupTestDB(t), 0)
		_ = repo.Add(ctx, "   ")

		got, _ := repo.List(ctx, 0)
		if len(got) != 0 {
			t.Errorf("expected empty history, got %v", got)
		}
	})

	t.Run("Remove And Clear", func(t *testing.T) {
		repo := NewSearchHistoryRepository(setupTestDB(t), 0)
		_ = repo.Add(ctx, "a")
		_ = repo.Add(ctx, "b")

		if err := repo.Remove(ctx, "a"); err != nil {
			t.Fatalf("remove: %v", err)
		}
		if got, _ := repo.List(ctx, 0); len(got) != 1 || got[0] != "b" {
			t.Errorf("expected [b], got %v", got)
		}

		if err := repo.Clear(ctx); err != nil {
			t.Fatalf("clear: %v", err)
		}
		if got, _ := repo.List(ctx, 0); len(got) != 0 {
			t.Errorf("expected empty history, got %v", got)
		}
	})
}
