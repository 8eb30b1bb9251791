package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/vidx/internal/api"
	"github.com/desertthunder/vidx/internal/cache"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
	vtesting "github.com/desertthunder/vidx/internal/testing"
)

const testPassword = "Secret#123"

type fixture struct {
	backend   *vtesting.Backend
	client    *api.Client
	cache     *cache.Memory
	user      models.User
	videos    *VideoService
	playlists *PlaylistService
	auth      *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := vtesting.NewBackend(t)
	u := b.SeedUser("alice", "alice@example.com", testPassword, true)
	access, refresh := b.IssueTokens(u.ID)
	client := api.NewClient(api.Options{BaseURL: b.URL(), Tokens: api.NewMemoryTokens(api.NewToken(access, refresh))})
	mem := cache.NewMemory()
	return &fixture{
		backend:   b,
		client:    client,
		cache:     mem,
		user:      u,
		videos:    NewVideoService(client, mem, cache.DefaultTTLs(), UploadRules{}, nil),
		playlists: NewPlaylistService(client, mem, cache.DefaultTTLs(), nil),
		auth:      NewAuthService(client, nil),
	}
}

func assertKind(t *testing.T, err error, want api.Kind) {
	t.Helper()
	if !api.IsKind(err, want) {
		t.Fatalf("expected %s error, got %v", want, err)
	}
}

func TestValidation(t *testing.T) {
	t.Run("Playlist Title Bounds", func(t *testing.T) {
		if err := ValidatePlaylistInput(models.PlaylistInput{Title: "ab"}); err == nil {
			t.Error("expected error for 2 character title")
		}
		if err := ValidatePlaylistInput(models.PlaylistInput{Title: "abc"}); err != nil {
			t.Errorf("expected 3 character title to pass, got %v", err)
		}
		if err := ValidatePlaylistInput(models.PlaylistInput{Title: strings.Repeat("a", 101)}); err == nil {
			t.Error("expected error for 101 character title")
		}
	})

	t.Run("Playlist Description Limit", func(t *testing.T) {
		err := ValidatePlaylistInput(models.PlaylistInput{Title: "Road trip", Description: strings.Repeat("x", 501)})
		apiErr, ok := api.AsError(err)
		if !ok || apiErr.Fields["description"] == "" {
			t.Fatalf("expected description field error, got %v", err)
		}
	})

	t.Run("Positions Must Be Dense", func(t *testing.T) {
		good := []models.PositionUpdate{{VideoID: "b", Position: 0}, {VideoID: "a", Position: 1}}
		if err := ValidatePositions(good); err != nil {
			t.Errorf("expected dense positions to pass, got %v", err)
		}
		gap := []models.PositionUpdate{{VideoID: "a", Position: 0}, {VideoID: "b", Position: 2}}
		if err := ValidatePositions(gap); err == nil {
			t.Error("expected error for gap")
		}
		if err := ValidatePositions(nil); err == nil {
			t.Error("expected error for empty reorder")
		}
	})

	t.Run("Video File Rules", func(t *testing.T) {
		rules := UploadRules{MaxSize: 10 << 20}
		if err := ValidateVideoFile("clip.mp4", 1024, "", rules); err != nil {
			t.Errorf("expected mp4 to pass, got %v", err)
		}
		if err := ValidateVideoFile("clip.txt", 1024, "", rules); err == nil {
			t.Error("expected unsupported type error")
		}
		if err := ValidateVideoFile("clip.mp4", 11<<20, "", rules); err == nil {
			t.Error("expected size error")
		}
		if err := ValidateVideoFile("clip.mp4", 0, "", rules); err == nil {
			t.Error("expected empty file error")
		}
	})

	t.Run("Password Complexity", func(t *testing.T) {
		if p := PasswordProblems("short"); len(p) == 0 {
			t.Error("expected problems for weak password")
		}
		if p := PasswordProblems(testPassword); len(p) != 0 {
			t.Errorf("expected no problems, got %v", p)
		}
	})

	t.Run("Registration", func(t *testing.T) {
		err := ValidateRegistration(models.Registration{Username: "a b", Email: "nope", Password: "x"})
		apiErr, ok := api.AsError(err)
		if !ok {
			t.Fatalf("expected api error, got %v", err)
		}
		for _, field := range []string{"username", "email", "password"} {
			if apiErr.Fields[field] == "" {
				t.Errorf("expected %s field error", field)
			}
		}
	})
}

func TestAuthService(t *testing.T) {
	t.Run("Register Stores Tokens", func(t *testing.T) {
		b := vtesting.NewBackend(t)
		client := api.NewClient(api.Options{BaseURL: b.URL()})
		svc := NewAuthService(client, nil)

		resp, err := svc.Register(context.Background(), models.Registration{Username: "bob_1", Email: "bob@example.com", Password: testPassword})
		if err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if resp.User.Username != "bob_1" {
			t.Errorf("expected bob_1, got %s", resp.User.Username)
		}
		if !svc.HasTokens(context.Background()) {
			t.Error("expected tokens after register")
		}

		me, err := svc.Me(context.Background())
		if err != nil {
			t.Fatalf("Me failed: %v", err)
		}
		if me.ID != resp.User.ID {
			t.Errorf("expected %s, got %s", resp.User.ID, me.ID)
		}
	})

	t.Run("Invalid Registration Never Sends", func(t *testing.T) {
		b := vtesting.NewBackend(t)
		svc := NewAuthService(api.NewClient(api.Options{BaseURL: b.URL()}), nil)

		_, err := svc.Register(context.Background(), models.Registration{Username: "x", Email: "bad", Password: "weak"})
		assertKind(t, err, api.KindValidation)
		if b.TotalCalls() != 0 {
			t.Errorf("expected no requests, got %d", b.TotalCalls())
		}
	})

	t.Run("Login Wrong Password", func(t *testing.T) {
		b := vtesting.NewBackend(t)
		b.SeedUser("carol", "carol@example.com", testPassword, true)
		svc := NewAuthService(api.NewClient(api.Options{BaseURL: b.URL()}), nil)

		_, err := svc.Login(context.Background(), models.Credentials{Login: "carol", Password: "Wrong#1234"})
		assertKind(t, err, api.KindAuth)
		if svc.HasTokens(context.Background()) {
			t.Error("expected no tokens after failed login")
		}
		if got := b.Calls("POST /auth/refresh"); got != 0 {
			t.Errorf("expected login 401 not to trigger refresh, got %d", got)
		}
	})

	t.Run("Logout Clears Tokens", func(t *testing.T) {
		f := newFixture(t)
		if err := f.auth.Logout(context.Background()); err != nil {
			t.Fatalf("Logout failed: %v", err)
		}
		if f.auth.HasTokens(context.Background()) {
			t.Error("expected tokens cleared")
		}
		if got := f.backend.Calls("POST /auth/logout"); got != 1 {
			t.Errorf("expected 1 logout call, got %d", got)
		}
	})

	t.Run("Logout Survives Server Failure", func(t *testing.T) {
		f := newFixture(t)
		f.backend.FailNext("POST /auth/logout", http.StatusInternalServerError)
		if err := f.auth.Logout(context.Background()); err != nil {
			t.Fatalf("Logout failed: %v", err)
		}
		if f.auth.HasTokens(context.Background()) {
			t.Error("expected tokens cleared")
		}
	})

	t.Run("Change Password", func(t *testing.T) {
		f := newFixture(t)
		err := f.auth.ChangePassword(context.Background(), models.PasswordChange{CurrentPassword: testPassword, NewPassword: "Another#456"})
		if err != nil {
			t.Fatalf("ChangePassword failed: %v", err)
		}
		_, err = f.auth.Login(context.Background(), models.Credentials{Login: "alice", Password: "Another#456"})
		if err != nil {
			t.Errorf("expected login with new password, got %v", err)
		}
	})
}

func TestVideoService(t *testing.T) {
	ctx := context.Background()

	t.Run("Cache Hit Skips Network", func(t *testing.T) {
		f := newFixture(t)
		v := f.backend.SeedVideo(models.Video{Title: "Intro", UserID: f.user.ID})

		for range 3 {
			got, err := f.videos.Get(ctx, v.ID)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if got.Title != "Intro" {
				t.Errorf("expected Intro, got %s", got.Title)
			}
		}
		if got := f.backend.Calls("GET /videos/{id}"); got != 1 {
			t.Errorf("expected 1 request, got %d", got)
		}
	})

	t.Run("Distinct Params Are Distinct Entries", func(t *testing.T) {
		f := newFixture(t)
		f.backend.SeedVideo(models.Video{Title: "A", UserID: f.user.ID})

		if _, err := f.videos.List(ctx, models.ListParams{Page: 1, Limit: 10}); err != nil {
			t.Fatal(err)
		}
		if _, err := f.videos.List(ctx, models.ListParams{Page: 2, Limit: 10}); err != nil {
			t.Fatal(err)
		}
		if _, err := f.videos.List(ctx, models.ListParams{Page: 1, Limit: 10}); err != nil {
			t.Fatal(err)
		}
		if got := f.backend.Calls("GET /videos"); got != 2 {
			t.Errorf("expected 2 requests, got %d", got)
		}
	})

	t.Run("Update Invalidates Videos", func(t *testing.T) {
		f := newFixture(t)
		v := f.backend.SeedVideo(models.Video{Title: "Before", UserID: f.user.ID})

		if _, err := f.videos.Get(ctx, v.ID); err != nil {
			t.Fatal(err)
		}
		title := "After"
		if _, err := f.videos.Update(ctx, v.ID, models.VideoUpdate{Title: &title}); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		got, err := f.videos.Get(ctx, v.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Title != "After" {
			t.Errorf("expected fresh read after update, got %s", got.Title)
		}
		if calls := f.backend.Calls("GET /videos/{id}"); calls != 2 {
			t.Errorf("expected 2 detail requests, got %d", calls)
		}
	})

	t.Run("Failed Mutation Keeps Cache", func(t *testing.T) {
		f := newFixture(t)
		v := f.backend.SeedVideo(models.Video{Title: "Kept", UserID: f.user.ID})
		if _, err := f.videos.Get(ctx, v.ID); err != nil {
			t.Fatal(err)
		}
		f.backend.FailNext("DELETE /videos/{id}", http.StatusInternalServerError)
		err := f.videos.Delete(ctx, v.ID)
		assertKind(t, err, api.KindServer)
		if _, err := f.videos.Get(ctx, v.ID); err != nil {
			t.Fatal(err)
		}
		if calls := f.backend.Calls("GET /videos/{id}"); calls != 1 {
			t.Errorf("expected cached entry to survive, got %d detail requests", calls)
		}
	})

	t.Run("Reactions", func(t *testing.T) {
		f := newFixture(t)
		v := f.backend.SeedVideo(models.Video{Title: "Liked", UserID: f.user.ID, Likes: 10, Dislikes: 2})

		st, err := f.videos.Like(ctx, v.ID)
		if err != nil {
			t.Fatalf("Like failed: %v", err)
		}
		if st.Likes != 11 || st.UserReaction != models.ReactionLike {
			t.Errorf("unexpected state after like: %+v", st)
		}
		st, err = f.videos.Dislike(ctx, v.ID)
		if err != nil {
			t.Fatalf("Dislike failed: %v", err)
		}
		if st.Likes != 10 || st.Dislikes != 3 || st.UserReaction != models.ReactionDislike {
			t.Errorf("unexpected state after dislike: %+v", st)
		}
	})

	t.Run("Upload", func(t *testing.T) {
		f := newFixture(t)
		dir := t.TempDir()
		path := filepath.Join(dir, "holiday.mp4")
		if err := os.WriteFile(path, []byte(strings.Repeat("v", 4096)), 0644); err != nil {
			t.Fatal(err)
		}
		u, err := NewFileUpload(path, models.VideoMetadata{})
		if err != nil {
			t.Fatalf("NewFileUpload failed: %v", err)
		}
		if u.Metadata.Title != "holiday" {
			t.Errorf("expected title from file name, got %s", u.Metadata.Title)
		}

		var last float64
		v, err := f.videos.Upload(ctx, u, func(p float64) { last = p })
		if err != nil {
			t.Fatalf("Upload failed: %v", err)
		}
		if last != 100 {
			t.Errorf("expected final progress 100, got %v", last)
		}
		if v.Status != models.VideoProcessing {
			t.Errorf("expected processing, got %s", v.Status)
		}
	})

	t.Run("Upload Rejects Bad Type Before Sending", func(t *testing.T) {
		f := newFixture(t)
		u := VideoUpload{
			Metadata: models.VideoMetadata{Title: "Notes"},
			FileName: "notes.txt",
			Size:     12,
			Open:     func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader("hello")), nil },
		}
		_, err := f.videos.Upload(ctx, u, nil)
		assertKind(t, err, api.KindValidation)
		if f.backend.TotalCalls() != 0 {
			t.Errorf("expected no requests, got %d", f.backend.TotalCalls())
		}
	})

	t.Run("History", func(t *testing.T) {
		f := newFixture(t)
		v := f.backend.SeedVideo(models.Video{Title: "Seen", UserID: f.user.ID})

		if err := f.videos.RecordView(ctx, v.ID); err != nil {
			t.Fatalf("RecordView failed: %v", err)
		}
		page, err := f.videos.History(ctx, models.ListParams{})
		if err != nil {
			t.Fatal(err)
		}
		if len(page.Items) != 1 || page.Items[0].Video.ID != v.ID {
			t.Fatalf("expected history with %s, got %+v", v.ID, page.Items)
		}
		if err := f.videos.ClearHistory(ctx); err != nil {
			t.Fatal(err)
		}
		page, err = f.videos.History(ctx, models.ListParams{})
		if err != nil {
			t.Fatal(err)
		}
		if len(page.Items) != 0 {
			t.Errorf("expected empty history, got %d", len(page.Items))
		}
	})

	t.Run("URLs", func(t *testing.T) {
		f := newFixture(t)
		got := f.videos.StreamURL("v 1", "720p")
		want := f.backend.URL() + "/videos/v%201/stream?quality=720p"
		if got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	})
}

func TestPlaylistService(t *testing.T) {
	ctx := context.Background()

	t.Run("Create Validates Before Sending", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.playlists.Create(ctx, models.PlaylistInput{Title: "ab"})
		assertKind(t, err, api.KindValidation)
		if f.backend.TotalCalls() != 0 {
			t.Errorf("expected no requests, got %d", f.backend.TotalCalls())
		}
	})

	t.Run("Add And Remove Keep Positions Dense", func(t *testing.T) {
		f := newFixture(t)
		v1 := f.backend.SeedVideo(models.Video{Title: "one", UserID: f.user.ID})
		v2 := f.backend.SeedVideo(models.Video{Title: "two", UserID: f.user.ID})
		v3 := f.backend.SeedVideo(models.Video{Title: "three", UserID: f.user.ID})

		p, err := f.playlists.Create(ctx, models.PlaylistInput{Title: "Mix"})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		for _, v := range []models.Video{v1, v2, v3} {
			if p, err = f.playlists.AddVideo(ctx, p.ID, v.ID); err != nil {
				t.Fatalf("AddVideo failed: %v", err)
			}
		}
		p, err = f.playlists.RemoveVideo(ctx, p.ID, v2.ID)
		if err != nil {
			t.Fatalf("RemoveVideo failed: %v", err)
		}
		if !models.HasDensePositions(p.Videos) {
			t.Errorf("expected dense positions, got %v", p.Positions())
		}
		if ids := p.VideoIDs(); len(ids) != 2 || ids[0] != v1.ID || ids[1] != v3.ID {
			t.Errorf("unexpected order %v", ids)
		}
	})

	t.Run("Reorder Round Trip", func(t *testing.T) {
		f := newFixture(t)
		v1 := f.backend.SeedVideo(models.Video{Title: "one", UserID: f.user.ID})
		v2 := f.backend.SeedVideo(models.Video{Title: "two", UserID: f.user.ID})
		seeded := f.backend.SeedPlaylist(f.user.ID, "Pair", v1.ID, v2.ID)

		if _, err := f.playlists.Get(ctx, seeded.ID); err != nil {
			t.Fatal(err)
		}
		p, err := f.playlists.Reorder(ctx, seeded.ID, []models.PositionUpdate{{VideoID: v2.ID, Position: 0}, {VideoID: v1.ID, Position: 1}})
		if err != nil {
			t.Fatalf("Reorder failed: %v", err)
		}
		if ids := p.VideoIDs(); ids[0] != v2.ID {
			t.Errorf("expected %s first, got %v", v2.ID, ids)
		}
		fresh, err := f.playlists.Get(ctx, seeded.ID)
		if err != nil {
			t.Fatal(err)
		}
		if ids := fresh.VideoIDs(); ids[0] != v2.ID {
			t.Errorf("expected invalidated detail to show new order, got %v", ids)
		}
	})

	t.Run("Reorder With Foreign Video Is Rejected", func(t *testing.T) {
		f := newFixture(t)
		v1 := f.backend.SeedVideo(models.Video{Title: "one", UserID: f.user.ID})
		seeded := f.backend.SeedPlaylist(f.user.ID, "Solo", v1.ID)

		_, err := f.playlists.Reorder(ctx, seeded.ID, []models.PositionUpdate{{VideoID: "other", Position: 0}})
		assertKind(t, err, api.KindValidation)
	})

	t.Run("Special Lists", func(t *testing.T) {
		f := newFixture(t)
		v := f.backend.SeedVideo(models.Video{Title: "fav", UserID: f.user.ID})

		if _, err := f.playlists.SpecialList(ctx, models.Favorites, models.ListParams{}); err != nil {
			t.Fatal(err)
		}
		if err := f.playlists.AddToSpecial(ctx, models.Favorites, v.ID); err != nil {
			t.Fatalf("AddToSpecial failed: %v", err)
		}
		page, err := f.playlists.SpecialList(ctx, models.Favorites, models.ListParams{})
		if err != nil {
			t.Fatal(err)
		}
		if len(page.Items) != 1 {
			t.Errorf("expected 1 favorite, got %d", len(page.Items))
		}
		if err := f.playlists.RemoveFromSpecial(ctx, models.Favorites, v.ID); err != nil {
			t.Fatal(err)
		}
		if ids := f.backend.SpecialIDs(f.user.ID, models.Favorites); len(ids) != 0 {
			t.Errorf("expected favorites empty, got %v", ids)
		}
	})

	t.Run("Unknown Special List", func(t *testing.T) {
		f := newFixture(t)
		err := f.playlists.AddToSpecial(ctx, models.SpecialList("later"), "v1")
		assertKind(t, err, api.KindValidation)
	})

	t.Run("Expired Session Surfaces Auth Error", func(t *testing.T) {
		f := newFixture(t)
		f.backend.ExpireAccessTokens()
		f.backend.RevokeRefreshTokens()

		_, err := f.playlists.Create(ctx, models.PlaylistInput{Title: "Late night"})
		assertKind(t, err, api.KindAuth)
		if !errors.Is(err, shared.ErrSessionExpired) {
			t.Errorf("expected ErrSessionExpired, got %v", err)
		}
	})
}
