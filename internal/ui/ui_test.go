package ui

import (
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/vidx/internal/app"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
	"github.com/desertthunder/vidx/internal/stores"
	vtesting "github.com/desertthunder/vidx/internal/testing"
)

type fixture struct {
	backend *vtesting.Backend
	c       *app.Container
	user    models.User
	model   *Model
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := vtesting.NewBackend(t)
	u := b.SeedUser("wren", "wren@example.com", "Secret#123", true)

	cfg := shared.DefaultConfig()
	cfg.API.BaseURL = b.URL()
	cfg.API.RateLimit = 0
	cfg.Database.Path = ":memory:"
	cfg.Cache.Backend = "memory"
	cfg.Search.DebounceMS = 10

	c, err := app.New(app.Options{Config: cfg, Logger: shared.NewDiscardLogger()})
	if err != nil {
		t.Fatalf("failed to build container: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	if err := c.Auth.Login(context.Background(), models.Credentials{Login: "wren", Password: "Secret#123"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	m := NewModel(context.Background(), Deps{Videos: c.Videos, Playlists: c.Playlists, Uploads: c.Uploads, Search: c.Search})
	t.Cleanup(m.Close)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return &fixture{backend: b, c: c, user: u, model: m}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends msg and runs the command it returns, feeding the result back into the model.
func (f *fixture) press(t *testing.T, msg tea.KeyMsg) {
	t.Helper()
	_, cmd := f.model.Update(msg)
	if cmd == nil {
		return
	}
	if done, ok := cmd().(actionDoneMsg); ok {
		f.model.Update(done)
	}
}

func (f *fixture) loadTrending(t *testing.T) {
	t.Helper()
	if err := f.c.Videos.LoadTrending(context.Background(), models.ListParams{}); err != nil {
		t.Fatal(err)
	}
	f.model.Update(storeChangedMsg{})
}

func (f *fixture) loadPlaylists(t *testing.T) {
	t.Helper()
	if err := f.c.Playlists.Load(context.Background(), models.ListParams{}); err != nil {
		t.Fatal(err)
	}
	f.model.Update(storeChangedMsg{})
}

func (f *fixture) open(t *testing.T, id string) {
	t.Helper()
	f.model.view = PlaylistsView
	f.model.Update(f.model.openPlaylist(id)())
	if f.model.view != PlaylistView {
		t.Fatalf("expected playlist view, got %s", f.model.view)
	}
}

func TestModel(t *testing.T) {
	t.Run("Syncs Trending From Store", func(t *testing.T) {
		f := newFixture(t)
		f.backend.SeedVideo(models.Video{Title: "Canyon", UserID: f.user.ID, Views: 10})
		f.backend.SeedVideo(models.Video{Title: "Mesa", UserID: f.user.ID, Views: 99})
		f.loadTrending(t)

		items := f.model.videos.Items()
		if len(items) != 2 || items[0].(videoItem).video.Title != "Mesa" {
			t.Errorf("unexpected trending items %+v", items)
		}
		if !strings.Contains(f.model.View(), "Mesa") {
			t.Error("expected trending video in view")
		}
	})

	t.Run("Switches Views", func(t *testing.T) {
		f := newFixture(t)
		tc := []struct {
			key  tea.KeyMsg
			want ViewState
		}{
			{runes("3"), PlaylistsView},
			{tea.KeyMsg{Type: tea.KeyTab}, UploadsView},
			{tea.KeyMsg{Type: tea.KeyTab}, VideosView},
			{runes("2"), SearchView},
			{runes("4"), UploadsView},
		}
		for _, c := range tc {
			f.model.Update(c.key)
			if f.model.view != c.want {
				t.Errorf("after %q expected %s, got %s", c.key.String(), c.want, f.model.view)
			}
		}
		if !strings.Contains(f.model.View(), "No uploads") {
			t.Error("expected empty uploads view")
		}
	})

	t.Run("Like Toggles Reaction", func(t *testing.T) {
		f := newFixture(t)
		v := f.backend.SeedVideo(models.Video{Title: "Canyon", UserID: f.user.ID})
		f.loadTrending(t)

		f.press(t, runes("l"))
		if f.model.err != nil {
			t.Fatalf("unexpected error %v", f.model.err)
		}
		stored, _ := f.backend.Video(v.ID)
		if stored.Likes != 1 {
			t.Errorf("expected 1 like on server, got %d", stored.Likes)
		}
		got := f.model.videos.Items()[0].(videoItem).video
		if got.UserReaction != models.ReactionLike || got.Likes != 1 {
			t.Errorf("expected liked video in list, got %+v", got)
		}
	})

	t.Run("Favorite Marks Item", func(t *testing.T) {
		f := newFixture(t)
		v := f.backend.SeedVideo(models.Video{Title: "Canyon", UserID: f.user.ID})
		f.loadTrending(t)

		f.press(t, runes("f"))
		if ids := f.backend.SpecialIDs(f.user.ID, models.Favorites); !slices.Equal(ids, []string{v.ID}) {
			t.Errorf("expected video in favorites, got %v", ids)
		}
		if !f.model.videos.Items()[0].(videoItem).favorite {
			t.Error("expected favorite marker")
		}
		if !strings.Contains(f.model.status, "Added") {
			t.Errorf("unexpected status %q", f.model.status)
		}
	})

	t.Run("Drag Video Into Playlist", func(t *testing.T) {
		f := newFixture(t)
		v := f.backend.SeedVideo(models.Video{Title: "Canyon", UserID: f.user.ID})
		p := f.backend.SeedPlaylist(f.user.ID, "Roadtrip")
		f.loadTrending(t)
		f.loadPlaylists(t)

		f.press(t, runes("a"))
		if f.model.view != PlaylistsView || !f.model.moving() {
			t.Fatalf("expected a move drag on the playlists view, got %s %+v", f.model.view, f.model.drag)
		}

		f.press(t, tea.KeyMsg{Type: tea.KeyEnter})
		if f.model.err != nil {
			t.Fatalf("drop failed: %v", f.model.err)
		}
		stored, _ := f.backend.Playlist(p.ID)
		if !slices.Equal(stored.VideoIDs(), []string{v.ID}) {
			t.Errorf("expected video in playlist, got %v", stored.VideoIDs())
		}
		if f.model.drag.Phase != stores.DragIdle {
			t.Errorf("expected idle drag, got %s", f.model.drag.Phase)
		}
	})

	t.Run("Escape Cancels Move", func(t *testing.T) {
		f := newFixture(t)
		f.backend.SeedVideo(models.Video{Title: "Canyon", UserID: f.user.ID})
		f.loadTrending(t)

		f.press(t, runes("a"))
		f.press(t, tea.KeyMsg{Type: tea.KeyEsc})
		if f.model.view != VideosView || f.model.drag.Phase != stores.DragIdle {
			t.Errorf("expected cancelled drag on videos view, got %s %+v", f.model.view, f.model.drag)
		}
	})

	t.Run("Reorder With Keyboard", func(t *testing.T) {
		f := newFixture(t)
		a := f.backend.SeedVideo(models.Video{Title: "a", UserID: f.user.ID}).ID
		b := f.backend.SeedVideo(models.Video{Title: "b", UserID: f.user.ID}).ID
		c := f.backend.SeedVideo(models.Video{Title: "c", UserID: f.user.ID}).ID
		p := f.backend.SeedPlaylist(f.user.ID, "Queue", a, b, c)
		f.open(t, p.ID)

		f.press(t, runes("m"))
		if !f.model.reordering() {
			t.Fatalf("expected reorder drag, got %+v", f.model.drag)
		}
		f.press(t, tea.KeyMsg{Type: tea.KeyDown})
		f.press(t, tea.KeyMsg{Type: tea.KeyDown})
		if f.model.drag.Target == nil || f.model.drag.Target.Index != 2 {
			t.Fatalf("expected target index 2, got %+v", f.model.drag.Target)
		}
		if !f.model.entries.Items()[2].(entryItem).target || !f.model.entries.Items()[0].(entryItem).dragging {
			t.Error("expected drag markers on entries")
		}

		f.press(t, tea.KeyMsg{Type: tea.KeyEnter})
		if f.model.err != nil {
			t.Fatalf("drop failed: %v", f.model.err)
		}
		stored, _ := f.backend.Playlist(p.ID)
		if want := []string{b, c, a}; !slices.Equal(stored.VideoIDs(), want) {
			t.Errorf("expected %v, got %v", want, stored.VideoIDs())
		}
		if got := f.model.current.VideoIDs(); !slices.Equal(got, []string{b, c, a}) {
			t.Errorf("expected store to follow the server, got %v", got)
		}
	})

	t.Run("Escape Cancels Reorder", func(t *testing.T) {
		f := newFixture(t)
		a := f.backend.SeedVideo(models.Video{Title: "a", UserID: f.user.ID}).ID
		b := f.backend.SeedVideo(models.Video{Title: "b", UserID: f.user.ID}).ID
		p := f.backend.SeedPlaylist(f.user.ID, "Queue", a, b)
		f.open(t, p.ID)

		f.press(t, runes("m"))
		f.press(t, tea.KeyMsg{Type: tea.KeyDown})
		f.press(t, tea.KeyMsg{Type: tea.KeyEsc})
		if f.model.reordering() || f.model.view != PlaylistView {
			t.Errorf("expected cancelled drag in playlist view, got %s %+v", f.model.view, f.model.drag)
		}
		stored, _ := f.backend.Playlist(p.ID)
		if !slices.Equal(stored.VideoIDs(), []string{a, b}) {
			t.Errorf("expected unchanged order, got %v", stored.VideoIDs())
		}
	})

	t.Run("Remove Entry", func(t *testing.T) {
		f := newFixture(t)
		a := f.backend.SeedVideo(models.Video{Title: "a", UserID: f.user.ID}).ID
		b := f.backend.SeedVideo(models.Video{Title: "b", UserID: f.user.ID}).ID
		p := f.backend.SeedPlaylist(f.user.ID, "Queue", a, b)
		f.open(t, p.ID)

		f.press(t, runes("x"))
		stored, _ := f.backend.Playlist(p.ID)
		if !slices.Equal(stored.VideoIDs(), []string{b}) {
			t.Errorf("expected only b left, got %v", stored.VideoIDs())
		}
		if len(f.model.entries.Items()) != 1 {
			t.Errorf("expected one entry, got %d", len(f.model.entries.Items()))
		}
	})

	t.Run("Search Input", func(t *testing.T) {
		f := newFixture(t)
		f.backend.SeedVideo(models.Video{Title: "Desert Sunrise", UserID: f.user.ID})
		f.backend.SeedVideo(models.Video{Title: "Harbor", UserID: f.user.ID})

		f.model.Update(runes("/"))
		if f.model.view != SearchView || !f.model.query.Focused() {
			t.Fatal("expected focused search input")
		}
		f.model.Update(runes("desert"))
		if f.model.query.Value() != "desert" {
			t.Fatalf("unexpected query %q", f.model.query.Value())
		}

		deadline := time.Now().Add(3 * time.Second)
		for {
			res := f.c.Search.Snapshot()
			if !res.Loading() && len(res.Videos.Items) > 0 {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("timed out waiting for search results")
			}
			time.Sleep(5 * time.Millisecond)
		}
		f.model.Update(storeChangedMsg{})

		items := f.model.results.Items()
		if len(items) != 1 || items[0].(resultItem).item.Title() != "Desert Sunrise" {
			t.Errorf("unexpected results %+v", items)
		}

		f.model.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if f.model.query.Focused() {
			t.Error("expected enter to leave the input")
		}
	})

	t.Run("Action Errors Are Shown", func(t *testing.T) {
		f := newFixture(t)
		f.backend.SeedVideo(models.Video{Title: "Canyon", UserID: f.user.ID})
		f.loadTrending(t)
		f.backend.FailNext("POST /videos/{id}/like", 403)

		f.press(t, runes("l"))
		if f.model.err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(f.model.View(), "Error:") {
			t.Error("expected error in view")
		}
		if got := f.model.videos.Items()[0].(videoItem).video; got.UserReaction != models.ReactionNone {
			t.Errorf("expected rolled back reaction, got %+v", got)
		}
	})
}

func TestProgressBar(t *testing.T) {
	tc := []struct {
		pct    float64
		filled int
	}{
		{0, 0},
		{50, 5},
		{100, 10},
		{150, 10},
		{-5, 0},
	}
	for _, c := range tc {
		bar := progressBar(c.pct, 10)
		if got := strings.Count(bar, "█"); got != c.filled {
			t.Errorf("progressBar(%v) filled %d, want %d", c.pct, got, c.filled)
		}
		if got := strings.Count(bar, "█") + strings.Count(bar, "░"); got != 10 {
			t.Errorf("progressBar(%v) has width %d", c.pct, got)
		}
	}
}
