package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/vidx/internal/api"
	"github.com/desertthunder/vidx/internal/cache"
	"github.com/desertthunder/vidx/internal/formatter"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/services"
	"github.com/desertthunder/vidx/internal/shared"
	vtesting "github.com/desertthunder/vidx/internal/testing"
)

type fixture struct {
	backend   *vtesting.Backend
	user      models.User
	playlists *services.PlaylistService
	engine    *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := vtesting.NewBackend(t)
	u := b.SeedUser("gale", "gale@example.com", "Secret#123", true)
	access, refresh := b.IssueTokens(u.ID)
	client := api.NewClient(api.Options{BaseURL: b.URL(), Tokens: api.NewMemoryTokens(api.NewToken(access, refresh))})
	playlists := services.NewPlaylistService(client, nil, cache.TTLs{}, nil)
	return &fixture{backend: b, user: u, playlists: playlists, engine: NewEngine(playlists, nil)}
}

func (f *fixture) seedVideos(titles ...string) []string {
	ids := make([]string, len(titles))
	for i, title := range titles {
		ids[i] = f.backend.SeedVideo(models.Video{Title: title, UserID: f.user.ID, Duration: 60 * (i + 1)}).ID
	}
	return ids
}

func drain(ch chan ProgressUpdate) []ProgressUpdate {
	var out []ProgressUpdate
	for {
		select {
		case u := <-ch:
			out = append(out, u)
		default:
			return out
		}
	}
}

func TestPhase(t *testing.T) {
	tc := map[Phase]string{
		FetchPlaylist:  "fetch_playlist",
		ExportPlaylist: "export_playlist",
		WriteManifest:  "write_manifest",
		AddVideos:      "add_videos",
		Phase(99):      "",
	}
	for p, want := range tc {
		if got := p.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", p, got, want)
		}
	}
}

func TestSendProgress(t *testing.T) {
	t.Run("Nil Channel", func(t *testing.T) {
		sendProgress(nil, ProgressUpdate{Message: "ignored"})
	})

	t.Run("Full Channel Does Not Block", func(t *testing.T) {
		ch := make(chan ProgressUpdate, 1)
		sendProgress(ch, ProgressUpdate{Step: 1})
		sendProgress(ch, ProgressUpdate{Step: 2})
		if got := drain(ch); len(got) != 1 || got[0].Step != 1 {
			t.Errorf("expected only the first update, got %+v", got)
		}
	})
}

func TestBulkExport(t *testing.T) {
	ctx := context.Background()

	t.Run("Partial Failure Writes Manifest", func(t *testing.T) {
		f := newFixture(t)
		vids := f.seedVideos("one", "two")
		p1 := f.backend.SeedPlaylist(f.user.ID, "First", vids...)
		p2 := f.backend.SeedPlaylist(f.user.ID, "Second", vids[1])
		dir := filepath.Join(t.TempDir(), "export")

		prog := make(chan ProgressUpdate, 64)
		res, err := f.engine.BulkExport(ctx, prog, []string{p1.ID, "missing", p2.ID}, BulkExportOpts{
			Format:    formatter.FormatJSON,
			OutputDir: dir,
			RateLimit: 1000,
		})
		if err != nil {
			t.Fatalf("BulkExport failed: %v", err)
		}
		if res.TotalPlaylists != 3 || res.SuccessfulExports != 2 || res.FailedExports != 1 {
			t.Errorf("unexpected counters %+v", res)
		}

		gotIDs := []string{res.Results[0].PlaylistID, res.Results[1].PlaylistID, res.Results[2].PlaylistID}
		if !slices.Equal(gotIDs, []string{p1.ID, "missing", p2.ID}) {
			t.Errorf("results not in request order: %v", gotIDs)
		}
		if !api.IsKind(res.Results[1].Error, api.KindNotFound) {
			t.Errorf("expected not found for missing playlist, got %v", res.Results[1].Error)
		}

		data, err := os.ReadFile(filepath.Join(dir, p1.ID+".json"))
		if err != nil {
			t.Fatalf("export file missing: %v", err)
		}
		var exported models.Playlist
		if err := json.Unmarshal(data, &exported); err != nil {
			t.Fatal(err)
		}
		if len(exported.Videos) != 2 || exported.Videos[1].Video.Title != "two" {
			t.Errorf("unexpected exported playlist %+v", exported)
		}

		var manifest formatter.Manifest
		raw, err := os.ReadFile(res.ManifestPath)
		if err != nil {
			t.Fatalf("manifest missing: %v", err)
		}
		if err := json.Unmarshal(raw, &manifest); err != nil {
			t.Fatal(err)
		}
		if manifest.FailedExports != 1 || manifest.Playlists[1].Status != formatter.StatusFailed {
			t.Errorf("unexpected manifest %+v", manifest)
		}

		updates := drain(prog)
		var phases []Phase
		for _, u := range updates {
			phases = append(phases, u.Phase)
		}
		if !slices.Contains(phases, FetchPlaylist) || !slices.Contains(phases, ExportPlaylist) || phases[len(phases)-1] != WriteManifest {
			t.Errorf("unexpected progress phases %v", phases)
		}
	})

	t.Run("CSV Format", func(t *testing.T) {
		f := newFixture(t)
		vids := f.seedVideos("a")
		p := f.backend.SeedPlaylist(f.user.ID, "Only", vids...)
		dir := t.TempDir()

		res, err := f.engine.BulkExport(ctx, nil, []string{p.ID}, BulkExportOpts{Format: formatter.FormatCSV, OutputDir: dir, RateLimit: 1000})
		if err != nil {
			t.Fatal(err)
		}
		files := res.Results[0].Files
		if len(files) != 2 || !strings.HasSuffix(files[0], "_videos.csv") {
			t.Errorf("unexpected files %v", files)
		}
	})

	t.Run("Retries Transient Fetch Failures", func(t *testing.T) {
		f := newFixture(t)
		p := f.backend.SeedPlaylist(f.user.ID, "Flaky")
		f.backend.FailNext("GET /playlists/{id}", 503)
		f.engine.WithRetry(3, time.Millisecond)

		res, err := f.engine.BulkExport(ctx, nil, []string{p.ID}, BulkExportOpts{OutputDir: t.TempDir(), RateLimit: 1000})
		if err != nil {
			t.Fatal(err)
		}
		if res.SuccessfulExports != 1 {
			t.Errorf("expected the retry to succeed, got %+v", res.Results)
		}
		if calls := f.backend.Calls("GET /playlists/{id}"); calls != 2 {
			t.Errorf("expected 2 fetches, got %d", calls)
		}
	})

	t.Run("Not Found Is Not Retried", func(t *testing.T) {
		f := newFixture(t)
		f.engine.WithRetry(3, time.Millisecond)

		res, err := f.engine.BulkExport(ctx, nil, []string{"missing"}, BulkExportOpts{OutputDir: t.TempDir(), RateLimit: 1000})
		if err != nil {
			t.Fatal(err)
		}
		if res.FailedExports != 1 {
			t.Errorf("expected one failure, got %+v", res.Results)
		}
		if calls := f.backend.Calls("GET /playlists/{id}"); calls != 1 {
			t.Errorf("expected a single fetch, got %d", calls)
		}
	})

	t.Run("No Playlists", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.engine.BulkExport(ctx, nil, nil, BulkExportOpts{OutputDir: t.TempDir()}); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		f := newFixture(t)
		p := f.backend.SeedPlaylist(f.user.ID, "Never")
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		dir := t.TempDir()
		res, err := f.engine.BulkExport(cctx, nil, []string{p.ID}, BulkExportOpts{OutputDir: dir})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if res.SuccessfulExports != 0 || res.ManifestPath != "" {
			t.Errorf("expected nothing exported, got %+v", res)
		}
	})
}

func TestBulkAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("Adds In Order", func(t *testing.T) {
		f := newFixture(t)
		vids := f.seedVideos("a", "b", "c")
		p := f.backend.SeedPlaylist(f.user.ID, "Queue")

		prog := make(chan ProgressUpdate, 16)
		res, err := f.engine.BulkAdd(ctx, prog, p.ID, vids, BulkAddOpts{RateLimit: 1000})
		if err != nil {
			t.Fatalf("BulkAdd failed: %v", err)
		}
		if res.Added != 3 || res.Failed != 0 {
			t.Errorf("unexpected counters %+v", res)
		}
		stored, _ := f.backend.Playlist(p.ID)
		if got := stored.VideoIDs(); !slices.Equal(got, vids) {
			t.Errorf("expected %v, got %v", vids, got)
		}
		if !models.HasDensePositions(res.Playlist.Videos) {
			t.Error("expected dense positions")
		}

		updates := drain(prog)
		if len(updates) != 4 {
			t.Fatalf("expected 3 per-video updates and a summary, got %d", len(updates))
		}
		if last := updates[3]; last.Data.(*models.Playlist).VideoCount != 3 {
			t.Errorf("unexpected summary %+v", last)
		}
	})

	t.Run("Continues Past Failures", func(t *testing.T) {
		f := newFixture(t)
		vids := f.seedVideos("a", "b")
		p := f.backend.SeedPlaylist(f.user.ID, "Queue")

		res, err := f.engine.BulkAdd(ctx, nil, p.ID, []string{vids[0], "nope", vids[1]}, BulkAddOpts{RateLimit: 1000})
		if err != nil {
			t.Fatalf("BulkAdd failed: %v", err)
		}
		if res.Added != 2 || res.Failed != 1 || res.Results[1].Error == nil {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("Stop On Error", func(t *testing.T) {
		f := newFixture(t)
		vids := f.seedVideos("a")
		p := f.backend.SeedPlaylist(f.user.ID, "Queue")

		res, err := f.engine.BulkAdd(ctx, nil, p.ID, []string{"nope", vids[0]}, BulkAddOpts{RateLimit: 1000, StopOnError: true})
		if !api.IsKind(err, api.KindNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		if len(res.Results) != 1 || res.Added != 0 {
			t.Errorf("expected to stop after the first failure, got %+v", res)
		}
		if stored, _ := f.backend.Playlist(p.ID); stored.VideoCount != 0 {
			t.Errorf("expected empty playlist, got %d videos", stored.VideoCount)
		}
	})

	t.Run("Missing Arguments", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.engine.BulkAdd(ctx, nil, "", []string{"v1"}, BulkAddOpts{}); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if _, err := f.engine.BulkAdd(ctx, nil, "p1", nil, BulkAddOpts{}); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}
