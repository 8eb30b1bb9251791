package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/vidx/internal/api"
	"github.com/desertthunder/vidx/internal/formatter"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

const (
	defaultWorkers   = 5
	maxWorkers       = 10
	defaultRateLimit = 5.0
	ManifestFile     = "export_manifest.json"
)

// BulkExportOpts contains configuration for bulk playlist exports.
type BulkExportOpts struct {
	Format     formatter.Format
	OutputDir  string                           // default: vidx_export_{epoch}
	NumWorkers int                              // default 5, capped at 10
	RateLimit  float64                          // requests per second, default 5
	CoverURL   func(p *models.Playlist) string // optional, markdown only
}

// PlaylistExportResult is the outcome of exporting one playlist.
type PlaylistExportResult struct {
	PlaylistID string
	Title      string
	Success    bool
	Files      []string
	Error      error
}

// BulkExportResult summarizes a bulk export. Results follow the order of the requested ids.
type BulkExportResult struct {
	TotalPlaylists    int
	SuccessfulExports int
	FailedExports     int
	Results           []PlaylistExportResult
	OutputDirectory   string
	ManifestPath      string
}

type exportJob struct {
	index int
	id    string
}

type indexedResult struct {
	index int
	res   PlaylistExportResult
}

// BulkExport exports playlists concurrently with rate limiting and progress tracking, then writes a manifest.
//
// Per-playlist failures are recorded in the result; the returned error covers setup, cancellation and the manifest.
func (e *Engine) BulkExport(ctx context.Context, prog chan<- ProgressUpdate, ids []string, opts BulkExportOpts) (*BulkExportResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no playlists to export", shared.ErrMissingArgument)
	}
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("vidx_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = defaultWorkers
	}
	opts.NumWorkers = min(opts.NumWorkers, maxWorkers, len(ids))
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan exportJob)
	results := make(chan indexedResult, len(ids))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				results <- indexedResult{job.index, e.exportOne(ctx, limiter, job.id, opts)}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, id := range ids {
			sendProgress(prog, fetchPlaylistUpdate(i+1, len(ids), id))
			select {
			case jobs <- exportJob{i, id}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*PlaylistExportResult, len(ids))
	completed := 0
	for r := range results {
		completed++
		res := r.res
		ordered[r.index] = &res
		if res.Success {
			sendProgress(prog, exportCompletedUpdate(completed, len(ids), res.Title, len(res.Files)))
		} else {
			sendProgress(prog, exportFailedUpdate(completed, len(ids), res.Title, res.Error))
		}
	}

	result := &BulkExportResult{
		TotalPlaylists:  len(ids),
		OutputDirectory: opts.OutputDir,
		Results:         make([]PlaylistExportResult, 0, len(ids)),
	}
	manifest := &formatter.Manifest{
		Format:          opts.Format,
		ExportedAt:      time.Now().UTC(),
		OutputDirectory: opts.OutputDir,
		TotalPlaylists:  len(ids),
	}
	for i, res := range ordered {
		if res == nil {
			res = &PlaylistExportResult{PlaylistID: ids[i], Title: ids[i], Error: context.Cause(ctx)}
		}
		result.Results = append(result.Results, *res)
		entry := formatter.ManifestEntry{PlaylistID: res.PlaylistID, Title: res.Title, Files: res.Files}
		if res.Success {
			result.SuccessfulExports++
			entry.Status = formatter.StatusSuccess
		} else {
			result.FailedExports++
			entry.Status = formatter.StatusFailed
			if res.Error != nil {
				entry.Error = res.Error.Error()
			}
		}
		manifest.Add(entry)
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	manifestPath := filepath.Join(opts.OutputDir, ManifestFile)
	sendProgress(prog, manifestUpdate(manifestPath))
	if err := formatter.WriteManifest(manifest, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	e.logger.Info("bulk export finished", "ok", result.SuccessfulExports, "failed", result.FailedExports, "dir", opts.OutputDir)
	return result, nil
}

// exportOne fetches a single playlist and writes it in the requested format.
func (e *Engine) exportOne(ctx context.Context, limiter *rate.Limiter, id string, opts BulkExportOpts) PlaylistExportResult {
	result := PlaylistExportResult{PlaylistID: id, Title: fmt.Sprintf("Unknown (%s)", id), Files: []string{}}

	if err := limiter.Wait(ctx); err != nil {
		result.Error = err
		return result
	}

	p, err := api.RetryValue(ctx, e.retries, e.retryDelay, func(ctx context.Context) (*models.Playlist, error) {
		return e.playlists.Get(ctx, id)
	})
	if err != nil {
		result.Error = fmt.Errorf("failed to fetch playlist: %w", err)
		return result
	}
	result.Title = p.Title

	var cover string
	if opts.Format == formatter.FormatMarkdown && opts.CoverURL != nil {
		cover = opts.CoverURL(p)
	}

	files, err := formatter.WriteExport(ctx, p, opts.Format, opts.OutputDir, cover)
	if err != nil {
		result.Error = err
		return result
	}
	result.Files = files
	result.Success = true
	return result
}
