package tasks

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

// BulkAddOpts configures [Engine.BulkAdd].
type BulkAddOpts struct {
	RateLimit   float64 // requests per second, default 5
	StopOnError bool
}

// AddResult is the outcome of adding one video.
type AddResult struct {
	VideoID string
	Error   error
}

type BulkAddResult struct {
	PlaylistID string
	Added      int
	Failed     int
	Results    []AddResult
	Playlist   *models.Playlist // state after the last successful add
}

// BulkAdd appends videoIDs to a playlist one at a time, in order.
//
// Failures are recorded per video. With StopOnError the first failure ends the run and is returned.
func (e *Engine) BulkAdd(ctx context.Context, prog chan<- ProgressUpdate, playlistID string, videoIDs []string, opts BulkAddOpts) (*BulkAddResult, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	if len(videoIDs) == 0 {
		return nil, fmt.Errorf("%w: no videos to add", shared.ErrMissingArgument)
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	result := &BulkAddResult{PlaylistID: playlistID, Results: make([]AddResult, 0, len(videoIDs))}

	for i, id := range videoIDs {
		if err := limiter.Wait(ctx); err != nil {
			return result, err
		}

		res := AddResult{VideoID: id}
		p, err := e.playlists.AddVideo(ctx, playlistID, id)
		if err != nil {
			res.Error = err
			result.Failed++
		} else {
			result.Added++
			result.Playlist = p
		}
		result.Results = append(result.Results, res)
		sendProgress(prog, addVideoUpdate(i+1, len(videoIDs), res))

		if err != nil {
			e.logger.Warn("failed to add video", "playlist", playlistID, "video", id, "err", err)
			if opts.StopOnError || ctx.Err() != nil {
				return result, err
			}
		}
	}

	if result.Playlist != nil {
		sendProgress(prog, addCompletedUpdate(len(videoIDs), result.Playlist))
	}
	return result, nil
}
