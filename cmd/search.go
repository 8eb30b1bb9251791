package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/search"
	"github.com/desertthunder/vidx/internal/shared"
)

type searchOutput struct {
	Query     string            `json:"query"`
	Videos    []models.Video    `json:"videos"`
	Playlists []models.Playlist `json:"playlists"`
}

// SearchRun searches videos and playlists in parallel and records the term in the local history.
func (r *Runner) SearchRun(ctx context.Context, cmd *cli.Command) error {
	query, err := requireArg(cmd, "query")
	if err != nil {
		return err
	}
	t := models.SearchType(cmd.String("type"))
	switch t {
	case models.SearchAll, models.SearchVideos, models.SearchPlaylists:
	default:
		return fmt.Errorf("%w: type must be all, videos or playlists", shared.ErrInvalidArgument)
	}

	c, err := r.container(ctx)
	if err != nil {
		return err
	}
	p := search.Params{
		Query:    query,
		Type:     t,
		Sort:     cmd.String("sort"),
		Duration: cmd.String("duration"),
		Uploaded: cmd.String("uploaded"),
		Page:     cmd.Int("page"),
	}
	runErr := c.Search.Run(ctx, p)
	res := c.Search.Snapshot()
	if res.Empty() && runErr != nil {
		return runErr
	}
	if runErr != nil {
		r.logger.Warn("search partially failed", "error", runErr)
	}

	out := searchOutput{Query: query, Videos: res.Videos.Items, Playlists: res.Playlists.Items}
	return r.emit(cmd, out, func() error {
		if res.Empty() {
			return r.writePlain("No results for %q\n", query)
		}
		if len(res.Videos.Items) > 0 {
			r.writePlain("Videos (%d of %d):\n", len(res.Videos.Items), res.Videos.Pagination.Total)
			for i, v := range res.Videos.Items {
				r.writeVideoLine(i+1, v)
			}
		}
		if len(res.Playlists.Items) > 0 {
			r.writePlain("Playlists (%d of %d):\n", len(res.Playlists.Items), res.Playlists.Pagination.Total)
			for i, p := range res.Playlists.Items {
				r.writePlain("%d. %s (%d videos)\n   ID: %s\n", i+1, p.Title, p.VideoCount, p.ID)
			}
		}
		return nil
	})
}

// SearchHistory prints saved search terms, newest first.
func (r *Runner) SearchHistory(ctx context.Context, cmd *cli.Command) error {
	c, err := r.container(ctx)
	if err != nil {
		return err
	}
	var terms []string
	if cmd.Bool("all") {
		terms, err = c.Search.History(ctx)
	} else {
		terms, err = c.Search.Recent(ctx)
	}
	if err != nil {
		return err
	}
	if terms == nil {
		terms = []string{}
	}
	return r.emit(cmd, terms, func() error {
		if len(terms) == 0 {
			return r.writePlain("No search history\n")
		}
		for _, t := range terms {
			r.writePlain("%s\n", t)
		}
		return nil
	})
}

func (r *Runner) SearchClear(ctx context.Context, cmd *cli.Command) error {
	c, err := r.container(ctx)
	if err != nil {
		return err
	}
	if term := cmd.StringArg("term"); term != "" {
		if err := c.Search.RemoveHistory(ctx, term); err != nil {
			return err
		}
		return r.writePlain("✓ Removed %q from search history\n", term)
	}
	if err := c.Search.ClearHistory(ctx); err != nil {
		return err
	}
	return r.writePlain("✓ Search history cleared\n")
}
