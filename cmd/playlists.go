package main

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/vidx/internal/app"
	"github.com/desertthunder/vidx/internal/formatter"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
	"github.com/desertthunder/vidx/internal/tasks"
)

// exportSummary is the --json shape of a bulk export; errors are flattened to strings.
type exportSummary struct {
	OutputDirectory   string                    `json:"output_directory"`
	ManifestPath      string                    `json:"manifest_path,omitempty"`
	TotalPlaylists    int                       `json:"total_playlists"`
	SuccessfulExports int                       `json:"successful_exports"`
	FailedExports     int                       `json:"failed_exports"`
	Playlists         []formatter.ManifestEntry `json:"playlists"`
}

type addSummary struct {
	PlaylistID string            `json:"playlist_id"`
	Added      int               `json:"added"`
	Failed     int               `json:"failed"`
	Errors     map[string]string `json:"errors,omitempty"`
}

func (r *Runner) writePlaylistPage(cmd *cli.Command, page *models.Page[models.Playlist]) error {
	return r.emit(cmd, page, func() error {
		if len(page.Items) == 0 {
			return r.writePlain("No playlists found\n")
		}
		r.writePlain("Found %d playlists:\n\n", len(page.Items))
		for i, p := range page.Items {
			r.writePlain("%d. %s\n", i+1, p.Title)
			if p.Description != "" {
				r.writePlain("   Description: %s\n", p.Description)
			}
			r.writePlain("   ID: %s\n", p.ID)
			r.writePlain("   Videos: %d\n", p.VideoCount)
			r.writePlain("   Visibility: %s\n", shared.VisibilityString(p.IsPrivate))
			r.writePlain("\n")
		}
		if page.Pagination.HasMore {
			r.writePlain("More results: --page %d\n", page.Pagination.Next())
		}
		return nil
	})
}

func (r *Runner) writePlaylist(cmd *cli.Command, p *models.Playlist) error {
	return r.emit(cmd, p, func() error {
		r.writePlainHeader(p.Title)
		r.writePlain("ID: %s\n", p.ID)
		if p.User != nil {
			r.writePlain("Owner: %s\n", p.User.Username)
		}
		if p.Description != "" {
			r.writePlain("Description: %s\n", p.Description)
		}
		r.writePlain("Visibility: %s\n", shared.VisibilityString(p.IsPrivate))
		r.writePlain("Videos: %d\n\n", p.VideoCount)
		for _, e := range p.Videos {
			r.writePlain("%d. %s [%s]\n", e.Position+1, e.Video.Title, shared.FormatDuration(e.Video.Duration))
			r.writePlain("   ID: %s\n", e.Video.ID)
		}
		return nil
	})
}

// PlaylistsList lists playlists, optionally for one owner.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	c, err := r.container(ctx)
	if err != nil {
		return err
	}
	var page *models.Page[models.Playlist]
	if user := cmd.String("user"); user != "" {
		page, err = c.PlaylistService.UserPlaylists(ctx, user, listParams(cmd))
	} else {
		page, err = c.PlaylistService.List(ctx, listParams(cmd))
	}
	if err != nil {
		return err
	}
	return r.writePlaylistPage(cmd, page)
}

// PlaylistsGet shows a playlist with its entries in position order.
func (r *Runner) PlaylistsGet(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	c, err := r.container(ctx)
	if err != nil {
		return err
	}
	p, err := c.PlaylistService.Get(ctx, id)
	if err != nil {
		return err
	}
	return r.writePlaylist(cmd, p)
}

// PlaylistsCreate creates a playlist.
func (r *Runner) PlaylistsCreate(ctx context.Context, cmd *cli.Command) error {
	title, err := requireArg(cmd, "title")
	if err != nil {
		return err
	}
	c, err := r.authed(ctx)
	if err != nil {
		return err
	}
	p, err := c.Playlists.Create(ctx, models.PlaylistInput{
		Title:       title,
		Description: cmd.String("description"),
		IsPrivate:   cmd.Bool("private"),
	})
	if err != nil {
		return err
	}
	if !cmd.Bool("json") {
		r.writePlain("✓ Playlist created\n")
	}
	return r.writePlaylist(cmd, p)
}

// PlaylistsUpdate applies the flags that were set as a partial update.
func (r *Runner) PlaylistsUpdate(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	var u models.PlaylistUpdate
	if cmd.IsSet("title") {
		u.Title = new(string)
		*u.Title = cmd.String("title")
	}
	if cmd.IsSet("description") {
		u.Description = new(string)
		*u.Description = cmd.String("description")
	}
	if cmd.IsSet("visibility") {
		var private bool
		switch v := cmd.String("visibility"); v {
		case "private":
			private = true
		case "public":
		default:
			return fmt.Errorf("%w: visibility must be public or private, got %q", shared.ErrInvalidArgument, v)
		}
		u.IsPrivate = &private
	}
	if u.Title == nil && u.Description == nil && u.IsPrivate == nil {
		return fmt.Errorf("%w: nothing to update", shared.ErrMissingArgument)
	}

	c, err := r.authed(ctx)
	if err != nil {
		return err
	}
	p, err := c.Playlists.Update(ctx, id, u)
	if err != nil {
		return err
	}
	if !cmd.Bool("json") {
		r.writePlain("✓ Playlist updated\n")
	}
	return r.writePlaylist(cmd, p)
}

// PlaylistsDelete deletes a playlist.
func (r *Runner) PlaylistsDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	c, err := r.authed(ctx)
	if err != nil {
		return err
	}
	if err := c.Playlists.Delete(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted playlist %s\n", id)
}

// args returns exactly n positional arguments.
func args(cmd *cli.Command, names ...string) ([]string, error) {
	out := cmd.Args().Slice()
	if len(out) < len(names) {
		return nil, fmt.Errorf("%w: %s", shared.ErrMissingArgument, names[len(out)])
	}
	return out[:len(names)], nil
}

// PlaylistsAdd appends a video.
func (r *Runner) PlaylistsAdd(ctx context.Context, cmd *cli.Command) error {
	a, err := args(cmd, "playlist-id", "video-id")
	if err != nil {
		return err
	}
	c, err := r.authed(ctx)
	if err != nil {
		return err
	}
	p, err := c.Playlists.AddVideo(ctx, a[0], a[1])
	if err != nil {
		return err
	}
	if !cmd.Bool("json") {
		r.writePlain("✓ Added %s\n", a[1])
	}
	return r.writePlaylist(cmd, p)
}

// PlaylistsRemove removes a video; the server closes the gap in positions.
func (r *Runner) PlaylistsRemove(ctx context.Context, cmd *cli.Command) error {
	a, err := args(cmd, "playlist-id", "video-id")
	if err != nil {
		return err
	}
	c, err := r.authed(ctx)
	if err != nil {
		return err
	}
	p, err := c.Playlists.RemoveVideo(ctx, a[0], a[1])
	if err != nil {
		return err
	}
	if !cmd.Bool("json") {
		r.writePlain("✓ Removed %s\n", a[1])
	}
	return r.writePlaylist(cmd, p)
}

// PlaylistsMove moves one entry. Positions on the command line start at 1, matching 'playlists get'.
func (r *Runner) PlaylistsMove(ctx context.Context, cmd *cli.Command) error {
	a, err := args(cmd, "playlist-id", "from", "to")
	if err != nil {
		return err
	}
	from, err := strconv.Atoi(a[1])
	if err != nil {
		return fmt.Errorf("%w: from must be a number", shared.ErrInvalidArgument)
	}
	to, err := strconv.Atoi(a[2])
	if err != nil {
		return fmt.Errorf("%w: to must be a number", shared.ErrInvalidArgument)
	}

	c, err := r.authed(ctx)
	if err != nil {
		return err
	}
	if err := c.Playlists.Open(ctx, a[0]); err != nil {
		return err
	}
	p, err := c.Playlists.Move(ctx, a[0], from-1, to-1)
	if err != nil {
		return err
	}
	if !cmd.Bool("json") {
		r.writePlain("✓ Moved %d → %d\n", from, to)
	}
	return r.writePlaylist(cmd, p)
}

// printProgress writes updates until ch is closed. The returned wait blocks until it has drained.
func (r *Runner) printProgress(quiet bool) (chan tasks.ProgressUpdate, func()) {
	ch := make(chan tasks.ProgressUpdate, 64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for u := range ch {
			if !quiet {
				r.writePlain("%s\n", u.Message)
			}
		}
	}()
	return ch, func() {
		close(ch)
		wg.Wait()
	}
}

// ownPlaylistIDs pages through every playlist of the signed-in user.
func ownPlaylistIDs(ctx context.Context, c *app.Container) ([]string, error) {
	s := c.Auth.Session()
	if s.User == nil {
		return nil, shared.ErrNotAuthenticated
	}
	var ids []string
	p := models.ListParams{Page: 1, Limit: 100}
	for {
		page, err := c.PlaylistService.UserPlaylists(ctx, s.User.ID, p)
		if err != nil {
			return nil, err
		}
		for _, pl := range page.Items {
			ids = append(ids, pl.ID)
		}
		if !page.Pagination.HasMore || len(page.Items) == 0 {
			return ids, nil
		}
		p.Page = page.Pagination.Next()
	}
}

// PlaylistsExport exports playlists concurrently and writes a manifest next to the files.
func (r *Runner) PlaylistsExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	c, err := r.container(ctx)
	if err != nil {
		return err
	}

	ids := cmd.Args().Slice()
	if cmd.Bool("mine") {
		mine, err := ownPlaylistIDs(ctx, c)
		if err != nil {
			return err
		}
		ids = append(ids, mine...)
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one playlist id, or --mine", shared.ErrMissingArgument)
	}

	prog, wait := r.printProgress(cmd.Bool("json"))
	res, err := c.Tasks.BulkExport(ctx, prog, ids, tasks.BulkExportOpts{
		Format:     format,
		OutputDir:  cmd.String("output"),
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
		CoverURL: func(p *models.Playlist) string {
			if len(p.Videos) == 0 {
				return ""
			}
			if v := p.Videos[0].Video; v.ThumbnailURL != "" {
				return v.ThumbnailURL
			}
			return c.VideoService.ThumbnailURL(p.Videos[0].Video.ID, "large")
		},
	})
	wait()
	if err != nil {
		return err
	}

	summary := exportSummary{
		OutputDirectory:   res.OutputDirectory,
		ManifestPath:      res.ManifestPath,
		TotalPlaylists:    res.TotalPlaylists,
		SuccessfulExports: res.SuccessfulExports,
		FailedExports:     res.FailedExports,
	}
	for _, pr := range res.Results {
		e := formatter.ManifestEntry{PlaylistID: pr.PlaylistID, Title: pr.Title, Status: formatter.StatusSuccess, Files: pr.Files}
		if !pr.Success {
			e.Status = formatter.StatusFailed
			if pr.Error != nil {
				e.Error = pr.Error.Error()
			}
		}
		summary.Playlists = append(summary.Playlists, e)
	}

	return r.emit(cmd, summary, func() error {
		r.writePlainln("Exported %d of %d playlists to %s", res.SuccessfulExports, res.TotalPlaylists, res.OutputDirectory)
		if res.FailedExports > 0 {
			r.writePlain("%d failed:\n", res.FailedExports)
			for _, e := range summary.Playlists {
				if e.Status == formatter.StatusFailed {
					r.writePlain("   %s: %s\n", e.PlaylistID, e.Error)
				}
			}
		}
		return r.writePlain("Manifest: %s\n", res.ManifestPath)
	})
}

// PlaylistsBulkAdd appends many videos in the given order.
func (r *Runner) PlaylistsBulkAdd(ctx context.Context, cmd *cli.Command) error {
	all := cmd.Args().Slice()
	if len(all) < 2 {
		return fmt.Errorf("%w: a playlist id and at least one video id", shared.ErrMissingArgument)
	}
	c, err := r.authed(ctx)
	if err != nil {
		return err
	}

	prog, wait := r.printProgress(cmd.Bool("json"))
	res, err := c.Tasks.BulkAdd(ctx, prog, all[0], all[1:], tasks.BulkAddOpts{
		RateLimit:   cmd.Float("rate"),
		StopOnError: cmd.Bool("stop-on-error"),
	})
	wait()
	if res == nil {
		return err
	}

	summary := addSummary{PlaylistID: res.PlaylistID, Added: res.Added, Failed: res.Failed}
	for _, a := range res.Results {
		if a.Error != nil {
			if summary.Errors == nil {
				summary.Errors = map[string]string{}
			}
			summary.Errors[a.VideoID] = a.Error.Error()
		}
	}
	if outErr := r.emit(cmd, summary, func() error {
		return r.writePlainln("Added %d of %d videos", res.Added, len(all)-1)
	}); outErr != nil {
		return outErr
	}
	return err
}

// PlaylistsSpecial lists the favorites or watch-later list, or adds/removes one video.
func (r *Runner) PlaylistsSpecial(ctx context.Context, cmd *cli.Command) error {
	list := models.SpecialList(cmd.Name)
	c, err := r.authed(ctx)
	if err != nil {
		return err
	}

	switch {
	case cmd.String("add") != "":
		id := cmd.String("add")
		if err := c.Playlists.AddToList(ctx, list, id); err != nil {
			return err
		}
		return r.writePlain("✓ Added %s to %s\n", id, list)
	case cmd.String("remove") != "":
		id := cmd.String("remove")
		if err := c.Playlists.RemoveFromList(ctx, list, id); err != nil {
			return err
		}
		return r.writePlain("✓ Removed %s from %s\n", id, list)
	}

	videos, err := c.Playlists.LoadList(ctx, list)
	if err != nil {
		return err
	}
	return r.emit(cmd, videos, func() error {
		if len(videos) == 0 {
			return r.writePlain("%s is empty\n", list)
		}
		for i, v := range videos {
			r.writeVideoLine(i+1, v)
		}
		return nil
	})
}
