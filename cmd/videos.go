package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/services"
	"github.com/desertthunder/vidx/internal/shared"
)

const defaultPollInterval = 3 * time.Second

func listParams(cmd *cli.Command) models.ListParams {
	p := models.ListParams{Page: cmd.Int("page"), Limit: cmd.Int("limit"), Sort: cmd.String("sort")}
	if cmd.IsSet("category") {
		p.Category = cmd.String("category")
	}
	return p
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := cmd.StringArg(name)
	if v == "" {
		return "", fmt.Errorf("%w: %s", shared.ErrMissingArgument, name)
	}
	return v, nil
}

func (r *Runner) writeVideoLine(i int, v models.Video) {
	r.writePlain("%d. %s [%s]\n", i, v.Title, shared.FormatDuration(v.Duration))
	r.writePlain("   ID: %s\n", v.ID)
	r.writePlain("   %s views • %s likes • %s dislikes", shared.FormatCount(v.Views), shared.FormatCount(v.Likes), shared.FormatCount(v.Dislikes))
	switch v.UserReaction {
	case models.ReactionLike:
		r.writePlain(" • liked")
	case models.ReactionDislike:
		r.writePlain(" • disliked")
	}
	r.writePlain("\n")
}

func (r *Runner) writeVideoPage(cmd *cli.Command, page *models.Page[models.Video]) error {
	return r.emit(cmd, page, func() error {
		if len(page.Items) == 0 {
			return r.writePlain("No videos found\n")
		}
		start := (max(page.Pagination.Page, 1) - 1) * page.Pagination.Limit
		for i, v := range page.Items {
			r.writeVideoLine(start+i+1, v)
		}
		if page.Pagination.HasMore {
			r.writePlainln("More results: --page %d", page.Pagination.Next())
		}
		return nil
	})
}

func (r *Runner) writeVideo(cmd *cli.Command, v *models.Video) error {
	return r.emit(cmd, v, func() error {
		r.writePlainHeader(v.Title)
		r.writePlain("ID: %s\n", v.ID)
		if v.User != nil {
			r.writePlain("Uploader: %s\n", v.User.Username)
		}
		r.writePlain("Duration: %s\n", shared.FormatDuration(v.Duration))
		r.writePlain("Views: %s\n", shared.FormatCount(v.Views))
		r.writePlain("Likes: %s  Dislikes: %s\n", shared.FormatCount(v.Likes), shared.FormatCount(v.Dislikes))
		r.writePlain("Visibility: %s\n", v.Visibility)
		if v.Status != "" {
			r.writePlain("Status: %s\n", v.Status)
		}
		if v.Category != "" {
			r.writePlain("Category: %s\n", v.Category)
		}
		if len(v.Tags) > 0 {
			r.writePlain("Tags: %s\n", strings.Join(v.Tags, ", "))
		}
		if v.Description != "" {
			r.writePlainln("%s", v.Description)
		}
		return nil
	})
}

// VideosList lists videos, optionally for one uploader.
func (r *Runner) VideosList(ctx context.Context, cmd *cli.Command) error {
	c, err := r.container(ctx)
	if err != nil {
		return err
	}
	var page *models.Page[models.Video]
	if user := cmd.String("user"); user != "" {
		page, err = c.VideoService.UserVideos(ctx, user, listParams(cmd))
	} else {
		page, err = c.VideoService.List(ctx, listParams(cmd))
	}
	if err != nil {
		return err
	}
	return r.writeVideoPage(cmd, page)
}

// VideosTrending lists trending videos.
func (r *Runner) VideosTrending(ctx context.Context, cmd *cli.Command) error {
	c, err := r.container(ctx)
	if err != nil {
		return err
	}
	page, err := c.VideoService.Trending(ctx, listParams(cmd))
	if err != nil {
		return err
	}
	return r.writeVideoPage(cmd, page)
}

// VideosSearch searches videos only. See [Runner.SearchRun] for the combined search.
func (r *Runner) VideosSearch(ctx context.Context, cmd *cli.Command) error {
	query, err := requireArg(cmd, "query")
	if err != nil {
		return err
	}
	c, err := r.container(ctx)
	if err != nil {
		return err
	}
	page, err := c.VideoService.Search(ctx, models.SearchQuery{
		Query:    query,
		Type:     models.SearchVideos,
		Sort:     cmd.String("sort"),
		Duration: cmd.String("duration"),
		Uploaded: cmd.String("uploaded"),
		Page:     cmd.Int("page"),
		Limit:    cmd.Int("limit"),
	})
	if err != nil {
		return err
	}
	return r.writeVideoPage(cmd, page)
}

// VideosGet shows one video.
func (r *Runner) VideosGet(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	c, err := r.container(ctx)
	if err != nil {
		return err
	}
	v, err := c.VideoService.Get(ctx, id)
	if err != nil {
		return err
	}
	return r.writeVideo(cmd, v)
}

func (r *Runner) react(ctx context.Context, cmd *cli.Command, dislike bool) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	c, err := r.authed(ctx)
	if err != nil {
		return err
	}
	send := c.VideoService.Like
	if dislike {
		send = c.VideoService.Dislike
	}
	st, err := send(ctx, id)
	if err != nil {
		return err
	}
	return r.emit(cmd, st, func() error {
		reaction := "none"
		if st.UserReaction != models.ReactionNone {
			reaction = string(st.UserReaction)
		}
		return r.writePlain("✓ %s • %s likes • %s dislikes • your reaction: %s\n",
			id, shared.FormatCount(st.Likes), shared.FormatCount(st.Dislikes), reaction)
	})
}

// VideosLike toggles a like. Liking a disliked video switches the reaction.
func (r *Runner) VideosLike(ctx context.Context, cmd *cli.Command) error {
	return r.react(ctx, cmd, false)
}

// VideosDislike toggles a dislike.
func (r *Runner) VideosDislike(ctx context.Context, cmd *cli.Command) error {
	return r.react(ctx, cmd, true)
}

// VideosView records a view.
func (r *Runner) VideosView(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	c, err := r.container(ctx)
	if err != nil {
		return err
	}
	if err := c.VideoService.RecordView(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ View recorded for %s\n", id)
}

// VideosUpdate applies the flags that were set as a partial update.
func (r *Runner) VideosUpdate(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	var u models.VideoUpdate
	if cmd.IsSet("title") {
		u.Title = new(string)
		*u.Title = cmd.String("title")
	}
	if cmd.IsSet("description") {
		u.Description = new(string)
		*u.Description = cmd.String("description")
	}
	if cmd.IsSet("visibility") {
		vis := models.Visibility(cmd.String("visibility"))
		u.Visibility = &vis
	}
	if cmd.IsSet("category") {
		u.Category = new(string)
		*u.Category = cmd.String("category")
	}
	if cmd.IsSet("tag") {
		u.Tags = cmd.StringSlice("tag")
	}
	if u.Title == nil && u.Description == nil && u.Visibility == nil && u.Category == nil && u.Tags == nil {
		return fmt.Errorf("%w: nothing to update", shared.ErrMissingArgument)
	}

	c, err := r.authed(ctx)
	if err != nil {
		return err
	}
	v, err := c.VideoService.Update(ctx, id, u)
	if err != nil {
		return err
	}
	if !cmd.Bool("json") {
		r.writePlain("✓ Video updated\n")
	}
	return r.writeVideo(cmd, v)
}

// VideosDelete deletes a video.
func (r *Runner) VideosDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	c, err := r.authed(ctx)
	if err != nil {
		return err
	}
	if err := c.VideoService.Delete(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted %s\n", id)
}

// VideosOpen records a view and hands the stream URL to the system browser.
func (r *Runner) VideosOpen(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	c, err := r.container(ctx)
	if err != nil {
		return err
	}
	url := c.VideoService.StreamURL(id, cmd.String("quality"))
	if cmd.Bool("print") {
		return r.writePlain("%s\n", url)
	}
	if err := c.VideoService.RecordView(ctx, id); err != nil {
		r.logger.Warn("failed to record view", "id", id, "error", err)
	}
	if err := shared.OpenURL(url); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return r.writePlain("Opened %s\n", url)
}

// VideosCategories lists browse categories.
func (r *Runner) VideosCategories(ctx context.Context, cmd *cli.Command) error {
	c, err := r.container(ctx)
	if err != nil {
		return err
	}
	cats, err := c.VideoService.Categories(ctx)
	if err != nil {
		return err
	}
	return r.emit(cmd, cats, func() error {
		for _, cat := range cats {
			r.writePlain("%-20s %s\n", cat.Slug, cat.Name)
		}
		return nil
	})
}

// VideosHistory shows or clears the watch history.
func (r *Runner) VideosHistory(ctx context.Context, cmd *cli.Command) error {
	c, err := r.authed(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("clear") {
		if err := c.VideoService.ClearHistory(ctx); err != nil {
			return err
		}
		return r.writePlain("✓ Watch history cleared\n")
	}
	page, err := c.VideoService.History(ctx, listParams(cmd))
	if err != nil {
		return err
	}
	return r.emit(cmd, page, func() error {
		if len(page.Items) == 0 {
			return r.writePlain("No watch history\n")
		}
		for i, h := range page.Items {
			r.writePlain("%d. %s (%s)\n", i+1, h.Video.Title, h.WatchedAt.Local().Format(time.DateTime))
			r.writePlain("   ID: %s\n", h.Video.ID)
		}
		return nil
	})
}

// Upload streams a file with progress, then optionally waits for processing.
//
// While waiting, realtime events and status polling run side by side; whichever sees the
// terminal state first completes the task.
func (r *Runner) Upload(ctx context.Context, cmd *cli.Command) error {
	path, err := requireArg(cmd, "file")
	if err != nil {
		return err
	}
	c, err := r.authed(ctx)
	if err != nil {
		return err
	}

	meta := models.VideoMetadata{
		Title:       cmd.String("title"),
		Description: cmd.String("description"),
		Visibility:  models.Visibility(cmd.String("visibility")),
		Category:    cmd.String("category"),
		Tags:        cmd.StringSlice("tag"),
	}
	u, err := services.NewFileUpload(path, meta)
	if err != nil {
		return err
	}

	quiet := cmd.Bool("json")
	last := -1
	unsubscribe := c.Uploads.Subscribe(func() {
		for _, t := range c.Uploads.Active() {
			if pct := int(t.Progress); !quiet && t.Status == models.UploadUploading && pct/10 > last/10 {
				last = pct
				r.writePlain("\rUploading %s %3d%%", t.FileName, pct)
			}
		}
	})
	task, err := c.Uploads.Start(ctx, u)
	unsubscribe()
	if !quiet {
		r.writePlain("\n")
	}
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	if cmd.Bool("wait") && !task.Terminal() {
		if !quiet {
			r.writePlain("Processing %s...\n", task.VideoID)
		}
		listenCtx, cancel := context.WithCancel(ctx)
		go func() {
			if err := c.Listen(listenCtx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Debug("realtime listener stopped", "error", err)
			}
		}()
		task, err = c.Uploads.WaitProcessed(ctx, c.VideoService, task.ID, cmd.Duration("poll"))
		cancel()
		if err != nil {
			return err
		}
	}

	return r.emit(cmd, task, func() error {
		switch task.Status {
		case models.UploadCompleted:
			return r.writePlain("✓ %s is ready (ID: %s)\n", task.Title, task.VideoID)
		case models.UploadError:
			return fmt.Errorf("processing failed: %s", task.Error)
		default:
			return r.writePlain("✓ Uploaded %s (ID: %s), processing on the server\n", task.Title, task.VideoID)
		}
	})
}
