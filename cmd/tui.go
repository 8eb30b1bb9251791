package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/vidx/internal/shared"
	"github.com/desertthunder/vidx/internal/ui"
)

// TUI launches the interactive terminal UI.
//
// Logs go to a file so they do not interfere with rendering. Unless --no-events is set,
// processing events are streamed into the upload store while the program runs.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	fileLogger, f, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer f.Close()
	shared.SetLogLevel(fileLogger, r.config.Log.ParseLevel())
	r.SetLogger(fileLogger)

	c, err := r.container(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !cmd.Bool("no-events") && c.Auth.IsAuthenticated() {
		go func() {
			if err := c.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
				fileLogger.Warn("realtime listener stopped", "error", err)
			}
		}()
	}

	model := ui.NewModel(ctx, ui.Deps{
		Videos:    c.Videos,
		Playlists: c.Playlists,
		Uploads:   c.Uploads,
		Search:    c.Search,
	})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
