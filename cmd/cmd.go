// submodule cmd contains command definitions
package main

import (
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/vidx/internal/formatter"
)

func outputFlags(flags ...cli.Flag) []cli.Flag {
	return append(flags,
		&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
		&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output"},
	)
}

func listFlags(flags ...cli.Flag) []cli.Flag {
	return outputFlags(append(flags,
		&cli.IntFlag{Name: "page", Usage: "Page number", Value: 1},
		&cli.IntFlag{Name: "limit", Usage: "Items per page", Value: 20},
		&cli.StringFlag{Name: "sort", Usage: "Sort order"},
	)...)
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand creates the config file and runs database migrations.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml and initialize the local database",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// authCommand handles account and session operations.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Account and session commands",
		Commands: []*cli.Command{
			{
				Name:  "register",
				Usage: "Create an account and sign in",
				Flags: outputFlags(
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Required: true, Sources: cli.EnvVars("VIDX_PASSWORD")},
					&cli.StringFlag{Name: "display-name"},
				),
				Action: r.AuthRegister,
			},
			{
				Name:  "login",
				Usage: "Sign in with an email or username",
				Flags: outputFlags(
					&cli.StringFlag{Name: "login", Aliases: []string{"l"}, Usage: "Email or username", Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Required: true, Sources: cli.EnvVars("VIDX_PASSWORD")},
				),
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Sign out and forget the saved session",
				Action: r.AuthLogout,
			},
			{
				Name:   "me",
				Usage:  "Show the signed-in user",
				Flags:  outputFlags(),
				Action: r.AuthMe,
			},
			{
				Name:   "refresh",
				Usage:  "Rotate the saved token pair",
				Action: r.AuthRefresh,
			},
			{
				Name:      "verify",
				Usage:     "Verify an email address with the emailed token",
				Arguments: []cli.Argument{&cli.StringArg{Name: "token"}},
				Action:    r.AuthVerify,
			},
			{
				Name:      "resend",
				Usage:     "Resend the verification email",
				Arguments: []cli.Argument{&cli.StringArg{Name: "email"}},
				Action:    r.AuthResend,
			},
			{
				Name:      "forgot",
				Usage:     "Request a password reset email",
				Arguments: []cli.Argument{&cli.StringArg{Name: "email"}},
				Action:    r.AuthForgot,
			},
			{
				Name:  "reset",
				Usage: "Set a new password with a reset token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "token", Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Required: true, Sources: cli.EnvVars("VIDX_PASSWORD")},
				},
				Action: r.AuthReset,
			},
		},
	}
}

// videosCommand handles browsing and managing videos.
func videosCommand(r *Runner) *cli.Command {
	idArg := []cli.Argument{&cli.StringArg{Name: "id"}}
	return &cli.Command{
		Name:    "videos",
		Aliases: []string{"v"},
		Usage:   "Browse and manage videos",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List videos",
				Flags:  listFlags(&cli.StringFlag{Name: "category"}, &cli.StringFlag{Name: "user", Usage: "Only videos uploaded by this user id"}),
				Action: r.VideosList,
			},
			{
				Name:      "get",
				Usage:     "Show one video",
				Arguments: idArg,
				Flags:     outputFlags(),
				Action:    r.VideosGet,
			},
			{
				Name:   "trending",
				Usage:  "List trending videos",
				Flags:  listFlags(),
				Action: r.VideosTrending,
			},
			{
				Name:      "search",
				Usage:     "Search videos",
				Arguments: []cli.Argument{&cli.StringArg{Name: "query"}},
				Flags:     listFlags(&cli.StringFlag{Name: "duration"}, &cli.StringFlag{Name: "uploaded"}),
				Action:    r.VideosSearch,
			},
			{
				Name:      "like",
				Usage:     "Toggle a like",
				Arguments: idArg,
				Flags:     outputFlags(),
				Action:    r.VideosLike,
			},
			{
				Name:      "dislike",
				Usage:     "Toggle a dislike",
				Arguments: idArg,
				Flags:     outputFlags(),
				Action:    r.VideosDislike,
			},
			{
				Name:      "view",
				Usage:     "Record a view",
				Arguments: idArg,
				Action:    r.VideosView,
			},
			{
				Name:      "update",
				Usage:     "Edit a video's metadata",
				Arguments: idArg,
				Flags: outputFlags(
					&cli.StringFlag{Name: "title"},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "visibility", Usage: "public, unlisted or private"},
					&cli.StringFlag{Name: "category"},
					&cli.StringSliceFlag{Name: "tag"},
				),
				Action: r.VideosUpdate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a video",
				Arguments: idArg,
				Action:    r.VideosDelete,
			},
			{
				Name:      "open",
				Usage:     "Open the video stream in the default browser",
				Arguments: idArg,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "quality", Usage: "Stream quality, e.g. 720p"},
					&cli.BoolFlag{Name: "print", Usage: "Print the URL instead of opening it"},
				},
				Action: r.VideosOpen,
			},
			{
				Name:   "categories",
				Usage:  "List browse categories",
				Flags:  outputFlags(),
				Action: r.VideosCategories,
			},
			{
				Name:   "history",
				Usage:  "Show or clear watch history",
				Flags:  listFlags(&cli.BoolFlag{Name: "clear", Usage: "Clear watch history"}),
				Action: r.VideosHistory,
			},
		},
	}
}

// uploadCommand uploads one file and optionally waits for processing.
func uploadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "Upload a video file",
		Arguments: []cli.Argument{&cli.StringArg{Name: "file"}},
		Flags: outputFlags(
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Title (default: file name)"},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}},
			&cli.StringFlag{Name: "visibility", Value: "public"},
			&cli.StringFlag{Name: "category"},
			&cli.StringSliceFlag{Name: "tag"},
			&cli.BoolFlag{Name: "wait", Aliases: []string{"w"}, Usage: "Wait until the server finishes processing"},
			&cli.DurationFlag{Name: "poll", Usage: "Status poll interval when realtime events are unavailable", Value: defaultPollInterval},
		),
		Action: r.Upload,
	}
}

// playlistsCommand handles playlist management, exports and the special lists.
func playlistsCommand(r *Runner) *cli.Command {
	idArg := []cli.Argument{&cli.StringArg{Name: "id"}}
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Manage playlists",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List playlists",
				Flags:  listFlags(&cli.StringFlag{Name: "user", Usage: "Only playlists owned by this user id"}),
				Action: r.PlaylistsList,
			},
			{
				Name:      "get",
				Usage:     "Show a playlist and its videos",
				Arguments: idArg,
				Flags:     outputFlags(),
				Action:    r.PlaylistsGet,
			},
			{
				Name:      "create",
				Usage:     "Create a playlist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "title"}},
				Flags: outputFlags(
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}},
					&cli.BoolFlag{Name: "private"},
				),
				Action: r.PlaylistsCreate,
			},
			{
				Name:      "update",
				Usage:     "Edit a playlist",
				Arguments: idArg,
				Flags: outputFlags(
					&cli.StringFlag{Name: "title"},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "visibility", Usage: "public or private"},
				),
				Action: r.PlaylistsUpdate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a playlist",
				Arguments: idArg,
				Action:    r.PlaylistsDelete,
			},
			{
				Name:      "add",
				Usage:     "Append a video to a playlist",
				ArgsUsage: "<playlist-id> <video-id>",
				Flags:     outputFlags(),
				Action:    r.PlaylistsAdd,
			},
			{
				Name:      "remove",
				Usage:     "Remove a video from a playlist",
				ArgsUsage: "<playlist-id> <video-id>",
				Flags:     outputFlags(),
				Action:    r.PlaylistsRemove,
			},
			{
				Name:      "move",
				Usage:     "Move the entry at position <from> to position <to>",
				ArgsUsage: "<playlist-id> <from> <to>",
				Flags:     outputFlags(),
				Action:    r.PlaylistsMove,
			},
			{
				Name:      "export",
				Usage:     "Export playlists to files",
				ArgsUsage: "<playlist-id>...",
				Flags: outputFlags(
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "json, csv, markdown or txt", Value: string(formatter.FormatJSON)},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output directory (default: vidx_export_{timestamp})"},
					&cli.IntFlag{Name: "workers", Usage: "Concurrent exports", Value: 5},
					&cli.FloatFlag{Name: "rate", Usage: "Requests per second", Value: 5},
					&cli.BoolFlag{Name: "mine", Usage: "Export every playlist of the signed-in user"},
				),
				Action: r.PlaylistsExport,
			},
			{
				Name:      "bulk-add",
				Usage:     "Add many videos to a playlist in order",
				ArgsUsage: "<playlist-id> <video-id>...",
				Flags: outputFlags(
					&cli.FloatFlag{Name: "rate", Usage: "Requests per second", Value: 5},
					&cli.BoolFlag{Name: "stop-on-error", Usage: "Stop at the first failed add"},
				),
				Action: r.PlaylistsBulkAdd,
			},
			specialListCommand(r, "favorites", "Favorite videos"),
			specialListCommand(r, "watch-later", "Videos saved for later"),
		},
	}
}

func specialListCommand(r *Runner, name, usage string) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: outputFlags(
			&cli.StringFlag{Name: "add", Usage: "Video id to add"},
			&cli.StringFlag{Name: "remove", Usage: "Video id to remove"},
		),
		Action: r.PlaylistsSpecial,
	}
}

// searchCommand runs combined searches and manages search history.
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search videos and playlists",
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Search videos and playlists at once",
				Arguments: []cli.Argument{&cli.StringArg{Name: "query"}},
				Flags: outputFlags(
					&cli.StringFlag{Name: "type", Usage: "all, videos or playlists", Value: "all"},
					&cli.StringFlag{Name: "sort"},
					&cli.StringFlag{Name: "duration"},
					&cli.StringFlag{Name: "uploaded"},
					&cli.IntFlag{Name: "page", Value: 1},
				),
				Action: r.SearchRun,
			},
			{
				Name:   "history",
				Usage:  "Show recent search terms",
				Flags:  outputFlags(&cli.BoolFlag{Name: "all", Usage: "Show the full history instead of the recent terms"}),
				Action: r.SearchHistory,
			},
			{
				Name:      "clear",
				Usage:     "Clear search history, or remove one term",
				Arguments: []cli.Argument{&cli.StringArg{Name: "term"}},
				Action:    r.SearchClear,
			},
		},
	}
}

// cacheCommand manages the local response cache.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the response cache",
		Commands: []*cli.Command{
			{
				Name:  "clear",
				Usage: "Drop cached responses",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "namespace", Aliases: []string{"n"}, Usage: "Only clear these namespaces (videos, playlists, history, categories, users)"},
				},
				Action: r.CacheClear,
			},
		},
	}
}

func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Interactive terminal UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-file", Usage: "Where logs go while the TUI runs", Value: "./tmp/vidx-tui.log"},
			&cli.BoolFlag{Name: "no-events", Usage: "Do not listen for realtime processing events"},
		},
		Action: r.TUI,
	}
}
