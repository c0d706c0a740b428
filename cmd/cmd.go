// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Create config.toml if missing, initialize the history database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Revert the most recent migration instead of applying pending ones",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:   "spotify",
				Usage:  "Authorize with Spotify in the browser and save tokens to the config file",
				Action: r.SpotifyAuth,
			},
			{
				Name:    "youtube",
				Aliases: []string{"yt"},
				Usage:   "Upload a ytmusicapi headers/browser JSON file to the proxy",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Action: r.YouTubeAuth,
			},
			{
				Name:   "status",
				Usage:  "Report Spotify token state and YouTube proxy health",
				Action: r.AuthStatus,
			},
		},
	}
}

// playlistsCommand lists playlists on one platform
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlists",
		Usage: "List your playlists on a platform",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "service",
				Aliases: []string{"s"},
				Usage:   "Platform to list (spotify or youtube)",
				Value:   "spotify",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of playlists to print",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Playlists,
	}
}

// convertCommand handles playlist conversion operations
func convertCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "convert",
		Usage: "Convert playlists between services",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Match every track of a playlist and create it on the other platform",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "playlist"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "from",
						Usage: "Source platform when the playlist is an ID or name rather than a URL",
						Value: "youtube",
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Destination playlist name (defaults to the source name)",
					},
					&cli.BoolFlag{
						Name:  "public",
						Usage: "Create the destination playlist as public",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Match only, do not create a playlist",
					},
					&cli.StringFlag{
						Name:    "report",
						Aliases: []string{"o"},
						Usage:   "Write a report (.csv, .md, .json or text) to this path",
					},
					&cli.BoolFlag{
						Name:  "no-history",
						Usage: "Do not record the run in the history database",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the report as JSON",
					},
				},
				Action: r.ConvertRun,
			},
			{
				Name:  "diff",
				Usage: "Compare two playlists and show tracks missing from the destination",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "source",
						Usage:    "Source playlist URL or ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "dest",
						Usage:    "Destination playlist URL or ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "source-service",
						Usage: "Source service when --source is an ID (spotify or youtube)",
						Value: "youtube",
					},
					&cli.StringFlag{
						Name:  "dest-service",
						Usage: "Destination service when --dest is an ID (spotify or youtube)",
						Value: "spotify",
					},
				},
				Action: r.ConvertDiff,
			},
		},
	}
}

func trackFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "artist",
			Aliases: []string{"a"},
			Usage:   "Artist credit of the source track",
		},
		&cli.StringFlag{
			Name:  "to",
			Usage: "Destination platform (spotify or youtube)",
			Value: "spotify",
		},
	}
}

// matchCommand matches a single title for debugging
func matchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "match",
		Usage: "Match one title against a platform and show the decision",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "title"},
		},
		Flags: append(trackFlags(),
			&cli.StringFlag{
				Name:  "duration",
				Usage: "Source duration as m:ss",
			},
			&cli.BoolFlag{
				Name:  "explain",
				Usage: "Print the score breakdown of every candidate",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		),
		Action: r.Match,
	}
}

// queriesCommand prints generated search queries
func queriesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "queries",
		Usage: "Print the search queries generated for a title, in the order they are tried",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "title"},
		},
		Flags:  trackFlags(),
		Action: r.Queries,
	}
}

// historyCommand browses recorded conversions
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Browse recorded conversions",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent conversions",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only show conversions with this status",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of conversions",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "show",
				Usage: "Show one conversion by sequence number or ID",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "conversion"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "report",
						Aliases: []string{"o"},
						Usage:   "Write the report (.csv, .md, .json or text) to this path",
					},
				},
				Action: r.HistoryShow,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive conversion.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for playlist conversion",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "from",
				Usage: "Platform to browse playlists on (spotify or youtube)",
				Value: "youtube",
			},
			&cli.StringFlag{
				Name:  "log",
				Usage: "Log file (the terminal is taken by the UI)",
				Value: "./tmp/crossfade-tui.log",
			},
		},
		Action: r.TUI,
	}
}
