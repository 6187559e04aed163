// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand writes the config file and prepares the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml, initialize the database and run migrations",
		Action: r.Setup,
	}
}

// authCommand handles provider sign-in
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage provider sessions",
		Commands: []*cli.Command{
			{
				Name:      "login",
				Usage:     "Sign in to a provider through the browser",
				ArgsUsage: "<provider>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "provider"},
				},
				Action: r.AuthLogin,
			},
			{
				Name:      "logout",
				Usage:     "Forget the session of a provider",
				ArgsUsage: "<provider>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "provider"},
				},
				Action: r.AuthLogout,
			},
			{
				Name:      "status",
				Usage:     "Check every configured provider, or just one",
				ArgsUsage: "[provider]",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "provider"},
				},
				Action: r.AuthStatus,
			},
		},
	}
}

// playlistsCommand browses provider playlists
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Browse playlists of a provider",
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List the signed-in user's playlists",
				ArgsUsage: "<provider>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "provider"},
				},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of playlists to print",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.PlaylistsList,
			},
			{
				Name:      "tracks",
				Usage:     "List the tracks of a playlist",
				ArgsUsage: "<provider> <playlist-id>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "provider"},
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.PlaylistsTracks,
			},
		},
	}
}

// searchCommand runs a catalog search and scores the candidates
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search a provider catalog and show match scores",
		ArgsUsage: "<provider> <title...>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "artist",
				Aliases: []string{"a"},
				Usage:   "Artist to score candidates against",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Search,
	}
}

// selectCommand persists the source, target and playlist selection
func selectCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "select",
		Usage: "Choose what the next transfer moves",
		Commands: []*cli.Command{
			{
				Name:      "source",
				Usage:     "Set the source provider (clears selected playlists when it changes)",
				ArgsUsage: "<provider>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "provider"},
				},
				Action: r.SelectSource,
			},
			{
				Name:      "target",
				Usage:     "Set the target provider",
				ArgsUsage: "<provider>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "provider"},
				},
				Action: r.SelectTarget,
			},
			{
				Name:      "playlists",
				Usage:     "Replace the selected source playlists",
				ArgsUsage: "<playlist-id...>",
				Action:    r.SelectPlaylists,
			},
			{
				Name:   "show",
				Usage:  "Print the current selection",
				Action: r.SelectShow,
			},
			{
				Name:   "clear",
				Usage:  "Forget the current selection",
				Action: r.SelectClear,
			},
		},
	}
}

// transferCommand runs transfers
func transferCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "transfer",
		Usage: "Transfer playlists between providers",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Transfer the selected playlists one at a time",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "source",
						Usage: "Source provider (defaults to the selection)",
					},
					&cli.StringFlag{
						Name:  "target",
						Usage: "Target provider (defaults to the selection)",
					},
					&cli.StringSliceFlag{
						Name:    "playlist",
						Aliases: []string{"p"},
						Usage:   "Source playlist id, repeatable (defaults to the selection)",
					},
					&cli.StringFlag{
						Name:  "on-error",
						Usage: "What to do when a playlist fails: prompt, retry, skip or abort",
						Value: "prompt",
					},
					&cli.IntFlag{
						Name:  "max-attempts",
						Usage: "Attempts per playlist before a retry becomes a skip (0 = unlimited)",
						Value: 3,
					},
					&cli.StringFlag{
						Name:  "report",
						Usage: "Write a report to this path (.txt, .md, .csv or .json)",
					},
				},
				Action: r.TransferRun,
			},
			{
				Name:  "ui",
				Usage: "Interactive TUI for playlist transfer",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "source",
						Usage: "Source provider (defaults to the selection)",
					},
					&cli.StringFlag{
						Name:  "target",
						Usage: "Target provider (defaults to the selection)",
					},
				},
				Action: r.TUI,
			},
		},
	}
}

// historyCommand prints the transfer bookkeeping
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show past transfers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "status",
				Usage: "Only show transfers with this status (running, done, failed, skipped)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of transfers to show",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
	}
}
