// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations for configuration and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration, database and run migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// migrateCommand handles migration batch operations
func migrateCommand(r *Runner) *cli.Command {
	batchFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "entries",
			Aliases: []string{"e"},
			Usage:   "Comma-separated entry IDs to migrate (default: every library entry)",
		},
		&cli.StringFlag{
			Name:    "sources",
			Aliases: []string{"s"},
			Usage:   "Comma-separated target source IDs, in priority order (default: configured targets)",
		},
		&cli.BoolFlag{
			Name:  "best-of",
			Usage: "Search every source and keep the candidate with the most chapters",
		},
		&cli.BoolFlag{
			Name:  "first-match",
			Usage: "Stop at the first source with a usable candidate",
		},
		&cli.BoolFlag{
			Name:  "ranked",
			Usage: "Pick candidates by fuzzy rank instead of exact title match",
		},
		&cli.IntFlag{
			Name:  "max-concurrent",
			Usage: "Bound on in-flight source requests (default: configured value)",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Report format: text, csv or json",
			Value:   "text",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write the report to files with this base path",
		},
	}

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Migrate library entries between catalogue sources",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Search target sources for candidates without touching the library",
				Flags:  batchFlags,
				Action: r.MigrateRun,
			},
			{
				Name:  "apply",
				Usage: "Search target sources and carry user state onto found candidates",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:  "replace",
						Usage: "Remove the old entries from the library after a successful apply",
					},
				}, batchFlags...),
				Action: r.MigrateApply,
			},
			{
				Name:  "status",
				Usage: "Show the most recent migration batch",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "id",
						Usage: "Batch ID to inspect (default: most recent)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.MigrateStatus,
			},
			{
				Name:  "history",
				Usage: "List past migration batches",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of batches to list",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Filter by batch status (running, completed, cancelled)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.MigrateHistory,
			},
		},
	}
}

// sourcesCommand handles catalogue source operations
func sourcesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sources",
		Usage: "Catalogue source operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List configured catalogue sources",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SourcesList,
			},
			{
				Name:  "search",
				Usage: "Search one source by title, for picking manual overrides",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "query",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "source",
						Aliases:  []string{"s"},
						Usage:    "Source ID to search",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SourcesSearch,
			},
		},
	}
}

// libraryCommand handles maintenance operations over the library database.
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Library maintenance operations",
		Commands: []*cli.Command{
			{
				Name:  "export",
				Usage: "Export library entries with their chapters to files",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "entries",
						Aliases: []string{"e"},
						Usage:   "Comma-separated entry IDs to export (default: every library entry)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: json, csv or txt",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: watari_export_{timestamp})",
					},
					&cli.IntFlag{
						Name:    "workers",
						Aliases: []string{"w"},
						Usage:   "Concurrent export workers",
						Value:   5,
					},
				},
				Action: r.LibraryExport,
			},
			{
				Name:  "update",
				Usage: "Refresh metadata and chapter lists from each entry's own source",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "entries",
						Aliases: []string{"e"},
						Usage:   "Comma-separated entry IDs to refresh (default: every library entry)",
					},
					&cli.IntFlag{
						Name:    "workers",
						Aliases: []string{"w"},
						Usage:   "Concurrent refresh workers",
						Value:   3,
					},
				},
				Action: r.LibraryUpdate,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive migration.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for library migration",
		Action:  r.TUI,
	}
}
