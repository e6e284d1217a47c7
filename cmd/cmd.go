// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func searchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "search",
			Aliases: []string{"s"},
			Usage:   "Free-text search over title, artist and album",
		},
		&cli.StringFlag{
			Name:    "query",
			Aliases: []string{"q"},
			Usage:   `Filter expression, e.g. 'service = "spotify" AND duration < 300'`,
		},
	}
}

func trackInputFlags(required bool) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "service",
			Usage: "Music service the track comes from (spotify, youtube or local)",
			Value: "local",
		},
		&cli.StringFlag{
			Name:  "service-id",
			Usage: "Track ID on the music service",
		},
		&cli.StringFlag{
			Name:     "title",
			Aliases:  []string{"t"},
			Usage:    "Track title",
			Required: required,
		},
		&cli.StringFlag{
			Name:     "artist",
			Aliases:  []string{"a"},
			Usage:    "Track artist",
			Required: required,
		},
		&cli.StringFlag{
			Name:  "album",
			Usage: "Album name",
		},
		&cli.IntFlag{
			Name:  "duration",
			Usage: "Length in seconds",
		},
		&cli.StringFlag{
			Name:  "isrc",
			Usage: "International Standard Recording Code",
		},
	}
}

func idArgument() []cli.Argument {
	return []cli.Argument{
		&cli.StringArg{Name: "id"},
	}
}

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
			Value: true,
		},
	}
}

// tracksCommand handles operations on the track library
func tracksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tracks",
		Aliases: []string{"t"},
		Usage:   "Create, read, update and delete tracks",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List a page of tracks",
				Flags: append(searchFlags(),
					&cli.IntFlag{
						Name:    "page",
						Aliases: []string{"p"},
						Usage:   "Zero-based page number",
					},
					&cli.IntFlag{
						Name:  "size",
						Usage: "Tracks per page, 0 for all",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "sort",
						Usage: `Order, e.g. "artist, duration desc"`,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, csv, markdown or json",
						Value:   "text",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to this file instead of stdout",
					},
					&cli.BoolFlag{
						Name:  "export",
						Usage: "Write to tracks.{ext} unless --output is given",
					},
				),
				Action: r.ListTracks,
			},
			{
				Name:      "get",
				Usage:     "Show one or more tracks by ID",
				ArgsUsage: "ID [ID...]",
				Flags:     jsonFlags(),
				Action:    r.GetTracks,
			},
			{
				Name:   "create",
				Usage:  "Add a track",
				Flags:  append(trackInputFlags(true), jsonFlags()...),
				Action: r.CreateTrack,
			},
			{
				Name:      "update",
				Usage:     "Change the fields given as flags, keeping the rest",
				Arguments: idArgument(),
				Flags:     append(trackInputFlags(false), jsonFlags()...),
				Action:    r.UpdateTrack,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a track",
				Arguments: idArgument(),
				Action:    r.DeleteTrack,
			},
			{
				Name:   "count",
				Usage:  "Count matching tracks",
				Flags:  searchFlags(),
				Action: r.CountTracks,
			},
			{
				Name:      "exists",
				Usage:     "Report whether a track exists",
				Arguments: idArgument(),
				Action:    r.TrackExists,
			},
			{
				Name:      "import",
				Usage:     "Create every track in a JSON file concurrently",
				ArgsUsage: "FILE",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Action: r.ImportTracks,
			},
		},
	}
}

// browseCommand launches the interactive track browser
func browseCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "browse",
		Usage: "Browse the track library in an interactive terminal UI",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "size",
				Usage: "Tracks per page",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "sort",
				Usage: `Order, e.g. "artist, duration desc"`,
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the UI owns the terminal",
				Value: "./tmp/crux-tui.log",
			},
		},
		Action: r.Browse,
	}
}
