// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: table, json or csv",
		Value:   "table",
	}
}

func rendererFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "renderer",
		Aliases: []string{"r"},
		Usage:   "Renderer ID or name (default: first renderer)",
	}
}

func rangeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "start",
			Usage: "First item index (inclusive)",
			Value: 0,
		},
		&cli.IntFlag{
			Name:  "end",
			Usage: "Last item index (inclusive, default: start + page_size - 1)",
			Value: -1,
		},
	}
}

func optionFlag(value string) cli.Flag {
	return &cli.StringFlag{
		Name:    "option",
		Aliases: []string{"o"},
		Usage:   "play-now, play-next, add-to-end or replace-and-play",
		Value:   value,
	}
}

// setupCommand initializes the config file and the local library.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config.toml and initialize the local library database",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "demo",
				Usage: "Import the demo catalog into the library",
			},
		},
		Action: r.Setup,
	}
}

// libraryCommand handles the local SQLite catalog.
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Manage the local catalog library",
		Commands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Load a JSON catalog dump into the library",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Action: r.LibraryImport,
			},
			{
				Name:  "export",
				Usage: "Write the library as a JSON catalog dump",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default: stdout)",
					},
				},
				Action: r.LibraryExport,
			},
		},
	}
}

// browseCommand pages through a catalog node.
func browseCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "browse",
		Aliases: []string{"ls"},
		Usage:   "List a page of a catalog node",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "node"},
		},
		Flags: append(rangeFlags(),
			formatFlag(),
			&cli.BoolFlag{
				Name:  "info",
				Usage: "Describe the node instead of listing its items",
			},
		),
		Action: r.Browse,
	}
}

// searchCommand searches a catalog node.
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search a catalog node",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "keyword"},
		},
		Flags: append(rangeFlags(),
			formatFlag(),
			&cli.StringFlag{
				Name:    "node",
				Aliases: []string{"n"},
				Usage:   "Node to search",
				Value:   "library",
			},
			&cli.StringFlag{
				Name:    "criterion",
				Aliases: []string{"by"},
				Usage:   "Search criterion (default: the node's first)",
			},
			&cli.BoolFlag{
				Name:  "more",
				Usage: "Keep fetching continuation pages until the results are exhausted",
			},
		),
		Action: r.Search,
	}
}

// queueCommand handles play queue operations.
func queueCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "queue",
		Aliases: []string{"q"},
		Usage:   "Play queue operations",
		Flags:   []cli.Flag{rendererFlag()},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "Show the queue",
				Flags:  []cli.Flag{formatFlag()},
				Action: r.QueueList,
			},
			{
				Name:  "add",
				Usage: "Add a catalog item to the queue",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "item"},
				},
				Flags: []cli.Flag{
					optionFlag("add-to-end"),
					&cli.StringFlag{
						Name:    "node",
						Aliases: []string{"n"},
						Usage:   "Node that lists the item",
						Value:   "library",
					},
				},
				Action: r.QueueAdd,
			},
			{
				Name:  "add-all",
				Usage: "Add every queueable item of a node to the queue",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "node"},
				},
				Flags: []cli.Flag{
					optionFlag("add-to-end"),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of items to consider",
					},
					&cli.Float64Flag{
						Name:  "rate",
						Usage: "Page fetches per second (default: unlimited)",
					},
				},
				Action: r.QueueAddAll,
			},
			{
				Name:   "remove",
				Usage:  "Remove entries by ID",
				Action: r.QueueRemove,
			},
			{
				Name:  "move",
				Usage: "Move entries by ID before the given position",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     "to",
						Usage:    "Insert position (0-based, in the queue without the moved entries)",
						Required: true,
					},
				},
				Action: r.QueueMove,
			},
			{
				Name:   "clear",
				Usage:  "Remove every entry",
				Action: r.QueueClear,
			},
			{
				Name:  "play",
				Usage: "Start playback at an entry",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "entry"},
				},
				Action: r.QueuePlay,
			},
			{
				Name:  "export",
				Usage: "Write the queue to a file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Export format: json, csv, markdown or txt",
						Value: "json",
					},
					&cli.StringFlag{
						Name:     "output",
						Aliases:  []string{"o"},
						Usage:    "Output file path",
						Required: true,
					},
				},
				Action: r.QueueExport,
			},
		},
	}
}

// rendererCommand handles renderer state and commands.
func rendererCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "renderer",
		Aliases: []string{"r"},
		Usage:   "Renderer state and playback commands",
		Flags:   []cli.Flag{rendererFlag()},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List renderers",
				Flags:  []cli.Flag{formatFlag()},
				Action: r.RendererList,
			},
			{
				Name:   "status",
				Usage:  "Fetch and show a renderer's state",
				Flags:  []cli.Flag{formatFlag()},
				Action: r.RendererStatus,
			},
			{
				Name:  "volume",
				Usage: "Set the volume",
				Arguments: []cli.Argument{
					&cli.IntArg{Name: "level"},
				},
				Action: r.RendererVolume,
			},
			{
				Name:  "mute",
				Usage: "Mute, unmute or toggle",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "state", UsageText: "on, off or toggle"},
				},
				Action: r.RendererMute,
			},
			{Name: "play", Usage: "Start playback", Action: r.RendererPlay},
			{Name: "pause", Usage: "Pause playback", Action: r.RendererPause},
			{Name: "stop", Usage: "Stop playback", Action: r.RendererStop},
			{Name: "next", Usage: "Skip to the next track", Action: r.RendererNext},
			{Name: "previous", Aliases: []string{"prev"}, Usage: "Go back to the previous track", Action: r.RendererPrevious},
			{
				Name:  "repeat",
				Usage: "Set the repeat mode, or cycle it when no mode is given",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "mode", UsageText: "off, all or one"},
				},
				Action: r.RendererRepeat,
			},
			{
				Name:  "shuffle",
				Usage: "Set the shuffle mode, or toggle it when no mode is given",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "mode", UsageText: "on or off"},
				},
				Action: r.RendererShuffle,
			},
			{
				Name:  "setting",
				Usage: "Change a speaker setting",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "value"},
				},
				Action: r.RendererSetting,
			},
			{
				Name:  "power",
				Usage: "Set the power state",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "state", UsageText: "on, off or standby"},
				},
				Action: r.RendererPower,
			},
		},
	}
}

// groupCommand handles renderer groups.
func groupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "group",
		Aliases: []string{"g"},
		Usage:   "Renderer group operations",
		Flags:   []cli.Flag{rendererFlag()},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List groups",
				Flags:  []cli.Flag{formatFlag()},
				Action: r.GroupList,
			},
			{
				Name:  "create",
				Usage: "Create a group led by --renderer with the given members",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Usage:    "Group name",
						Required: true,
					},
				},
				Action: r.GroupCreate,
			},
			{
				Name:  "join",
				Usage: "Add a renderer to the group led by --renderer",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "member"},
				},
				Action: r.GroupJoin,
			},
			{
				Name:   "leave",
				Usage:  "Remove --renderer from its group",
				Action: r.GroupLeave,
			},
			{
				Name:  "volume",
				Usage: "Set the zone volume",
				Arguments: []cli.Argument{
					&cli.IntArg{Name: "level"},
				},
				Action: r.GroupVolume,
			},
			{
				Name:  "mute",
				Usage: "Mute or unmute the zone",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "state", UsageText: "on, off or toggle"},
				},
				Action: r.GroupMute,
			},
		},
	}
}

// dumpCommand snapshots every renderer and queue.
func dumpCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "dump",
		Usage: "Snapshot all renderers and queues as JSON",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "save",
				Usage: "Store the snapshot in the library database",
			},
			&cli.IntFlag{
				Name:  "keep",
				Usage: "With --save, number of stored snapshots to keep (0 keeps all)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the snapshot to a file instead of stdout",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List stored snapshots",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of snapshots",
						Value: 20,
					},
				},
				Action: r.DumpList,
			},
			{
				Name:  "show",
				Usage: "Print a stored snapshot (default: the latest)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.DumpShow,
			},
		},
		Action: r.Dump,
	}
}

// serveCommand runs the push-event callback server.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the event callback server and log state changes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: [server] host:port)",
			},
			&cli.BoolFlag{
				Name:  "expose",
				Usage: "Also serve the catalog and renderers in the bridge wire format",
			},
			&cli.BoolFlag{
				Name:  "mirror",
				Usage: "Publish device events to the MQTT broker",
			},
			&cli.Float64Flag{
				Name:  "rate-limit",
				Usage: "Requests per second accepted (0 disables limiting)",
				Value: 50,
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for interactive browsing.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive catalog browser",
		Flags:   []cli.Flag{rendererFlag()},
		Action:  r.TUI,
	}
}

// apiCommand handles direct bridge API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct calls to the renderer bridge",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET to the bridge, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
		},
	}
}
