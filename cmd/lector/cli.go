package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/lector/internal/config"
	"github.com/hpungsan/lector/internal/errors"
	"github.com/hpungsan/lector/internal/fetch"
	"github.com/hpungsan/lector/internal/mcp"
	"github.com/hpungsan/lector/internal/ops"
	"github.com/hpungsan/lector/internal/summarize"
	"github.com/hpungsan/lector/internal/web"
)

// maxStdinBytes caps instructions read from stdin.
const maxStdinBytes = 64 * 1024

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config, deps ops.Deps) *cli.App {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	app := &cli.App{
		Name:    "lector",
		Usage:   "Safari Reading List summarizer",
		Version: Version,
		Commands: []*cli.Command{
			syncCmd(db, cfg),
			processCmd(db, deps),
			listCmd(db),
			showCmd(db),
			deleteCmd(db),
			settingsCmd(db),
			exportCmd(db),
			fetchCmd(cfg),
			providersCmd(cfg),
			serveCmd(db, cfg, deps),
			mcpCmd(db, cfg, deps),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// syncCmd creates the sync command.
func syncCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Import new Safari Reading List entries",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bookmarks", Aliases: []string{"b"}, Usage: "Path to Bookmarks.plist"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Sync(c.Context, db, cfg, ops.SyncInput{
				BookmarksPath: c.String("bookmarks"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// processCmd creates the process command.
func processCmd(db *sql.DB, deps ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "process",
		Usage:     "Fetch and summarize pending items",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "reprocess", Aliases: []string{"r"}, Usage: "Refetch and resummarize every item"},
			&cli.StringFlag{Name: "instructions", Aliases: []string{"i"}, Usage: "Custom instructions for this run"},
			&cli.StringFlag{Name: "provider", Aliases: []string{"p"}, Usage: "LLM provider: anthropic|openai|gemini"},
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "Model name"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ProcessInput{
				Reprocess:          c.Bool("reprocess"),
				CustomInstructions: c.String("instructions"),
				Provider:           c.String("provider"),
				Model:              c.String("model"),
			}

			// Check for positional ID argument
			if c.NArg() > 0 {
				id, err := parseID(c.Args().First())
				if err != nil {
					return outputError(err)
				}
				input.ItemID = id
			}

			output, err := ops.Process(c.Context, db, deps, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored items",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "unprocessed", Aliases: []string{"u"}, Usage: "Only items without a summary"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ListItems(c.Context, db, ops.ListItemsInput{
				UnprocessedOnly: c.Bool("unprocessed"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// showCmd creates the show command.
func showCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one item with its content and summary",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := parseID(c.Args().First())
			if err != nil {
				return outputError(err)
			}

			output, err := ops.GetItem(c.Context, db, id)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Permanently delete an item",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := parseID(c.Args().First())
			if err != nil {
				return outputError(err)
			}

			output, err := ops.DeleteItem(c.Context, db, id)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// settingsCmd creates the settings command with get and set subcommands.
func settingsCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Show or change custom summarization instructions",
		Subcommands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Print current settings",
				Action: func(c *cli.Context) error {
					output, err := ops.GetSettings(c.Context, db)
					if err != nil {
						return outputError(err)
					}

					return outputJSON(output)
				},
			},
			{
				Name:      "set",
				Usage:     "Replace custom instructions (argument, or stdin when omitted)",
				ArgsUsage: "[instructions]",
				Action: func(c *cli.Context) error {
					var instructions string
					switch {
					case c.NArg() > 0:
						instructions = strings.Join(c.Args().Slice(), " ")
					case stdinHasData():
						text, err := readStdin()
						if err != nil {
							return outputError(err)
						}
						instructions = text
					default:
						return outputError(errors.NewInvalidRequest("instructions required: pass an argument or pipe them on stdin"))
					}

					output, err := ops.UpdateSettings(c.Context, db, ops.UpdateSettingsInput{
						CustomInstructions: &instructions,
					})
					if err != nil {
						return outputError(err)
					}

					return outputJSON(output)
				},
			},
		},
	}
}

// exportCmd creates the export command.
func exportCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write items and summaries to a Markdown digest or JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Output file (default: ~/.lector/exports/reading-list-<timestamp>.<ext>)"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: ops.ExportMarkdown, Usage: "Output format: markdown|jsonl"},
			&cli.BoolFlag{Name: "processed", Usage: "Only items that have a summary"},
		},
		Action: func(c *cli.Context) error {
			baseDir, err := config.BaseDir()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			output, err := ops.Export(c.Context, db, baseDir, ops.ExportInput{
				Path:          c.String("path"),
				Format:        c.String("format"),
				ProcessedOnly: c.Bool("processed"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// fetchCmd creates the fetch command.
func fetchCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Print the extracted text of a page without storing it",
		ArgsUsage: "<url>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "readability", Usage: "Reduce the page to its main article first"},
		},
		Action: func(c *cli.Context) error {
			url := strings.TrimSpace(c.Args().First())
			if url == "" {
				return outputError(errors.NewInvalidRequest("url is required"))
			}

			fetchCfg := *cfg
			fetchCfg.UseReadability = cfg.UseReadability || c.Bool("readability")

			text, err := fetch.NewFetcher(&fetchCfg, nil).FetchText(c.Context, url)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(map[string]any{"url": url, "content": text})
		},
	}
}

// providersCmd creates the providers command.
func providersCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "providers",
		Usage: "List supported LLM providers",
		Action: func(c *cli.Context) error {
			dispatcher := summarize.NewDispatcher(cfg, nil)
			defaultProvider := strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
			if defaultProvider == "" {
				defaultProvider = summarize.DefaultProvider
			}

			return outputJSON(map[string]any{
				"providers": dispatcher.Providers(),
				"default":   defaultProvider,
			})
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(db *sql.DB, cfg *config.Config, deps ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web UI and JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Listen address (overrides config)"},
			&cli.IntFlag{Name: "port", Usage: "Listen port (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			serveCfg := *cfg
			if bind := c.String("bind"); bind != "" {
				serveCfg.Bind = bind
			}
			if port := c.Int("port"); port > 0 {
				serveCfg.Port = port
			}

			srv := web.NewServer(db, &serveCfg, deps, Version)
			if err := web.Run(srv); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(db *sql.DB, cfg *config.Config, deps ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server on stdio",
		Action: func(c *cli.Context) error {
			if err := mcp.Run(db, cfg, deps, Version); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	lErr := errors.As(err)
	return cli.Exit(fmt.Sprintf("[%s] %s", lErr.Code, lErr.Message), 1)
}

// parseID parses a positive item id argument.
func parseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.NewInvalidRequest("item id is required")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewInvalidRequest("invalid item id: " + s)
	}
	return id, nil
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most maxStdinBytes from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, maxStdinBytes+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if len(data) > maxStdinBytes {
		return "", errors.NewInvalidRequest(fmt.Sprintf("stdin exceeds %d bytes", maxStdinBytes))
	}
	return strings.TrimSpace(string(data)), nil
}
