package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/vitalctx/vitalctx/internal/category"
	"github.com/vitalctx/vitalctx/internal/config"
	"github.com/vitalctx/vitalctx/internal/db"
	"github.com/vitalctx/vitalctx/internal/engine"
	"github.com/vitalctx/vitalctx/internal/errors"
	"github.com/vitalctx/vitalctx/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(database *sql.DB, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "vitalctx",
		Usage:   "Health-data chat context manager",
		Version: Version,
		Commands: []*cli.Command{
			docCmd(database),
			panelCmd(database),
			enableCmd(database, true),
			enableCmd(database, false),
			selectCmd(database, true),
			selectCmd(database, false),
			showCmd(database),
			saveCmd(database),
			descriptorCmd(database),
			uiCmd(database, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// loadEngine builds an engine over the database stores and loads it.
func loadEngine(c *cli.Context, database *sql.DB) (*engine.Engine, error) {
	eng := engine.New(db.NewDocuments(database), db.NewPanels(database), db.NewFlags(database))
	if err := eng.Load(c.Context); err != nil {
		return nil, err
	}
	return eng, nil
}

// contextState is the JSON shape the selection commands print.
type contextState struct {
	EnabledCategories []category.Category `json:"enabled_categories"`
	SelectedItemIDs   []string            `json:"selected_item_ids"`
	EstimatedTokens   int                 `json:"estimated_tokens"`
	EstimateDisplay   string              `json:"estimate_display"`
}

func stateOf(eng *engine.Engine) contextState {
	desc := eng.Descriptor()
	return contextState{
		EnabledCategories: desc.EnabledCategories,
		SelectedItemIDs:   desc.SelectedItemIDs,
		EstimatedTokens:   eng.Estimate(),
		EstimateDisplay:   eng.EstimateDisplay(),
	}
}

// docCmd creates the doc command group.
func docCmd(database *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "doc",
		Usage: "Manage health documents",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a document (reads extracted text from stdin if piped)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Required: true, Usage: "Document title"},
					&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Required: true, Usage: "Document kind: imaging_doc|checkup_doc"},
				},
				Action: func(c *cli.Context) error {
					var text string
					if stdinHasData() {
						var err error
						text, err = readStdin()
						if err != nil {
							return outputError(errors.NewInternal(err))
						}
					}

					d, err := db.NewDocuments(database).Insert(
						c.Context, c.String("title"), category.Kind(c.String("kind")), text)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(d)
				},
			},
			{
				Name:  "list",
				Usage: "List all documents, newest first",
				Action: func(c *cli.Context) error {
					docs, err := db.NewDocuments(database).FetchAll(c.Context)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"items": docs})
				},
			},
			{
				Name:      "show",
				Usage:     "Show a document by ID",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return outputError(errors.NewInvalidRequest("document id is required"))
					}
					d, err := db.NewDocuments(database).GetByID(c.Context, c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(d)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a document permanently",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return outputError(errors.NewInvalidRequest("document id is required"))
					}
					id := c.Args().First()
					if err := db.NewDocuments(database).Delete(c.Context, id); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"deleted": true, "id": id})
				},
			},
		},
	}
}

// panelCmd creates the panel command group.
func panelCmd(database *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "panel",
		Usage: "Manage lab panels",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a lab panel",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Panel name"},
					&cli.IntFlag{Name: "results", Aliases: []string{"r"}, Usage: "Number of results in the panel"},
				},
				Action: func(c *cli.Context) error {
					p, err := db.NewPanels(database).Insert(c.Context, c.String("name"), c.Int("results"))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(p)
				},
			},
			{
				Name:  "list",
				Usage: "List all lab panels, newest first",
				Action: func(c *cli.Context) error {
					panels, err := db.NewPanels(database).FetchAll(c.Context)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"items": panels})
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a lab panel permanently",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return outputError(errors.NewInvalidRequest("panel id is required"))
					}
					id := c.Args().First()
					if err := db.NewPanels(database).Delete(c.Context, id); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"deleted": true, "id": id})
				},
			},
		},
	}
}

// enableCmd creates the enable or disable command.
func enableCmd(database *sql.DB, enabled bool) *cli.Command {
	name, usage := "enable", "Enable a category for chat context and persist the change"
	if !enabled {
		name, usage = "disable", "Disable a category for chat context and persist the change"
	}
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<category>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("category is required: personal_info, lab_panels, imaging, checkups"))
			}
			eng, err := loadEngine(c, database)
			if err != nil {
				return outputError(err)
			}
			if err := eng.SetCategoryEnabled(category.Category(c.Args().First()), enabled); err != nil {
				return outputError(err)
			}
			if err := eng.Save(c.Context); err != nil {
				return outputError(err)
			}
			return outputJSON(stateOf(eng))
		},
	}
}

// selectCmd creates the select or deselect command.
func selectCmd(database *sql.DB, selected bool) *cli.Command {
	name, usage := "select", "Select an item for chat context (its category must be enabled) and persist"
	if !selected {
		name, usage = "deselect", "Deselect an item from chat context and persist"
	}
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("item id is required"))
			}
			eng, err := loadEngine(c, database)
			if err != nil {
				return outputError(err)
			}
			if err := eng.SetItemSelected(c.Args().First(), selected); err != nil {
				return outputError(err)
			}
			if err := eng.Save(c.Context); err != nil {
				return outputError(err)
			}
			return outputJSON(stateOf(eng))
		},
	}
}

// showCmd creates the show command.
func showCmd(database *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Show the current context selection and token estimate",
		Action: func(c *cli.Context) error {
			eng, err := loadEngine(c, database)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"context":   stateOf(eng),
				"documents": eng.Documents(),
				"panels":    eng.Panels(),
			})
		},
	}
}

// saveCmd creates the save command.
func saveCmd(database *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "save",
		Usage: "Validate and persist the current context selection",
		Action: func(c *cli.Context) error {
			eng, err := loadEngine(c, database)
			if err != nil {
				return outputError(err)
			}
			if err := eng.Save(c.Context); err != nil {
				return outputError(err)
			}
			return outputJSON(stateOf(eng))
		},
	}
}

// descriptorCmd creates the descriptor command.
func descriptorCmd(database *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "descriptor",
		Usage: "Print the context descriptor for chat payload assembly",
		Action: func(c *cli.Context) error {
			eng, err := loadEngine(c, database)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(eng.Descriptor())
		},
	}
}

// uiCmd creates the ui command.
func uiCmd(database *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "ui",
		Usage: "Start the read-only web dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Bind address (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port (default from config)"},
		},
		Action: func(c *cli.Context) error {
			bind := cfg.WebBind
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			port := cfg.WebPort
			if c.IsSet("port") {
				port = c.Int("port")
			}
			srv := web.NewServer(database, cfg, Version, bind, port)
			return web.Run(srv)
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
	if engErr, ok := err.(*errors.EngineError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", engErr.Code, engErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
