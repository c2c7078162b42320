package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/renderkit/internal/loopback"
	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/repositories"
	"github.com/desertthunder/renderkit/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file when missing, initializes the database and runs migrations.
// With --demo the demo catalog is imported into the library.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else if config, err := shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load created config, using defaults", "error", err)
		} else {
			r.config = config
			r.logger.Info("config file created", "path", configPath)
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	lib, err := r.library()
	if err != nil {
		return err
	}
	r.writePlain("✓ Database ready: %s\n", r.config.Database.Path)

	if !cmd.Bool("demo") {
		return nil
	}

	stats, err := lib.Import(ctx, demoDump(loopback.Demo().Catalog, loopback.RootNode))
	if err != nil {
		return fmt.Errorf("failed to import demo catalog: %w", err)
	}
	r.writePlain("✓ Demo catalog imported: %d nodes, %d items\n", stats.Nodes, stats.Items)
	r.writePlainln("Next steps:")
	r.writePlain("1. Run 'renderkit --backend library browse' to page through the library\n")
	r.writePlain("2. Run 'renderkit --backend library tui' to browse interactively\n")
	return nil
}

// demoDump converts a loopback catalog into a library dump, walking container items from root to
// recover each node's parent.
func demoDump(c *loopback.Catalog, root string) repositories.Dump {
	nodes := make(map[string]models.CatalogNode)
	for _, n := range c.Nodes() {
		nodes[n.ID] = n
	}

	var d repositories.Dump
	seen := map[string]bool{root: true}
	queue := []repositories.DumpNode{{CatalogNode: nodes[root]}}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		n.Items = c.Items(n.ID)
		d.Nodes = append(d.Nodes, n)

		for _, item := range n.Items {
			child, ok := nodes[item.ID]
			if !ok || seen[item.ID] {
				continue
			}
			seen[item.ID] = true
			queue = append(queue, repositories.DumpNode{CatalogNode: child, Parent: n.ID})
		}
	}
	return d
}

// LibraryImport loads a JSON catalog dump from a file into the library.
func (r *Runner) LibraryImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path to a catalog dump is required", shared.ErrMissingArgument)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	dump, err := repositories.ReadDump(f)
	if err != nil {
		return err
	}

	lib, err := r.library()
	if err != nil {
		return err
	}
	stats, err := lib.Import(ctx, dump)
	if err != nil {
		return err
	}

	r.writePlain("✓ Imported %d nodes and %d items (%d items replaced)\n", stats.Nodes, stats.Items, stats.Replaced)
	return nil
}

// LibraryExport writes the library as a dump that [Runner.LibraryImport] accepts.
func (r *Runner) LibraryExport(ctx context.Context, cmd *cli.Command) error {
	lib, err := r.library()
	if err != nil {
		return err
	}
	dump, err := lib.Export()
	if err != nil {
		return err
	}

	path := cmd.String("output")
	if path == "" {
		return r.writeJSON(dump, true)
	}

	data, err := shared.MarshalJSON(dump, true)
	if err != nil {
		return fmt.Errorf("failed to marshal library: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	r.writePlain("✓ Exported %d nodes to %s\n", len(dump.Nodes), path)
	return nil
}
