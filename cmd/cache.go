package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/kurtheiz/agistme/pkg/cache"
	"github.com/kurtheiz/agistme/pkg/db"
	"github.com/kurtheiz/agistme/pkg/storage"
	"github.com/kurtheiz/agistme/pkg/watch"
)

// CacheCommand creates the cache command
func CacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and maintain the local cache",
		Commands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Show cache statistics and schema status",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withApp(c, showCacheStats)
				},
			},
			{
				Name:  "clear",
				Usage: "Remove cached entries",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "namespace",
						Usage: "Only clear this namespace (results, meta or seen)",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return withApp(c, func(a *app) error {
						ns := c.String("namespace")
						if err := a.backend.Clear(ns); err != nil {
							return fmt.Errorf("clearing cache: %w", err)
						}
						if ns == "" {
							ns = "all namespaces"
						}
						fmt.Printf("Cleared %s\n", ns)
						return nil
					})
				},
			},
			{
				Name:  "prune",
				Usage: "Remove expired entries and compact the database",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withApp(c, pruneCache)
				},
			},
		},
	}
}

func showCacheStats(a *app) error {
	stats, err := a.backend.Stats()
	if err != nil {
		return fmt.Errorf("getting stats: %w", err)
	}
	formatCacheStats(stats, a.queryPolicy())

	sqlite, ok := a.backend.(*storage.SQLiteBackend)
	if !ok {
		fmt.Printf("\nBackend: memory (nothing is persisted)\n")
		return nil
	}

	fmt.Printf("\nDatabase: %s\n", sqlite.Path())
	status, err := db.NewMigrationManager(sqlite.DB()).GetMigrationStatus()
	if err != nil {
		return fmt.Errorf("getting migration status: %w", err)
	}
	fmt.Printf("Schema: %d applied, %d pending\n", len(status.Applied), len(status.Pending))
	for _, m := range status.Applied {
		fmt.Printf("  ✓ %03d %s (%s)\n", m.Version, m.Name, formatTime(*m.AppliedAt))
	}
	for _, m := range status.Pending {
		fmt.Printf("  ✗ %03d %s\n", m.Version, m.Name)
	}
	return nil
}

func pruneCache(a *app) error {
	removed, err := a.newStore().Prune()
	if err != nil {
		return fmt.Errorf("pruning results: %w", err)
	}
	seen, err := cache.New(a.backend, watch.SeenPolicy).Prune(watch.NamespaceSeen)
	if err != nil {
		return fmt.Errorf("pruning seen listings: %w", err)
	}
	fmt.Printf("Removed %d expired entries\n", removed+seen)

	if sqlite, ok := a.backend.(*storage.SQLiteBackend); ok {
		if err := sqlite.Optimize(); err != nil {
			return fmt.Errorf("optimizing database: %w", err)
		}
		fmt.Println("Database optimized")
	}
	return nil
}
