package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/kurtheiz/agistme/pkg/cache"
	"github.com/kurtheiz/agistme/pkg/config"
	"github.com/kurtheiz/agistme/pkg/realtime"
	"github.com/kurtheiz/agistme/pkg/watch"
)

// WatchCommand creates the watch command
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Report new listings for saved searches with notifications on",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Check once and exit",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return withApp(c, func(a *app) error {
				if c.Bool("once") {
					return checkOnce(ctx, a)
				}
				return watchSavedSearches(ctx, a, c.String("config"))
			})
		},
	}
}

func (a *app) newWatcher(hub *realtime.Hub) *watch.Watcher {
	seen := cache.New(a.backend, watch.SeenPolicy)
	return watch.New(watch.Config{Interval: a.cfg.Watch.Interval.Duration}, a.savedSearches(), a.api, seen, hub)
}

func checkOnce(ctx context.Context, a *app) error {
	matches, err := a.newWatcher(nil).Check(ctx)
	for _, m := range matches {
		printMatch(m)
	}
	if len(matches) == 0 && err == nil {
		fmt.Println(noDataStyle.Render("No new listings."))
	}
	return err
}

func watchSavedSearches(ctx context.Context, a *app, configPath string) error {
	hub := realtime.NewHub(0)
	id, events := hub.Register()
	defer hub.Unregister(id)

	w := a.newWatcher(hub)
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer w.Stop()

	go func() {
		for e := range events {
			if e.Type == realtime.TypeMatch && e.Match != nil {
				printMatch(*e.Match)
			}
		}
	}()

	fmt.Println("Watching saved searches. Press Ctrl+C to stop.")
	runUntilSignal(ctx, configPath, func(cfg *config.Config) {
		w.SetInterval(cfg.Watch.Interval.Duration)
	})
	fmt.Println("\nShutting down...")
	return nil
}

func printMatch(m realtime.MatchEvent) {
	fmt.Printf("%s %s  %s\n", headerStyle.Render(m.SavedSearchName), m.ListingName, priceStyle.Render(formatPrice(m.WeeklyPrice)))
	place := m.Suburb
	if m.State != "" {
		place += ", " + m.State
	}
	fmt.Printf("   %s\n", metaStyle.Render(fmt.Sprintf("%s · id %s · %s", place, m.ListingID, formatTime(m.DetectedAt))))
}
