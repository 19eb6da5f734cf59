package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/kurtheiz/agistme/pkg/api"
	"github.com/kurtheiz/agistme/pkg/cache"
	"github.com/kurtheiz/agistme/pkg/config"
	"github.com/kurtheiz/agistme/pkg/realtime"
)

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the local API and the saved-search watcher",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Address to listen on (defaults to server.listen from the config)",
			},
			&cli.BoolFlag{
				Name:  "no-watch",
				Usage: "Do not watch saved searches",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return withApp(c, func(a *app) error {
				listen := c.String("listen")
				if listen == "" {
					listen = a.cfg.Server.Listen
				}
				return serve(ctx, a, c.String("config"), listen, !c.Bool("no-watch"))
			})
		},
	}
}

func serve(ctx context.Context, a *app, configPath, listen string, watchSaved bool) error {
	hub := realtime.NewHub(0)
	saved := a.savedSearches()

	w := a.newWatcher(hub)
	if watchSaved {
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("starting watcher: %w", err)
		}
		defer w.Stop()
	}

	policy := a.queryPolicy()
	server := api.NewServer(api.Options{
		Fetcher: a.api,
		NewCache: func() *cache.Cache {
			return cache.New(cache.NewMemoryBackend(), policy)
		},
		SavedSearches: saved,
		Hub:           hub,
	})

	httpServer := &http.Server{
		Addr:              listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		logger.Infof("API listening on http://%s", listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cancel(fmt.Errorf("API server: %w", err))
		}
	}()

	fmt.Println("Serving. Press Ctrl+C to stop, send SIGHUP to reload, or modify config file for automatic reload.")
	runUntilSignal(runCtx, configPath, func(cfg *config.Config) {
		w.SetInterval(cfg.Watch.Interval.Duration)
	})

	fmt.Println("\nShutting down...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down API: %w", err)
	}
	if err := context.Cause(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
