package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kurtheiz/agistme/pkg/config"
	"github.com/kurtheiz/agistme/pkg/log"
)

var logger = log.ForService("cmd")

// runUntilSignal blocks until SIGINT, SIGTERM or ctx is done. The config
// file is reloaded on SIGHUP and whenever it changes on disk; onReload gets
// each configuration that loads successfully.
func runUntilSignal(ctx context.Context, configPath string, onReload func(*config.Config)) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnf("failed to create config file watcher: %v", err)
	} else {
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warnf("failed to close config file watcher: %v", err)
			}
		}()
		if err := watcher.Add(configPath); err != nil {
			logger.Warnf("failed to watch config file %s: %v", configPath, err)
		} else {
			logger.Infof("watching config file for changes: %s", configPath)
			events, errs = watcher.Events, watcher.Errors
		}
	}

	reload := func(reason string) {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			logger.Errorf("failed to reload configuration (%s): %v", reason, err)
			return
		}
		onReload(cfg)
		logger.Infof("configuration reloaded (%s)", reason)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			if sig != syscall.SIGHUP {
				return
			}
			reload("SIGHUP")
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			// Editors often replace the file with an atomic rename.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(200 * time.Millisecond)
				if _, err := os.Stat(configPath); os.IsNotExist(err) {
					logger.Warnf("config file was removed and not replaced, skipping reload")
					continue
				}
				if err := watcher.Add(configPath); err != nil {
					logger.Warnf("failed to re-add config file to watcher: %v", err)
				}
			} else {
				time.Sleep(100 * time.Millisecond)
			}
			reload(event.Op.String())
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warnf("config file watcher error: %v", err)
		}
	}
}
