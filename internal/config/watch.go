package config

import (
	"context"

	"github.com/fsnotify/fsnotify"

	logpkg "github.com/opaline-ai/spyglass/pkg/log"
)

// Watch re-reads path on file change and invokes apply with the fresh
// Config (env overlay included). Editors often replace rather than write
// in place, so the path is re-armed after rename/remove events. Watch
// blocks until ctx is done; a missing or unparsable file is logged and
// skipped, never fatal.
func Watch(ctx context.Context, path string, logger logpkg.Logger, apply func(Config)) error {
	if path == "" {
		<-ctx.Done()
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(path); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if ev.Op&(fsnotify.Rename|fsnotify.Remove) != 0 {
				_ = w.Remove(path)
				if err := w.Add(path); err != nil {
					logger.Warn("config file vanished, keeping last config", logpkg.Str("path", path))
					continue
				}
			}
			cfg, err := Load(path)
			if err != nil {
				logger.Warn("config reload failed", logpkg.Str("path", path), logpkg.Err(err))
				continue
			}
			FromEnv(&cfg)
			logger.Info("config reloaded", logpkg.Str("path", path))
			apply(cfg)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", logpkg.Err(err))
		}
	}
}
