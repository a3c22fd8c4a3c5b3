package schema

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
)

// WatchFile watches path for writes and calls onReload with the newly
// parsed, validated schema each time the file changes. A parse or
// validation failure logs a warning and leaves the previous schema live —
// a malformed edit never takes a running process down. The returned stop
// func closes the underlying watcher; callers should defer it.
func WatchFile(path string, logger *slog.Logger, onReload func(*DomainSchema)) (stop func() error, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating schema file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching schema path %q: %w", path, err)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				reloadFromFile(path, logger, onReload)

			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("schema watcher error", slog.String("error", werr.Error()))
			}
		}
	}()

	return watcher.Close, nil
}

func reloadFromFile(path string, logger *slog.Logger, onReload func(*DomainSchema)) {
	raw, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("schema reload: read failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	s, err := LoadFromYAML(raw)
	if err != nil {
		logger.Warn("schema reload: parse failed, keeping previous schema", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	if res := s.Validate(); !res.Valid {
		logger.Warn("schema reload: validation failed, keeping previous schema", slog.String("path", path), slog.Any("errors", res.Errors))
		return
	}
	logger.Info("schema reloaded", slog.String("path", path), slog.String("version", s.Version))
	onReload(s)
}
