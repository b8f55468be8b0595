package config

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period Watch waits after the last file event
// before reloading.
const DefaultDebounce = 250 * time.Millisecond

// Watch monitors every directory in paths (recursively) and calls onChange
// with the newly loaded config after YAML files change. Bursts of events are
// coalesced by debounce (DefaultDebounce when <= 0). It blocks until ctx is
// cancelled.
//
// A reload that fails keeps the previous config: onChange is not called.
func Watch(ctx context.Context, paths Paths, debounce time.Duration, logger *slog.Logger, onChange func(*LoadedConfig)) error {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := 0
	for _, dir := range paths.Dirs() {
		n, err := addTree(watcher, dir)
		if err != nil {
			return err
		}
		watched += n
	}
	logger.Info("config: watching for changes", "directories", watched)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// New subdirectories are watched too so files created in them
			// are noticed.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_, _ = addTree(watcher, event.Name)
					continue
				}
			}
			if !isYAML(event.Name) || (event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write)) {
				continue
			}
			logger.Debug("config: change detected", "file", event.Name, "op", event.Op.String())
			timer.Reset(debounce)

		case <-timer.C:
			cfg, err := Load(paths, logger)
			if err != nil {
				logger.Error("config: reload failed, keeping previous config", "error", err.Error())
				continue
			}
			logger.Info("config: reloaded",
				"devices", len(cfg.Devices),
				"object_defs", len(cfg.ObjectDefs),
			)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("config: watcher error", "error", err.Error())
		}
	}
}

// addTree adds dir and its subdirectories to w. A missing dir is skipped.
func addTree(w *fsnotify.Watcher, dir string) (int, error) {
	n := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.Add(p); err != nil {
			return err
		}
		n++
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return n, nil
	}
	return n, err
}
