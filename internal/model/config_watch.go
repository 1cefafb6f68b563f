package model

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 250 * time.Millisecond

// WatchConfig reloads the configuration whenever the YAML file at path or
// a .env beside it changes, and passes the result to onChange. Files that
// fail to parse or validate are reported through onError and ignored.
// It blocks until ctx is cancelled.
func WatchConfig(ctx context.Context, path string, onChange func(*AppConfig), onError func(error)) error {
	if onError == nil {
		onError = func(error) {}
	}

	dir := filepath.Dir(path)
	names := map[string]bool{
		strings.ToLower(filepath.Base(path)): true,
		".env":                               true,
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	schedule := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDebounce, func() {
			cfg, err := LoadConfig(path)
			if err != nil {
				onError(err)
				return
			}
			onChange(cfg)
		})
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !names[strings.ToLower(filepath.Base(ev.Name))] {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				schedule()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			onError(fmt.Errorf("config watcher: %w", err))
		}
	}
}
