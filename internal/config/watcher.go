package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a config file (and its $include targets) for changes and
// invokes onChange with a freshly loaded, validated Config. It never
// replaces a running Config on its own; the host decides whether and how
// to swap in the reload, so a malformed edit never tears down a live run.
type Watcher struct {
	path      string
	onChange  func(*Config)
	onError   func(error)
	log       *slog.Logger
	debounce  time.Duration
	resolver  VaultResolver
}

// NewWatcher builds a Watcher for the config file at path. resolver may be
// nil if the config has no $vault: references.
func NewWatcher(path string, resolver VaultResolver, onChange func(*Config), onError func(error)) *Watcher {
	return &Watcher{
		path:     path,
		onChange: onChange,
		onError:  onError,
		log:      slog.Default(),
		debounce: 250 * time.Millisecond,
		resolver: resolver,
	}
}

// Run watches until ctx is canceled. It reloads on every write/create/rename
// event for the watched file, debounced to coalesce editor save bursts
// (many editors write via a temp-file-then-rename sequence that fsnotify
// reports as several events for one logical save).
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return err
	}

	var pending *time.Timer
	reload := func() {
		cfg, err := Load(w.path, w.resolver)
		if err != nil {
			if w.onError != nil {
				w.onError(err)
			}
			return
		}
		if w.onChange != nil {
			w.onChange(cfg)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if pending != nil {
				pending.Stop()
			}
			return ctx.Err()
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(w.debounce, reload)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}
