package main

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 200 * time.Millisecond

// watchLibrary rebuilds the sound library when its source changes and
// swaps it into lib, so new mappings take effect without a restart.
// Editors replace files rather than writing in place, so the watch is
// on the containing directory. Returns a stop function.
func watchLibrary(cfg *Config, lib *atomic.Pointer[Library]) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	dir := cfg.Source
	if cfg.Mode != ModeDirectory {
		dir = filepath.Dir(cfg.Source)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	done := make(chan struct{})
	go func() {
		defer watcher.Close()
		var pending <-chan time.Time
		for {
			select {
			case <-done:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				// Debounce; saves arrive as bursts of events.
				pending = time.After(reloadDebounce)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("watch sound source", "err", err)
			case <-pending:
				pending = nil
				next, err := LoadLibrary(cfg.Mode, cfg.Source)
				if err != nil {
					log.Warn("reload sound library", "err", err)
					continue
				}
				cur := lib.Load()
				if next.SampleRate() != cur.SampleRate() || next.Channels() != cur.Channels() {
					log.Warn("sound library format changed; restart to apply",
						"rate", next.SampleRate(), "channels", next.Channels())
					continue
				}
				lib.Store(next)
				log.Info("sound library reloaded", "clips", len(next.Keys()))
			}
		}
	}()

	return func() { close(done) }, nil
}
