// Package devmon watches for tablet device nodes appearing so the scan loop
// can retry immediately instead of waiting out its backoff.
package devmon

import (
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounce = 500 * time.Millisecond

// Monitor delivers debounced wake-ups on C when a matching node shows up.
// A nil Monitor is valid: its channel stays nil and Stop is a no-op, so
// callers degrade to pure timed backoff.
type Monitor struct {
	C <-chan struct{}

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Watch monitors dir for created entries whose base name starts with prefix.
// Watch never fails hard; if the platform watcher is unavailable it logs and
// returns nil.
func Watch(dir, prefix string) *Monitor {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("device watch unavailable", slog.Any("error", err))
		return nil
	}
	if err := watcher.Add(dir); err != nil {
		slog.Warn("device watch unavailable", slog.String("dir", dir), slog.Any("error", err))
		watcher.Close()
		return nil
	}
	c := make(chan struct{}, 1)
	m := &Monitor{C: c, watcher: watcher, done: make(chan struct{})}
	go m.run(c, prefix)
	return m
}

func (m *Monitor) run(c chan<- struct{}, prefix string) {
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false
	for {
		select {
		case <-m.done:
			return
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Create == 0 {
				continue
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), prefix) {
				continue
			}
			// batch bursts of node creations into one wake-up
			if !pending {
				pending = true
				timer.Reset(debounce)
			}
		case <-timer.C:
			if pending {
				pending = false
				select {
				case c <- struct{}{}:
				default:
				}
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("device watch error", slog.Any("error", err))
		}
	}
}

// Stop shuts the watcher down. Safe on nil.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}
	close(m.done)
	m.watcher.Close()
}
