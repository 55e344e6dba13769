// Package watcher raises a debounced signal when a project tree changes,
// driving auto-sync in watch mode.
package watcher

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/rjeczalik/notify"
)

// DefaultDebounce batches editor write bursts into one sync trigger.
const DefaultDebounce = 2 * time.Second

type Watcher struct {
	watchDir string
	debounce time.Duration
	events   chan notify.EventInfo
	trigger  chan struct{}
}

func New(watchDir string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		watchDir: watchDir,
		debounce: debounce,
		events:   make(chan notify.EventInfo, 64),
		trigger:  make(chan struct{}, 1),
	}
}

// Start begins watching recursively and runs the debounce loop until ctx is
// done. Triggers coalesce: however many events arrive inside one debounce
// window, Triggers() fires once.
func (w *Watcher) Start(ctx context.Context) error {
	slog.Info("watching for changes", "dir", w.watchDir, "debounce", w.debounce)

	recursivePath := w.watchDir + "/..."
	if err := notify.Watch(recursivePath, w.events, notify.Write, notify.Create, notify.Remove, notify.Rename); err != nil {
		return err
	}

	go w.loop(ctx)
	return nil
}

func (w *Watcher) Stop() {
	notify.Stop(w.events)
	close(w.events)
	slog.Info("file watcher stop", "dir", w.watchDir)
}

// Triggers fires once per settled burst of filesystem changes.
func (w *Watcher) Triggers() <-chan struct{} {
	return w.trigger
}

func (w *Watcher) loop(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.events:
			if !ok {
				return
			}
			if ignored(ev.Path()) {
				continue
			}
			slog.Debug("fs event", "path", ev.Path(), "event", ev.Event())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-fire:
			timer = nil
			fire = nil
			select {
			case w.trigger <- struct{}{}:
			default:
			}
		}
	}
}

// ignored filters event paths containing a dot segment, mirroring the
// analyzer's hidden-path rule so editor lockfiles don't retrigger syncs.
func ignored(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		if len(seg) > 1 && seg[0] == '.' {
			return true
		}
	}
	return false
}
