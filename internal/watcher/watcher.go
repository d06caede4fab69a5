// Package watcher observes the source tree and turns raw filesystem events
// into debounced pass triggers, with a periodic reconcile pass to recover
// from dropped notifications.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/s0len/Playbook/internal/config"
	"github.com/s0len/Playbook/internal/logging"
)

// TriggerReason says why a pass was requested.
type TriggerReason string

const (
	// TriggerEvents is a debounced batch of filesystem events.
	TriggerEvents TriggerReason = "events"
	// TriggerReconcile is the unconditional periodic full pass.
	TriggerReconcile TriggerReason = "reconcile"
)

// Trigger is one coalesced pass request.
type Trigger struct {
	Reason TriggerReason
	// Events is the number of filesystem events coalesced into this
	// trigger (zero for reconcile).
	Events int
}

// Watcher converts fsnotify events into debounced triggers on a coalescing
// channel with a single consumer.
type Watcher struct {
	cfg      config.WatchConfig
	paths    []string
	log      *logging.Logger
	fs       *fsnotify.Watcher
	triggers chan Trigger
	// suppressed drops events generated by the processor's own linking
	// while a pass runs, so passes do not re-trigger themselves.
	suppressed atomic.Bool
}

// New creates a watcher over the configured paths (falling back to
// sourceDir when none are set).
func New(cfg config.WatchConfig, sourceDir string, log *logging.Logger) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("unable to create watcher: %w", err)
	}
	if log == nil {
		log = logging.Nop()
	}

	paths := cfg.Paths
	if len(paths) == 0 {
		paths = []string{sourceDir}
	}

	w := &Watcher{
		cfg:      cfg,
		paths:    paths,
		log:      log,
		fs:       fs,
		triggers: make(chan Trigger, 1),
	}

	for _, path := range paths {
		if err := w.addRecursive(path); err != nil {
			fs.Close()
			return nil, err
		}
	}
	return w, nil
}

// Triggers is the coalescing channel the orchestrator consumes.
func (w *Watcher) Triggers() <-chan Trigger {
	return w.triggers
}

// Suppress toggles event suppression during a processing pass.
func (w *Watcher) Suppress(on bool) {
	w.suppressed.Store(on)
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if strings.HasPrefix(filepath.Base(path), ".") && path != root {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("unable to watch %s: %w", path, err)
		}
		return nil
	})
}

// Run consumes raw events until the context is cancelled. After an accepted
// event it waits for debounce_seconds of quiet before emitting a trigger;
// further events during the quiet window reset the timer. A reconcile
// trigger fires unconditionally every reconcile_interval seconds.
func (w *Watcher) Run(ctx context.Context) error {
	debounce := time.Duration(w.cfg.DebounceSeconds) * time.Second
	if debounce <= 0 {
		debounce = 5 * time.Second
	}

	// The timer starts stopped; it only runs while events are pending.
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	var reconcile <-chan time.Time
	if w.cfg.ReconcileInterval > 0 {
		ticker := time.NewTicker(time.Duration(w.cfg.ReconcileInterval) * time.Second)
		defer ticker.Stop()
		reconcile = ticker.C
	}

	pending := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.accept(event) {
				continue
			}
			pending++
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(debounce)

		case <-timer.C:
			if pending == 0 {
				continue
			}
			w.emit(Trigger{Reason: TriggerEvents, Events: pending})
			pending = 0

		case <-reconcile:
			w.log.Debug("watcher", "Reconcile interval elapsed, forcing a pass")
			w.emit(Trigger{Reason: TriggerReconcile})

		case err, ok := <-w.fs.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.log.Warn("watcher", "Watcher error", logging.F("error", err))
		}
	}
}

// emit delivers a trigger without blocking; a pending trigger already
// covers the new request.
func (w *Watcher) emit(trigger Trigger) {
	select {
	case w.triggers <- trigger:
	default:
	}
}

// accept filters one raw event: suppression, event type, directory
// housekeeping, then include/ignore globs.
func (w *Watcher) accept(event fsnotify.Event) bool {
	if w.suppressed.Load() {
		return false
	}

	relevant := event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0
	if !relevant {
		return false
	}

	// New directories join the watch set but do not trigger a pass by
	// themselves.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !strings.HasPrefix(filepath.Base(event.Name), ".") {
				w.fs.Add(event.Name)
			}
			return false
		}
	}

	return w.matches(event.Name)
}

// matches applies include (required when configured) and ignore globs
// against both the base name and the full path.
func (w *Watcher) matches(path string) bool {
	name := filepath.Base(path)
	if len(w.cfg.Include) > 0 {
		included := false
		for _, glob := range w.cfg.Include {
			if globMatch(glob, name) || globMatch(glob, path) {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}
	for _, glob := range w.cfg.Ignore {
		if globMatch(glob, name) || globMatch(glob, path) {
			return false
		}
	}
	return true
}

func globMatch(glob, value string) bool {
	ok, err := filepath.Match(glob, value)
	return err == nil && ok
}
