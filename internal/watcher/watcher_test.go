package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0len/Playbook/internal/config"
	"github.com/s0len/Playbook/internal/logging"
)

func startWatcher(t *testing.T, cfg config.WatchConfig, dir string) *Watcher {
	t.Helper()
	w, err := New(cfg, dir, logging.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		w.Close()
	})
	// Give the event loop a moment to be ready.
	time.Sleep(50 * time.Millisecond)
	return w
}

func TestDebounceCoalescesRapidEvents(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, config.WatchConfig{DebounceSeconds: 1}, dir)

	start := time.Now()
	for i := 0; i < 15; i++ {
		path := filepath.Join(dir, fmt.Sprintf("file%02d.mkv", i))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		time.Sleep(20 * time.Millisecond)
	}
	lastEvent := time.Now()

	select {
	case trigger := <-w.Triggers():
		elapsed := time.Since(lastEvent)
		assert.Equal(t, TriggerEvents, trigger.Reason)
		// The pass starts no earlier than the debounce window after the
		// final event.
		assert.GreaterOrEqual(t, elapsed, 900*time.Millisecond,
			"trigger fired %v after last event", elapsed)
		assert.GreaterOrEqual(t, trigger.Events, 15)
	case <-time.After(5 * time.Second):
		t.Fatal("no trigger within 5s")
	}

	// Exactly one trigger: nothing else is pending.
	select {
	case trigger := <-w.Triggers():
		t.Fatalf("unexpected second trigger: %+v", trigger)
	case <-time.After(1500 * time.Millisecond):
	}
	_ = start
}

func TestIgnoreGlobsDropEvents(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, config.WatchConfig{
		DebounceSeconds: 1,
		Ignore:          []string{"*.tmp"},
	}, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "partial.tmp"), []byte("x"), 0o644))

	select {
	case trigger := <-w.Triggers():
		t.Fatalf("ignored file produced trigger: %+v", trigger)
	case <-time.After(2 * time.Second):
	}
	_ = w
}

func TestIncludeGlobsAreRequired(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, config.WatchConfig{
		DebounceSeconds: 1,
		Include:         []string{"*.mkv"},
	}, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	select {
	case <-w.Triggers():
		t.Fatal("excluded file produced trigger")
	case <-time.After(1500 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "race.mkv"), []byte("x"), 0o644))
	select {
	case trigger := <-w.Triggers():
		assert.Equal(t, TriggerEvents, trigger.Reason)
	case <-time.After(3 * time.Second):
		t.Fatal("included file produced no trigger")
	}
}

func TestReconcileFiresWithoutEvents(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, config.WatchConfig{
		DebounceSeconds:   30,
		ReconcileInterval: 1,
	}, dir)

	select {
	case trigger := <-w.Triggers():
		assert.Equal(t, TriggerReconcile, trigger.Reason)
	case <-time.After(3 * time.Second):
		t.Fatal("reconcile trigger never fired")
	}
}

func TestSuppressDropsEvents(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, config.WatchConfig{DebounceSeconds: 1}, dir)

	w.Suppress(true)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "race.mkv"), []byte("x"), 0o644))

	select {
	case <-w.Triggers():
		t.Fatal("suppressed event produced trigger")
	case <-time.After(2 * time.Second):
	}
}
