package processor

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
)

// Six rapid file writes produce one debounced pass that handles every file.
func TestWatchProcessesBurstInOnePass(t *testing.T) {
	sessions := []string{"FP1", "FP2", "FP3", "Qualifying", "Sprint", "Race"}

	e := newEnv(t, []config.PatternRule{roundRule(10)})
	e.cfg.Watch = config.WatchConfig{
		Enabled:         true,
		DebounceSeconds: 1,
	}

	proc := newProcessor(t, e, Options{})
	defer proc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- proc.Watch(ctx)
	}()

	// Let the initial pass and watcher setup finish.
	time.Sleep(500 * time.Millisecond)

	for i := 0; i < 6; i++ {
		name := fmt.Sprintf("Formula.1.2025.Round05.Monaco.%s.mkv", sessions[i%len(sessions)])
		require.NoError(t, os.WriteFile(filepath.Join(e.sourceDir, name), []byte("video"), 0o644))
		time.Sleep(20 * time.Millisecond)
	}

	// Debounce window plus pass time.
	require.Eventually(t, func() bool {
		entries, err := filepath.Glob(filepath.Join(e.destDir, "Formula 1 2025", "05 Monaco Grand Prix", "*.mkv"))
		return err == nil && len(entries) == 6
	}, 10*time.Second, 200*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watch loop did not stop on cancellation")
	}
}
