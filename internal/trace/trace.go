// Package trace persists per-file matching diagnostics as JSON artifacts
// under cache_dir/traces/<pass_id>/, for offline pattern tuning.
package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/s0len/Playbook/internal/fingerprint"
	"github.com/s0len/Playbook/internal/logging"
)

// Attempt records one pattern (or the structured parser) tried against a
// file.
type Attempt struct {
	Pattern string            `json:"pattern"`
	Status  string            `json:"status"`
	Groups  map[string]string `json:"groups,omitempty"`
	Score   float64           `json:"score,omitempty"`
	Message string            `json:"message,omitempty"`
}

// FileTrace is the artifact for one (file, sport) pair.
type FileTrace struct {
	Filename    string                 `json:"filename"`
	SportID     string                 `json:"sport_id"`
	Status      string                 `json:"status"`
	Reason      string                 `json:"reason,omitempty"`
	Attempts    []Attempt              `json:"attempts,omitempty"`
	Destination string                 `json:"destination,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty"`
}

// Writer persists traces for one pass. A nil Writer is a no-op, so callers
// never branch on whether tracing is enabled.
type Writer struct {
	dir string
	log *logging.Logger
}

// NewWriter creates the pass directory. Returns nil (disabled) when
// enabled is false.
func NewWriter(cacheDir, passID string, enabled bool, log *logging.Logger) *Writer {
	if !enabled {
		return nil
	}
	if log == nil {
		log = logging.Nop()
	}
	dir := filepath.Join(cacheDir, "traces", passID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn("trace", "Unable to create trace dir", logging.F("error", err))
		return nil
	}
	return &Writer{dir: dir, log: log}
}

// Persist writes one trace artifact atomically; failures are logged only.
func (w *Writer) Persist(t *FileTrace) {
	if w == nil || t == nil {
		return
	}
	name := fingerprint.Text(fmt.Sprintf("%s|%s", t.Filename, t.SportID)) + ".json"
	path := filepath.Join(w.dir, name)

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		w.log.Debug("trace", "Unable to encode trace", logging.F("error", err))
		return
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		w.log.Debug("trace", "Unable to write trace", logging.F("error", err))
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		w.log.Debug("trace", "Unable to publish trace", logging.F("error", err))
	}
}
