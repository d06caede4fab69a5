// Package notify fans post-run events out to the configured sinks and owns
// the downstream library-refresh trigger.
package notify

import (
	"sync"
	"time"

	"github.com/s0len/Playbook/internal/logging"
)

// EventKind enumerates what the core reports.
type EventKind string

const (
	// EventPerFileLinked reports one materialized destination.
	EventPerFileLinked EventKind = "PerFileLinked"
	// EventPassSummary reports pass totals.
	EventPassSummary EventKind = "PassSummary"
	// EventRefreshRequested reports that a library refresh was asked for.
	EventRefreshRequested EventKind = "RefreshRequested"
)

// Event is one notification payload. The core does not depend on delivery
// semantics; sinks may drop, queue, or batch.
type Event struct {
	Kind      EventKind         `json:"kind"`
	PassID    string            `json:"pass_id"`
	SportID   string            `json:"sport_id,omitempty"`
	Source    string            `json:"source,omitempty"`
	Target    string            `json:"target,omitempty"`
	LinkMode  string            `json:"link_mode,omitempty"`
	Counters  map[string]int    `json:"counters,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Sink receives events.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string
	// Emit delivers one event; errors are logged, never propagated to
	// the pass.
	Emit(event Event) error
}

// Manager fans events out to every registered sink.
type Manager struct {
	mu    sync.RWMutex
	sinks []Sink
	log   *logging.Logger
}

// NewManager creates an empty manager.
func NewManager(log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	return &Manager{log: log}
}

// Register adds a sink.
func (m *Manager) Register(sink Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, sink)
	m.log.Debug("notify", "Registered sink", logging.F("sink", sink.Name()))
}

// Emit delivers the event to every sink. Sink failures are logged and do
// not affect the pass outcome.
func (m *Manager) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	m.mu.RLock()
	sinks := make([]Sink, len(m.sinks))
	copy(sinks, m.sinks)
	m.mu.RUnlock()

	for _, sink := range sinks {
		if err := sink.Emit(event); err != nil {
			m.log.Warn("notify", "Sink delivery failed",
				logging.F("sink", sink.Name()), logging.F("kind", event.Kind), logging.F("error", err))
		}
	}
}
