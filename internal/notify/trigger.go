package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/s0len/Playbook/internal/config"
)

// RefreshTrigger tells the downstream library server to rescan. The
// processor invokes it at most once per pass, and only when at least one
// new destination was produced.
type RefreshTrigger interface {
	Trigger(summary PassSummary) error
}

// PassSummary is the payload handed to the refresh trigger and the
// PassSummary event.
type PassSummary struct {
	PassID   string         `json:"pass_id"`
	Linked   int            `json:"linked"`
	Skipped  int            `json:"skipped"`
	Failed   int            `json:"failed"`
	DryRun   bool           `json:"dry_run"`
	PerSport map[string]int `json:"per_sport,omitempty"`
	Duration time.Duration  `json:"duration_ns"`
}

// HTTPRefreshTrigger posts the pass summary to a webhook.
type HTTPRefreshTrigger struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewRefreshTrigger builds the trigger from configuration; nil when no
// trigger is configured.
func NewRefreshTrigger(cfg *config.RefreshTrigger) RefreshTrigger {
	if cfg == nil || cfg.URL == "" {
		return nil
	}
	return &HTTPRefreshTrigger{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *HTTPRefreshTrigger) Trigger(summary PassSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("unable to encode summary: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range t.headers {
		req.Header.Set(key, value)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("refresh trigger returned status %d", resp.StatusCode)
	}
	return nil
}
