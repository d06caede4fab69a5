package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/s0len/Playbook/internal/logging"
)

// WebhookSink posts each event as JSON to a configured URL.
type WebhookSink struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhookSink creates the sink. The URL must be non-empty; callers
// validate configuration before registering.
func NewWebhookSink(url string, headers map[string]string) *WebhookSink {
	return &WebhookSink{
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *WebhookSink) Name() string {
	return "webhook"
}

func (s *WebhookSink) Emit(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("unable to encode event: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range s.headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogSink writes events to the structured log; the default sink when no
// notification targets are configured.
type LogSink struct {
	log *logging.Logger
}

// NewLogSink creates the sink.
func NewLogSink(log *logging.Logger) *LogSink {
	if log == nil {
		log = logging.Nop()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Name() string {
	return "log"
}

func (s *LogSink) Emit(event Event) error {
	fields := []logging.Field{
		logging.F("kind", event.Kind),
		logging.F("pass", event.PassID),
	}
	if event.SportID != "" {
		fields = append(fields, logging.F("sport", event.SportID))
	}
	if event.Target != "" {
		fields = append(fields, logging.F("target", event.Target))
	}
	s.log.Info("notify", "Event", fields...)
	return nil
}
