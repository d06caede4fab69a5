package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/s0len/Playbook/internal/fingerprint"
	"github.com/s0len/Playbook/internal/logging"
)

// ErrMetadataUnavailable is returned when a sport has neither a usable
// cache entry nor a reachable provider.
var ErrMetadataUnavailable = errors.New("metadata unavailable")

// entry is the on-disk cache envelope. Readers verify PayloadDigest
// against a re-digest before trusting Payload.
type entry struct {
	Fingerprint   string          `json:"fingerprint"`
	FetchedAt     time.Time       `json:"fetched_at"`
	PayloadDigest string          `json:"payload_digest"`
	Payload       json.RawMessage `json:"payload"`
}

// Result is a served metadata document plus its provenance.
type Result struct {
	Raw *RawShow
	// Stale is set when the entry is past TTL but the provider could not
	// replace it.
	Stale bool
	// FromCache is set when no network fetch happened.
	FromCache bool
	// Fingerprint is the request fingerprint the entry is stored under.
	Fingerprint string
}

// Store is the content-addressed on-disk metadata cache.
type Store struct {
	dir      string
	ttl      time.Duration
	provider Provider
	log      *logging.Logger
}

// NewStore creates the cache under cacheDir/metadata.
func NewStore(cacheDir string, ttl time.Duration, provider Provider, log *logging.Logger) (*Store, error) {
	dir := filepath.Join(cacheDir, "metadata")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create metadata cache dir: %w", err)
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Store{dir: dir, ttl: ttl, provider: provider, log: log}, nil
}

// RequestFingerprint reduces a request to its stable cache key: the sport
// slug plus sorted parameters.
func RequestFingerprint(sportID string, params map[string]string) string {
	var sb strings.Builder
	sb.WriteString(sportID)
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		sb.WriteString("|")
		sb.WriteString(key)
		sb.WriteString("=")
		sb.WriteString(params[key])
	}
	return fingerprint.Text(sb.String())
}

// Get serves metadata for a sport. Order: fresh cache entry (no network),
// fetch-and-replace, stale-accept, ErrMetadataUnavailable.
func (s *Store) Get(ctx context.Context, sportID string, params map[string]string) (*Result, error) {
	fp := RequestFingerprint(sportID, params)
	cached := s.read(fp)

	if cached != nil && time.Since(cached.FetchedAt) < s.ttl {
		raw, err := decodePayload(cached.Payload)
		if err == nil {
			return &Result{Raw: raw, FromCache: true, Fingerprint: fp}, nil
		}
		s.log.Warn("metadata", "Discarding undecodable cache entry",
			logging.F("sport", sportID), logging.F("error", err))
		cached = nil
	}

	raw, fetchErr := s.provider.Fetch(ctx, sportID)
	if fetchErr == nil {
		if err := s.write(fp, raw); err != nil {
			s.log.Warn("metadata", "Unable to persist cache entry",
				logging.F("sport", sportID), logging.F("error", err))
		}
		return &Result{Raw: raw, Fingerprint: fp}, nil
	}
	if errors.Is(fetchErr, context.Canceled) || errors.Is(fetchErr, context.DeadlineExceeded) {
		return nil, fetchErr
	}

	if cached != nil {
		if stale, err := decodePayload(cached.Payload); err == nil {
			s.log.Warn("metadata", "Provider unreachable, serving stale entry",
				logging.F("sport", sportID), logging.F("age", time.Since(cached.FetchedAt).Round(time.Second)))
			return &Result{Raw: stale, Stale: true, FromCache: true, Fingerprint: fp}, nil
		}
	}

	return nil, fmt.Errorf("%w: %s: %v", ErrMetadataUnavailable, sportID, fetchErr)
}

// read loads and verifies an entry; any corruption counts as a miss.
func (s *Store) read(fp string) *entry {
	data, err := os.ReadFile(s.entryPath(fp))
	if err != nil {
		return nil
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		s.log.Warn("metadata", "Ignoring malformed cache entry", logging.F("fingerprint", fp))
		return nil
	}
	if e.Fingerprint != fp {
		return nil
	}
	if fingerprint.Text(string(e.Payload)) != e.PayloadDigest {
		s.log.Warn("metadata", "Cache entry digest mismatch, treating as miss",
			logging.F("fingerprint", fp))
		return nil
	}
	return &e
}

// write atomically replaces the entry: marshal to a sibling temp file in
// the cache directory, then rename into place. Readers never observe a
// partial entry.
func (s *Store) write(fp string, raw *RawShow) error {
	payload, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("unable to encode payload: %w", err)
	}
	e := entry{
		Fingerprint:   fp,
		FetchedAt:     time.Now().UTC(),
		PayloadDigest: fingerprint.Text(string(payload)),
		Payload:       payload,
	}
	data, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("unable to encode entry: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, fp+".tmp-*")
	if err != nil {
		return fmt.Errorf("unable to create temp entry: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("unable to write temp entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("unable to close temp entry: %w", err)
	}
	if err := os.Rename(tmpName, s.entryPath(fp)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("unable to replace entry: %w", err)
	}
	return nil
}

func (s *Store) entryPath(fp string) string {
	return filepath.Join(s.dir, fp)
}

func decodePayload(payload json.RawMessage) (*RawShow, error) {
	var raw RawShow
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}
