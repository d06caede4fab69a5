package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0len/Playbook/internal/fingerprint"
	"github.com/s0len/Playbook/internal/logging"
)

// stubProvider counts fetches and can be switched to failing.
type stubProvider struct {
	raw     *RawShow
	err     error
	fetches int
}

func (s *stubProvider) Fetch(ctx context.Context, sportID string) (*RawShow, error) {
	s.fetches++
	if s.err != nil {
		return nil, s.err
	}
	return s.raw, nil
}

func newTestStore(t *testing.T, provider Provider, ttl time.Duration) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(dir, ttl, provider, logging.Nop())
	require.NoError(t, err)
	return store, dir
}

func TestStoreFetchesOnMissAndServesFresh(t *testing.T) {
	provider := &stubProvider{raw: rawFixture()}
	store, _ := newTestStore(t, provider, time.Hour)

	result, err := store.Get(context.Background(), "f1", nil)
	require.NoError(t, err)
	assert.False(t, result.Stale)
	assert.False(t, result.FromCache)
	assert.Equal(t, 1, provider.fetches)

	// Second read within TTL comes from disk, no network.
	result, err = store.Get(context.Background(), "f1", nil)
	require.NoError(t, err)
	assert.True(t, result.FromCache)
	assert.Equal(t, 1, provider.fetches)
}

func TestStoreServesStaleWhenProviderFails(t *testing.T) {
	provider := &stubProvider{raw: rawFixture()}
	store, _ := newTestStore(t, provider, time.Nanosecond)

	_, err := store.Get(context.Background(), "f1", nil)
	require.NoError(t, err)

	provider.err = errors.New("connection refused")
	result, err := store.Get(context.Background(), "f1", nil)
	require.NoError(t, err)
	assert.True(t, result.Stale)
	assert.Equal(t, "Formula 1 2025", result.Raw.Show.Title)
}

func TestStoreSurfacesUnavailableWithoutCache(t *testing.T) {
	provider := &stubProvider{err: errors.New("connection refused")}
	store, _ := newTestStore(t, provider, time.Hour)

	_, err := store.Get(context.Background(), "f1", nil)
	assert.ErrorIs(t, err, ErrMetadataUnavailable)
}

func TestStoreRejectsTamperedEntry(t *testing.T) {
	provider := &stubProvider{raw: rawFixture()}
	store, dir := newTestStore(t, provider, time.Hour)

	_, err := store.Get(context.Background(), "f1", nil)
	require.NoError(t, err)

	// Corrupt the payload without fixing the digest.
	fp := RequestFingerprint("f1", nil)
	path := filepath.Join(dir, "metadata", fp)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var e map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &e))
	e["payload"] = json.RawMessage(`{"show":{"title":"Tampered"}}`)
	tampered, err := json.Marshal(e)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, tampered, 0o644))

	// The tampered entry reads as a miss; the provider is asked again.
	result, err := store.Get(context.Background(), "f1", nil)
	require.NoError(t, err)
	assert.Equal(t, "Formula 1 2025", result.Raw.Show.Title)
	assert.Equal(t, 2, provider.fetches)
}

func TestStoredDigestAgreesWithPayload(t *testing.T) {
	provider := &stubProvider{raw: rawFixture()}
	store, dir := newTestStore(t, provider, time.Hour)

	_, err := store.Get(context.Background(), "f1", nil)
	require.NoError(t, err)

	fp := RequestFingerprint("f1", nil)
	data, err := os.ReadFile(filepath.Join(dir, "metadata", fp))
	require.NoError(t, err)

	var e struct {
		PayloadDigest string          `json:"payload_digest"`
		Payload       json.RawMessage `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &e))
	assert.Equal(t, e.PayloadDigest, fingerprint.Text(string(e.Payload)))
}

func TestRequestFingerprintIsStable(t *testing.T) {
	a := RequestFingerprint("nba", map[string]string{"year": "2025", "league": "nba"})
	b := RequestFingerprint("nba", map[string]string{"league": "nba", "year": "2025"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, RequestFingerprint("nba", map[string]string{"year": "2026"}))
}
