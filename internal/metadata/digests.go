package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/s0len/Playbook/internal/fingerprint"
)

// DigestStore tracks a fingerprint of each sport's normalized model so the
// processor can detect metadata changes between passes and rebuild compiled
// patterns only when something actually moved.
type DigestStore struct {
	path    string
	mu      sync.Mutex
	digests map[string]string
	dirty   bool
}

// NewDigestStore loads (or initializes) cache_dir/state/metadata-digests.json.
func NewDigestStore(cacheDir string) *DigestStore {
	store := &DigestStore{
		path:    filepath.Join(cacheDir, "state", "metadata-digests.json"),
		digests: make(map[string]string),
	}
	data, err := os.ReadFile(store.path)
	if err != nil {
		return store
	}
	// Corruption is not fatal: an empty map just means every sport reads
	// as changed on the next pass.
	_ = json.Unmarshal(data, &store.digests)
	if store.digests == nil {
		store.digests = make(map[string]string)
	}
	return store
}

// ShowDigest computes a stable digest of the normalized model.
func ShowDigest(show *Show) string {
	data, err := json.Marshal(show)
	if err != nil {
		return ""
	}
	return fingerprint.Text(string(data))
}

// Changed reports whether the digest differs from the stored one and
// records the new value.
func (d *DigestStore) Changed(sportID, digest string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	previous, seen := d.digests[sportID]
	if seen && previous == digest {
		return false
	}
	d.digests[sportID] = digest
	d.dirty = true
	return true
}

// Current returns the stored digest for a sport.
func (d *DigestStore) Current(sportID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.digests[sportID]
}

// Save persists the digests atomically (temp file + rename).
func (d *DigestStore) Save() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.dirty {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("unable to create state dir: %w", err)
	}
	data, err := json.MarshalIndent(d.digests, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to encode digests: %w", err)
	}
	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("unable to write digests: %w", err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("unable to replace digests: %w", err)
	}
	d.dirty = false
	return nil
}
