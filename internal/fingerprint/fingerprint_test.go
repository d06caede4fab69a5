package fingerprint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestTextIsStableLowercaseHex(t *testing.T) {
	digest := Text("Formula 1 2025")
	if len(digest) != 64 {
		t.Fatalf("Text() returned %d chars, want 64", len(digest))
	}
	if digest != Text("Formula 1 2025") {
		t.Error("Text() is not deterministic")
	}
	for _, ch := range digest {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			t.Fatalf("Text() produced non-hex character %q", ch)
		}
	}
}

func TestTextDistinguishesInputs(t *testing.T) {
	if Text("a") == Text("b") {
		t.Error("distinct inputs produced the same digest")
	}
}

func TestFileMatchesText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "episode.mkv")
	content := "not really a video"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	fileDigest, err := File(path)
	if err != nil {
		t.Fatalf("File() error: %v", err)
	}
	if fileDigest != Text(content) {
		t.Errorf("File() = %s, want %s", fileDigest, Text(content))
	}
}

func TestFileNotFound(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "missing.mkv"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("File() error = %v, want ErrNotFound", err)
	}
}
