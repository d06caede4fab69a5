// Package fingerprint computes content-addressed hex digests used as cache
// and change-detection keys throughout the processor.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// Sentinel errors surfaced to callers.
var (
	// ErrNotFound is returned when the file to digest does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrUnreadable is returned when the file exists but cannot be read.
	ErrUnreadable = errors.New("file not readable")
)

// chunkSize is the read granularity for streamed file digests.
const chunkSize = 64 * 1024

// Text returns the lowercase hex SHA-256 digest of the given UTF-8 text.
func Text(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// File returns the lowercase hex SHA-256 digest of the file content,
// streamed in fixed-size chunks so large media files do not load into memory.
func File(path string) (string, error) {
	handle, err := os.Open(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		case errors.Is(err, fs.ErrPermission):
			return "", fmt.Errorf("%w: %s", ErrUnreadable, path)
		default:
			return "", fmt.Errorf("unable to open %s: %w", path, err)
		}
	}
	defer handle.Close()

	digest := sha256.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(digest, handle, buf); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return "", fmt.Errorf("%w: %s", ErrUnreadable, path)
		}
		return "", fmt.Errorf("unable to read %s: %w", path, err)
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}
