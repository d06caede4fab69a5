// Package linker materializes a match on disk as a hardlink, copy, or
// symlink, applying the overwrite policy when the destination already
// exists.
package linker

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/s0len/Playbook/internal/config"
	"github.com/s0len/Playbook/internal/fingerprint"
)

// Linker errors.
var (
	ErrDestinationConflict = errors.New("destination conflict")
	ErrCrossDeviceLink     = errors.New("cross-device link")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrSourceVanished      = errors.New("source vanished")
	ErrUnsupportedMode     = errors.New("unsupported link mode")
)

// Specificity orders contenders for the same destination: lower pattern
// priority wins; an exact (non-fuzzy) session token beats a fuzzy one.
type Specificity struct {
	Priority     int
	ExactSession bool
}

// Beats reports whether s should replace other under the overwrite policy.
func (s Specificity) Beats(other Specificity) bool {
	if s.Priority != other.Priority {
		return s.Priority < other.Priority
	}
	return s.ExactSession && !other.ExactSession
}

// Request describes one link action.
type Request struct {
	Source      string
	Destination string
	Mode        string
	// FallbackOnCrossDevice lets a failing hardlink degrade to a copy.
	FallbackOnCrossDevice bool
	// Incoming is the new match's specificity; Existing is the recorded
	// specificity of whatever produced the current destination, when
	// known. Replacement happens only when Incoming strictly beats it.
	Incoming Specificity
	Existing *Specificity
}

// Outcome reports what the linker did.
type Outcome struct {
	// Created is set when a new destination was materialized.
	Created bool
	// Replaced is set when an existing destination was atomically
	// replaced under the overwrite policy.
	Replaced bool
	// SameContent is set when the destination already pointed at the
	// same content and nothing was done.
	SameContent bool
	// Kept is set when an existing, different destination was kept
	// under the default overwrite policy.
	Kept bool
	// Mode is the action actually performed (differs from the request
	// on cross-device fallback).
	Mode string
}

// Link performs the action described by req.
func Link(req Request) (*Outcome, error) {
	if _, err := os.Lstat(req.Source); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceVanished, req.Source)
		}
		return nil, classify(err)
	}

	switch req.Mode {
	case config.LinkModeHardlink, config.LinkModeCopy, config.LinkModeSymlink:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, req.Mode)
	}

	if _, err := os.Lstat(req.Destination); err == nil {
		same, err := sameContent(req)
		if err != nil {
			return nil, err
		}
		if same {
			return &Outcome{SameContent: true, Mode: req.Mode}, nil
		}
		if req.Existing != nil && req.Incoming.Beats(*req.Existing) {
			outcome, err := materialize(req)
			if err != nil {
				return nil, err
			}
			outcome.Replaced = true
			return outcome, nil
		}
		return &Outcome{Kept: true, Mode: req.Mode}, nil
	}

	if err := os.MkdirAll(filepath.Dir(req.Destination), 0o755); err != nil {
		return nil, classify(err)
	}
	outcome, err := materialize(req)
	if err != nil {
		return nil, err
	}
	outcome.Created = true
	return outcome, nil
}

// materialize creates the destination through a sibling temp name and a
// rename, so replacement is atomic and readers never see a partial file.
func materialize(req Request) (*Outcome, error) {
	tmp := req.Destination + ".playbook-tmp"
	os.Remove(tmp)

	mode := req.Mode
	switch mode {
	case config.LinkModeHardlink:
		if err := os.Link(req.Source, tmp); err != nil {
			if isCrossDevice(err) {
				if !req.FallbackOnCrossDevice {
					return nil, fmt.Errorf("%w: %s -> %s", ErrCrossDeviceLink, req.Source, req.Destination)
				}
				mode = config.LinkModeCopy
				if err := copyFile(req.Source, tmp); err != nil {
					return nil, err
				}
			} else {
				return nil, classify(err)
			}
		}
	case config.LinkModeCopy:
		if err := copyFile(req.Source, tmp); err != nil {
			return nil, err
		}
	case config.LinkModeSymlink:
		if err := os.Symlink(req.Source, tmp); err != nil {
			return nil, classify(err)
		}
	}

	if err := os.Rename(tmp, req.Destination); err != nil {
		os.Remove(tmp)
		return nil, classify(err)
	}
	return &Outcome{Mode: mode}, nil
}

// sameContent reports whether the existing destination already carries the
// source content: device+inode for hardlinks, digest for copies, target
// path for symlinks.
func sameContent(req Request) (bool, error) {
	switch req.Mode {
	case config.LinkModeHardlink:
		srcInfo, err := os.Stat(req.Source)
		if err != nil {
			return false, classify(err)
		}
		dstInfo, err := os.Stat(req.Destination)
		if err != nil {
			return false, classify(err)
		}
		return os.SameFile(srcInfo, dstInfo), nil

	case config.LinkModeSymlink:
		target, err := os.Readlink(req.Destination)
		if err != nil {
			return false, nil
		}
		return target == req.Source, nil

	default: // copy
		srcDigest, err := fingerprint.File(req.Source)
		if err != nil {
			if errors.Is(err, fingerprint.ErrNotFound) {
				return false, fmt.Errorf("%w: %s", ErrSourceVanished, req.Source)
			}
			return false, err
		}
		dstDigest, err := fingerprint.File(req.Destination)
		if err != nil {
			return false, nil
		}
		return srcDigest == dstDigest, nil
	}
}

// copyFile streams source to dst, fsyncing before close so the following
// rename publishes complete content.
func copyFile(source, dst string) error {
	in, err := os.Open(source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSourceVanished, source)
		}
		return classify(err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return classify(err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return classify(err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dst)
		return classify(err)
	}
	return out.Close()
}

func isCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

func classify(err error) error {
	if errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EACCES) {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}
