package processor

import (
	"context"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/s0len/Playbook/internal/logging"
)

var samplePattern = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])sample(?:$|[^a-z0-9])`)

// isSampleFile reports whether a filename looks like a release sample.
// Samples are discovered but never matched, and their non-matches are not
// reported as warnings.
func isSampleFile(name string) bool {
	return samplePattern.MatchString(name)
}

// isResourceFork reports macOS "._" metadata companions.
func isResourceFork(name string) bool {
	return strings.HasPrefix(name, "._") && len(name) > 2
}

// discover walks the source root and returns candidate files in stable
// lexicographic order, so intra-pass tie-breaks are deterministic. The
// context is checked between directory entries.
func discover(ctx context.Context, sourceDir string, log *logging.Logger) ([]string, error) {
	var files []string
	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			log.Warn("discover", "Unable to read entry", logging.F("path", path), logging.F("error", err))
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != sourceDir {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if isResourceFork(d.Name()) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
