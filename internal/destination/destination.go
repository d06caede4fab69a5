// Package destination renders the root-folder, season-folder, and filename
// templates against a match context and sanitizes every rendered segment so
// the result is always strictly under the destination directory.
package destination

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/s0len/Playbook/internal/config"
)

// Builder errors.
var (
	// ErrTemplate is returned when a template references a missing key.
	ErrTemplate = errors.New("template error")
	// ErrUnsafePath is returned for traversal or empty rendered segments.
	ErrUnsafePath = errors.New("unsafe path")
	// ErrNameTooLong is returned when a rendered segment exceeds the
	// platform-safe length.
	ErrNameTooLong = errors.New("name too long")
)

// maxSegmentBytes is the platform-safe per-segment length after rendering.
const maxSegmentBytes = 240

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)(?::([0-9]+))?\}`)

// Render substitutes {key} and {key:02} placeholders from the context.
// Missing keys are a hard error; nothing renders silently wrong.
func Render(template string, context map[string]interface{}) (string, error) {
	var missing []string
	rendered := placeholderPattern.ReplaceAllStringFunc(template, func(ref string) string {
		parts := placeholderPattern.FindStringSubmatch(ref)
		value, ok := context[parts[1]]
		if !ok {
			missing = append(missing, parts[1])
			return ""
		}
		if parts[2] != "" {
			width, _ := strconv.Atoi(parts[2])
			switch v := value.(type) {
			case int:
				return fmt.Sprintf("%0*d", width, v)
			case string:
				if n, err := strconv.Atoi(v); err == nil {
					return fmt.Sprintf("%0*d", width, n)
				}
			}
		}
		return fmt.Sprintf("%v", value)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: missing keys %v", ErrTemplate, missing)
	}
	return rendered, nil
}

// SanitizeSegment makes one path segment filesystem-safe: control
// characters stripped, path separators replaced by a single space,
// whitespace collapsed, trimmed. Sanitizing a sanitized segment is a fixed
// point. Empty results and dot segments are rejected by the builder.
func SanitizeSegment(segment string) string {
	var sb strings.Builder
	for _, ch := range segment {
		switch {
		case ch == '/' || ch == '\\':
			sb.WriteRune(' ')
		case unicode.IsControl(ch):
			// dropped
		default:
			sb.WriteRune(ch)
		}
	}
	collapsed := strings.Join(strings.Fields(sb.String()), " ")
	return strings.TrimSpace(collapsed)
}

// Builder renders destinations for one sport.
type Builder struct {
	destinationDir string
}

// NewBuilder creates a Builder rooted at destinationDir.
func NewBuilder(destinationDir string) *Builder {
	return &Builder{destinationDir: filepath.Clean(destinationDir)}
}

// Build renders the three templates against the context and joins them
// under the destination directory. Every rendered segment is sanitized; any
// path escaping the destination root is rejected.
func (b *Builder) Build(templates config.Templates, context map[string]interface{}) (string, error) {
	segments := make([]string, 0, 3)
	for _, template := range []string{templates.RootFolder, templates.SeasonFolder, templates.Filename} {
		if template == "" {
			continue
		}
		rendered, err := Render(template, context)
		if err != nil {
			return "", err
		}
		sanitized := SanitizeSegment(rendered)
		if sanitized == "" || sanitized == "." || sanitized == ".." {
			return "", fmt.Errorf("%w: template %q rendered empty segment", ErrUnsafePath, template)
		}
		if len(sanitized) > maxSegmentBytes {
			return "", fmt.Errorf("%w: %d bytes", ErrNameTooLong, len(sanitized))
		}
		segments = append(segments, sanitized)
	}
	if len(segments) == 0 {
		return "", fmt.Errorf("%w: no templates rendered", ErrUnsafePath)
	}

	full := filepath.Join(append([]string{b.destinationDir}, segments...)...)
	full = filepath.Clean(full)
	if !strings.HasPrefix(full, b.destinationDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes destination dir", ErrUnsafePath, full)
	}
	return full, nil
}
