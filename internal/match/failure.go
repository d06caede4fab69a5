// Package match selects (sport, season, episode) for a release filename
// using compiled pattern rules first and structured filename parsing as the
// fallback, under deterministic tie-breaking rules.
package match

import (
	"fmt"

	"github.com/s0len/Playbook/internal/config"
	"github.com/s0len/Playbook/internal/metadata"
	"github.com/s0len/Playbook/internal/pattern"
)

// Reason codes a matching failure. Failures are reported per file; they
// never abort a pass.
type Reason string

const (
	ReasonNoPatternMatched Reason = "NoPatternMatched"
	ReasonSeasonNotFound   Reason = "SeasonNotFound"
	ReasonEpisodeNotFound  Reason = "EpisodeNotFound"
	ReasonAmbiguous        Reason = "Ambiguous"
	ReasonSportDisabled    Reason = "SportDisabled"
	ReasonIgnoredByFilter  Reason = "IgnoredByFilter"
)

// Failure is a reason-coded non-match.
type Failure struct {
	Reason Reason
	Detail string
}

func (f *Failure) Error() string {
	if f.Detail == "" {
		return string(f.Reason)
	}
	return fmt.Sprintf("%s: %s", f.Reason, f.Detail)
}

func failf(reason Reason, format string, args ...interface{}) *Failure {
	return &Failure{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Result is a successful match.
type Result struct {
	Season  *metadata.Season
	Episode *metadata.Episode
	// PatternID identifies the winning rule ("structured" for the
	// structured fallback pass).
	PatternID string
	// Priority is the winning rule's priority (structured matches use
	// StructuredPriority).
	Priority int
	// Groups carries the regex capture groups (or synthesized structured
	// fields) for template rendering.
	Groups map[string]string
	// ExactSession is set when the session token resolved without fuzzy
	// matching; it feeds the overwrite specificity rule.
	ExactSession bool
	// Rule is the winning rule configuration, nil for structured matches.
	Rule *config.PatternRule
}

// StructuredPriority orders structured-fallback matches after any
// explicit rule when destinations contend.
const StructuredPriority = 1 << 20

// Runtime is the immutable per-pass state for one sport: configuration,
// normalized show, compiled patterns, alias lookup, and the metadata
// fingerprint the patterns were built against.
type Runtime struct {
	Sport       *config.Sport
	Show        *metadata.Show
	Patterns    []*pattern.Compiled
	AliasLookup metadata.AliasLookup
	// Extensions is the lowercase extension set accepted by the sport.
	Extensions map[string]bool
	// MetadataFingerprint is the digest of the normalized model.
	MetadataFingerprint string
	// Stale is set when the pass is running on a stale cache entry.
	Stale bool
}
