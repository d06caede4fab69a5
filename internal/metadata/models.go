// Package metadata fetches per-sport show metadata, normalizes it into the
// canonical Show/Season/Episode model, and serves it from an on-disk cache
// with TTL and change detection.
package metadata

import (
	"regexp"
	"strings"
	"time"
)

// Show is the normalized top-level entity for one sport.
type Show struct {
	ID    string
	Title string
	// DisplayTitle preserves the original casing from the source, so
	// acronyms like "NTT" survive template rendering.
	DisplayTitle string
	Aliases      []string
	Seasons      []*Season
}

// Season is one round/week/championship segment of a show.
type Season struct {
	// Key is the opaque identifier used by `key` season selectors.
	Key    string
	Number int
	Title  string
	// RoundNumber is the sport-specific round when the source supplies
	// one; otherwise it equals Number.
	RoundNumber int
	Year        int
	Aliases     []string
	Episodes    []*Episode
}

// Episode is a single session within a season.
type Episode struct {
	Number int
	// DisplayNumber may differ from Number for league-specific formats.
	DisplayNumber       int
	Title               string
	Summary             string
	OriginallyAvailable *time.Time
	Aliases             []string
	// SessionTokens is the case-folded union of the title, aliases, and
	// any pattern-injected session aliases. Built by the normalizer.
	SessionTokens []string
}

// Date returns the originally-available date truncated to midnight, or the
// zero time when unset.
func (e *Episode) Date() (time.Time, bool) {
	if e.OriginallyAvailable == nil {
		return time.Time{}, false
	}
	t := *e.OriginallyAvailable
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}

// SeasonByNumber returns the season with the given canonical number.
func (s *Show) SeasonByNumber(number int) *Season {
	for _, season := range s.Seasons {
		if season.Number == number {
			return season
		}
	}
	return nil
}

// EpisodeByNumber returns the episode with the given number.
func (s *Season) EpisodeByNumber(number int) *Episode {
	for _, episode := range s.Episodes {
		if episode.Number == number {
			return episode
		}
	}
	return nil
}

var tokenPattern = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeToken case-folds a value and strips everything but letters and
// digits, producing the token form used for alias lookups and fuzzy
// comparisons. Normalizing a normalized token is a fixed point.
func NormalizeToken(value string) string {
	return tokenPattern.ReplaceAllString(strings.ToLower(value), "")
}

// AliasLookup maps normalized alias tokens to canonical entity names.
type AliasLookup map[string]string

// Resolve returns the canonical name for a raw value, or the empty string.
func (a AliasLookup) Resolve(value string) string {
	if a == nil {
		return ""
	}
	return a[NormalizeToken(value)]
}

// Add registers an alias unless the token already resolves.
func (a AliasLookup) Add(alias, canonical string) {
	token := NormalizeToken(alias)
	if token == "" {
		return
	}
	if _, exists := a[token]; !exists {
		a[token] = canonical
	}
}
