package match

import (
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/agnivade/levenshtein"
)

// FuzzyThreshold is the minimum normalized similarity for a session or
// location token to count as a fuzzy match.
const FuzzyThreshold = 0.85

var similarityMetric = metrics.NewLevenshtein()

// TokenSimilarity returns the normalized Levenshtein similarity between two
// tokens, in [0, 1].
func TokenSimilarity(candidate, target string) float64 {
	if candidate == target {
		return 1
	}
	return strutil.Similarity(candidate, target, similarityMetric)
}

// TokensClose reports whether two tokens are close enough for fuzzy session
// matching. The cheap exits (length, first character) mirror the buckets of
// the session lookup index, so every candidate the index returns gets the
// full check.
func TokensClose(candidate, target string) bool {
	if len(candidate) < 4 || len(target) < 4 {
		return false
	}
	diff := len(candidate) - len(target)
	if diff < -1 || diff > 1 {
		return false
	}
	if candidate[0] != target[0] {
		return false
	}

	if len(candidate) == len(target) && isTransposition(candidate, target) {
		return true
	}

	if levenshtein.ComputeDistance(candidate, target) <= 1 {
		return true
	}
	return TokenSimilarity(candidate, target) >= 0.92
}

// isTransposition reports whether the strings differ only by two adjacent
// swapped characters.
func isTransposition(a, b string) bool {
	var differing []int
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] {
			differing = append(differing, i)
			if len(differing) > 2 {
				return false
			}
		}
	}
	if len(differing) != 2 {
		return false
	}
	first, second := differing[0], differing[1]
	return a[first] == b[second] && a[second] == b[first]
}

// LocationMatchesTitle reports whether a location token appears in an event
// title, exactly or by fuzzy similarity against the title's token windows.
func LocationMatchesTitle(location, title string) bool {
	if location == "" || title == "" {
		return false
	}
	if strings.Contains(title, location) {
		return true
	}

	words := strings.Fields(title)
	for width := 1; width <= len(words); width++ {
		for start := 0; start+width <= len(words); start++ {
			window := strings.Join(words[start:start+width], "")
			if TokenSimilarity(location, window) >= FuzzyThreshold {
				return true
			}
		}
	}
	return false
}
