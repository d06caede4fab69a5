package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, TokenSimilarity("race", "race"))
	assert.Greater(t, TokenSimilarity("qualifying", "qualifyng"), 0.85)
	assert.InDelta(t, 0.5, TokenSimilarity("race", "practice"), 1e-9)
}

func TestTokensClose(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		target    string
		expected  bool
	}{
		{"identical", "race", "race", true},
		{"single deletion", "qualifying", "qualifyng", true},
		{"transposition", "racing", "racign", true},
		{"too short", "rce", "rc", false},
		{"length gap", "race", "racing", false},
		{"first char differs", "race", "pace", false},
		{"unrelated", "practice", "prointec", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TokensClose(tt.candidate, tt.target))
		})
	}
}

func TestLocationMatchesTitle(t *testing.T) {
	assert.True(t, LocationMatchesTitle("monaco", "monaco grand prix"))
	assert.True(t, LocationMatchesTitle("thermal", "the thermal club indycar grand prix"))
	assert.False(t, LocationMatchesTitle("suzuka", "monaco grand prix"))
	assert.False(t, LocationMatchesTitle("", "monaco grand prix"))
}
