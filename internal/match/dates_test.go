package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateStringFullFormats(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"2025-11-22", "2025-11-22"},
		{"2025.11.22", "2025-11-22"},
		{"2025/11/22", "2025-11-22"},
		{"22-11-2025", "2025-11-22"},
		{"22 11 2025", "2025-11-22"},
	}
	for _, tt := range tests {
		parsed, ok := parseDateString(tt.input, 0)
		require.True(t, ok, tt.input)
		assert.Equal(t, tt.expected, parsed.Format("2006-01-02"), tt.input)
	}
}

func TestParseDateStringPartialNeedsReferenceYear(t *testing.T) {
	_, ok := parseDateString("22 12", 0)
	assert.False(t, ok)

	parsed, ok := parseDateString("22 12", 2025)
	require.True(t, ok)
	assert.Equal(t, "2025-12-22", parsed.Format("2006-01-02"))
}

func TestParseDateFromGroups(t *testing.T) {
	groups := map[string]string{"day": "22", "month": "11", "year": "2025"}
	parsed, ok := parseDateFromGroups(groups)
	require.True(t, ok)
	assert.Equal(t, "2025-11-22", parsed.Format("2006-01-02"))

	_, ok = parseDateFromGroups(map[string]string{"day": "22", "month": "11"})
	assert.False(t, ok)

	_, ok = parseDateFromGroups(map[string]string{"day": "40", "month": "11", "year": "2025"})
	assert.False(t, ok)
}

func TestDatesWithin(t *testing.T) {
	a := time.Date(2025, 12, 22, 0, 0, 0, 0, time.UTC)
	b := time.Date(2025, 12, 24, 0, 0, 0, 0, time.UTC)
	c := time.Date(2025, 12, 26, 0, 0, 0, 0, time.UTC)

	assert.True(t, datesWithin(a, b, 2))
	assert.True(t, datesWithin(b, a, 2))
	assert.False(t, datesWithin(a, c, 2))
	assert.Equal(t, 2, daysApart(a, b))
}

func TestStripTeamNoise(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Boston Celtics 1080p", "Boston Celtics"},
		{"Boston Celtics 22 12", "Boston Celtics"},
		{"Indiana Pacers ESPN", "Indiana Pacers"},
		{"Rangers 60fps extra", "Rangers"},
		{"Plain Name", "Plain Name"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, stripTeamNoise(tt.input), tt.input)
	}
}

func TestWithoutPartSuffix(t *testing.T) {
	assert.Equal(t, "race", withoutPartSuffix("racepart1"))
	assert.Equal(t, "", withoutPartSuffix("race"))
}
