package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0len/Playbook/internal/config"
	"github.com/s0len/Playbook/internal/metadata"
	"github.com/s0len/Playbook/internal/pattern"
)

func indycarSeason() *metadata.Season {
	return &metadata.Season{
		Number: 1,
		Title:  "2025 Season",
		Episodes: []*metadata.Episode{
			{Number: 3, DisplayNumber: 3, Title: "The Thermal Club Grand Prix",
				SessionTokens: []string{"thethermalclubgrandprix"}},
			{Number: 4, DisplayNumber: 3, Title: "Thermal Qualifying",
				SessionTokens: []string{"thermalqualifying"}},
			{Number: 5, DisplayNumber: 5, Title: "Long Beach Grand Prix",
				SessionTokens: []string{"longbeachgrandprix"}},
		},
	}
}

func TestRoundFallbackPrefersExactLocation(t *testing.T) {
	season := indycarSeason()

	pick := roundFallback(season, map[string]string{
		"round":    "3",
		"location": "Thermal",
		"session":  "Telecast",
	})
	require.NotNil(t, pick)
	// Both round-3 episodes mention Thermal; exact containment picks the
	// first whose title contains the location token.
	assert.Contains(t, pick.episode.Title, "Thermal")
	assert.Equal(t, 3, pick.episode.Number)
	assert.True(t, pick.exact)
}

func TestRoundFallbackWithoutLocationTakesFirstRoundEpisode(t *testing.T) {
	season := indycarSeason()
	rule := config.PatternRule{EpisodeSelector: config.EpisodeSelector{Group: "session"}}
	idx := pattern.BuildSessionLookup(rule, season)

	pick := SelectEpisode(rule, season, idx, map[string]string{
		"round":   "5",
		"session": "Telecast",
	}, nil)
	require.NotNil(t, pick)
	assert.Equal(t, 5, pick.episode.Number)
}

func TestDateFallbackPicksClosestEpisode(t *testing.T) {
	show, _ := nbaShow()
	season := show.Seasons[0]
	rule := config.PatternRule{EpisodeSelector: config.EpisodeSelector{Group: "session"}}
	idx := pattern.BuildSessionLookup(rule, season)

	pick := SelectEpisode(rule, season, idx, map[string]string{
		"event_date": "22 12",
		"year":       "2025",
	}, nil)
	require.NotNil(t, pick)
	// December 22 has two episodes; the lowest episode number wins.
	assert.Equal(t, 42, pick.episode.Number)
}

func TestSelectEpisodeNilWhenNothingResolves(t *testing.T) {
	season := indycarSeason()
	rule := config.PatternRule{EpisodeSelector: config.EpisodeSelector{Group: "session"}}
	idx := pattern.BuildSessionLookup(rule, season)

	pick := SelectEpisode(rule, season, idx, map[string]string{"session": "Snooker"}, nil)
	assert.Nil(t, pick)
}
