package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0len/Playbook/internal/config"
	"github.com/s0len/Playbook/internal/metadata"
	"github.com/s0len/Playbook/internal/pattern"
)

func f1Runtime(t *testing.T) *Runtime {
	t.Helper()
	show := &metadata.Show{
		Title: "Formula 1 2025",
		Seasons: []*metadata.Season{{
			Number:      5,
			RoundNumber: 5,
			Title:       "Monaco Grand Prix",
			Year:        2025,
			Episodes: []*metadata.Episode{
				{Number: 1, Title: "FP1", SessionTokens: []string{"fp1"}},
				{Number: 2, Title: "FP2", SessionTokens: []string{"fp2"}},
				{Number: 3, Title: "FP3", SessionTokens: []string{"fp3"}},
				{Number: 4, Title: "Qualifying", SessionTokens: []string{"qualifying"}},
				{Number: 5, Title: "Sprint", SessionTokens: []string{"sprint"}},
				{Number: 6, Title: "Race", SessionTokens: []string{"race"}},
			},
		}},
	}

	sport := &config.Sport{
		ID:      "formula1_2025",
		Name:    "Formula 1",
		Enabled: true,
	}
	rules := []config.PatternRule{{
		Regex:           `Formula\.1\.(?P<year>\d{4})\.Round(?P<round>\d+)\.(?P<location>[A-Za-z]+)\.(?P<session>[A-Za-z0-9]+)\.`,
		Description:     "round-based release",
		Priority:        10,
		SeasonSelector:  config.SeasonSelector{Mode: "round", Group: "round"},
		EpisodeSelector: config.EpisodeSelector{Group: "session"},
	}}
	compiled, err := pattern.Compile(rules, show)
	require.NoError(t, err)

	return &Runtime{
		Sport:       sport,
		Show:        show,
		Patterns:    compiled,
		AliasLookup: metadata.BuildAliasLookup(show, nil),
	}
}

func TestEngineRoundBasedMotorsport(t *testing.T) {
	engine := NewEngine()
	result, failure := engine.Match("Formula.1.2025.Round05.Monaco.Race.mkv", f1Runtime(t))
	require.Nil(t, failure)
	require.NotNil(t, result)

	assert.Equal(t, 5, result.Season.Number)
	assert.Equal(t, "Monaco Grand Prix", result.Season.Title)
	assert.Equal(t, 6, result.Episode.Number)
	assert.Equal(t, "Race", result.Episode.Title)
	assert.Equal(t, "round-based release", result.PatternID)
	assert.True(t, result.ExactSession)
	assert.Equal(t, "05", result.Groups["round"])
}

func TestEngineSportDisabled(t *testing.T) {
	runtime := f1Runtime(t)
	runtime.Sport.Enabled = false
	_, failure := NewEngine().Match("Formula.1.2025.Round05.Monaco.Race.mkv", runtime)
	require.NotNil(t, failure)
	assert.Equal(t, ReasonSportDisabled, failure.Reason)
}

func TestEngineExtensionFilter(t *testing.T) {
	runtime := f1Runtime(t)
	runtime.Extensions = map[string]bool{".mkv": true}
	_, failure := NewEngine().Match("Formula.1.2025.Round05.Monaco.Race.nfo", runtime)
	require.NotNil(t, failure)
	assert.Equal(t, ReasonIgnoredByFilter, failure.Reason)
}

func TestEngineGlobFilter(t *testing.T) {
	runtime := f1Runtime(t)
	runtime.Sport.SourceGlobs = []string{"Formula.1.*"}
	_, failure := NewEngine().Match("MotoGP.2025.Round05.Race.mkv", runtime)
	require.NotNil(t, failure)
	assert.Equal(t, ReasonIgnoredByFilter, failure.Reason)
}

func TestEngineSeasonNotFound(t *testing.T) {
	_, failure := NewEngine().Match("Formula.1.2025.Round99.Nowhere.Race.mkv", f1Runtime(t))
	require.NotNil(t, failure)
	assert.Equal(t, ReasonSeasonNotFound, failure.Reason)
}

func TestEngineVariantYearFilter(t *testing.T) {
	runtime := f1Runtime(t)
	runtime.Sport.VariantYear = 2024
	_, failure := NewEngine().Match("Formula.1.2025.Round05.Monaco.Race.mkv", runtime)
	require.NotNil(t, failure)
	assert.Equal(t, ReasonNoPatternMatched, failure.Reason)
}

func TestEngineFuzzySessionMatch(t *testing.T) {
	result, failure := NewEngine().Match("Formula.1.2025.Round05.Monaco.Qualifyng.mkv", f1Runtime(t))
	require.Nil(t, failure)
	require.NotNil(t, result)
	assert.Equal(t, "Qualifying", result.Episode.Title)
	assert.False(t, result.ExactSession)
}

func nhlRuntime(t *testing.T) *Runtime {
	t.Helper()
	show := &metadata.Show{
		Title: "NHL 2025",
		Seasons: []*metadata.Season{
			{
				Number: 1,
				Title:  "October",
				Episodes: []*metadata.Episode{{
					Number: 3, Title: "New Jersey Devils vs Philadelphia Flyers",
					OriginallyAvailable: date(2025, time.October, 9),
					SessionTokens:       []string{"newjerseydevilsvsphiladelphiaflyers"},
				}},
			},
			{
				Number: 2,
				Title:  "November",
				Episodes: []*metadata.Episode{
					{
						Number: 7, Title: "New Jersey Devils vs Philadelphia Flyers",
						OriginallyAvailable: date(2025, time.November, 22),
						SessionTokens:       []string{"newjerseydevilsvsphiladelphiaflyers"},
					},
					{
						Number: 8, Title: "Boston Bruins vs Toronto Maple Leafs",
						OriginallyAvailable: date(2025, time.November, 23),
						SessionTokens:       []string{"bostonbruinsvstorontomapleleafs"},
					},
				},
			},
		},
	}

	sport := &config.Sport{
		ID:      "nhl_2025",
		Name:    "NHL",
		Enabled: true,
		TeamAliasMap: map[string]string{
			"NJD": "New Jersey Devils",
			"PHI": "Philadelphia Flyers",
		},
	}
	rules := []config.PatternRule{{
		Regex:       `NHL-(?P<year>\d{4})-(?P<month>\d{2})-(?P<day>\d{2})_(?P<away>[A-Z]{2,3})@(?P<home>[A-Z]{2,3})`,
		Description: "calendar-date release",
		Priority:    10,
		SeasonSelector: config.SeasonSelector{
			Mode:          "date",
			ValueTemplate: "{year}-{month:02}-{day:02}",
		},
	}}
	compiled, err := pattern.Compile(rules, show)
	require.NoError(t, err)

	return &Runtime{
		Sport:       sport,
		Show:        show,
		Patterns:    compiled,
		AliasLookup: metadata.BuildAliasLookup(show, sport.TeamAliasMap),
	}
}

func TestEngineCalendarDateHockey(t *testing.T) {
	result, failure := NewEngine().Match("NHL-2025-11-22_NJD@PHI.mkv", nhlRuntime(t))
	require.Nil(t, failure)
	require.NotNil(t, result)

	assert.Equal(t, 2, result.Season.Number)
	assert.Equal(t, 7, result.Episode.Number)
	assert.Equal(t, "New Jersey Devils vs Philadelphia Flyers", result.Episode.Title)
}

func TestEngineStructuredFallback(t *testing.T) {
	show, _ := nbaShow()
	runtime := &Runtime{
		Sport:       &config.Sport{ID: "nba_2025", Name: "NBA", Enabled: true},
		Show:        show,
		AliasLookup: metadata.BuildAliasLookup(show, nil),
	}

	result, failure := NewEngine().Match("NBA RS 2025 Indiana Pacers vs Boston Celtics 22 12.mkv", runtime)
	require.Nil(t, failure)
	require.NotNil(t, result)
	assert.Equal(t, 42, result.Episode.Number)
	assert.Equal(t, "structured", result.PatternID)
}

func TestEngineStructuredWrongAwayTeamRejected(t *testing.T) {
	// The only December 22 game is Boston vs Miami; an Indiana-Boston
	// release must not match it.
	show := &metadata.Show{
		Title: "NBA 2025",
		Seasons: []*metadata.Season{{
			Number: 1,
			Episodes: []*metadata.Episode{{
				Number: 43, Title: "Boston Celtics vs Miami Heat",
				OriginallyAvailable: date(2025, time.December, 22),
				SessionTokens:       []string{"bostoncelticsvsmiamiheat"},
			}},
		}},
	}
	lookup := metadata.BuildAliasLookup(show, nil)
	lookup.Add("Indiana Pacers", "Indiana Pacers")
	runtime := &Runtime{
		Sport:       &config.Sport{ID: "nba_2025", Enabled: true},
		Show:        show,
		AliasLookup: lookup,
	}

	result, failure := NewEngine().Match("NBA RS 2025 Indiana Pacers vs Boston Celtics 22 12.mkv", runtime)
	assert.Nil(t, result)
	require.NotNil(t, failure)
	assert.Equal(t, ReasonEpisodeNotFound, failure.Reason)
}

func TestEngineStructuredTieBreakEarliestEpisode(t *testing.T) {
	// Two identical-scoring candidates resolve to the lowest episode
	// number.
	show := &metadata.Show{
		Title: "NBA 2025",
		Seasons: []*metadata.Season{{
			Number: 1,
			Episodes: []*metadata.Episode{
				{Number: 20, Title: "Boston Celtics vs Indiana Pacers",
					OriginallyAvailable: date(2025, time.December, 22),
					SessionTokens:       []string{"bostoncelticsvsindianapacers"}},
				{Number: 7, Title: "Boston Celtics vs Indiana Pacers",
					OriginallyAvailable: date(2025, time.December, 22),
					SessionTokens:       []string{"bostoncelticsvsindianapacers"}},
			},
		}},
	}
	runtime := &Runtime{
		Sport:       &config.Sport{ID: "nba_2025", Enabled: true},
		Show:        show,
		AliasLookup: metadata.BuildAliasLookup(show, nil),
	}

	result, failure := NewEngine().Match("NBA 2025 Indiana Pacers vs Boston Celtics 22 12.mkv", runtime)
	require.Nil(t, failure)
	require.NotNil(t, result)
	assert.Equal(t, 7, result.Episode.Number)
}

func TestRenderValueTemplate(t *testing.T) {
	groups := map[string]string{"y": "2025", "m": "3", "d": "7"}
	assert.Equal(t, "2025-03-07", renderValueTemplate("{y}-{m:02}-{d:02}", groups))
	assert.Equal(t, "", renderValueTemplate("{y}-{missing}", groups))
}

func TestSelectSeasonModes(t *testing.T) {
	show := f1Runtime(t).Show

	season := SelectSeason(show, config.SeasonSelector{Mode: "round"}, map[string]string{"round": "5"})
	require.NotNil(t, season)
	assert.Equal(t, 5, season.Number)

	season = SelectSeason(show, config.SeasonSelector{Mode: "title", Group: "season"}, map[string]string{"season": "Monaco Grand Prix"})
	require.NotNil(t, season)
	assert.Equal(t, 5, season.Number)

	season = SelectSeason(show, config.SeasonSelector{Mode: "sequential"}, map[string]string{"season": "5"})
	require.NotNil(t, season)
	assert.Equal(t, 5, season.Number)

	assert.Nil(t, SelectSeason(show, config.SeasonSelector{Mode: "round"}, map[string]string{"round": "99"}))
}
