package destination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0len/Playbook/internal/config"
	"github.com/s0len/Playbook/internal/metadata"
)

func TestBuildContextExposesDocumentedKeys(t *testing.T) {
	available := time.Date(2025, 5, 25, 0, 0, 0, 0, time.UTC)
	sport := &config.Sport{ID: "formula1_2025", Name: "Formula 1"}
	show := &metadata.Show{Title: "Formula 1 2025", DisplayTitle: "FORMULA 1 2025"}
	season := &metadata.Season{Number: 5, RoundNumber: 5, Year: 2025, Title: "Monaco Grand Prix"}
	episode := &metadata.Episode{
		Number: 6, DisplayNumber: 6, Title: "Race",
		Summary:             "Lights out in Monte Carlo",
		OriginallyAvailable: &available,
	}

	context := BuildContext(sport, show, season, episode,
		"/data/source/incoming/Formula.1.2025.Round05.Monaco.Race.mkv",
		"/data/source",
		map[string]string{"round": "05", "session": "Race"})

	assert.Equal(t, "formula1_2025", context["sport_id"])
	assert.Equal(t, "Formula 1", context["sport_name"])
	assert.Equal(t, "Formula 1 2025", context["show_title"])
	assert.Equal(t, "FORMULA 1 2025", context["show_display_title"])
	assert.Equal(t, 5, context["season_number"])
	assert.Equal(t, 2025, context["season_year"])
	assert.Equal(t, "Race", context["episode_title"])
	assert.Equal(t, 6, context["episode_number"])
	assert.Equal(t, "2025-05-25", context["episode_originally_available"])
	assert.Equal(t, ".mkv", context["extension"])
	assert.Equal(t, "Formula.1.2025.Round05.Monaco.Race", context["source_stem"])
	assert.Equal(t, "incoming/Formula.1.2025.Round05.Monaco.Race.mkv", context["relative_source"])
	// Capture groups merge at top level.
	assert.Equal(t, "05", context["round"])
}

func TestBuildContextGroupsNeverOverrideCanonicalKeys(t *testing.T) {
	sport := &config.Sport{ID: "nba"}
	show := &metadata.Show{Title: "NBA"}
	season := &metadata.Season{Number: 1}
	episode := &metadata.Episode{Number: 1, Title: "Game"}

	context := BuildContext(sport, show, season, episode, "/s/x.mkv", "/s",
		map[string]string{"show_title": "Spoofed"})
	assert.Equal(t, "NBA", context["show_title"])
}

func TestBuildContextSportNameFallsBackToID(t *testing.T) {
	sport := &config.Sport{ID: "nhl_2025"}
	show := &metadata.Show{Title: "NHL"}
	context := BuildContext(sport, show, &metadata.Season{}, &metadata.Episode{}, "/s/x.mkv", "/s", nil)
	require.Equal(t, "nhl_2025", context["sport_name"])
}
