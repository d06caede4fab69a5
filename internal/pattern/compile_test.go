package pattern

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0len/Playbook/internal/config"
	"github.com/s0len/Playbook/internal/metadata"
)

func showFixture() *metadata.Show {
	date := time.Date(2025, 5, 25, 0, 0, 0, 0, time.UTC)
	return &metadata.Show{
		Title: "Formula 1 2025",
		Seasons: []*metadata.Season{
			{
				Number:      5,
				RoundNumber: 5,
				Title:       "Monaco Grand Prix",
				Episodes: []*metadata.Episode{
					{Number: 1, Title: "Practice", Aliases: []string{"FP1"}},
					{Number: 2, Title: "Race", OriginallyAvailable: &date},
				},
			},
		},
	}
}

func TestCompileSortsByPriority(t *testing.T) {
	rules := []config.PatternRule{
		{Regex: `Weak(?P<round>\d+)`, Priority: 100},
		{Regex: `Strong(?P<round>\d+)`, Priority: 10},
	}
	compiled, err := Compile(rules, showFixture())
	require.NoError(t, err)
	require.Len(t, compiled, 2)
	assert.Equal(t, 10, compiled[0].Rule.Priority)
	assert.Equal(t, 100, compiled[1].Rule.Priority)
}

func TestCompileRejectsMissingSeasonGroup(t *testing.T) {
	rules := []config.PatternRule{{
		Regex:          `Round(?P<round>\d+)`,
		SeasonSelector: config.SeasonSelector{Mode: "round", Group: "rnd"},
	}}
	_, err := Compile(rules, showFixture())
	assert.ErrorIs(t, err, ErrCompile)
}

func TestCompileRejectsMissingEpisodeGroup(t *testing.T) {
	rules := []config.PatternRule{{
		Regex:           `Round(?P<round>\d+)`,
		EpisodeSelector: config.EpisodeSelector{Group: "session"},
	}}
	_, err := Compile(rules, showFixture())
	assert.ErrorIs(t, err, ErrCompile)
}

func TestCompileRejectsMissingTemplateGroup(t *testing.T) {
	rules := []config.PatternRule{{
		Regex: `(?P<y>\d{4})-(?P<m>\d{2})`,
		SeasonSelector: config.SeasonSelector{
			Mode:          "date",
			ValueTemplate: "{y}-{m:02}-{d:02}",
		},
	}}
	_, err := Compile(rules, showFixture())
	assert.ErrorIs(t, err, ErrCompile)
}

func TestCompileValidatesDateModeAgainstMetadata(t *testing.T) {
	show := showFixture()
	for _, season := range show.Seasons {
		for _, episode := range season.Episodes {
			episode.OriginallyAvailable = nil
		}
	}
	rules := []config.PatternRule{{
		Regex:          `(?P<date>\d{4}-\d{2}-\d{2})`,
		SeasonSelector: config.SeasonSelector{Mode: "date"},
	}}
	_, err := Compile(rules, show)
	assert.ErrorIs(t, err, ErrCompile)
}

func TestCompileCaseInsensitiveByDefault(t *testing.T) {
	compiled, err := Compile([]config.PatternRule{{Regex: `round(?P<round>\d+)`}}, showFixture())
	require.NoError(t, err)
	groups := compiled[0].MatchGroups("Formula.1.2025.ROUND05.Race.mkv")
	require.NotNil(t, groups)
	assert.Equal(t, "05", groups["round"])
}

func TestBuildSessionLookupLayersAliases(t *testing.T) {
	season := showFixture().Seasons[0]
	rule := config.PatternRule{
		SessionAliases: map[string][]string{"Race": {"Feature"}},
	}
	idx := BuildSessionLookup(rule, season)

	// Episode titles and aliases resolve to the episode title.
	assert.Equal(t, "Practice", idx.GetDirect("practice"))
	assert.Equal(t, "Practice", idx.GetDirect("fp1"))
	// Rule aliases map to the rule's canonical name; the episode title
	// keeps precedence for the canonical token itself.
	assert.Equal(t, "Race", idx.GetDirect("feature"))
	assert.Equal(t, "Race", idx.GetDirect("race"))
	// Generic defaults fill in where the rule is silent.
	assert.Equal(t, "Qualifying", idx.GetDirect("quali"))
}
