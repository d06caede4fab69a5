package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func rawFixture() *RawShow {
	return &RawShow{
		Show: RawShowInfo{ID: "f1-2025", Slug: "formula-1-2025", Title: "Formula 1 2025"},
		Seasons: []RawSeason{
			{
				Key:    "s5",
				Number: 5,
				Title:  "Monaco Grand Prix",
				Round:  intPtr(5),
				Year:   intPtr(2025),
				Episodes: []RawEpisode{
					{Number: 2, Title: "Qualifying"},
					{Number: 1, Title: "Practice", Aliases: []string{"FP1"}, OriginallyAvailable: "2025-05-24"},
				},
			},
		},
	}
}

func TestTitleizePreservingAcronyms(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"acronym kept", "NTT indycar series", "NTT Indycar Series"},
		{"all lower", "formula one", "Formula One"},
		{"mixed case untouched", "IndyCar Series", "IndyCar Series"},
		{"all caps kept", "UFC FIGHT NIGHT", "UFC FIGHT NIGHT"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TitleizePreservingAcronyms(tt.input))
		})
	}
}

func TestNormalizeBuildsCanonicalModel(t *testing.T) {
	show, err := Normalize(rawFixture())
	require.NoError(t, err)

	assert.Equal(t, "f1-2025", show.ID)
	assert.Equal(t, "Formula 1 2025", show.DisplayTitle)
	require.Len(t, show.Seasons, 1)

	season := show.Seasons[0]
	assert.Equal(t, 5, season.Number)
	assert.Equal(t, 5, season.RoundNumber)
	assert.Equal(t, 2025, season.Year)

	// Episodes sort by number regardless of input order.
	require.Len(t, season.Episodes, 2)
	assert.Equal(t, "Practice", season.Episodes[0].Title)
	assert.Equal(t, "Qualifying", season.Episodes[1].Title)

	practice := season.Episodes[0]
	require.NotNil(t, practice.OriginallyAvailable)
	assert.Contains(t, practice.SessionTokens, "practice")
	assert.Contains(t, practice.SessionTokens, "fp1")
	for _, token := range practice.SessionTokens {
		assert.NotEmpty(t, token)
	}
}

func TestNormalizeRoundDefaultsToNumber(t *testing.T) {
	raw := rawFixture()
	raw.Seasons[0].Round = nil
	show, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, 5, show.Seasons[0].RoundNumber)
}

func TestNormalizeRejectsDuplicateEpisodeNumbers(t *testing.T) {
	raw := rawFixture()
	raw.Seasons[0].Episodes = []RawEpisode{
		{Number: 1, Title: "Race"},
		{Number: 1, Title: "Race Again"},
	}
	_, err := Normalize(raw)
	assert.ErrorIs(t, err, ErrNormalization)
}

func TestNormalizeRejectsNegativeSeasonNumber(t *testing.T) {
	raw := rawFixture()
	raw.Seasons[0].Number = -1
	_, err := Normalize(raw)
	assert.ErrorIs(t, err, ErrNormalization)
}

func TestNormalizeIsDeterministic(t *testing.T) {
	show, err := Normalize(rawFixture())
	require.NoError(t, err)
	again, err := Normalize(rawFixture())
	require.NoError(t, err)
	assert.Equal(t, ShowDigest(show), ShowDigest(again))
}

func TestNormalizeToken(t *testing.T) {
	assert.Equal(t, "monacograndprix", NormalizeToken("Monaco Grand Prix"))
	assert.Equal(t, "fp1", NormalizeToken("FP-1"))
	// Fixed point.
	assert.Equal(t, NormalizeToken("race"), NormalizeToken(NormalizeToken("Race")))
}

func TestBuildAliasLookupMinesMatchups(t *testing.T) {
	show := &Show{
		Seasons: []*Season{{
			Number: 1,
			Episodes: []*Episode{
				{Number: 1, Title: "Boston Celtics vs Indiana Pacers"},
			},
		}},
	}
	lookup := BuildAliasLookup(show, map[string]string{"NJD": "New Jersey Devils"})

	assert.Equal(t, "Boston Celtics", lookup.Resolve("boston celtics"))
	assert.Equal(t, "Indiana Pacers", lookup.Resolve("Indiana Pacers"))
	assert.Equal(t, "New Jersey Devils", lookup.Resolve("njd"))
	assert.Equal(t, "", lookup.Resolve("Miami Heat"))
}

func TestSplitMatchup(t *testing.T) {
	tests := []struct {
		title    string
		expected []string
	}{
		{"Boston Celtics vs Indiana Pacers", []string{"Boston Celtics", "Indiana Pacers"}},
		{"New Jersey Devils at Philadelphia Flyers", []string{"New Jersey Devils", "Philadelphia Flyers"}},
		{"Qualifying", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, SplitMatchup(tt.title))
	}
}

func TestInjectSessionAliases(t *testing.T) {
	show, err := Normalize(rawFixture())
	require.NoError(t, err)
	InjectSessionAliases(show, map[string][]string{"Practice": {"Free Practice"}})
	assert.Contains(t, show.Seasons[0].Episodes[0].SessionTokens, "freepractice")
}
