package metadata

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrNormalization is returned when raw metadata cannot be converted into
// the canonical model. It is fatal for the affected sport only.
var ErrNormalization = errors.New("normalization failed")

var titleCaser = cases.Title(language.English)

// TitleizePreservingAcronyms title-cases lower-case tokens and leaves
// fully upper-case tokens untouched, so "ntt indycar series" becomes
// "Ntt Indycar Series" only when the source lost the casing, while
// "NTT INDYCAR Series" keeps its acronyms.
func TitleizePreservingAcronyms(value string) string {
	if value == "" {
		return value
	}
	words := strings.Fields(value)
	for i, word := range words {
		if word == strings.ToUpper(word) && strings.ContainsAny(word, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
			continue
		}
		if word == strings.ToLower(word) {
			words[i] = titleCaser.String(word)
		}
	}
	return strings.Join(words, " ")
}

// Normalize converts a raw provider document into the canonical Show model.
// Invariants established here: every season has Number >= 0; episode
// numbers are unique within a season; session tokens contain no empty
// strings; aliases are case-folded and deduplicated.
func Normalize(raw *RawShow) (*Show, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty document", ErrNormalization)
	}
	if raw.Show.Title == "" {
		return nil, fmt.Errorf("%w: show has no title", ErrNormalization)
	}

	show := &Show{
		ID:           raw.Show.ID,
		DisplayTitle: raw.Show.Title,
		Title:        TitleizePreservingAcronyms(raw.Show.Title),
		Aliases:      foldAliases(raw.Show.Aliases),
	}
	if show.ID == "" {
		show.ID = raw.Show.Slug
	}

	seasons := make([]RawSeason, len(raw.Seasons))
	copy(seasons, raw.Seasons)
	sort.SliceStable(seasons, func(i, j int) bool { return seasons[i].Number < seasons[j].Number })

	seenNumbers := make(map[int]bool, len(seasons))
	for _, rawSeason := range seasons {
		if rawSeason.Number < 0 {
			return nil, fmt.Errorf("%w: season %q has negative number %d",
				ErrNormalization, rawSeason.Title, rawSeason.Number)
		}
		if seenNumbers[rawSeason.Number] {
			return nil, fmt.Errorf("%w: duplicate season number %d", ErrNormalization, rawSeason.Number)
		}
		seenNumbers[rawSeason.Number] = true

		season, err := normalizeSeason(rawSeason)
		if err != nil {
			return nil, err
		}
		show.Seasons = append(show.Seasons, season)
	}

	return show, nil
}

func normalizeSeason(raw RawSeason) (*Season, error) {
	season := &Season{
		Key:         raw.Key,
		Number:      raw.Number,
		Title:       TitleizePreservingAcronyms(raw.Title),
		RoundNumber: raw.Number,
		Aliases:     foldAliases(raw.Aliases),
	}
	if season.Key == "" {
		season.Key = fmt.Sprintf("%d", raw.Number)
	}
	if raw.Round != nil {
		season.RoundNumber = *raw.Round
	}
	if raw.Year != nil {
		season.Year = *raw.Year
	}

	episodes := make([]RawEpisode, len(raw.Episodes))
	copy(episodes, raw.Episodes)
	sort.SliceStable(episodes, func(i, j int) bool { return episodes[i].Number < episodes[j].Number })

	seen := make(map[int]bool, len(episodes))
	for _, rawEpisode := range episodes {
		if seen[rawEpisode.Number] {
			return nil, fmt.Errorf("%w: season %q has duplicate episode number %d",
				ErrNormalization, raw.Title, rawEpisode.Number)
		}
		seen[rawEpisode.Number] = true

		episode := &Episode{
			Number:        rawEpisode.Number,
			DisplayNumber: rawEpisode.Number,
			Title:         rawEpisode.Title,
			Summary:       rawEpisode.Summary,
			Aliases:       foldAliases(rawEpisode.Aliases),
		}
		if rawEpisode.DisplayNumber != nil {
			episode.DisplayNumber = *rawEpisode.DisplayNumber
		}
		if rawEpisode.OriginallyAvailable != "" {
			parsed, err := time.Parse("2006-01-02", rawEpisode.OriginallyAvailable)
			if err != nil {
				return nil, fmt.Errorf("%w: episode %q has unparsable date %q",
					ErrNormalization, rawEpisode.Title, rawEpisode.OriginallyAvailable)
			}
			episode.OriginallyAvailable = &parsed
		}
		episode.SessionTokens = buildSessionTokens(episode, nil)
		season.Episodes = append(season.Episodes, episode)
	}

	return season, nil
}

// buildSessionTokens returns the case-folded union of the episode title,
// its aliases, and any extra pattern-injected aliases, with empties dropped.
func buildSessionTokens(episode *Episode, extra []string) []string {
	seen := make(map[string]bool)
	var tokens []string
	add := func(value string) {
		token := NormalizeToken(value)
		if token == "" || seen[token] {
			return
		}
		seen[token] = true
		tokens = append(tokens, token)
	}
	add(episode.Title)
	for _, alias := range episode.Aliases {
		add(alias)
	}
	for _, alias := range extra {
		add(alias)
	}
	return tokens
}

// InjectSessionAliases merges pattern-level session aliases into every
// episode's session tokens. Called once per sport after pattern rules load.
func InjectSessionAliases(show *Show, aliases map[string][]string) {
	if len(aliases) == 0 {
		return
	}
	var flat []string
	for canonical, variants := range aliases {
		flat = append(flat, canonical)
		flat = append(flat, variants...)
	}
	for _, season := range show.Seasons {
		for _, episode := range season.Episodes {
			episode.SessionTokens = buildSessionTokens(episode, flat)
		}
	}
}

// BuildAliasLookup derives the per-sport alias lookup: configured team
// aliases first, then team names mined from episode titles of the form
// "A vs B" / "A at B", the way matchups are usually titled.
func BuildAliasLookup(show *Show, configured map[string]string) AliasLookup {
	lookup := make(AliasLookup, len(configured))
	for alias, canonical := range configured {
		lookup.Add(alias, canonical)
	}
	for _, season := range show.Seasons {
		for _, episode := range season.Episodes {
			for _, team := range SplitMatchup(episode.Title) {
				lookup.Add(team, team)
			}
			for _, alias := range episode.Aliases {
				lookup.Add(alias, episode.Title)
			}
		}
	}
	return lookup
}

var matchupSeparators = []string{" vs ", " vs. ", " v ", " at ", " @ "}

// SplitMatchup splits a "Team A vs Team B" style title into its team names.
// Returns nil when the title does not look like a matchup.
func SplitMatchup(title string) []string {
	lowered := strings.ToLower(title)
	for _, sep := range matchupSeparators {
		idx := strings.Index(lowered, sep)
		if idx <= 0 {
			continue
		}
		left := strings.TrimSpace(title[:idx])
		right := strings.TrimSpace(title[idx+len(sep):])
		if left == "" || right == "" {
			continue
		}
		return []string{left, right}
	}
	return nil
}

func foldAliases(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, value := range values {
		folded := strings.ToLower(strings.TrimSpace(value))
		if folded == "" || seen[folded] {
			continue
		}
		seen[folded] = true
		out = append(out, folded)
	}
	return out
}
