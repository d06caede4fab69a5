package match

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/s0len/Playbook/internal/config"
	"github.com/s0len/Playbook/internal/metadata"
	"github.com/s0len/Playbook/internal/pattern"
)

// Engine matches filenames against a sport runtime. It is stateless; the
// per-pass state lives in the Runtime snapshot.
type Engine struct{}

// NewEngine returns the matching engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Match selects (season, episode) for a source path, or a reason-coded
// Failure. The algorithm is deterministic: filters, then the pattern pass
// in ascending priority, then the structured fallback.
func (e *Engine) Match(sourcePath string, runtime *Runtime) (*Result, *Failure) {
	if !runtime.Sport.Enabled {
		return nil, failf(ReasonSportDisabled, "%s", runtime.Sport.ID)
	}

	filename := filepath.Base(sourcePath)
	if fail := e.filter(filename, runtime); fail != nil {
		return nil, fail
	}

	result, patternFailure := e.patternPass(filename, runtime)
	if result != nil {
		return result, nil
	}

	result, structuredFailure := e.structuredPass(filename, runtime)
	if result != nil {
		return result, nil
	}

	if structuredFailure != nil {
		return nil, structuredFailure
	}
	if patternFailure != nil {
		return nil, patternFailure
	}
	return nil, failf(ReasonNoPatternMatched, "%s", filename)
}

// filter applies the sport's source_globs and source_extensions.
func (e *Engine) filter(filename string, runtime *Runtime) *Failure {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(runtime.Extensions) > 0 && !runtime.Extensions[ext] {
		return failf(ReasonIgnoredByFilter, "extension %q not accepted by %s", ext, runtime.Sport.ID)
	}
	if globs := runtime.Sport.SourceGlobs; len(globs) > 0 {
		matched := false
		for _, glob := range globs {
			if ok, err := filepath.Match(glob, filename); err == nil && ok {
				matched = true
				break
			}
		}
		if !matched {
			return failf(ReasonIgnoredByFilter, "excluded by source_globs %v", globs)
		}
	}
	return nil
}

// patternPass iterates compiled patterns in ascending priority and returns
// the first rule whose season and episode both resolve. The returned
// failure is the last non-match seen, for diagnostics.
func (e *Engine) patternPass(filename string, runtime *Runtime) (*Result, *Failure) {
	var lastFailure *Failure

	for _, compiled := range runtime.Patterns {
		groups := compiled.MatchGroups(filename)
		if groups == nil {
			continue
		}

		// A captured year must agree with the sport's variant year, so a
		// 2026 release is left for the 2026 variant to claim.
		if runtime.Sport.VariantYear != 0 {
			if yearStr, ok := groups["year"]; ok {
				if year, err := strconv.Atoi(yearStr); err == nil && year != runtime.Sport.VariantYear {
					continue
				}
			}
		}

		if _, ok := groups["date_year"]; !ok {
			if _, hasYear := groups["year"]; hasYear {
				if _, hasMonth := groups["month"]; hasMonth {
					if _, hasDay := groups["day"]; hasDay {
						groups["date_year"] = groups["year"]
					}
				}
			}
		}

		rule := compiled.Rule
		season := SelectSeason(runtime.Show, rule.SeasonSelector, groups)

		if rule.SeasonSelector.Mode == "date" && season != nil {
			if count := seasonsContainingDate(runtime.Show, rule.SeasonSelector, groups); count > 1 {
				lastFailure = failf(ReasonAmbiguous,
					"%s: date resolves to %d seasons", compiled.ID(), count)
				continue
			}
		}

		var pick *episodePick
		if season != nil {
			idx := pattern.BuildSessionLookup(rule, season)
			pick = SelectEpisode(rule, season, idx, groups, runtime.AliasLookup)
		}

		if (season == nil || pick == nil) && rule.FallbackMatchupSeason {
			for _, candidate := range runtime.Show.Seasons {
				if candidate == season {
					continue
				}
				idx := pattern.BuildSessionLookup(rule, candidate)
				if p := SelectEpisode(rule, candidate, idx, groups, runtime.AliasLookup); p != nil {
					season = candidate
					pick = p
					break
				}
			}
		}

		if season == nil {
			reason := ReasonSeasonNotFound
			if rule.SeasonSelector.Mode == "date" {
				// Under a date selector no season means no dated episode matched.
				reason = ReasonEpisodeNotFound
			}
			lastFailure = failf(reason,
				"%s: selector mode=%q groups=%s", compiled.ID(), rule.SeasonSelector.Mode, summarizeGroups(groups))
			continue
		}
		if pick == nil {
			lastFailure = failf(ReasonEpisodeNotFound,
				"%s: season %q groups=%s", compiled.ID(), season.Title, summarizeGroups(groups))
			continue
		}

		ruleCopy := rule
		return &Result{
			Season:       season,
			Episode:      pick.episode,
			PatternID:    compiled.ID(),
			Priority:     rule.Priority,
			Groups:       groups,
			ExactSession: pick.exact,
			Rule:         &ruleCopy,
		}, nil
	}

	return nil, lastFailure
}

// seasonsContainingDate counts the seasons holding an episode on the
// selector's rendered date; more than one is ambiguous.
func seasonsContainingDate(show *metadata.Show, selector config.SeasonSelector, groups map[string]string) int {
	value := selectorValue(selector, groups, "date")
	if value == "" {
		return 0
	}
	parsed, ok := parseDateString(value, 0)
	if !ok {
		return 0
	}
	count := 0
	for _, season := range show.Seasons {
		for _, episode := range season.Episodes {
			if date, has := episode.Date(); has && date.Equal(parsed) {
				count++
				break
			}
		}
	}
	return count
}

// structuredPass parses the filename heuristically and scores candidate
// episodes. Candidate seasons are narrowed by round, week, then date, in
// that order, when the pattern pass did not pick one. A parse that carries
// real signal but selects no episode is an EpisodeNotFound, not a silent
// miss.
func (e *Engine) structuredPass(filename string, runtime *Runtime) (*Result, *Failure) {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	parsed := ParseStructured(stem, runtime.AliasLookup)
	if parsed == nil {
		return nil, nil
	}

	seasons := candidateSeasons(runtime.Show, parsed)

	var bestSeason *metadata.Season
	var bestEpisode *metadata.Episode
	bestScore := 0.0
	for _, season := range seasons {
		for _, episode := range season.Episodes {
			score := ScoreStructured(parsed, season, episode, runtime.AliasLookup)
			if score < bestScore {
				continue
			}
			if score > bestScore {
				bestSeason, bestEpisode, bestScore = season, episode, score
				continue
			}
			// Equal scores resolve to the earliest episode by number,
			// then the earliest season.
			if bestEpisode == nil {
				continue
			}
			if episode.Number < bestEpisode.Number ||
				(episode.Number == bestEpisode.Number && season.Number < bestSeason.Number) {
				bestSeason, bestEpisode = season, episode
			}
		}
	}

	if bestEpisode == nil || bestScore < StructuredThreshold {
		if len(parsed.Teams) > 0 {
			return nil, failf(ReasonEpisodeNotFound,
				"no episode matches %s (best score %.2f)", strings.Join(parsed.Teams, " vs "), bestScore)
		}
		return nil, nil
	}

	groups := map[string]string{
		"structured_matchup": strings.Join(parsed.Teams, " vs "),
	}
	if parsed.Date != nil {
		groups["structured_date"] = parsed.Date.Format("2006-01-02")
	}
	if parsed.Session != "" {
		groups["structured_session"] = parsed.Session
	}
	if parsed.Year > 0 {
		groups["year"] = strconv.Itoa(parsed.Year)
	}

	exact := false
	if parsed.Session != "" {
		token := normalizedSessionToken(parsed.Session)
		for _, known := range bestEpisode.SessionTokens {
			if known == token {
				exact = true
				break
			}
		}
	}

	return &Result{
		Season:       bestSeason,
		Episode:      bestEpisode,
		PatternID:    "structured",
		Priority:     StructuredPriority,
		Groups:       groups,
		ExactSession: exact,
	}, nil
}

// candidateSeasons narrows the structured search space: round first, week
// second, date third; otherwise every season.
func candidateSeasons(show *metadata.Show, parsed *StructuredName) []*metadata.Season {
	if parsed.Round > 0 {
		var out []*metadata.Season
		for _, season := range show.Seasons {
			if season.RoundNumber == parsed.Round || season.Number == parsed.Round {
				out = append(out, season)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	if parsed.Week > 0 {
		var out []*metadata.Season
		for _, season := range show.Seasons {
			if season.Number == parsed.Week {
				out = append(out, season)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	if parsed.Date != nil {
		var out []*metadata.Season
		for _, season := range show.Seasons {
			for _, episode := range season.Episodes {
				if date, ok := episode.Date(); ok && datesWithin(date, *parsed.Date, DateTolerance) {
					out = append(out, season)
					break
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return show.Seasons
}

func summarizeGroups(groups map[string]string) string {
	if len(groups) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(groups))
	for key, value := range groups {
		parts = append(parts, fmt.Sprintf("%s=%q", key, value))
	}
	return strings.Join(parts, ", ")
}
