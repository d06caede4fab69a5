package match

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/s0len/Playbook/internal/config"
	"github.com/s0len/Playbook/internal/metadata"
	"github.com/s0len/Playbook/internal/pattern"
)

// lookupAttempt is one candidate session token derived from the capture
// groups, ordered longest-first so the most specific variant wins.
type lookupAttempt struct {
	label string
	token string
}

// episodePick is the result of episode selection within a season.
type episodePick struct {
	episode *metadata.Episode
	exact   bool
}

// ResolveSessionLookup resolves a normalized token to its canonical session
// title: exact first, then fuzzy over the index's candidate buckets with
// similarity at or above FuzzyThreshold. The bool reports an exact hit.
func ResolveSessionLookup(idx *pattern.SessionLookupIndex, token string) (string, bool) {
	if direct := idx.GetDirect(token); direct != "" {
		return direct, true
	}
	if len(token) < 4 {
		return "", false
	}

	bestKey := ""
	bestScore := 0.0
	for _, candidate := range idx.GetCandidates(token) {
		if len(candidate) < 4 || !TokensClose(candidate, token) {
			continue
		}
		if score := TokenSimilarity(candidate, token); score > bestScore {
			bestKey = candidate
			bestScore = score
		}
	}
	if bestKey != "" && bestScore >= FuzzyThreshold {
		return idx.GetDirect(bestKey), false
	}
	return "", false
}

// SelectEpisode picks the episode within a season for the given capture
// groups: session lookup (exact, then fuzzy), round+location fallback,
// then date-proximity fallback.
func SelectEpisode(rule config.PatternRule, season *metadata.Season, idx *pattern.SessionLookupIndex, groups map[string]string, aliases metadata.AliasLookup) *episodePick {
	attempts := buildLookupAttempts(rule, idx, groups, aliases)
	parsedDate, hasDate := parseDateFromGroups(groups)

	for _, attempt := range attempts {
		canonical, exact := ResolveSessionLookup(idx, attempt.token)
		candidateTokens := []string{attempt.token}
		if canonical != "" {
			candidateTokens = append([]string{metadata.NormalizeToken(canonical)}, candidateTokens...)
		}
		for _, token := range candidateTokens {
			if token == "" {
				continue
			}
			episode := findEpisodeForToken(season, token, parsedDate, hasDate)
			if episode != nil {
				return &episodePick{
					episode: episode,
					exact:   exact || exactTitleHit(episode, attempt.token),
				}
			}
		}
	}

	if pick := roundFallback(season, groups); pick != nil {
		return pick
	}
	return dateFallback(season, groups)
}

func exactTitleHit(episode *metadata.Episode, token string) bool {
	if metadata.NormalizeToken(episode.Title) == token {
		return true
	}
	for _, alias := range episode.Aliases {
		if metadata.NormalizeToken(alias) == token {
			return true
		}
	}
	return false
}

// buildLookupAttempts expands the capture groups into candidate session
// tokens: the selector group's value and its part-stripped form, every
// other captured value, and away/home matchup orderings.
func buildLookupAttempts(rule config.PatternRule, idx *pattern.SessionLookupIndex, groups map[string]string, aliases metadata.AliasLookup) []lookupAttempt {
	seen := make(map[string]bool)
	var attempts []lookupAttempt
	add := func(label, value string) {
		if value == "" {
			return
		}
		token := normalizedSessionToken(value)
		if token == "" || seen[token] {
			return
		}
		seen[token] = true
		attempts = append(attempts, lookupAttempt{label: label, token: token})

		if without := withoutPartSuffix(token); without != "" && !seen[without] {
			seen[without] = true
			attempts = append(attempts, lookupAttempt{label: label + "_without_part", token: without})
		}
	}

	group := rule.EpisodeSelector.Group
	raw := groups[group]
	if raw == "" {
		raw = rule.EpisodeSelector.DefaultValue
	}
	if raw == "" && rule.EpisodeSelector.AllowFallbackToTitle {
		raw = titleFallbackValue(idx, groups)
	}
	add("session", raw)

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if key == group {
			continue
		}
		add(key, groups[key])
	}

	away := stripTeamNoise(groups["away"])
	home := stripTeamNoise(groups["home"])
	if canonical := aliases.Resolve(away); canonical != "" {
		away = canonical
	}
	if canonical := aliases.Resolve(home); canonical != "" {
		home = canonical
	}
	if away != "" && home != "" {
		separators := []string{"vs", "at", "v"}
		if sep := groups["separator"]; sep != "" {
			separators = append([]string{sep}, separators...)
		}
		for _, sep := range separators {
			add("away_home", away+" "+sep+" "+home)
			add("home_away", home+" "+sep+" "+away)
		}
	}

	if venue := groups["venue"]; venue != "" && raw != "" {
		add("venue_session", venue+" "+raw)
		add("session_venue", raw+" "+venue)
	}

	sort.SliceStable(attempts, func(i, j int) bool {
		return len(attempts[i].token) > len(attempts[j].token)
	})
	return attempts
}

// titleFallbackValue scans the joined capture text for the longest indexed
// session token it contains.
func titleFallbackValue(idx *pattern.SessionLookupIndex, groups map[string]string) string {
	var values []string
	for _, value := range groups {
		values = append(values, value)
	}
	joined := metadata.NormalizeToken(strings.Join(values, " "))

	keys := idx.Keys()
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	for _, key := range keys {
		if key != "" && strings.Contains(joined, key) {
			return key
		}
	}
	return ""
}

// findEpisodeForToken matches a token against episode titles and aliases.
// When the filename carries a date, proximity to originally_available
// disambiguates between repeats of the same matchup; without a dated
// candidate the match only stands if it is unambiguous.
func findEpisodeForToken(season *metadata.Season, token string, date time.Time, hasDate bool) *metadata.Episode {
	var matching []*metadata.Episode
	for _, episode := range season.Episodes {
		if tokensMatch(metadata.NormalizeToken(episode.Title), token) {
			matching = append(matching, episode)
			continue
		}
		for _, alias := range episode.Aliases {
			if tokensMatch(metadata.NormalizeToken(alias), token) {
				matching = append(matching, episode)
				break
			}
		}
	}
	if len(matching) == 0 {
		return nil
	}
	if !hasDate {
		return matching[0]
	}

	var best *metadata.Episode
	bestDelta := 0
	for _, episode := range matching {
		episodeDate, has := episode.Date()
		if !has || !datesWithin(date, episodeDate, DateTolerance) {
			continue
		}
		delta := daysApart(date, episodeDate)
		if best == nil || delta < bestDelta {
			best = episode
			bestDelta = delta
		}
	}
	if best != nil {
		return best
	}
	if len(matching) == 1 {
		return matching[0]
	}
	return nil
}

func tokensMatch(candidate, target string) bool {
	if candidate == "" || target == "" {
		return false
	}
	if candidate == target {
		return true
	}
	if strings.HasPrefix(candidate, target) || strings.HasPrefix(target, candidate) {
		return true
	}
	return TokensClose(candidate, target)
}

// roundFallback resolves racing content where the session name is not a
// literal episode title: candidates share the round number, the location
// narrows them (exact containment first, then best similarity, then lowest
// episode number).
func roundFallback(season *metadata.Season, groups map[string]string) *episodePick {
	roundValue := groups["round"]
	if roundValue == "" {
		return nil
	}
	round, err := strconv.Atoi(roundValue)
	if err != nil {
		return nil
	}

	var roundEpisodes []*metadata.Episode
	for _, episode := range season.Episodes {
		if episode.Number == round || episode.DisplayNumber == round {
			roundEpisodes = append(roundEpisodes, episode)
		}
	}
	if len(roundEpisodes) == 0 {
		return nil
	}

	if location := groups["location"]; location != "" {
		locationToken := metadata.NormalizeToken(location)
		if locationToken != "" {
			var best *metadata.Episode
			bestScore := 0.0
			for _, episode := range roundEpisodes {
				titleToken := metadata.NormalizeToken(episode.Title)
				if strings.Contains(titleToken, locationToken) {
					return &episodePick{episode: episode, exact: true}
				}
				if LocationMatchesTitle(locationToken, strings.ToLower(episode.Title)) {
					if score := TokenSimilarity(locationToken, titleToken); best == nil || score > bestScore {
						best = episode
						bestScore = score
					}
				}
			}
			if best != nil {
				return &episodePick{episode: best}
			}
		}
	}

	return &episodePick{episode: roundEpisodes[0]}
}

// dateFallback resolves content identified only by date, including partial
// event dates ("16 11") with the year captured elsewhere.
func dateFallback(season *metadata.Season, groups map[string]string) *episodePick {
	date, ok := parseDateFromGroups(groups)
	if !ok {
		eventDate := groups["event_date"]
		if eventDate == "" {
			return nil
		}
		year := 0
		if yearStr := groups["year"]; yearStr != "" {
			year, _ = strconv.Atoi(yearStr)
		} else if yearStr := groups["date_year"]; yearStr != "" {
			year, _ = strconv.Atoi(yearStr)
		}
		date, ok = parseDateString(eventDate, year)
		if !ok {
			return nil
		}
	}

	var best *metadata.Episode
	bestDelta := 0
	for _, episode := range season.Episodes {
		episodeDate, has := episode.Date()
		if !has || !datesWithin(date, episodeDate, DateTolerance) {
			continue
		}
		delta := daysApart(date, episodeDate)
		if best == nil || delta < bestDelta || (delta == bestDelta && episode.Number < best.Number) {
			best = episode
			bestDelta = delta
		}
	}
	if best == nil {
		return nil
	}
	return &episodePick{episode: best}
}
