package match

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/s0len/Playbook/internal/metadata"
)

// StructuredName is the output of the heuristic filename parser used when
// no pattern rule matches.
type StructuredName struct {
	Teams   []string
	Date    *time.Time
	Round   int
	Week    int
	Session string
	Year    int
}

// StructuredThreshold is the minimum score for a structured match to be
// selected.
const StructuredThreshold = 0.6

var (
	isoDatePattern = regexp.MustCompile(`\b((?:19|20)\d{2})[-/ .](\d{1,2})[-/ .](\d{1,2})\b`)
	dmyDatePattern = regexp.MustCompile(`\b(\d{1,2})[-/ .](\d{1,2})[-/ .]((?:19|20)\d{2})\b`)
	partialPattern = regexp.MustCompile(`\b(\d{1,2})[-. ](\d{1,2})\b`)
	yearPattern    = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	roundPattern   = regexp.MustCompile(`(?i)\b(?:Round|Rd)[ .]?(\d{1,2})\b`)
	weekPattern    = regexp.MustCompile(`(?i)\b(?:Week|Wk)[ .]?(\d{1,2})\b`)
	teamPattern    = regexp.MustCompile(`(?i)([A-Za-z][A-Za-z0-9 .&'/-]*?)\s*(?:\bvs\.?\b|\bv\b|\bat\b|@)\s*([A-Za-z][A-Za-z0-9 .&'/-]*)`)
)

// ParseStructured extracts teams, date, round, week, session, and year from
// a filename stem. Returns nil when the name carries too little signal.
func ParseStructured(stem string, aliases metadata.AliasLookup) *StructuredName {
	cleaned := strings.NewReplacer("_", " ", ".", " ").Replace(stem)
	cleaned = spacePattern.ReplaceAllString(cleaned, " ")

	parsed := &StructuredName{}
	remaining := cleaned

	// Full dates first: YYYY-MM-DD, then DD-MM-YYYY / MM-DD-YYYY.
	if m := isoDatePattern.FindStringSubmatchIndex(remaining); m != nil {
		year, _ := strconv.Atoi(remaining[m[2]:m[3]])
		month, _ := strconv.Atoi(remaining[m[4]:m[5]])
		day, _ := strconv.Atoi(remaining[m[6]:m[7]])
		if date, ok := makeDate(year, month, day); ok {
			parsed.Date = &date
			parsed.Year = year
			remaining = remaining[:m[0]] + " " + remaining[m[1]:]
		}
	} else if m := dmyDatePattern.FindStringSubmatchIndex(remaining); m != nil {
		first, _ := strconv.Atoi(remaining[m[2]:m[3]])
		second, _ := strconv.Atoi(remaining[m[4]:m[5]])
		year, _ := strconv.Atoi(remaining[m[6]:m[7]])
		day, month := first, second
		// A second component that cannot be a month means MM-DD-YYYY.
		if first <= 12 && second > 12 {
			day, month = second, first
		}
		if date, ok := makeDate(year, month, day); ok {
			parsed.Date = &date
			parsed.Year = year
			remaining = remaining[:m[0]] + " " + remaining[m[1]:]
		}
	}

	if m := roundPattern.FindStringSubmatch(remaining); m != nil {
		parsed.Round, _ = strconv.Atoi(m[1])
		remaining = strings.Replace(remaining, m[0], " ", 1)
	}
	if m := weekPattern.FindStringSubmatch(remaining); m != nil {
		parsed.Week, _ = strconv.Atoi(m[1])
		remaining = strings.Replace(remaining, m[0], " ", 1)
	}

	if parsed.Year == 0 {
		if m := yearPattern.FindStringSubmatch(remaining); m != nil {
			parsed.Year, _ = strconv.Atoi(m[1])
		}
	}

	// Trailing DD MM with an external year: preferred over leaving the
	// digits unexplained whenever a standalone year exists.
	if parsed.Date == nil && parsed.Year > 0 {
		matches := partialPattern.FindAllStringSubmatchIndex(remaining, -1)
		for i := len(matches) - 1; i >= 0; i-- {
			m := matches[i]
			day, _ := strconv.Atoi(remaining[m[2]:m[3]])
			month, _ := strconv.Atoi(remaining[m[4]:m[5]])
			if date, ok := makeDate(parsed.Year, month, day); ok {
				parsed.Date = &date
				remaining = remaining[:m[0]] + " " + remaining[m[1]:]
				break
			}
		}
	}

	if m := teamPattern.FindStringSubmatch(remaining); m != nil {
		home := resolveTeamSide(m[1], aliases)
		away := resolveTeamSide(stripTeamNoise(m[2]), aliases)
		if home != "" && away != "" {
			parsed.Teams = []string{home, away}
			tail := remaining[strings.Index(remaining, m[0])+len(m[0]):]
			parsed.Session = strings.TrimSpace(stripTeamNoise(tail))
		}
	}

	if len(parsed.Teams) == 0 && parsed.Date == nil && parsed.Round == 0 && parsed.Week == 0 {
		return nil
	}
	return parsed
}

func makeDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

// resolveTeamSide canonicalizes one side of a matchup. The left side of a
// separator often carries competition and date prefixes, so the longest
// digit-free trailing token run is tried against the alias lookup, longest
// suffix first.
func resolveTeamSide(raw string, aliases metadata.AliasLookup) string {
	tokens := strings.Fields(raw)
	var trailing []string
	for i := len(tokens) - 1; i >= 0; i-- {
		if strings.ContainsAny(tokens[i], "0123456789") {
			break
		}
		trailing = append([]string{tokens[i]}, trailing...)
	}
	if len(trailing) == 0 {
		return ""
	}

	for start := 0; start < len(trailing); start++ {
		candidate := strings.Join(trailing[start:], " ")
		if canonical := aliases.Resolve(candidate); canonical != "" {
			return canonical
		}
	}

	// No alias resolves; keep the last few tokens as the literal name.
	if len(trailing) > 3 {
		trailing = trailing[len(trailing)-3:]
	}
	return strings.Join(trailing, " ")
}

// ScoreStructured scores a candidate episode against a parsed name under
// the engine's tie-breaking rules. A two-team matchup requires the
// unordered team sets to be equal; any partial overlap scores zero.
func ScoreStructured(parsed *StructuredName, season *metadata.Season, episode *metadata.Episode, aliases metadata.AliasLookup) float64 {
	score := 0.0

	if parsed.Date != nil {
		episodeDate, ok := episode.Date()
		if ok {
			if !datesWithin(*parsed.Date, episodeDate, DateTolerance) {
				return 0
			}
			score += 0.4
		}
	}

	if len(parsed.Teams) > 0 {
		episodeTeams := metadata.SplitMatchup(episode.Title)
		parsedSet := teamTokenSet(parsed.Teams, aliases)
		episodeSet := teamTokenSet(episodeTeams, aliases)
		if len(episodeSet) == 0 || !sameTokenSet(parsedSet, episodeSet) {
			return 0
		}
		score += 0.55
	}

	if parsed.Session != "" {
		sessionToken := normalizedSessionToken(parsed.Session)
		if sessionToken != "" {
			best := 0.0
			for _, token := range episode.SessionTokens {
				if token == sessionToken {
					best = 1
					break
				}
				if sim := TokenSimilarity(sessionToken, token); sim > best {
					best = sim
				}
			}
			if best == 1 {
				score += 0.2
			} else if best >= FuzzyThreshold {
				score += 0.1
			}
		}
	}

	if parsed.Round > 0 && (season.RoundNumber == parsed.Round || season.Number == parsed.Round) {
		score += 0.1
	}

	return score
}

func teamTokenSet(teams []string, aliases metadata.AliasLookup) map[string]bool {
	set := make(map[string]bool, len(teams))
	for _, team := range teams {
		resolved := aliases.Resolve(team)
		if resolved == "" {
			resolved = team
		}
		token := metadata.NormalizeToken(resolved)
		if token != "" {
			set[token] = true
		}
	}
	return set
}

func sameTokenSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for token := range a {
		if !b[token] {
			return false
		}
	}
	return true
}
