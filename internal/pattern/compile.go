package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/s0len/Playbook/internal/config"
	"github.com/s0len/Playbook/internal/metadata"
)

// ErrCompile is returned when a rule set cannot be compiled against the
// sport's metadata. Fatal for the affected sport only.
var ErrCompile = errors.New("pattern compile failed")

// DefaultSessionAliases are the generic motorsport session spellings merged
// into every session lookup unless the rule defines its own mapping for the
// canonical name.
var DefaultSessionAliases = map[string][]string{
	"Race": {
		"Race", "Main Race", "Feature Race", "Main Event", "Feature Event",
		"Grand Prix", "GP",
	},
	"Practice": {
		"Practice", "Practice Session", "Free Practice", "FP",
		"Warmup", "Warm-up", "Warm Up",
	},
	"Qualifying": {
		"Qualifying", "Quali", "Qualification", "Qualifying Session", "Q",
	},
	"Sprint": {
		"Sprint", "Sprint Race", "Sprint Qualifying", "SQ",
	},
}

// Compiled is an immutable executable pattern: the rule, its compiled
// case-insensitive regex, and the set of named capture groups.
type Compiled struct {
	Rule   config.PatternRule
	Regex  *regexp.Regexp
	groups map[string]bool
}

// ID identifies the pattern in processed records and traces.
func (c *Compiled) ID() string {
	if c.Rule.Description != "" {
		return c.Rule.Description
	}
	return c.Rule.Regex
}

// HasGroup reports whether the regex declares the named capture group.
func (c *Compiled) HasGroup(name string) bool {
	return c.groups[name]
}

// MatchGroups runs the regex against a filename and returns the named
// capture groups that matched, or nil when the regex does not match.
func (c *Compiled) MatchGroups(filename string) map[string]string {
	match := c.Regex.FindStringSubmatch(filename)
	if match == nil {
		return nil
	}
	groups := make(map[string]string)
	for i, name := range c.Regex.SubexpNames() {
		if name == "" || i >= len(match) || match[i] == "" {
			continue
		}
		groups[name] = match[i]
	}
	return groups
}

// Compile translates the sport's ordered rule list into Compiled patterns,
// validating each rule against the normalized show. Returned patterns are
// sorted ascending by priority (lower wins); order within equal priorities
// follows the configuration.
func Compile(rules []config.PatternRule, show *metadata.Show) ([]*Compiled, error) {
	compiled := make([]*Compiled, 0, len(rules))
	for _, rule := range rules {
		c, err := compileRule(rule, show)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, c)
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Rule.Priority < compiled[j].Rule.Priority
	})
	return compiled, nil
}

func compileRule(rule config.PatternRule, show *metadata.Show) (*Compiled, error) {
	re, err := regexp.Compile("(?i)" + rule.Regex)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrCompile, rule.Regex, err)
	}

	groups := make(map[string]bool)
	for _, name := range re.SubexpNames() {
		if name != "" {
			groups[name] = true
		}
	}

	c := &Compiled{Rule: rule, Regex: re, groups: groups}

	if err := validateSelectors(c, show); err != nil {
		return nil, err
	}
	return c, nil
}

// validateSelectors checks that every capture group a selector references
// exists in the regex and that the selector mode is satisfiable by the
// show's metadata.
func validateSelectors(c *Compiled, show *metadata.Show) error {
	rule := c.Rule
	season := rule.SeasonSelector

	if season.Group != "" && !c.HasGroup(season.Group) {
		return fmt.Errorf("%w: %q: season selector references missing group %q",
			ErrCompile, rule.Regex, season.Group)
	}
	if season.ValueTemplate != "" {
		for _, name := range templateGroupNames(season.ValueTemplate) {
			if !c.HasGroup(name) {
				return fmt.Errorf("%w: %q: value_template references missing group %q",
					ErrCompile, rule.Regex, name)
			}
		}
	}
	if episode := rule.EpisodeSelector; episode.Group != "" && !c.HasGroup(episode.Group) {
		return fmt.Errorf("%w: %q: episode selector references missing group %q",
			ErrCompile, rule.Regex, episode.Group)
	}

	if show == nil {
		return nil
	}
	switch season.Mode {
	case "date":
		if !anyEpisodeDated(show) {
			return fmt.Errorf("%w: %q: date selector but no episode carries originally_available",
				ErrCompile, rule.Regex)
		}
	case "week":
		if len(show.Seasons) == 0 {
			return fmt.Errorf("%w: %q: week selector but show has no seasons", ErrCompile, rule.Regex)
		}
	}
	return nil
}

var templateGroupPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)(?::[0-9]+)?\}`)

// templateGroupNames extracts group references from a value template like
// "{y}-{m:02}-{d:02}".
func templateGroupNames(template string) []string {
	var names []string
	for _, match := range templateGroupPattern.FindAllStringSubmatch(template, -1) {
		names = append(names, match[1])
	}
	return names
}

func anyEpisodeDated(show *metadata.Show) bool {
	for _, season := range show.Seasons {
		for _, episode := range season.Episodes {
			if episode.OriginallyAvailable != nil {
				return true
			}
		}
	}
	return false
}

// BuildSessionLookup indexes a season's session tokens for one rule:
// episode titles and aliases first, then the rule's session aliases, then
// the generic defaults for canonical names the rule leaves undefined.
func BuildSessionLookup(rule config.PatternRule, season *metadata.Season) *SessionLookupIndex {
	idx := NewSessionLookupIndex()

	for _, episode := range season.Episodes {
		idx.Add(metadata.NormalizeToken(episode.Title), episode.Title)
		for _, alias := range episode.Aliases {
			idx.Add(metadata.NormalizeToken(alias), episode.Title)
		}
	}

	for canonical, aliases := range rule.SessionAliases {
		token := metadata.NormalizeToken(canonical)
		if idx.GetDirect(token) == "" {
			idx.Add(token, canonical)
		}
		for _, alias := range aliases {
			aliasToken := metadata.NormalizeToken(alias)
			if aliasToken != "" && idx.GetDirect(aliasToken) == "" {
				idx.Add(aliasToken, canonical)
			}
		}
	}

	for canonical, aliases := range DefaultSessionAliases {
		token := metadata.NormalizeToken(canonical)
		if _, defined := rule.SessionAliases[canonical]; defined {
			continue
		}
		if token != "" && idx.GetDirect(token) == "" {
			idx.Add(token, canonical)
		}
		for _, alias := range aliases {
			aliasToken := metadata.NormalizeToken(alias)
			if aliasToken != "" && idx.GetDirect(aliasToken) == "" {
				idx.Add(aliasToken, canonical)
			}
		}
	}

	return idx
}
