package match

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/s0len/Playbook/internal/config"
	"github.com/s0len/Playbook/internal/metadata"
)

var valueTemplatePattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)(?::([0-9]+))?\}`)

// renderValueTemplate combines capture groups through a selector value
// template like "{y}-{m:02}-{d:02}". Numeric pad widths apply to values
// that parse as integers. Returns "" when a referenced group is missing.
func renderValueTemplate(template string, groups map[string]string) string {
	missing := false
	rendered := valueTemplatePattern.ReplaceAllStringFunc(template, func(ref string) string {
		parts := valueTemplatePattern.FindStringSubmatch(ref)
		value, ok := groups[parts[1]]
		if !ok {
			missing = true
			return ""
		}
		if parts[2] != "" {
			if n, err := strconv.Atoi(value); err == nil {
				width, _ := strconv.Atoi(parts[2])
				return fmt.Sprintf("%0*d", width, n)
			}
		}
		return value
	})
	if missing {
		return ""
	}
	return strings.TrimSpace(rendered)
}

// selectorValue resolves the raw value a season selector operates on.
func selectorValue(selector config.SeasonSelector, groups map[string]string, defaultGroup string) string {
	if selector.ValueTemplate != "" {
		return renderValueTemplate(selector.ValueTemplate, groups)
	}
	group := selector.Group
	if group == "" {
		group = defaultGroup
	}
	return groups[group]
}

// SelectSeason resolves a season from the capture groups according to the
// selector mode. Modes: sequential, round, week, key, title, date.
func SelectSeason(show *metadata.Show, selector config.SeasonSelector, groups map[string]string) *metadata.Season {
	switch selector.Mode {
	case "sequential", "":
		value := selectorValue(selector, groups, "season")
		if value == "" {
			value = "0"
		}
		number, err := strconv.Atoi(value)
		if err != nil {
			return nil
		}
		return show.SeasonByNumber(number + selector.Offset)

	case "round":
		value := selectorValue(selector, groups, "round")
		if value == "" {
			return nil
		}
		round, err := strconv.Atoi(value)
		if err != nil {
			return nil
		}
		round += selector.Offset
		for _, season := range show.Seasons {
			if season.RoundNumber == round || season.Number == round {
				return season
			}
		}
		// Positional fallback for shows whose rounds are plain order.
		if round > 0 && round <= len(show.Seasons) {
			return show.Seasons[round-1]
		}
		return nil

	case "week":
		value := selectorValue(selector, groups, "week")
		if value == "" {
			return nil
		}
		week, err := strconv.Atoi(value)
		if err != nil {
			return nil
		}
		week += selector.Offset
		for _, season := range show.Seasons {
			if season.Number == week {
				return season
			}
		}
		weekToken := metadata.NormalizeToken(fmt.Sprintf("Week %d", week))
		for _, season := range show.Seasons {
			if metadata.NormalizeToken(season.Title) == weekToken {
				return season
			}
		}
		return nil

	case "key":
		key := selectorValue(selector, groups, "season")
		if key == "" {
			return nil
		}
		for _, season := range show.Seasons {
			if season.Key == key {
				return season
			}
		}
		if mapped, ok := selector.Mapping[key]; ok {
			return show.SeasonByNumber(mapped)
		}
		return nil

	case "title":
		title := selectorValue(selector, groups, "season")
		if title == "" {
			return nil
		}
		title = resolveTitleAlias(title, selector.Aliases)
		normalized := metadata.NormalizeToken(title)
		for _, season := range show.Seasons {
			if metadata.NormalizeToken(season.Title) == normalized {
				return season
			}
		}
		for _, season := range show.Seasons {
			seasonToken := metadata.NormalizeToken(season.Title)
			if normalized != "" && (strings.Contains(seasonToken, normalized) || strings.Contains(normalized, seasonToken)) {
				return season
			}
		}
		if mapped, ok := selector.Mapping[title]; ok {
			for _, season := range show.Seasons {
				if season.RoundNumber == mapped || season.Number == mapped {
					return season
				}
			}
		}
		return nil

	case "date":
		value := selectorValue(selector, groups, "date")
		if value == "" {
			return nil
		}
		parsed, ok := parseDateString(value, 0)
		if !ok {
			return nil
		}
		for _, season := range show.Seasons {
			for _, episode := range season.Episodes {
				if date, has := episode.Date(); has && date.Equal(parsed) {
					return season
				}
			}
		}
		return nil
	}

	return nil
}

func resolveTitleAlias(title string, aliases map[string]string) string {
	if len(aliases) == 0 {
		return title
	}
	if target, ok := aliases[title]; ok {
		return target
	}
	normalized := metadata.NormalizeToken(title)
	for alias, target := range aliases {
		if metadata.NormalizeToken(alias) == normalized {
			return target
		}
	}
	return title
}
