package destination

import (
	"path/filepath"
	"strings"

	"github.com/s0len/Playbook/internal/config"
	"github.com/s0len/Playbook/internal/metadata"
)

// BuildContext assembles the full template context for one match. Regex
// capture groups merge at the top level but never override the canonical
// keys.
func BuildContext(
	sport *config.Sport,
	show *metadata.Show,
	season *metadata.Season,
	episode *metadata.Episode,
	sourcePath string,
	sourceDir string,
	groups map[string]string,
) map[string]interface{} {
	filename := filepath.Base(sourcePath)
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)

	relative := sourcePath
	if sourceDir != "" {
		if rel, err := filepath.Rel(sourceDir, sourcePath); err == nil {
			relative = rel
		}
	}

	sportName := sport.Name
	if sportName == "" {
		sportName = sport.ID
	}

	context := map[string]interface{}{
		"sport_id":   sport.ID,
		"sport_name": sportName,

		"show_title":         show.Title,
		"show_display_title": show.DisplayTitle,

		"season_title":  season.Title,
		"season_number": season.Number,
		"season_round":  season.RoundNumber,
		"season_year":   season.Year,

		"episode_title":          episode.Title,
		"episode_number":         episode.Number,
		"episode_display_number": episode.DisplayNumber,
		"episode_summary":        episode.Summary,

		"source_filename": filename,
		"source_stem":     stem,
		"extension":       ext,
		"suffix":          ext,
		"relative_source": relative,
	}

	if date, ok := episode.Date(); ok {
		context["episode_originally_available"] = date.Format("2006-01-02")
	} else {
		context["episode_originally_available"] = ""
	}

	for key, value := range groups {
		if _, taken := context[key]; !taken {
			context[key] = value
		}
	}

	return context
}
