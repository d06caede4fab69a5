// Package config loads and validates the playbook configuration document.
//
// Precedence, lowest to highest: built-in defaults, the YAML config file,
// PLAYBOOK_* environment variables, command-line flags (bound by the CLI).
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/s0len/Playbook/internal/logging"
)

// Link modes accepted by settings.link_mode and per-sport overrides.
const (
	LinkModeHardlink = "hardlink"
	LinkModeCopy     = "copy"
	LinkModeSymlink  = "symlink"
)

// SeasonSelector decides which season a regex match maps to.
type SeasonSelector struct {
	// Mode is one of: round, key, title, sequential, week, date.
	Mode string `mapstructure:"mode"`
	// Group names the capture group providing the selector value. Empty
	// falls back to the mode's conventional group name.
	Group string `mapstructure:"group"`
	// ValueTemplate combines several capture groups into one value,
	// e.g. "{y}-{m:02}-{d:02}" for date selection.
	ValueTemplate string `mapstructure:"value_template"`
	// Offset is added to numeric selector values before matching.
	Offset int `mapstructure:"offset"`
	// Aliases maps captured titles to canonical season titles.
	Aliases map[string]string `mapstructure:"aliases"`
	// Mapping maps captured keys/titles to season numbers.
	Mapping map[string]int `mapstructure:"mapping"`
}

// EpisodeSelector decides which episode within the season a match maps to.
type EpisodeSelector struct {
	// Group names the capture group carrying the session/episode token.
	Group string `mapstructure:"group"`
	// DefaultValue is used when the group did not capture.
	DefaultValue string `mapstructure:"default_value"`
	// AllowFallbackToTitle scans all captured text for a known session
	// token when the selector group resolves nothing.
	AllowFallbackToTitle bool `mapstructure:"allow_fallback_to_title"`
}

// PatternRule is one declarative filename rule.
type PatternRule struct {
	Regex           string              `mapstructure:"regex"`
	Description     string              `mapstructure:"description"`
	Priority        int                 `mapstructure:"priority"`
	SeasonSelector  SeasonSelector      `mapstructure:"season_selector"`
	EpisodeSelector EpisodeSelector     `mapstructure:"episode_selector"`
	SessionAliases  map[string][]string `mapstructure:"session_aliases"`
	// DestinationOverrides replace the sport's templates for this rule.
	DestinationOverrides *Templates `mapstructure:"destination_overrides"`
	// FallbackMatchupSeason searches other seasons by matchup when the
	// season selector fails (team sports spanning season boundaries).
	FallbackMatchupSeason bool `mapstructure:"fallback_matchup_season"`
}

// Templates are the three render targets for a destination path.
type Templates struct {
	RootFolder   string `mapstructure:"root_folder"`
	SeasonFolder string `mapstructure:"season_folder"`
	Filename     string `mapstructure:"filename"`
}

// Sport is one configured content domain.
type Sport struct {
	ID               string            `mapstructure:"id"`
	Name             string            `mapstructure:"name"`
	Enabled          bool              `mapstructure:"enabled"`
	ShowRef          string            `mapstructure:"show_ref"`
	SourceGlobs      []string          `mapstructure:"source_globs"`
	SourceExtensions []string          `mapstructure:"source_extensions"`
	PatternSets      []string          `mapstructure:"pattern_sets"`
	FilePatterns     []PatternRule     `mapstructure:"file_patterns"`
	AllowUnmatched   bool              `mapstructure:"allow_unmatched"`
	TeamAliasMap     map[string]string `mapstructure:"team_alias_map"`
	// VariantYear restricts this sport to files whose captured year
	// matches, letting one league run one variant per season.
	VariantYear int        `mapstructure:"variant_year"`
	LinkMode    string     `mapstructure:"link_mode"`
	Templates   *Templates `mapstructure:"templates"`
}

// WatchConfig controls the filesystem watcher.
type WatchConfig struct {
	Enabled           bool     `mapstructure:"enabled"`
	Paths             []string `mapstructure:"paths"`
	Include           []string `mapstructure:"include"`
	Ignore            []string `mapstructure:"ignore"`
	DebounceSeconds   int      `mapstructure:"debounce_seconds"`
	ReconcileInterval int      `mapstructure:"reconcile_interval"`
}

// RefreshTrigger configures the post-run library refresh webhook.
type RefreshTrigger struct {
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

// Notification configures one notification sink.
type Notification struct {
	Type    string            `mapstructure:"type"` // webhook, log
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

// PostRun groups post-pass actions.
type PostRun struct {
	RefreshTrigger *RefreshTrigger `mapstructure:"refresh_trigger"`
	Notifications  []Notification  `mapstructure:"notifications"`
}

// MetadataConfig configures the metadata provider and cache.
type MetadataConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	APIKey            string `mapstructure:"api_key"`
	TTLHours          int    `mapstructure:"ttl_hours"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	MaxAttempts       int    `mapstructure:"max_attempts"`
	BaseBackoffMillis int    `mapstructure:"base_backoff_millis"`
	RequestsPerSecond int    `mapstructure:"requests_per_second"`
}

// Config is the root configuration document.
type Config struct {
	SourceDir      string `mapstructure:"source_dir"`
	DestinationDir string `mapstructure:"destination_dir"`
	CacheDir       string `mapstructure:"cache_dir"`

	DryRun       bool   `mapstructure:"dry_run"`
	SkipExisting bool   `mapstructure:"skip_existing"`
	LinkMode     string `mapstructure:"link_mode"`
	// FallbackOnCrossDevice lets hardlinks fall back to copy when the
	// destination lives on another filesystem.
	FallbackOnCrossDevice bool `mapstructure:"fallback_on_cross_device"`

	Watch       WatchConfig              `mapstructure:"watch"`
	Sports      []Sport                  `mapstructure:"sports"`
	PatternSets map[string][]PatternRule `mapstructure:"pattern_sets"`
	Templates   Templates                `mapstructure:"templates"`
	Metadata    MetadataConfig           `mapstructure:"metadata"`
	PostRun     PostRun                  `mapstructure:"post_run"`
	Logging     logging.Config           `mapstructure:"logging"`
}

// DefaultConfig returns the built-in defaults that the file, environment,
// and flags layer on top of.
func DefaultConfig() *Config {
	return &Config{
		LinkMode:     LinkModeHardlink,
		SkipExisting: true,
		Watch: WatchConfig{
			DebounceSeconds:   5,
			ReconcileInterval: 900,
		},
		Templates: Templates{
			RootFolder:   "{show_title}",
			SeasonFolder: "{season_number:02} {season_title}",
			Filename:     "{show_title} - S{season_number:02}E{episode_number:02} - {episode_title}{extension}",
		},
		Metadata: MetadataConfig{
			TTLHours:          2,
			TimeoutSeconds:    30,
			MaxAttempts:       4,
			BaseBackoffMillis: 500,
			RequestsPerSecond: 4,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads the configuration from path (or the default search locations
// when path is empty), applies PLAYBOOK_* environment overrides, and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("playbook")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if configDir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(configDir + "/playbook")
		}
	}

	v.SetEnvPrefix("PLAYBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errorsAs(err, &notFound) {
			return nil, fmt.Errorf("unable to read config: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// errorsAs is a tiny indirection so Load reads linearly.
func errorsAs(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = e
		return true
	}
	return false
}

// ResolvedLinkMode returns the sport's link mode, falling back to the
// global setting.
func (c *Config) ResolvedLinkMode(sport *Sport) string {
	if sport != nil && sport.LinkMode != "" {
		return sport.LinkMode
	}
	return c.LinkMode
}

// ResolvedTemplates returns the templates for a sport, applying per-sport
// overrides over the global defaults.
func (c *Config) ResolvedTemplates(sport *Sport) Templates {
	tpl := c.Templates
	if sport == nil || sport.Templates == nil {
		return tpl
	}
	if sport.Templates.RootFolder != "" {
		tpl.RootFolder = sport.Templates.RootFolder
	}
	if sport.Templates.SeasonFolder != "" {
		tpl.SeasonFolder = sport.Templates.SeasonFolder
	}
	if sport.Templates.Filename != "" {
		tpl.Filename = sport.Templates.Filename
	}
	return tpl
}

// Rules resolves the full ordered rule list for a sport: referenced
// pattern sets first, then inline file patterns, sorted by ascending
// priority by the compiler.
func (c *Config) Rules(sport *Sport) ([]PatternRule, error) {
	var rules []PatternRule
	for _, name := range sport.PatternSets {
		set, ok := c.PatternSets[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q (sport %s)", ErrUnknownPatternSet, name, sport.ID)
		}
		rules = append(rules, set...)
	}
	rules = append(rules, sport.FilePatterns...)
	return rules, nil
}
