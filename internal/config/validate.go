package config

import (
	"errors"
	"fmt"
	"regexp"
)

// Configuration errors are fatal at startup.
var (
	ErrInvalidConfig     = errors.New("invalid config")
	ErrUnknownPatternSet = errors.New("unknown pattern set")
	ErrDuplicateSportID  = errors.New("duplicate sport id")
)

var validSeasonModes = map[string]bool{
	"round":      true,
	"key":        true,
	"title":      true,
	"sequential": true,
	"week":       true,
	"date":       true,
}

// Validate checks the structural rules that do not need metadata: required
// paths, link modes, sport identity, selector modes, and that every rule's
// regex compiles. Metadata-dependent validation happens at compile time in
// the pattern package.
func (c *Config) Validate() error {
	if c.SourceDir == "" {
		return fmt.Errorf("%w: source_dir is required", ErrInvalidConfig)
	}
	if c.DestinationDir == "" {
		return fmt.Errorf("%w: destination_dir is required", ErrInvalidConfig)
	}
	if c.CacheDir == "" {
		return fmt.Errorf("%w: cache_dir is required", ErrInvalidConfig)
	}
	if err := validateLinkMode(c.LinkMode); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Sports))
	for i := range c.Sports {
		sport := &c.Sports[i]
		if sport.ID == "" {
			return fmt.Errorf("%w: sport #%d has no id", ErrInvalidConfig, i)
		}
		if seen[sport.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateSportID, sport.ID)
		}
		seen[sport.ID] = true

		if sport.LinkMode != "" {
			if err := validateLinkMode(sport.LinkMode); err != nil {
				return fmt.Errorf("sport %s: %w", sport.ID, err)
			}
		}

		rules, err := c.Rules(sport)
		if err != nil {
			return err
		}
		for _, rule := range rules {
			if err := validateRule(sport.ID, rule); err != nil {
				return err
			}
		}
	}

	if c.Watch.Enabled {
		if c.Watch.DebounceSeconds <= 0 {
			return fmt.Errorf("%w: watch.debounce_seconds must be positive", ErrInvalidConfig)
		}
		if c.Watch.ReconcileInterval < 0 {
			return fmt.Errorf("%w: watch.reconcile_interval must not be negative", ErrInvalidConfig)
		}
	}

	return nil
}

func validateLinkMode(mode string) error {
	switch mode {
	case LinkModeHardlink, LinkModeCopy, LinkModeSymlink:
		return nil
	default:
		return fmt.Errorf("%w: unsupported link_mode %q", ErrInvalidConfig, mode)
	}
}

func validateRule(sportID string, rule PatternRule) error {
	if rule.Regex == "" {
		return fmt.Errorf("%w: sport %s has a rule with no regex", ErrInvalidConfig, sportID)
	}
	if _, err := regexp.Compile("(?i)" + rule.Regex); err != nil {
		return fmt.Errorf("%w: sport %s rule %q: %v", ErrInvalidConfig, sportID, rule.Regex, err)
	}
	if rule.SeasonSelector.Mode != "" && !validSeasonModes[rule.SeasonSelector.Mode] {
		return fmt.Errorf("%w: sport %s rule %q: unknown season selector mode %q",
			ErrInvalidConfig, sportID, rule.Regex, rule.SeasonSelector.Mode)
	}
	return nil
}
