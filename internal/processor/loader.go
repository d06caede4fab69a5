package processor

import (
	"context"
	"strings"
	"sync"

	"github.com/s0len/Playbook/internal/config"
	"github.com/s0len/Playbook/internal/logging"
	"github.com/s0len/Playbook/internal/match"
	"github.com/s0len/Playbook/internal/metadata"
	"github.com/s0len/Playbook/internal/pattern"
)

// loadResult is one sport's load outcome.
type loadResult struct {
	runtime *match.Runtime
	sportID string
	stale   bool
	err     error
}

// loadRuntimes fetches, normalizes, and compiles every enabled sport in
// parallel. A sport whose load fails is skipped for the pass; the others
// proceed.
func (p *Processor) loadRuntimes(ctx context.Context, report *Report) []*match.Runtime {
	enabled := make([]*config.Sport, 0, len(p.cfg.Sports))
	for i := range p.cfg.Sports {
		if p.cfg.Sports[i].Enabled {
			enabled = append(enabled, &p.cfg.Sports[i])
		}
	}
	if len(enabled) == 0 {
		return nil
	}

	results := make([]loadResult, len(enabled))
	var wg sync.WaitGroup
	for i, sport := range enabled {
		wg.Add(1)
		go func(i int, sport *config.Sport) {
			defer wg.Done()
			results[i] = p.loadSport(ctx, sport)
		}(i, sport)
	}
	wg.Wait()

	var runtimes []*match.Runtime
	for _, result := range results {
		if result.err != nil {
			p.log.Error("metadata", "Sport skipped for this pass", result.err,
				logging.F("sport", result.sportID))
			report.SportsSkipped = append(report.SportsSkipped, result.sportID)
			continue
		}
		if result.stale {
			report.StaleSports = append(report.StaleSports, result.sportID)
			report.registerWarning("StaleMetadata: " + result.sportID)
		}
		runtimes = append(runtimes, result.runtime)
	}
	return runtimes
}

// loadSport builds one sport's immutable runtime snapshot.
func (p *Processor) loadSport(ctx context.Context, sport *config.Sport) loadResult {
	out := loadResult{sportID: sport.ID}

	showRef := sport.ShowRef
	if showRef == "" {
		showRef = sport.ID
	}
	served, err := p.metadataStore.Get(ctx, showRef, nil)
	if err != nil {
		out.err = err
		return out
	}
	out.stale = served.Stale

	show, err := metadata.Normalize(served.Raw)
	if err != nil {
		out.err = err
		return out
	}

	rules, err := p.cfg.Rules(sport)
	if err != nil {
		out.err = err
		return out
	}

	// Session aliases declared by any rule become session tokens on
	// every episode, so the structured pass sees them too.
	merged := make(map[string][]string)
	for _, rule := range rules {
		for canonical, aliases := range rule.SessionAliases {
			merged[canonical] = append(merged[canonical], aliases...)
		}
	}
	metadata.InjectSessionAliases(show, merged)

	compiled, err := pattern.Compile(rules, show)
	if err != nil {
		out.err = err
		return out
	}

	digest := metadata.ShowDigest(show)
	if p.digests.Changed(sport.ID, digest) {
		p.log.Info("metadata", "Metadata updated",
			logging.F("sport", sport.ID), logging.F("show", show.Title))
	}

	extensions := make(map[string]bool, len(sport.SourceExtensions))
	for _, ext := range sport.SourceExtensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extensions[ext] = true
	}

	out.runtime = &match.Runtime{
		Sport:               sport,
		Show:                show,
		Patterns:            compiled,
		AliasLookup:         metadata.BuildAliasLookup(show, sport.TeamAliasMap),
		Extensions:          extensions,
		MetadataFingerprint: digest,
		Stale:               served.Stale,
	}
	return out
}
