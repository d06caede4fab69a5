package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/s0len/Playbook/internal/config"
	"github.com/s0len/Playbook/internal/destination"
	"github.com/s0len/Playbook/internal/fingerprint"
	"github.com/s0len/Playbook/internal/linker"
	"github.com/s0len/Playbook/internal/logging"
	"github.com/s0len/Playbook/internal/match"
	"github.com/s0len/Playbook/internal/metadata"
	"github.com/s0len/Playbook/internal/notify"
	"github.com/s0len/Playbook/internal/processed"
	"github.com/s0len/Playbook/internal/trace"
)

// Options tune a single pass.
type Options struct {
	// Reprocess bypasses the processed cache.
	Reprocess bool
	// Trace persists per-file diagnostics under cache_dir/traces.
	Trace bool
}

// Processor owns the pass lifecycle. Dependencies are injected at
// construction and live for the processor's lifetime; per-pass state is
// rebuilt each pass.
type Processor struct {
	cfg           *config.Config
	log           *logging.Logger
	engine        *match.Engine
	metadataStore *metadata.Store
	digests       *metadata.DigestStore
	processed     *processed.Store
	notifier      *notify.Manager
	trigger       notify.RefreshTrigger
	builder       *destination.Builder
	lock          *flock.Flock
	opts          Options
}

// New wires a Processor. The cache directory is guarded by a file lock so
// two instances never interleave writes.
func New(cfg *config.Config, provider metadata.Provider, log *logging.Logger, opts Options) (*Processor, error) {
	if log == nil {
		log = logging.Nop()
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create cache dir: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.CacheDir, ".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("unable to acquire cache lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another playbook instance holds %s", lock.Path())
	}

	store, err := metadata.NewStore(cfg.CacheDir, time.Duration(cfg.Metadata.TTLHours)*time.Hour, provider, log)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	processedStore, err := processed.Open(cfg.CacheDir, log)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	notifier := notify.NewManager(log)
	for _, sink := range cfg.PostRun.Notifications {
		switch sink.Type {
		case "webhook":
			if sink.URL != "" {
				notifier.Register(notify.NewWebhookSink(sink.URL, sink.Headers))
			}
		case "log", "":
			notifier.Register(notify.NewLogSink(log))
		}
	}

	return &Processor{
		cfg:           cfg,
		log:           log,
		engine:        match.NewEngine(),
		metadataStore: store,
		digests:       metadata.NewDigestStore(cfg.CacheDir),
		processed:     processedStore,
		notifier:      notifier,
		trigger:       notify.NewRefreshTrigger(cfg.PostRun.RefreshTrigger),
		builder:       destination.NewBuilder(cfg.DestinationDir),
		lock:          lock,
		opts:          opts,
	}, nil
}

// Close releases the processed cache and the instance lock.
func (p *Processor) Close() error {
	err := p.processed.Close()
	p.lock.Unlock()
	return err
}

// claim tracks the winning contender for one destination within a pass.
type claim struct {
	priority int
	order    int
	exact    bool
}

// beats implements the intra-pass tie-break: pattern priority first, then
// discovery order.
func (c claim) beats(other claim) bool {
	if c.priority != other.priority {
		return c.priority < other.priority
	}
	return c.order < other.order
}

// RunPass executes one full pass: discover, load metadata, match and act,
// post-run. It always returns a Report; the error is reserved for fatal
// I/O conditions and cancellation.
func (p *Processor) RunPass(ctx context.Context) (*Report, error) {
	passID := uuid.NewString()
	report := newReport(passID, p.cfg.DryRun)
	started := time.Now()

	tracer := trace.NewWriter(p.cfg.CacheDir, passID, p.opts.Trace, p.log)

	runtimes := p.loadRuntimes(ctx, report)

	files, err := discover(ctx, p.cfg.SourceDir, p.log)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			report.Duration = time.Since(started)
			return report, err
		}
		return report, fmt.Errorf("discovery failed: %w", err)
	}

	p.log.Debug("processor", "Pass starting",
		logging.F("pass", passID), logging.F("files", len(files)), logging.F("sports", len(runtimes)))

	claims := make(map[string]claim)
	var claimsMu sync.Mutex

	jobs := make(chan job)
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				p.processFile(j, runtimes, report, claims, &claimsMu, tracer)
			}
		}()
	}

	order := 0
dispatch:
	for _, file := range files {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- job{path: file, order: order}:
			order++
		}
	}
	close(jobs)
	wg.Wait()

	p.postRun(report)

	report.Duration = time.Since(started)
	p.log.Info("processor", "Pass complete",
		logging.F("pass", passID),
		logging.F("linked", report.Linked),
		logging.F("skipped", report.Skipped),
		logging.F("failed", report.Failed),
		logging.F("duration", report.Duration.Round(time.Millisecond)))

	if ctx.Err() != nil {
		return report, ctx.Err()
	}
	return report, nil
}

type job struct {
	path  string
	order int
}

// processFile runs one file through match, build, and link. Each worker
// owns its file end to end; the only shared state is the claims map and
// the report, both mutex-guarded.
func (p *Processor) processFile(j job, runtimes []*match.Runtime, report *Report, claims map[string]claim, claimsMu *sync.Mutex, tracer *trace.Writer) {
	name := filepath.Base(j.path)
	if isSampleFile(name) {
		report.registerIgnored("")
		return
	}

	var lastFailure *match.Failure
	var failureSport string

	for _, rt := range runtimes {
		result, failure := p.engine.Match(j.path, rt)
		if result == nil {
			if failure != nil && failure.Reason != match.ReasonIgnoredByFilter {
				lastFailure = failure
				failureSport = rt.Sport.ID
			}
			continue
		}

		p.actOnMatch(j, rt, result, report, claims, claimsMu, tracer)
		return
	}

	if lastFailure != nil {
		sport := sportByID(runtimes, failureSport)
		allowUnmatched := sport != nil && sport.Sport.AllowUnmatched
		switch lastFailure.Reason {
		case match.ReasonSeasonNotFound, match.ReasonEpisodeNotFound, match.ReasonAmbiguous:
			if allowUnmatched {
				report.registerIgnored(failureSport)
			} else {
				report.registerFailed(failureSport, string(lastFailure.Reason),
					fmt.Sprintf("%s: %s", name, lastFailure.Error()))
			}
		default:
			report.registerIgnored(failureSport)
		}
		tracer.Persist(&trace.FileTrace{
			Filename: name,
			SportID:  failureSport,
			Status:   "unmatched",
			Reason:   string(lastFailure.Reason),
		})
		return
	}

	report.registerIgnored("")
}

func sportByID(runtimes []*match.Runtime, id string) *match.Runtime {
	for _, rt := range runtimes {
		if rt.Sport.ID == id {
			return rt
		}
	}
	return nil
}

// actOnMatch builds the destination and performs the link under the
// processed-cache and intra-pass collision rules.
func (p *Processor) actOnMatch(j job, rt *match.Runtime, result *match.Result, report *Report, claims map[string]claim, claimsMu *sync.Mutex, tracer *trace.Writer) {
	sportID := rt.Sport.ID
	name := filepath.Base(j.path)

	context := destination.BuildContext(rt.Sport, rt.Show, result.Season, result.Episode, j.path, p.cfg.SourceDir, result.Groups)

	templates := p.cfg.ResolvedTemplates(rt.Sport)
	if result.Rule != nil && result.Rule.DestinationOverrides != nil {
		overrides := result.Rule.DestinationOverrides
		if overrides.RootFolder != "" {
			templates.RootFolder = overrides.RootFolder
		}
		if overrides.SeasonFolder != "" {
			templates.SeasonFolder = overrides.SeasonFolder
		}
		if overrides.Filename != "" {
			templates.Filename = overrides.Filename
		}
	}

	dest, err := p.builder.Build(templates, context)
	if err != nil {
		reason := "TemplateError"
		if errors.Is(err, destination.ErrUnsafePath) {
			reason = "UnsafePath"
		} else if errors.Is(err, destination.ErrNameTooLong) {
			reason = "NameTooLong"
		}
		report.registerFailed(sportID, reason, fmt.Sprintf("%s: %v", name, err))
		tracer.Persist(&trace.FileTrace{Filename: name, SportID: sportID, Status: "error", Reason: reason})
		return
	}

	sourceFP, err := fingerprint.File(j.path)
	if err != nil {
		if errors.Is(err, fingerprint.ErrNotFound) {
			report.registerFailed(sportID, "SourceVanished", fmt.Sprintf("%s vanished before linking", name))
			return
		}
		report.registerFailed(sportID, "Unreadable", fmt.Sprintf("%s: %v", name, err))
		return
	}

	prior, _ := p.processed.Get(sourceFP)
	if !p.opts.Reprocess && prior != nil && prior.DestinationPath == dest {
		report.registerSkipped(sportID, "already-processed")
		return
	}

	// Intra-pass destination dedupe: the claim with the best pattern
	// priority wins; discovery order breaks ties.
	incoming := claim{priority: result.Priority, order: j.order, exact: result.ExactSession}
	claimsMu.Lock()
	if existing, taken := claims[dest]; taken && !incoming.beats(existing) {
		claimsMu.Unlock()
		report.registerSkipped(sportID, "DestinationConflict")
		return
	}
	claims[dest] = incoming
	claimsMu.Unlock()

	if p.cfg.DryRun {
		report.registerLinked(sportID)
		report.registerWouldWrite(dest)
		p.log.Info("processor", "Dry-run: would link",
			logging.F("source", name), logging.F("dest", dest))
		tracer.Persist(&trace.FileTrace{
			Filename: name, SportID: sportID, Status: "would-write", Destination: dest, Context: context,
		})
		return
	}

	var existingSpec *linker.Specificity
	if owner, _ := p.processed.ByDestination(dest); owner != nil {
		existingSpec = &linker.Specificity{Priority: owner.Priority, ExactSession: owner.ExactSession}
	}

	outcome, err := linker.Link(linker.Request{
		Source:                j.path,
		Destination:           dest,
		Mode:                  p.cfg.ResolvedLinkMode(rt.Sport),
		FallbackOnCrossDevice: p.cfg.FallbackOnCrossDevice,
		Incoming:              linker.Specificity{Priority: result.Priority, ExactSession: result.ExactSession},
		Existing:              existingSpec,
	})
	if err != nil {
		reason := linkFailureReason(err)
		report.registerFailed(sportID, reason, fmt.Sprintf("%s -> %s: %v", name, dest, err))
		tracer.Persist(&trace.FileTrace{Filename: name, SportID: sportID, Status: "error", Reason: reason})
		return
	}

	switch {
	case outcome.Created, outcome.Replaced:
		report.registerLinked(sportID)
		p.recordProcessed(sourceFP, j.path, dest, outcome.Mode, result)
		p.removeStaleDestination(prior, dest)
		p.notifier.Emit(notify.Event{
			Kind:     notify.EventPerFileLinked,
			PassID:   report.PassID,
			SportID:  sportID,
			Source:   name,
			Target:   dest,
			LinkMode: outcome.Mode,
		})
		tracer.Persist(&trace.FileTrace{
			Filename: name, SportID: sportID, Status: "linked", Destination: dest, Context: context,
		})

	case outcome.SameContent:
		report.registerSkipped(sportID, "already-linked")
		p.recordProcessed(sourceFP, j.path, dest, outcome.Mode, result)
		p.removeStaleDestination(prior, dest)

	case outcome.Kept:
		report.registerSkipped(sportID, "destination-exists")
	}
}

// recordProcessed stages the processed record for the pass-end commit.
func (p *Processor) recordProcessed(sourceFP, sourcePath, dest, mode string, result *match.Result) {
	p.processed.Queue(processed.Record{
		SourceFingerprint: sourceFP,
		SourcePath:        sourcePath,
		DestinationPath:   dest,
		LinkMode:          mode,
		PatternID:         result.PatternID,
		Priority:          result.Priority,
		ExactSession:      result.ExactSession,
	})
}

// removeStaleDestination unlinks the previous destination when a source
// re-matched somewhere new, so no orphan remains at the old path.
func (p *Processor) removeStaleDestination(prior *processed.Record, newDest string) {
	if prior == nil || prior.DestinationPath == "" || prior.DestinationPath == newDest {
		return
	}
	if info, err := os.Lstat(prior.DestinationPath); err != nil || info.IsDir() {
		return
	}
	if err := os.Remove(prior.DestinationPath); err != nil {
		p.log.Warn("processor", "Unable to remove obsolete destination",
			logging.F("path", prior.DestinationPath), logging.F("error", err))
		return
	}
	p.log.Debug("processor", "Removed obsolete destination",
		logging.F("old", prior.DestinationPath), logging.F("new", newDest))
}

func linkFailureReason(err error) string {
	switch {
	case errors.Is(err, linker.ErrCrossDeviceLink):
		return "CrossDeviceLink"
	case errors.Is(err, linker.ErrPermissionDenied):
		return "PermissionDenied"
	case errors.Is(err, linker.ErrSourceVanished):
		return "SourceVanished"
	case errors.Is(err, linker.ErrDestinationConflict):
		return "DestinationConflict"
	default:
		return "LinkFailed"
	}
}

// postRun commits caches, fires the refresh trigger at most once, and
// dispatches the pass summary.
func (p *Processor) postRun(report *Report) {
	if !p.cfg.DryRun {
		if err := p.processed.Commit(); err != nil {
			p.log.Error("processor", "Processed cache commit failed", err)
			report.registerWarning("processed cache commit failed")
		}
	}
	if err := p.digests.Save(); err != nil {
		p.log.Warn("processor", "Unable to save metadata digests", logging.F("error", err))
	}

	summary := notify.PassSummary{
		PassID:   report.PassID,
		Linked:   report.Linked,
		Skipped:  report.Skipped,
		Failed:   report.Failed,
		DryRun:   report.DryRun,
		PerSport: make(map[string]int, len(report.PerSport)),
		Duration: time.Since(report.Started),
	}
	for sportID, counters := range report.PerSport {
		summary.PerSport[sportID] = counters.Linked
	}

	if report.Linked > 0 && p.trigger != nil && !report.DryRun {
		if err := p.trigger.Trigger(summary); err != nil {
			p.log.Warn("processor", "Refresh trigger failed", logging.F("error", err))
		} else {
			p.notifier.Emit(notify.Event{Kind: notify.EventRefreshRequested, PassID: report.PassID})
		}
	}

	p.notifier.Emit(notify.Event{
		Kind:   notify.EventPassSummary,
		PassID: report.PassID,
		Counters: map[string]int{
			"linked":  report.Linked,
			"skipped": report.Skipped,
			"failed":  report.Failed,
			"ignored": report.Ignored,
		},
	})
}
