package processor

import (
	"context"
	"errors"

	"github.com/s0len/Playbook/internal/logging"
	"github.com/s0len/Playbook/internal/watcher"
)

// Watch runs an initial pass, then blocks consuming debounced triggers
// from the watcher until the context is cancelled. Events raised by the
// processor's own linking are suppressed for the duration of each pass.
func (p *Processor) Watch(ctx context.Context) error {
	w, err := watcher.New(p.cfg.Watch, p.cfg.SourceDir, p.log)
	if err != nil {
		return err
	}
	defer w.Close()

	watcherDone := make(chan error, 1)
	go func() {
		watcherDone <- w.Run(ctx)
	}()

	if _, err := p.runGuarded(ctx, w); err != nil && !errors.Is(err, context.Canceled) {
		p.log.Error("processor", "Initial pass failed", err)
	}

	for {
		select {
		case <-ctx.Done():
			<-watcherDone
			return ctx.Err()

		case err := <-watcherDone:
			if errors.Is(err, context.Canceled) {
				return err
			}
			return err

		case trigger := <-w.Triggers():
			p.log.Info("watcher", "Pass triggered",
				logging.F("reason", trigger.Reason), logging.F("events", trigger.Events))
			if _, err := p.runGuarded(ctx, w); err != nil {
				if errors.Is(err, context.Canceled) {
					<-watcherDone
					return err
				}
				p.log.Error("processor", "Pass failed", err)
			}
		}
	}
}

// runGuarded executes one pass with watcher suppression, so the pass's own
// filesystem writes never schedule another pass.
func (p *Processor) runGuarded(ctx context.Context, w *watcher.Watcher) (*Report, error) {
	w.Suppress(true)
	defer w.Suppress(false)
	return p.RunPass(ctx)
}
