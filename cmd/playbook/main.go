// Command playbook organizes sports video files into a canonical library
// layout by matching release filenames against per-sport episode metadata.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/s0len/Playbook/internal/config"
	"github.com/s0len/Playbook/internal/logging"
	"github.com/s0len/Playbook/internal/metadata"
	"github.com/s0len/Playbook/internal/notify"
	"github.com/s0len/Playbook/internal/processor"
)

// Exit codes per the CLI contract.
const (
	exitOK             = 0
	exitPartialFailure = 1
	exitConfigError    = 2
	exitFatalIO        = 3
)

var (
	cfgFile   string
	dryRun    bool
	watchMode bool
	reprocess bool
	traceRuns bool
	logLevel  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "playbook",
		Short: "Organize sports video files into a canonical library layout",
		Long: `Playbook matches release filenames against per-sport episode metadata
and materializes each match as a hardlink, copy, or symlink at a
template-rendered destination path.`,
		RunE:          runPass,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "render destinations without linking")
	rootCmd.Flags().BoolVar(&watchMode, "watch", false, "watch the source tree and process continuously")
	rootCmd.Flags().BoolVar(&reprocess, "reprocess", false, "ignore the processed cache")
	rootCmd.Flags().BoolVar(&traceRuns, "trace", false, "write per-file trace artifacts")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a processing pass (the default)",
		RunE:  runPass,
	}
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "render destinations without linking")
	runCmd.Flags().BoolVar(&watchMode, "watch", false, "watch the source tree and process continuously")
	runCmd.Flags().BoolVar(&reprocess, "reprocess", false, "ignore the processed cache")
	runCmd.Flags().BoolVar(&traceRuns, "trace", false, "write per-file trace artifacts")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(newValidateConfigCmd())
	rootCmd.AddCommand(newTriggerRefreshCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitError carries an explicit exit code up through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	if errors.Is(err, config.ErrInvalidConfig) ||
		errors.Is(err, config.ErrUnknownPatternSet) ||
		errors.Is(err, config.ErrDuplicateSportID) {
		return exitConfigError
	}
	return exitFatalIO
}

// loadConfig applies the documented precedence: defaults, config file,
// PLAYBOOK_* environment (handled by viper inside config.Load), then
// flags, which land last here.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if dryRun {
		cfg.DryRun = true
	}
	if watchMode {
		cfg.Watch.Enabled = true
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.New(cfg.Logging)
}

func runPass(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return &exitError{code: exitFatalIO, err: err}
	}
	defer log.Close()

	provider := metadata.NewHTTPProvider(metadata.HTTPProviderOptions{
		BaseURL: cfg.Metadata.BaseURL,
		APIKey:  cfg.Metadata.APIKey,
		Timeout: time.Duration(cfg.Metadata.TimeoutSeconds) * time.Second,
		Policy: metadata.RetryPolicy{
			MaxAttempts: cfg.Metadata.MaxAttempts,
			BaseBackoff: time.Duration(cfg.Metadata.BaseBackoffMillis) * time.Millisecond,
			Jitter:      0.25,
		},
		RequestsPerSecond: cfg.Metadata.RequestsPerSecond,
	})

	proc, err := processor.New(cfg, provider, log, processor.Options{
		Reprocess: reprocess,
		Trace:     traceRuns,
	})
	if err != nil {
		return &exitError{code: exitFatalIO, err: err}
	}
	defer proc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Watch.Enabled {
		err := proc.Watch(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return &exitError{code: exitFatalIO, err: err}
		}
		return nil
	}

	report, err := proc.RunPass(ctx)
	if report != nil {
		fmt.Println(processor.RenderSummary(report))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return &exitError{code: exitFatalIO, err: err}
	}
	if report != nil && report.PartialFailure() {
		return &exitError{code: exitPartialFailure, err: fmt.Errorf("pass finished with failures")}
	}
	return nil
}

func newValidateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Validate the configuration and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Printf("Config OK: %d sports, %d pattern sets\n", len(cfg.Sports), len(cfg.PatternSets))
			return nil
		},
	}
}

func newTriggerRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger-refresh",
		Short: "Fire the configured library-refresh trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			trigger := notify.NewRefreshTrigger(cfg.PostRun.RefreshTrigger)
			if trigger == nil {
				return &exitError{code: exitConfigError, err: fmt.Errorf("no refresh trigger configured")}
			}
			if err := trigger.Trigger(notify.PassSummary{PassID: "manual"}); err != nil {
				return &exitError{code: exitFatalIO, err: err}
			}
			fmt.Println("Refresh triggered")
			return nil
		},
	}
}
