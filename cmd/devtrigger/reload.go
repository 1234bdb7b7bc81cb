package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/spf13/cobra"

	"github.com/djlord-it/devtrigger/internal/config"
	"github.com/djlord-it/devtrigger/internal/domain"
)

type reloadOptions struct {
	retries    uint
	retryDelay time.Duration
	path       string
}

func newReloadCmd() *cobra.Command {
	var opts reloadOptions

	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Discover the target and send one hot-reload command",
		Long: "Runs discovery and dispatch once, ignoring the settings file, and exits with\n" +
			"0 on success, 3 on a discovery failure or 4 on a dispatch failure.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if err := config.Validate(cfg); err != nil {
				return withExitCode(exitInvalidConfig, fmt.Errorf("invalid configuration: %w", err))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			code := runReload(ctx, cfg, opts, cmd.OutOrStdout())
			if code != exitSuccess {
				return withExitCode(code, nil)
			}
			return nil
		},
	}

	cmd.Flags().UintVar(&opts.retries, "retries", 0, "retry a failed reload up to N more times")
	cmd.Flags().DurationVar(&opts.retryDelay, "retry-delay", 500*time.Millisecond, "base delay between retries, grows linearly")
	cmd.Flags().StringVar(&opts.path, "path", "", "path attached to the trigger event")
	return cmd
}

// runReload performs one reload, retrying failures when asked, and reports
// only the final outcome. It returns the process exit code.
func runReload(ctx context.Context, cfg config.Config, opts reloadOptions, stdout io.Writer) int {
	p, err := buildPipeline(cfg, pipelineOptions{stdout: stdout})
	if err != nil {
		fmt.Fprintf(stdout, "%s: ERROR: %v\n", cfg.StatusLabel, err)
		return exitInvalidConfig
	}
	defer p.close()

	event := domain.NewTriggerEvent(domain.TriggerSourceManual, opts.path)

	var outcome domain.ReloadOutcome
	action := func(attempt uint) error {
		if attempt > 0 {
			log.Printf("devtrigger: reload retry %d/%d", attempt, opts.retries)
		}
		outcome = p.watcher.RunOnce(ctx, event)
		if outcome.Success() || !retryable(outcome) || ctx.Err() != nil {
			return nil
		}
		return outcome.Err
	}

	strategies := []strategy.Strategy{strategy.Limit(opts.retries + 1)}
	if opts.retryDelay > 0 {
		strategies = append(strategies, strategy.Backoff(backoff.Linear(opts.retryDelay)))
	}
	_ = retry.Retry(action, strategies...)

	p.reporter.Report(outcome)
	return exitCodeFor(outcome)
}

// retryable reports whether another attempt could change the outcome. A
// target that answered with a client error will answer the same way again.
func retryable(o domain.ReloadOutcome) bool {
	if domain.IsDispatchKind(o.Err, domain.DispatchNonSuccessStatus) {
		return o.StatusCode >= 500
	}
	return true
}
