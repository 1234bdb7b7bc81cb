package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/djlord-it/devtrigger/internal/config"
)

const envHelp = `Environment Variables:
  TARGET_PROCESS             Substring of the target's command line (default: "com.defold.editor")
  TARGET_HOST                Host used for the command URL (default: "localhost")
  COMMAND_PATH               Command endpoint path (default: "/command/hot-reload")
  DISCOVERY_TIMEOUT          Bound on port discovery (default: "5s")
  DISPATCH_TIMEOUT           Bound on the command request (default: "5s")
  RESOLVER_BACKEND           auto, lsof or procfs (default: "auto")

  SETTINGS_FILE              Settings file read on every trigger (default: ".devtrigger.yaml")
  SETTING_KEY                Boolean key enabling reloads (default: "defold_hot_reload")
  STATUS_LABEL               Prefix of status lines (default: "Hot Reload")

  HOOK_ADDR                  Local trigger endpoint, empty disables (default: "127.0.0.1:7311")
  WATCH_ENABLED              Watch WATCH_ROOT for changes (default: "false")
  WATCH_ROOT                 Directory to watch (default: ".")
  WATCH_EXTENSIONS           Comma-separated extensions to watch (default: all)
  TRIGGER_SCHEDULE           Cron expression for periodic reloads (default: disabled)
  DEBOUNCE_WINDOW            Coalesce triggers within this window (default: "0s")

  WORKERS                    Concurrent reloads (default: "4")
  QUEUE_SIZE                 Pending reloads before dropping (default: "16")
  DRAIN_TIMEOUT              Shutdown drain bound (default: "10s")
  SHUTDOWN_TIMEOUT           HTTP shutdown bound (default: "5s")

  CIRCUIT_BREAKER_THRESHOLD  Consecutive failures before opening, 0 disables (default: "0")
  CIRCUIT_BREAKER_COOLDOWN   Time before a probe is allowed (default: "30s")

  METRICS_ENABLED            Enable Prometheus metrics (default: "false")
  METRICS_PORT               Metrics server port (default: "9090")
  METRICS_PATH               Metrics endpoint path (default: "/metrics")

  REDIS_ADDR                 Redis address for outcome analytics (optional)
  REDIS_PASSWORD             Redis password (optional)
  ANALYTICS_RETENTION        Analytics key expiry (default: "24h")
  ANALYTICS_WINDOW           Analytics bucket width: 1m, 5m or 1h (default: "1m")

  LOG_DEBUG                  Verbose diagnostics (default: "false")`

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "devtrigger",
		Short:         "devtrigger - hot-reload a running dev tool on save",
		Long:          "Watches for save events and asks a running editor to hot-reload, discovering its port on every trigger.\n\n" + envHelp,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(newWatchCmd())
	root.AddCommand(newReloadCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newStatsCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration (no processes or connections touched)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if err := config.Validate(cfg); err != nil {
				return withExitCode(exitInvalidConfig, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration valid")
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print effective configuration as JSON (secrets masked)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			data, err := cfg.MaskedJSON()
			if err != nil {
				return withExitCode(exitRuntimeError, fmt.Errorf("failed to marshal config: %w", err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "devtrigger version %s (commit: %s)\n", version, commit)
		},
	}
}
