package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/djlord-it/devtrigger/internal/api"
	"github.com/djlord-it/devtrigger/internal/config"
	"github.com/djlord-it/devtrigger/internal/schedule"
	"github.com/djlord-it/devtrigger/internal/source/fswatch"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run trigger sources and reload the target on every save",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if err := config.Validate(cfg); err != nil {
				return withExitCode(exitInvalidConfig, fmt.Errorf("invalid configuration: %w", err))
			}
			logConfigWarnings(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cfg, cmd.OutOrStdout())
		},
	}
}

// runWatch blocks until ctx is cancelled, then shuts down in phases: sources
// first, then the worker pool (draining queued events), then HTTP servers.
func runWatch(ctx context.Context, cfg config.Config, stdout io.Writer) error {
	var registry prometheus.Registerer
	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		registry = reg
		log.Printf("devtrigger: metrics enabled (port=%s, path=%s)", cfg.MetricsPort, cfg.MetricsPath)

		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:              ":" + cfg.MetricsPort,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Printf("devtrigger: metrics server listening on %s", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("devtrigger: metrics server error: %v", err)
			}
		}()
	} else {
		log.Println("devtrigger: METRICS_ENABLED not set; metrics disabled")
	}

	p, err := buildPipeline(cfg, pipelineOptions{stdout: stdout, registry: registry})
	if err != nil {
		return withExitCode(exitInvalidConfig, err)
	}
	defer p.close()

	var hook *api.Server
	if cfg.HookAddr != "" {
		handler := api.NewHandler(p.watcher)
		if p.redis != nil {
			handler = handler.WithHealthChecker("redis", redisPing{client: p.redis})
		}
		hook, err = api.Listen(cfg.HookAddr, handler)
		if err != nil {
			return withExitCode(exitRuntimeError, fmt.Errorf("hook listen on %s: %w", cfg.HookAddr, err))
		}
		go func() {
			if err := hook.Serve(); err != nil {
				log.Printf("devtrigger: hook server error: %v", err)
			}
		}()
	} else {
		log.Println("devtrigger: HOOK_ADDR empty; hook disabled")
	}

	var fsw *fswatch.Watcher
	if cfg.WatchEnabled {
		fsw, err = fswatch.New(p.watcher, cfg.WatchExtensions)
		if err != nil {
			return withExitCode(exitRuntimeError, fmt.Errorf("file watcher: %w", err))
		}
		if err := fsw.Watch(cfg.WatchRoot); err != nil {
			fsw.Stop()
			return withExitCode(exitRuntimeError, fmt.Errorf("watch %s: %w", cfg.WatchRoot, err))
		}
	}

	// Separate contexts let sources stop before the worker pool drains.
	sourceCtx, cancelSources := context.WithCancel(context.Background())
	watcherCtx, cancelWatcher := context.WithCancel(context.Background())
	defer cancelSources()
	defer cancelWatcher()

	var sourceWg sync.WaitGroup
	var watcherWg sync.WaitGroup

	watcherWg.Add(1)
	go func() {
		defer watcherWg.Done()
		p.watcher.Run(watcherCtx)
	}()

	if cfg.TriggerSchedule != "" {
		sched, err := schedule.Parse(cfg.TriggerSchedule, time.Local)
		if err != nil {
			return withExitCode(exitInvalidConfig, err)
		}
		scheduler := schedule.New(schedule.Config{Path: cfg.WatchRoot}, sched, p.watcher)
		sourceWg.Add(1)
		go func() {
			defer sourceWg.Done()
			scheduler.Run(sourceCtx)
		}()
	}

	log.Printf("devtrigger: started (target=%q, hook=%s, watch=%t, schedule=%q)",
		cfg.TargetProcess, cfg.HookAddr, cfg.WatchEnabled, cfg.TriggerSchedule)

	<-ctx.Done()
	log.Println("devtrigger: shutting down")

	// Phase 1: stop trigger sources (no new events)
	cancelSources()
	if fsw != nil {
		if err := fsw.Stop(); err != nil {
			log.Printf("devtrigger: file watcher stop error: %v", err)
		}
	}
	sourceWg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	// Phase 2: stop accepting hook requests
	if hook != nil {
		if err := hook.Shutdown(shutdownCtx); err != nil {
			log.Printf("devtrigger: hook server shutdown error: %v", err)
		}
		log.Println("devtrigger: hook server stopped")
	}

	// Phase 3: stop the worker pool (drains queued events before returning)
	log.Println("devtrigger: stopping watcher (draining events)...")
	cancelWatcher()
	watcherWg.Wait()
	p.bus.Close()

	// Phase 4: metrics server
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("devtrigger: metrics server shutdown error: %v", err)
		}
		log.Println("devtrigger: metrics server stopped")
	}

	log.Println("devtrigger: stopped")
	return nil
}
