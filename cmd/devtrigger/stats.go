package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/djlord-it/devtrigger/internal/analytics"
	"github.com/djlord-it/devtrigger/internal/config"
	"github.com/djlord-it/devtrigger/internal/domain"
)

const statsTimeout = 2 * time.Second

var outcomeClasses = []domain.OutcomeClass{
	domain.OutcomeSuccess,
	domain.OutcomeDiscoveryError,
	domain.OutcomeDispatchError,
	domain.OutcomeDropped,
	domain.OutcomeOtherError,
}

type statsReport struct {
	Target string           `json:"target"`
	Window string           `json:"window"`
	At     string           `json:"at"`
	Counts map[string]int64 `json:"counts"`
}

func newStatsCmd() *cobra.Command {
	var ago time.Duration

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print reload outcome counts from Redis analytics as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if err := config.Validate(cfg); err != nil {
				return withExitCode(exitInvalidConfig, fmt.Errorf("invalid configuration: %w", err))
			}
			if cfg.RedisAddr == "" {
				return withExitCode(exitInvalidConfig, errors.New("REDIS_ADDR not set; analytics disabled"))
			}

			client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), statsTimeout)
			defer cancel()

			report, err := collectStats(ctx, cfg, client, time.Now().Add(-ago))
			if err != nil {
				return withExitCode(exitRuntimeError, err)
			}
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return withExitCode(exitRuntimeError, fmt.Errorf("failed to marshal stats: %w", err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().DurationVar(&ago, "ago", 0, "read the bucket this long before now")
	return cmd
}

func collectStats(ctx context.Context, cfg config.Config, client *redis.Client, at time.Time) (statsReport, error) {
	sink := analytics.NewRedisSink(client, cfg.TargetProcess, cfg.AnalyticsRetention).WithWindow(cfg.AnalyticsWindow)

	report := statsReport{
		Target: cfg.TargetProcess,
		Window: cfg.AnalyticsWindowStr,
		At:     at.UTC().Format(time.RFC3339),
		Counts: make(map[string]int64, len(outcomeClasses)),
	}
	for _, class := range outcomeClasses {
		n, err := sink.Count(ctx, class, at)
		if err != nil {
			return statsReport{}, fmt.Errorf("stats %s: %w", class, err)
		}
		report.Counts[string(class)] = n
	}
	return report, nil
}
