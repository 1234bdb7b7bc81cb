package main

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/djlord-it/devtrigger/internal/analytics"
	"github.com/djlord-it/devtrigger/internal/circuitbreaker"
	"github.com/djlord-it/devtrigger/internal/config"
	"github.com/djlord-it/devtrigger/internal/dispatcher"
	"github.com/djlord-it/devtrigger/internal/metrics"
	"github.com/djlord-it/devtrigger/internal/reporter"
	"github.com/djlord-it/devtrigger/internal/resolver"
	"github.com/djlord-it/devtrigger/internal/settings"
	"github.com/djlord-it/devtrigger/internal/transport/channel"
	"github.com/djlord-it/devtrigger/internal/trigger"
)

// newProcessTable is replaced in tests to avoid touching the real process table.
var newProcessTable = resolver.NewTable

// pipeline is the set of components shared by watch and reload.
type pipeline struct {
	cfg         config.Config
	bus         *channel.EventBus
	watcher     *trigger.Watcher
	status      *reporter.StatusLine
	reporter    reporter.Reporter
	redis       *redis.Client // nil when analytics are disabled
	metricsSink *metrics.PrometheusSink
}

type pipelineOptions struct {
	stdout io.Writer
	// registry is nil when metrics are disabled.
	registry prometheus.Registerer
}

func buildPipeline(cfg config.Config, opts pipelineOptions) (*pipeline, error) {
	p := &pipeline{cfg: cfg}

	if opts.registry != nil {
		p.metricsSink = metrics.NewPrometheusSink(opts.registry)
	}

	table, err := newProcessTable(cfg.ResolverBackend, nil)
	if err != nil {
		return nil, fmt.Errorf("resolver: %w", err)
	}
	res := resolver.New(table, cfg.DiscoveryTimeout).WithDebug(cfg.Debug)
	log.Printf("devtrigger: resolver backend=%s timeout=%s", table.Name(), cfg.DiscoveryTimeout)

	disp := dispatcher.New(dispatcher.NewHTTPCommandSender(), cfg.CommandURL, cfg.DispatchTimeout)
	if cfg.CircuitBreakerThreshold > 0 {
		disp = disp.WithBreaker(circuitbreaker.New(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown))
		log.Printf("devtrigger: circuit breaker enabled (threshold=%d, cooldown=%s)",
			cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
	}

	var busOpts []channel.Option
	if p.metricsSink != nil {
		busOpts = append(busOpts, channel.WithMetrics(p.metricsSink))
		res = res.WithMetrics(p.metricsSink)
		disp = disp.WithMetrics(p.metricsSink)
	}
	p.bus = channel.NewEventBus(cfg.QueueSize, busOpts...)

	p.status = reporter.NewStatusLine(opts.stdout, cfg.StatusLabel).WithDebug(cfg.Debug)
	reporters := reporter.Multi{p.status}

	if cfg.RedisAddr != "" {
		p.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		sink := analytics.NewRedisSink(p.redis, cfg.TargetProcess, cfg.AnalyticsRetention).WithWindow(cfg.AnalyticsWindow)
		reporters = append(reporters, sink)
		log.Printf("devtrigger: analytics enabled (redis=%s, window=%s)", cfg.RedisAddr, cfg.AnalyticsWindow)
	} else {
		log.Println("devtrigger: REDIS_ADDR not set; analytics disabled")
	}
	p.reporter = reporters

	enable := settings.NewFileSource(cfg.SettingsFile, cfg.SettingKey)
	log.Printf("devtrigger: reloads gated on %s in %s", cfg.SettingKey, enable.Path())

	p.watcher = trigger.New(
		trigger.Config{
			Pattern:        cfg.TargetProcess,
			Workers:        cfg.Workers,
			DrainTimeout:   cfg.DrainTimeout,
			DebounceWindow: cfg.DebounceWindow,
		},
		res,
		disp,
		enable,
		p.reporter,
		p.bus,
	).WithDebug(cfg.Debug)
	if p.metricsSink != nil {
		p.watcher = p.watcher.WithMetrics(p.metricsSink)
	}

	return p, nil
}

func (p *pipeline) close() {
	if p.redis != nil {
		if err := p.redis.Close(); err != nil {
			log.Printf("devtrigger: redis close error: %v", err)
		}
	}
}

// redisPing adapts a redis client to api.HealthChecker.
type redisPing struct {
	client *redis.Client
}

func (r redisPing) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
