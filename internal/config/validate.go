package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Upper bounds for pool sizes; both size in-memory channels.
const (
	MaxWorkers   = 256
	MaxQueueSize = 1 << 16
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	if strings.TrimSpace(cfg.TargetProcess) == "" {
		errs = append(errs, ValidationError{Field: "TARGET_PROCESS", Message: "required"})
	}

	if !strings.HasPrefix(cfg.CommandPath, "/") {
		errs = append(errs, ValidationError{
			Field:   "COMMAND_PATH",
			Message: fmt.Sprintf("must start with '/', got %q", cfg.CommandPath),
		})
	}

	errs = appendPositiveDuration(errs, "DISCOVERY_TIMEOUT", cfg.DiscoveryTimeoutStr)
	errs = appendPositiveDuration(errs, "DISPATCH_TIMEOUT", cfg.DispatchTimeoutStr)
	errs = appendPositiveDuration(errs, "DRAIN_TIMEOUT", cfg.DrainTimeoutStr)
	errs = appendPositiveDuration(errs, "SHUTDOWN_TIMEOUT", cfg.ShutdownTimeoutStr)

	// DEBOUNCE_WINDOW may be zero (disabled) but never negative.
	if cfg.DebounceWindowStr != "" {
		d, err := time.ParseDuration(cfg.DebounceWindowStr)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   "DEBOUNCE_WINDOW",
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		} else if d < 0 {
			errs = append(errs, ValidationError{Field: "DEBOUNCE_WINDOW", Message: "must not be negative"})
		}
	}

	if cfg.Workers < 0 || cfg.Workers > MaxWorkers {
		errs = append(errs, ValidationError{
			Field:   "WORKERS",
			Message: fmt.Sprintf("must be between 1 and %d, got %d", MaxWorkers, cfg.Workers),
		})
	}
	if cfg.QueueSize < 0 || cfg.QueueSize > MaxQueueSize {
		errs = append(errs, ValidationError{
			Field:   "QUEUE_SIZE",
			Message: fmt.Sprintf("must be between 1 and %d, got %d", MaxQueueSize, cfg.QueueSize),
		})
	}

	switch cfg.ResolverBackend {
	case "", "auto", "lsof", "procfs":
	default:
		errs = append(errs, ValidationError{
			Field:   "RESOLVER_BACKEND",
			Message: fmt.Sprintf("must be 'auto', 'lsof' or 'procfs', got %q", cfg.ResolverBackend),
		})
	}

	if cfg.HookAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.HookAddr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "HOOK_ADDR",
				Message: fmt.Sprintf("invalid address: %v", err),
			})
		}
	}

	if cfg.TriggerSchedule != "" {
		if _, err := cron.ParseStandard(cfg.TriggerSchedule); err != nil {
			errs = append(errs, ValidationError{
				Field:   "TRIGGER_SCHEDULE",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	if cfg.CircuitBreakerThreshold > 0 {
		errs = appendPositiveDuration(errs, "CIRCUIT_BREAKER_COOLDOWN", cfg.CircuitBreakerCooldownStr)
	}

	if cfg.RedisAddr != "" {
		errs = appendPositiveDuration(errs, "ANALYTICS_RETENTION", cfg.AnalyticsRetentionStr)
		switch cfg.AnalyticsWindowStr {
		case "", "1m", "5m", "1h":
		default:
			errs = append(errs, ValidationError{
				Field:   "ANALYTICS_WINDOW",
				Message: fmt.Sprintf("must be '1m', '5m' or '1h', got %q", cfg.AnalyticsWindowStr),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func appendPositiveDuration(errs ValidationErrors, field, value string) ValidationErrors {
	if value == "" {
		return errs
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid duration: %v", err),
		})
	}
	if d <= 0 {
		return append(errs, ValidationError{Field: field, Message: "must be positive"})
	}
	return errs
}
