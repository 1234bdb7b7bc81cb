package config

import (
	"encoding/json"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for devtrigger.
// Values are loaded once from environment variables; see envHelp in cmd/devtrigger for the full list.
type Config struct {
	TargetProcess string `json:"target_process"`
	TargetHost    string `json:"target_host"`
	CommandPath   string `json:"command_path"`

	DiscoveryTimeout    time.Duration `json:"-"`
	DiscoveryTimeoutStr string        `json:"discovery_timeout"`
	DispatchTimeout     time.Duration `json:"-"`
	DispatchTimeoutStr  string        `json:"dispatch_timeout"`

	// ResolverBackend: "auto", "lsof" or "procfs".
	ResolverBackend string `json:"resolver_backend"`

	// SettingsFile is re-read on every trigger; SettingKey names the boolean flag in it.
	SettingsFile string `json:"settings_file"`
	SettingKey   string `json:"setting_key"`
	StatusLabel  string `json:"status_label"`

	// HookAddr: empty disables the local HTTP trigger endpoint.
	HookAddr string `json:"hook_addr"`

	WatchEnabled    bool     `json:"watch_enabled"`
	WatchRoot       string   `json:"watch_root"`
	WatchExtensions []string `json:"watch_extensions,omitempty"`

	// TriggerSchedule is a cron expression; empty disables scheduled triggers.
	TriggerSchedule string `json:"trigger_schedule,omitempty"`

	// DebounceWindow: 0 disables coalescing of rapid triggers.
	DebounceWindow    time.Duration `json:"-"`
	DebounceWindowStr string        `json:"debounce_window"`

	Workers   int `json:"workers"`
	QueueSize int `json:"queue_size"`

	DrainTimeout       time.Duration `json:"-"`
	DrainTimeoutStr    string        `json:"drain_timeout"`
	ShutdownTimeout    time.Duration `json:"-"`
	ShutdownTimeoutStr string        `json:"shutdown_timeout"`

	// CircuitBreakerThreshold: 0 disables the circuit breaker.
	CircuitBreakerThreshold   int           `json:"circuit_breaker_threshold"`
	CircuitBreakerCooldown    time.Duration `json:"-"`
	CircuitBreakerCooldownStr string        `json:"circuit_breaker_cooldown"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPort    string `json:"metrics_port"`
	MetricsPath    string `json:"metrics_path"`

	RedisAddr             string        `json:"redis_addr,omitempty"`
	RedisPassword         string        `json:"-"`
	AnalyticsRetention    time.Duration `json:"-"`
	AnalyticsRetentionStr string        `json:"analytics_retention"`
	// AnalyticsWindow is the counter bucket width: 1m, 5m or 1h.
	AnalyticsWindow    time.Duration `json:"-"`
	AnalyticsWindowStr string        `json:"analytics_window"`

	Debug bool `json:"log_debug"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		TargetProcess:             os.Getenv("TARGET_PROCESS"),
		TargetHost:                os.Getenv("TARGET_HOST"),
		CommandPath:               os.Getenv("COMMAND_PATH"),
		DiscoveryTimeoutStr:       os.Getenv("DISCOVERY_TIMEOUT"),
		DispatchTimeoutStr:        os.Getenv("DISPATCH_TIMEOUT"),
		ResolverBackend:           os.Getenv("RESOLVER_BACKEND"),
		SettingsFile:              os.Getenv("SETTINGS_FILE"),
		SettingKey:                os.Getenv("SETTING_KEY"),
		StatusLabel:               os.Getenv("STATUS_LABEL"),
		WatchEnabled:              os.Getenv("WATCH_ENABLED") == "true",
		WatchRoot:                 os.Getenv("WATCH_ROOT"),
		TriggerSchedule:           strings.TrimSpace(os.Getenv("TRIGGER_SCHEDULE")),
		DebounceWindowStr:         os.Getenv("DEBOUNCE_WINDOW"),
		DrainTimeoutStr:           os.Getenv("DRAIN_TIMEOUT"),
		ShutdownTimeoutStr:        os.Getenv("SHUTDOWN_TIMEOUT"),
		CircuitBreakerCooldownStr: os.Getenv("CIRCUIT_BREAKER_COOLDOWN"),
		MetricsEnabled:            os.Getenv("METRICS_ENABLED") == "true",
		MetricsPort:               os.Getenv("METRICS_PORT"),
		MetricsPath:               os.Getenv("METRICS_PATH"),
		RedisAddr:                 os.Getenv("REDIS_ADDR"),
		RedisPassword:             os.Getenv("REDIS_PASSWORD"),
		AnalyticsRetentionStr:     os.Getenv("ANALYTICS_RETENTION"),
		AnalyticsWindowStr:        os.Getenv("ANALYTICS_WINDOW"),
		Debug:                     os.Getenv("LOG_DEBUG") == "true",
	}

	// HOOK_ADDR may be set to an empty string on purpose to disable the hook.
	if addr, ok := os.LookupEnv("HOOK_ADDR"); ok {
		cfg.HookAddr = strings.TrimSpace(addr)
	} else {
		cfg.HookAddr = "127.0.0.1:7311"
	}

	if exts := os.Getenv("WATCH_EXTENSIONS"); exts != "" {
		cfg.WatchExtensions = splitExtensions(exts)
	}

	if workersStr := os.Getenv("WORKERS"); workersStr != "" {
		if n, err := strconv.Atoi(workersStr); err == nil && n > 0 {
			cfg.Workers = n
		} else {
			log.Printf("config: invalid WORKERS %q (must be a positive integer), using default 4", workersStr)
		}
	}
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}

	if queueStr := os.Getenv("QUEUE_SIZE"); queueStr != "" {
		if n, err := strconv.Atoi(queueStr); err == nil && n > 0 {
			cfg.QueueSize = n
		} else {
			log.Printf("config: invalid QUEUE_SIZE %q (must be a positive integer), using default 16", queueStr)
		}
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 16
	}

	if cbThreshStr := os.Getenv("CIRCUIT_BREAKER_THRESHOLD"); cbThreshStr != "" {
		if n, err := strconv.Atoi(cbThreshStr); err == nil && n >= 0 {
			cfg.CircuitBreakerThreshold = n
		} else {
			log.Printf("config: invalid CIRCUIT_BREAKER_THRESHOLD %q, circuit breaker disabled", cbThreshStr)
		}
	}

	if cfg.TargetProcess == "" {
		cfg.TargetProcess = "com.defold.editor"
	}
	if cfg.TargetHost == "" {
		cfg.TargetHost = "localhost"
	}
	if cfg.CommandPath == "" {
		cfg.CommandPath = "/command/hot-reload"
	}
	if cfg.DiscoveryTimeoutStr == "" {
		cfg.DiscoveryTimeoutStr = "5s"
	}
	if cfg.DispatchTimeoutStr == "" {
		cfg.DispatchTimeoutStr = "5s"
	}
	if cfg.ResolverBackend == "" {
		cfg.ResolverBackend = "auto"
	}
	if cfg.SettingsFile == "" {
		cfg.SettingsFile = ".devtrigger.yaml"
	}
	if cfg.SettingKey == "" {
		cfg.SettingKey = "defold_hot_reload"
	}
	if cfg.StatusLabel == "" {
		cfg.StatusLabel = "Hot Reload"
	}
	if cfg.WatchRoot == "" {
		cfg.WatchRoot = "."
	}
	if cfg.DebounceWindowStr == "" {
		cfg.DebounceWindowStr = "0s"
	}
	if cfg.DrainTimeoutStr == "" {
		cfg.DrainTimeoutStr = "10s"
	}
	if cfg.ShutdownTimeoutStr == "" {
		cfg.ShutdownTimeoutStr = "5s"
	}
	if cfg.CircuitBreakerCooldownStr == "" {
		cfg.CircuitBreakerCooldownStr = "30s"
	}
	if cfg.MetricsPort == "" {
		cfg.MetricsPort = "9090"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.AnalyticsRetentionStr == "" {
		cfg.AnalyticsRetentionStr = "24h"
	}
	if cfg.AnalyticsWindowStr == "" {
		cfg.AnalyticsWindowStr = "1m"
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.DiscoveryTimeoutStr); err == nil {
		cfg.DiscoveryTimeout = d
	}
	if d, err := time.ParseDuration(cfg.DispatchTimeoutStr); err == nil {
		cfg.DispatchTimeout = d
	}
	if d, err := time.ParseDuration(cfg.DebounceWindowStr); err == nil {
		cfg.DebounceWindow = d
	}
	if d, err := time.ParseDuration(cfg.DrainTimeoutStr); err == nil {
		cfg.DrainTimeout = d
	}
	if d, err := time.ParseDuration(cfg.ShutdownTimeoutStr); err == nil {
		cfg.ShutdownTimeout = d
	}
	if d, err := time.ParseDuration(cfg.CircuitBreakerCooldownStr); err == nil {
		cfg.CircuitBreakerCooldown = d
	}
	if d, err := time.ParseDuration(cfg.AnalyticsRetentionStr); err == nil {
		cfg.AnalyticsRetention = d
	}
	if d, err := time.ParseDuration(cfg.AnalyticsWindowStr); err == nil {
		cfg.AnalyticsWindow = d
	}

	return cfg
}

// CommandURL builds the dispatch URL for a resolved port.
func (c Config) CommandURL(port int) string {
	return "http://" + net.JoinHostPort(c.TargetHost, strconv.Itoa(port)) + c.CommandPath
}

// splitExtensions turns "lua, .script,go" into [".lua", ".script", ".go"].
func splitExtensions(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, ".") {
			part = "." + part
		}
		out = append(out, strings.ToLower(part))
	}
	return out
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		Config
		RedisPassword string `json:"redis_password,omitempty"`
	}{
		Config: c,
	}
	if c.RedisPassword != "" {
		masked.RedisPassword = maskSecret(c.RedisPassword)
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret hides a secret value entirely.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
