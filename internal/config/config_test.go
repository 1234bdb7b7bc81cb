package config

import (
	"strings"
	"testing"
	"time"
)

var allEnvVars = []string{
	"TARGET_PROCESS", "TARGET_HOST", "COMMAND_PATH",
	"DISCOVERY_TIMEOUT", "DISPATCH_TIMEOUT", "RESOLVER_BACKEND",
	"SETTINGS_FILE", "SETTING_KEY", "STATUS_LABEL",
	"WATCH_ENABLED", "WATCH_ROOT", "WATCH_EXTENSIONS", "TRIGGER_SCHEDULE",
	"DEBOUNCE_WINDOW", "WORKERS", "QUEUE_SIZE", "DRAIN_TIMEOUT", "SHUTDOWN_TIMEOUT",
	"CIRCUIT_BREAKER_THRESHOLD", "CIRCUIT_BREAKER_COOLDOWN",
	"METRICS_ENABLED", "METRICS_PORT", "METRICS_PATH",
	"REDIS_ADDR", "REDIS_PASSWORD", "ANALYTICS_RETENTION", "ANALYTICS_WINDOW", "LOG_DEBUG",
}

// clearEnv blanks every variable Load reads. HOOK_ADDR is left unset so its default applies.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range allEnvVars {
		t.Setenv(name, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.TargetProcess != "com.defold.editor" {
		t.Errorf("TargetProcess: expected com.defold.editor, got %q", cfg.TargetProcess)
	}
	if cfg.TargetHost != "localhost" {
		t.Errorf("TargetHost: expected localhost, got %q", cfg.TargetHost)
	}
	if cfg.CommandPath != "/command/hot-reload" {
		t.Errorf("CommandPath: expected /command/hot-reload, got %q", cfg.CommandPath)
	}
	if cfg.DiscoveryTimeout != 5*time.Second {
		t.Errorf("DiscoveryTimeout: expected 5s, got %v", cfg.DiscoveryTimeout)
	}
	if cfg.DispatchTimeout != 5*time.Second {
		t.Errorf("DispatchTimeout: expected 5s, got %v", cfg.DispatchTimeout)
	}
	if cfg.SettingKey != "defold_hot_reload" {
		t.Errorf("SettingKey: expected defold_hot_reload, got %q", cfg.SettingKey)
	}
	if cfg.HookAddr != "127.0.0.1:7311" {
		t.Errorf("HookAddr: expected 127.0.0.1:7311, got %q", cfg.HookAddr)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers: expected 4, got %d", cfg.Workers)
	}
	if cfg.QueueSize != 16 {
		t.Errorf("QueueSize: expected 16, got %d", cfg.QueueSize)
	}
	if cfg.DebounceWindow != 0 {
		t.Errorf("DebounceWindow: expected 0, got %v", cfg.DebounceWindow)
	}
	if cfg.CircuitBreakerThreshold != 0 {
		t.Errorf("CircuitBreakerThreshold: expected 0 (disabled), got %d", cfg.CircuitBreakerThreshold)
	}
	if cfg.WatchEnabled {
		t.Error("WatchEnabled: expected false")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("TARGET_PROCESS", "godot")
	t.Setenv("COMMAND_PATH", "/reload")
	t.Setenv("DISCOVERY_TIMEOUT", "2s")
	t.Setenv("DISPATCH_TIMEOUT", "750ms")
	t.Setenv("DEBOUNCE_WINDOW", "200ms")
	t.Setenv("WORKERS", "2")
	t.Setenv("QUEUE_SIZE", "64")
	t.Setenv("WATCH_ENABLED", "true")
	t.Setenv("WATCH_EXTENSIONS", "lua, .script,GO")
	t.Setenv("HOOK_ADDR", "")

	cfg := Load()

	if cfg.TargetProcess != "godot" {
		t.Errorf("TargetProcess: expected godot, got %q", cfg.TargetProcess)
	}
	if cfg.CommandPath != "/reload" {
		t.Errorf("CommandPath: expected /reload, got %q", cfg.CommandPath)
	}
	if cfg.DiscoveryTimeout != 2*time.Second {
		t.Errorf("DiscoveryTimeout: expected 2s, got %v", cfg.DiscoveryTimeout)
	}
	if cfg.DispatchTimeout != 750*time.Millisecond {
		t.Errorf("DispatchTimeout: expected 750ms, got %v", cfg.DispatchTimeout)
	}
	if cfg.DebounceWindow != 200*time.Millisecond {
		t.Errorf("DebounceWindow: expected 200ms, got %v", cfg.DebounceWindow)
	}
	if cfg.Workers != 2 || cfg.QueueSize != 64 {
		t.Errorf("Workers/QueueSize: expected 2/64, got %d/%d", cfg.Workers, cfg.QueueSize)
	}
	if !cfg.WatchEnabled {
		t.Error("WatchEnabled: expected true")
	}
	want := []string{".lua", ".script", ".go"}
	if strings.Join(cfg.WatchExtensions, ",") != strings.Join(want, ",") {
		t.Errorf("WatchExtensions: expected %v, got %v", want, cfg.WatchExtensions)
	}
	if cfg.HookAddr != "" {
		t.Errorf("HookAddr: explicit empty value should disable the hook, got %q", cfg.HookAddr)
	}
}

func TestLoad_InvalidIntegersFallBack(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"negative", "-1"},
		{"zero", "0"},
		{"non-numeric", "abc"},
		{"float", "1.5"},
		{"overflow", "19999999999999999999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("WORKERS", tt.value)
			t.Setenv("QUEUE_SIZE", tt.value)

			cfg := Load()

			if cfg.Workers != 4 {
				t.Errorf("Workers: expected fallback to 4 for %q, got %d", tt.value, cfg.Workers)
			}
			if cfg.QueueSize != 16 {
				t.Errorf("QueueSize: expected fallback to 16 for %q, got %d", tt.value, cfg.QueueSize)
			}
		})
	}
}

func TestConfig_CommandURL(t *testing.T) {
	cfg := Config{TargetHost: "localhost", CommandPath: "/command/hot-reload"}
	if got := cfg.CommandURL(8001); got != "http://localhost:8001/command/hot-reload" {
		t.Errorf("CommandURL = %q", got)
	}

	cfg.TargetHost = "::1"
	if got := cfg.CommandURL(8001); got != "http://[::1]:8001/command/hot-reload" {
		t.Errorf("CommandURL (ipv6) = %q", got)
	}
}

func TestMaskedJSON_HidesRedisPassword(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_PASSWORD", "hunter2")

	cfg := Load()
	data, err := cfg.MaskedJSON()
	if err != nil {
		t.Fatalf("MaskedJSON failed: %v", err)
	}

	out := string(data)
	if strings.Contains(out, "hunter2") {
		t.Error("MaskedJSON leaked the redis password")
	}
	for _, field := range []string{`"redis_password": "***"`, `"discovery_timeout"`, `"dispatch_timeout"`, `"target_process"`} {
		if !strings.Contains(out, field) {
			t.Errorf("MaskedJSON missing %s:\n%s", field, out)
		}
	}
}
