package main

import (
	"errors"
	"io/fs"
	"log"
	"net"
	"os"

	"github.com/djlord-it/devtrigger/internal/config"
)

// logConfigWarnings logs configurations that are valid but probably not what
// the user wants.
func logConfigWarnings(cfg config.Config) {
	if cfg.HookAddr == "" && !cfg.WatchEnabled && cfg.TriggerSchedule == "" {
		log.Println("WARNING: HOOK_ADDR is empty, WATCH_ENABLED=false and TRIGGER_SCHEDULE is unset; " +
			"no trigger source is active and nothing will ever reload")
	}

	if cfg.HookAddr != "" {
		host, _, err := net.SplitHostPort(cfg.HookAddr)
		if err == nil && !isLoopback(host) {
			log.Printf("WARNING: HOOK_ADDR=%s is reachable from other machines; "+
				"anyone on the network can trigger reloads", cfg.HookAddr)
		}
	}

	if _, err := os.Stat(cfg.SettingsFile); errors.Is(err, fs.ErrNotExist) {
		log.Printf("INFO: SETTINGS_FILE %s not found; reloads stay disabled until it sets %s: true",
			cfg.SettingsFile, cfg.SettingKey)
	}

	if cfg.WatchEnabled && cfg.DebounceWindow == 0 {
		log.Println("INFO: WATCH_ENABLED=true with DEBOUNCE_WINDOW=0; every changed file triggers its own reload")
	}

	if cfg.Workers > cfg.QueueSize {
		log.Printf("INFO: WORKERS=%d exceeds QUEUE_SIZE=%d; extra workers will mostly sit idle",
			cfg.Workers, cfg.QueueSize)
	}
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
