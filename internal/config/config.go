package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"adbwatch/internal/env"
)

var ensureOnce sync.Once

func ensureEnvLoaded() {
	ensureOnce.Do(func() {
		_ = env.Ensure()
	})
}

// String returns the trimmed environment variable or fallback when unset.
func String(key, fallback string) string {
	ensureEnvLoaded()
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// Duration parses a time duration from environment or returns fallback.
func Duration(key string, fallback time.Duration) time.Duration {
	ensureEnvLoaded()
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

// Int returns an integer environment variable or fallback when invalid.
func Int(key string, fallback int) int {
	ensureEnvLoaded()
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

// Bool parses a boolean environment variable.
func Bool(key string, fallback bool) bool {
	ensureEnvLoaded()
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		lower := strings.ToLower(val)
		if lower == "1" || lower == "true" || lower == "yes" {
			return true
		}
		if lower == "0" || lower == "false" || lower == "no" {
			return false
		}
	}
	return fallback
}

// Config carries the runtime settings for the deploy daemon.
type Config struct {
	// Dir is the watched artifact directory, non-recursive.
	Dir string
	// Glob filters artifact file names inside Dir.
	Glob string
	// Port is the wireless debug port armed on the device.
	Port int
	// Tick is the watchdog loop period.
	Tick time.Duration
	// Poll is the artifact re-check cadence, independent of fs events.
	Poll time.Duration
	// Debounce is the quiet period collapsing a burst of fs events.
	Debounce time.Duration
	// ADBPath is the adb binary invoked for every bridge call.
	ADBPath string
	// JournalPath enables the sqlite install journal when non-empty.
	JournalPath string
}

// Default resolves the configuration from environment variables with the
// built-in fallbacks. Flags may override individual fields afterwards.
func Default() Config {
	return Config{
		Dir:         String("ADBWATCH_DIR", "."),
		Glob:        String("ADBWATCH_GLOB", "*.apk"),
		Port:        Int("ADBWATCH_PORT", 5555),
		Tick:        Duration("ADBWATCH_TICK", 5*time.Second),
		Poll:        Duration("ADBWATCH_POLL", 5*time.Second),
		Debounce:    Duration("ADBWATCH_DEBOUNCE", 1200*time.Millisecond),
		ADBPath:     String("ADB_PATH", "adb"),
		JournalPath: String("ADBWATCH_JOURNAL_DB_PATH", ""),
	}
}
