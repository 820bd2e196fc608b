package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration for the scheduling tools.
type Config struct {
	SQLiteDSN string
	// GridFile optionally points at a YAML grid and policy file. Empty means
	// the built-in conference layout.
	GridFile    string
	LogLevel    slog.Level
	BusyTimeout time.Duration
	// EnforceTrackCollision and TopicWindow override the grid file when set.
	EnforceTrackCollision *bool
	TopicWindow           int
}

// Load parses configuration values from the current process environment.
//
// Optional fields keep their defaults. Every invalid variable is collected
// before failing so a single run reports all of them.
func Load() (Config, error) {
	cfg := Config{
		SQLiteDSN:   "scheduler.db",
		LogLevel:    slog.LevelInfo,
		BusyTimeout: 30 * time.Second,
	}

	invalid := make([]string, 0, 4)

	if dsn := strings.TrimSpace(os.Getenv("SCHEDULER_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	cfg.GridFile = strings.TrimSpace(os.Getenv("SCHEDULER_GRID_FILE"))

	if levelValue := strings.TrimSpace(os.Getenv("SCHEDULER_LOG_LEVEL")); levelValue != "" {
		level, err := ParseLogLevel(levelValue)
		if err != nil {
			invalid = append(invalid, "SCHEDULER_LOG_LEVEL")
		} else {
			cfg.LogLevel = level
		}
	}

	if timeoutValue := strings.TrimSpace(os.Getenv("SCHEDULER_BUSY_TIMEOUT")); timeoutValue != "" {
		timeout, err := time.ParseDuration(timeoutValue)
		if err != nil || timeout < 0 {
			invalid = append(invalid, "SCHEDULER_BUSY_TIMEOUT")
		} else {
			cfg.BusyTimeout = timeout
		}
	}

	if enforceValue := strings.TrimSpace(os.Getenv("SCHEDULER_ENFORCE_TRACK_COLLISION")); enforceValue != "" {
		enforce, err := strconv.ParseBool(enforceValue)
		if err != nil {
			invalid = append(invalid, "SCHEDULER_ENFORCE_TRACK_COLLISION")
		} else {
			cfg.EnforceTrackCollision = &enforce
		}
	}

	if windowValue := strings.TrimSpace(os.Getenv("SCHEDULER_TOPIC_WINDOW")); windowValue != "" {
		window, err := strconv.Atoi(windowValue)
		if err != nil || window <= 0 {
			invalid = append(invalid, "SCHEDULER_TOPIC_WINDOW")
		} else {
			cfg.TopicWindow = window
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// ParseLogLevel accepts debug, info, warn and error, case-insensitively.
func ParseLogLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", value)
}
