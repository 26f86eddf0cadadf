package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the roster
// draft service.
type Config struct {
	HTTPPort      int
	SQLiteDSN     string
	LockTTL       time.Duration
	SweepInterval time.Duration
	StreamBuffer  int
}

// Load parses configuration values from the current process environment,
// applying defaults for optional fields and collecting the names of invalid
// entries into one error.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:      8080,
		SQLiteDSN:     "file:rosterd.db?_foreign_keys=on",
		LockTTL:       30 * time.Minute,
		SweepInterval: 5 * time.Minute,
		StreamBuffer:  16,
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("ROSTERD_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "ROSTERD_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("ROSTERD_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if ttlValue := strings.TrimSpace(os.Getenv("ROSTERD_LOCK_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "ROSTERD_LOCK_TTL")
		} else {
			cfg.LockTTL = ttl
		}
	}

	if sweepValue := strings.TrimSpace(os.Getenv("ROSTERD_SWEEP_INTERVAL")); sweepValue != "" {
		interval, err := time.ParseDuration(sweepValue)
		if err != nil || interval < 0 {
			invalid = append(invalid, "ROSTERD_SWEEP_INTERVAL")
		} else {
			// Zero disables the background sweep loop.
			cfg.SweepInterval = interval
		}
	}

	if bufferValue := strings.TrimSpace(os.Getenv("ROSTERD_STREAM_BUFFER")); bufferValue != "" {
		buffer, err := strconv.Atoi(bufferValue)
		if err != nil || buffer <= 0 {
			invalid = append(invalid, "ROSTERD_STREAM_BUFFER")
		} else {
			cfg.StreamBuffer = buffer
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variables: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
