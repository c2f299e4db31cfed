// Package config loads hrsync configuration from CUE files.
//
// A file is unified with the embedded #Config schema, so unknown fields,
// out-of-range rates and unsupported drivers are rejected with the CUE
// source position of the offending value. Fields the file omits keep the
// values from Default().
package config

import (
	"log/slog"
	"time"

	"github.com/roach88/hrsync/internal/seed"
	"github.com/roach88/hrsync/internal/store"
	"github.com/roach88/hrsync/internal/transport"
)

// Config is the resolved runtime configuration.
type Config struct {
	Database  Database
	Transport Transport
	Seed      seed.Config
	LogLevel  slog.Level
}

// Database selects the snapshot backend.
type Database struct {
	Driver string
	Path   string
	Key    string
}

// Transport parameterizes the unreliable transport simulator.
type Transport struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	Timeout     time.Duration
	WriteFail   float64
	ReorderFail float64

	// Seed drives the failure and latency RNG; 0 means time-seeded.
	Seed uint64
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: Database{
			Driver: store.DriverSQLite,
			Path:   "hrsync.db",
			Key:    store.DefaultKey,
		},
		Transport: Transport{
			MinDelay:    transport.DefaultMinDelay,
			MaxDelay:    transport.DefaultMaxDelay,
			Timeout:     transport.DefaultTimeout,
			WriteFail:   transport.DefaultWriteFail,
			ReorderFail: transport.DefaultReorderFail,
		},
		Seed:     seed.DefaultConfig(),
		LogLevel: slog.LevelInfo,
	}
}

// RandomConfig returns the simulator policy parameters.
func (c Config) RandomConfig() transport.RandomConfig {
	rc := transport.RandomConfig{
		MinDelay:    c.Transport.MinDelay,
		MaxDelay:    c.Transport.MaxDelay,
		WriteFail:   c.Transport.WriteFail,
		ReorderFail: c.Transport.ReorderFail,
		Seed:        c.Transport.Seed,
	}
	if rc.Seed == 0 {
		rc.Seed = uint64(time.Now().UnixNano())
	}
	return rc
}
