// Package config loads adaptive tunables from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/gogpu/adaptive/degrade"
	"github.com/gogpu/adaptive/lod"
	"github.com/gogpu/adaptive/perf"
	"github.com/gogpu/adaptive/session"
)

// Environment variables read by Load.
const (
	EnvInterval        = "ADAPTIVE_SAMPLE_INTERVAL"
	EnvCapacity        = "ADAPTIVE_SAMPLE_CAPACITY"
	EnvMinSamples      = "ADAPTIVE_MIN_SAMPLES"
	EnvReduceFactor    = "ADAPTIVE_LOD_REDUCE_FACTOR"
	EnvMinLODScale     = "ADAPTIVE_LOD_MIN_SCALE"
	EnvRecoveryFPS     = "ADAPTIVE_RECOVERY_FPS"
	EnvRecoverySamples = "ADAPTIVE_RECOVERY_SAMPLES"
	EnvSystemMemory    = "ADAPTIVE_SYSTEM_MEMORY"
	EnvLogLevel        = "ADAPTIVE_LOG_LEVEL"
	EnvMetricsAddr     = "ADAPTIVE_METRICS_ADDR"
)

// Config holds tunables for a session.
type Config struct {
	Interval        time.Duration
	Capacity        int
	MinSamples      int
	ReduceFactor    float64
	MinLODScale     float64
	RecoveryFPS     float64
	RecoverySamples int
	SystemMemory    bool
	LogLevel        slog.Level
	MetricsAddr     string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Interval:     perf.DefaultInterval,
		Capacity:     perf.MaxCapacity,
		MinSamples:   perf.DefaultMinSamples,
		ReduceFactor: degrade.DefaultReduceFactor,
		MinLODScale:  lod.DefaultMinDistanceScale,
		LogLevel:     slog.LevelInfo,
	}
}

// Load reads a .env file if present (or the given files), then overlays
// ADAPTIVE_* variables on Default. Variables already set in the process
// environment win over the files.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && len(files) > 0 {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function. Empty values keep the
// default. All malformed values are reported together.
func FromEnv(getenv func(string) string) (Config, error) {
	c := Default()
	var errs []error

	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	if v := get(EnvInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, invalid(EnvInterval, v))
		} else {
			c.Interval = d
		}
	}
	parseInt(get(EnvCapacity), EnvCapacity, &c.Capacity, &errs)
	parseInt(get(EnvMinSamples), EnvMinSamples, &c.MinSamples, &errs)
	parseInt(get(EnvRecoverySamples), EnvRecoverySamples, &c.RecoverySamples, &errs)
	parseFloat(get(EnvReduceFactor), EnvReduceFactor, &c.ReduceFactor, &errs)
	parseFloat(get(EnvMinLODScale), EnvMinLODScale, &c.MinLODScale, &errs)
	parseFloat(get(EnvRecoveryFPS), EnvRecoveryFPS, &c.RecoveryFPS, &errs)

	if v := get(EnvSystemMemory); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, invalid(EnvSystemMemory, v))
		} else {
			c.SystemMemory = b
		}
	}
	if v := get(EnvLogLevel); v != "" {
		if err := c.LogLevel.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, invalid(EnvLogLevel, v))
		}
	}
	c.MetricsAddr = get(EnvMetricsAddr)

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return c, nil
}

func invalid(key, value string) error {
	return fmt.Errorf("config: invalid %s=%q", key, value)
}

func parseInt(v, key string, dst *int, errs *[]error) {
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		*errs = append(*errs, invalid(key, v))
		return
	}
	*dst = n
}

func parseFloat(v, key string, dst *float64, errs *[]error) {
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		*errs = append(*errs, invalid(key, v))
		return
	}
	*dst = f
}

// SessionOptions converts the configuration into session options.
func (c Config) SessionOptions() []session.Option {
	mem := perf.RuntimeMemory
	if c.SystemMemory {
		mem = perf.SystemMemory
	}
	opts := []session.Option{
		session.WithMonitorOptions(
			perf.WithInterval(c.Interval),
			perf.WithCapacity(c.Capacity),
			perf.WithMinSamples(c.MinSamples),
			perf.WithMemorySource(mem),
		),
		session.WithLODOptions(lod.WithMinDistanceScale(c.MinLODScale)),
	}
	ctrl := []degrade.Option{degrade.WithReduceFactor(c.ReduceFactor)}
	if c.RecoveryFPS > 0 && c.RecoverySamples > 0 {
		ctrl = append(ctrl, degrade.WithRecovery(degrade.RecoveryPolicy{
			UpgradeFPS:         c.RecoveryFPS,
			ConsecutiveSamples: c.RecoverySamples,
		}))
	}
	return append(opts, session.WithControllerOptions(ctrl...))
}
