// Package config loads process settings from the environment and deal
// files from YAML, JSON or Hjson. It only coerces types; domain ranges are
// checked by the engines that consume the values.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"lbo_valuation/pkg/core/modelerr"
	"lbo_valuation/pkg/core/simulation"
	"lbo_valuation/pkg/logger"

	"github.com/joho/godotenv"
)

// Environment keys.
const (
	EnvLogLevel   = "LBO_LOG_LEVEL"
	EnvLogPretty  = "LBO_LOG_PRETTY"
	EnvWorkers    = "LBO_WORKERS"
	EnvSeed       = "LBO_SEED"
	EnvIterations = "LBO_ITERATIONS"
)

// Settings are process-wide knobs. Zero values mean "not set".
type Settings struct {
	LogLevel   string
	LogPretty  bool
	Workers    int
	Iterations int
	Seed       *uint64
}

// LoadSettings reads envFiles into the process environment without
// overriding variables already set, then parses the LBO_* keys. With no
// files it reads ".env" if one exists; a present but unreadable or
// malformed .env is still an error.
func LoadSettings(envFiles ...string) (Settings, error) {
	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Settings{}, &modelerr.Error{Kind: modelerr.InvalidConfiguration, Field: "env", Message: "cannot load .env", Err: err}
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return Settings{}, &modelerr.Error{Kind: modelerr.InvalidConfiguration, Field: "env", Message: "cannot load env file", Err: err}
	}
	return SettingsFrom(os.LookupEnv)
}

// ParseEnv parses settings from dotenv-formatted text.
func ParseEnv(data string) (Settings, error) {
	env, err := godotenv.Unmarshal(data)
	if err != nil {
		return Settings{}, &modelerr.Error{Kind: modelerr.InvalidConfiguration, Field: "env", Message: "malformed env", Err: err}
	}
	return SettingsFrom(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
}

// SettingsFrom parses settings using lookup.
func SettingsFrom(lookup func(string) (string, bool)) (Settings, error) {
	var s Settings
	get := func(k string) string {
		v, _ := lookup(k)
		return strings.TrimSpace(v)
	}

	s.LogLevel = get(EnvLogLevel)
	if v := get(EnvLogPretty); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Settings{}, modelerr.Configuration(EnvLogPretty, "not a boolean: %q", v)
		}
		s.LogPretty = b
	}
	if v := get(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Settings{}, modelerr.Configuration(EnvWorkers, "not a non-negative integer: %q", v)
		}
		s.Workers = n
	}
	if v := get(EnvIterations); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Settings{}, modelerr.Configuration(EnvIterations, "not a positive integer: %q", v)
		}
		s.Iterations = n
	}
	if v := get(EnvSeed); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Settings{}, modelerr.Configuration(EnvSeed, "not an unsigned integer: %q", v)
		}
		s.Seed = &n
	}
	return s, nil
}

// Logger returns the logger configuration.
func (s Settings) Logger() logger.Config {
	level := s.LogLevel
	if level == "" {
		level = "info"
	}
	return logger.Config{Level: level, Pretty: s.LogPretty}
}

// Apply overrides opts with every setting that is set.
func (s Settings) Apply(opts simulation.Options) simulation.Options {
	if s.Workers > 0 {
		opts.Workers = s.Workers
	}
	if s.Iterations > 0 {
		opts.Iterations = s.Iterations
	}
	if s.Seed != nil {
		opts.Seed = *s.Seed
	}
	return opts
}
