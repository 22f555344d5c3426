// Package config loads process-wide configuration from the environment,
// per §6's configuration table, with an optional YAML overlay for local
// development. Environment variables remain authoritative: a YAML file only
// fills in keys the environment leaves unset.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every process-wide knob named in §6's configuration table.
type Config struct {
	DefaultTimeout   time.Duration `yaml:"default_timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	TraceLimitChars  int           `yaml:"trace_limit_chars"`
	RequireApproval  bool          `yaml:"require_approval"`
	MaxWorkers       int           `yaml:"max_workers"`
	PrimaryModel     string        `yaml:"primary_model"`
	GroqRPM          float64       `yaml:"groq_rpm"`
	GroqTPM          float64       `yaml:"groq_tpm"`
	BackoffMaxSeconds time.Duration `yaml:"backoff_max_seconds"`
	DebugMode        bool          `yaml:"debug_mode"`
}

// Defaults mirror the values documented in §6 for keys a deployment leaves
// unset.
func Defaults() Config {
	return Config{
		DefaultTimeout:    30 * time.Second,
		MaxRetries:        2,
		TraceLimitChars:   8000,
		RequireApproval:   true,
		MaxWorkers:        4,
		PrimaryModel:      "",
		GroqRPM:           30,
		GroqTPM:           6000,
		BackoffMaxSeconds: 30 * time.Second,
		DebugMode:         false,
	}
}

// FromEnv loads Config from environment variables, falling back to Defaults
// for anything unset. overlayPath, if non-empty, is read as a YAML file
// first and used to fill in defaults before the environment is applied —
// env vars always win over the overlay.
func FromEnv(overlayPath string) (Config, error) {
	cfg := Defaults()

	if overlayPath != "" {
		data, err := os.ReadFile(overlayPath)
		if err != nil {
			return Config{}, fmt.Errorf("config: read overlay %q: %w", overlayPath, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse overlay %q: %w", overlayPath, err)
		}
	}

	cfg.DefaultTimeout = envDurationOr("DEFAULT_TIMEOUT", cfg.DefaultTimeout)
	cfg.MaxRetries = envIntOr("MAX_RETRIES", cfg.MaxRetries)
	cfg.TraceLimitChars = envIntOr("TRACE_LIMIT_CHARS", cfg.TraceLimitChars)
	cfg.RequireApproval = envBoolOr("REQUIRE_APPROVAL", cfg.RequireApproval)
	cfg.MaxWorkers = envIntOr("MAX_WORKERS", cfg.MaxWorkers)
	cfg.PrimaryModel = envOr("PRIMARY_MODEL", cfg.PrimaryModel)
	cfg.GroqRPM = envFloatOr("GROQ_RPM", cfg.GroqRPM)
	cfg.GroqTPM = envFloatOr("GROQ_TPM", cfg.GroqTPM)
	cfg.BackoffMaxSeconds = envDurationOr("BACKOFF_MAX_SECONDS", cfg.BackoffMaxSeconds)
	cfg.DebugMode = envBoolOr("DEBUG_MODE", cfg.DebugMode)

	if cfg.MaxWorkers <= 0 {
		return Config{}, fmt.Errorf("config: max_workers must be > 0, got %d", cfg.MaxWorkers)
	}
	if cfg.MaxRetries < 0 {
		return Config{}, fmt.Errorf("config: max_retries must be >= 0, got %d", cfg.MaxRetries)
	}
	if cfg.TraceLimitChars <= 0 {
		return Config{}, fmt.Errorf("config: trace_limit_chars must be > 0, got %d", cfg.TraceLimitChars)
	}

	return cfg, nil
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOr(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envFloatOr(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envBoolOr(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDurationOr(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}
