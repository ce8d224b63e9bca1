// Package config provides configuration management for the secret
// redaction middleware and its management surface.
package config

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hfi/llm-secret-redactor/internal/audit"
	"github.com/hfi/llm-secret-redactor/internal/server"
)

// Config represents the main configuration structure
type Config struct {
	Redaction RedactionConfig `yaml:"redaction"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Logging   LoggingConfig   `yaml:"logging"`
	Audit     audit.Config    `yaml:"audit"`
	Server    server.Config   `yaml:"server"`
}

// PatternPolicy controls one pattern's participation in redaction. A
// log-only pattern is detected and counted but never replaced.
type PatternPolicy struct {
	Enabled bool `yaml:"enabled"`
	LogOnly bool `yaml:"log_only"`
}

// RedactionConfig contains detection and policy settings
type RedactionConfig struct {
	Enabled bool `yaml:"enabled"`

	// RolloutPercentage gates sessions into redaction by a stable hash of
	// the session id; 100 includes everyone, 0 no one.
	RolloutPercentage float64 `yaml:"rollout_percentage"`

	// FailSafe returns original content on internal failure instead of
	// surfacing the error.
	FailSafe bool `yaml:"fail_safe"`

	// MaxTextLength skips redaction for inputs above this many bytes.
	MaxTextLength int `yaml:"max_text_length"`

	// MaxDetectionTimeMs is a soft budget; slower detections are logged
	// but never aborted.
	MaxDetectionTimeMs int `yaml:"max_detection_time_ms"`

	Patterns map[string]PatternPolicy `yaml:"patterns"`
}

// SessionsConfig contains session store settings
type SessionsConfig struct {
	Backend              string      `yaml:"backend"` // "memory" or "redis"
	MaxSessions          int         `yaml:"max_sessions"`
	MaxSecretsPerSession int         `yaml:"max_secrets_per_session"`
	TTLMinutes           int         `yaml:"ttl_minutes"`
	Redis                RedisConfig `yaml:"redis"`
}

// TTL returns the session time-to-live as a duration.
func (c SessionsConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"` //#nosec G117 -- Password field is intentional for Redis auth config
	DB       int    `yaml:"db"`
}

// LoggingConfig contains operational logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// PatternEnabled reports whether the pattern may redact. Patterns absent
// from the policy table are disabled; policy is keyed strictly by the
// registry key carried on each detection.
func (c *RedactionConfig) PatternEnabled(key string) bool {
	policy, ok := c.Patterns[key]
	if !ok {
		return false
	}
	return policy.Enabled
}

// PatternLogOnly reports whether the pattern is detect-and-count only.
// Unknown patterns default to log-only.
func (c *RedactionConfig) PatternLogOnly(key string) bool {
	policy, ok := c.Patterns[key]
	if !ok {
		return true
	}
	return policy.LogOnly
}

// ShouldProcess decides rollout participation for a session. The bucket
// assignment uses a fixed-algorithm digest so a returning session lands in
// the same bucket across process restarts.
func (c *RedactionConfig) ShouldProcess(sessionID string) bool {
	if !c.Enabled {
		return false
	}
	if c.RolloutPercentage >= 100 {
		return true
	}
	if sessionID == "" {
		return false
	}
	sum := sha256.Sum256([]byte(sessionID))
	bucket := binary.BigEndian.Uint64(sum[:8]) % 10000
	return float64(bucket)/100.0 < c.RolloutPercentage
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Redaction: RedactionConfig{
			Enabled:            true,
			RolloutPercentage:  100,
			FailSafe:           true,
			MaxTextLength:      100000,
			MaxDetectionTimeMs: 10,
			Patterns: map[string]PatternPolicy{
				"openai":             {Enabled: true},
				"anthropic":          {Enabled: true},
				"aws_access_key":     {Enabled: true},
				"aws_secret":         {Enabled: true, LogOnly: true},
				"github_pat":         {Enabled: true},
				"stripe":             {Enabled: true},
				"slack_token":        {Enabled: true},
				"google_api":         {Enabled: true},
				"generic_api_key":    {Enabled: false, LogOnly: true},
				"hex_secret":         {Enabled: false, LogOnly: true},
				"jwt_token":          {Enabled: true},
				"private_key_header": {Enabled: true},
			},
		},
		Sessions: SessionsConfig{
			Backend:              "memory",
			MaxSessions:          1000,
			MaxSecretsPerSession: 100,
			TTLMinutes:           30,
			Redis: RedisConfig{
				Address: "localhost:6379",
				DB:      0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Audit:  *audit.DefaultConfig(),
		Server: *server.DefaultConfig(),
	}
}

// Load loads the configuration from file or environment
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Check for config file path in environment or use default
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Sanitize and validate path to prevent path traversal
	configPath = sanitizeConfigPath(configPath)

	data, err := os.ReadFile(configPath) //#nosec G304 -- config path is sanitized above
	if err != nil {
		if os.IsNotExist(err) {
			// No config file, use defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// sanitizeConfigPath cleans and validates a config file path
func sanitizeConfigPath(path string) string {
	cleaned := filepath.Clean(path)

	// If path is absolute, use it as-is (operator explicitly set full path)
	// If relative, ensure it doesn't escape the current directory
	if !filepath.IsAbs(cleaned) {
		for len(cleaned) > 2 && cleaned[:3] == "../" {
			cleaned = cleaned[3:]
		}
		if cleaned == ".." {
			cleaned = "config.yaml"
		}
	}

	return cleaned
}
