// Copyright 2025 Complyd Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config provides configuration loading and management for the
// Complyd application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// defaultServerPort is the default HTTP server port
	defaultServerPort = 8080
	// defaultReadTimeout is the default read timeout for HTTP server
	defaultReadTimeout = 30 * time.Second
	// defaultWriteTimeout is the default write timeout for HTTP server
	defaultWriteTimeout = 30 * time.Second
	// defaultIdleTimeout is the default idle timeout for HTTP server
	defaultIdleTimeout = 120 * time.Second
	// defaultMetricsPort is the default metrics server port
	defaultMetricsPort = 9090
	// defaultRetentionYears is the default event retention in years
	defaultRetentionYears = 7
	// defaultRedactionMaxLen is the longest detail string stored unredacted
	defaultRedactionMaxLen = 500
	// defaultRetentionInterval is how often due policies are evaluated
	defaultRetentionInterval = time.Hour
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig
	Ledger    LedgerConfig
	Retention RetentionConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Address      string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	TLSEnabled   bool
	TLSCertFile  string
	TLSKeyFile   string
}

// LedgerConfig contains event ledger configuration. All values are read
// once at construction; there is no hot reload.
type LedgerConfig struct {
	Enabled         bool
	BaseDir         string
	FilePrefix      string
	RedactionMaxLen int
	RetentionYears  int
}

// RetentionConfig contains retention engine configuration
type RetentionConfig struct {
	PolicyPath  string        // user policy store document
	RunsPath    string        // last-run bookkeeping document
	ArchiveRoot string        // destination for archive actions
	Locations   string        // "data_type=path" pairs, comma separated
	Interval    time.Duration // due-policy evaluation cadence (0 disables)
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string // "debug", "info", "warn", "error"
	Format     string // "json", "text"
	OutputPath string
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	Enabled bool
	Path    string
	Port    int
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Address:      getEnv("COMPLYD_SERVER_ADDRESS", "0.0.0.0"),
			Port:         getEnvInt("COMPLYD_SERVER_PORT", defaultServerPort),
			ReadTimeout:  getEnvDuration("COMPLYD_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: getEnvDuration("COMPLYD_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  getEnvDuration("COMPLYD_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			TLSEnabled:   getEnvBool("COMPLYD_TLS_ENABLED", false),
			TLSCertFile:  getEnv("COMPLYD_TLS_CERT_FILE", ""),
			TLSKeyFile:   getEnv("COMPLYD_TLS_KEY_FILE", ""),
		},
		Ledger: LedgerConfig{
			Enabled:         getEnvBool("COMPLYD_LEDGER_ENABLED", true),
			BaseDir:         getEnv("COMPLYD_LEDGER_DIR", "./data/ledger"),
			FilePrefix:      getEnv("COMPLYD_LEDGER_PREFIX", "ledger"),
			RedactionMaxLen: getEnvInt("COMPLYD_LEDGER_REDACTION_MAX_LEN", defaultRedactionMaxLen),
			RetentionYears:  getEnvInt("COMPLYD_LEDGER_RETENTION_YEARS", defaultRetentionYears),
		},
		Retention: RetentionConfig{
			PolicyPath:  getEnv("COMPLYD_RETENTION_POLICY_PATH", "./data/retention/policies.json"),
			RunsPath:    getEnv("COMPLYD_RETENTION_RUNS_PATH", "./data/retention/runs.json"),
			ArchiveRoot: getEnv("COMPLYD_RETENTION_ARCHIVE_ROOT", "./data/archive"),
			Locations:   getEnv("COMPLYD_RETENTION_LOCATIONS", ""),
			Interval:    getEnvDuration("COMPLYD_RETENTION_INTERVAL", defaultRetentionInterval),
		},
		Logging: LoggingConfig{
			Level:      getEnv("COMPLYD_LOG_LEVEL", "info"),
			Format:     getEnv("COMPLYD_LOG_FORMAT", "json"),
			OutputPath: getEnv("COMPLYD_LOG_OUTPUT", ""),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("COMPLYD_METRICS_ENABLED", true),
			Path:    getEnv("COMPLYD_METRICS_PATH", "/metrics"),
			Port:    getEnvInt("COMPLYD_METRICS_PORT", defaultMetricsPort),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.TLSEnabled {
		if c.Server.TLSCertFile == "" {
			return fmt.Errorf("TLS enabled but cert file not specified")
		}
		if c.Server.TLSKeyFile == "" {
			return fmt.Errorf("TLS enabled but key file not specified")
		}
	}

	if c.Ledger.Enabled && c.Ledger.BaseDir == "" {
		return fmt.Errorf("ledger enabled but ledger directory not specified")
	}
	if c.Ledger.RetentionYears <= 0 {
		return fmt.Errorf("invalid ledger retention years: %d", c.Ledger.RetentionYears)
	}

	if c.Retention.PolicyPath == "" {
		return fmt.Errorf("retention policy path not specified")
	}
	if c.Retention.RunsPath == "" {
		return fmt.Errorf("retention runs path not specified")
	}
	if c.Retention.ArchiveRoot == "" {
		return fmt.Errorf("retention archive root not specified")
	}

	return nil
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
