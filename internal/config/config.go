// Package config loads server configuration from environment variables,
// optionally preloaded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ValidationMode selects which settings are required.
type ValidationMode int

const (
	// ServerMode requires everything the HTTP server needs.
	ServerMode ValidationMode = iota
	// ToolMode is used by the seed and dbquery commands; no auth secrets needed.
	ToolMode
)

// Config holds all application configuration
type Config struct {
	// Server
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration
	CORSOrigin      string

	// Data
	DBPath         string
	UploadDir      string
	UploadMaxBytes int64

	// Auth
	SSOCookieName  string
	SSOSecret      string
	AdminBootstrap []string

	// Admin writes per editor (0 per minute = unlimited)
	AdminWritePerMinute int
	AdminWriteBurst     int

	// Metrics Basic Auth (empty password = no auth)
	MetricsUsername string
	MetricsPassword string

	// Observability
	SentryDSN         string
	SentryEnvironment string
	SentrySampleRate  float64
	BetterStackToken  string

	// R2 object storage (all four credentials enable it)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string

	// Backups (0 = disabled)
	BackupInterval  time.Duration
	BackupKeyPrefix string
	BackupKeep      int
	// RestoreOnStart downloads the newest backup when DBPath does not exist.
	RestoreOnStart bool

	mode ValidationMode
}

// Load reads configuration for the HTTP server.
func Load() (*Config, error) {
	return LoadForMode(ServerMode)
}

// LoadForMode reads configuration and validates it for mode.
func LoadForMode(mode ValidationMode) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv(EnvPort, "5000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, 30*time.Second),
		CORSOrigin:      getEnv(EnvCORSOrigin, ""),

		DBPath:         getEnv(EnvDBPath, filepath.Join("data", "csweb.db")),
		UploadDir:      getEnv(EnvUploadDir, filepath.Join("data", "uploads")),
		UploadMaxBytes: int64(getIntEnv(EnvUploadMaxBytes, 10<<20)),

		SSOCookieName:  getEnv(EnvSSOCookieName, "cs_sso"),
		SSOSecret:      getEnv(EnvSSOSecret, ""),
		AdminBootstrap: getListEnv(EnvAdminBootstrap),

		AdminWritePerMinute: getIntEnv(EnvAdminWritePerMinute, 60),
		AdminWriteBurst:     getIntEnv(EnvAdminWriteBurst, 20),

		MetricsUsername: getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword: getEnv(EnvMetricsPassword, ""),

		SentryDSN:         getEnv(EnvSentryDSN, ""),
		SentryEnvironment: getEnv(EnvSentryEnvironment, "production"),
		SentrySampleRate:  getFloatEnv(EnvSentrySampleRate, 1.0),
		BetterStackToken:  getEnv(EnvBetterStackToken, ""),

		R2AccountID:       getEnv(EnvR2AccountID, ""),
		R2AccessKeyID:     getEnv(EnvR2AccessKeyID, ""),
		R2SecretAccessKey: getEnv(EnvR2SecretAccessKey, ""),
		R2BucketName:      getEnv(EnvR2BucketName, ""),
		R2PublicURL:       strings.TrimSuffix(getEnv(EnvR2PublicURL, ""), "/"),

		BackupInterval:  getDurationEnv(EnvBackupInterval, 0),
		BackupKeyPrefix: strings.Trim(getEnv(EnvBackupKeyPrefix, "backups"), "/"),
		BackupKeep:      getIntEnv(EnvBackupKeep, 14),
		RestoreOnStart:  getBoolEnv(EnvRestoreOnStart, false),

		mode: mode,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvPort))
	}
	if c.DBPath == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvDBPath))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvShutdownTimeout, c.ShutdownTimeout))
	}
	if c.UploadMaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvUploadMaxBytes, c.UploadMaxBytes))
	}
	if c.AdminWritePerMinute < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %d", EnvAdminWritePerMinute, c.AdminWritePerMinute))
	}
	if c.AdminWritePerMinute > 0 && c.AdminWriteBurst < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1, got %d", EnvAdminWriteBurst, c.AdminWriteBurst))
	}
	if c.SentrySampleRate < 0 || c.SentrySampleRate > 1 {
		errs = append(errs, fmt.Errorf("%s must be between 0 and 1, got %v", EnvSentrySampleRate, c.SentrySampleRate))
	}
	if c.BackupInterval < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %v", EnvBackupInterval, c.BackupInterval))
	}
	if c.BackupInterval > 0 && !c.R2Enabled() {
		errs = append(errs, errors.New("backups require R2 credentials and bucket"))
	}
	if c.BackupKeep < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1, got %d", EnvBackupKeep, c.BackupKeep))
	}
	if c.RestoreOnStart && !c.R2Enabled() {
		errs = append(errs, fmt.Errorf("%s requires R2 credentials and bucket", EnvRestoreOnStart))
	}

	if c.mode == ServerMode {
		if c.SSOSecret == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvSSOSecret))
		}
		if c.SSOCookieName == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvSSOCookieName))
		}
	}

	return errors.Join(errs...)
}

// R2Enabled reports whether object storage credentials are complete.
func (c *Config) R2Enabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" && c.R2BucketName != ""
}

// MetricsAuthEnabled reports whether /metrics requires Basic Auth.
func (c *Config) MetricsAuthEnabled() bool {
	return c.MetricsPassword != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated value, dropping blanks.
func getListEnv(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, strings.ToLower(item))
		}
	}
	return out
}
