// Package config loads pipeline configuration from the environment
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration
type Config struct {
	// Connection settings
	NightscoutURL string
	APISecret     string
	APIToken      string
	UseToken      bool

	// Storage settings
	StoreBackend string // "sqlite" or "memory"
	DBPath       string

	// Pipeline settings
	IntervalSeconds     int
	LookbackHours       int
	RetentionDays       int
	ExportOffsetMinutes int
	ModelWindow         int
	InsulinActiveHours  float64
	CarbActiveHours     float64

	// Glucose thresholds (in mg/dL, matching Nightscout server settings)
	TargetLow  int
	TargetHigh int
	UrgentLow  int
	UrgentHigh int

	// Alert settings
	AlertsEnabled      bool
	RepeatAlertMinutes int
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := &Config{}

	cfg.NightscoutURL = os.Getenv("NIGHTSCOUT_URL")
	cfg.APISecret = os.Getenv("NIGHTSCOUT_API_SECRET")
	cfg.APIToken = os.Getenv("NIGHTSCOUT_API_TOKEN")
	cfg.UseToken = getEnvBoolWithDefault("NIGHTSCOUT_USE_TOKEN", cfg.APIToken != "")

	cfg.StoreBackend = getEnvWithDefault("SAVEKIT_STORE", "sqlite")
	cfg.DBPath = os.Getenv("SAVEKIT_DB_PATH")
	if cfg.DBPath == "" {
		path, err := defaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolving database path: %w", err)
		}
		cfg.DBPath = path
	}

	cfg.IntervalSeconds = getEnvIntWithDefault("SAVEKIT_INTERVAL_SECONDS", 300)
	cfg.LookbackHours = getEnvIntWithDefault("SAVEKIT_LOOKBACK_HOURS", 6)
	cfg.RetentionDays = getEnvIntWithDefault("SAVEKIT_RETENTION_DAYS", 30)
	cfg.ExportOffsetMinutes = getEnvIntWithDefault("SAVEKIT_EXPORT_OFFSET_MIN", 0)
	cfg.ModelWindow = getEnvIntWithDefault("SAVEKIT_MODEL_WINDOW", 6)
	cfg.InsulinActiveHours = getEnvFloatWithDefault("SAVEKIT_INSULIN_HOURS", 4)
	cfg.CarbActiveHours = getEnvFloatWithDefault("SAVEKIT_CARB_HOURS", 3)

	cfg.TargetLow = getEnvIntWithDefault("TARGET_LOW", 70)
	cfg.TargetHigh = getEnvIntWithDefault("TARGET_HIGH", 180)
	cfg.UrgentLow = getEnvIntWithDefault("URGENT_LOW", 55)
	cfg.UrgentHigh = getEnvIntWithDefault("URGENT_HIGH", 250)

	cfg.AlertsEnabled = getEnvBoolWithDefault("ALERTS_ENABLED", false)
	cfg.RepeatAlertMinutes = getEnvIntWithDefault("REPEAT_ALERT_MINUTES", 15)

	return cfg, nil
}

// RequireNightscout returns an error when no server URL is configured
func (c *Config) RequireNightscout() error {
	if c.NightscoutURL == "" {
		return fmt.Errorf("NIGHTSCOUT_URL is not set")
	}
	return nil
}

// Interval returns the cycle interval as a duration
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Lookback returns how far back each cycle fetches data
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.LookbackHours) * time.Hour
}

// RepeatAlert returns the alert repeat window as a duration
func (c *Config) RepeatAlert() time.Duration {
	return time.Duration(c.RepeatAlertMinutes) * time.Minute
}

// ExportLocation returns the fixed-offset zone CSV timestamps are
// rendered in
func (c *Config) ExportLocation() *time.Location {
	return time.FixedZone("export", c.ExportOffsetMinutes*60)
}

// defaultDBPath returns the per-OS default database location
func defaultDBPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	appDir := filepath.Join(configDir, "savekit")
	if err := os.MkdirAll(appDir, 0750); err != nil {
		return "", err
	}

	return filepath.Join(appDir, "savekit.db"), nil
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}
