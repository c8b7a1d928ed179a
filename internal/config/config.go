// Copyright (c) 2026 Wardstone Team
// Wardstone - security posture monitoring engine
// This source code is licensed under the MIT license found in the LICENSE file.

// package config loads and validates the Wardstone configuration. Settings
// come from a YAML file, environment variables and CLI flags via viper and
// are read once at startup; invalid monitoring values abort startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the top-level application configuration.
type Config struct {
	Database struct {
		Type string `mapstructure:"type" yaml:"type"`
		Dsn  string `mapstructure:"dsn" yaml:"dsn"`
	} `mapstructure:"database" yaml:"database"`
	Language   string     `mapstructure:"language" yaml:"language"`
	Debug      bool       `mapstructure:"debug" yaml:"debug"`
	Monitoring Monitoring `mapstructure:"monitoring" yaml:"monitoring"`
}

// Monitoring holds the numeric weights, thresholds, retention windows and
// interval durations of the monitoring engine. All values are validated at
// startup and immutable afterwards.
type Monitoring struct {
	Weights struct {
		Critical float64 `mapstructure:"critical" yaml:"critical"`
		High     float64 `mapstructure:"high" yaml:"high"`
		Medium   float64 `mapstructure:"medium" yaml:"medium"`
		Low      float64 `mapstructure:"low" yaml:"low"`
	} `mapstructure:"weights" yaml:"weights"`

	// MaxPossibleIssues normalizes the weighted issue sum into a 0-100 score.
	MaxPossibleIssues float64 `mapstructure:"max_possible_issues" yaml:"max_possible_issues"`

	// ScoreDropThreshold is the score decrease that triggers a
	// score-deterioration alert; SignificantDropThreshold escalates it to
	// critical severity and must be strictly larger.
	ScoreDropThreshold       int `mapstructure:"score_drop_threshold" yaml:"score_drop_threshold"`
	SignificantDropThreshold int `mapstructure:"significant_drop_threshold" yaml:"significant_drop_threshold"`

	HistoryRetentionDays int `mapstructure:"history_retention_days" yaml:"history_retention_days"`
	AlertRetentionHours  int `mapstructure:"alert_retention_hours" yaml:"alert_retention_hours"`

	AuditInterval   time.Duration `mapstructure:"audit_interval" yaml:"audit_interval"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
	ExpiryInterval  time.Duration `mapstructure:"expiry_interval" yaml:"expiry_interval"`

	// CollaboratorTimeout bounds each external collaborator call inside an
	// audit cycle so the audit lock is never held indefinitely.
	CollaboratorTimeout time.Duration `mapstructure:"collaborator_timeout" yaml:"collaborator_timeout"`

	// ExpiryWarningDays is how far ahead of a key's expiry date the auditor
	// starts reporting it as expiring.
	ExpiryWarningDays int `mapstructure:"expiry_warning_days" yaml:"expiry_warning_days"`
	// StaleKeyDays marks keys unseen for this many days as stale.
	StaleKeyDays int `mapstructure:"stale_key_days" yaml:"stale_key_days"`
	// CleanupGraceDays is how long an expired key stays in the inventory
	// before the cleanup sweep removes it.
	CleanupGraceDays int `mapstructure:"cleanup_grace_days" yaml:"cleanup_grace_days"`
}

// HistoryRetention returns the history retention window as a duration.
func (m Monitoring) HistoryRetention() time.Duration {
	return time.Duration(m.HistoryRetentionDays) * 24 * time.Hour
}

// AlertRetention returns the resolved-alert retention window as a duration.
func (m Monitoring) AlertRetention() time.Duration {
	return time.Duration(m.AlertRetentionHours) * time.Hour
}

// Defaults returns the default configuration values keyed for viper.
func Defaults() map[string]any {
	return map[string]any{
		"database.type":                         "sqlite",
		"database.dsn":                          "./wardstone.db",
		"language":                              "en",
		"debug":                                 false,
		"monitoring.weights.critical":           4.0,
		"monitoring.weights.high":               2.0,
		"monitoring.weights.medium":             1.0,
		"monitoring.weights.low":                0.5,
		"monitoring.max_possible_issues":        20.0,
		"monitoring.score_drop_threshold":       10,
		"monitoring.significant_drop_threshold": 20,
		"monitoring.history_retention_days":     30,
		"monitoring.alert_retention_hours":      72,
		"monitoring.audit_interval":             "24h",
		"monitoring.cleanup_interval":           "12h",
		"monitoring.expiry_interval":            "1h",
		"monitoring.collaborator_timeout":       "30s",
		"monitoring.expiry_warning_days":        14,
		"monitoring.stale_key_days":             90,
		"monitoring.cleanup_grace_days":         7,
	}
}

// Validate checks the monitoring settings. A non-nil error is a fatal
// configuration error; the process must not start with it.
func (m Monitoring) Validate() error {
	var problems []string

	if m.Weights.Critical <= 0 || m.Weights.High <= 0 || m.Weights.Medium <= 0 || m.Weights.Low <= 0 {
		problems = append(problems, "severity weights must all be > 0")
	}
	if m.MaxPossibleIssues <= 0 {
		problems = append(problems, "max_possible_issues must be > 0")
	}
	if m.ScoreDropThreshold <= 0 {
		problems = append(problems, "score_drop_threshold must be > 0")
	}
	if m.SignificantDropThreshold <= m.ScoreDropThreshold {
		problems = append(problems, "significant_drop_threshold must be greater than score_drop_threshold")
	}
	if m.HistoryRetentionDays <= 0 {
		problems = append(problems, "history_retention_days must be > 0")
	}
	if m.AlertRetentionHours <= 0 {
		problems = append(problems, "alert_retention_hours must be > 0")
	}
	if m.AuditInterval <= 0 || m.CleanupInterval <= 0 || m.ExpiryInterval <= 0 {
		problems = append(problems, "audit, cleanup and expiry intervals must all be > 0")
	}
	if m.CollaboratorTimeout <= 0 {
		problems = append(problems, "collaborator_timeout must be > 0")
	}
	if m.ExpiryWarningDays < 0 || m.StaleKeyDays < 0 || m.CleanupGraceDays < 0 {
		problems = append(problems, "expiry_warning_days, stale_key_days and cleanup_grace_days must not be negative")
	}

	if len(problems) > 0 {
		return errors.New("invalid monitoring configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// GetConfigPath returns the full path for the configuration file.
func GetConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		// System-wide configuration paths
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "Wardstone")
		default: // Linux, macOS, etc.
			configDir = "/etc/wardstone"
		}
	} else {
		// User-specific configuration paths
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "wardstone")
	}

	return filepath.Join(configDir, "wardstone.yaml"), nil
}

// LoadConfig reads configuration from defaults, config files, environment
// variables and the command's flags, in ascending order of precedence.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, additionalConfigFilePath *string) (T, error) {
	var c T
	v := viper.New()

	// 1. Set defaults
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// 2. Set up file search paths
	v.SetConfigName("wardstone")
	v.SetConfigType("yaml")

	// 3. Add explicit config file path if provided via --config flag.
	// This has the highest precedence for file-based configuration.
	if additionalConfigFilePath != nil {
		v.SetConfigFile(*additionalConfigFilePath)
	}

	// 4. Add standard config locations
	if userConfigPath, err := GetConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := GetConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".") // Look for wardstone.yaml in current dir

	// 5. Read in the primary config file.
	if err := v.ReadInConfig(); err != nil {
		// It's okay if the file is not found, but other errors are fatal.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	// 6. Read from environment variables
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvPrefix("wardstone")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 7. Bind CLI flags
	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return c, err
		}
	}

	// parse config
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}

	return c, nil
}

// WriteConfigFile persists the given configuration as YAML to the user or
// system config location.
func WriteConfigFile[T any](c *T, system bool) error {
	path, err := GetConfigPath(system)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}

	// 0600: the DSN may contain credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return err
	}

	return nil
}
