package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Environment          string   `yaml:"environment"`
	LogLevel             string   `yaml:"log_level"`
	LogFormat            string   `yaml:"log_format"`
	Port                 string   `yaml:"port"`
	ModelPath            string   `yaml:"model_path"`
	DBPath               string   `yaml:"db_path"`
	HistoryRetentionDays int      `yaml:"history_retention_days"`
	PruneSchedule        string   `yaml:"prune_schedule"`
	CORSOrigins          []string `yaml:"cors_origins"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Environment:          "development",
		LogLevel:             "info",
		LogFormat:            "text",
		Port:                 "5000",
		ModelPath:            "models/ckd_model.json",
		DBPath:               "data/ckd.db",
		HistoryRetentionDays: 90,
		PruneSchedule:        "0 3 * * *",
		CORSOrigins:          []string{"*"},
	}
}

// LoadConfig loads configuration from the file named by CONFIG_FILE, if
// any, and then from environment variables
func LoadConfig() (*Config, error) {
	return Load(os.Getenv("CONFIG_FILE"))
}

// Load builds the configuration from defaults, the optional YAML file at
// path and environment variables, in that order of precedence
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	config.Environment = getEnv("ENVIRONMENT", config.Environment)
	config.LogLevel = getEnv("LOG_LEVEL", config.LogLevel)
	config.LogFormat = getEnv("LOG_FORMAT", config.LogFormat)
	config.Port = getEnv("PORT", config.Port)
	config.ModelPath = getEnv("MODEL_PATH", config.ModelPath)
	config.DBPath = getEnv("DB_PATH", config.DBPath)
	config.HistoryRetentionDays = getEnvAsInt("HISTORY_RETENTION_DAYS", config.HistoryRetentionDays)
	config.PruneSchedule = getEnv("PRUNE_SCHEDULE", config.PruneSchedule)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		config.CORSOrigins = splitList(origins)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration for values the server cannot start with
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log format must be text or json, got %q", c.LogFormat)
	}
	if port, err := strconv.Atoi(c.Port); err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if c.ModelPath == "" {
		return fmt.Errorf("MODEL_PATH is required")
	}
	if c.HistoryRetentionDays < 0 {
		return fmt.Errorf("history retention days must not be negative")
	}
	if c.HistoryRetentionDays > 0 && c.DBPath != "" {
		if _, err := cron.ParseStandard(c.PruneSchedule); err != nil {
			return fmt.Errorf("invalid prune schedule %q: %w", c.PruneSchedule, err)
		}
	}
	return nil
}

// PruningEnabled reports whether the history pruning job should run
func (c *Config) PruningEnabled() bool {
	return c.DBPath != "" && c.HistoryRetentionDays > 0
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
