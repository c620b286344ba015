// Package config loads application settings from environment variables with
// defaults and validation. A .env file is honored when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	BotToken    string  // BOT_TOKEN (required)
	DBPath      string  // DB_PATH
	Timezone    string  // TIMEZONE, IANA name
	ReportTime  string  // REPORT_TIME, "HH:MM" local wall clock
	ReportUser  int64   // REPORT_USER_ID, digest recipient
	MetricsAddr string  // METRICS_ADDR, empty disables the listener
	LogLevel    string  // LOG_LEVEL
	AllowedIDs  []int64 // ALLOWED_USER_IDS, comma-separated seed allow-list

	Location *time.Location
}

// Load reads configuration from the environment, loading .env first when
// one exists.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		BotToken:    os.Getenv("BOT_TOKEN"),
		DBPath:      getEnvOrDefault("DB_PATH", "./data/relay.db"),
		Timezone:    getEnvOrDefault("TIMEZONE", "Europe/Moscow"),
		ReportTime:  getEnvOrDefault("REPORT_TIME", "22:30"),
		MetricsAddr: os.Getenv("METRICS_ADDR"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
	}

	if cfg.BotToken == "" {
		return Config{}, errors.New("BOT_TOKEN is required")
	}

	if raw := os.Getenv("REPORT_USER_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid REPORT_USER_ID %q: %w", raw, err)
		}
		cfg.ReportUser = id
	}

	if raw := os.Getenv("ALLOWED_USER_IDS"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return Config{}, fmt.Errorf("invalid allowed user id %q: %w", part, err)
			}
			cfg.AllowedIDs = append(cfg.AllowedIDs, id)
		}
	}

	if _, err := time.Parse("15:04", cfg.ReportTime); err != nil {
		return Config{}, fmt.Errorf("invalid REPORT_TIME %q: %w", cfg.ReportTime, err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
