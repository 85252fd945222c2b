package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigFile           = "HESTIA_CONFIG_FILE"
	hestiaDirName           = ".hestia"
	defaultConfigFileName   = "config.yaml"
	alternateConfigFileName = "config.yml"
)

type fileConfig struct {
	HTTPAddr           string          `yaml:"http_addr"`
	DBDriver           string          `yaml:"db_driver"`
	DBDSN              string          `yaml:"db_dsn"`
	Supervisors        []string        `yaml:"supervisors"`
	OperatingHours     fileHoursConfig `yaml:"operating_hours"`
	Timezone           string          `yaml:"timezone"`
	OutboundWebhookURL string          `yaml:"outbound_webhook_url"`
	DiscordBotToken    string          `yaml:"discord_bot_token"`
	DiscordChannelID   string          `yaml:"discord_channel_id"`
	RedisURL           string          `yaml:"redis_url"`
	RedisLockPrefix    string          `yaml:"redis_lock_prefix"`
	SessionCacheSize   *int            `yaml:"session_cache_size"`
	SessionQueueSize   *int            `yaml:"session_queue_size"`
	ReminderInterval   string          `yaml:"reminder_interval"`
	ReminderAfter      string          `yaml:"reminder_after"`
	StaleAfter         string          `yaml:"stale_after"`
}

type fileHoursConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// loadFileConfig returns an empty config when no file exists.
func loadFileConfig() (fileConfig, string, error) {
	path, ok, err := resolveConfigFilePath()
	if err != nil {
		return fileConfig{}, "", err
	}
	if !ok {
		return fileConfig{}, "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, path, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fileConfig{}, path, fmt.Errorf("decode config file %s: %w", path, err)
	}
	return cfg, path, nil
}

func resolveConfigFilePath() (string, bool, error) {
	if explicit := EnvString(EnvConfigFile); explicit != "" {
		resolved, err := expandPath(explicit)
		if err != nil {
			return "", false, fmt.Errorf("resolve %s: %w", EnvConfigFile, err)
		}
		info, err := os.Stat(resolved)
		if err != nil {
			return "", false, fmt.Errorf("config file %s: %w", resolved, err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config file %s is a directory", resolved)
		}
		return resolved, true, nil
	}

	candidates := []string{
		filepath.Join(hestiaDirName, defaultConfigFileName),
		filepath.Join(hestiaDirName, alternateConfigFileName),
	}
	if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
		candidates = append(candidates,
			filepath.Join(home, hestiaDirName, defaultConfigFileName),
			filepath.Join(home, hestiaDirName, alternateConfigFileName),
		)
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", false, fmt.Errorf("config path %s is a directory", candidate)
			}
			return candidate, true, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("stat config file %s: %w", candidate, err)
		}
	}
	return "", false, nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(trimmed, "~")), nil
	}
	return trimmed, nil
}

func EnvString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func EnvOrDefault(key, fallback string) string {
	if value := EnvString(key); value != "" {
		return value
	}
	return fallback
}

func parseOptionalDuration(raw string, fallback time.Duration, field string) (time.Duration, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration %q: %w", field, value, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be > 0", field)
	}
	return parsed, nil
}
