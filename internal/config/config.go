// Package config resolves service settings from defaults, an optional YAML
// file and environment overrides, in that order.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // timezone names resolve without a system zoneinfo

	"hestia.local/dispatch/internal/hours"
	"hestia.local/dispatch/internal/workers"
)

const (
	EnvHTTPAddr           = "HESTIA_HTTP_ADDR"
	EnvDBDriver           = "HESTIA_DB_DRIVER"
	EnvDBDSN              = "HESTIA_DB_DSN"
	EnvSupervisorPhones   = "HESTIA_SUPERVISOR_PHONES"
	EnvHoursStart         = "HESTIA_HOURS_START"
	EnvHoursEnd           = "HESTIA_HOURS_END"
	EnvTimezone           = "HESTIA_TIMEZONE"
	EnvOutboundWebhookURL = "HESTIA_OUTBOUND_WEBHOOK_URL"
	EnvDiscordToken       = "HESTIA_DISCORD_TOKEN"
	EnvDiscordChannelID   = "HESTIA_DISCORD_CHANNEL_ID"
	EnvRedisURL           = "HESTIA_REDIS_URL"
	EnvRedisLockPrefix    = "HESTIA_REDIS_LOCK_PREFIX"
	EnvSessionCacheSize   = "HESTIA_SESSION_CACHE_SIZE"
	EnvSessionQueueSize   = "HESTIA_SESSION_QUEUE_SIZE"
	EnvReminderInterval   = "HESTIA_REMINDER_INTERVAL"
	EnvReminderAfter      = "HESTIA_REMINDER_AFTER"
	EnvStaleAfter         = "HESTIA_STALE_AFTER"
)

const (
	DefaultHTTPAddr         = ":8080"
	DefaultDBDriver         = "sqlite"
	DefaultDBDSN            = "hestia.db"
	DefaultHoursStart       = "07:00"
	DefaultHoursEnd         = "23:00"
	DefaultTimezone         = "UTC"
	DefaultSessionCacheSize = 1024
	DefaultSessionQueueSize = 64
	DefaultReminderInterval = time.Minute
	DefaultReminderAfter    = 15 * time.Minute
	DefaultStaleAfter       = 30 * time.Minute
)

type Config struct {
	HTTPAddr           string
	DBDriver           string
	DBDSN              string
	Supervisors        []string
	HoursStart         string
	HoursEnd           string
	Timezone           string
	OutboundWebhookURL string
	DiscordBotToken    string
	DiscordChannelID   string
	RedisURL           string
	RedisLockPrefix    string
	SessionCacheSize   int
	SessionQueueSize   int
	ReminderInterval   time.Duration
	ReminderAfter      time.Duration
	StaleAfter         time.Duration
}

func Default() Config {
	return Config{
		HTTPAddr:         DefaultHTTPAddr,
		DBDriver:         DefaultDBDriver,
		DBDSN:            DefaultDBDSN,
		HoursStart:       DefaultHoursStart,
		HoursEnd:         DefaultHoursEnd,
		Timezone:         DefaultTimezone,
		SessionCacheSize: DefaultSessionCacheSize,
		SessionQueueSize: DefaultSessionQueueSize,
		ReminderInterval: DefaultReminderInterval,
		ReminderAfter:    DefaultReminderAfter,
		StaleAfter:       DefaultStaleAfter,
	}
}

// FromEnv skips the config file.
func FromEnv() Config {
	cfg := Default()
	applyEnv(&cfg)
	return cfg
}

func FromYAMLAndEnv() (Config, error) {
	cfg := Default()

	fileCfg, path, err := loadFileConfig()
	if err != nil {
		return Config{}, err
	}
	if err := applyYAML(&cfg, fileCfg); err != nil {
		return Config{}, fmt.Errorf("config file %s: %w", path, err)
	}
	applyEnv(&cfg)

	return cfg, nil
}

func applyYAML(cfg *Config, source fileConfig) error {
	if value := strings.TrimSpace(source.HTTPAddr); value != "" {
		cfg.HTTPAddr = value
	}
	if value := strings.TrimSpace(source.DBDriver); value != "" {
		cfg.DBDriver = strings.ToLower(value)
	}
	if value := strings.TrimSpace(source.DBDSN); value != "" {
		cfg.DBDSN = value
	}
	if len(source.Supervisors) > 0 {
		cfg.Supervisors = normalizePhones(source.Supervisors)
	}
	if value := strings.TrimSpace(source.OperatingHours.Start); value != "" {
		cfg.HoursStart = value
	}
	if value := strings.TrimSpace(source.OperatingHours.End); value != "" {
		cfg.HoursEnd = value
	}
	if value := strings.TrimSpace(source.Timezone); value != "" {
		cfg.Timezone = value
	}
	if value := strings.TrimSpace(source.OutboundWebhookURL); value != "" {
		cfg.OutboundWebhookURL = value
	}
	if value := strings.TrimSpace(source.DiscordBotToken); value != "" {
		cfg.DiscordBotToken = value
	}
	if value := strings.TrimSpace(source.DiscordChannelID); value != "" {
		cfg.DiscordChannelID = value
	}
	if value := strings.TrimSpace(source.RedisURL); value != "" {
		cfg.RedisURL = value
	}
	if value := strings.TrimSpace(source.RedisLockPrefix); value != "" {
		cfg.RedisLockPrefix = value
	}
	if source.SessionCacheSize != nil {
		if *source.SessionCacheSize <= 0 {
			return fmt.Errorf("session_cache_size must be > 0")
		}
		cfg.SessionCacheSize = *source.SessionCacheSize
	}
	if source.SessionQueueSize != nil {
		if *source.SessionQueueSize <= 0 {
			return fmt.Errorf("session_queue_size must be > 0")
		}
		cfg.SessionQueueSize = *source.SessionQueueSize
	}

	var err error
	if cfg.ReminderInterval, err = parseOptionalDuration(source.ReminderInterval, cfg.ReminderInterval, "reminder_interval"); err != nil {
		return err
	}
	if cfg.ReminderAfter, err = parseOptionalDuration(source.ReminderAfter, cfg.ReminderAfter, "reminder_after"); err != nil {
		return err
	}
	if cfg.StaleAfter, err = parseOptionalDuration(source.StaleAfter, cfg.StaleAfter, "stale_after"); err != nil {
		return err
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = EnvOrDefault(EnvHTTPAddr, cfg.HTTPAddr)
	cfg.DBDriver = strings.ToLower(EnvOrDefault(EnvDBDriver, cfg.DBDriver))
	cfg.DBDSN = EnvOrDefault(EnvDBDSN, cfg.DBDSN)
	if raw := EnvString(EnvSupervisorPhones); raw != "" {
		cfg.Supervisors = normalizePhones(strings.Split(raw, ","))
	}
	cfg.HoursStart = EnvOrDefault(EnvHoursStart, cfg.HoursStart)
	cfg.HoursEnd = EnvOrDefault(EnvHoursEnd, cfg.HoursEnd)
	cfg.Timezone = EnvOrDefault(EnvTimezone, cfg.Timezone)
	cfg.OutboundWebhookURL = EnvOrDefault(EnvOutboundWebhookURL, cfg.OutboundWebhookURL)
	cfg.DiscordBotToken = EnvOrDefault(EnvDiscordToken, cfg.DiscordBotToken)
	cfg.DiscordChannelID = EnvOrDefault(EnvDiscordChannelID, cfg.DiscordChannelID)
	cfg.RedisURL = EnvOrDefault(EnvRedisURL, cfg.RedisURL)
	cfg.RedisLockPrefix = EnvOrDefault(EnvRedisLockPrefix, cfg.RedisLockPrefix)
	cfg.SessionCacheSize = parseIntEnv(EnvSessionCacheSize, cfg.SessionCacheSize)
	cfg.SessionQueueSize = parseIntEnv(EnvSessionQueueSize, cfg.SessionQueueSize)
	cfg.ReminderInterval = parseDurationEnv(EnvReminderInterval, cfg.ReminderInterval)
	cfg.ReminderAfter = parseDurationEnv(EnvReminderAfter, cfg.ReminderAfter)
	cfg.StaleAfter = parseDurationEnv(EnvStaleAfter, cfg.StaleAfter)
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("%s must not be empty", EnvHTTPAddr)
	}
	switch strings.ToLower(strings.TrimSpace(c.DBDriver)) {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%s must be sqlite or postgres", EnvDBDriver)
	}
	if strings.TrimSpace(c.DBDSN) == "" {
		return fmt.Errorf("%s must not be empty", EnvDBDSN)
	}
	if _, err := c.Window(); err != nil {
		return err
	}
	if c.SessionCacheSize <= 0 {
		return fmt.Errorf("%s must be > 0", EnvSessionCacheSize)
	}
	if c.SessionQueueSize <= 0 {
		return fmt.Errorf("%s must be > 0", EnvSessionQueueSize)
	}
	if c.ReminderInterval <= 0 {
		return fmt.Errorf("%s must be > 0", EnvReminderInterval)
	}
	if c.ReminderAfter <= 0 {
		return fmt.Errorf("%s must be > 0", EnvReminderAfter)
	}
	if c.StaleAfter <= 0 {
		return fmt.Errorf("%s must be > 0", EnvStaleAfter)
	}
	if (c.DiscordBotToken == "") != (c.DiscordChannelID == "") {
		return fmt.Errorf("%s and %s must be provided together", EnvDiscordToken, EnvDiscordChannelID)
	}
	return nil
}

func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EnvTimezone, err)
	}
	return loc, nil
}

// Window is the operating-hours window. Start and end must differ; an end
// before the start wraps past midnight.
func (c Config) Window() (hours.Window, error) {
	loc, err := c.Location()
	if err != nil {
		return hours.Window{}, err
	}
	w, err := hours.NewWindow(c.HoursStart, c.HoursEnd, loc)
	if err != nil {
		return hours.Window{}, fmt.Errorf("operating hours: %w", err)
	}
	if w.Start == w.End {
		return hours.Window{}, fmt.Errorf("%s and %s must differ", EnvHoursStart, EnvHoursEnd)
	}
	return w, nil
}

func normalizePhones(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		phone := workers.NormalizePhone(r)
		if phone == "" {
			continue
		}
		if _, dup := seen[phone]; dup {
			continue
		}
		seen[phone] = struct{}{}
		out = append(out, phone)
	}
	return out
}

func parseIntEnv(key string, fallback int) int {
	raw := EnvString(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := EnvString(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
