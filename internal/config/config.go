// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type SecurityConfig struct {
	// EncryptionKey protects stored bot tokens. 16/24/32-byte keys are used
	// verbatim for AES; any other length is stretched with PBKDF2.
	EncryptionKey string `yaml:"encryption_key"`
	JWTSecret     string `yaml:"jwt_secret"`
}

type LimitsConfig struct {
	// System-wide defaults; per-tenant overrides live on the user row.
	ConnectionsPerUser     int `yaml:"connections_per_user"`
	DailyPostsPerLink      int `yaml:"daily_posts_per_link"`
	RetentionDaysSuccess   int `yaml:"retention_days_success"`
	RetentionDaysFailed    int `yaml:"retention_days_failed"`
	RetentionDaysCounters  int `yaml:"retention_days_counters"`
	RetentionIntervalHours int `yaml:"retention_interval_hours"`
}

type ProvidersConfig struct {
	TelegramAPIBase string        `yaml:"telegram_api_base"`
	MaxAPIBase      string        `yaml:"max_api_base"`
	WebhookBaseURL  string        `yaml:"webhook_base_url"`
	SendTimeout     time.Duration `yaml:"send_timeout"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Security  SecurityConfig  `yaml:"security"`
	Limits    LimitsConfig    `yaml:"limits"`
	Providers ProvidersConfig `yaml:"providers"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Limits.ConnectionsPerUser <= 0 {
		cfg.Limits.ConnectionsPerUser = 3
	}
	if cfg.Limits.DailyPostsPerLink <= 0 {
		cfg.Limits.DailyPostsPerLink = 100
	}
	if cfg.Limits.RetentionDaysSuccess <= 0 {
		cfg.Limits.RetentionDaysSuccess = 30
	}
	if cfg.Limits.RetentionDaysFailed <= 0 {
		cfg.Limits.RetentionDaysFailed = 7
	}
	if cfg.Limits.RetentionDaysCounters <= 0 {
		cfg.Limits.RetentionDaysCounters = 2
	}
	if cfg.Limits.RetentionIntervalHours <= 0 {
		cfg.Limits.RetentionIntervalHours = 6
	}
	if cfg.Providers.TelegramAPIBase == "" {
		cfg.Providers.TelegramAPIBase = "https://api.telegram.org"
	}
	if cfg.Providers.MaxAPIBase == "" {
		cfg.Providers.MaxAPIBase = "https://platform-api.max.ru"
	}
	if cfg.Providers.SendTimeout <= 0 {
		cfg.Providers.SendTimeout = 30 * time.Second
	}
	cfg.Providers.WebhookBaseURL = strings.TrimSuffix(cfg.Providers.WebhookBaseURL, "/")
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Security.EncryptionKey == "" {
		return nil, errors.New("security.encryption_key is required")
	}
	if cfg.Providers.WebhookBaseURL == "" {
		return nil, errors.New("providers.webhook_base_url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
