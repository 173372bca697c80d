package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Tooldex counter server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Counters  CounterConfig
	API       APIConfig
	Mail      MailConfig
	Turnstile TurnstileConfig
	Webhook   WebhookConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// CounterConfig holds per-resource TTLs for the in-process counter
// cache. View counters move fast and get the shortest TTL; category
// stats are nearly static.
type CounterConfig struct {
	VotesTTL time.Duration
	ViewsTTL time.Duration
	StatsTTL time.Duration
}

type APIConfig struct {
	KeyDailyQuota  int
	BurstPerMinute int
}

type MailConfig struct {
	SMTPAddr string
	From     string
	// DryRun logs outgoing mail instead of sending it. Default in
	// development so key issuance works without an SMTP relay.
	DryRun bool
}

type TurnstileConfig struct {
	Secret string
}

type WebhookConfig struct {
	Secret string
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	env := envString("TOOLDEX_ENV", "development")

	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("TOOLDEX_PORT", 8080),
			Env:  env,
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Counters: CounterConfig{
			VotesTTL: envDuration("COUNTER_VOTES_TTL", 30*time.Second),
			ViewsTTL: envDuration("COUNTER_VIEWS_TTL", 15*time.Second),
			StatsTTL: envDuration("COUNTER_STATS_TTL", 5*time.Minute),
		},
		API: APIConfig{
			KeyDailyQuota:  envInt("API_KEY_DAILY_QUOTA", 1000),
			BurstPerMinute: envInt("API_BURST_PER_MINUTE", 60),
		},
		Mail: MailConfig{
			SMTPAddr: os.Getenv("SMTP_ADDR"),
			From:     envString("MAIL_FROM", "keys@tooldex.dev"),
			DryRun:   envBool("MAIL_DRY_RUN", env == "development"),
		},
		Turnstile: TurnstileConfig{
			Secret: os.Getenv("TURNSTILE_SECRET"),
		},
		Webhook: WebhookConfig{
			Secret: os.Getenv("WEBHOOK_SECRET"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Counters.VotesTTL <= 0 || c.Counters.ViewsTTL <= 0 || c.Counters.StatsTTL <= 0 {
		return fmt.Errorf("counter TTLs must be positive")
	}

	if c.API.KeyDailyQuota <= 0 {
		return fmt.Errorf("API_KEY_DAILY_QUOTA must be positive, got %d", c.API.KeyDailyQuota)
	}
	if c.API.BurstPerMinute <= 0 {
		return fmt.Errorf("API_BURST_PER_MINUTE must be positive, got %d", c.API.BurstPerMinute)
	}

	if !c.Mail.DryRun && c.Mail.SMTPAddr == "" {
		return fmt.Errorf("SMTP_ADDR is required unless MAIL_DRY_RUN is true")
	}
	if c.Mail.From == "" || !strings.Contains(c.Mail.From, "@") {
		return fmt.Errorf("MAIL_FROM must be an email address, got %q", c.Mail.From)
	}

	if c.Server.Env == "production" {
		if c.Turnstile.Secret == "" {
			return fmt.Errorf("TURNSTILE_SECRET is required in production")
		}
		if c.Webhook.Secret == "" {
			return fmt.Errorf("WEBHOOK_SECRET is required in production")
		}
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
