package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	RunModeLongpoll = "longpoll"
	RunModeWebhook  = "webhook"

	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Telegram accepts 1-256 characters from this set as a webhook secret.
var webhookSecretRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,256}$`)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken       string        `envconfig:"TELEGRAM_TOKEN" required:"true"`
	DatabaseDriver      string        `envconfig:"DATABASE_DRIVER" default:"sqlite"`
	DatabaseURL         string        `envconfig:"DATABASE_URL" default:"eventbot.db"`
	RunMode             string        `envconfig:"RUN_MODE" default:"longpoll"`
	WebhookURL          string        `envconfig:"WEBHOOK_URL"`
	WebhookSecret       string        `envconfig:"WEBHOOK_SECRET"`
	ListenAddr          string        `envconfig:"LISTEN_ADDR" default:":8080"`
	Workers             int           `envconfig:"WORKERS" default:"4"`
	CatalogFile         string        `envconfig:"CATALOG_FILE"`
	CatalogSyncInterval time.Duration `envconfig:"CATALOG_SYNC_INTERVAL" default:"1h"`
	Debug               bool          `envconfig:"DEBUG"`
}

// Load reads configuration from the environment, after an optional .env file.
func Load() (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("read env: %w", err)
	}

	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	cfg.RunMode = strings.ToLower(strings.TrimSpace(cfg.RunMode))
	cfg.WebhookURL = strings.TrimSpace(cfg.WebhookURL)
	cfg.WebhookSecret = strings.TrimSpace(cfg.WebhookSecret)
	cfg.CatalogFile = strings.TrimSpace(cfg.CatalogFile)

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	switch c.DatabaseDriver {
	case DriverSQLite, DriverMySQL:
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	switch c.RunMode {
	case RunModeLongpoll:
	case RunModeWebhook:
		if c.WebhookURL == "" {
			return fmt.Errorf("WEBHOOK_URL is required in %s mode", RunModeWebhook)
		}
		if !webhookSecretRe.MatchString(c.WebhookSecret) {
			return fmt.Errorf("WEBHOOK_SECRET is required in %s mode: 1-256 of A-Z a-z 0-9 _ -", RunModeWebhook)
		}
	default:
		return fmt.Errorf("unsupported RUN_MODE %q", c.RunMode)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("WORKERS must be positive, got %d", c.Workers)
	}
	if c.CatalogSyncInterval < 0 {
		return fmt.Errorf("CATALOG_SYNC_INTERVAL must not be negative")
	}
	return nil
}
