package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port                  int      `env:"PORT" envDefault:"8080"`
	DatabaseURL           string   `env:"DATABASE_URL,required"`
	RedisURL              string   `env:"REDIS_URL,required"`
	ProviderAPIKey        string   `env:"PROVIDER_API_KEY,required"`
	ProviderBaseURL       string   `env:"PROVIDER_BASE_URL" envDefault:"https://api.daily.co/v1"`
	ProviderWebhookSecret string   `env:"PROVIDER_WEBHOOK_SECRET"`
	PublicBaseURL         string   `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	MaxDurationMinutes    int      `env:"MAX_DURATION_MINUTES" envDefault:"40"`
	AdminIDs              []string `env:"ADMIN_IDS" envSeparator:","`
	LogLevel              string   `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) MaxDuration() time.Duration {
	return time.Duration(c.MaxDurationMinutes) * time.Minute
}

// AdminSet returns the configured administrator identities as a lookup set.
func (c *Config) AdminSet() map[string]bool {
	admins := make(map[string]bool, len(c.AdminIDs))
	for _, id := range c.AdminIDs {
		id = strings.TrimSpace(id)
		if id != "" {
			admins[id] = true
		}
	}
	return admins
}

func (c *Config) Validate(isProduction bool) error {
	if c.MaxDurationMinutes < 1 || c.MaxDurationMinutes > 24*60 {
		return fmt.Errorf("MAX_DURATION_MINUTES must be between 1 and 1440, got %d", c.MaxDurationMinutes)
	}

	if !strings.HasPrefix(c.ProviderBaseURL, "http://") && !strings.HasPrefix(c.ProviderBaseURL, "https://") {
		return fmt.Errorf("PROVIDER_BASE_URL must be an absolute http(s) URL")
	}

	if isProduction {
		if c.ProviderWebhookSecret == "" {
			log.Warn().Msg("PROVIDER_WEBHOOK_SECRET is empty in production: webhook signature verification disabled")
		} else if err := validateSecret("PROVIDER_WEBHOOK_SECRET", c.ProviderWebhookSecret); err != nil {
			return err
		}
		if strings.HasPrefix(c.PublicBaseURL, "http://") {
			log.Warn().Msg("PUBLIC_BASE_URL uses http:// in production: join links will not be served over TLS")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
