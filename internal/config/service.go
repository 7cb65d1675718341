package config

import "time"

const defaultLockTTL = 30 * time.Second

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`

	// BaseURL is the public URL of the web application, used for checkout redirects and CORS
	BaseURL string `yaml:"base_url"`

	Session SessionConfig `yaml:"session"`
	Stripe  StripeConfig  `yaml:"stripe"`
}

// SessionConfig holds the HMAC secret used to validate session tokens.
type SessionConfig struct {
	Secret string `yaml:"secret"`
}

type StripeConfig struct {
	SecretKey      string `yaml:"secret_key"`
	WebhookSecret  string `yaml:"webhook_secret"`
	MonthlyPriceID string `yaml:"monthly_price_id"`
}

// RedisConfig configures the webhook delivery lock. An empty host disables it.
type RedisConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}
