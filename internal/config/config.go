package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	pkgconfig "github.com/SistemaEduas/AtendimentoMedico/pkg/config"
	"github.com/SistemaEduas/AtendimentoMedico/pkg/logger"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables overriding the YAML file.
const EnvPrefix = "ASSINATURAS"

type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Log      logger.Config  `yaml:"log"`
	Redis    RedisConfig    `yaml:"redis"`
}

func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/assinaturas.yaml"
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyEnv(pkgconfig.FromEnv(EnvPrefix))
	cfg.applyDefaults()

	return &cfg, nil
}

// Validate reports every missing setting the service cannot run without.
func (c *Config) Validate() error {
	required := map[string]string{
		"service.base_url":                c.Service.BaseURL,
		"service.session.secret":          c.Service.Session.Secret,
		"service.stripe.secret_key":       c.Service.Stripe.SecretKey,
		"service.stripe.webhook_secret":   c.Service.Stripe.WebhookSecret,
		"service.stripe.monthly_price_id": c.Service.Stripe.MonthlyPriceID,
	}

	var missing []string
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) applyEnv(env pkgconfig.Config) {
	stringKeys := map[string]*string{
		"service.environment":             &c.Service.Environment,
		"service.base_url":                &c.Service.BaseURL,
		"service.session.secret":          &c.Service.Session.Secret,
		"service.stripe.secret_key":       &c.Service.Stripe.SecretKey,
		"service.stripe.webhook_secret":   &c.Service.Stripe.WebhookSecret,
		"service.stripe.monthly_price_id": &c.Service.Stripe.MonthlyPriceID,
		"database.host":                   &c.Database.Host,
		"database.name":                   &c.Database.Name,
		"database.user":                   &c.Database.User,
		"database.password":               &c.Database.Password,
		"redis.host":                      &c.Redis.Host,
		"redis.password":                  &c.Redis.Password,
		"log.level":                       &c.Log.Level,
	}
	for key, target := range stringKeys {
		if env.IsSet(key) {
			*target = env.GetString(key)
		}
	}

	intKeys := map[string]*int{
		"database.port":          &c.Database.Port,
		"server.http.port":       &c.Server.HTTP.Port,
		"server.http.rate_burst": &c.Server.HTTP.RateBurst,
		"server.grpc.port":       &c.Server.GRPC.Port,
		"redis.port":             &c.Redis.Port,
		"redis.db":               &c.Redis.DB,
	}
	for key, target := range intKeys {
		if env.IsSet(key) {
			*target = env.GetInt(key)
		}
	}

	if env.IsSet("server.http.rate_limit") {
		c.Server.HTTP.RateLimit = env.GetFloat64("server.http.rate_limit")
	}

	durationKeys := map[string]*time.Duration{
		"redis.lock_ttl":                &c.Redis.LockTTL,
		"database.slow_query_threshold": &c.Database.SlowQueryThreshold,
	}
	for key, target := range durationKeys {
		if env.IsSet(key) {
			*target = env.GetDuration(key)
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "assinaturas"
	}
	c.Service.BaseURL = strings.TrimRight(c.Service.BaseURL, "/")
	if c.Redis.LockTTL == 0 {
		c.Redis.LockTTL = defaultLockTTL
	}
}
