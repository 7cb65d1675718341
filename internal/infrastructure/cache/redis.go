package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/SistemaEduas/AtendimentoMedico/internal/config"
	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/repository"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	lockKeyPrefix  = "assinaturas:webhook:"
	releaseTimeout = 2 * time.Second
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// NewRedisClient creates a client and checks the connection.
func NewRedisClient(cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Redis connection failed", zap.Error(err))
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info("Redis connection established",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
	)
	return client, nil
}

// RedisEventLocker holds a short-lived lock per webhook event id.
type RedisEventLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ repository.EventLocker = (*RedisEventLocker)(nil)

func NewRedisEventLocker(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisEventLocker {
	return &RedisEventLocker{client: client, ttl: ttl, logger: logger}
}

func (l *RedisEventLocker) Acquire(ctx context.Context, key string) (func(), bool, error) {
	token, err := gonanoid.New()
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate lock token: %w", err)
	}

	lockKey := lockKeyPrefix + key
	ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", lockKey, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// The request context may already be done when the handler returns
		releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{lockKey}, token).Err(); err != nil && err != redis.Nil {
			l.logger.Warn("Failed to release webhook lock",
				zap.String("key", lockKey),
				zap.Error(err),
			)
		}
	}
	return release, true, nil
}
