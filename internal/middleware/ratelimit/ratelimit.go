package ratelimit

import (
	"time"

	apperrors "github.com/SistemaEduas/AtendimentoMedico/pkg/errors"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultRate   = 5
	defaultBurst  = 30
	visitorExpiry = 3 * time.Minute
)

var limitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "assinaturas",
	Name:      "rate_limited_total",
	Help:      "Requests rejected by the per-client rate limiter",
}, []string{"path"})

// Config sets the per-client token bucket. Zero values fall back to 5 req/s with a burst of 30.
type Config struct {
	Rate   float64
	Burst  int
	Logger *zap.Logger
}

// New returns a per-IP limiter middleware. Rejections are AppErrors rendered by
// the server's error handler.
func New(cfg Config) echo.MiddlewareFunc {
	r := cfg.Rate
	if r <= 0 {
		r = defaultRate
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}

	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(r),
		Burst:     burst,
		ExpiresIn: visitorExpiry,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return apperrors.NewAppError(apperrors.ErrUnauthorized, "unable to identify client", nil)
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			limitedTotal.WithLabelValues(c.Path()).Inc()
			if cfg.Logger != nil {
				cfg.Logger.Warn("Rate limit exceeded",
					zap.String("ip", identifier),
					zap.String("path", c.Request().URL.Path))
			}
			return apperrors.NewAppError(apperrors.ErrTooManyRequests, "too many requests", nil)
		},
	})
}
