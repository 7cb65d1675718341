package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	handlers "github.com/SistemaEduas/AtendimentoMedico/internal/adapter/handler/http"
	"github.com/SistemaEduas/AtendimentoMedico/internal/config"
	"github.com/SistemaEduas/AtendimentoMedico/internal/middleware/auth"
	"github.com/SistemaEduas/AtendimentoMedico/internal/middleware/ratelimit"
	apperrors "github.com/SistemaEduas/AtendimentoMedico/pkg/errors"
	"github.com/SistemaEduas/AtendimentoMedico/pkg/logger"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Services are the usecases behind the HTTP routes.
type Services struct {
	Ingestor     handlers.EventIngestor
	Access       handlers.AccessEvaluator
	Checkout     handlers.CheckoutStarter
	Cancellation handlers.SubscriptionCanceler
	Overrides    handlers.OverrideAdministrator
	// Health reports whether the database answers; nil means always healthy.
	Health func(ctx context.Context) error
}

type Server struct {
	config   *config.Config
	logger   *zap.Logger
	echo     *echo.Echo
	services Services
	registry *prometheus.Registry
}

func NewServer(cfg *config.Config, log *zap.Logger, services Services) *Server {
	e := echo.New()
	logger.WithEchoLogger(e, log)
	e.Validator = handlers.NewRequestValidator()

	registry := prometheus.NewRegistry()

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(logger.NewEchoRequestLogger(log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "assinaturas",
		Subsystem:  "http",
		Registerer: registry,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/health"
		},
	}))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.Service.BaseURL},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	s := &Server{
		config:   cfg,
		logger:   log,
		echo:     e,
		services: services,
		registry: registry,
	}
	s.setupRoutes()
	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		if s.services.Health != nil {
			if err := s.services.Health(c.Request().Context()); err != nil {
				return apperrors.NewAppError(apperrors.ErrUnavailable, "database unavailable", err)
			}
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})

	// HTTP metrics from this server plus the usecase counters on the default registry
	s.echo.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: prometheus.Gatherers{s.registry, prometheus.DefaultGatherer},
	}))

	webhookHandler := handlers.NewWebhookHandler(s.logger, s.services.Ingestor)
	checkoutHandler := handlers.NewCheckoutHandler(s.logger, s.services.Checkout)
	subscriptionHandler := handlers.NewSubscriptionHandler(s.logger, s.services.Access, s.services.Cancellation)
	accessHandler := handlers.NewAccessHandler(s.logger, s.services.Access)
	adminHandler := handlers.NewAdminHandler(s.logger, s.services.Overrides)

	limits := ratelimit.Config{
		Rate:   s.config.Server.HTTP.RateLimit,
		Burst:  s.config.Server.HTTP.RateBurst,
		Logger: s.logger,
	}

	jwtConfig := auth.JWTConfig{
		Secret: s.config.Service.Session.Secret,
		Logger: s.logger,
	}

	// Webhook route (outside API versioning), authenticated by its signature
	s.echo.POST("/webhook", webhookHandler.HandleWebhook, ratelimit.New(limits))

	protected := s.echo.Group("/api/v1", auth.JWTMiddleware(jwtConfig))

	protected.POST("/checkout", checkoutHandler.CreateCheckoutSession, ratelimit.New(limits))
	protected.GET("/checkout/verify", checkoutHandler.VerifyCheckout)

	protected.GET("/subscriptions", subscriptionHandler.ListSubscriptions)
	protected.POST("/subscriptions/cancel", subscriptionHandler.CancelSubscription)

	protected.GET("/access", accessHandler.CheckAccess)

	admin := protected.Group("/admin", auth.RequireAdmin())
	admin.PUT("/doctors/:id/access", adminHandler.SetDoctorAccess)
	admin.GET("/tenants/:id/access", adminHandler.GetTenantAccess)
}
