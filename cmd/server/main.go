package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SistemaEduas/AtendimentoMedico/internal/config"
	"github.com/SistemaEduas/AtendimentoMedico/internal/infrastructure/cache"
	"github.com/SistemaEduas/AtendimentoMedico/internal/infrastructure/database"
	grpcServer "github.com/SistemaEduas/AtendimentoMedico/internal/infrastructure/grpc"
	httpServer "github.com/SistemaEduas/AtendimentoMedico/internal/infrastructure/http"
	"github.com/SistemaEduas/AtendimentoMedico/internal/infrastructure/provider/stripe"
	"github.com/SistemaEduas/AtendimentoMedico/internal/usecase"
	"github.com/SistemaEduas/AtendimentoMedico/pkg/logger"
	"github.com/SistemaEduas/AtendimentoMedico/pkg/messaging"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewZapLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger = zapLogger.With(
		zap.String("service", cfg.Service.Name),
		zap.String("environment", cfg.Service.Environment),
	)

	if err := cfg.Validate(); err != nil {
		zapLogger.Fatal("Invalid configuration", zap.Error(err))
	}

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, zapLogger); err != nil {
			zapLogger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Run database migrations
	if err := database.Migrate(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	repos := database.NewRepositories(db, zapLogger)
	billing := stripe.NewStripeProvider(cfg.Service.Stripe.SecretKey, cfg.Service.Stripe.WebhookSecret, zapLogger)

	ingestOpts := []usecase.IngestOption{}
	if cfg.Redis.Enabled() {
		client, err := cache.NewRedisClient(cfg.Redis, zapLogger)
		if err != nil {
			// Idempotency in the store still holds without the lock and notices
			zapLogger.Warn("Webhook lock disabled", zap.Error(err))
		} else {
			defer client.Close()
			ingestOpts = append(ingestOpts,
				usecase.WithEventLocker(cache.NewRedisEventLocker(client, cfg.Redis.LockTTL, zapLogger)),
				usecase.WithAccessNotifier(cache.NewRedisAccessNotifier(messaging.FromClient(client))),
			)
		}
	}

	access := usecase.NewAccessService(repos.Subscription, repos.AccessOverride, zapLogger)
	dbProbe := func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}

	services := httpServer.Services{
		Ingestor:     usecase.NewIngestService(billing, repos.Subscription, repos.AccessOverride, repos.Webhook, zapLogger, ingestOpts...),
		Access:       access,
		Cancellation: usecase.NewCancellationService(billing, repos.Subscription, zapLogger),
		Overrides:    usecase.NewOverrideService(repos.Subscription, repos.AccessOverride, access, zapLogger),
		Health:       dbProbe,
		Checkout: usecase.NewCheckoutService(billing, access, repos.Actor, repos.CustomerMapping, usecase.CheckoutConfig{
			PriceID: cfg.Service.Stripe.MonthlyPriceID,
			BaseURL: cfg.Service.BaseURL,
		}, zapLogger),
	}

	// Initialize servers
	grpcSrv := grpcServer.NewServer(cfg, dbProbe, zapLogger)
	httpSrv := httpServer.NewServer(cfg, zapLogger, services)

	// Start servers
	go func() {
		if err := grpcSrv.Start(); err != nil {
			zapLogger.Fatal("Failed to start gRPC server", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.Start(); err != nil {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zapLogger.Info("Shutting down servers...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		zapLogger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	if err := grpcSrv.Shutdown(ctx); err != nil {
		zapLogger.Error("Failed to shutdown gRPC server", zap.Error(err))
	}

	zapLogger.Info("Servers shut down successfully")
}
