package database

import (
	"fmt"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrate creates the tables this service owns. The doctors and tenants
// registries belong to the clinic application and are only read here.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error; err != nil {
		logger.Error("Failed to create extensions", zap.Error(err))
		return err
	}

	err := db.AutoMigrate(
		&model.SubscriptionRecord{},
		&model.DoctorAccess{},
		&model.CustomerMapping{},
		&model.BillingWebhookEvent{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	if err := createConstraints(db); err != nil {
		logger.Error("Failed to create constraints", zap.Error(err))
		return err
	}

	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createConstraints enforces that a subscription belongs to exactly one actor.
func createConstraints(db *gorm.DB) error {
	var exists bool
	if err := db.Raw(`SELECT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'subscription_records_single_actor')`).Scan(&exists).Error; err != nil {
		return err
	}
	if exists {
		return nil
	}
	return db.Exec(`ALTER TABLE subscription_records ADD CONSTRAINT subscription_records_single_actor CHECK ((doctor_id IS NULL) <> (tenant_id IS NULL))`).Error
}

func createCustomIndexes(db *gorm.DB) error {
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_subscription_records_doctor ON subscription_records (doctor_id, created_at DESC) WHERE doctor_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_subscription_records_tenant ON subscription_records (tenant_id, created_at DESC) WHERE tenant_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_billing_webhook_events_unprocessed ON billing_webhook_events (created_at) WHERE status IN ('pending', 'failed')`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("index statement failed: %w", err)
		}
	}
	return nil
}
