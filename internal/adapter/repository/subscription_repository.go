package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/entity"
	domainErrors "github.com/SistemaEduas/AtendimentoMedico/internal/domain/errors"
	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/model"
	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type subscriptionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSubscriptionRepository creates a new subscription record repository
func NewSubscriptionRepository(db *gorm.DB, logger *zap.Logger) repository.SubscriptionRepository {
	return &subscriptionRepository{
		db:     db,
		logger: logger,
	}
}

// ListByActor retrieves every record of the actor, most recent first
func (r *subscriptionRepository) ListByActor(ctx context.Context, actor entity.Actor) ([]*entity.SubscriptionRecord, error) {
	column, id, err := actorColumn(actor)
	if err != nil {
		return nil, err
	}

	var records []*model.SubscriptionRecord
	err = r.db.WithContext(ctx).
		Where(column+" = ?", id).
		Order("created_at DESC, id DESC").
		Find(&records).Error
	if err != nil {
		r.logger.Error("Failed to list subscription records",
			zap.String("actor", actor.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list subscription records: %w", err)
	}

	return r.modelsToEntities(records), nil
}

// GetByExternalID retrieves a record by billing provider subscription ID
func (r *subscriptionRepository) GetByExternalID(ctx context.Context, externalSubscriptionID string) (*entity.SubscriptionRecord, error) {
	var record model.SubscriptionRecord

	err := r.db.WithContext(ctx).
		Where("external_subscription_id = ?", externalSubscriptionID).
		First(&record).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get subscription record",
			zap.String("subscription_id", externalSubscriptionID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get subscription record: %w", err)
	}

	return r.modelToEntity(&record), nil
}

// Create inserts a new record and fills in its generated ID
func (r *subscriptionRepository) Create(ctx context.Context, record *entity.SubscriptionRecord) error {
	m, err := r.entityToModel(record)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		r.logger.Error("Failed to create subscription record",
			zap.String("subscription_id", record.ExternalSubscriptionID),
			zap.Error(err))
		return fmt.Errorf("failed to create subscription record: %w", err)
	}

	record.ID = m.ID
	record.CreatedAt = m.CreatedAt
	record.UpdatedAt = m.UpdatedAt
	return nil
}

// Refresh overwrites the provider-derived fields. canceled_at is only filled, never cleared.
func (r *subscriptionRepository) Refresh(ctx context.Context, externalSubscriptionID string, refresh entity.SubscriptionRefresh) error {
	result := r.db.WithContext(ctx).
		Model(&model.SubscriptionRecord{}).
		Where("external_subscription_id = ?", externalSubscriptionID).
		Updates(map[string]interface{}{
			"status":               model.SubscriptionStatus(refresh.Status),
			"current_period_start": refresh.CurrentPeriodStart,
			"current_period_end":   refresh.CurrentPeriodEnd,
			"canceled_at":          gorm.Expr("COALESCE(canceled_at, ?)", refresh.CanceledAt),
			"payment_method_brand": refresh.PaymentMethodBrand,
			"payment_last4":        refresh.PaymentLast4,
			"amount":               refresh.Amount,
			"currency":             refresh.Currency,
			"updated_at":           time.Now(),
		})

	if result.Error != nil {
		r.logger.Error("Failed to refresh subscription record",
			zap.String("subscription_id", externalSubscriptionID),
			zap.Error(result.Error))
		return fmt.Errorf("failed to refresh subscription record: %w", result.Error)
	}

	return nil
}

// MarkCanceled stamps canceled_at on a running subscription unless a cancellation is already recorded
func (r *subscriptionRepository) MarkCanceled(ctx context.Context, externalSubscriptionID string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.SubscriptionRecord{}).
		Where("external_subscription_id = ? AND canceled_at IS NULL AND status IN ?", externalSubscriptionID, []string{
			string(model.SubscriptionStatusActive),
			string(model.SubscriptionStatusActiveUntilPeriodEnd),
		}).
		Updates(map[string]interface{}{
			"canceled_at": at,
			"updated_at":  time.Now(),
		})

	if result.Error != nil {
		r.logger.Error("Failed to mark subscription canceled",
			zap.String("subscription_id", externalSubscriptionID),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to mark subscription canceled: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

// MarkEnded sets a terminal status after the provider ended the subscription
func (r *subscriptionRepository) MarkEnded(ctx context.Context, externalSubscriptionID string, status entity.SubscriptionStatus, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.SubscriptionRecord{}).
		Where("external_subscription_id = ?", externalSubscriptionID).
		Updates(map[string]interface{}{
			"status":      model.SubscriptionStatus(status),
			"canceled_at": gorm.Expr("COALESCE(canceled_at, ?)", at),
			"updated_at":  time.Now(),
		})

	if result.Error != nil {
		r.logger.Error("Failed to mark subscription ended",
			zap.String("subscription_id", externalSubscriptionID),
			zap.String("status", string(status)),
			zap.Error(result.Error))
		return fmt.Errorf("failed to mark subscription ended: %w", result.Error)
	}

	return nil
}

// Reconcile moves the record to a new status only if it is still in the expected one.
// A record canceled after it was read lands on canceled instead of expired.
func (r *subscriptionRepository) Reconcile(ctx context.Context, recordID int64, from, to entity.SubscriptionStatus) (bool, error) {
	var status interface{} = string(to)
	if to == entity.SubscriptionExpired {
		status = gorm.Expr("CASE WHEN canceled_at IS NULL THEN ? ELSE ? END",
			string(model.SubscriptionStatusExpired), string(model.SubscriptionStatusCanceled))
	}

	result := r.db.WithContext(ctx).
		Model(&model.SubscriptionRecord{}).
		Where("id = ? AND status = ?", recordID, string(from)).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return false, fmt.Errorf("failed to reconcile subscription record %d: %w", recordID, result.Error)
	}

	return result.RowsAffected > 0, nil
}

func actorColumn(actor entity.Actor) (string, uuid.UUID, error) {
	id, err := uuid.Parse(actor.ID)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("%w: %w", domainErrors.ErrInvalidActor, err)
	}
	switch actor.Kind {
	case entity.ActorDoctor:
		return "doctor_id", id, nil
	case entity.ActorTenant:
		return "tenant_id", id, nil
	}
	return "", uuid.Nil, fmt.Errorf("%w: kind %q", domainErrors.ErrInvalidActor, actor.Kind)
}

func (r *subscriptionRepository) modelsToEntities(records []*model.SubscriptionRecord) []*entity.SubscriptionRecord {
	out := make([]*entity.SubscriptionRecord, 0, len(records))
	for _, m := range records {
		out = append(out, r.modelToEntity(m))
	}
	return out
}

// modelToEntity converts a model.SubscriptionRecord to entity.SubscriptionRecord
func (r *subscriptionRepository) modelToEntity(m *model.SubscriptionRecord) *entity.SubscriptionRecord {
	if m == nil {
		return nil
	}

	var actor entity.Actor
	switch {
	case m.DoctorID != nil:
		actor = entity.Doctor(m.DoctorID.String())
	case m.TenantID != nil:
		actor = entity.Tenant(m.TenantID.String())
	}

	return &entity.SubscriptionRecord{
		ID:                     m.ID,
		Actor:                  actor,
		ExternalSubscriptionID: m.ExternalSubscriptionID,
		ExternalCustomerID:     m.ExternalCustomerID,
		Status:                 entity.SubscriptionStatus(m.Status),
		CurrentPeriodStart:     m.CurrentPeriodStart,
		CurrentPeriodEnd:       m.CurrentPeriodEnd,
		CanceledAt:             m.CanceledAt,
		PaymentMethodBrand:     m.PaymentMethodBrand,
		PaymentLast4:           m.PaymentLast4,
		Amount:                 m.Amount,
		Currency:               m.Currency,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}
}

// entityToModel converts an entity.SubscriptionRecord to model.SubscriptionRecord
func (r *subscriptionRepository) entityToModel(e *entity.SubscriptionRecord) (*model.SubscriptionRecord, error) {
	column, id, err := actorColumn(e.Actor)
	if err != nil {
		return nil, err
	}

	m := &model.SubscriptionRecord{
		ID:                     e.ID,
		ExternalSubscriptionID: e.ExternalSubscriptionID,
		ExternalCustomerID:     e.ExternalCustomerID,
		Status:                 model.SubscriptionStatus(e.Status),
		CurrentPeriodStart:     e.CurrentPeriodStart,
		CurrentPeriodEnd:       e.CurrentPeriodEnd,
		CanceledAt:             e.CanceledAt,
		PaymentMethodBrand:     e.PaymentMethodBrand,
		PaymentLast4:           e.PaymentLast4,
		Amount:                 e.Amount,
		Currency:               e.Currency,
	}
	if column == "doctor_id" {
		m.DoctorID = &id
	} else {
		m.TenantID = &id
	}
	return m, nil
}
