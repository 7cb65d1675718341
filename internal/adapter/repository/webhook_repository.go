package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/model"
	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type webhookRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewWebhookRepository creates a new webhook delivery log repository
func NewWebhookRepository(db *gorm.DB, logger *zap.Logger) repository.WebhookEventRepository {
	return &webhookRepository{
		db:     db,
		logger: logger,
	}
}

// SaveEvent saves a new webhook event
func (r *webhookRepository) SaveEvent(ctx context.Context, eventID, eventType string, payload []byte, createdAt time.Time) error {
	event := &model.BillingWebhookEvent{
		ProviderEventID: eventID,
		EventType:       eventType,
		Status:          model.WebhookStatusPending,
		Payload:         datatypes.JSON(payload),
	}
	if !createdAt.IsZero() {
		event.ProviderCreatedAt = &createdAt
	}

	// Redeliveries keep the first row
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event).Error

	if err != nil {
		r.logger.Error("Failed to save webhook event",
			zap.String("event_id", eventID),
			zap.String("event_type", eventType),
			zap.Error(err))
		return fmt.Errorf("failed to save webhook event: %w", err)
	}

	return nil
}

// GetEvent retrieves a webhook event by provider event ID
func (r *webhookRepository) GetEvent(ctx context.Context, eventID string) (*repository.WebhookEvent, error) {
	var event model.BillingWebhookEvent

	err := r.db.WithContext(ctx).
		Where("provider_event_id = ?", eventID).
		First(&event).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get webhook event",
			zap.String("event_id", eventID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}

	out := &repository.WebhookEvent{
		EventID:   event.ProviderEventID,
		EventType: event.EventType,
		Status:    repository.WebhookEventStatus(event.Status),
		Attempts:  event.ProcessingAttempts,
	}
	if event.LastError != nil {
		out.LastError = *event.LastError
	}
	return out, nil
}

// MarkProcessing records the start of a processing attempt
func (r *webhookRepository) MarkProcessing(ctx context.Context, eventID string) error {
	return r.update(ctx, eventID, "processing", map[string]interface{}{
		"status":              model.WebhookStatusProcessing,
		"processing_attempts": gorm.Expr("processing_attempts + 1"),
	})
}

// MarkProcessed marks a webhook event as processed
func (r *webhookRepository) MarkProcessed(ctx context.Context, eventID string) error {
	now := time.Now()
	return r.update(ctx, eventID, "processed", map[string]interface{}{
		"status":       model.WebhookStatusCompleted,
		"processed_at": &now,
		"last_error":   nil,
	})
}

// MarkFailed marks a webhook event as failed
func (r *webhookRepository) MarkFailed(ctx context.Context, eventID string, cause error) error {
	errorMsg := cause.Error()
	return r.update(ctx, eventID, "failed", map[string]interface{}{
		"status":     model.WebhookStatusFailed,
		"last_error": &errorMsg,
	})
}

func (r *webhookRepository) update(ctx context.Context, eventID, state string, values map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.BillingWebhookEvent{}).
		Where("provider_event_id = ?", eventID).
		Updates(values)

	if result.Error != nil {
		r.logger.Error("Failed to update webhook event",
			zap.String("event_id", eventID),
			zap.String("state", state),
			zap.Error(result.Error))
		return fmt.Errorf("failed to mark webhook as %s: %w", state, result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("webhook event not found: %s", eventID)
	}

	return nil
}
