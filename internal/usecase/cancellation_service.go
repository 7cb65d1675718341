package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/entity"
	domainErrors "github.com/SistemaEduas/AtendimentoMedico/internal/domain/errors"
	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/provider"
	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/repository"
	"go.uber.org/zap"
)

// CancellationService handles self-service subscription cancellation
type CancellationService struct {
	provider      provider.BillingProvider
	subscriptions repository.SubscriptionRepository
	logger        *zap.Logger
	now           Clock
}

// NewCancellationService creates a new cancellation service instance
func NewCancellationService(
	billing provider.BillingProvider,
	subscriptions repository.SubscriptionRepository,
	logger *zap.Logger,
) *CancellationService {
	return &CancellationService{
		provider:      billing,
		subscriptions: subscriptions,
		logger:        logger,
		now:           time.Now,
	}
}

// Cancel stamps canceled_at on the actor's subscription. The status stays
// active so access continues until the paid period ends. ErrAlreadyCanceled
// is returned together with the record when cancellation was already requested
// or the provider already ended it. An expired record is ErrSubscriptionEnded.
func (s *CancellationService) Cancel(ctx context.Context, actor entity.Actor, subscriptionID string) (*entity.SubscriptionRecord, error) {
	record, err := s.subscriptions.GetByExternalID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domainErrors.ErrStoreUnavailable, err)
	}
	// Someone else's subscription is reported as missing
	if record == nil || record.Actor != actor {
		return nil, domainErrors.ErrSubscriptionNotFound
	}
	switch {
	case record.CanceledAt != nil, record.Status == entity.SubscriptionCanceled:
		return record, domainErrors.ErrAlreadyCanceled
	case record.Status == entity.SubscriptionExpired:
		return nil, domainErrors.ErrSubscriptionEnded
	}

	if err := s.provider.CancelSubscription(ctx, subscriptionID); err != nil {
		if !errors.Is(err, provider.ErrResourceMissing) {
			s.logger.Error("Provider refused cancellation",
				zap.String("subscription_id", subscriptionID),
				zap.String("actor", actor.String()),
				zap.Error(err))
			return nil, fmt.Errorf("%w: %w", domainErrors.ErrCancellationFailed, err)
		}
		s.logger.Info("Subscription already absent at the provider",
			zap.String("subscription_id", subscriptionID))
	}

	now := s.now()
	stamped, err := s.subscriptions.MarkCanceled(ctx, subscriptionID, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domainErrors.ErrStoreUnavailable, err)
	}
	if !stamped {
		// a concurrent request or webhook got there first
		return record, domainErrors.ErrAlreadyCanceled
	}

	record.CanceledAt = &now
	s.logger.Info("Subscription canceled",
		zap.String("subscription_id", subscriptionID),
		zap.String("actor", actor.String()))
	return record, nil
}
