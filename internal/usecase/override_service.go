package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/entity"
	domainErrors "github.com/SistemaEduas/AtendimentoMedico/internal/domain/errors"
	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/repository"
	"go.uber.org/zap"
)

// OverrideService administers the manual access flag of doctors.
type OverrideService struct {
	subscriptions repository.SubscriptionRepository
	overrides     repository.AccessOverrideRepository
	classifier    Classifier
	logger        *zap.Logger
	now           Clock
}

func NewOverrideService(
	subscriptions repository.SubscriptionRepository,
	overrides repository.AccessOverrideRepository,
	classifier Classifier,
	logger *zap.Logger,
) *OverrideService {
	return &OverrideService{
		subscriptions: subscriptions,
		overrides:     overrides,
		classifier:    classifier,
		logger:        logger,
		now:           time.Now,
	}
}

// SetOverride grants or revokes manual access. A doctor covered by a paid,
// non-canceled subscription cannot be granted it, and a revoke there is only
// accepted while the flag is still set.
func (s *OverrideService) SetOverride(ctx context.Context, doctorID string, granted bool) error {
	records, err := s.subscriptions.ListByActor(ctx, entity.Doctor(doctorID))
	if err != nil {
		return fmt.Errorf("%w: %w", domainErrors.ErrStoreUnavailable, err)
	}

	if coveredBySubscription(records, s.now()) {
		if granted {
			return domainErrors.ErrOverrideRedundant
		}
		current, err := s.overrides.IsGranted(ctx, doctorID)
		if err != nil {
			return fmt.Errorf("%w: %w", domainErrors.ErrStoreUnavailable, err)
		}
		if !current {
			return domainErrors.ErrOverrideLocked
		}
	}

	if err := s.overrides.SetGranted(ctx, doctorID, granted); err != nil {
		if errors.Is(err, domainErrors.ErrDoctorNotLinked) {
			return err
		}
		return fmt.Errorf("%w: %w", domainErrors.ErrStoreUnavailable, err)
	}

	s.logger.Info("Manual access updated",
		zap.String("doctor_id", doctorID),
		zap.Bool("acesso_liberado", granted))
	return nil
}

// TenantOverview is the tenant's decision including the override derived from its doctors.
func (s *OverrideService) TenantOverview(ctx context.Context, tenantID string) (*entity.AccessDecision, error) {
	return s.classifier.Classify(ctx, entity.Tenant(tenantID))
}

func coveredBySubscription(records []*entity.SubscriptionRecord, now time.Time) bool {
	for _, r := range records {
		if r.Status == entity.SubscriptionActive && r.CanceledAt == nil && IsPeriodValid(r, now) {
			return true
		}
	}
	return false
}
