package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/entity"
	domainErrors "github.com/SistemaEduas/AtendimentoMedico/internal/domain/errors"
	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/repository"
	"go.uber.org/zap"
)

// SubscriptionPagePath is the doctor's subscription management page.
const SubscriptionPagePath = "/medico/area/assinatura"

// Pages a blocked actor must still reach in order to pay.
var defaultExemptResources = []string{
	SubscriptionPagePath,
	"/assinatura-necessaria",
	"/assinatura-sucesso",
}

const defaultReconcileTimeout = 5 * time.Second

// Classifier produces the strict classification of an actor.
type Classifier interface {
	Classify(ctx context.Context, actor entity.Actor) (*entity.AccessDecision, error)
}

// AccessService is the access decision engine.
type AccessService struct {
	subscriptions    repository.SubscriptionRepository
	overrides        repository.AccessOverrideRepository
	logger           *zap.Logger
	now              Clock
	exempt           map[string]bool
	reconcileTimeout time.Duration
}

type AccessOption func(*AccessService)

func WithAccessClock(clock Clock) AccessOption {
	return func(s *AccessService) { s.now = clock }
}

// WithExemptResources replaces the resources reachable without entitlement.
func WithExemptResources(resources ...string) AccessOption {
	return func(s *AccessService) {
		s.exempt = make(map[string]bool, len(resources))
		for _, r := range resources {
			s.exempt[r] = true
		}
	}
}

func NewAccessService(
	subscriptions repository.SubscriptionRepository,
	overrides repository.AccessOverrideRepository,
	logger *zap.Logger,
	opts ...AccessOption,
) *AccessService {
	s := &AccessService{
		subscriptions:    subscriptions,
		overrides:        overrides,
		logger:           logger,
		now:              time.Now,
		reconcileTimeout: defaultReconcileTimeout,
	}
	WithExemptResources(defaultExemptResources...)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate decides whether the actor may use the requested resource.
// It never fails: when the store cannot be read, access is granted.
func (s *AccessService) Evaluate(ctx context.Context, req entity.AccessRequest) *entity.AccessDecision {
	decision, err := s.Classify(ctx, req.Actor)
	if err != nil {
		s.logger.Warn("Access check failed open",
			zap.String("actor", req.Actor.String()),
			zap.String("resource", req.Resource),
			zap.Error(err))
		accessFailOpenTotal.Inc()
		decision = &entity.AccessDecision{
			Actor:          req.Actor,
			Classification: entity.ClassificationUnavailable,
			Granted:        true,
			Degraded:       true,
		}
	}

	if s.exempt[req.Resource] {
		decision.Exempt = true
		decision.Granted = true
	}

	accessDecisionsTotal.WithLabelValues(string(decision.Classification), strconv.FormatBool(decision.Granted)).Inc()
	return decision
}

// Classify computes the actor's classification and access without the
// fail-open fallback. Mutating flows use it so they fail closed.
func (s *AccessService) Classify(ctx context.Context, actor entity.Actor) (*entity.AccessDecision, error) {
	records, err := s.subscriptions.ListByActor(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domainErrors.ErrStoreUnavailable, err)
	}

	now := s.now()
	classification, governing := classify(records, now)
	s.reconcileLapsed(ctx, records, now)

	decision := &entity.AccessDecision{
		Actor:          actor,
		Classification: classification,
		Subscription:   governing,
	}
	if actor.IsTenant() {
		derived, err := s.overrides.AnyGrantedInTenant(ctx, actor.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domainErrors.ErrStoreUnavailable, err)
		}
		decision.DerivedOverride = derived
	}

	if classification.Entitled() {
		decision.Granted = true
		return decision, nil
	}

	// Only doctors carry a manual override
	if actor.IsDoctor() {
		granted, err := s.overrides.IsGranted(ctx, actor.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domainErrors.ErrStoreUnavailable, err)
		}
		decision.Granted = granted
		decision.OverrideApplied = granted
	}

	return decision, nil
}

// ListSubscriptions returns the actor's subscription history, most recent first.
func (s *AccessService) ListSubscriptions(ctx context.Context, actor entity.Actor) ([]*entity.SubscriptionRecord, error) {
	records, err := s.subscriptions.ListByActor(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domainErrors.ErrStoreUnavailable, err)
	}
	return records, nil
}

// classify maps records (most recent first) to a classification and the record behind it.
func classify(records []*entity.SubscriptionRecord, now time.Time) (entity.Classification, *entity.SubscriptionRecord) {
	if len(records) == 0 {
		return entity.ClassificationNone, nil
	}

	for _, r := range records {
		if r.Status == entity.SubscriptionActive && r.CanceledAt == nil && IsPeriodValid(r, now) {
			return entity.ClassificationActive, r
		}
	}

	for _, r := range records {
		if !IsPeriodValid(r, now) {
			continue
		}
		if (r.Status == entity.SubscriptionActive && r.CanceledAt != nil) ||
			r.Status == entity.SubscriptionActiveUntilPeriodEnd {
			return entity.ClassificationCanceledInGrace, r
		}
	}

	latest := records[0]
	switch latest.Status {
	case entity.SubscriptionActive, entity.SubscriptionActiveUntilPeriodEnd,
		entity.SubscriptionExpired, entity.SubscriptionCanceled:
		return entity.ClassificationExpired, latest
	}

	return entity.ClassificationNone, nil
}

// reconcileLapsed writes terminal statuses for records whose period has run
// out. It is best effort: failures are logged and the read path is unaffected.
func (s *AccessService) reconcileLapsed(ctx context.Context, records []*entity.SubscriptionRecord, now time.Time) {
	var stale []*entity.SubscriptionRecord
	for _, r := range records {
		if reconciledStatus(r, now) != "" {
			stale = append(stale, r)
		}
	}
	if len(stale) == 0 {
		return
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.reconcileTimeout)
	defer cancel()

	for _, r := range stale {
		from, to := r.Status, reconciledStatus(r, now)
		changed, err := s.subscriptions.Reconcile(rctx, r.ID, from, to)
		if err != nil {
			accessReconciliationsTotal.WithLabelValues(string(to), "error").Inc()
			s.logger.Warn("Failed to reconcile lapsed subscription",
				zap.Int64("record_id", r.ID),
				zap.String("subscription_id", r.ExternalSubscriptionID),
				zap.String("to", string(to)),
				zap.Error(err))
			continue
		}
		if changed {
			r.Status = to
			accessReconciliationsTotal.WithLabelValues(string(to), "updated").Inc()
			s.logger.Info("Reconciled lapsed subscription",
				zap.Int64("record_id", r.ID),
				zap.String("subscription_id", r.ExternalSubscriptionID),
				zap.String("from", string(from)),
				zap.String("to", string(to)))
		}
	}
}

func reconciledStatus(r *entity.SubscriptionRecord, now time.Time) entity.SubscriptionStatus {
	if IsPeriodValid(r, now) {
		return ""
	}
	switch r.Status {
	case entity.SubscriptionActive:
		// a canceled record never becomes expired
		if r.CanceledAt != nil {
			return entity.SubscriptionCanceled
		}
		return entity.SubscriptionExpired
	case entity.SubscriptionActiveUntilPeriodEnd:
		return entity.SubscriptionCanceled
	}
	return ""
}
