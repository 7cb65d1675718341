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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// IngestService applies billing provider webhook events to the subscription store.
type IngestService struct {
	provider      provider.BillingProvider
	subscriptions repository.SubscriptionRepository
	overrides     repository.AccessOverrideRepository
	events        repository.WebhookEventRepository
	locker        repository.EventLocker
	notifier      repository.AccessNotifier
	logger        *zap.Logger
	now           Clock
}

type IngestOption func(*IngestService)

func WithIngestClock(clock Clock) IngestOption {
	return func(s *IngestService) { s.now = clock }
}

// WithEventLocker guards concurrent deliveries of the same event.
func WithEventLocker(locker repository.EventLocker) IngestOption {
	return func(s *IngestService) {
		if locker != nil {
			s.locker = locker
		}
	}
}

// WithAccessNotifier publishes a notice for every subscription an event changed.
func WithAccessNotifier(notifier repository.AccessNotifier) IngestOption {
	return func(s *IngestService) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

func NewIngestService(
	billing provider.BillingProvider,
	subscriptions repository.SubscriptionRepository,
	overrides repository.AccessOverrideRepository,
	events repository.WebhookEventRepository,
	logger *zap.Logger,
	opts ...IngestOption,
) *IngestService {
	s := &IngestService{
		provider:      billing,
		subscriptions: subscriptions,
		overrides:     overrides,
		events:        events,
		locker:        noopLocker{},
		notifier:      noopNotifier{},
		logger:        logger,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleEvent verifies, records and applies one webhook delivery.
// Any returned error leaves the provider to redeliver the event.
func (s *IngestService) HandleEvent(ctx context.Context, payload []byte, signature string) error {
	event, err := s.provider.ParseEvent(payload, signature)
	if err != nil {
		if errors.Is(err, provider.ErrMalformedEvent) {
			billingEventsTotal.WithLabelValues("unknown", "malformed").Inc()
			s.logger.Warn("Verified webhook payload could not be decoded", zap.Error(err))
			return fmt.Errorf("%w: %w", domainErrors.ErrMalformedEvent, err)
		}
		billingEventsTotal.WithLabelValues("unknown", "invalid_signature").Inc()
		return fmt.Errorf("%w: %w", domainErrors.ErrInvalidSignature, err)
	}
	meta := event.Meta()
	log := s.logger.With(zap.String("event_id", meta.ID), zap.String("event_type", meta.Type))

	release, acquired, err := s.locker.Acquire(ctx, meta.ID)
	switch {
	case err != nil:
		log.Warn("Event lock unavailable, processing without it", zap.Error(err))
	case !acquired:
		billingEventsTotal.WithLabelValues(meta.Type, "in_flight").Inc()
		return domainErrors.ErrEventInFlight
	default:
		defer release()
	}

	if err := s.events.SaveEvent(ctx, meta.ID, meta.Type, payload, meta.Created); err != nil {
		return fmt.Errorf("%w: %w", domainErrors.ErrStoreUnavailable, err)
	}
	logged, err := s.events.GetEvent(ctx, meta.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", domainErrors.ErrStoreUnavailable, err)
	}
	if logged != nil && logged.Status == repository.WebhookEventCompleted {
		log.Info("Duplicate delivery of processed event")
		billingEventsTotal.WithLabelValues(meta.Type, "duplicate").Inc()
		return nil
	}
	if err := s.events.MarkProcessing(ctx, meta.ID); err != nil {
		return fmt.Errorf("%w: %w", domainErrors.ErrStoreUnavailable, err)
	}

	if err := s.dispatch(ctx, log, event); err != nil {
		billingEventsTotal.WithLabelValues(meta.Type, "failed").Inc()
		if markErr := s.events.MarkFailed(ctx, meta.ID, err); markErr != nil {
			log.Error("Failed to record event failure", zap.Error(markErr))
		}
		return err
	}

	if err := s.events.MarkProcessed(ctx, meta.ID); err != nil {
		return fmt.Errorf("%w: %w", domainErrors.ErrStoreUnavailable, err)
	}
	billingEventsTotal.WithLabelValues(meta.Type, "processed").Inc()
	log.Info("Billing event processed")
	return nil
}

func (s *IngestService) dispatch(ctx context.Context, log *zap.Logger, event provider.Event) error {
	switch ev := event.(type) {
	case provider.CheckoutCompleted:
		return s.applyCheckoutCompleted(ctx, log, ev)
	case provider.InvoicePaymentSucceeded:
		return s.refresh(ctx, log, ev.ID, ev.SubscriptionID)
	case provider.SubscriptionUpdated:
		return s.refresh(ctx, log, ev.ID, ev.SubscriptionID)
	case provider.SubscriptionDeleted:
		return s.applyDeleted(ctx, log, ev.ID, ev.SubscriptionID)
	case provider.Ignored:
		log.Debug("Ignoring unhandled event type")
		return nil
	default:
		return fmt.Errorf("unsupported event %T", event)
	}
}

func (s *IngestService) applyCheckoutCompleted(ctx context.Context, log *zap.Logger, ev provider.CheckoutCompleted) error {
	if ev.Actor == nil {
		log.Warn("Checkout session without actor metadata", zap.String("session_id", ev.SessionID))
		return domainErrors.ErrMissingActorReference
	}
	if ev.SubscriptionID == "" {
		log.Warn("Checkout session without subscription", zap.String("session_id", ev.SessionID))
		return nil
	}
	actor := *ev.Actor

	sub, err := s.provider.GetSubscription(ctx, ev.SubscriptionID)
	if err != nil {
		if errors.Is(err, provider.ErrResourceMissing) {
			log.Warn("Subscription of completed checkout is missing at the provider",
				zap.String("subscription_id", ev.SubscriptionID))
			return nil
		}
		return fmt.Errorf("failed to fetch subscription %s: %w", ev.SubscriptionID, err)
	}

	existing, err := s.subscriptions.GetByExternalID(ctx, sub.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", domainErrors.ErrStoreUnavailable, err)
	}

	if existing != nil {
		if existing.Actor != actor {
			log.Warn("Checkout actor differs from stored subscription owner",
				zap.String("subscription_id", sub.ID),
				zap.String("stored_actor", existing.Actor.String()),
				zap.String("event_actor", actor.String()))
		}
		refresh := s.refreshFrom(existing, sub)
		if err := s.subscriptions.Refresh(ctx, sub.ID, refresh); err != nil {
			return fmt.Errorf("%w: %w", domainErrors.ErrStoreUnavailable, err)
		}
		s.notify(ctx, log, ev.ID, existing.Actor, sub.ID, refresh.Status)
	} else {
		customerID := sub.CustomerID
		if customerID == "" {
			customerID = ev.CustomerID
		}
		record := &entity.SubscriptionRecord{
			Actor:                  actor,
			ExternalSubscriptionID: sub.ID,
			ExternalCustomerID:     customerID,
			Status:                 entity.SubscriptionActive,
			CurrentPeriodStart:     sub.CurrentPeriodStart,
			CurrentPeriodEnd:       sub.CurrentPeriodEnd,
			PaymentMethodBrand:     sub.PaymentMethodBrand,
			PaymentLast4:           sub.PaymentLast4,
			Amount:                 minorToDecimal(sub.AmountMinor),
			Currency:               sub.Currency,
		}
		if err := s.subscriptions.Create(ctx, record); err != nil {
			return fmt.Errorf("%w: %w", domainErrors.ErrStoreUnavailable, err)
		}
		log.Info("Subscription recorded",
			zap.String("subscription_id", sub.ID),
			zap.String("actor", actor.String()))
		s.notify(ctx, log, ev.ID, actor, sub.ID, record.Status)
	}

	return s.supersedeOverride(ctx, actor)
}

// supersedeOverride clears acesso_liberado; a paid subscription replaces it.
func (s *IngestService) supersedeOverride(ctx context.Context, actor entity.Actor) error {
	if !actor.IsDoctor() {
		return nil
	}
	err := s.overrides.SetGranted(ctx, actor.ID, false)
	if err != nil && !errors.Is(err, domainErrors.ErrDoctorNotLinked) {
		return fmt.Errorf("%w: %w", domainErrors.ErrStoreUnavailable, err)
	}
	return nil
}

// refresh re-reads the subscription from the provider and stores its current state.
func (s *IngestService) refresh(ctx context.Context, log *zap.Logger, eventID, subscriptionID string) error {
	record, err := s.subscriptions.GetByExternalID(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("%w: %w", domainErrors.ErrStoreUnavailable, err)
	}
	if record == nil {
		log.Info("No local subscription for event", zap.String("subscription_id", subscriptionID))
		return nil
	}

	sub, err := s.provider.GetSubscription(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, provider.ErrResourceMissing) {
			log.Warn("Subscription missing at the provider", zap.String("subscription_id", subscriptionID))
			return nil
		}
		return fmt.Errorf("failed to fetch subscription %s: %w", subscriptionID, err)
	}

	refresh := s.refreshFrom(record, sub)
	if err := s.subscriptions.Refresh(ctx, subscriptionID, refresh); err != nil {
		return fmt.Errorf("%w: %w", domainErrors.ErrStoreUnavailable, err)
	}
	log.Info("Subscription refreshed",
		zap.String("subscription_id", subscriptionID),
		zap.String("provider_state", string(sub.State)),
		zap.String("status", string(refresh.Status)))
	s.notify(ctx, log, eventID, record.Actor, subscriptionID, refresh.Status)

	covered := refresh.Status == entity.SubscriptionActive &&
		record.CanceledAt == nil && refresh.CanceledAt == nil &&
		periodCovers(refresh.CurrentPeriodEnd, s.now())
	if covered {
		return s.supersedeOverride(ctx, record.Actor)
	}
	return nil
}

func (s *IngestService) applyDeleted(ctx context.Context, log *zap.Logger, eventID, subscriptionID string) error {
	record, err := s.subscriptions.GetByExternalID(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("%w: %w", domainErrors.ErrStoreUnavailable, err)
	}
	if record == nil {
		log.Info("No local subscription for deletion", zap.String("subscription_id", subscriptionID))
		return nil
	}

	now := s.now()
	status := entity.SubscriptionCanceled
	if IsPeriodValid(record, now) {
		status = entity.SubscriptionActiveUntilPeriodEnd
	}
	if err := s.subscriptions.MarkEnded(ctx, subscriptionID, status, now); err != nil {
		return fmt.Errorf("%w: %w", domainErrors.ErrStoreUnavailable, err)
	}
	log.Info("Subscription ended",
		zap.String("subscription_id", subscriptionID),
		zap.String("status", string(status)))
	s.notify(ctx, log, eventID, record.Actor, subscriptionID, status)
	return nil
}

// refreshFrom derives the stored fields from the provider's view.
func (s *IngestService) refreshFrom(record *entity.SubscriptionRecord, sub *provider.Subscription) entity.SubscriptionRefresh {
	status := record.Status
	switch sub.State {
	case provider.StateActive, provider.StateTrialing, provider.StatePastDue:
		status = entity.SubscriptionActive
	case provider.StateCanceled:
		status = entity.SubscriptionCanceled
		if periodCovers(sub.CurrentPeriodEnd, s.now()) {
			status = entity.SubscriptionActiveUntilPeriodEnd
		}
	case provider.StateUnpaid, provider.StateIncompleteExpired:
		status = entity.SubscriptionExpired
	}

	canceled := record.CanceledAt != nil || sub.CanceledAt != nil
	if canceled && status == entity.SubscriptionExpired {
		status = entity.SubscriptionCanceled
	}

	return entity.SubscriptionRefresh{
		Status:             status,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CanceledAt:         sub.CanceledAt,
		PaymentMethodBrand: sub.PaymentMethodBrand,
		PaymentLast4:       sub.PaymentLast4,
		Amount:             minorToDecimal(sub.AmountMinor),
		Currency:           sub.Currency,
	}
}

// notify is best effort; the store already holds the change.
func (s *IngestService) notify(ctx context.Context, log *zap.Logger, eventID string, actor entity.Actor, subscriptionID string, status entity.SubscriptionStatus) {
	change := entity.AccessChange{
		Actor:          actor,
		SubscriptionID: subscriptionID,
		Status:         status,
		EventID:        eventID,
		At:             s.now(),
	}
	if err := s.notifier.AccessChanged(ctx, change); err != nil {
		log.Warn("Failed to publish access change",
			zap.String("actor", actor.String()),
			zap.String("subscription_id", subscriptionID),
			zap.Error(err))
	}
}

func minorToDecimal(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

type noopLocker struct{}

func (noopLocker) Acquire(context.Context, string) (func(), bool, error) {
	return func() {}, true, nil
}

type noopNotifier struct{}

func (noopNotifier) AccessChanged(context.Context, entity.AccessChange) error {
	return nil
}
