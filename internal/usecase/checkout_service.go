package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/entity"
	domainErrors "github.com/SistemaEduas/AtendimentoMedico/internal/domain/errors"
	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/provider"
	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/repository"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// CheckoutSessionPlaceholder is replaced by the provider with the session id on redirect.
const CheckoutSessionPlaceholder = "{CHECKOUT_SESSION_ID}"

// CheckoutConfig holds the fixed monthly price and the base URL for redirects.
type CheckoutConfig struct {
	PriceID string
	BaseURL string
}

// CheckoutService opens provider checkout sessions for actors without a valid subscription
type CheckoutService struct {
	provider   provider.BillingProvider
	classifier Classifier
	actors     repository.ActorRepository
	mappings   repository.CustomerMappingRepository
	config     CheckoutConfig
	validate   *validator.Validate
	logger     *zap.Logger
}

// NewCheckoutService creates a new checkout service instance
func NewCheckoutService(
	billing provider.BillingProvider,
	classifier Classifier,
	actors repository.ActorRepository,
	mappings repository.CustomerMappingRepository,
	config CheckoutConfig,
	logger *zap.Logger,
) *CheckoutService {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &CheckoutService{
		provider:   billing,
		classifier: classifier,
		actors:     actors,
		mappings:   mappings,
		config:     config,
		validate:   validator.New(),
		logger:     logger,
	}
}

// StartCheckout opens a checkout session for the actor's monthly subscription
func (s *CheckoutService) StartCheckout(ctx context.Context, actor entity.Actor) (*provider.CheckoutSession, error) {
	if s.config.PriceID == "" || s.config.BaseURL == "" {
		return nil, domainErrors.ErrCheckoutNotConfigured
	}

	decision, err := s.classifier.Classify(ctx, actor)
	if err != nil {
		return nil, err
	}
	if decision.Classification.Entitled() {
		return nil, domainErrors.ErrAlreadyEntitled
	}

	profile, err := s.actors.GetProfile(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domainErrors.ErrStoreUnavailable, err)
	}
	if profile == nil {
		return nil, domainErrors.ErrActorNotFound
	}

	customerID, err := s.ensureCustomer(ctx, profile)
	if err != nil {
		return nil, err
	}

	successURL, cancelURL := s.redirectURLs(actor)
	session, err := s.provider.CreateCheckoutSession(ctx, provider.CheckoutRequest{
		Actor:      actor,
		CustomerID: customerID,
		PriceID:    s.config.PriceID,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	})
	if err != nil {
		s.logger.Error("Failed to create checkout session",
			zap.String("actor", actor.String()),
			zap.String("customer_id", customerID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domainErrors.ErrCheckoutFailed, err)
	}

	s.logger.Info("Checkout session created",
		zap.String("actor", actor.String()),
		zap.String("session_id", session.ID))
	return session, nil
}

// VerifyCheckout reports whether the checkout left the actor entitled. A tenant
// also counts as verified when any of its doctors is.
func (s *CheckoutService) VerifyCheckout(ctx context.Context, actor entity.Actor) (bool, error) {
	decision, err := s.classifier.Classify(ctx, actor)
	if err != nil {
		return false, err
	}
	if decision.Classification.Entitled() || !actor.IsTenant() {
		return decision.Classification.Entitled(), nil
	}

	doctorIDs, err := s.actors.ListDoctorIDs(ctx, actor.ID)
	if err != nil {
		return false, fmt.Errorf("%w: %w", domainErrors.ErrStoreUnavailable, err)
	}
	for _, id := range doctorIDs {
		decision, err := s.classifier.Classify(ctx, entity.Doctor(id))
		if err != nil {
			return false, err
		}
		if decision.Classification.Entitled() {
			return true, nil
		}
	}
	return false, nil
}

// ensureCustomer returns the provider customer of the actor, creating it on first checkout.
func (s *CheckoutService) ensureCustomer(ctx context.Context, profile *entity.ActorProfile) (string, error) {
	email := s.usableEmail(profile)

	mapping, err := s.mappings.GetByActor(ctx, profile.Actor)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domainErrors.ErrStoreUnavailable, err)
	}

	if mapping != nil {
		if email != "" && !strings.EqualFold(mapping.Email, email) {
			s.syncEmail(ctx, mapping, email)
		}
		return mapping.ProviderCustomerID, nil
	}

	customerID, err := s.provider.CreateCustomer(ctx, provider.CustomerRequest{
		Actor: profile.Actor,
		Name:  profile.Name,
		Email: email,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domainErrors.ErrCheckoutFailed, err)
	}

	if err := s.mappings.Create(ctx, &entity.CustomerMapping{
		Actor:              profile.Actor,
		ProviderCustomerID: customerID,
		Email:              email,
	}); err != nil {
		s.logger.Error("Failed to save customer mapping",
			zap.String("actor", profile.Actor.String()),
			zap.String("customer_id", customerID),
			zap.Error(err))
		return "", fmt.Errorf("%w: %w", domainErrors.ErrStoreUnavailable, err)
	}

	s.logger.Info("Customer created",
		zap.String("actor", profile.Actor.String()),
		zap.String("customer_id", customerID))
	return customerID, nil
}

// syncEmail pushes the actor's current email to the provider and the mapping.
// Failures do not block checkout.
func (s *CheckoutService) syncEmail(ctx context.Context, mapping *entity.CustomerMapping, email string) {
	log := s.logger.With(zap.String("customer_id", mapping.ProviderCustomerID))

	if err := s.provider.UpdateCustomerEmail(ctx, mapping.ProviderCustomerID, email); err != nil {
		if !errors.Is(err, provider.ErrResourceMissing) {
			log.Warn("Failed to update customer email at the provider", zap.Error(err))
			return
		}
	}
	if err := s.mappings.UpdateEmail(ctx, mapping.ID, email); err != nil {
		log.Warn("Failed to update customer mapping email", zap.Error(err))
		return
	}
	mapping.Email = email
}

func (s *CheckoutService) usableEmail(profile *entity.ActorProfile) string {
	email := strings.TrimSpace(profile.Email)
	if email == "" {
		return ""
	}
	if err := s.validate.Var(email, "email"); err != nil {
		s.logger.Warn("Actor email is not a valid address, checkout continues without it",
			zap.String("actor", profile.Actor.String()))
		return ""
	}
	return email
}

func (s *CheckoutService) redirectURLs(actor entity.Actor) (success, cancel string) {
	base := s.config.BaseURL
	if actor.IsTenant() {
		return base + "/assinatura-sucesso?session_id=" + CheckoutSessionPlaceholder,
			base + "/assinatura-necessaria?canceled=true"
	}
	return base + SubscriptionPagePath + "?success=true",
		base + SubscriptionPagePath + "?canceled=true"
}
