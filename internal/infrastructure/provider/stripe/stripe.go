package stripe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/provider"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"go.uber.org/zap"
)

var _ provider.BillingProvider = (*StripeProvider)(nil)

// StripeProvider implements provider.BillingProvider on the Stripe API
type StripeProvider struct {
	api           *client.API
	webhookSecret string
	logger        *zap.Logger
}

// NewStripeProvider creates a Stripe provider whose client logs through zap
func NewStripeProvider(secretKey, webhookSecret string, logger *zap.Logger) *StripeProvider {
	leveled := logger.Sugar()
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{LeveledLogger: leveled}),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, &stripe.BackendConfig{LeveledLogger: leveled}),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, &stripe.BackendConfig{LeveledLogger: leveled}),
	}
	return newStripeProvider(secretKey, webhookSecret, backends, logger)
}

func newStripeProvider(secretKey, webhookSecret string, backends *stripe.Backends, logger *zap.Logger) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeProvider{
		api:           api,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// GetSubscription fetches the subscription with its default payment method expanded
func (s *StripeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*provider.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("default_payment_method")

	sub, err := s.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, s.convertError("get subscription", err)
	}

	return toSubscription(sub), nil
}

// CancelSubscription cancels the subscription immediately on Stripe
func (s *StripeProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	sub, err := s.api.Subscriptions.Cancel(subscriptionID, params)
	if err != nil {
		return s.convertError("cancel subscription", err)
	}

	s.logger.Info("Stripe subscription canceled",
		zap.String("subscription_id", sub.ID),
		zap.String("status", string(sub.Status)))
	return nil
}

func (s *StripeProvider) CreateCustomer(ctx context.Context, req provider.CustomerRequest) (string, error) {
	params := &stripe.CustomerParams{
		Name: stripe.String(req.Name),
	}
	params.Context = ctx
	if req.Email != "" {
		params.Email = stripe.String(req.Email)
	}
	for k, v := range actorMetadata(req.Actor) {
		params.AddMetadata(k, v)
	}

	customer, err := s.api.Customers.New(params)
	if err != nil {
		return "", s.convertError("create customer", err)
	}
	return customer.ID, nil
}

func (s *StripeProvider) UpdateCustomerEmail(ctx context.Context, customerID, email string) error {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx

	if _, err := s.api.Customers.Update(customerID, params); err != nil {
		return s.convertError("update customer", err)
	}
	return nil
}

// CreateCheckoutSession opens a subscription-mode session for a single unit of the price.
// Actor metadata goes on the session and on the subscription it creates.
func (s *StripeProvider) CreateCheckoutSession(ctx context.Context, req provider.CheckoutRequest) (*provider.CheckoutSession, error) {
	metadata := actorMetadata(req.Actor)

	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(req.CustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	session, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, s.convertError("create checkout session", err)
	}

	return &provider.CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// convertError maps Stripe's resource_missing onto provider.ErrResourceMissing
func (s *StripeProvider) convertError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return fmt.Errorf("stripe %s: %w: %s", op, provider.ErrResourceMissing, stripeErr.Msg)
		}
		s.logger.Warn("Stripe request failed",
			zap.String("operation", op),
			zap.String("code", string(stripeErr.Code)),
			zap.Int("http_status", stripeErr.HTTPStatusCode),
			zap.String("request_id", stripeErr.RequestID))
	}
	return fmt.Errorf("stripe %s: %w", op, err)
}

func toSubscription(sub *stripe.Subscription) *provider.Subscription {
	out := &provider.Subscription{
		ID:                 sub.ID,
		State:              provider.SubscriptionState(sub.Status),
		CurrentPeriodStart: unixTime(sub.CurrentPeriodStart),
		CurrentPeriodEnd:   unixTime(sub.CurrentPeriodEnd),
		CanceledAt:         unixTime(sub.CanceledAt),
		Currency:           string(sub.Currency),
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		price := sub.Items.Data[0].Price
		out.AmountMinor = price.UnitAmount
		if out.Currency == "" {
			out.Currency = string(price.Currency)
		}
	}
	if pm := sub.DefaultPaymentMethod; pm != nil && pm.Card != nil {
		out.PaymentMethodBrand = string(pm.Card.Brand)
		out.PaymentLast4 = pm.Card.Last4
	}
	return out
}

func unixTime(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
