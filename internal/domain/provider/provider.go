package provider

import (
	"context"
	"errors"
	"time"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/entity"
)

var (
	// ErrResourceMissing is returned when the provider has no such object.
	ErrResourceMissing = errors.New("billing provider resource missing")

	// ErrMalformedEvent is returned for a correctly signed event whose object cannot be decoded.
	ErrMalformedEvent = errors.New("malformed billing event")
)

// BillingProvider is the external billing processor (Stripe).
type BillingProvider interface {
	// ParseEvent verifies the payload signature and decodes it into one of the Event variants.
	ParseEvent(payload []byte, signature string) (Event, error)

	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error

	CreateCustomer(ctx context.Context, req CustomerRequest) (string, error)
	UpdateCustomerEmail(ctx context.Context, customerID, email string) error
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

// SubscriptionState is the provider-side status string of a subscription.
type SubscriptionState string

const (
	StateActive            SubscriptionState = "active"
	StateTrialing          SubscriptionState = "trialing"
	StatePastDue           SubscriptionState = "past_due"
	StateCanceled          SubscriptionState = "canceled"
	StateUnpaid            SubscriptionState = "unpaid"
	StateIncomplete        SubscriptionState = "incomplete"
	StateIncompleteExpired SubscriptionState = "incomplete_expired"
	StatePaused            SubscriptionState = "paused"
)

// Subscription is the authoritative provider view of a subscription.
type Subscription struct {
	ID                 string
	CustomerID         string
	State              SubscriptionState
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CanceledAt         *time.Time
	PaymentMethodBrand string
	PaymentLast4       string
	// AmountMinor is the recurring price in the currency's minor unit
	AmountMinor int64
	Currency    string
}

type CustomerRequest struct {
	Actor entity.Actor
	Name  string
	Email string
}

type CheckoutRequest struct {
	Actor      entity.Actor
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ID  string
	URL string
}
