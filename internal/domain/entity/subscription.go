package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionStatus is the local projection of a billing subscription's state.
type SubscriptionStatus string

const (
	SubscriptionActive               SubscriptionStatus = "active"
	SubscriptionExpired              SubscriptionStatus = "expired"
	SubscriptionCanceled             SubscriptionStatus = "canceled"
	SubscriptionActiveUntilPeriodEnd SubscriptionStatus = "active_until_period_end"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionActive, SubscriptionExpired, SubscriptionCanceled, SubscriptionActiveUntilPeriodEnd:
		return true
	}
	return false
}

// SubscriptionRecord is one billing subscription owned by a single actor.
// Records are never deleted; the full history of an actor is kept.
type SubscriptionRecord struct {
	ID                     int64              `json:"id"`
	Actor                  Actor              `json:"actor"`
	ExternalSubscriptionID string             `json:"external_subscription_id"`
	ExternalCustomerID     string             `json:"external_customer_id,omitempty"`
	Status                 SubscriptionStatus `json:"status"`
	CurrentPeriodStart     *time.Time         `json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time         `json:"current_period_end,omitempty"`
	CanceledAt             *time.Time         `json:"canceled_at,omitempty"`
	PaymentMethodBrand     string             `json:"payment_method_brand,omitempty"`
	PaymentLast4           string             `json:"payment_last4,omitempty"`
	Amount                 decimal.Decimal    `json:"amount"`
	Currency               string             `json:"currency,omitempty"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

func (r *SubscriptionRecord) IsCanceled() bool {
	return r.CanceledAt != nil
}

// SubscriptionRefresh carries the fields re-derived from the billing provider
// when a known subscription changes.
type SubscriptionRefresh struct {
	Status             SubscriptionStatus
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	// CanceledAt only fills an empty local value, it never clears one
	CanceledAt         *time.Time
	PaymentMethodBrand string
	PaymentLast4       string
	Amount             decimal.Decimal
	Currency           string
}
