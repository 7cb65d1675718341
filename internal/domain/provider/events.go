package provider

import (
	"time"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/entity"
)

// EventMeta identifies a delivered provider event.
type EventMeta struct {
	ID      string
	Type    string
	Created time.Time
}

// Event is one of CheckoutCompleted, InvoicePaymentSucceeded,
// SubscriptionUpdated, SubscriptionDeleted or Ignored.
type Event interface {
	Meta() EventMeta
	event()
}

// CheckoutCompleted is a finished checkout session. Actor is nil when the
// session carried no usable actor metadata.
type CheckoutCompleted struct {
	EventMeta
	SessionID      string
	SubscriptionID string
	CustomerID     string
	Actor          *entity.Actor
}

type InvoicePaymentSucceeded struct {
	EventMeta
	InvoiceID      string
	SubscriptionID string
}

type SubscriptionUpdated struct {
	EventMeta
	SubscriptionID string
}

type SubscriptionDeleted struct {
	EventMeta
	SubscriptionID string
}

// Ignored is any event kind the service does not act on.
type Ignored struct {
	EventMeta
}

func (m EventMeta) Meta() EventMeta { return m }

func (CheckoutCompleted) event()       {}
func (InvoicePaymentSucceeded) event() {}
func (SubscriptionUpdated) event()     {}
func (SubscriptionDeleted) event()     {}
func (Ignored) event()                 {}
