package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/entity"
	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/provider"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"
)

// Metadata keys written on checkout sessions and subscriptions.
const (
	MetadataActorID   = "actor_id"
	MetadataActorKind = "actor_kind"
)

// Keys used by sessions created before actor_id/actor_kind existed.
const (
	legacyDoctorKey = "medicoId"
	legacyTenantKey = "instanciaId"
	legacyTypeKey   = "type"
	legacyTenant    = "instancia"
)

// ParseEvent verifies the Stripe-Signature header and decodes the event
func (s *StripeProvider) ParseEvent(payload []byte, signature string) (provider.Event, error) {
	event, err := webhook.ConstructEventWithOptions(
		payload,
		signature,
		s.webhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		return nil, err
	}

	meta := provider.EventMeta{
		ID:      event.ID,
		Type:    string(event.Type),
		Created: time.Unix(event.Created, 0).UTC(),
	}
	if event.Data == nil {
		return provider.Ignored{EventMeta: meta}, nil
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("%w: checkout session: %w", provider.ErrMalformedEvent, err)
		}
		out := provider.CheckoutCompleted{EventMeta: meta, SessionID: session.ID}
		if session.Subscription != nil {
			out.SubscriptionID = session.Subscription.ID
		}
		if session.Customer != nil {
			out.CustomerID = session.Customer.ID
		}
		if actor, ok := actorFromMetadata(session.Metadata); ok {
			out.Actor = &actor
		} else {
			s.logger.Warn("Checkout session metadata has no actor",
				zap.String("session_id", session.ID),
				zap.Any("metadata", session.Metadata))
		}
		return out, nil

	case stripe.EventTypeInvoicePaymentSucceeded:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("%w: invoice: %w", provider.ErrMalformedEvent, err)
		}
		if invoice.Subscription == nil {
			return provider.Ignored{EventMeta: meta}, nil
		}
		return provider.InvoicePaymentSucceeded{
			EventMeta:      meta,
			InvoiceID:      invoice.ID,
			SubscriptionID: invoice.Subscription.ID,
		}, nil

	case stripe.EventTypeCustomerSubscriptionUpdated, stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: subscription: %w", provider.ErrMalformedEvent, err)
		}
		if event.Type == stripe.EventTypeCustomerSubscriptionDeleted {
			return provider.SubscriptionDeleted{EventMeta: meta, SubscriptionID: sub.ID}, nil
		}
		return provider.SubscriptionUpdated{EventMeta: meta, SubscriptionID: sub.ID}, nil
	}

	return provider.Ignored{EventMeta: meta}, nil
}

func actorMetadata(actor entity.Actor) map[string]string {
	return map[string]string{
		MetadataActorID:   actor.ID,
		MetadataActorKind: string(actor.Kind),
	}
}

func actorFromMetadata(metadata map[string]string) (entity.Actor, bool) {
	if actor, err := entity.ParseActor(metadata[MetadataActorKind], metadata[MetadataActorID]); err == nil {
		return actor, true
	}
	if metadata[legacyTypeKey] == legacyTenant {
		if actor, err := entity.ParseActor(string(entity.ActorTenant), metadata[legacyTenantKey]); err == nil {
			return actor, true
		}
	}
	if actor, err := entity.ParseActor(string(entity.ActorDoctor), metadata[legacyDoctorKey]); err == nil {
		return actor, true
	}
	return entity.Actor{}, false
}
