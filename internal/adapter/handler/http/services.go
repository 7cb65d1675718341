package http

import (
	"context"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/entity"
	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/provider"
)

// The handlers depend on these narrow views of the usecase services.

type EventIngestor interface {
	HandleEvent(ctx context.Context, payload []byte, signature string) error
}

type AccessEvaluator interface {
	Evaluate(ctx context.Context, req entity.AccessRequest) *entity.AccessDecision
	ListSubscriptions(ctx context.Context, actor entity.Actor) ([]*entity.SubscriptionRecord, error)
}

type CheckoutStarter interface {
	StartCheckout(ctx context.Context, actor entity.Actor) (*provider.CheckoutSession, error)
	VerifyCheckout(ctx context.Context, actor entity.Actor) (bool, error)
}

type SubscriptionCanceler interface {
	Cancel(ctx context.Context, actor entity.Actor, subscriptionID string) (*entity.SubscriptionRecord, error)
}

type OverrideAdministrator interface {
	SetOverride(ctx context.Context, doctorID string, granted bool) error
	TenantOverview(ctx context.Context, tenantID string) (*entity.AccessDecision, error)
}
