package repository

import (
	"context"
	"time"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/entity"
)

// SubscriptionRepository is the Subscription Record Store.
// Getters return nil, nil when nothing matches.
type SubscriptionRepository interface {
	// ListByActor returns every record of the actor, most recently created first.
	ListByActor(ctx context.Context, actor entity.Actor) ([]*entity.SubscriptionRecord, error)
	GetByExternalID(ctx context.Context, externalSubscriptionID string) (*entity.SubscriptionRecord, error)
	Create(ctx context.Context, record *entity.SubscriptionRecord) error
	Refresh(ctx context.Context, externalSubscriptionID string, refresh entity.SubscriptionRefresh) error
	// MarkCanceled stamps canceled_at if it is still empty and the record is
	// active or active_until_period_end, and reports whether it did.
	MarkCanceled(ctx context.Context, externalSubscriptionID string, at time.Time) (bool, error)
	// MarkEnded sets a terminal status, keeping an existing canceled_at.
	MarkEnded(ctx context.Context, externalSubscriptionID string, status entity.SubscriptionStatus, at time.Time) error
	// Reconcile moves a record from one status to another if it is still in the first.
	Reconcile(ctx context.Context, recordID int64, from, to entity.SubscriptionStatus) (bool, error)
}
