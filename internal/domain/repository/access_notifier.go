package repository

import (
	"context"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/entity"
)

// AccessNotifier tells other services that an actor's entitlement may have changed.
type AccessNotifier interface {
	AccessChanged(ctx context.Context, change entity.AccessChange) error
}
