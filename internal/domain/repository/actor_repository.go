package repository

import (
	"context"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/entity"
)

// ActorRepository reads doctor and tenant identities owned by the clinic registry.
type ActorRepository interface {
	GetProfile(ctx context.Context, actor entity.Actor) (*entity.ActorProfile, error)
	ListDoctorIDs(ctx context.Context, tenantID string) ([]string, error)
}
