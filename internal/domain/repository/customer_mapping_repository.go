package repository

import (
	"context"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/entity"
)

type CustomerMappingRepository interface {
	Create(ctx context.Context, mapping *entity.CustomerMapping) error
	GetByActor(ctx context.Context, actor entity.Actor) (*entity.CustomerMapping, error)
	UpdateEmail(ctx context.Context, id int64, email string) error
}
