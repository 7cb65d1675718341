package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/entity"
	domainErrors "github.com/SistemaEduas/AtendimentoMedico/internal/domain/errors"
	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/model"
	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type customerMappingRepository struct {
	db *gorm.DB
}

func NewCustomerMappingRepository(db *gorm.DB) repository.CustomerMappingRepository {
	return &customerMappingRepository{
		db: db,
	}
}

// modelToEntity converts a model.CustomerMapping to entity.CustomerMapping
func (r *customerMappingRepository) modelToEntity(m *model.CustomerMapping) *entity.CustomerMapping {
	if m == nil {
		return nil
	}
	return &entity.CustomerMapping{
		ID:                 m.ID,
		Actor:              entity.Actor{Kind: entity.ActorKind(m.ActorKind), ID: m.ActorID.String()},
		ProviderCustomerID: m.ProviderCustomerID,
		Email:              m.CustomerEmail,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// entityToModel converts an entity.CustomerMapping to model.CustomerMapping
func (r *customerMappingRepository) entityToModel(e *entity.CustomerMapping) (*model.CustomerMapping, error) {
	actorID, err := uuid.Parse(e.Actor.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domainErrors.ErrInvalidActor, err)
	}

	return &model.CustomerMapping{
		ID:                 e.ID,
		ActorKind:          string(e.Actor.Kind),
		ActorID:            actorID,
		ProviderCustomerID: e.ProviderCustomerID,
		CustomerEmail:      e.Email,
	}, nil
}

func (r *customerMappingRepository) Create(ctx context.Context, mapping *entity.CustomerMapping) error {
	m, err := r.entityToModel(mapping)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to create customer mapping: %w", err)
	}
	mapping.ID = m.ID
	return nil
}

func (r *customerMappingRepository) GetByActor(ctx context.Context, actor entity.Actor) (*entity.CustomerMapping, error) {
	var mapping model.CustomerMapping
	err := r.db.WithContext(ctx).
		Where("actor_kind = ? AND actor_id = ?", string(actor.Kind), actor.ID).
		First(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get customer mapping: %w", err)
	}
	return r.modelToEntity(&mapping), nil
}

func (r *customerMappingRepository) UpdateEmail(ctx context.Context, id int64, email string) error {
	return r.db.WithContext(ctx).
		Model(&model.CustomerMapping{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"customer_email": email,
			"updated_at":     time.Now(),
		}).Error
}
