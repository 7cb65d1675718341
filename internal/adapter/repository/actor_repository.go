package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/entity"
	domainErrors "github.com/SistemaEduas/AtendimentoMedico/internal/domain/errors"
	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/model"
	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/repository"
	"gorm.io/gorm"
)

type actorRepository struct {
	db *gorm.DB
}

// NewActorRepository reads doctors and tenants from the clinic registry tables
func NewActorRepository(db *gorm.DB) repository.ActorRepository {
	return &actorRepository{
		db: db,
	}
}

func (r *actorRepository) GetProfile(ctx context.Context, actor entity.Actor) (*entity.ActorProfile, error) {
	switch actor.Kind {
	case entity.ActorDoctor:
		var doctor model.Doctor
		err := r.db.WithContext(ctx).Where("id = ?", actor.ID).First(&doctor).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to get doctor: %w", err)
		}
		return &entity.ActorProfile{
			Actor:    actor,
			Name:     doctor.Name,
			Email:    doctor.Email,
			TenantID: doctor.TenantID.String(),
		}, nil

	case entity.ActorTenant:
		var tenant model.Tenant
		err := r.db.WithContext(ctx).Where("id = ?", actor.ID).First(&tenant).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to get tenant: %w", err)
		}
		return &entity.ActorProfile{
			Actor: actor,
			Name:  tenant.Name,
			Email: tenant.Email,
		}, nil
	}

	return nil, domainErrors.ErrInvalidActor
}

func (r *actorRepository) ListDoctorIDs(ctx context.Context, tenantID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Doctor{}).
		Where("tenant_id = ?", tenantID).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors of tenant: %w", err)
	}
	return ids, nil
}
