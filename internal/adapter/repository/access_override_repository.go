package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/SistemaEduas/AtendimentoMedico/internal/domain/errors"
	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/model"
	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type accessOverrideRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewAccessOverrideRepository creates a repository over the doctor_access table
func NewAccessOverrideRepository(db *gorm.DB, logger *zap.Logger) repository.AccessOverrideRepository {
	return &accessOverrideRepository{
		db:     db,
		logger: logger,
	}
}

func (r *accessOverrideRepository) IsGranted(ctx context.Context, doctorID string) (bool, error) {
	var access model.DoctorAccess

	err := r.db.WithContext(ctx).
		Select("acesso_liberado").
		Where("doctor_id = ?", doctorID).
		First(&access).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		r.logger.Error("Failed to read doctor access",
			zap.String("doctor_id", doctorID),
			zap.Error(err))
		return false, fmt.Errorf("failed to read doctor access: %w", err)
	}

	return access.AccessGranted, nil
}

// SetGranted updates acesso_liberado. A doctor without an access row is ErrDoctorNotLinked.
func (r *accessOverrideRepository) SetGranted(ctx context.Context, doctorID string, granted bool) error {
	result := r.db.WithContext(ctx).
		Model(&model.DoctorAccess{}).
		Where("doctor_id = ?", doctorID).
		Updates(map[string]interface{}{
			"acesso_liberado": granted,
			"updated_at":      time.Now(),
		})

	if result.Error != nil {
		r.logger.Error("Failed to update doctor access",
			zap.String("doctor_id", doctorID),
			zap.Error(result.Error))
		return fmt.Errorf("failed to update doctor access: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return domainErrors.ErrDoctorNotLinked
	}

	return nil
}

func (r *accessOverrideRepository) AnyGrantedInTenant(ctx context.Context, tenantID string) (bool, error) {
	var count int64

	err := r.db.WithContext(ctx).
		Model(&model.DoctorAccess{}).
		Where("tenant_id = ? AND acesso_liberado = ?", tenantID, true).
		Count(&count).Error

	if err != nil {
		r.logger.Error("Failed to count tenant access overrides",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		return false, fmt.Errorf("failed to count tenant access overrides: %w", err)
	}

	return count > 0, nil
}
