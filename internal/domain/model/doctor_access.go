package model

import (
	"time"

	"github.com/google/uuid"
)

// DoctorAccess is the doctor's auth/linking record carrying the manual access override
type DoctorAccess struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	DoctorID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"doctor_id"`
	TenantID      uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	AccessGranted bool      `gorm:"column:acesso_liberado;not null;default:false" json:"acesso_liberado"`
	CreatedAt     time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt     time.Time `gorm:"default:now()" json:"updated_at"`
}

func (DoctorAccess) TableName() string {
	return "doctor_access"
}

// Doctor is read from the clinic's doctor registry, owned by another service
type Doctor struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID uuid.UUID `gorm:"type:uuid;index"`
	Name     string
	Email    string
}

func (Doctor) TableName() string {
	return "doctors"
}

// Tenant is read from the clinic's tenant registry, owned by another service
type Tenant struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name  string
	Email string
}

func (Tenant) TableName() string {
	return "tenants"
}
