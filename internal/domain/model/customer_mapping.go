package model

import (
	"time"

	"github.com/google/uuid"
)

// CustomerMapping maps a doctor or tenant to its billing provider customer
type CustomerMapping struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ActorKind          string    `gorm:"size:16;not null;uniqueIndex:idx_customer_mappings_actor" json:"actor_kind"`
	ActorID            uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_customer_mappings_actor" json:"actor_id"`
	ProviderCustomerID string    `gorm:"column:provider_customer_id;unique;not null;size:100" json:"provider_customer_id"`
	CustomerEmail      string    `gorm:"size:255" json:"customer_email"`
	CreatedAt          time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt          time.Time `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (CustomerMapping) TableName() string {
	return "customer_mappings"
}
