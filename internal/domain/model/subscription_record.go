package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscriptionStatus represents the local status of a subscription record
type SubscriptionStatus string

const (
	SubscriptionStatusActive               SubscriptionStatus = "active"
	SubscriptionStatusExpired              SubscriptionStatus = "expired"
	SubscriptionStatusCanceled             SubscriptionStatus = "canceled"
	SubscriptionStatusActiveUntilPeriodEnd SubscriptionStatus = "active_until_period_end"
)

// Scan implements sql.Scanner interface
func (s *SubscriptionStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = SubscriptionStatus(v)
	case []byte:
		*s = SubscriptionStatus(v)
	default:
		*s = SubscriptionStatusExpired
	}
	return nil
}

// Value implements driver.Valuer interface
func (s SubscriptionStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// SubscriptionRecord is a billing subscription owned by exactly one doctor or tenant
type SubscriptionRecord struct {
	ID                     int64              `gorm:"primaryKey;autoIncrement" json:"id"`
	DoctorID               *uuid.UUID         `gorm:"type:uuid" json:"doctor_id,omitempty"`
	TenantID               *uuid.UUID         `gorm:"type:uuid" json:"tenant_id,omitempty"`
	ExternalSubscriptionID string             `gorm:"uniqueIndex;not null;size:100" json:"external_subscription_id"`
	ExternalCustomerID     string             `gorm:"size:100;index" json:"external_customer_id"`
	Status                 SubscriptionStatus `gorm:"type:varchar(32);not null;default:'active'" json:"status"`
	CurrentPeriodStart     *time.Time         `json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time         `json:"current_period_end,omitempty"`
	CanceledAt             *time.Time         `json:"canceled_at,omitempty"`
	PaymentMethodBrand     string             `gorm:"size:32" json:"payment_method_brand,omitempty"`
	PaymentLast4           string             `gorm:"size:4" json:"payment_last4,omitempty"`
	Amount                 decimal.Decimal    `gorm:"type:numeric(12,2);not null;default:0" json:"amount"`
	Currency               string             `gorm:"size:3" json:"currency,omitempty"`
	CreatedAt              time.Time          `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt              time.Time          `gorm:"not null;default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (SubscriptionRecord) TableName() string {
	return "subscription_records"
}
