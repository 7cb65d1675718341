package model

import (
	"database/sql/driver"
	"time"

	"gorm.io/datatypes"
)

// WebhookStatus represents the processing status of a webhook delivery
type WebhookStatus string

const (
	WebhookStatusPending    WebhookStatus = "pending"
	WebhookStatusProcessing WebhookStatus = "processing"
	WebhookStatusCompleted  WebhookStatus = "completed"
	WebhookStatusFailed     WebhookStatus = "failed"
)

// Scan implements sql.Scanner interface
func (w *WebhookStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*w = WebhookStatus(v)
	case []byte:
		*w = WebhookStatus(v)
	default:
		*w = WebhookStatusPending
	}
	return nil
}

// Value implements driver.Valuer interface
func (w WebhookStatus) Value() (driver.Value, error) {
	return string(w), nil
}

// BillingWebhookEvent is the delivery log entry of a verified billing provider event
type BillingWebhookEvent struct {
	ID                 int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	ProviderEventID    string         `gorm:"unique;not null;size:255" json:"provider_event_id"`
	EventType          string         `gorm:"not null;size:100;index" json:"event_type"`
	Status             WebhookStatus  `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	Payload            datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	ProcessingAttempts int            `gorm:"not null;default:0" json:"processing_attempts"`
	LastError          *string        `json:"last_error,omitempty"`
	ProcessedAt        *time.Time     `json:"processed_at,omitempty"`
	ProviderCreatedAt  *time.Time     `json:"provider_created_at,omitempty"`
	CreatedAt          time.Time      `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM
func (BillingWebhookEvent) TableName() string {
	return "billing_webhook_events"
}
