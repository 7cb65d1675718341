package repository

import (
	"context"
	"time"
)

// WebhookEventStatus is the processing state of a delivered billing event.
type WebhookEventStatus string

const (
	WebhookEventPending    WebhookEventStatus = "pending"
	WebhookEventProcessing WebhookEventStatus = "processing"
	WebhookEventCompleted  WebhookEventStatus = "completed"
	WebhookEventFailed     WebhookEventStatus = "failed"
)

// WebhookEvent is the delivery log view of an event.
type WebhookEvent struct {
	EventID   string
	EventType string
	Status    WebhookEventStatus
	Attempts  int
	LastError string
}

// WebhookEventRepository is the delivery log of verified billing provider events.
type WebhookEventRepository interface {
	// SaveEvent records the event unless it is already known.
	SaveEvent(ctx context.Context, eventID, eventType string, payload []byte, createdAt time.Time) error
	GetEvent(ctx context.Context, eventID string) (*WebhookEvent, error)
	MarkProcessing(ctx context.Context, eventID string) error
	MarkProcessed(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID string, cause error) error
}

// EventLocker serialises concurrent deliveries of the same event.
type EventLocker interface {
	// Acquire returns a release func and true when the lock was taken.
	Acquire(ctx context.Context, key string) (release func(), acquired bool, err error)
}
