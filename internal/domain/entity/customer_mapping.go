package entity

import "time"

// CustomerMapping stores the billing provider customer created for an actor.
type CustomerMapping struct {
	ID                 int64     `json:"id"`
	Actor              Actor     `json:"actor"`
	ProviderCustomerID string    `json:"provider_customer_id"`
	Email              string    `json:"email"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
