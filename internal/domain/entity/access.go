package entity

import "time"

// Classification is the detailed entitlement state behind an access decision.
type Classification string

const (
	ClassificationNone            Classification = "sem_assinatura"
	ClassificationActive          Classification = "ativa"
	ClassificationCanceledInGrace Classification = "cancelada_periodo_valido"
	ClassificationExpired         Classification = "expirada"
	// ClassificationUnavailable is reported when the store could not be read
	// and access was granted without a classification.
	ClassificationUnavailable Classification = "indisponivel"
)

// Entitled reports whether the classification alone grants access.
func (c Classification) Entitled() bool {
	return c == ClassificationActive || c == ClassificationCanceledInGrace
}

// AccessRequest is one access check: who is asking and for which resource.
type AccessRequest struct {
	Actor    Actor
	Resource string
}

// AccessDecision is the outcome of an access check.
//
// OverrideApplied is set when access comes only from the manual override,
// Degraded when the store was unreachable and the check failed open, Exempt
// when the resource is reachable regardless of entitlement. DerivedOverride is
// informational for tenants (any of its doctors has acesso_liberado) and never
// changes Granted.
type AccessDecision struct {
	Actor           Actor               `json:"actor"`
	Classification  Classification      `json:"classification"`
	Granted         bool                `json:"granted"`
	OverrideApplied bool                `json:"override_applied"`
	Degraded        bool                `json:"degraded"`
	Exempt          bool                `json:"exempt"`
	DerivedOverride bool                `json:"derived_override,omitempty"`
	Subscription    *SubscriptionRecord `json:"subscription,omitempty"`
}

// AccessChange announces that a billing event moved an actor's subscription
// to Status. Consumers re-evaluate access instead of trusting the status.
type AccessChange struct {
	Actor          Actor              `json:"actor"`
	SubscriptionID string             `json:"subscription_id"`
	Status         SubscriptionStatus `json:"status"`
	EventID        string             `json:"event_id,omitempty"`
	At             time.Time          `json:"at"`
}
