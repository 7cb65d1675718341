package entity

import (
	"fmt"

	"github.com/google/uuid"
)

// ActorKind distinguishes the two kinds of subscriber.
type ActorKind string

const (
	ActorDoctor ActorKind = "doctor"
	ActorTenant ActorKind = "tenant"
)

// Actor is the subject of every entitlement decision: a doctor or a tenant, by id.
type Actor struct {
	Kind ActorKind `json:"actor_kind"`
	ID   string    `json:"actor_id"`
}

func Doctor(id string) Actor { return Actor{Kind: ActorDoctor, ID: id} }

func Tenant(id string) Actor { return Actor{Kind: ActorTenant, ID: id} }

// ParseActor validates a kind/id pair coming from an untrusted source.
func ParseActor(kind, id string) (Actor, error) {
	k := ActorKind(kind)
	if k != ActorDoctor && k != ActorTenant {
		return Actor{}, fmt.Errorf("unknown actor kind %q", kind)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Actor{}, fmt.Errorf("invalid actor id %q: %w", id, err)
	}
	return Actor{Kind: k, ID: parsed.String()}, nil
}

func (a Actor) IsDoctor() bool { return a.Kind == ActorDoctor }

func (a Actor) IsTenant() bool { return a.Kind == ActorTenant }

func (a Actor) IsZero() bool { return a.ID == "" }

func (a Actor) String() string {
	return string(a.Kind) + ":" + a.ID
}

// ActorProfile is the identity data the billing flow needs about an actor.
type ActorProfile struct {
	Actor    Actor
	Name     string
	Email    string
	TenantID string // set for doctors
}
