package repository

import "context"

// AccessOverrideRepository manages the per-doctor acesso_liberado flag.
type AccessOverrideRepository interface {
	// IsGranted reports the doctor's override; a doctor without an access record has none.
	IsGranted(ctx context.Context, doctorID string) (bool, error)
	SetGranted(ctx context.Context, doctorID string, granted bool) error
	AnyGrantedInTenant(ctx context.Context, tenantID string) (bool, error)
}
