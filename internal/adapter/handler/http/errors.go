package http

import (
	"errors"

	domainErrors "github.com/SistemaEduas/AtendimentoMedico/internal/domain/errors"
	apperrors "github.com/SistemaEduas/AtendimentoMedico/pkg/errors"
)

var errorCodes = []struct {
	target error
	code   string
}{
	{domainErrors.ErrInvalidActor, apperrors.ErrInvalidArgument},
	{domainErrors.ErrInvalidSignature, apperrors.ErrInvalidArgument},
	{domainErrors.ErrMalformedEvent, apperrors.ErrInvalidArgument},
	{domainErrors.ErrMissingActorReference, apperrors.ErrInvalidArgument},
	{domainErrors.ErrActorMismatch, apperrors.ErrUnauthorized},
	{domainErrors.ErrActorNotFound, apperrors.ErrNotFound},
	{domainErrors.ErrSubscriptionNotFound, apperrors.ErrNotFound},
	{domainErrors.ErrDoctorNotLinked, apperrors.ErrNotFound},
	{domainErrors.ErrAlreadyEntitled, apperrors.ErrConflict},
	{domainErrors.ErrEventInFlight, apperrors.ErrConflict},
	{domainErrors.ErrSubscriptionEnded, apperrors.ErrConflict},
	{domainErrors.ErrOverrideRedundant, apperrors.ErrConflict},
	{domainErrors.ErrOverrideLocked, apperrors.ErrConflict},
	{domainErrors.ErrCheckoutNotConfigured, apperrors.ErrInternal},
	{domainErrors.ErrCheckoutFailed, apperrors.ErrInternal},
	{domainErrors.ErrCancellationFailed, apperrors.ErrInternal},
	{domainErrors.ErrStoreUnavailable, apperrors.ErrInternal},
}

// toAppError maps a usecase error onto an AppError. The client sees the
// sentinel's message; 5xx details stay in the logs. An error that already
// carries a code keeps it.
func toAppError(err error) error {
	if err == nil {
		return nil
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.target) {
			if apperrors.ToHTTPStatus(ec.code) >= 500 {
				return apperrors.NewAppError(ec.code, ec.target.Error(), err)
			}
			return apperrors.NewAppError(ec.code, ec.target.Error(), nil)
		}
	}
	return apperrors.Wrap(err, "internal error")
}

func badRequest(message string, err error) error {
	return apperrors.NewAppError(apperrors.ErrInvalidArgument, message, err)
}
