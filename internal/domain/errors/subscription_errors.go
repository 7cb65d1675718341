package errors

import "errors"

var (
	// ErrInvalidActor indicates a malformed actor kind or id
	ErrInvalidActor = errors.New("invalid actor reference")

	// ErrActorNotFound indicates that the doctor or tenant does not exist
	ErrActorNotFound = errors.New("actor not found")

	// ErrActorMismatch indicates a request for an actor other than the authenticated one
	ErrActorMismatch = errors.New("actor does not match the authenticated session")

	// ErrSubscriptionNotFound indicates that the specified subscription was not found
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrAlreadyCanceled indicates that cancellation was already requested. Informational.
	ErrAlreadyCanceled = errors.New("subscription already canceled")

	// ErrSubscriptionEnded indicates a subscription that expired and can no longer be canceled
	ErrSubscriptionEnded = errors.New("subscription has already ended")

	// ErrCancellationFailed indicates that the billing provider refused the cancellation
	ErrCancellationFailed = errors.New("failed to cancel subscription")

	// ErrStoreUnavailable indicates that the subscription store could not be read or written
	ErrStoreUnavailable = errors.New("subscription store unavailable")
)

var (
	// ErrAlreadyEntitled indicates that the actor already has an active or in-grace subscription
	ErrAlreadyEntitled = errors.New("actor already has a valid subscription")

	// ErrCheckoutNotConfigured indicates missing price id or base URL
	ErrCheckoutNotConfigured = errors.New("checkout is not configured")

	// ErrCheckoutFailed indicates that the billing provider could not open a session
	ErrCheckoutFailed = errors.New("failed to create checkout session")
)

var (
	// ErrInvalidSignature indicates a webhook payload whose signature does not verify
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrMalformedEvent indicates a verified webhook payload that could not be decoded
	ErrMalformedEvent = errors.New("malformed webhook event")

	// ErrMissingActorReference indicates a completed checkout without actor metadata
	ErrMissingActorReference = errors.New("checkout session has no actor reference")

	// ErrEventInFlight indicates that another delivery of the same event is being processed
	ErrEventInFlight = errors.New("event is already being processed")
)

var (
	// ErrDoctorNotLinked indicates that the doctor has no access record to toggle
	ErrDoctorNotLinked = errors.New("doctor has no access record")

	// ErrOverrideRedundant indicates an attempt to grant manual access to a paying doctor
	ErrOverrideRedundant = errors.New("doctor already has an active subscription")

	// ErrOverrideLocked indicates an attempt to revoke manual access while a subscription covers the doctor
	ErrOverrideLocked = errors.New("access is covered by an active subscription and cannot be revoked")
)
