package billing

import "errors"

// Error taxonomy for the reconciliation core. Callers map these onto HTTP
// responses: signature and metadata failures are permanent (400-class, the
// provider must not retry into success), everything wrapped around provider
// or store calls is transient (500-class, redelivery converges).
var (
	// ErrSignatureInvalid is returned when a webhook payload does not match
	// its signature header.
	ErrSignatureInvalid = errors.New("webhook signature verification failed")

	// ErrMissingUserMetadata is returned when a checkout event carries no
	// user id and therefore cannot be attributed. No retry will fix this;
	// it indicates a checkout flow bug upstream.
	ErrMissingUserMetadata = errors.New("user id missing in event metadata")

	// ErrUnknownSessionMode is returned for checkout sessions in a mode
	// this service does not reconcile (e.g. setup). Redelivery cannot
	// change the mode, so callers treat it as permanent.
	ErrUnknownSessionMode = errors.New("unknown checkout session mode")

	// ErrUnauthorized is returned when a non-admin attempts a manual
	// subscription override.
	ErrUnauthorized = errors.New("administrative role required")

	// ErrNothingToRevoke is returned when an override to the free plan finds
	// no subscription row to delete.
	ErrNothingToRevoke = errors.New("user has no subscription to revoke")
)
