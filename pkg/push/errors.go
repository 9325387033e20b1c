// --- File: pkg/push/errors.go ---
package push

import (
	"errors"
	"fmt"
	"math"
)

// The generalized error taxonomy every backend maps its provider's failures
// into. Callers branch with errors.Is; provider-specific error types never
// cross this boundary.
var (
	// ErrCredentialLoad reports that a backend's credential material was
	// readable but the provider authenticator could not be built from it.
	// The caller decides whether to run without the backend or abort.
	ErrCredentialLoad = errors.New("push: credential load failed")

	// ErrTokenInvalid reports a permanently dead token: the provider will
	// never accept it again, and it should be unregistered.
	ErrTokenInvalid = errors.New("push: token permanently invalid")

	// ErrTokenRateLimited reports that the provider is throttling this
	// token. The token itself is fine; sends to it should back off.
	ErrTokenRateLimited = errors.New("push: token rate limited")

	// ErrEndpointUnavailable reports a transient provider-side failure
	// (timeout, connection reset, 5xx). Retrying later is the expected
	// recovery.
	ErrEndpointUnavailable = errors.New("push: endpoint temporarily unavailable")

	// ErrUnknown matches, via errors.Is, every *UnknownError.
	ErrUnknown = errors.New("push: unknown provider error")
)

// MaxCode marks an UnknownError whose provider code was missing or
// unrecognized: a structured failure we observed but cannot interpret.
const MaxCode uint16 = math.MaxUint16

// UnknownError carries the numeric code of a structured provider failure
// the taxonomy has no mapping for. Callers that only care about the
// category should test errors.Is(err, ErrUnknown); the code exists for
// logging and diagnostics, never for branching.
type UnknownError struct {
	Code uint16
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("push: unknown provider error (code %d)", e.Code)
}

// Is reports ErrUnknown as this error's category.
func (e *UnknownError) Is(target error) bool {
	return target == ErrUnknown
}
