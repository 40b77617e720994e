// Package recovery classifies remote API failures into handling categories.
package recovery

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vietddude/fleetwatch/internal/infra/fleetapi"
)

// Kind is the handling category of a failed refresh.
type Kind int

const (
	KindTransient Kind = iota
	KindAuthInvalid
	KindAuthExpired
	KindLoginRequired
	KindRateLimited
	KindDeviceOffline
)

func (k Kind) String() string {
	switch k {
	case KindAuthInvalid:
		return "auth_invalid"
	case KindAuthExpired:
		return "auth_expired"
	case KindLoginRequired:
		return "login_required"
	case KindRateLimited:
		return "rate_limited"
	case KindDeviceOffline:
		return "device_offline"
	default:
		return "transient"
	}
}

// RefreshError is a classified remote failure.
type RefreshError struct {
	Kind Kind
	// RetryAfter is only set for KindRateLimited. Zero means the server gave no hint.
	RetryAfter time.Duration
	Err        error
}

func (e *RefreshError) Error() string {
	if e.Kind == KindRateLimited && e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s): %v", e.Kind, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the failure needs user action before polling can resume.
func (e *RefreshError) Fatal() bool {
	switch e.Kind {
	case KindAuthInvalid, KindAuthExpired, KindLoginRequired:
		return true
	}
	return false
}

// Classify maps a remote client error to a RefreshError.
// ok is false for errors outside the client's error surface; callers treat those as fatal.
func Classify(err error) (*RefreshError, bool) {
	if err == nil {
		return nil, false
	}

	var rl *fleetapi.RateLimitedError
	var apiErr *fleetapi.APIError

	switch {
	case errors.Is(err, fleetapi.ErrInvalidToken):
		return &RefreshError{Kind: KindAuthInvalid, Err: err}, true
	case errors.Is(err, fleetapi.ErrOAuthExpired):
		return &RefreshError{Kind: KindAuthExpired, Err: err}, true
	case errors.Is(err, fleetapi.ErrLoginRequired):
		return &RefreshError{Kind: KindLoginRequired, Err: err}, true
	case errors.Is(err, fleetapi.ErrVehicleOffline):
		return &RefreshError{Kind: KindDeviceOffline, Err: err}, true
	case errors.As(err, &rl):
		return &RefreshError{
			Kind:       KindRateLimited,
			RetryAfter: retryDuration(rl.After),
			Err:        err,
		}, true
	case errors.As(err, &apiErr):
		return &RefreshError{Kind: KindTransient, Err: err}, true
	}

	return nil, false
}

// retryDuration converts a server hint in seconds, saturating instead of overflowing.
func retryDuration(seconds int) time.Duration {
	if seconds <= 0 {
		return 0
	}
	if int64(seconds) > int64(math.MaxInt64/time.Second) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(seconds) * time.Second
}
