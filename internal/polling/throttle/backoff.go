// Package throttle decides how long a coordinator waits between remote calls.
package throttle

import "time"

// OnRateLimited returns the earliest time the next remote call is allowed
// after the server asked us to wait retryAfter.
// The result overrides the regular schedule even when it is later than the next tick.
func OnRateLimited(now time.Time, retryAfter time.Duration) time.Time {
	if retryAfter < 0 {
		retryAfter = 0
	}
	return now.Add(retryAfter)
}
