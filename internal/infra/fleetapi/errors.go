package fleetapi

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the Fleet API client.
var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrOAuthExpired   = errors.New("oauth token expired")
	ErrLoginRequired  = errors.New("login required")
	ErrVehicleOffline = errors.New("vehicle offline")
)

// RateLimitedError is returned on HTTP 429. After is the server supplied
// wait in seconds; zero means the server did not say.
type RateLimitedError struct {
	After int
}

func (e *RateLimitedError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("rate limited, retry after %ds", e.After)
	}
	return "rate limited"
}

// APIError is any other failure talking to the remote API.
// Status is zero when the request never got a response.
type APIError struct {
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fleet api error (%d): %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("fleet api error (%d): %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}
