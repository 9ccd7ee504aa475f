package mpesa

import "errors"

var (
	// ErrNotConfigured means the Daraja credentials are absent from the
	// runtime configuration.
	ErrNotConfigured = errors.New("m-pesa integration not configured")

	// ErrAuthFailed means the OAuth token could not be acquired.
	ErrAuthFailed = errors.New("failed to authenticate with m-pesa")

	// ErrUnavailable means an outbound call hit its deadline or the gateway
	// was unreachable.
	ErrUnavailable = errors.New("m-pesa gateway unavailable")
)

// RejectedError carries the gateway's stated reason for declining a request.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return e.Message
}
