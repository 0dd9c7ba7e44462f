package orders

import "errors"

var (
	ErrNotSubscribed      = errors.New("not subscribed to mandatory channel")
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrAlreadyAdjudicated = errors.New("order already adjudicated")
	ErrGatewayFailure     = errors.New("gateway delivery failed")

	// ErrConflict reports a uniqueness race with a concurrent transaction.
	// The transaction did not commit and may be retried.
	ErrConflict = errors.New("conflicting concurrent write")
)
