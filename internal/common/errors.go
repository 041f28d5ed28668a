// Package common defines the error kinds shared by the rental core and its
// storage layer. Callers should use errors.Is to match these values; managers
// wrap them with context via fmt.Errorf("%w: ...").
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// ErrForbidden reports an ownership or authorization violation.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidRange reports violated date logic.
	ErrInvalidRange = errors.New("invalid date range")

	// ErrConflict reports a double booking or an unavailable vehicle.
	ErrConflict = errors.New("conflict")

	// ErrInvalidState reports an operation not valid for the current lifecycle state.
	ErrInvalidState = errors.New("invalid state")

	// ErrAlreadySettled reports a payment that already succeeded.
	ErrAlreadySettled = errors.New("payment already settled")
)
