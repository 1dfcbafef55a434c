package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedNotification marks a notification missing required fields or
	// carrying an unrecognised status.
	ErrMalformedNotification = errors.New("MALFORMED_NOTIFICATION")
	// ErrUnknownTransaction marks a reference to a transaction that was never initiated.
	ErrUnknownTransaction = errors.New("UNKNOWN_TRANSACTION")
	// ErrTransactionExists is returned when initiating an id that is already stored.
	ErrTransactionExists = errors.New("transaction already exists")
	// ErrInvalidTransaction is returned for initiation input that fails validation.
	ErrInvalidTransaction = errors.New("invalid transaction")
)

// MalformedError describes which field of a notification was unusable.
type MalformedError struct {
	Field  string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrMalformedNotification, e.Field, e.Reason)
}

func (e *MalformedError) Unwrap() error {
	return ErrMalformedNotification
}
