package domain

import (
	"errors"
	"fmt"
)

var (
	// Keyed lookups
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")

	// Input and state
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")

	// Notification gateway
	ErrTemplateNotFound = errors.New("template not found")
	ErrNoRecipient      = errors.New("no recipient specified")

	// Downstream calls
	ErrTransport = errors.New("transport error")
)

// TransportError wraps a failed outbound call. It matches ErrTransport.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }
