package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedMessage = errors.New("protocol: malformed message")
	ErrInvalidKind      = errors.New("protocol: invalid request kind")
	ErrInvalidLine      = errors.New("protocol: invalid request line")
	ErrInvalidSecret    = errors.New("protocol: invalid secret")
	ErrInvalidCommand   = errors.New("protocol: invalid command line")
)

// MissingFieldError indicates a mandatory framing field was absent.
type MissingFieldError struct {
	Field string
}

func (e MissingFieldError) Error() string {
	return fmt.Sprintf("protocol: missing required field %s", e.Field)
}

// Is reports a missing field as a malformed message.
func (e MissingFieldError) Is(target error) bool {
	return target == ErrMalformedMessage
}
