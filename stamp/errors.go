package stamp

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument matches every request validation failure.
var ErrInvalidArgument = errors.New("invalid argument")

// ArgumentError names the request parameter that violated its contract.
type ArgumentError struct {
	Param  string
	Value  any
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("stamp: invalid %s (%v): %s", e.Param, e.Value, e.Reason)
}

// Unwrap lets errors.Is(err, ErrInvalidArgument) match.
func (e *ArgumentError) Unwrap() error { return ErrInvalidArgument }

func invalid(param string, value any, reason string) error {
	return &ArgumentError{Param: param, Value: value, Reason: reason}
}
