package session

import (
	"errors"
	"fmt"
)

// Set of error kinds a session operation can fail with.
var (
	ErrNoProvider    = errors.New("no wallet provider")
	ErrUnauthorized  = errors.New("account access not granted")
	ErrNotConnected  = errors.New("wallet not connected")
	ErrBind          = errors.New("contract binding failed")
	ErrCall          = errors.New("contract call failed")
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	ErrBusy          = errors.New("transaction already in flight")
)

// Error is returned by every failed session operation. Kind is one of the
// error kinds above and Err the underlying cause, if any.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func newError(op string, kind error, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the error kind of a session error or nil.
func KindOf(err error) error {
	var se *Error
	if !errors.As(err, &se) {
		return nil
	}
	return se.Kind
}
