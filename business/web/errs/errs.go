// Package errs provides types and support related to web v1 functionality.
package errs

import (
	"errors"
	"net/http"

	"github.com/metacrafters/atm/business/core/session"
)

// Response is the form used for API responses from failures in the API.
type Response struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Trusted is used to pass an error during the request through the
// application with web specific context.
type Trusted struct {
	Err    error
	Status int
}

// NewTrusted wraps a provided error with an HTTP status code. This
// function should be used when handlers encounter expected errors.
func NewTrusted(err error, status int) error {
	return &Trusted{err, status}
}

// Error implements the error interface. It uses the default message of the
// wrapped error. This is what will be shown in the services' logs.
func (re *Trusted) Error() string {
	return re.Err.Error()
}

// Unwrap returns the wrapped error.
func (re *Trusted) Unwrap() error {
	return re.Err
}

// IsTrusted checks if an error of type Trusted exists.
func IsTrusted(err error) bool {
	var re *Trusted
	return errors.As(err, &re)
}

// GetTrusted returns a copy of the Trusted pointer.
func GetTrusted(err error) *Trusted {
	var re *Trusted
	if !errors.As(err, &re) {
		return nil
	}
	return re
}

// =============================================================================

// kindStatus maps each session error kind to the status reported for it.
var kindStatus = map[error]int{
	session.ErrInvalidAmount: http.StatusBadRequest,
	session.ErrUnauthorized:  http.StatusConflict,
	session.ErrNotConnected:  http.StatusConflict,
	session.ErrBusy:          http.StatusTooManyRequests,
	session.ErrNoProvider:    http.StatusServiceUnavailable,
	session.ErrBind:          http.StatusBadGateway,
	session.ErrCall:          http.StatusBadGateway,
}

// FromSession wraps a session error as a trusted error with the status
// matching its kind. Errors that are not session errors are returned as is.
func FromSession(err error) error {
	kind := session.KindOf(err)
	if kind == nil {
		return err
	}

	status, exists := kindStatus[kind]
	if !exists {
		return err
	}

	return NewTrusted(err, status)
}
