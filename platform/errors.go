package platform

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotSupported is returned by hooks this adapter does not implement.
	ErrNotSupported = errors.New("platform: not supported")
	// ErrUnsupportedMethod is returned by middleware factories created for a
	// request method that cannot scope middleware.
	ErrUnsupportedMethod = errors.New("platform: unsupported request method")
	// ErrOriginFunc is returned by EnableCors when an origin callback is given.
	ErrOriginFunc = errors.New("platform: cors origin functions are not supported")
	// ErrBodyTooLarge is wrapped in a 413 StatusError by the body limit.
	ErrBodyTooLarge = errors.New("request body too large")
	// ErrNotFinalized is wrapped in a 500 StatusError when a middleware
	// returns without calling next or sending a response.
	ErrNotFinalized = errors.New("context is not finalized")
	// ErrUnknownType is reported when a response value cannot be rendered.
	ErrUnknownType = errors.New("cannot convert unknown types")
)

// StatusCoder is implemented by errors that carry an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// StatusError attaches an HTTP status to an error.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return http.StatusText(e.Code)
	}
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status of the error.
func (e *StatusError) StatusCode() int { return e.Code }

// StatusOf returns the status carried by err, or 500.
func StatusOf(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) && sc.StatusCode() >= 400 {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic recovered: %v", e.Value)
}

// Unwrap exposes the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
