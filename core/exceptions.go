package core

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/iaconlabs/warpcore/platform"
)

// HTTPException is an error answered with its status and a JSON body.
type HTTPException struct {
	Status int
	// Message is a string or any JSON value. Empty means the status text.
	Message any
	Cause   error
}

// NewHTTPException returns an exception with the given status and message.
func NewHTTPException(status int, message any) *HTTPException {
	return &HTTPException{Status: status, Message: message}
}

func (e *HTTPException) Error() string {
	switch m := e.Message.(type) {
	case nil:
	case string:
		if m != "" {
			return m
		}
	default:
		return fmt.Sprint(m)
	}
	return http.StatusText(e.Status)
}

func (e *HTTPException) Unwrap() error { return e.Cause }

// StatusCode returns the HTTP status of the exception.
func (e *HTTPException) StatusCode() int { return e.Status }

// ExceptionBody is the JSON shape of an error response.
type ExceptionBody struct {
	StatusCode int    `json:"statusCode"`
	Message    any    `json:"message"`
	Error      string `json:"error,omitempty"`
}

// Body returns the JSON body of the exception. The error field is only set
// when a custom message hides the status text.
func (e *HTTPException) Body() ExceptionBody {
	text := http.StatusText(e.Status)
	if s, ok := e.Message.(string); e.Message == nil || (ok && s == "") {
		return ExceptionBody{StatusCode: e.Status, Message: text}
	}
	return ExceptionBody{StatusCode: e.Status, Message: e.Message, Error: text}
}

func NewBadRequestException(message any) *HTTPException {
	return NewHTTPException(http.StatusBadRequest, message)
}

func NewUnauthorizedException(message any) *HTTPException {
	return NewHTTPException(http.StatusUnauthorized, message)
}

func NewForbiddenException(message any) *HTTPException {
	return NewHTTPException(http.StatusForbidden, message)
}

func NewNotFoundException(message any) *HTTPException {
	return NewHTTPException(http.StatusNotFound, message)
}

func NewMethodNotAllowedException(message any) *HTTPException {
	return NewHTTPException(http.StatusMethodNotAllowed, message)
}

func NewConflictException(message any) *HTTPException {
	return NewHTTPException(http.StatusConflict, message)
}

func NewPayloadTooLargeException(message any) *HTTPException {
	return NewHTTPException(http.StatusRequestEntityTooLarge, message)
}

func NewUnsupportedMediaTypeException(message any) *HTTPException {
	return NewHTTPException(http.StatusUnsupportedMediaType, message)
}

func NewUnprocessableEntityException(message any) *HTTPException {
	return NewHTTPException(http.StatusUnprocessableEntity, message)
}

func NewInternalServerErrorException(message any) *HTTPException {
	return NewHTTPException(http.StatusInternalServerError, message)
}

// ExceptionFilter handles errors raised while serving a request. Catch
// returns nil once it answered, or the error for the next filter. The
// built-in filter answers whatever is left.
type ExceptionFilter interface {
	Catch(err error, c *Context) error
}

// ExceptionFilterFunc adapts a function to ExceptionFilter.
type ExceptionFilterFunc func(err error, c *Context) error

// Catch calls f.
func (f ExceptionFilterFunc) Catch(err error, c *Context) error { return f(err, c) }

// Catch returns a filter handling only errors that match E through
// errors.As. Other errors are passed on untouched.
func Catch[E error](fn func(err E, c *Context) error) ExceptionFilter {
	return ExceptionFilterFunc(func(err error, c *Context) error {
		var target E
		if !errors.As(err, &target) {
			return err
		}
		return fn(target, c)
	})
}

var internalError = ExceptionBody{
	StatusCode: http.StatusInternalServerError,
	Message:    "Internal server error",
}

// exceptionBody maps err to its response. Client errors carried by a
// platform status keep their status; everything else is an opaque 500.
func exceptionBody(err error) (ExceptionBody, bool) {
	var he *HTTPException
	if errors.As(err, &he) {
		return he.Body(), true
	}
	var sc platform.StatusCoder
	if errors.As(err, &sc) && sc.StatusCode() >= 400 && sc.StatusCode() < 500 {
		return NewHTTPException(sc.StatusCode(), err.Error()).Body(), true
	}
	return internalError, false
}
