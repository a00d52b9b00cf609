// Package router defines the router-instance contract that warpcore drives.
// Every engine under adapter/ implements Router so the framework layer in
// platform and core never talks to chi, echo, gin or fiber directly.
package router

import (
	"net/http"
)

// ctxKey is a private type for context keys to avoid collisions with other packages.
type ctxKey string

const (
	// StateKey provides access to the per-request [adapter.State].
	StateKey ctxKey = "___warpcore_state___"
	// NextKey stores the next [http.Handler] while a foreign middleware runs.
	NextKey ctxKey = "___warpcore_next___"
	// ValidationKey is used to store validated data structures after middleware processing.
	ValidationKey ctxKey = "___warpcore_validator_key___"
)

// Middleware is the net/http middleware shape shared by every engine.
type Middleware = func(http.Handler) http.Handler

// Router defines the contract that every engine adapter must implement.
//
// Paths use a neutral syntax: ":name" captures one segment (the name may carry
// a literal extension such as ":id.json") and "*name" or "*" captures the rest
// of the path. Engines translate this syntax to their native one.
type Router interface {
	http.Handler

	GET(path string, h http.HandlerFunc, mws ...Middleware)
	POST(path string, h http.HandlerFunc, mws ...Middleware)
	PUT(path string, h http.HandlerFunc, mws ...Middleware)
	PATCH(path string, h http.HandlerFunc, mws ...Middleware)
	DELETE(path string, h http.HandlerFunc, mws ...Middleware)
	OPTIONS(path string, h http.HandlerFunc, mws ...Middleware)
	// ANY registers the handler for every standard method.
	ANY(path string, h http.HandlerFunc, mws ...Middleware)

	// Handle registers a handler for an arbitrary, possibly non-standard, method.
	Handle(method, path string, h http.Handler, mws ...Middleware)
	HandleFunc(method, path string, h http.HandlerFunc, mws ...Middleware)

	// Use adds middlewares to this router or group. They wrap routes
	// registered on it and on groups created after the call.
	Use(mws ...Middleware)
	// Param retrieves a path parameter by its key from the given request.
	Param(r *http.Request, key string) string
	// Group creates a new route group with a common prefix.
	Group(prefix string) Router
	// NotFound sets the handler used when no route matches. It is shared by
	// all groups of the same router.
	NotFound(h http.HandlerFunc)
	// Engine returns the underlying framework instance (e.g., *chi.Mux).
	Engine() any
}

// AnyMethods lists the methods ANY registers.
var AnyMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
}
