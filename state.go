package warpcore

import (
	"context"
	"maps"
	"net/http"

	"github.com/iaconlabs/warpcore/adapter"
	"github.com/iaconlabs/warpcore/router"
)

// RequestState returns the warpcore state of r, if any.
func RequestState(r *http.Request) (*adapter.State, bool) {
	return adapter.StateFrom(r)
}

// SetStateValue stores a string parameter in the request state, creating
// the state when r has none. Handlers read it like a path parameter. The
// returned request must replace r.
func SetStateValue(r *http.Request, key, value string) *http.Request {
	return adapter.WithParams(r, map[string]string{key: value})
}

// DeleteStateValue removes a parameter stored by SetStateValue. A request
// without state is returned unchanged.
func DeleteStateValue(r *http.Request, key string) *http.Request {
	state, ok := adapter.StateFrom(r)
	if !ok {
		return r
	}
	if _, exists := state.Params[key]; !exists {
		return r
	}
	params := maps.Clone(state.Params)
	delete(params, key)
	next := &adapter.State{Params: params, Body: state.Body, BodyErr: state.BodyErr, Values: state.Values}
	return r.WithContext(context.WithValue(r.Context(), router.StateKey, next))
}

// ShareValue stores any value for the rest of the request. Framework
// middleware and controllers read it with Get on the request or context.
func ShareValue(r *http.Request, key string, val any) *http.Request {
	r, state := adapter.EnsureState(r)
	state.Values.Set(key, val)
	return r
}
