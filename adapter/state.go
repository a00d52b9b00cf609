// Package adapter contains the plumbing shared by every router engine: the
// per-request State, route registration, path translation and the contract
// suites each engine must pass.
package adapter

import (
	"bytes"
	"context"
	"io"
	"maps"
	"net/http"
	"strings"
	"sync"

	"github.com/iaconlabs/warpcore/router"
)

// State centralizes request metadata such as route parameters and the
// request body to avoid redundant context allocations.
type State struct {
	// Params holds a normalized map of path parameters.
	Params map[string]string
	// Body stores a cached version of the request body for multiple reads.
	Body []byte
	// BodyErr is the error hit while capturing Body, if any.
	BodyErr error
	// Values is shared by every copy of the state made during the request.
	Values *Values
}

// Values is a concurrency-safe bag of request scoped values.
type Values struct {
	mu sync.RWMutex
	m  map[string]any
}

// Get returns the value stored under key.
func (v *Values) Get(key string) (any, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.m[key]
	return val, ok
}

// Set stores val under key.
func (v *Values) Set(key string, val any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.m == nil {
		v.m = make(map[string]any)
	}
	v.m[key] = val
}

// Len reports the number of stored values.
func (v *Values) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.m)
}

// NewState returns an empty state.
func NewState() *State {
	return &State{Params: make(map[string]string), Values: &Values{}}
}

// StateFrom returns the state stored in the request context.
func StateFrom(r *http.Request) (*State, bool) {
	state, ok := r.Context().Value(router.StateKey).(*State)
	return state, ok && state != nil
}

// EnsureState returns a request carrying a state. An existing state is
// reused. A new one captures the body of non GET/HEAD requests and
// re-injects it so downstream readers still see the full stream.
func EnsureState(r *http.Request) (*http.Request, *State) {
	if state, ok := StateFrom(r); ok {
		return r, state
	}
	state := NewState()
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		state.Body, state.BodyErr = CaptureBody(r)
	}
	return r.WithContext(context.WithValue(r.Context(), router.StateKey, state)), state
}

// CaptureBody reads the whole body and replaces r.Body with a replayable reader.
func CaptureBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	body, err := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, err
}

// WithParams returns a request whose state is a copy of the current one with
// params merged in. The body and the value bag are shared with the original.
func WithParams(r *http.Request, params map[string]string) *http.Request {
	r, state := EnsureState(r)

	merged := make(map[string]string, len(state.Params)+len(params))
	maps.Copy(merged, state.Params)
	maps.Copy(merged, params)

	next := &State{Params: merged, Body: state.Body, BodyErr: state.BodyErr, Values: state.Values}
	if state.Body != nil {
		r.Body = io.NopCloser(bytes.NewReader(state.Body))
	}
	return r.WithContext(context.WithValue(r.Context(), router.StateKey, next))
}

// LookupParam retrieves a path parameter from the request state. It supports
// exact keys, keys declared with an extension (":id.json" is stored as "id")
// and the "*", "path" and "any" aliases for catch-all segments.
func LookupParam(r *http.Request, key string) string {
	state, ok := StateFrom(r)
	if !ok || state.Params == nil {
		return ""
	}

	if val, ok := state.Params[key]; ok {
		return val
	}

	if base, _, found := strings.Cut(key, "."); found {
		if val, ok := state.Params[base]; ok {
			return val
		}
	}

	switch key {
	case "*", "path", "any":
		for _, alias := range []string{"*", "path", "any"} {
			if val, ok := state.Params[alias]; ok {
				return val
			}
		}
	}
	return ""
}

// Clone creates a new string instance from the input. Engines built on
// fasthttp reuse their buffers, so strings taken from them must be copied.
func Clone(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(s)
	return b.String()
}
