// Package chiadapter provides the warpcore router engine for go-chi.
// It is the default engine: chi is a thin layer over net/http and needs no
// request translation.
package chiadapter

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iaconlabs/warpcore/adapter"
	"github.com/iaconlabs/warpcore/router"
)

var _ router.Router = (*ChiAdapter)(nil)

var standardMethods = map[string]bool{
	http.MethodGet: true, http.MethodHead: true, http.MethodPost: true,
	http.MethodPut: true, http.MethodPatch: true, http.MethodDelete: true,
	http.MethodOptions: true, http.MethodConnect: true, http.MethodTrace: true,
}

// ChiAdapter implements router.Router using the chi v5 router.
type ChiAdapter struct {
	adapter.Base
	mux *chi.Mux
}

// NewChiAdapter initializes a new adapter with an empty chi router.
func NewChiAdapter() *ChiAdapter {
	return &ChiAdapter{Base: adapter.NewBase(), mux: chi.NewRouter()}
}

// Group returns a new adapter instance for the specified prefix.
func (a *ChiAdapter) Group(prefix string) router.Router {
	return &ChiAdapter{Base: a.Sub(prefix), mux: a.mux}
}

// ServeHTTP mounts pending routes and dispatches to the chi multiplexer.
func (a *ChiAdapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.Mount(a.mount, a.notFound)
	r, _ = adapter.EnsureState(r)
	a.mux.ServeHTTP(w, r)
}

// Engine returns the underlying *chi.Mux.
func (a *ChiAdapter) Engine() any { return a.mux }

func (a *ChiAdapter) mount(rt *adapter.Route) {
	chiPath, wildcard := translate(rt.Path)
	if !standardMethods[rt.Method] {
		chi.RegisterMethod(rt.Method)
	}
	a.mux.Method(rt.Method, chiPath, syncParams(rt.Handler, wildcard))
}

func (a *ChiAdapter) notFound(h http.Handler) {
	if h == nil {
		return
	}
	a.mux.NotFound(h.ServeHTTP)
	a.mux.MethodNotAllowed(h.ServeHTTP)
}

// translate converts a neutral path to chi syntax and reports the catch-all name.
func translate(path string) (string, string) {
	wildcard := ""
	if before, name, found := adapter.SplitWildcard(path); found {
		wildcard = name
		if wildcard == "" {
			wildcard = "any"
		}
		path = before + "*"
	}
	return adapter.TranslatePath(path), wildcard
}

// syncParams copies chi's URL params into the request state.
func syncParams(onion http.Handler, wildcard string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params := make(map[string]string)
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			for i, key := range rctx.URLParams.Keys {
				val := rctx.URLParams.Values[i]
				if key == "*" && wildcard != "" {
					params[wildcard] = val
					params["*"] = val
					continue
				}
				params[key] = val
			}
		}
		onion.ServeHTTP(w, adapter.WithParams(r, params))
	})
}
