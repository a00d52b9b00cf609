package core

import (
	"net/http"

	"github.com/iaconlabs/warpcore/adapter"
	"github.com/iaconlabs/warpcore/platform"
)

// RequestMethod scopes middleware to one method.
type RequestMethod = platform.RequestMethod

const (
	MethodAll     = platform.MethodAll
	MethodGet     = platform.MethodGet
	MethodPost    = platform.MethodPost
	MethodPut     = platform.MethodPut
	MethodDelete  = platform.MethodDelete
	MethodPatch   = platform.MethodPatch
	MethodOptions = platform.MethodOptions
	MethodHead    = platform.MethodHead
	MethodSearch  = platform.MethodSearch
)

// Middleware runs before route handlers. It calls next to continue or
// answers through res.
type Middleware interface {
	Use(req *platform.Request, res *platform.Response, next platform.NextFunc) error
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(req *platform.Request, res *platform.Response, next platform.NextFunc) error

// Use calls f.
func (f MiddlewareFunc) Use(req *platform.Request, res *platform.Response, next platform.NextFunc) error {
	return f(req, res, next)
}

// RouteInfo selects the requests of a middleware binding.
type RouteInfo struct {
	Path   string
	Method RequestMethod
}

// MiddlewareConsumer collects the middleware bindings of a module.
type MiddlewareConsumer struct {
	bindings []*binding
}

type binding struct {
	middlewares []Middleware
	exclude     []RouteInfo
	routes      []RouteInfo
}

// MiddlewareConfig is a binding under construction.
type MiddlewareConfig struct {
	consumer *MiddlewareConsumer
	binding  *binding
}

// Apply starts a binding of mws. They run in the given order.
func (c *MiddlewareConsumer) Apply(mws ...Middleware) *MiddlewareConfig {
	return &MiddlewareConfig{consumer: c, binding: &binding{middlewares: mws}}
}

// Exclude skips the middleware for the given routes.
func (m *MiddlewareConfig) Exclude(routes ...RouteInfo) *MiddlewareConfig {
	m.binding.exclude = append(m.binding.exclude, routes...)
	return m
}

// ForRoutes binds the middleware to routes.
func (m *MiddlewareConfig) ForRoutes(routes ...RouteInfo) *MiddlewareConsumer {
	m.binding.routes = append(m.binding.routes, routes...)
	m.consumer.bindings = append(m.consumer.bindings, m.binding)
	return m.consumer
}

// ForPaths binds the middleware to paths for every method.
func (m *MiddlewareConfig) ForPaths(paths ...string) *MiddlewareConsumer {
	routes := make([]RouteInfo, 0, len(paths))
	for _, p := range paths {
		routes = append(routes, RouteInfo{Path: p, Method: MethodAll})
	}
	return m.ForRoutes(routes...)
}

// ForControllers binds the middleware to every route of the controllers.
func (m *MiddlewareConfig) ForControllers(ctrls ...Controller) *MiddlewareConsumer {
	var routes []RouteInfo
	for _, c := range ctrls {
		for _, r := range collect(c) {
			routes = append(routes, RouteInfo{Path: r.path, Method: methodOf(r.method)})
		}
	}
	return m.ForRoutes(routes...)
}

// methodOf maps a route method to the middleware scope covering it. HEAD
// requests are also served by GET routes, so they stay unscoped.
func methodOf(method string) RequestMethod {
	switch method {
	case http.MethodGet:
		return MethodGet
	case http.MethodPost:
		return MethodPost
	case http.MethodPut:
		return MethodPut
	case http.MethodDelete:
		return MethodDelete
	case http.MethodPatch:
		return MethodPatch
	case http.MethodOptions:
		return MethodOptions
	}
	return MethodAll
}

// matcher is a compiled RouteInfo.
type matcher struct {
	method  string
	pattern *adapter.Pattern
}

func (m matcher) matches(req *platform.Request) bool {
	if m.method != "" && m.method != req.Method() {
		return false
	}
	_, ok := m.pattern.Match(req.Path())
	return ok
}

// skipping wraps mw so that requests matched by excluded go straight to next.
func skipping(mw Middleware, excluded []matcher) platform.Handler {
	if len(excluded) == 0 {
		return mw.Use
	}
	return func(req *platform.Request, res *platform.Response, next platform.NextFunc) error {
		for _, ex := range excluded {
			if ex.matches(req) {
				return next()
			}
		}
		return mw.Use(req, res, next)
	}
}
