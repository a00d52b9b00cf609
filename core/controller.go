package core

import (
	"net/http"

	"github.com/iaconlabs/warpcore/adapter"
)

// HandlerFunc serves a route. The returned value becomes the response body
// unless the handler took over the response.
type HandlerFunc func(c *Context) (any, error)

// Controller declares routes on a RouteBuilder.
type Controller interface {
	Routes(r *RouteBuilder)
}

// ControllerFunc adapts a function to Controller.
type ControllerFunc func(r *RouteBuilder)

// Routes calls f.
func (f ControllerFunc) Routes(r *RouteBuilder) { f(r) }

// RedirectResult redirects the request when returned by a handler. Empty
// fields fall back to the Redirect option of the route.
type RedirectResult struct {
	URL    string
	Status int
}

// RouteOption customizes a route.
type RouteOption func(*route)

// HTTPCode replaces the default status of the route.
func HTTPCode(code int) RouteOption {
	return func(r *route) { r.status = code }
}

// Header sets a response header on every reply of the route.
func Header(name, value string) RouteOption {
	return func(r *route) { r.headers = append(r.headers, [2]string{name, value}) }
}

// Redirect answers every request of the route with a redirect. A zero
// status means 302.
func Redirect(url string, status int) RouteOption {
	return func(r *route) { r.redirect = &RedirectResult{URL: url, Status: status} }
}

type route struct {
	method   string // "" for every method
	path     string
	host     *adapter.Pattern
	handler  HandlerFunc
	status   int
	headers  [][2]string
	redirect *RedirectResult
}

// RouteBuilder collects the routes of one controller. Prefix and Host apply
// to every route of the controller, wherever they are called.
type RouteBuilder struct {
	prefix string
	host   *adapter.Pattern
	routes []*route
}

// Prefix sets the path prefix of the controller.
func (b *RouteBuilder) Prefix(prefix string) *RouteBuilder {
	b.prefix = prefix
	return b
}

// Host restricts the controller to hosts matching pattern, such as
// ":account.example.com". Captured values are read with Context.HostParam.
func (b *RouteBuilder) Host(pattern string) *RouteBuilder {
	b.host = adapter.CompileHostPattern(pattern)
	return b
}

func (b *RouteBuilder) Get(path string, h HandlerFunc, opts ...RouteOption) {
	b.add(http.MethodGet, path, h, opts)
}

func (b *RouteBuilder) Post(path string, h HandlerFunc, opts ...RouteOption) {
	b.add(http.MethodPost, path, h, opts)
}

func (b *RouteBuilder) Put(path string, h HandlerFunc, opts ...RouteOption) {
	b.add(http.MethodPut, path, h, opts)
}

func (b *RouteBuilder) Delete(path string, h HandlerFunc, opts ...RouteOption) {
	b.add(http.MethodDelete, path, h, opts)
}

func (b *RouteBuilder) Patch(path string, h HandlerFunc, opts ...RouteOption) {
	b.add(http.MethodPatch, path, h, opts)
}

func (b *RouteBuilder) Options(path string, h HandlerFunc, opts ...RouteOption) {
	b.add(http.MethodOptions, path, h, opts)
}

func (b *RouteBuilder) Head(path string, h HandlerFunc, opts ...RouteOption) {
	b.add(http.MethodHead, path, h, opts)
}

// All registers h for every method.
func (b *RouteBuilder) All(path string, h HandlerFunc, opts ...RouteOption) {
	b.add("", path, h, opts)
}

func (b *RouteBuilder) add(method, path string, h HandlerFunc, opts []RouteOption) {
	r := &route{method: method, path: path, handler: h}
	for _, opt := range opts {
		opt(r)
	}
	b.routes = append(b.routes, r)
}

// build returns the routes with the controller prefix and host applied.
func (b *RouteBuilder) build() []*route {
	out := make([]*route, 0, len(b.routes))
	for _, r := range b.routes {
		cp := *r
		cp.path = adapter.JoinPaths(b.prefix, r.path)
		cp.host = b.host
		out = append(out, &cp)
	}
	return out
}

func collect(c Controller) []*route {
	b := &RouteBuilder{}
	c.Routes(b)
	return b.build()
}
