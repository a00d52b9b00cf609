// Package platform implements the HTTP abstraction the framework in core is
// written against. RouterAdapter drives any router.Router: it bridges each
// request into a Request/Response pair, runs framework middleware, renders
// handler results and owns the server lifecycle.
package platform

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/iaconlabs/warpcore/adapter"
	"github.com/iaconlabs/warpcore/router"
	"github.com/iaconlabs/warpcore/server"
)

// NextFunc continues a middleware chain and returns the first error raised
// further down.
type NextFunc func() error

// Handler is the shape of route handlers, framework middleware and the
// not-found handler. Route handlers receive a no-op next.
type Handler func(req *Request, res *Response, next NextFunc) error

// ErrorHandler answers a request whose handling failed.
type ErrorHandler func(err error, req *Request, res *Response)

// BodyParser turns the captured body into the value returned by Request.Body.
type BodyParser func(req *Request) (any, error)

// RequestMethod selects the methods a middleware factory scopes to.
type RequestMethod int

const (
	MethodAll RequestMethod = iota
	MethodGet
	MethodPost
	MethodPut
	MethodDelete
	MethodPatch
	MethodOptions
	MethodHead
	MethodSearch
)

var methodNames = map[RequestMethod]string{
	MethodAll:     "ALL",
	MethodGet:     http.MethodGet,
	MethodPost:    http.MethodPost,
	MethodPut:     http.MethodPut,
	MethodDelete:  http.MethodDelete,
	MethodPatch:   http.MethodPatch,
	MethodOptions: http.MethodOptions,
	MethodHead:    http.MethodHead,
	MethodSearch:  "SEARCH",
}

func (m RequestMethod) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return "UNKNOWN"
}

// HTTPAdapter is the set of hooks the framework uses to talk HTTP.
type HTTPAdapter interface {
	http.Handler

	Get(path string, h Handler)
	Post(path string, h Handler)
	Put(path string, h Handler)
	Delete(path string, h Handler)
	Patch(path string, h Handler)
	Options(path string, h Handler)
	Head(path string, h Handler)
	All(path string, h Handler)

	Use(path string, h Handler)
	UseRouter(mws ...router.Middleware)
	CreateMiddlewareFactory(method RequestMethod) func(path string, h Handler) error

	Status(res *Response, code int)
	Reply(res *Response, body any, status int)
	End(res *Response, msg ...string)
	Render(res *Response, view string, data any) error
	Redirect(res *Response, status int, url string)
	SetHeader(res *Response, name, value string)
	GetHeader(res *Response, name string) string
	AppendHeader(res *Response, name, value string)
	IsHeadersSent(res *Response) bool

	GetRequestHostname(req *Request) string
	GetRequestMethod(req *Request) string
	GetRequestURL(req *Request) string

	SetErrorHandler(h ErrorHandler)
	SetNotFoundHandler(h Handler)

	EnableCors(opts CORSOptions) error
	UseBodyParser(contentType string, parser BodyParser)
	RegisterParserMiddleware(rawBody bool)
	UseBodyLimit(limit int64)
	UseStaticAssets(prefix string, opts StaticOptions) error
	SetViewEngine(engine any) error
	ApplyVersionFilter() error

	InitHTTPServer(cfg server.Config)
	Listen(ctx context.Context, addr string) error
	Close(ctx context.Context) error
	Address() string
	GetType() string
	Instance() router.Router
}

var _ HTTPAdapter = (*RouterAdapter)(nil)

// Options customizes a RouterAdapter. Every field is optional.
type Options struct {
	Logger *slog.Logger
	// EngineName is reported by GetType.
	EngineName string
	// Stack adds the stack trace to logged panics.
	Stack bool

	// InitHTTPServer replaces the default server.
	InitHTTPServer func(cfg InitConfig) Server
	// Listen is called by Listen before anything else. Without a custom
	// server the adapter then runs on a fake server.
	Listen func(ctx context.Context, cfg ListenConfig) error
	// Address reports the fake server address. Defaults to 127.0.0.1.
	Address func() string
	// Close shuts the fake server down.
	Close func(ctx context.Context) error
}

type scoped struct {
	method  string
	pattern *adapter.Pattern
	handler Handler
}

func (s scoped) matches(method, path string) bool {
	if s.method != "" && s.method != method {
		return false
	}
	if s.pattern == nil {
		return true
	}
	_, ok := s.pattern.Match(path)
	return ok
}

// RouterAdapter implements HTTPAdapter over a router.Router.
type RouterAdapter struct {
	router router.Router
	opts   Options
	logger *slog.Logger

	mu                sync.RWMutex
	middlewares       []scoped
	raw               []router.Middleware
	parsers           map[string]BodyParser
	parsersRegistered bool
	rawBody           bool
	bodyLimit         int64
	errorHandler      ErrorHandler
	notFound          Handler
	heads             map[string]*headRoute

	once    sync.Once
	handler http.Handler

	lifecycle
}

// New returns an adapter driving r.
func New(r router.Router, opts Options) *RouterAdapter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RouterAdapter{
		router:  r,
		opts:    opts,
		logger:  logger,
		parsers: make(map[string]BodyParser),
		heads:   make(map[string]*headRoute),
	}
}

// Instance returns the driven router.
func (a *RouterAdapter) Instance() router.Router { return a.router }

// GetType names the adapter and its engine.
func (a *RouterAdapter) GetType() string {
	if a.opts.EngineName == "" {
		return "warpcore"
	}
	return "warpcore/" + a.opts.EngineName
}

func (a *RouterAdapter) Get(path string, h Handler)     { a.route(http.MethodGet, path, h) }
func (a *RouterAdapter) Post(path string, h Handler)    { a.route(http.MethodPost, path, h) }
func (a *RouterAdapter) Put(path string, h Handler)     { a.route(http.MethodPut, path, h) }
func (a *RouterAdapter) Delete(path string, h Handler)  { a.route(http.MethodDelete, path, h) }
func (a *RouterAdapter) Patch(path string, h Handler)   { a.route(http.MethodPatch, path, h) }
func (a *RouterAdapter) Options(path string, h Handler) { a.route(http.MethodOptions, path, h) }
func (a *RouterAdapter) Head(path string, h Handler)    { a.route(http.MethodHead, path, h) }

// All registers h for every method in router.AnyMethods.
func (a *RouterAdapter) All(path string, h Handler) {
	for _, m := range router.AnyMethods {
		a.route(m, path, h)
	}
}

func (a *RouterAdapter) route(method, path string, h Handler) {
	if path == "" {
		path = "/"
	}
	if method == http.MethodGet || method == http.MethodHead {
		a.mountHead(method, path, h)
	}
	if method != http.MethodHead {
		a.router.Handle(method, path, a.routeHandler(h))
	}
}

// headRoute answers HEAD for one path: with the HEAD handler when one was
// registered, else with the GET handler minus the body.
type headRoute struct {
	head, get Handler
}

func (a *RouterAdapter) mountHead(method, path string, h Handler) {
	key := adapter.StripExtensions(path)

	a.mu.Lock()
	hr, mounted := a.heads[key]
	if !mounted {
		hr = &headRoute{}
		a.heads[key] = hr
	}
	switch {
	case method == http.MethodHead && hr.head == nil:
		hr.head = h
	case method == http.MethodGet && hr.get == nil:
		hr.get = h
	}
	a.mu.Unlock()

	if mounted {
		return
	}
	a.router.Handle(http.MethodHead, path, a.routeHandler(func(req *Request, res *Response, next NextFunc) error {
		a.mu.RLock()
		serve := hr.head
		if serve == nil {
			serve = hr.get
		}
		a.mu.RUnlock()
		return serve(req, res, next)
	}))
}

// Use registers framework middleware for every method. An empty path or
// "*" applies it to every request.
func (a *RouterAdapter) Use(path string, h Handler) {
	a.addMiddleware("", path, h)
}

// UseRouter adds raw middlewares. They run before framework middleware and
// must be registered before the first request.
func (a *RouterAdapter) UseRouter(mws ...router.Middleware) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.raw = append(a.raw, mws...)
}

// CreateMiddlewareFactory returns a registrar scoping middleware to one
// request method. Methods other than ALL, GET, POST, PUT, DELETE, PATCH and
// OPTIONS are rejected.
func (a *RouterAdapter) CreateMiddlewareFactory(method RequestMethod) func(path string, h Handler) error {
	return func(path string, h Handler) error {
		switch method {
		case MethodAll:
			a.addMiddleware("", path, h)
		case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch, MethodOptions:
			a.addMiddleware(method.String(), path, h)
		default:
			a.logger.Warn("createMiddlewareFactory: unsupported method", "method", method.String(), "path", path)
			return ErrUnsupportedMethod
		}
		return nil
	}
}

func (a *RouterAdapter) addMiddleware(method, path string, h Handler) {
	m := scoped{method: method, handler: h}
	switch path {
	case "", "*", "/*", "(.*)", "/(.*)":
	default:
		m.pattern = adapter.CompilePattern(path)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.middlewares = append(a.middlewares, m)
}

func (a *RouterAdapter) matching(method, path string) []scoped {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var chain []scoped
	for _, m := range a.middlewares {
		if m.matches(method, path) {
			chain = append(chain, m)
		}
	}
	return chain
}

// Status sets the pending status.
func (a *RouterAdapter) Status(res *Response, code int) { res.Status(code) }

// Reply mounts body, setting status first when it is not zero.
func (a *RouterAdapter) Reply(res *Response, body any, status int) {
	if status != 0 {
		res.Status(status)
	}
	res.Send(body)
}

// End finishes a response that has no data, or only msg.
func (a *RouterAdapter) End(res *Response, msg ...string) {
	if len(msg) == 0 {
		res.Send(nil)
		return
	}
	res.Send(msg[0])
}

// Render is not supported: no view engine can be configured.
func (a *RouterAdapter) Render(*Response, string, any) error { return ErrNotSupported }

// Redirect mounts a redirect to url.
func (a *RouterAdapter) Redirect(res *Response, status int, url string) {
	res.Send(res.Redirect(url, status))
}

// SetHeader sets a pending header. The value is kept as given.
func (a *RouterAdapter) SetHeader(res *Response, name, value string) {
	res.Header().Set(name, value)
}

// GetHeader reads a pending header, or a written one.
func (a *RouterAdapter) GetHeader(res *Response, name string) string {
	if v := res.Header().Get(name); v != "" {
		return v
	}
	return res.Writer().Header().Get(name)
}

// AppendHeader adds a value to a pending header.
func (a *RouterAdapter) AppendHeader(res *Response, name, value string) {
	res.Header().Add(name, value)
}

// IsHeadersSent reports whether the response reached the writer.
func (a *RouterAdapter) IsHeadersSent(res *Response) bool { return res.Written() }

// GetRequestHostname returns the Host header or "".
func (a *RouterAdapter) GetRequestHostname(req *Request) string { return req.Hostname() }

// GetRequestMethod returns the request method.
func (a *RouterAdapter) GetRequestMethod(req *Request) string { return req.Method() }

// GetRequestURL returns the absolute request URL.
func (a *RouterAdapter) GetRequestURL(req *Request) string { return req.URL() }

// SetErrorHandler installs the handler for failed requests.
func (a *RouterAdapter) SetErrorHandler(h ErrorHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errorHandler = h
}

// SetNotFoundHandler installs the handler for unmatched requests.
func (a *RouterAdapter) SetNotFoundHandler(h Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.notFound = h
}

// SetViewEngine is not supported.
func (a *RouterAdapter) SetViewEngine(any) error { return ErrNotSupported }

// ApplyVersionFilter is not supported.
func (a *RouterAdapter) ApplyVersionFilter() error { return ErrNotSupported }

// ServeHTTP builds the handler chain on first use and serves r.
func (a *RouterAdapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.once.Do(a.build)
	a.handler.ServeHTTP(w, r)
}

func (a *RouterAdapter) build() {
	a.router.NotFound(a.handleNotFound)

	a.mu.RLock()
	raw := slices.Clone(a.raw)
	a.mu.RUnlock()

	var h http.Handler = http.HandlerFunc(a.dispatch)
	for i := len(raw) - 1; i >= 0; i-- {
		h = raw[i](h)
	}
	a.handler = a.bridgeLayer(h)
}
