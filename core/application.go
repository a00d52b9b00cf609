package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"go.uber.org/multierr"

	"github.com/iaconlabs/warpcore/adapter"
	"github.com/iaconlabs/warpcore/platform"
	"github.com/iaconlabs/warpcore/router"
	"github.com/iaconlabs/warpcore/server"
)

// Options configures an Application. Every field is optional.
type Options struct {
	Logger *slog.Logger
	// Server configures the HTTP server started by Listen.
	Server server.Config
	// DisableBodyParser leaves request bodies unparsed.
	DisableBodyParser bool
	// RawBody keeps the unparsed bytes next to the parsed body.
	RawBody bool
	// BodyLimit rejects larger bodies with 413 when positive.
	BodyLimit int64
	// Cors enables CORS when set.
	Cors         *platform.CORSOptions
	GlobalPrefix string
}

// Application serves a root module through an HTTP adapter.
type Application struct {
	root    *Module
	adapter platform.HTTPAdapter
	opts    Options
	logger  *slog.Logger

	mu          sync.Mutex
	prefix      string
	filters     []ExceptionFilter
	insts       []any
	initialized bool
	initErr     error
	closed      bool
}

// New returns an application for root. Routes are registered by Init,
// which Listen and ServeHTTP call when needed.
func New(root *Module, a platform.HTTPAdapter, opts Options) *Application {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Application{
		root:    root,
		adapter: a,
		opts:    opts,
		logger:  logger,
		prefix:  opts.GlobalPrefix,
	}
}

// HTTPAdapter returns the adapter the application runs on.
func (app *Application) HTTPAdapter() platform.HTTPAdapter { return app.adapter }

// SetGlobalPrefix prefixes every route and module middleware path. It has
// no effect after Init.
func (app *Application) SetGlobalPrefix(prefix string) *Application {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.prefix = prefix
	return app
}

// UseGlobalFilters appends exception filters. They run in order before the
// built-in filter.
func (app *Application) UseGlobalFilters(filters ...ExceptionFilter) *Application {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.filters = append(app.filters, filters...)
	return app
}

// Use adds middleware for every request.
func (app *Application) Use(mws ...Middleware) *Application {
	for _, mw := range mws {
		app.adapter.Use("", mw.Use)
	}
	return app
}

// UseMiddleware adds net/http middleware around the whole application.
func (app *Application) UseMiddleware(mws ...router.Middleware) *Application {
	app.adapter.UseRouter(mws...)
	return app
}

func (app *Application) EnableCors(opts platform.CORSOptions) error {
	return app.adapter.EnableCors(opts)
}

func (app *Application) UseBodyParser(contentType string, parser platform.BodyParser) *Application {
	app.adapter.UseBodyParser(contentType, parser)
	return app
}

func (app *Application) UseBodyLimit(limit int64) *Application {
	app.adapter.UseBodyLimit(limit)
	return app
}

func (app *Application) UseStaticAssets(prefix string, opts platform.StaticOptions) error {
	return app.adapter.UseStaticAssets(prefix, opts)
}

// Init registers middleware and routes and runs the init hooks. Only the
// first call does anything; later calls return its result.
func (app *Application) Init(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()
	if !app.initialized {
		app.initialized = true
		app.initErr = app.init(ctx)
	}
	return app.initErr
}

func (app *Application) init(ctx context.Context) error {
	app.adapter.InitHTTPServer(app.opts.Server)
	if !app.opts.DisableBodyParser {
		app.adapter.RegisterParserMiddleware(app.opts.RawBody)
	}
	if app.opts.BodyLimit > 0 {
		app.adapter.UseBodyLimit(app.opts.BodyLimit)
	}
	if app.opts.Cors != nil {
		if err := app.adapter.EnableCors(*app.opts.Cors); err != nil {
			return fmt.Errorf("core: enable cors: %w", err)
		}
	}

	modules := resolve(app.root)
	for _, m := range modules {
		if m.Configure == nil {
			continue
		}
		consumer := &MiddlewareConsumer{}
		m.Configure(consumer)
		if err := app.applyMiddleware(consumer); err != nil {
			return fmt.Errorf("core: configure %s: %w", m, err)
		}
	}

	n := app.registerRoutes(modules)
	app.adapter.SetErrorHandler(app.handleError)
	app.adapter.SetNotFoundHandler(notFound)

	app.insts = instances(modules)
	if err := callInit(ctx, app.insts); err != nil {
		return fmt.Errorf("core: init hooks: %w", err)
	}

	app.logger.Info("application initialized",
		"modules", len(modules), "routes", n, "adapter", app.adapter.GetType())
	return nil
}

// path applies the global prefix.
func (app *Application) path(p string) string {
	if app.prefix == "" {
		return p
	}
	switch p {
	case "", "*", "/*", "(.*)", "/(.*)":
		return adapter.JoinPaths(app.prefix, "*")
	}
	return adapter.JoinPaths(app.prefix, p)
}

func (app *Application) applyMiddleware(consumer *MiddlewareConsumer) error {
	for _, b := range consumer.bindings {
		excluded := make([]matcher, 0, len(b.exclude))
		for _, ex := range b.exclude {
			m := matcher{pattern: adapter.CompilePattern(app.path(ex.Path))}
			if ex.Method != MethodAll {
				m.method = ex.Method.String()
			}
			excluded = append(excluded, m)
		}

		for _, r := range b.routes {
			register := app.adapter.CreateMiddlewareFactory(r.Method)
			for _, mw := range b.middlewares {
				err := register(app.path(r.Path), skipping(mw, excluded))
				if errors.Is(err, platform.ErrUnsupportedMethod) {
					break
				}
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// routeGroup holds the routes sharing a method and path. They differ by
// host and the first matching host wins.
type routeGroup struct {
	method string
	path   string
	routes []*route
}

func (app *Application) registerRoutes(modules []*Module) int {
	groups := make(map[string]*routeGroup)
	var order []*routeGroup
	for _, m := range modules {
		for _, c := range m.Controllers {
			for _, r := range collect(c) {
				path := app.path(r.path)
				key := r.method + " " + adapter.StripExtensions(path)
				g, ok := groups[key]
				if !ok {
					g = &routeGroup{method: r.method, path: path}
					groups[key] = g
					order = append(order, g)
				}
				g.routes = append(g.routes, r)
			}
		}
	}

	for _, g := range order {
		h := app.routeHandler(g.routes)
		switch g.method {
		case http.MethodGet:
			app.adapter.Get(g.path, h)
		case http.MethodPost:
			app.adapter.Post(g.path, h)
		case http.MethodPut:
			app.adapter.Put(g.path, h)
		case http.MethodDelete:
			app.adapter.Delete(g.path, h)
		case http.MethodPatch:
			app.adapter.Patch(g.path, h)
		case http.MethodOptions:
			app.adapter.Options(g.path, h)
		case http.MethodHead:
			app.adapter.Head(g.path, h)
		default:
			app.adapter.All(g.path, h)
		}
		app.logger.Debug("mapped route", "method", methodLabel(g.method), "path", g.path)
	}
	return len(order)
}

func methodLabel(method string) string {
	if method == "" {
		return "ALL"
	}
	return method
}

func (app *Application) routeHandler(routes []*route) platform.Handler {
	return func(req *platform.Request, res *platform.Response, _ platform.NextFunc) error {
		host := req.Hostname()
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}

		for _, r := range routes {
			if r.host == nil {
				return app.invoke(r, newContext(req, res))
			}
			if hosts, ok := r.host.Match(host); ok {
				req.SetHosts(hosts)
				return app.invoke(r, newContext(req, res))
			}
		}
		return cannot(req)
	}
}

func (app *Application) invoke(r *route, c *Context) error {
	status := r.status
	if status == 0 {
		status = http.StatusOK
		if r.method == http.MethodPost {
			status = http.StatusCreated
		}
	}
	app.adapter.Status(c.res, status)
	for _, h := range r.headers {
		app.adapter.SetHeader(c.res, h[0], h[1])
	}

	result, err := r.handler(c)
	if err != nil {
		return err
	}
	if c.mode == modeLibrary || app.adapter.IsHeadersSent(c.res) {
		return nil
	}

	if url, code, ok := redirectOf(r, result); ok {
		app.adapter.Redirect(c.res, code, url)
		return nil
	}
	app.adapter.Reply(c.res, result, 0)
	return nil
}

// redirectOf merges a returned RedirectResult over the Redirect option.
func redirectOf(r *route, result any) (string, int, bool) {
	var rr *RedirectResult
	switch v := result.(type) {
	case RedirectResult:
		rr = &v
	case *RedirectResult:
		rr = v
	}
	if rr == nil && r.redirect == nil {
		return "", 0, false
	}

	var url string
	var code int
	if r.redirect != nil {
		url, code = r.redirect.URL, r.redirect.Status
	}
	if rr != nil {
		if rr.URL != "" {
			url = rr.URL
		}
		if rr.Status != 0 {
			code = rr.Status
		}
	}
	if code == 0 {
		code = http.StatusFound
	}
	return url, code, true
}

func cannot(req *platform.Request) error {
	return NewNotFoundException(fmt.Sprintf("Cannot %s %s", req.Method(), req.Path()))
}

func notFound(req *platform.Request, _ *platform.Response, _ platform.NextFunc) error {
	return cannot(req)
}

// handleError runs the global filters and then the built-in one.
func (app *Application) handleError(err error, req *platform.Request, res *platform.Response) {
	app.mu.Lock()
	filters := app.filters
	app.mu.Unlock()

	c := newContext(req, res)
	for _, f := range filters {
		if err = f.Catch(err, c); err == nil {
			return
		}
	}

	body, known := exceptionBody(err)
	if !known {
		app.logger.Error("unhandled exception",
			"error", err, "request_id", req.ID(), "method", req.Method(), "path", req.Path())
	}
	app.adapter.Reply(res, body, body.StatusCode)
}

// ServeHTTP initializes the application on first use and serves r.
func (app *Application) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := app.Init(context.WithoutCancel(r.Context())); err != nil {
		app.logger.Error("application failed to initialize", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	app.adapter.ServeHTTP(w, r)
}

// Listen initializes the application and starts serving on addr. It
// returns once the server accepts connections.
func (app *Application) Listen(ctx context.Context, addr string) error {
	if err := app.Init(ctx); err != nil {
		return err
	}
	return app.adapter.Listen(ctx, addr)
}

// URL returns the base URL of the running server, or "".
func (app *Application) URL() string {
	addr := app.adapter.Address()
	if addr == "" {
		return ""
	}
	return "http://" + addr
}

// Close shuts the application down.
func (app *Application) Close(ctx context.Context) error {
	return app.Shutdown(ctx, "")
}

// Shutdown runs the destroy hooks, stops the server and runs the shutdown
// hooks. Every hook runs even when another failed; the errors are combined.
func (app *Application) Shutdown(ctx context.Context, signal string) error {
	app.mu.Lock()
	if app.closed {
		app.mu.Unlock()
		return nil
	}
	app.closed = true
	insts := reversed(app.insts)
	app.mu.Unlock()

	var err error
	for _, inst := range insts {
		if h, ok := inst.(OnModuleDestroy); ok {
			err = multierr.Append(err, h.OnModuleDestroy(ctx))
		}
	}
	for _, inst := range insts {
		if h, ok := inst.(BeforeApplicationShutdown); ok {
			err = multierr.Append(err, h.BeforeApplicationShutdown(ctx, signal))
		}
	}
	if cerr := app.adapter.Close(ctx); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("core: close server: %w", cerr))
	}
	for _, inst := range insts {
		if h, ok := inst.(OnApplicationShutdown); ok {
			err = multierr.Append(err, h.OnApplicationShutdown(ctx, signal))
		}
	}

	if err != nil {
		app.logger.Error("application shutdown", "error", err)
	} else {
		app.logger.Info("application shut down", "signal", signal)
	}
	return err
}
