package adapter

import (
	"net/http"
	"sort"
	"sync"

	"github.com/iaconlabs/warpcore/router"
)

// Route is a registration waiting to be mounted on a concrete engine.
type Route struct {
	Method string
	// Path is the full neutral path, group prefixes included.
	Path string
	// Handler is the route handler already wrapped by its middleware onion.
	Handler http.Handler
}

// table is shared by a router and all of its groups.
type table struct {
	mu       sync.Mutex
	routes   []*Route
	notFound http.Handler
	once     sync.Once
}

// Base implements the engine independent half of [router.Router]: prefixes,
// middleware isolation between groups, onion construction and the one-shot
// mount. Engines embed it and provide ServeHTTP, Group and Engine.
type Base struct {
	prefix      string
	middlewares []router.Middleware
	table       *table
}

// NewBase returns the root registration state of a router.
func NewBase() Base {
	return Base{table: &table{}}
}

// Sub returns the registration state of a group. Middlewares registered so
// far are inherited; later calls to Use on either side stay isolated.
func (b *Base) Sub(prefix string) Base {
	mws := make([]router.Middleware, len(b.middlewares))
	copy(mws, b.middlewares)
	return Base{
		prefix:      CleanPrefix(b.prefix, prefix),
		middlewares: mws,
		table:       b.table,
	}
}

// Prefix returns the group prefix.
func (b *Base) Prefix() string { return b.prefix }

// Use adds middlewares to the local stack.
func (b *Base) Use(mws ...router.Middleware) {
	b.middlewares = append(b.middlewares, mws...)
}

// Param retrieves a path parameter from the request state.
func (b *Base) Param(r *http.Request, key string) string {
	return LookupParam(r, key)
}

// NotFound sets the handler for unmatched requests.
func (b *Base) NotFound(h http.HandlerFunc) {
	b.table.mu.Lock()
	defer b.table.mu.Unlock()
	b.table.notFound = h
}

func (b *Base) GET(p string, h http.HandlerFunc, m ...router.Middleware) {
	b.Handle(http.MethodGet, p, h, m...)
}

func (b *Base) POST(p string, h http.HandlerFunc, m ...router.Middleware) {
	b.Handle(http.MethodPost, p, h, m...)
}

func (b *Base) PUT(p string, h http.HandlerFunc, m ...router.Middleware) {
	b.Handle(http.MethodPut, p, h, m...)
}

func (b *Base) PATCH(p string, h http.HandlerFunc, m ...router.Middleware) {
	b.Handle(http.MethodPatch, p, h, m...)
}

func (b *Base) DELETE(p string, h http.HandlerFunc, m ...router.Middleware) {
	b.Handle(http.MethodDelete, p, h, m...)
}

func (b *Base) OPTIONS(p string, h http.HandlerFunc, m ...router.Middleware) {
	b.Handle(http.MethodOptions, p, h, m...)
}

// ANY registers the handler for every method in [router.AnyMethods].
func (b *Base) ANY(p string, h http.HandlerFunc, m ...router.Middleware) {
	for _, method := range router.AnyMethods {
		b.Handle(method, p, h, m...)
	}
}

// HandleFunc registers an ordinary function for a specific method and path.
func (b *Base) HandleFunc(method, p string, h http.HandlerFunc, m ...router.Middleware) {
	b.Handle(method, p, h, m...)
}

// Handle registers the handler for the given method and path. Group
// middlewares are the outer layers, route middlewares the inner ones.
func (b *Base) Handle(method, p string, h http.Handler, m ...router.Middleware) {
	var onion http.Handler = h
	for i := len(m) - 1; i >= 0; i-- {
		onion = m[i](onion)
	}
	for i := len(b.middlewares) - 1; i >= 0; i-- {
		onion = b.middlewares[i](onion)
	}

	b.table.mu.Lock()
	defer b.table.mu.Unlock()
	b.table.routes = append(b.table.routes, &Route{
		Method:  method,
		Path:    JoinPaths(b.prefix, p),
		Handler: onion,
	})
}

// Mount hands every route to the engine exactly once, static routes first.
// It must be called from ServeHTTP before dispatching. notFound is called
// last with the configured handler, or nil when none was set.
func (b *Base) Mount(route func(*Route), notFound func(http.Handler)) {
	b.MountAll(func(routes []*Route, nf http.Handler) {
		for _, r := range routes {
			route(r)
		}
		if notFound != nil {
			notFound(nf)
		}
	})
}

// MountAll is Mount for engines that need to see the whole table at once,
// for instance to split it into conflict zones.
func (b *Base) MountAll(mount func(routes []*Route, notFound http.Handler)) {
	b.table.once.Do(func() {
		b.table.mu.Lock()
		routes := make([]*Route, 0, len(b.table.routes))
		seen := make(map[string]bool, len(b.table.routes))
		for _, r := range b.table.routes {
			// First registration wins: tree engines panic on duplicates.
			key := r.Method + " " + StripExtensions(r.Path)
			if seen[key] {
				continue
			}
			seen[key] = true
			routes = append(routes, r)
		}
		nf := b.table.notFound
		b.table.mu.Unlock()

		sort.SliceStable(routes, func(i, j int) bool {
			return Score(routes[i].Path) < Score(routes[j].Path)
		})
		mount(routes, nf)
	})
}
