// Package ginadapter provides the warpcore router engine for the Gin web framework.
package ginadapter

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/iaconlabs/warpcore/adapter"
	"github.com/iaconlabs/warpcore/router"
)

var _ router.Router = (*GinAdapter)(nil)

// GinAdapter implements router.Router using the Gin framework. Prefixes
// where Gin's tree would reject a parameter next to a catch-all are served
// through an [adapter.Zone].
type GinAdapter struct {
	adapter.Base
	engine *gin.Engine
}

// NewGinAdapter initializes a new adapter with an internal Gin engine in release mode.
func NewGinAdapter() *GinAdapter {
	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.RedirectTrailingSlash = false
	return &GinAdapter{Base: adapter.NewBase(), engine: e}
}

// Group creates a new route group with a common prefix and inherited middlewares.
func (a *GinAdapter) Group(prefix string) router.Router {
	return &GinAdapter{Base: a.Sub(prefix), engine: a.engine}
}

// ServeHTTP mounts pending routes and passes the request, state attached, to Gin.
func (a *GinAdapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.MountAll(a.mount)
	r, _ = adapter.EnsureState(r)
	a.engine.ServeHTTP(w, r)
}

// Engine returns the underlying *gin.Engine instance.
func (a *GinAdapter) Engine() any { return a.engine }

func (a *GinAdapter) mount(routes []*adapter.Route, notFound http.Handler) {
	if notFound == nil {
		notFound = http.NotFoundHandler()
	} else {
		a.engine.NoRoute(func(c *gin.Context) {
			notFound.ServeHTTP(c.Writer, c.Request)
		})
	}

	native, zones := adapter.SplitZones(routes)
	for _, rt := range native {
		path, wildcard := translate(rt.Path)
		a.engine.Handle(rt.Method, path, wrap(rt.Handler, wildcard))
	}

	for _, z := range zones {
		h := dispatch(z, notFound)
		for _, method := range z.Methods() {
			a.engine.Handle(method, z.CatchAll()+"*any", h)
		}
	}
}

// translate converts a neutral path to Gin syntax and reports the catch-all name.
func translate(path string) (string, string) {
	path = adapter.StripExtensions(path)
	before, name, found := adapter.SplitWildcard(path)
	if !found {
		return path, ""
	}
	if name == "" {
		name = "any"
	}
	return before + "*" + name, name
}

func wrap(onion http.Handler, wildcard string) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := make(map[string]string, len(c.Params)+1)
		for _, p := range c.Params {
			params[p.Key] = p.Value
		}
		if wildcard != "" {
			// Gin keeps the leading slash of catch-all values.
			val := strings.TrimPrefix(c.Param(wildcard), "/")
			params[wildcard] = val
			params["*"] = val
		}
		onion.ServeHTTP(c.Writer, adapter.WithParams(c.Request, params))
	}
}

func dispatch(z *adapter.Zone, notFound http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		rt, params, ok := z.Match(c.Request.Method, c.Request.URL.Path)
		if !ok {
			notFound.ServeHTTP(c.Writer, c.Request)
			return
		}
		rt.Handler.ServeHTTP(c.Writer, adapter.WithParams(c.Request, params))
	}
}
