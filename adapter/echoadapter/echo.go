// Package echoadapter provides the warpcore router engine for Echo v5.
package echoadapter

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/iaconlabs/warpcore/adapter"
	"github.com/iaconlabs/warpcore/router"
)

var _ router.Router = (*EchoAdapter)(nil)

// EchoAdapter implements router.Router using the Echo v5 framework.
type EchoAdapter struct {
	adapter.Base
	instance *echo.Echo
}

// NewEchoAdapter initializes a new adapter with an internal Echo v5 instance.
func NewEchoAdapter() *EchoAdapter {
	return &EchoAdapter{Base: adapter.NewBase(), instance: echo.New()}
}

// Group creates a prefixed route group.
func (a *EchoAdapter) Group(prefix string) router.Router {
	return &EchoAdapter{Base: a.Sub(prefix), instance: a.instance}
}

// ServeHTTP mounts pending routes, makes sure the request carries a state
// and hands it to Echo.
func (a *EchoAdapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.MountAll(a.mount)
	r, _ = adapter.EnsureState(r)
	a.instance.ServeHTTP(w, r)
}

// Engine returns the underlying *echo.Echo.
func (a *EchoAdapter) Engine() any { return a.instance }

func (a *EchoAdapter) mount(routes []*adapter.Route, notFound http.Handler) {
	native, zones := adapter.SplitZones(routes)
	for _, rt := range native {
		path, wildcard := translate(rt.Path)
		a.instance.Add(rt.Method, path, wrap(rt.Handler, wildcard))
	}

	for _, z := range zones {
		h := dispatch(z)
		for _, method := range z.Methods() {
			a.instance.Add(method, z.CatchAll()+"*", h)
		}
	}

	if notFound == nil {
		return
	}
	// Echo reports unmatched routes through its error handler.
	prev := a.instance.HTTPErrorHandler
	a.instance.HTTPErrorHandler = func(c *echo.Context, err error) {
		if errors.Is(err, echo.ErrNotFound) || errors.Is(err, echo.ErrMethodNotAllowed) {
			notFound.ServeHTTP(c.Response(), c.Request())
			return
		}
		prev(c, err)
	}
}

// translate converts a neutral path to Echo syntax and reports the
// catch-all name.
func translate(path string) (string, string) {
	path = adapter.StripExtensions(path)
	before, name, found := adapter.SplitWildcard(path)
	if !found {
		return path, ""
	}
	if name == "" {
		name = "any"
	}
	return before + "*", name
}

func wrap(onion http.Handler, wildcard string) echo.HandlerFunc {
	return func(c *echo.Context) error {
		params := make(map[string]string)
		for _, p := range c.PathValues() {
			if p.Name == "*" && wildcard != "" {
				params[wildcard] = p.Value
				params["*"] = p.Value
				continue
			}
			params[p.Name] = p.Value
		}
		onion.ServeHTTP(c.Response(), adapter.WithParams(c.Request(), params))
		return nil
	}
}

func dispatch(z *adapter.Zone) echo.HandlerFunc {
	return func(c *echo.Context) error {
		r := c.Request()
		rt, params, ok := z.Match(r.Method, r.URL.Path)
		if !ok {
			return echo.ErrNotFound
		}
		rt.Handler.ServeHTTP(c.Response(), adapter.WithParams(r, params))
		return nil
	}
}
