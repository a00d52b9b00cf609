// Package fiberadapter provides the warpcore router engine for Fiber v3.
//
// Fiber runs on fasthttp, so every request is bridged: the net/http request
// and writer travel through a pooled fasthttp.RequestCtx and matched routes
// write straight to the original writer. Fiber matches in registration
// order, which the adapter sorts by specificity before mounting.
package fiberadapter

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v3"
	"github.com/valyala/fasthttp"

	"github.com/iaconlabs/warpcore/adapter"
	"github.com/iaconlabs/warpcore/router"
)

var _ router.Router = (*FiberAdapter)(nil)

type localKey string

const (
	reqKey    localKey = "warpcore_req"
	writerKey localKey = "warpcore_writer"
	servedKey localKey = "warpcore_served"
	flowKey   localKey = "warpcore_flow_continued"
)

var fctxPool = sync.Pool{
	New: func() any { return new(fasthttp.RequestCtx) },
}

// engine is shared by a router and its groups. The app may be rebuilt once
// at mount time when routes use methods Fiber does not know.
type engine struct {
	app     *fiber.App
	handler fasthttp.RequestHandler
}

// FiberAdapter implements router.Router on top of a Fiber v3 app.
type FiberAdapter struct {
	adapter.Base
	engine *engine
}

// NewFiberAdapter initializes a new adapter with an internal Fiber app.
func NewFiberAdapter() *FiberAdapter {
	return &FiberAdapter{
		Base:   adapter.NewBase(),
		engine: &engine{app: fiber.New()},
	}
}

// Group creates a prefixed route group sharing the same app.
func (a *FiberAdapter) Group(prefix string) router.Router {
	return &FiberAdapter{Base: a.Sub(prefix), engine: a.engine}
}

// Engine returns the underlying *fiber.App. Before the first request the
// app can still be replaced if routes use non standard methods.
func (a *FiberAdapter) Engine() any { return a.engine.app }

// ServeHTTP bridges the request into fasthttp and lets Fiber route it.
// When no route answered, whatever Fiber wrote is copied back.
func (a *FiberAdapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.MountAll(a.mount)
	r, _ = adapter.EnsureState(r)

	fctx, _ := fctxPool.Get().(*fasthttp.RequestCtx)
	defer func() {
		fctx.ResetUserValues()
		fctxPool.Put(fctx)
	}()

	fctx.Request.Reset()
	fctx.Response.Reset()
	fctx.Request.Header.SetMethod(r.Method)
	fctx.Request.SetRequestURI(r.URL.RequestURI())
	fctx.Request.SetHost(r.Host)

	fctx.SetUserValue(reqKey, r)
	fctx.SetUserValue(writerKey, w)

	a.engine.handler(fctx)

	if fctx.UserValue(servedKey) == nil {
		writeBack(fctx, w)
	}
}

func (a *FiberAdapter) mount(routes []*adapter.Route, notFound http.Handler) {
	methods := slices.Clone(fiber.DefaultMethods)
	for _, rt := range routes {
		if !slices.Contains(methods, rt.Method) {
			methods = append(methods, rt.Method)
		}
	}
	if len(methods) != len(fiber.DefaultMethods) {
		cfg := a.engine.app.Config()
		cfg.RequestMethods = methods
		a.engine.app = fiber.New(cfg)
	}

	app := a.engine.app
	for _, rt := range routes {
		path, wildcard := translate(rt.Path)
		app.Add([]string{rt.Method}, path, wrap(rt.Handler, wildcard))
	}

	if notFound != nil {
		// Registered last, so it only sees requests no route claimed.
		app.Use(func(c fiber.Ctx) error {
			c.Locals(servedKey, true)
			r, _ := c.Locals(reqKey).(*http.Request)
			w, _ := c.Locals(writerKey).(http.ResponseWriter)
			notFound.ServeHTTP(w, r)
			return nil
		})
	}

	a.engine.handler = app.Handler()
}

// translate turns ":id.json" into ":id" and "*name" into Fiber's bare "*".
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

func wrap(onion http.Handler, wildcard string) fiber.Handler {
	return func(c fiber.Ctx) error {
		c.Locals(servedKey, true)
		r, _ := c.Locals(reqKey).(*http.Request)
		w, _ := c.Locals(writerKey).(http.ResponseWriter)

		onion.ServeHTTP(w, adapter.WithParams(r, syncParams(c, wildcard)))
		return nil
	}
}

// syncParams extracts, unescapes and clones Fiber's path parameters. Values
// point into fasthttp buffers and must not outlive the request otherwise.
func syncParams(c fiber.Ctx, wildcard string) map[string]string {
	params := make(map[string]string)
	for _, p := range c.Route().Params {
		raw := c.Params(p)
		if raw == "" {
			continue
		}
		val := raw
		if unescaped, err := url.PathUnescape(raw); err == nil {
			val = unescaped
		}
		val = adapter.Clone(val)

		if strings.HasPrefix(p, "*") || strings.HasPrefix(p, "+") {
			params["*"] = val
			if wildcard != "" {
				params[wildcard] = val
			}
			continue
		}
		params[adapter.Clone(p)] = val
	}
	return params
}

// writeBack copies a response produced by Fiber itself to the writer.
func writeBack(fctx *fasthttp.RequestCtx, w http.ResponseWriter) {
	fctx.Response.Header.VisitAll(func(k, v []byte) {
		w.Header().Add(string(k), string(v))
	})
	w.WriteHeader(fctx.Response.StatusCode())
	_, _ = w.Write(fctx.Response.Body())
}
