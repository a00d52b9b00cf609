package fiberadapter

import (
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/valyala/fasthttp"

	"github.com/iaconlabs/warpcore/adapter"
	"github.com/iaconlabs/warpcore/router"
)

// FromFiber adapts a Fiber middleware to the standard net/http chain.
//
// The middleware runs on a private Fiber app fed with the request method,
// URI, headers and body. If it calls c.Next the original request continues
// down the chain and the headers it set are copied to the writer. If it
// answers on its own, its response is written back instead.
func FromFiber(fiberMw fiber.Handler) router.Middleware {
	app := fiber.New()
	app.Use(fiberMw)
	app.All("/*", func(c fiber.Ctx) error {
		c.Locals(flowKey, true)
		next, _ := c.Locals(router.NextKey).(http.Handler)
		w, _ := c.Locals(writerKey).(http.ResponseWriter)
		r, _ := c.Locals(reqKey).(*http.Request)

		syncHeaders(c, w)
		next.ServeHTTP(w, r)
		return nil
	})

	handler := app.Handler()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, state := adapter.EnsureState(r)

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
			for k, values := range r.Header {
				for _, v := range values {
					fctx.Request.Header.Add(k, v)
				}
			}
			if len(state.Body) > 0 {
				fctx.Request.SetBody(state.Body)
			}

			fctx.SetUserValue(router.NextKey, next)
			fctx.SetUserValue(writerKey, w)
			fctx.SetUserValue(reqKey, r)

			handler(fctx)

			if fctx.UserValue(flowKey) == nil {
				writeBack(fctx, w)
			}
		})
	}
}

// syncHeaders copies the response headers set by Fiber middlewares to the
// writer. Content headers are left to the downstream handler.
func syncHeaders(c fiber.Ctx, w http.ResponseWriter) {
	c.Response().Header.VisitAll(func(k, v []byte) {
		key := http.CanonicalHeaderKey(string(k))
		switch key {
		case "Content-Type", "Content-Length":
			return
		}
		if w.Header().Get(key) == "" {
			w.Header().Add(key, string(v))
		}
	})
}
