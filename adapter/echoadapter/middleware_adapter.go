package echoadapter

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/iaconlabs/warpcore/adapter"
	"github.com/iaconlabs/warpcore/router"
)

// FromEcho returns an HTTP middleware that runs an Echo middleware inside
// the net/http chain while preserving the shared request state.
//
// The request body is captured before Echo can consume it and restored for
// the downstream handler. Path values set by Echo are merged into the state.
// When the Echo middleware returns an error it is rendered by Echo's
// HTTPErrorHandler and the chain stops.
func FromEcho(echoMw echo.MiddlewareFunc) router.Middleware {
	e := echo.New()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, state := adapter.EnsureState(r)

			bridge := func(c *echo.Context) error {
				current := c.Request()

				params := make(map[string]string)
				for _, p := range c.PathValues() {
					params[p.Name] = p.Value
				}

				if state.Body != nil {
					current.Body = io.NopCloser(bytes.NewReader(state.Body))
				}
				if len(params) > 0 {
					current = adapter.WithParams(current, params)
				}

				if n, ok := current.Context().Value(router.NextKey).(http.Handler); ok {
					n.ServeHTTP(c.Response(), current)
				}
				return nil
			}

			c := e.NewContext(r, w)
			c.SetRequest(r.WithContext(context.WithValue(r.Context(), router.NextKey, next)))

			if err := echoMw(bridge)(c); err != nil {
				e.HTTPErrorHandler(c, err)
			}
		})
	}
}
