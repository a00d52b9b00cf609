package ginadapter

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iaconlabs/warpcore/adapter"
	"github.com/iaconlabs/warpcore/router"
)

// FromGin adapts a Gin middleware to the standard net/http chain. The
// middleware runs on a private engine; when it calls c.Next the request,
// with any context changes it made, continues down the chain. c.Abort stops
// it.
func FromGin(ginMw gin.HandlerFunc) router.Middleware {
	engine := gin.New()
	engine.Use(ginMw)

	bridge := func(c *gin.Context) {
		next, ok := c.Request.Context().Value(router.NextKey).(http.Handler)
		if !ok {
			return
		}
		next.ServeHTTP(c.Writer, c.Request)
	}
	engine.Any("/*path", bridge)
	// Non standard methods only reach the no-route chain, which starts as a 404.
	engine.NoRoute(func(c *gin.Context) {
		c.Status(http.StatusOK)
		bridge(c)
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, _ = adapter.EnsureState(r)
			ctx := context.WithValue(r.Context(), router.NextKey, next)
			engine.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
