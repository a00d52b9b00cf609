package echoadapter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v5"

	"github.com/iaconlabs/warpcore/adapter"
	"github.com/iaconlabs/warpcore/router"
)

func BenchmarkEcho(b *testing.B) {
	adapter.RunSuiteBenchmarks(b, func() router.Router {
		return NewEchoAdapter()
	})
}

func nativeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Middleware-Type", "native")
		next.ServeHTTP(w, r)
	})
}

func echoMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		c.Response().Header().Set("X-Middleware-Type", "echo")
		return next(c)
	}
}

func BenchmarkMiddlewareOverhead(b *testing.B) {
	finalHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	bridged := FromEcho(echoMiddleware)

	b.Run("Native_Go_Middleware", func(b *testing.B) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		h := nativeMiddleware(finalHandler)

		b.ResetTimer()
		for range b.N {
			h.ServeHTTP(w, req)
		}
	})

	b.Run("FromEcho_Bridge_Middleware", func(b *testing.B) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		h := bridged(finalHandler)

		b.ResetTimer()
		for range b.N {
			h.ServeHTTP(w, req)
		}
	})
}

func BenchmarkEchoV5_Native(b *testing.B) {
	e := echo.New()
	e.GET("/bench", func(c *echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	req := httptest.NewRequest(http.MethodGet, "/bench", nil)
	w := httptest.NewRecorder()
	b.ResetTimer()
	for range b.N {
		e.ServeHTTP(w, req)
	}
}

func BenchmarkEchoV5_Adapter(b *testing.B) {
	adp := NewEchoAdapter()
	adp.GET("/bench", benchHandler)
	req := httptest.NewRequest(http.MethodGet, "/bench", nil)
	w := httptest.NewRecorder()
	b.ResetTimer()
	for range b.N {
		adp.ServeHTTP(w, req)
	}
}

func benchHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
