package ginadapter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/iaconlabs/warpcore/adapter"
	"github.com/iaconlabs/warpcore/router"
)

func BenchmarkGin(b *testing.B) {
	adapter.RunSuiteBenchmarks(b, func() router.Router {
		return NewGinAdapter()
	})
}

func BenchmarkGin_Zone(b *testing.B) {
	adp := NewGinAdapter()

	// Forces a conflict zone under /conflict.
	adp.GET("/conflict/:id/data", func(_ http.ResponseWriter, _ *http.Request) {})
	adp.GET("/conflict/*path", func(_ http.ResponseWriter, _ *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/conflict/123/data", nil)
	b.Run("Zone/CachedMatch", func(b *testing.B) {
		for range b.N {
			adp.ServeHTTP(httptest.NewRecorder(), req)
		}
	})
}

func BenchmarkGin_Native(b *testing.B) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.GET("/bench", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	req := httptest.NewRequest(http.MethodGet, "/bench", nil)
	w := httptest.NewRecorder()
	b.ResetTimer()
	for range b.N {
		r.ServeHTTP(w, req)
	}
}

func BenchmarkGin_Adapter(b *testing.B) {
	adp := NewGinAdapter()
	adp.GET("/bench", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	req := httptest.NewRequest(http.MethodGet, "/bench", nil)
	w := httptest.NewRecorder()
	b.ResetTimer()
	for range b.N {
		adp.ServeHTTP(w, req)
	}
}
