package muxadapter_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iaconlabs/warpcore/adapter"
	"github.com/iaconlabs/warpcore/adapter/muxadapter"
	"github.com/iaconlabs/warpcore/router"
)

func TestMuxAdapter_Contract(t *testing.T) {
	adapter.RunRouterContract(t, func() router.Router {
		return muxadapter.NewMuxAdapter(nil)
	})
}

func TestMuxAdapter_Advanced(t *testing.T) {
	adapter.RunAdvancedRouterContract(t, func() router.Router {
		return muxadapter.NewMuxAdapter(muxadapter.NewDefaultMuxConfig())
	})
}

func TestMuxAdapter_NonIdentifierParams(t *testing.T) {
	adp := muxadapter.NewMuxAdapter(nil)
	adp.GET("/users/:user-id/files/:file.name", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(adp.Param(r, "user-id") + "|" + adp.Param(r, "file")))
	})

	rec := httptest.NewRecorder()
	adp.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/42/files/a.txt", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42|a.txt", rec.Body.String())
}

func TestMuxAdapter_TrailingSlashIsExact(t *testing.T) {
	adp := muxadapter.NewMuxAdapter(nil)
	adp.GET("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("root"))
	})

	rec := httptest.NewRecorder()
	adp.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "root", rec.Body.String())

	rec = httptest.NewRecorder()
	adp.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/deeper", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
