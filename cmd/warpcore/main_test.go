package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iaconlabs/warpcore"
	"github.com/iaconlabs/warpcore/config"
	"github.com/iaconlabs/warpcore/platform"
)

func TestEnginesCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"engines"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "chi\necho\nfiber\ngin\nmux\n", out.String())
}

func TestDemoModule(t *testing.T) {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := warpcore.NewAdapter("echo", platform.Options{Logger: quiet})
	require.NoError(t, err)
	app := warpcore.Create(demoModule(), a, warpcore.WithLogger(quiet))

	call := func(method, target, body string) *httptest.ResponseRecorder {
		var r io.Reader
		if body != "" {
			r = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, target, r)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, req)
		return rec
	}

	rec := call(http.MethodGet, "/cats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":"1","name":"Tom","age":3,"breed":"Domestic"}]`, rec.Body.String())

	rec = call(http.MethodPost, "/cats", `{"name":"Felix","age":5}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":"2","name":"Felix","age":5}`, rec.Body.String())

	rec = call(http.MethodPost, "/cats", `{"name":"F","age":50}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(http.MethodPut, "/cats/2", `{"name":"Felix","age":6}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"2","name":"Felix","age":6}`, rec.Body.String())

	rec = call(http.MethodGet, "/cats?breed=Domestic", "")
	assert.JSONEq(t, `[{"id":"1","name":"Tom","age":3,"breed":"Domestic"}]`, rec.Body.String())

	assert.Equal(t, http.StatusNoContent, call(http.MethodDelete, "/cats/1", "").Code)

	rec = call(http.MethodGet, "/cats/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"statusCode":404,"message":"cat 1 not found","error":"Not Found"}`, rec.Body.String())

	assert.JSONEq(t, `{"status":"ok"}`, call(http.MethodGet, "/health", "").Body.String())
}

func TestServe_StopsOnSignal(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{
		"WARPCORE_HTTP_ADDR":        "127.0.0.1:0",
		"WARPCORE_LOG_LEVEL":        "error",
		"WARPCORE_SHUTDOWN_TIMEOUT": "2s",
	})
	require.NoError(t, err)

	signals := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() { done <- serve(context.Background(), cfg, signals) }()

	signals <- syscall.SIGTERM
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServe_UnknownEngine(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{"WARPCORE_ENGINE": "martini"})
	require.NoError(t, err)

	assert.Error(t, serve(context.Background(), cfg, nil))
}
