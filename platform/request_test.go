package platform_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iaconlabs/warpcore/adapter/chiadapter"
	"github.com/iaconlabs/warpcore/platform"
	"github.com/iaconlabs/warpcore/server"
)

func TestRequest_Accessors(t *testing.T) {
	a := newAdapter()
	var got *platform.Request
	a.Get("/info/:id", func(req *platform.Request, res *platform.Response, _ platform.NextFunc) error {
		got = req
		res.Send(nil)
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/info/7?a=1&a=2&b=x", nil)
	req.Header.Set("X-Custom", "v")
	req.Header.Set(platform.RequestIDHeader, "rid-1")
	a.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, got)
	assert.Equal(t, "7", got.Param("id"))
	assert.Equal(t, "7", got.Params()["id"])
	assert.Equal(t, "1", got.Query("a"))
	assert.Equal(t, map[string]string{"a": "1", "b": "x"}, got.QueryMap())
	assert.Equal(t, "v", got.Headers()["x-custom"])
	assert.Equal(t, "example.com", got.Headers()["host"])
	assert.Equal(t, "v", got.Header("X-Custom"))
	assert.Equal(t, "192.0.2.1", got.IP())
	assert.Equal(t, "http://example.com/info/7?a=1&a=2&b=x", got.URL())
	assert.Equal(t, "/info/7", got.Path())
	assert.Equal(t, "example.com", got.Hostname())
	assert.Equal(t, "rid-1", got.ID())
	assert.Empty(t, got.Hosts())
	assert.Empty(t, got.Files())
	assert.Nil(t, got.Session())
	assert.Nil(t, got.Body())
}

func TestRequest_GeneratedID(t *testing.T) {
	a := newAdapter()
	a.Get("/id", func(req *platform.Request, res *platform.Response, _ platform.NextFunc) error {
		res.Send(req.ID())
		return nil
	})

	id := serve(a, http.MethodGet, "/id", nil).Body.String()
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
}

func TestRequest_SessionFromSharedValues(t *testing.T) {
	a := newAdapter()
	a.Use("", func(req *platform.Request, _ *platform.Response, next platform.NextFunc) error {
		req.Set("session", map[string]string{"user": "ana"})
		return next()
	})
	a.Get("/me", func(req *platform.Request, res *platform.Response, _ platform.NextFunc) error {
		res.Send(req.Session())
		return nil
	})

	assert.JSONEq(t, `{"user":"ana"}`, serve(a, http.MethodGet, "/me", nil).Body.String())
}

func bodyEcho(a *platform.RouterAdapter) {
	a.Post("/body", func(req *platform.Request, res *platform.Response, _ platform.NextFunc) error {
		a.Reply(res, req.BodyValue("abc"), http.StatusCreated)
		return nil
	})
}

func postBody(h http.Handler, ct, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/body", strings.NewReader(body))
	if ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBodyParsers(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		a := newAdapter()
		a.RegisterParserMiddleware(false)
		bodyEcho(a)

		rec := postBody(a, "application/json", `{"abc":"1"}`)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "1", rec.Body.String())
	})

	t.Run("media type parameters are ignored", func(t *testing.T) {
		a := newAdapter()
		a.RegisterParserMiddleware(false)
		bodyEcho(a)

		assert.Equal(t, "1", postBody(a, "application/json; charset=utf-8", `{"abc":"1"}`).Body.String())
	})

	t.Run("unparsed body", func(t *testing.T) {
		a := newAdapter()
		a.RegisterParserMiddleware(false)
		bodyEcho(a)

		rec := postBody(a, "", `{"abc":"1"}`)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "", rec.Body.String())
	})

	t.Run("urlencoded", func(t *testing.T) {
		a := newAdapter()
		a.RegisterParserMiddleware(false)
		var body any
		a.Post("/form", func(req *platform.Request, res *platform.Response, _ platform.NextFunc) error {
			body = req.Body()
			res.Send(req.BodyValue("abc"))
			return nil
		})

		req := httptest.NewRequest(http.MethodPost, "/form", strings.NewReader("abc=1&tags=a&tags=b"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		a.ServeHTTP(rec, req)

		assert.Equal(t, "1", rec.Body.String())
		assert.Equal(t, map[string]any{"abc": "1", "tags": []string{"a", "b"}}, body)
	})

	t.Run("multipart", func(t *testing.T) {
		a := newAdapter()
		a.RegisterParserMiddleware(false)
		var files map[string][]*multipart.FileHeader
		a.Post("/upload", func(req *platform.Request, res *platform.Response, _ platform.NextFunc) error {
			files = req.Files()
			res.Send(req.BodyValue("name"))
			return nil
		})

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("name", "warp"))
		fw, err := mw.CreateFormFile("upload", "notes.txt")
		require.NoError(t, err)
		_, _ = fw.Write([]byte("content"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		a.ServeHTTP(rec, req)

		assert.Equal(t, "warp", rec.Body.String())
		require.Len(t, files["upload"], 1)
		assert.Equal(t, "notes.txt", files["upload"][0].Filename)
	})

	t.Run("text and raw body", func(t *testing.T) {
		a := newAdapter()
		a.RegisterParserMiddleware(true)
		a.Post("/text", func(req *platform.Request, res *platform.Response, _ platform.NextFunc) error {
			res.Send(map[string]any{"body": req.Body(), "raw": string(req.RawBody())})
			return nil
		})

		req := httptest.NewRequest(http.MethodPost, "/text", strings.NewReader("hello"))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		a.ServeHTTP(rec, req)

		assert.JSONEq(t, `{"body":"hello","raw":"hello"}`, rec.Body.String())
	})

	t.Run("invalid json is a bad request", func(t *testing.T) {
		a := newAdapter()
		a.RegisterParserMiddleware(false)
		bodyEcho(a)

		assert.Equal(t, http.StatusBadRequest, postBody(a, "application/json", `{"abc":`).Code)
	})

	t.Run("custom parsers survive default registration", func(t *testing.T) {
		a := newAdapter()
		a.RegisterParserMiddleware(false)
		a.UseBodyParser("application/json", func(req *platform.Request) (any, error) {
			var m map[string]any
			if err := json.Unmarshal(req.Bytes(), &m); err != nil {
				return nil, err
			}
			m["abc"] = "custom"
			return m, nil
		})
		a.RegisterParserMiddleware(false)
		bodyEcho(a)

		assert.Equal(t, "custom", postBody(a, "application/json", `{"abc":"1"}`).Body.String())
	})

	t.Run("parsers registered first are kept", func(t *testing.T) {
		a := newAdapter()
		a.UseBodyParser("application/json; charset=utf-8", func(*platform.Request) (any, error) {
			return map[string]any{"abc": "early"}, nil
		})
		a.RegisterParserMiddleware(false)
		bodyEcho(a)

		assert.Equal(t, "early", postBody(a, "application/json", `{"abc":"1"}`).Body.String())
		assert.Equal(t, "2", postBody(a, "application/x-www-form-urlencoded", "abc=2").Body.String())
	})

	t.Run("custom media type", func(t *testing.T) {
		a := newAdapter()
		a.UseBodyParser("application/custom", func(req *platform.Request) (any, error) {
			return map[string]any{"abc": strings.ToUpper(string(req.Bytes()))}, nil
		})
		bodyEcho(a)

		assert.Equal(t, "DATA", postBody(a, "application/custom", "data").Body.String())
	})
}

func TestMultipart_SpilledFilesAreRemoved(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TMPDIR", dir)

	a := newAdapter()
	a.RegisterParserMiddleware(false)
	spilled := 0
	a.Post("/upload", func(req *platform.Request, res *platform.Response, _ platform.NextFunc) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		spilled = len(entries)
		res.Send(strconv.FormatInt(req.Files()["upload"][0].Size, 10))
		return nil
	})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("upload", "large.bin")
	require.NoError(t, err)
	_, err = fw.Write(bytes.Repeat([]byte{'x'}, 33<<20))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, strconv.Itoa(33<<20), rec.Body.String())
	assert.Equal(t, 1, spilled, "the upload should have been written to disk")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBodyLimit(t *testing.T) {
	a := newAdapter()
	a.UseBodyLimit(4)
	a.RegisterParserMiddleware(false)
	bodyEcho(a)

	rec := postBody(a, "text/plain", "way too long")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "request body too large", rec.Body.String())

	assert.Equal(t, http.StatusCreated, postBody(a, "text/plain", "ok").Code)
}

func TestEnableCors(t *testing.T) {
	a := newAdapter()
	require.NoError(t, a.EnableCors(platform.CORSOptions{
		Origins: []string{"http://a.com"},
		Methods: []string{http.MethodGet, http.MethodPost},
	}))
	a.Get("/c", func(_ *platform.Request, res *platform.Response, _ platform.NextFunc) error {
		res.Send("cors")
		return nil
	})

	preflight := httptest.NewRequest(http.MethodOptions, "/c", nil)
	preflight.Header.Set("Origin", "http://a.com")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, preflight)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://a.com", rec.Header().Get("Access-Control-Allow-Origin"))

	simple := httptest.NewRequest(http.MethodGet, "/c", nil)
	simple.Header.Set("Origin", "http://a.com")
	rec = httptest.NewRecorder()
	a.ServeHTTP(rec, simple)
	assert.Equal(t, "cors", rec.Body.String())
	assert.Equal(t, "http://a.com", rec.Header().Get("Access-Control-Allow-Origin"))

	err := newAdapter().EnableCors(platform.CORSOptions{OriginFunc: func(string) bool { return true }})
	assert.ErrorIs(t, err, platform.ErrOriginFunc)
}

func TestUseStaticAssets(t *testing.T) {
	a := newAdapter()
	fsys := fstest.MapFS{"hello.txt": {Data: []byte("hi")}}
	require.NoError(t, a.UseStaticAssets("/static", platform.StaticOptions{FS: fsys, MaxAge: time.Minute}))

	rec := serve(a, http.MethodGet, "/static/hello.txt", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hi", rec.Body.String())
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))

	assert.Equal(t, http.StatusNotFound, serve(a, http.MethodGet, "/static/missing.txt", nil).Code)

	assert.Error(t, newAdapter().UseStaticAssets("/x", platform.StaticOptions{}))
	assert.Error(t, newAdapter().UseStaticAssets("/x", platform.StaticOptions{Root: "/does/not/exist"}))
}

func newClient() *http.Client {
	return &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 2 * time.Second}
}

func TestLifecycle_DefaultServer(t *testing.T) {
	a := newAdapter()
	a.Get("/hi", func(_ *platform.Request, res *platform.Response, _ platform.NextFunc) error {
		res.Send("hello word")
		return nil
	})
	a.InitHTTPServer(server.Config{Addr: "127.0.0.1:0"})

	require.NoError(t, a.Listen(context.Background(), ""))
	addr := a.Address()
	require.NotEmpty(t, addr)
	require.NotNil(t, a.GetHTTPServer())

	resp, err := newClient().Get("http://" + addr + "/hi")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "hello word", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, a.Close(ctx))

	_, err = newClient().Get("http://" + addr + "/hi")
	assert.Error(t, err)
}

func TestLifecycle_ListenHookUsesFakeServer(t *testing.T) {
	var listened platform.ListenConfig
	closed := false
	a := platform.New(chiadapter.NewChiAdapter(), platform.Options{
		Logger: quietLogger(),
		Listen: func(_ context.Context, cfg platform.ListenConfig) error {
			listened = cfg
			return nil
		},
		Close: func(context.Context) error {
			closed = true
			return nil
		},
	})
	a.Get("/hi", func(_ *platform.Request, res *platform.Response, _ platform.NextFunc) error {
		res.Send("hello word")
		return nil
	})
	a.InitHTTPServer(server.Config{})

	require.NoError(t, a.Listen(context.Background(), "127.0.0.1:3000"))
	assert.Equal(t, "127.0.0.1:3000", listened.Addr)
	assert.Same(t, a, listened.Handler)
	assert.Equal(t, "127.0.0.1", a.Address())
	assert.Nil(t, a.GetHTTPServer())

	// The handler still serves in-process requests.
	assert.Equal(t, "hello word", serve(listened.Handler, http.MethodGet, "/hi", nil).Body.String())

	require.NoError(t, a.Close(context.Background()))
	assert.True(t, closed)
}

func TestLifecycle_ListenHookErrors(t *testing.T) {
	boom := errors.New("bind failed")
	a := platform.New(chiadapter.NewChiAdapter(), platform.Options{
		Logger:  quietLogger(),
		Listen:  func(context.Context, platform.ListenConfig) error { return boom },
		Address: func() string { return "10.0.0.1" },
	})

	assert.ErrorIs(t, a.Listen(context.Background(), ":3000"), boom)
	assert.Empty(t, a.Address())
}

func TestLifecycle_FakeAddressHook(t *testing.T) {
	a := platform.New(chiadapter.NewChiAdapter(), platform.Options{
		Logger:  quietLogger(),
		Listen:  func(context.Context, platform.ListenConfig) error { return nil },
		Address: func() string { return "10.0.0.1" },
	})

	require.NoError(t, a.Listen(context.Background(), ":3000"))
	assert.Equal(t, "10.0.0.1", a.Address())
	require.NoError(t, a.Close(context.Background()))
}

func TestLifecycle_CustomServer(t *testing.T) {
	var custom *server.Server
	a := platform.New(chiadapter.NewChiAdapter(), platform.Options{
		Logger: quietLogger(),
		InitHTTPServer: func(cfg platform.InitConfig) platform.Server {
			cfg.Server.Addr = "127.0.0.1:0"
			custom = server.New(cfg.Server, cfg.Handler)
			return custom
		},
	})
	a.Get("/hi", func(_ *platform.Request, res *platform.Response, _ platform.NextFunc) error {
		res.Send("custom")
		return nil
	})
	a.InitHTTPServer(server.Config{Addr: ":0"})

	require.NoError(t, a.Listen(context.Background(), ""))
	assert.Same(t, custom, a.GetHTTPServer())
	assert.Equal(t, custom.Addr(), a.Address())

	resp, err := newClient().Get("http://" + a.Address() + "/hi")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "custom", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, a.Close(ctx))
}
