package adapter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/iaconlabs/warpcore/router"
)

const workers = 50

// RunRouterContract executes the core functional contract tests for any [router.Router].
// It ensures consistency in parameter extraction, middleware propagation, and group isolation.
func RunRouterContract(t *testing.T, factory func() router.Router) {
	t.Run("Parameters and Extensions", func(t *testing.T) {
		testParametersAndExtensions(t, factory())
	})

	t.Run("Native Context Propagation", func(t *testing.T) {
		testNativeContextPropagation(t, factory())
	})

	t.Run("Middleware Short-circuit", func(t *testing.T) {
		testMiddlewareShortCircuit(t, factory())
	})

	t.Run("Multiple Complex Parameters", func(t *testing.T) {
		testMultipleComplexParameters(t, factory())
	})

	t.Run("Group and Middleware Isolation", func(t *testing.T) {
		testGroupIsolation(t, factory())
	})

	t.Run("Original Handler Immutability", func(t *testing.T) {
		testHandlerImmutability(t, factory())
	})

	t.Run("Group Union Normalization", func(t *testing.T) {
		testGroupNormalization(t, factory())
	})

	t.Run("Handle and HandleFunc Methods", func(t *testing.T) {
		testHandleAndHandleFunc(t, factory())
	})

	t.Run("ANY Method Multi-registration", func(t *testing.T) {
		testAnyMethod(t, factory())
	})

	t.Run("PATCH Registration", func(t *testing.T) {
		testPatch(t, factory())
	})

	t.Run("Custom NotFound Handler", func(t *testing.T) {
		testNotFound(t, factory())
	})
}

// RunAdvancedRouterContract executes a comprehensive test suite for high-level router features,
// ensuring the implementation handles edge cases like deep nesting, wildcards, and concurrency.
func RunAdvancedRouterContract(t *testing.T, factory func() router.Router) {
	t.Run("Route Priority: Static vs Dynamic", func(t *testing.T) {
		testRoutePriority(t, factory())
	})

	t.Run("Deep Nesting and Onion Middleware", func(t *testing.T) {
		testDeepNestingOnion(t, factory())
	})

	t.Run("Query Params vs Path Params Integrity", func(t *testing.T) {
		testParamsIntegrity(t, factory())
	})

	t.Run("Catch-All Wildcard Routes", func(t *testing.T) {
		testWildcardRoutes(t, factory())
	})

	t.Run("Middleware Status and Header Sync", func(t *testing.T) {
		testHeaderSync(t, factory())
	})

	t.Run("Concurrency Security and Race Conditions", func(t *testing.T) {
		testConcurrency(t, factory())
	})

	t.Run("Middleware Request Body Access", func(t *testing.T) {
		testRequestBodyAccess(t, factory())
	})

	t.Run("Ambiguity Torture Test", func(t *testing.T) {
		testAmbiguity(t, factory())
	})

	t.Run("Custom HTTP Methods via Handle", func(t *testing.T) {
		testCustomMethods(t, factory())
	})

	t.Run("State Values Survive Routing", func(t *testing.T) {
		testStateValues(t, factory())
	})

	t.Run("Duplicate Registration Keeps The First", func(t *testing.T) {
		testDuplicateRoutes(t, factory())
	})
}

func serve(adp http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	adp.ServeHTTP(rec, httptest.NewRequest(method, target, body))
	return rec
}

func testParametersAndExtensions(t *testing.T, adp router.Router) {
	adp.GET("/user/:id", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("plain:" + adp.Param(r, "id")))
	})
	adp.GET("/file/:name.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("json:" + adp.Param(r, "name.json")))
	})

	if got := serve(adp, http.MethodGet, "/user/123", nil).Body.String(); got != "plain:123" {
		t.Errorf("Expected plain:123, got %s", got)
	}

	// The dot challenge: the extension is part of the captured value.
	if got := serve(adp, http.MethodGet, "/file/config.json", nil).Body.String(); got != "json:config.json" {
		t.Errorf("Expected json:config.json, got %s", got)
	}
}

func testNativeContextPropagation(t *testing.T, adp router.Router) {
	type ctxKey string
	const key ctxKey = "user_id"

	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), key, "user-77")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}

	adp.Use(mw)
	adp.GET("/profile", func(w http.ResponseWriter, r *http.Request) {
		val, _ := r.Context().Value(key).(string)
		_, _ = w.Write([]byte(val))
	})

	if got := serve(adp, http.MethodGet, "/profile", nil).Body.String(); got != "user-77" {
		t.Errorf("Context lost. Expected user-77, got %s", got)
	}
}

func testMiddlewareShortCircuit(t *testing.T, adp router.Router) {
	handlerReached := false
	authMw := func(_ http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("unauthorized"))
		})
	}

	adp.GET("/secret", func(_ http.ResponseWriter, _ *http.Request) {
		handlerReached = true
	}, authMw)

	rec := serve(adp, http.MethodGet, "/secret", nil)

	if handlerReached {
		t.Error("Handler executed despite middleware abort")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rec.Code)
	}
}

func testMultipleComplexParameters(t *testing.T, adp router.Router) {
	adp.GET("/org/:org_id/repo/:repo_name/files/:path", func(w http.ResponseWriter, r *http.Request) {
		org := adp.Param(r, "org_id")
		repo := adp.Param(r, "repo_name")
		path := adp.Param(r, "path")
		_, _ = w.Write([]byte(org + "|" + repo + "|" + path))
	})

	expected := "my.org|my-repo|main.go"
	if got := serve(adp, http.MethodGet, "/org/my.org/repo/my-repo/files/main.go", nil).Body.String(); got != expected {
		t.Errorf("Multiple parameters failed. Expected %s, got %s", expected, got)
	}
}

func testGroupIsolation(t *testing.T, adp router.Router) {
	logs := []string{}
	mwAdmin := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logs = append(logs, "admin")
			next.ServeHTTP(w, r)
		})
	}

	admin := adp.Group("/admin")
	admin.Use(mwAdmin)
	admin.GET("/dashboard", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	public := adp.Group("/public")
	public.GET("/home", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	serve(adp, http.MethodGet, "/public/home", nil)
	if len(logs) > 0 {
		t.Error("Admin middleware leaked to public group")
	}

	serve(adp, http.MethodGet, "/admin/dashboard", nil)
	if len(logs) != 1 || logs[0] != "admin" {
		t.Error("Admin middleware did not execute correctly")
	}
}

func testHandlerImmutability(t *testing.T, adp router.Router) {
	adp.POST("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	})

	payload := "hello world"
	if got := serve(adp, http.MethodPost, "/echo", strings.NewReader(payload)).Body.String(); got != payload {
		t.Errorf("Request body corrupted. Expected %s, got %s", payload, got)
	}
}

func testGroupNormalization(t *testing.T, adp router.Router) {
	api := adp.Group("/api/")
	api.GET("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	if rec := serve(adp, http.MethodGet, "/api/health", nil); rec.Code != http.StatusOK {
		t.Errorf("Group union generated invalid route. Status: %d", rec.Code)
	}
}

type staticHandler struct{}

func (h *staticHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("handler_ok"))
}

func testHandleAndHandleFunc(t *testing.T, adp router.Router) {
	adp.Handle(http.MethodGet, "/test/handle", &staticHandler{})

	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Handle", "true")
			next.ServeHTTP(w, r)
		})
	}

	adp.HandleFunc(http.MethodPost, "/test/handlefunc", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("func_ok"))
	}, mw)

	if got := serve(adp, http.MethodGet, "/test/handle", nil).Body.String(); got != "handler_ok" {
		t.Errorf("Handle failed. Expected handler_ok, got %s", got)
	}

	rec := serve(adp, http.MethodPost, "/test/handlefunc", nil)
	if rec.Body.String() != "func_ok" || rec.Header().Get("X-Handle") != "true" {
		t.Errorf("HandleFunc or Middleware failed. Body: %s, Header: %s",
			rec.Body.String(), rec.Header().Get("X-Handle"))
	}
}

func testAnyMethod(t *testing.T, adp router.Router) {
	adp.ANY("/any-route", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("method:" + r.Method))
	})

	methodsToTest := []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodDelete,
		http.MethodPatch,
		http.MethodOptions,
	}

	for _, method := range methodsToTest {
		expected := "method:" + method
		if got := serve(adp, method, "/any-route", nil).Body.String(); got != expected {
			t.Errorf("ANY method failed for %s. Expected %s, got %s", method, expected, got)
		}
	}
}

func testPatch(t *testing.T, adp router.Router) {
	adp.PATCH("/items/:id", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("patched:" + adp.Param(r, "id")))
	})

	if got := serve(adp, http.MethodPatch, "/items/9", nil).Body.String(); got != "patched:9" {
		t.Errorf("PATCH failed. Got: %s", got)
	}
}

func testNotFound(t *testing.T, adp router.Router) {
	adp.GET("/exists", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	adp.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing:" + r.URL.Path))
	})

	rec := serve(adp, http.MethodGet, "/nowhere", nil)
	if rec.Code != http.StatusNotFound || rec.Body.String() != "missing:/nowhere" {
		t.Errorf("NotFound handler not used. Status: %d, Body: %s", rec.Code, rec.Body.String())
	}

	if got := serve(adp, http.MethodGet, "/exists", nil).Body.String(); got != "ok" {
		t.Errorf("NotFound handler shadowed a real route. Got: %s", got)
	}
}

func testRoutePriority(t *testing.T, adp router.Router) {
	adp.GET("/post/:id", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("dynamic:" + adp.Param(r, "id")))
	})
	adp.GET("/post/featured", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("static_featured"))
	})

	if got := serve(adp, http.MethodGet, "/post/featured", nil).Body.String(); got != "static_featured" {
		t.Errorf("Priority failure. Expected static route, got: %s", got)
	}

	if got := serve(adp, http.MethodGet, "/post/123", nil).Body.String(); got != "dynamic:123" {
		t.Errorf("Dynamic route not reached. Got: %s", got)
	}
}

func testDeepNestingOnion(t *testing.T, adp router.Router) {
	order := ""
	mw := func(tag string) router.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order += "(" + tag
				next.ServeHTTP(w, r)
				order += tag + ")"
			})
		}
	}

	g1 := adp.Group("/g1")
	g1.Use(mw("1"))
	g2 := g1.Group("/g2")
	g2.Use(mw("2"))
	g3 := g2.Group("/g3")
	g3.Use(mw("3"))
	g4 := g3.Group("/g4")
	g4.Use(mw("4"))

	g4.GET("/end", func(_ http.ResponseWriter, _ *http.Request) {
		order += "X"
	}, mw("5"))

	serve(adp, http.MethodGet, "/g1/g2/g3/g4/end", nil)

	expected := "(1(2(3(4(5X5)4)3)2)1)"
	if order != expected {
		t.Errorf("The 'Onion' hierarchy is incorrect.\nExpected: %s\nGot: %s", expected, order)
	}
}

func testParamsIntegrity(t *testing.T, adp router.Router) {
	adp.GET("/search/:category", func(w http.ResponseWriter, r *http.Request) {
		pathParam := adp.Param(r, "category")
		queryParam := r.URL.Query().Get("q")
		_, _ = w.Write([]byte(pathParam + "|" + queryParam))
	})

	if got := serve(adp, http.MethodGet, "/search/books?q=golang&page=1", nil).Body.String(); got != "books|golang" {
		t.Errorf("Parameter collision detected. Got: %s", got)
	}
}

func testWildcardRoutes(t *testing.T, adp router.Router) {
	adp.GET("/static/*path", func(w http.ResponseWriter, r *http.Request) {
		val := adp.Param(r, "path")
		if val == "" {
			val = adp.Param(r, "*")
		}
		_, _ = w.Write([]byte("path:" + val))
	})

	if got := serve(adp, http.MethodGet, "/static/images/logo/brand.png", nil).Body.String(); !strings.Contains(got, "images/logo/brand.png") {
		t.Errorf("Wildcard failed. Got: %s", got)
	}
}

func testHeaderSync(t *testing.T, adp router.Router) {
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Middleware", "true")
			next.ServeHTTP(w, r)
		})
	}

	adp.GET("/headers", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Handler", "true")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}, mw)

	rec := serve(adp, http.MethodGet, "/headers", nil)

	if rec.Code != http.StatusCreated {
		t.Errorf("Status code lost. Expected 201, got %d", rec.Code)
	}
	if rec.Header().Get("X-Middleware") != "true" || rec.Header().Get("X-Handler") != "true" {
		t.Error("Header synchronization failed in the bridge")
	}
}

func testConcurrency(t *testing.T, adp router.Router) {
	adp.GET("/worker/:id", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(adp.Param(r, "id")))
	})

	results := make(chan bool, workers)

	for i := range workers {
		go func(val string) {
			results <- serve(adp, http.MethodGet, "/worker/"+val, nil).Body.String() == val
		}(fmt.Sprintf("w%d", i))
	}

	for range workers {
		if !<-results {
			t.Error("Concurrency security failure: parameters leaked between parallel requests")
			break
		}
	}
}

func testRequestBodyAccess(t *testing.T, adp router.Router) {
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(strings.NewReader(string(body)))
			next.ServeHTTP(w, r)
		})
	}

	adp.POST("/body", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	}, mw)

	payload := `{"cmd":"ping"}`
	if got := serve(adp, http.MethodPost, "/body", strings.NewReader(payload)).Body.String(); got != payload {
		t.Errorf("Body lost after middleware reading. Got: %s", got)
	}
}

func testAmbiguity(t *testing.T, adp router.Router) {
	adp.GET("/a/b/c", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("static")) })
	adp.GET("/a/:b/c", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("param:" + adp.Param(r, "b")))
	})
	adp.GET("/a/*", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("wildcard")) })

	if got := serve(adp, http.MethodGet, "/a/b/c", nil).Body.String(); got != "static" {
		t.Errorf("Ambiguity failure (static). Got: %s", got)
	}

	if got := serve(adp, http.MethodGet, "/a/other/c", nil).Body.String(); got != "param:other" {
		t.Errorf("Ambiguity failure (param). Got: %s", got)
	}

	if got := serve(adp, http.MethodGet, "/a/x/y/z", nil).Body.String(); got != "wildcard" {
		t.Errorf("Ambiguity failure (wildcard). Got: %s", got)
	}
}

func testCustomMethods(t *testing.T, adp router.Router) {
	adp.Handle("PURGE", "/cache", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("purged"))
	}))

	if got := serve(adp, "PURGE", "/cache", nil).Body.String(); got != "purged" {
		t.Errorf("Custom method PURGE failed. Got: %s", got)
	}
}

func testStateValues(t *testing.T, adp router.Router) {
	adp.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, state := EnsureState(r)
			state.Values.Set("tenant", "acme")
			next.ServeHTTP(w, r)
		})
	})
	adp.GET("/tenant/:id", func(w http.ResponseWriter, r *http.Request) {
		state, _ := StateFrom(r)
		tenant, _ := state.Values.Get("tenant")
		_, _ = fmt.Fprintf(w, "%v:%s", tenant, adp.Param(r, "id"))
	})

	if got := serve(adp, http.MethodGet, "/tenant/7", nil).Body.String(); got != "acme:7" {
		t.Errorf("State values lost between middleware and handler. Got: %s", got)
	}
}

func testDuplicateRoutes(t *testing.T, adp router.Router) {
	adp.GET("/dup/:id", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("first"))
	})
	adp.GET("/dup/:id.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("second"))
	})

	if got := serve(adp, http.MethodGet, "/dup/1", nil).Body.String(); got != "first" {
		t.Errorf("Duplicate route replaced the first registration. Got: %s", got)
	}
}
