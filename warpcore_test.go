package warpcore_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iaconlabs/warpcore"
	"github.com/iaconlabs/warpcore/config"
	"github.com/iaconlabs/warpcore/core"
	"github.com/iaconlabs/warpcore/platform"
)

// TestInitialStateCreation checks that SetStateValue creates the state when
// the request has none.
func TestInitialStateCreation(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	req = warpcore.SetStateValue(req, "key", "value")

	state, ok := warpcore.RequestState(req)
	if !ok {
		t.Fatal("expected a new state")
	}
	if state.Params["key"] != "value" {
		t.Errorf("expected 'value', got '%s'", state.Params["key"])
	}
}

// TestStateSequentialUpdates simulates a chain of middlewares adding values.
func TestStateSequentialUpdates(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	req = warpcore.SetStateValue(req, "first", "1")
	req = warpcore.SetStateValue(req, "second", "2")

	state, _ := warpcore.RequestState(req)
	if state.Params["first"] != "1" || state.Params["second"] != "2" {
		t.Errorf("sequential values were lost: %+v", state.Params)
	}
}

func TestStateValueOverwrite(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	req = warpcore.SetStateValue(req, "overwrite", "old")
	req = warpcore.SetStateValue(req, "overwrite", "new")

	state, _ := warpcore.RequestState(req)
	if len(state.Params) != 1 {
		t.Errorf("expected 1 entry, found %d", len(state.Params))
	}
	if state.Params["overwrite"] != "new" {
		t.Errorf("expected 'new', got '%s'", state.Params["overwrite"])
	}
}

func TestRequestStateMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	if _, ok := warpcore.RequestState(req); ok {
		t.Error("a request that never met a router must not have a state")
	}
}

// TestSetStateValueCopyOnWrite checks that earlier requests keep their view.
func TestSetStateValueCopyOnWrite(t *testing.T) {
	req1 := warpcore.SetStateValue(httptest.NewRequest(http.MethodGet, "/test", nil), "ptr", "original")
	req2 := warpcore.SetStateValue(req1, "ptr", "changed")

	if req1 == req2 {
		t.Error("SetStateValue must return a new request")
	}

	s1, _ := warpcore.RequestState(req1)
	s2, _ := warpcore.RequestState(req2)
	if s1.Params["ptr"] != "original" || s2.Params["ptr"] != "changed" {
		t.Errorf("unexpected values: %q and %q", s1.Params["ptr"], s2.Params["ptr"])
	}
	if s1.Values != s2.Values {
		t.Error("copies of a state must share their value bag")
	}
}

func TestStateValueEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	req = warpcore.SetStateValue(req, "", "value_for_no_key")
	req = warpcore.SetStateValue(req, "empty_key", "")

	state, _ := warpcore.RequestState(req)
	if state.Params[""] != "value_for_no_key" {
		t.Errorf("empty key was not stored")
	}
	if val, exists := state.Params["empty_key"]; !exists || val != "" {
		t.Errorf("expected an empty value for 'empty_key', got '%s'", val)
	}
}

func TestDeleteStateValue(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = warpcore.SetStateValue(req, "secret", "12345")
	before := req

	req = warpcore.DeleteStateValue(req, "secret")

	state, _ := warpcore.RequestState(req)
	if _, exists := state.Params["secret"]; exists {
		t.Error("'secret' should be gone")
	}
	old, _ := warpcore.RequestState(before)
	if old.Params["secret"] != "12345" {
		t.Error("the previous request must keep its parameters")
	}
}

func TestDeleteStateValueNonExistent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = warpcore.SetStateValue(req, "other", "data")

	req = warpcore.DeleteStateValue(req, "not_found")

	state, _ := warpcore.RequestState(req)
	if len(state.Params) != 1 {
		t.Errorf("expected 1 entry, got %d", len(state.Params))
	}
}

func TestDeleteStateNoContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	req = warpcore.DeleteStateValue(req, "any")

	if _, ok := warpcore.RequestState(req); ok {
		t.Error("deleting a key must not create a state")
	}
}

func TestEngines(t *testing.T) {
	assert.Equal(t, []string{"chi", "echo", "fiber", "gin", "mux"}, warpcore.Engines())

	_, err := warpcore.NewRouter("martini")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown engine "martini"`)

	a, err := warpcore.NewAdapter("", platform.Options{})
	require.NoError(t, err)
	assert.Equal(t, "warpcore/chi", a.GetType())
}

// sharing passes values from a net/http middleware to controllers.
func sharing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = warpcore.SetStateValue(r, "tenant", "acme")
		r = warpcore.ShareValue(r, "user", map[string]string{"name": "ada"})
		next.ServeHTTP(w, r)
	})
}

var greeter = core.ControllerFunc(func(r *core.RouteBuilder) {
	r.Prefix("greet")
	r.Get("/:name", func(c *core.Context) (any, error) {
		user, _ := c.Get("user")
		return map[string]any{
			"name":   c.Param("name"),
			"tenant": c.Param("tenant"),
			"user":   user,
		}, nil
	})
	r.Post("/", func(c *core.Context) (any, error) { return c.BodyValue("name"), nil })
})

func TestCreate_EveryEngine(t *testing.T) {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, engine := range warpcore.Engines() {
		t.Run(engine, func(t *testing.T) {
			a, err := warpcore.NewAdapter(engine, platform.Options{Logger: quiet})
			require.NoError(t, err)

			app := warpcore.Create(&core.Module{Controllers: []core.Controller{greeter}}, a,
				warpcore.WithLogger(quiet), warpcore.WithGlobalPrefix("api"))
			app.UseMiddleware(sharing)

			rec := httptest.NewRecorder()
			app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/greet/bob", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `{"name":"bob","tenant":"acme","user":{"name":"ada"}}`, rec.Body.String())

			req := httptest.NewRequest(http.MethodPost, "/api/greet", strings.NewReader(`{"name":"eve"}`))
			req.Header.Set("Content-Type", "application/json")
			rec = httptest.NewRecorder()
			app.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusCreated, rec.Code)
			assert.Equal(t, "eve", rec.Body.String())

			rec = httptest.NewRecorder()
			app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.JSONEq(t, `{"statusCode":404,"message":"Cannot GET /nowhere","error":"Not Found"}`, rec.Body.String())
		})
	}
}

func TestCreateFromConfig(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{
		"WARPCORE_ENGINE":    "gin",
		"WARPCORE_LOG_LEVEL": "error",
	})
	require.NoError(t, err)

	app, err := warpcore.CreateFromConfig(&core.Module{Controllers: []core.Controller{greeter}}, cfg)
	require.NoError(t, err)
	assert.Equal(t, "warpcore/gin", app.HTTPAdapter().GetType())

	cfg.Engine = "martini"
	_, err = warpcore.CreateFromConfig(&core.Module{}, cfg)
	assert.Error(t, err)
}
