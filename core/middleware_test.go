package core_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iaconlabs/warpcore/core"
	"github.com/iaconlabs/warpcore/platform"
)

// trace appends tag to the "trace" value of the request.
func trace(tag string) core.MiddlewareFunc {
	return func(req *platform.Request, _ *platform.Response, next platform.NextFunc) error {
		prev, _ := req.Get("trace")
		s, _ := prev.(string)
		req.Set("trace", s+tag)
		return next()
	}
}

func traced(c *core.Context) (any, error) {
	v, _ := c.Get("trace")
	if v == nil {
		return "none", nil
	}
	return v, nil
}

var catsController = core.ControllerFunc(func(r *core.RouteBuilder) {
	r.Prefix("cats")
	r.Get("/skip", traced)
	r.Get("/:name", traced)
	r.Post("/:name", traced)
})

var dogsController = core.ControllerFunc(func(r *core.RouteBuilder) {
	r.Prefix("dogs")
	r.Get("/", traced)
})

func TestMiddlewareConsumer(t *testing.T) {
	root := &core.Module{
		Name:        "AppModule",
		Controllers: []core.Controller{catsController, dogsController},
		Configure: func(consumer *core.MiddlewareConsumer) {
			consumer.
				Apply(trace("a"), trace("b")).
				Exclude(core.RouteInfo{Path: "/cats/skip", Method: core.MethodGet}).
				ForRoutes(core.RouteInfo{Path: "/cats/*", Method: core.MethodGet})
			consumer.Apply(trace("d")).ForControllers(dogsController)
		},
	}

	t.Run("Scoped By Path And Method", func(t *testing.T) {
		app := newApp(root, core.Options{})
		assert.Equal(t, "ab", do(app, http.MethodGet, "/cats/tom", "").Body.String())
		assert.Equal(t, "none", do(app, http.MethodPost, "/cats/tom", "").Body.String())
		assert.Equal(t, "none", do(app, http.MethodGet, "/cats/skip", "").Body.String())
		assert.Equal(t, "d", do(app, http.MethodGet, "/dogs", "").Body.String())
	})

	t.Run("Global Middleware Runs First", func(t *testing.T) {
		app := newApp(root, core.Options{})
		app.Use(trace("g"))
		assert.Equal(t, "gab", do(app, http.MethodGet, "/cats/tom", "").Body.String())
		assert.Equal(t, "g", do(app, http.MethodGet, "/cats/skip", "").Body.String())
	})

	t.Run("Global Prefix Applies", func(t *testing.T) {
		app := newApp(root, core.Options{GlobalPrefix: "/v1"})
		assert.Equal(t, "ab", do(app, http.MethodGet, "/v1/cats/tom", "").Body.String())
		assert.Equal(t, "none", do(app, http.MethodGet, "/v1/cats/skip", "").Body.String())
		assert.Equal(t, "d", do(app, http.MethodGet, "/v1/dogs", "").Body.String())
	})

	t.Run("ForPaths", func(t *testing.T) {
		mod := &core.Module{
			Controllers: []core.Controller{catsController},
			Configure: func(consumer *core.MiddlewareConsumer) {
				consumer.Apply(trace("p")).ForPaths("/cats/tom")
			},
		}
		app := newApp(mod, core.Options{})
		assert.Equal(t, "p", do(app, http.MethodPost, "/cats/tom", "").Body.String())
		assert.Equal(t, "none", do(app, http.MethodGet, "/cats/jerry", "").Body.String())
	})

	t.Run("Unsupported Method Is Skipped", func(t *testing.T) {
		mod := &core.Module{
			Controllers: []core.Controller{catsController},
			Configure: func(consumer *core.MiddlewareConsumer) {
				consumer.Apply(trace("h")).ForRoutes(core.RouteInfo{Path: "/cats/*", Method: core.MethodHead})
			},
		}
		app := newApp(mod, core.Options{})
		assert.Equal(t, "none", do(app, http.MethodGet, "/cats/tom", "").Body.String())
	})

	t.Run("Middleware Can Answer", func(t *testing.T) {
		deny := core.MiddlewareFunc(func(*platform.Request, *platform.Response, platform.NextFunc) error {
			return core.NewForbiddenException("nope")
		})
		mod := &core.Module{
			Controllers: []core.Controller{catsController},
			Configure: func(consumer *core.MiddlewareConsumer) {
				consumer.Apply(deny).ForPaths("*")
			},
		}
		app := newApp(mod, core.Options{})
		rec := do(app, http.MethodGet, "/cats/tom", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.JSONEq(t, `{"statusCode":403,"message":"nope","error":"Forbidden"}`, rec.Body.String())
	})
}

var errLegacy = errors.New("legacy failure")

func TestExceptionFilters(t *testing.T) {
	ctrl := core.ControllerFunc(func(r *core.RouteBuilder) {
		r.Get("/conflict", func(*core.Context) (any, error) { return nil, core.NewConflictException("taken") })
		r.Get("/missing", func(*core.Context) (any, error) { return nil, core.NewNotFoundException(nil) })
		r.Get("/legacy", func(*core.Context) (any, error) { return nil, errLegacy })
	})

	t.Run("Built-in Filter", func(t *testing.T) {
		app := newApp(module(ctrl), core.Options{})

		rec := do(app, http.MethodGet, "/conflict", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.JSONEq(t, `{"statusCode":409,"message":"taken","error":"Conflict"}`, rec.Body.String())

		rec = do(app, http.MethodGet, "/missing", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"statusCode":404,"message":"Not Found"}`, rec.Body.String())
	})

	t.Run("Global Filters", func(t *testing.T) {
		app := newApp(module(ctrl), core.Options{})
		app.UseGlobalFilters(
			core.Catch(func(e *core.HTTPException, c *core.Context) error {
				if e.Status != http.StatusConflict {
					return e
				}
				res := c.Res()
				res.Status(http.StatusTeapot).Send(res.Text("teapot"))
				return nil
			}),
			core.ExceptionFilterFunc(func(err error, _ *core.Context) error {
				if errors.Is(err, errLegacy) {
					return core.NewBadRequestException("mapped")
				}
				return err
			}),
		)

		rec := do(app, http.MethodGet, "/conflict", "")
		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.Equal(t, "teapot", rec.Body.String())

		rec = do(app, http.MethodGet, "/legacy", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"statusCode":400,"message":"mapped","error":"Bad Request"}`, rec.Body.String())

		rec = do(app, http.MethodGet, "/missing", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Client Status Errors Keep Their Status", func(t *testing.T) {
		app := newApp(module(ctrl), core.Options{BodyLimit: 4})
		rec := do(app, http.MethodPost, "/conflict", "way too long")
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.JSONEq(t,
			`{"statusCode":413,"message":"request body too large","error":"Request Entity Too Large"}`,
			rec.Body.String())
	})
}

func TestHTTPException(t *testing.T) {
	e := core.NewUnprocessableEntityException([]string{"a", "b"})
	assert.Equal(t, http.StatusUnprocessableEntity, e.StatusCode())
	assert.Equal(t, "[a b]", e.Error())
	assert.Equal(t, core.ExceptionBody{
		StatusCode: http.StatusUnprocessableEntity,
		Message:    []string{"a", "b"},
		Error:      "Unprocessable Entity",
	}, e.Body())

	assert.Equal(t, "Unauthorized", core.NewUnauthorizedException("").Error())

	wrapped := &core.HTTPException{Status: http.StatusBadRequest, Cause: errLegacy}
	assert.ErrorIs(t, wrapped, errLegacy)
	assert.Equal(t, http.StatusBadRequest, platform.StatusOf(wrapped))
}
