package core

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/iaconlabs/warpcore/middleware"
	"github.com/iaconlabs/warpcore/platform"
)

type responseMode int

const (
	modeFramework responseMode = iota
	// The handler sends the response itself.
	modeLibrary
	// The handler touches the response but the framework still sends it.
	modePassthrough
)

// Context gives a handler access to the current request and response.
type Context struct {
	req  *platform.Request
	res  *platform.Response
	mode responseMode
}

func newContext(req *platform.Request, res *platform.Response) *Context {
	return &Context{req: req, res: res}
}

// Context returns the context of the request.
func (c *Context) Context() context.Context { return c.req.Context() }

func (c *Context) Query(key string) string     { return c.req.Query(key) }
func (c *Context) QueryMap() map[string]string { return c.req.QueryMap() }
func (c *Context) Param(key string) string     { return c.req.Param(key) }
func (c *Context) Params() map[string]string   { return c.req.Params() }
func (c *Context) Body() any                   { return c.req.Body() }
func (c *Context) BodyValue(key string) any    { return c.req.BodyValue(key) }
func (c *Context) Headers() map[string]string  { return c.req.Headers() }
func (c *Context) Header(name string) string   { return c.req.Header(name) }
func (c *Context) IP() string                  { return c.req.IP() }
func (c *Context) Hosts() map[string]string    { return c.req.Hosts() }
func (c *Context) Session() any                { return c.req.Session() }

// Files returns the uploaded files of a multipart body.
func (c *Context) Files() map[string][]*multipart.FileHeader { return c.req.Files() }

// HostParam returns a value captured by the host pattern of the controller.
func (c *Context) HostParam(key string) string { return c.req.Hosts()[key] }

// Get reads a value shared by middleware for this request.
func (c *Context) Get(key string) (any, bool) { return c.req.Get(key) }

// Set shares a value with the rest of the request.
func (c *Context) Set(key string, val any) { c.req.Set(key, val) }

// Req returns the platform request.
func (c *Context) Req() *platform.Request { return c.req }

// Res returns the response and hands it over to the handler: the value the
// handler returns is ignored and nothing is sent on its behalf.
func (c *Context) Res() *platform.Response {
	if c.mode != modePassthrough {
		c.mode = modeLibrary
	}
	return c.res
}

// ResPassthrough returns the response for headers or status changes while
// the framework still sends the returned value.
func (c *Context) ResPassthrough() *platform.Response {
	c.mode = modePassthrough
	return c.res
}

// Bind decodes the JSON body into a new T, fills fields tagged "param" from
// the path and validates the result. Failures are 400 HTTPExceptions that
// list the offending fields.
func Bind[T any](c *Context) (*T, error) {
	v, err := middleware.Bind[T](c.req.Raw())
	if err == nil {
		return v, nil
	}

	var be *middleware.BindError
	if !errors.As(err, &be) {
		return nil, err
	}
	var message any = be.Message
	if len(be.Details) > 0 {
		msgs := make([]string, 0, len(be.Details))
		for _, d := range be.Details {
			msgs = append(msgs, d.Field+": "+d.Message)
		}
		message = msgs
	}
	return nil, &HTTPException{Status: http.StatusBadRequest, Message: message, Cause: err}
}
