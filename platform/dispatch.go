package platform

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/iaconlabs/warpcore/adapter"
)

const bridgeKey = "warpcore.bridge"

// bridge is the Request/Response pair of one HTTP request. It lives in the
// shared value bag of the request state so every layer finds the same pair.
type bridge struct {
	req *Request
	res *Response
}

// bridge returns the pair of the request, creating it on first use. The
// request is rebound so that it sees the latest path parameters, and the
// writer is rewrapped when an engine handed us its own.
func (a *RouterAdapter) bridge(w http.ResponseWriter, r *http.Request) *bridge {
	r, state := adapter.EnsureState(r)
	if v, ok := state.Values.Get(bridgeKey); ok {
		if b, ok := v.(*bridge); ok {
			b.req.rebind(r)
			if rw, ok := w.(*responseWriter); !ok || rw != b.res.w {
				b.res.w = b.res.w.rewrap(w)
			}
			return b
		}
	}
	b := &bridge{req: newRequest(r, state), res: newResponse(w)}
	b.res.w.head = r.Method == http.MethodHead
	state.Values.Set(bridgeKey, b)
	return b
}

// bridgeLayer is the outermost layer. It applies the body limit, captures
// the body, creates the bridge and recovers panics. Multipart files spilled
// to disk are removed once the request is done.
func (a *RouterAdapter) bridgeLayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := adapter.StateFrom(r); !ok {
			a.mu.RLock()
			limit := a.bodyLimit
			a.mu.RUnlock()
			if limit > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
		}

		r, state := adapter.EnsureState(r)
		b := a.bridge(w, r)
		defer func() {
			if err := b.req.release(); err != nil {
				a.logger.Warn("remove multipart files", "error", err, "request_id", b.req.ID())
			}
		}()
		defer a.recoverTo(b)

		var tooLarge *http.MaxBytesError
		if errors.As(state.BodyErr, &tooLarge) {
			a.handleError(&StatusError{Code: http.StatusRequestEntityTooLarge, Err: ErrBodyTooLarge}, b)
			return
		}

		next.ServeHTTP(b.res.w, r)
	})
}

// dispatch runs the framework middleware matching the request, in
// registration order, and then the router.
func (a *RouterAdapter) dispatch(w http.ResponseWriter, r *http.Request) {
	b := a.bridge(w, r)

	if err := a.run(b, a.matching(r.Method, r.URL.Path), 0); err != nil {
		a.handleError(err, b)
		return
	}
	// A middleware answered without calling next.
	if err := b.res.flush(); err != nil {
		a.handleError(err, b)
	}
}

func (a *RouterAdapter) run(b *bridge, chain []scoped, i int) error {
	if i == len(chain) {
		a.router.ServeHTTP(b.res.w, b.req.raw)
		return nil
	}

	called := false
	err := chain[i].handler(b.req, b.res, func() error {
		if called {
			return nil
		}
		called = true
		return a.run(b, chain, i+1)
	})
	if err != nil {
		return err
	}
	if !called && !b.res.Finalized() {
		return &StatusError{Code: http.StatusInternalServerError, Err: ErrNotFinalized}
	}
	return nil
}

func noNext() error { return nil }

// routeHandler bridges a framework route handler into the router.
func (a *RouterAdapter) routeHandler(h Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := a.bridge(w, r)
		defer a.recoverTo(b)

		if err := a.parseBody(b.req); err != nil {
			a.handleError(err, b)
			return
		}
		if err := h(b.req, b.res, noNext); err != nil {
			a.handleError(err, b)
			return
		}
		if err := b.res.flush(); err != nil {
			a.handleError(err, b)
		}
	}
}

func (a *RouterAdapter) handleNotFound(w http.ResponseWriter, r *http.Request) {
	b := a.bridge(w, r)

	a.mu.RLock()
	h := a.notFound
	a.mu.RUnlock()

	if h == nil {
		b.res.Status(http.StatusNotFound).Send(b.res.Text("404 Not Found"))
	} else if err := h(b.req, b.res, noNext); err != nil {
		a.handleError(err, b)
		return
	}
	if err := b.res.flush(); err != nil {
		a.handleError(err, b)
	}
}

// handleError hands err to the error handler on a clean response. Errors
// raised after the response started can only be logged.
func (a *RouterAdapter) handleError(err error, b *bridge) {
	if b.res.Written() {
		a.logger.Error("error after response was written",
			"error", err, "request_id", b.req.ID(), "path", b.req.Path())
		return
	}
	b.res.reset()

	a.mu.RLock()
	h := a.errorHandler
	a.mu.RUnlock()

	if h != nil {
		h(err, b.req, b.res)
	} else {
		status := StatusOf(err)
		msg := http.StatusText(status)
		var se *StatusError
		if errors.As(err, &se) {
			msg = se.Error()
		}
		if status >= http.StatusInternalServerError {
			a.logger.Error("request failed", "error", err, "request_id", b.req.ID(), "path", b.req.Path())
		}
		b.res.Status(status).Send(b.res.Text(msg))
	}

	if ferr := b.res.flush(); ferr != nil {
		a.logger.Error("render error response", "error", ferr, "request_id", b.req.ID())
		if !b.res.Written() {
			http.Error(b.res.w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}

// recoverTo turns a panic into a PanicError for the error handler. It must
// be deferred directly.
func (a *RouterAdapter) recoverTo(b *bridge) {
	v := recover()
	if v == nil {
		return
	}
	if v == http.ErrAbortHandler {
		panic(v)
	}

	pe := &PanicError{Value: v, Stack: debug.Stack()}
	message := fmt.Sprintf("PANIC RECOVERED: %v", v)
	if a.opts.Stack {
		message = fmt.Sprintf("%s\n\n%s", message, pe.Stack)
	}
	a.logger.Error(message, "request_id", b.req.ID(), "path", b.req.Path())

	a.handleError(pe, b)
}
