package platform

import (
	"context"
	"mime/multipart"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/iaconlabs/warpcore/adapter"
)

// RequestIDHeader is honoured when the client already carries a request id.
const RequestIDHeader = "X-Request-Id"

// Request is the framework view of an incoming request. One Request exists
// per HTTP request; it follows the request through framework middleware,
// routing and error handling. Query, headers and IP are computed on first
// use.
type Request struct {
	raw   *http.Request
	state *adapter.State
	id    string

	body    any
	rawBody []byte
	files   map[string][]*multipart.FileHeader
	form    *multipart.Form
	hosts   map[string]string
	parsed  bool

	query   map[string]string
	headers map[string]string
	ip      string
	ipDone  bool
}

func newRequest(r *http.Request, state *adapter.State) *Request {
	id := r.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	return &Request{raw: r, state: state, id: id}
}

// rebind points the request at the routed *http.Request, whose state carries
// the path parameters.
func (req *Request) rebind(r *http.Request) {
	req.raw = r
	if state, ok := adapter.StateFrom(r); ok {
		req.state = state
	}
}

// Raw returns the underlying *http.Request.
func (req *Request) Raw() *http.Request { return req.raw }

// Context returns the request context.
func (req *Request) Context() context.Context { return req.raw.Context() }

// ID returns the request id, taken from X-Request-Id or generated.
func (req *Request) ID() string { return req.id }

// Method returns the HTTP method.
func (req *Request) Method() string { return req.raw.Method }

// Path returns the URL path.
func (req *Request) Path() string { return req.raw.URL.Path }

// URL returns the absolute request URL.
func (req *Request) URL() string {
	scheme := "http"
	if req.raw.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + req.raw.Host + req.raw.URL.RequestURI()
}

// Hostname returns the Host header, or "" when absent.
func (req *Request) Hostname() string { return req.raw.Host }

// Body returns the parsed body, or nil when no parser matched the
// request content type.
func (req *Request) Body() any { return req.body }

// BodyValue returns one field of the parsed body.
func (req *Request) BodyValue(key string) any {
	switch b := req.body.(type) {
	case map[string]any:
		return b[key]
	case map[string]string:
		if v, ok := b[key]; ok {
			return v
		}
	}
	return nil
}

// RawBody returns the unparsed body when raw bodies are enabled.
func (req *Request) RawBody() []byte { return req.rawBody }

// Params returns the path parameters of the matched route.
func (req *Request) Params() map[string]string {
	if req.state == nil {
		return map[string]string{}
	}
	return req.state.Params
}

// Param returns a single path parameter.
func (req *Request) Param(key string) string {
	return adapter.LookupParam(req.raw, key)
}

// Query returns the first value of a query parameter.
func (req *Request) Query(key string) string {
	return req.QueryMap()[key]
}

// QueryMap returns the query string, first value per key.
func (req *Request) QueryMap() map[string]string {
	if req.query == nil {
		values := req.raw.URL.Query()
		req.query = make(map[string]string, len(values))
		for k, v := range values {
			if len(v) > 0 {
				req.query[k] = v[0]
			}
		}
	}
	return req.query
}

// Headers returns the request headers keyed by lower-cased name.
func (req *Request) Headers() map[string]string {
	if req.headers == nil {
		req.headers = make(map[string]string, len(req.raw.Header)+1)
		for k, v := range req.raw.Header {
			req.headers[strings.ToLower(k)] = strings.Join(v, ", ")
		}
		if req.raw.Host != "" {
			req.headers["host"] = req.raw.Host
		}
	}
	return req.headers
}

// Header returns one request header.
func (req *Request) Header(name string) string {
	if strings.EqualFold(name, "host") {
		return req.raw.Host
	}
	return req.raw.Header.Get(name)
}

// IP returns the remote address of the connection without the port.
func (req *Request) IP() string {
	if !req.ipDone {
		req.ipDone = true
		host, _, err := net.SplitHostPort(req.raw.RemoteAddr)
		if err != nil {
			host = req.raw.RemoteAddr
		}
		req.ip = host
	}
	return req.ip
}

// Hosts returns the parameters captured by a host pattern.
func (req *Request) Hosts() map[string]string {
	if req.hosts == nil {
		return map[string]string{}
	}
	return req.hosts
}

// SetHosts stores the parameters captured by a host pattern.
func (req *Request) SetHosts(hosts map[string]string) { req.hosts = hosts }

// Session returns the value stored under "session", if any.
func (req *Request) Session() any {
	v, _ := req.Get("session")
	return v
}

// Files returns the files of a parsed multipart body.
func (req *Request) Files() map[string][]*multipart.FileHeader {
	if req.files == nil {
		return map[string][]*multipart.FileHeader{}
	}
	return req.files
}

// Get returns a value shared by every handler of the request.
func (req *Request) Get(key string) (any, bool) {
	if req.state == nil {
		return nil, false
	}
	return req.state.Values.Get(key)
}

// Set stores a value shared by every handler of the request.
func (req *Request) Set(key string, val any) {
	if req.state != nil {
		req.state.Values.Set(key, val)
	}
}
