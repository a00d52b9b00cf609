package platform

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
)

const (
	contentType  = "Content-Type"
	mimeJSON     = "application/json"
	mimeText     = "text/plain; charset=UTF-8"
	mimeHTML     = "text/html; charset=UTF-8"
	unknownTypes = "cannot convert unknown types"
)

// Response collects what the framework wants to answer: a pending status,
// pending headers and a mounted body. Nothing reaches the client until the
// adapter renders it, unless a handler writes to Writer directly.
type Response struct {
	w       *responseWriter
	status  int
	header  http.Header
	body    any
	mounted bool
}

func newResponse(w http.ResponseWriter) *Response {
	return &Response{w: &responseWriter{ResponseWriter: w}, header: make(http.Header)}
}

// Status sets the pending status code.
func (res *Response) Status(code int) *Response {
	res.status = code
	return res
}

// StatusCode returns the written status, else the pending one, else 200.
func (res *Response) StatusCode() int {
	switch {
	case res.w.written:
		return res.w.status
	case res.status != 0:
		return res.status
	}
	return http.StatusOK
}

// Header returns the pending response headers.
func (res *Response) Header() http.Header { return res.header }

// Send mounts v as the response body. A later Send replaces it.
func (res *Response) Send(v any) {
	res.body = v
	res.mounted = true
}

// Body returns the mounted body.
func (res *Response) Body() any { return res.body }

// Sent reports whether a body was mounted.
func (res *Response) Sent() bool { return res.mounted }

// Written reports whether anything reached the underlying writer.
func (res *Response) Written() bool { return res.w.written }

// Finalized reports whether the response is settled, either mounted or
// already written.
func (res *Response) Finalized() bool { return res.mounted || res.w.written }

// Writer returns the writer for handlers that answer on their own.
func (res *Response) Writer() http.ResponseWriter { return res.w }

// Payload is a response built ahead of rendering. Pending headers of the
// Response are merged over its own when it is written.
type Payload struct {
	status int
	header http.Header
	body   []byte
	stream io.Reader
	err    error
}

// WithStatus overrides the pending status for this payload.
func (p *Payload) WithStatus(code int) *Payload {
	p.status = code
	return p
}

// Header returns the payload headers.
func (p *Payload) Header() http.Header { return p.header }

func newPayload(ct string) *Payload {
	p := &Payload{header: make(http.Header)}
	if ct != "" {
		p.header.Set(contentType, ct)
	}
	return p
}

// Text builds a text/plain payload.
func (res *Response) Text(s string) *Payload {
	p := newPayload(mimeText)
	p.body = []byte(s)
	return p
}

// HTML builds a text/html payload.
func (res *Response) HTML(s string) *Payload {
	p := newPayload(mimeHTML)
	p.body = []byte(s)
	return p
}

// JSON builds an application/json payload.
func (res *Response) JSON(v any) *Payload {
	p := newPayload(mimeJSON)
	p.body, p.err = json.Marshal(v)
	return p
}

// Blob builds a payload from raw bytes. ct may be empty.
func (res *Response) Blob(b []byte, ct string) *Payload {
	p := newPayload(ct)
	p.body = b
	return p
}

// Stream builds a payload copied from r. ct may be empty.
func (res *Response) Stream(r io.Reader, ct string) *Payload {
	p := newPayload(ct)
	p.stream = r
	return p
}

// Redirect builds a redirect payload. A zero status means 302.
func (res *Response) Redirect(url string, status int) *Payload {
	if status == 0 {
		status = http.StatusFound
	}
	p := newPayload("")
	p.status = status
	p.header.Set("Location", url)
	return p
}

// Empty builds a payload without body.
func (res *Response) Empty() *Payload { return newPayload("") }

// reset drops the pending state before an error handler takes over.
func (res *Response) reset() {
	res.status = 0
	res.header = make(http.Header)
	res.body = nil
	res.mounted = false
}

// flush renders the mounted body. It is a no-op once the writer was used.
func (res *Response) flush() error {
	if res.w.written {
		return nil
	}
	status := res.status
	if status == 0 {
		status = http.StatusOK
	}

	if p, ok := res.body.(*Payload); ok {
		return res.writePayload(p, status)
	}

	body, ct, err := encode(res.body, res.header.Get(contentType))
	if errors.Is(err, ErrUnknownType) {
		h := res.w.Header()
		h.Set(contentType, mimeText)
		res.w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(res.w, unknownTypes)
		return nil
	}
	if err != nil {
		return err
	}

	h := res.w.Header()
	copyHeader(h, res.header)
	if h.Get(contentType) == "" {
		if ct != "" {
			h.Set(contentType, ct)
		} else {
			// Suppress content sniffing by net/http.
			h[contentType] = nil
		}
	}
	res.w.WriteHeader(status)
	return writeBody(res.w, body)
}

func (res *Response) writePayload(p *Payload, status int) error {
	if p.err != nil {
		return p.err
	}
	if p.status != 0 {
		status = p.status
	}
	h := res.w.Header()
	copyHeader(h, p.header)
	copyHeader(h, res.header)
	if h.Get(contentType) == "" {
		h[contentType] = nil
	}
	res.w.WriteHeader(status)
	if p.stream != nil {
		return writeBody(res.w, p.stream)
	}
	return writeBody(res.w, p.body)
}

// encode turns a handler result into bytes or a reader. When a content type
// is pending its media type decides the encoding; otherwise the Go type does
// and the returned content type is the one to announce.
func encode(v any, pending string) (any, string, error) {
	if pending != "" {
		media, _, err := mime.ParseMediaType(pending)
		if err != nil {
			media = pending
		}
		if media == mimeJSON {
			b, err := marshal(v)
			return b, "", err
		}
		b, err := raw(v)
		return b, "", err
	}

	switch b := v.(type) {
	case nil:
		return nil, "", nil
	case string:
		return []byte(b), mimeText, nil
	case []byte, io.Reader:
		return b, "", nil
	}
	b, err := marshal(v)
	return b, mimeJSON, err
}

// raw writes strings, bytes and readers as they are and JSON for the rest.
func raw(v any) (any, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(b), nil
	case []byte, io.Reader:
		return b, nil
	}
	return marshal(v)
}

func marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	var unsupported *json.UnsupportedTypeError
	if errors.As(err, &unsupported) {
		return nil, ErrUnknownType
	}
	return b, err
}

func writeBody(w io.Writer, body any) error {
	switch b := body.(type) {
	case []byte:
		if len(b) == 0 {
			return nil
		}
		_, err := w.Write(b)
		return err
	case io.Reader:
		_, err := io.Copy(w, b)
		if c, ok := b.(io.Closer); ok {
			_ = c.Close()
		}
		return err
	}
	return nil
}

func copyHeader(dst, src http.Header) {
	for k, v := range src {
		dst[k] = append([]string(nil), v...)
	}
}

// responseWriter records whether the response was started. HEAD responses
// keep their headers and drop the body.
type responseWriter struct {
	http.ResponseWriter
	status  int
	written bool
	head    bool
}

// rewrap returns a writer over w that keeps the progress recorded so far.
func (rw *responseWriter) rewrap(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: rw.status, written: rw.written, head: rw.head}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.written {
		return
	}
	rw.status = code
	rw.written = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	if rw.head {
		return len(b), nil
	}
	return rw.ResponseWriter.Write(b)
}

// Flush implements http.Flusher when the underlying writer does.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		if !rw.written {
			rw.WriteHeader(http.StatusOK)
		}
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
