package platform

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

const multipartMemory = 32 << 20

// Bytes returns the captured request body.
func (req *Request) Bytes() []byte {
	if req.state == nil {
		return nil
	}
	return req.state.Body
}

// UseBodyParser registers parser for a media type, replacing any previous
// parser. Parameters such as charset are ignored when matching.
func (a *RouterAdapter) UseBodyParser(contentType string, parser BodyParser) {
	if parser == nil {
		return
	}
	media := strings.ToLower(strings.TrimSpace(contentType))
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		media = parsed
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.parsers[media] = parser
}

// RegisterParserMiddleware installs the default parsers for JSON,
// urlencoded forms, multipart forms and plain text. Parsers already
// registered for those media types are kept, and later calls do nothing.
// rawBody keeps the unparsed body available through Request.RawBody.
func (a *RouterAdapter) RegisterParserMiddleware(rawBody bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.parsersRegistered {
		return
	}
	a.parsersRegistered = true
	a.rawBody = rawBody

	for media, parser := range defaultParsers {
		if _, ok := a.parsers[media]; !ok {
			a.parsers[media] = parser
		}
	}
}

var defaultParsers = map[string]BodyParser{
	"application/x-www-form-urlencoded": parseForm,
	"multipart/form-data":               parseMultipart,
	"application/json":                  parseJSON,
	"text/plain":                        parseText,
}

// UseBodyLimit rejects bodies larger than limit bytes with 413. It must be
// set before the first request.
func (a *RouterAdapter) UseBodyLimit(limit int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bodyLimit = limit
}

// parseBody runs the parser registered for the request content type, once.
// Requests without a matching parser keep a nil body.
func (a *RouterAdapter) parseBody(req *Request) error {
	if req.parsed {
		return nil
	}
	req.parsed = true

	a.mu.RLock()
	keepRaw := a.rawBody
	a.mu.RUnlock()
	if keepRaw {
		req.rawBody = req.Bytes()
	}

	ct := req.raw.Header.Get(contentType)
	if ct == "" {
		return nil
	}
	media, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return nil
	}

	a.mu.RLock()
	parser := a.parsers[media]
	a.mu.RUnlock()
	if parser == nil {
		return nil
	}

	body, err := parser(req)
	if err != nil {
		return &StatusError{Code: http.StatusBadRequest, Err: fmt.Errorf("parse %s body: %w", media, err)}
	}
	req.body = body
	return nil
}

func parseJSON(req *Request) (any, error) {
	raw := req.Bytes()
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func parseText(req *Request) (any, error) {
	return string(req.Bytes()), nil
}

func parseForm(req *Request) (any, error) {
	values, err := url.ParseQuery(string(req.Bytes()))
	if err != nil {
		return nil, err
	}
	return flatten(values), nil
}

func parseMultipart(req *Request) (any, error) {
	_, params, err := mime.ParseMediaType(req.raw.Header.Get(contentType))
	if err != nil {
		return nil, err
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, errors.New("missing multipart boundary")
	}

	form, err := multipart.NewReader(bytes.NewReader(req.Bytes()), boundary).ReadForm(multipartMemory)
	if err != nil {
		return nil, err
	}
	req.form = form
	req.files = form.File
	return flatten(form.Value), nil
}

// release removes the temporary files a multipart body spilled to disk.
func (req *Request) release() error {
	if req.form == nil {
		return nil
	}
	form := req.form
	req.form = nil
	return form.RemoveAll()
}

// flatten keeps single values as strings and repeated ones as slices.
func flatten(values map[string][]string) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) == 1 {
			out[k] = v[0]
		} else {
			out[k] = v
		}
	}
	return out
}
