// Package muxadapter provides the warpcore router engine for the standard
// library [http.ServeMux].
package muxadapter

import (
	"net/http"
	"strings"

	"github.com/iaconlabs/warpcore/adapter"
	"github.com/iaconlabs/warpcore/router"
)

var _ router.Router = (*MuxAdapter)(nil)

// PathParamCleaner encodes parameter names into valid ServeMux wildcard
// names and back. ServeMux only accepts Go identifiers.
type PathParamCleaner struct {
	encode func(string) string
	decode func(string) string
}

// MuxConfig holds configuration for the ServeMux adapter.
type MuxConfig struct {
	PathParamCleaner PathParamCleaner
}

var identReplacer = strings.NewReplacer("-", "_dash_", ".", "_dot_")
var identRestorer = strings.NewReplacer("_dash_", "-", "_dot_", ".")

// NewDefaultMuxConfig returns a configuration whose cleaner maps dashes and
// dots, the only non identifier characters accepted in parameter names.
func NewDefaultMuxConfig() *MuxConfig {
	return &MuxConfig{PathParamCleaner: PathParamCleaner{
		encode: identReplacer.Replace,
		decode: identRestorer.Replace,
	}}
}

// MuxAdapter implements router.Router using [http.ServeMux]. ServeMux
// already prefers the most specific pattern, so no reordering is needed.
type MuxAdapter struct {
	adapter.Base
	mux *http.ServeMux
	cfg *MuxConfig
}

// NewMuxAdapter creates a new adapter. If cfg is nil, defaults are used.
func NewMuxAdapter(cfg *MuxConfig) *MuxAdapter {
	if cfg == nil {
		cfg = NewDefaultMuxConfig()
	}
	return &MuxAdapter{Base: adapter.NewBase(), mux: http.NewServeMux(), cfg: cfg}
}

// Group returns a prefixed view of the same multiplexer.
func (a *MuxAdapter) Group(prefix string) router.Router {
	return &MuxAdapter{Base: a.Sub(prefix), mux: a.mux, cfg: a.cfg}
}

// ServeHTTP mounts pending routes and dispatches through the multiplexer.
func (a *MuxAdapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.Mount(a.mount, a.notFound)
	r, _ = adapter.EnsureState(r)
	a.mux.ServeHTTP(w, r)
}

// Engine returns the underlying *http.ServeMux.
func (a *MuxAdapter) Engine() any { return a.mux }

func (a *MuxAdapter) mount(rt *adapter.Route) {
	pattern, keys := a.translate(rt.Path)
	a.mux.Handle(rt.Method+" "+pattern, a.wrapState(rt.Handler, keys))
}

func (a *MuxAdapter) notFound(h http.Handler) {
	if h == nil {
		return
	}
	// "/" without a method is the least specific pattern ServeMux accepts.
	a.mux.Handle("/", h)
}

// muxKey is the ServeMux wildcard of a neutral parameter.
type muxKey struct {
	wildcard string
	catchAll bool
}

// translate converts a neutral path into a ServeMux pattern.
func (a *MuxAdapter) translate(path string) (string, []muxKey) {
	var keys []muxKey

	if before, name, found := adapter.SplitWildcard(path); found {
		if name == "" {
			name = "any"
		}
		pattern, k := a.translate(before)
		safe := a.cfg.PathParamCleaner.encode(name)
		keys = append(k, muxKey{wildcard: safe, catchAll: true})
		return strings.TrimSuffix(pattern, "{$}") + "{" + safe + "...}", keys
	}

	segments := strings.Split(adapter.StripExtensions(path), "/")
	for i, seg := range segments {
		if name, found := strings.CutPrefix(seg, ":"); found {
			safe := a.cfg.PathParamCleaner.encode(name)
			keys = append(keys, muxKey{wildcard: safe})
			segments[i] = "{" + safe + "}"
		}
	}
	pattern := strings.Join(segments, "/")
	if strings.HasSuffix(pattern, "/") {
		// Exact match only: a bare trailing slash would match the subtree.
		pattern += "{$}"
	}
	return pattern, keys
}

func (a *MuxAdapter) wrapState(onion http.Handler, keys []muxKey) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params := make(map[string]string, len(keys)+1)
		for _, k := range keys {
			val := r.PathValue(k.wildcard)
			params[a.cfg.PathParamCleaner.decode(k.wildcard)] = val
			if k.catchAll {
				params["*"] = val
			}
		}
		onion.ServeHTTP(w, adapter.WithParams(r, params))
	})
}
