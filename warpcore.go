// Package warpcore runs core applications on interchangeable router
// engines. It picks the engine by name, wraps it in a platform adapter and
// builds the application around it.
package warpcore

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/iaconlabs/warpcore/adapter/chiadapter"
	"github.com/iaconlabs/warpcore/adapter/echoadapter"
	"github.com/iaconlabs/warpcore/adapter/fiberadapter"
	"github.com/iaconlabs/warpcore/adapter/ginadapter"
	"github.com/iaconlabs/warpcore/adapter/muxadapter"
	"github.com/iaconlabs/warpcore/config"
	"github.com/iaconlabs/warpcore/core"
	"github.com/iaconlabs/warpcore/platform"
	"github.com/iaconlabs/warpcore/router"
	"github.com/iaconlabs/warpcore/server"
)

// DefaultEngine is used when no engine is named.
const DefaultEngine = "chi"

var engines = map[string]func() router.Router{
	"chi":   func() router.Router { return chiadapter.NewChiAdapter() },
	"echo":  func() router.Router { return echoadapter.NewEchoAdapter() },
	"fiber": func() router.Router { return fiberadapter.NewFiberAdapter() },
	"gin":   func() router.Router { return ginadapter.NewGinAdapter() },
	"mux":   func() router.Router { return muxadapter.NewMuxAdapter(nil) },
}

// Engines lists the engine names accepted by NewRouter and NewAdapter.
func Engines() []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewRouter returns a fresh router of the named engine.
func NewRouter(engine string) (router.Router, error) {
	if engine == "" {
		engine = DefaultEngine
	}
	factory, ok := engines[engine]
	if !ok {
		return nil, fmt.Errorf("warpcore: unknown engine %q (want one of %v)", engine, Engines())
	}
	return factory(), nil
}

// NewAdapter returns a platform adapter running on the named engine.
func NewAdapter(engine string, opts platform.Options) (*platform.RouterAdapter, error) {
	if engine == "" {
		engine = DefaultEngine
	}
	r, err := NewRouter(engine)
	if err != nil {
		return nil, err
	}
	if opts.EngineName == "" {
		opts.EngineName = engine
	}
	return platform.New(r, opts), nil
}

// Option customizes Create.
type Option func(*core.Options)

func WithLogger(l *slog.Logger) Option {
	return func(o *core.Options) { o.Logger = l }
}

func WithServer(cfg server.Config) Option {
	return func(o *core.Options) { o.Server = cfg }
}

func WithGlobalPrefix(prefix string) Option {
	return func(o *core.Options) { o.GlobalPrefix = prefix }
}

func WithBodyLimit(limit int64) Option {
	return func(o *core.Options) { o.BodyLimit = limit }
}

// WithRawBody keeps the raw bytes of parsed bodies.
func WithRawBody() Option {
	return func(o *core.Options) { o.RawBody = true }
}

// WithoutBodyParser leaves request bodies unparsed.
func WithoutBodyParser() Option {
	return func(o *core.Options) { o.DisableBodyParser = true }
}

func WithCors(cors platform.CORSOptions) Option {
	return func(o *core.Options) { o.Cors = &cors }
}

// Create builds an application serving root through a.
func Create(root *core.Module, a platform.HTTPAdapter, opts ...Option) *core.Application {
	var o core.Options
	for _, opt := range opts {
		opt(&o)
	}
	return core.New(root, a, o)
}

// CreateFromConfig builds the adapter and the application described by cfg.
// Logs go to stderr.
func CreateFromConfig(root *core.Module, cfg config.Config) (*core.Application, error) {
	logger := cfg.NewLogger(os.Stderr)
	a, err := NewAdapter(cfg.Engine, platform.Options{Logger: logger, Stack: cfg.LogStack})
	if err != nil {
		return nil, err
	}

	return core.New(root, a, core.Options{
		Logger:       logger,
		Server:       cfg.Server,
		RawBody:      cfg.RawBody,
		BodyLimit:    cfg.BodyLimit,
		Cors:         cfg.CORS(),
		GlobalPrefix: cfg.GlobalPrefix,
	}), nil
}
