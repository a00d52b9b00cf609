// Package config loads warpcore settings from WARPCORE_* environment
// variables and builds the logger shared by every layer.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/iaconlabs/warpcore/platform"
	"github.com/iaconlabs/warpcore/server"
)

// Prefix is prepended to every variable name.
const Prefix = "WARPCORE_"

// Config holds the runtime settings of a warpcore application.
type Config struct {
	// Engine selects the router: chi, echo, gin, fiber or mux.
	Engine string `env:"ENGINE" envDefault:"chi"`
	// Server is read from WARPCORE_HTTP_ADDR, WARPCORE_HTTP_READ_TIMEOUT...
	Server server.Config `envPrefix:"HTTP_"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text"`
	// LogStack adds stack traces to logged panics.
	LogStack bool `env:"LOG_STACK"`

	GlobalPrefix string `env:"GLOBAL_PREFIX"`
	BodyLimit    int64  `env:"BODY_LIMIT"`
	RawBody      bool   `env:"RAW_BODY"`
	// CORSOrigins enables CORS for the listed origins. "*" allows any.
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom reads the configuration from environ instead of the process
// environment.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	if c.BodyLimit < 0 {
		return fmt.Errorf("config: negative body limit %d", c.BodyLimit)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("config: shutdown timeout must be positive, got %s", c.ShutdownTimeout)
	}
	return nil
}

// NewLogger builds the logger described by c, writing to w.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// CORS returns the CORS options, or nil when CORS is disabled.
func (c Config) CORS() *platform.CORSOptions {
	if len(c.CORSOrigins) == 0 {
		return nil
	}
	origins := make([]string, 0, len(c.CORSOrigins))
	for _, o := range c.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return &platform.CORSOptions{Origins: origins}
}
