// Package server provides a production-ready HTTP server wrapper with support
// for graceful shutdown, TLS and configuration defaults.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	defaultTimeout      = 5 * time.Second
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 15 * time.Second
	defaultIdleTimeout  = 60 * time.Second
)

// Config defines the timeouts, address and TLS material for the HTTP server.
type Config struct {
	Addr         string        `env:"ADDR" envDefault:":3000"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT"`
	// CertFile and KeyFile enable TLS when both are set.
	CertFile string `env:"TLS_CERT_FILE"`
	KeyFile  string `env:"TLS_KEY_FILE"`
	// ForceCloseConnections makes Shutdown close active connections
	// instead of waiting for in-flight requests.
	ForceCloseConnections bool `env:"FORCE_CLOSE_CONNECTIONS"`
}

// Server wraps the standard [http.Server].
type Server struct {
	cfg        Config
	httpServer *http.Server
	ln         net.Listener
	addr       string
	mu         sync.RWMutex
	ready      chan struct{}
}

// New initializes a new Server with the given config and handler.
func New(cfg Config, handler http.Handler) *Server {
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}

	s := &Server{
		cfg:   cfg,
		ready: make(chan struct{}),
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Start runs the HTTP server. This call is blocking until the server is closed.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.ln = ln
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	close(s.ready) // Addr() is now available

	if s.TLS() {
		err = s.httpServer.ServeTLS(ln, s.cfg.CertFile, s.cfg.KeyFile)
	} else {
		err = s.httpServer.Serve(ln)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Shutdown stops the server. Unless ForceCloseConnections is set it waits
// for active connections to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cfg.ForceCloseConnections {
		return s.httpServer.Close()
	}
	return s.httpServer.Shutdown(ctx)
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// TLS reports whether the server serves HTTPS.
func (s *Server) TLS() bool {
	return s.cfg.CertFile != "" && s.cfg.KeyFile != ""
}

// Addr returns the network address the server is listening on.
// It waits for the server to be ready, making it safe for use in tests with dynamic ports.
func (s *Server) Addr() string {
	select {
	case <-s.ready:
	case <-time.After(defaultTimeout):
		return ""
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}
