package platform

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/iaconlabs/warpcore/server"
)

const fakeAddress = "127.0.0.1"

// Server is what the adapter needs from an HTTP server. *server.Server
// implements it.
type Server interface {
	// Start serves until the server is shut down.
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
	// Ready is closed once the server accepts connections.
	Ready() <-chan struct{}
	Addr() string
}

var _ Server = (*server.Server)(nil)

// InitConfig is handed to a custom server factory.
type InitConfig struct {
	Server  server.Config
	Handler http.Handler
}

// ListenConfig is handed to a custom listen hook.
type ListenConfig struct {
	InitConfig
	Addr string
}

type lifecycle struct {
	lmu       sync.Mutex
	serverCfg server.Config
	srv       Server
	fake      bool
	done      chan struct{}
}

// InitHTTPServer records the server configuration and builds the custom
// server when a factory is configured.
func (a *RouterAdapter) InitHTTPServer(cfg server.Config) {
	a.lmu.Lock()
	defer a.lmu.Unlock()
	a.serverCfg = cfg
	if a.opts.InitHTTPServer != nil {
		a.srv = a.opts.InitHTTPServer(InitConfig{Server: cfg, Handler: a})
	}
}

// GetHTTPServer returns the running server, nil before Listen or on a fake
// server.
func (a *RouterAdapter) GetHTTPServer() Server {
	a.lmu.Lock()
	defer a.lmu.Unlock()
	return a.srv
}

// Listen starts serving on addr and returns once the listener is bound.
// With a Listen hook and no custom server the adapter only records a fake
// server: the hook is in charge of serving.
func (a *RouterAdapter) Listen(ctx context.Context, addr string) error {
	a.lmu.Lock()
	defer a.lmu.Unlock()

	cfg := a.serverCfg
	if addr != "" {
		cfg.Addr = addr
	}

	if a.opts.Listen != nil {
		err := a.opts.Listen(ctx, ListenConfig{
			InitConfig: InitConfig{Server: cfg, Handler: a},
			Addr:       cfg.Addr,
		})
		if err != nil {
			return err
		}
		if a.srv == nil {
			a.fake = true
			return nil
		}
	}

	if a.srv == nil {
		a.srv = server.New(cfg, a)
	}

	srv := a.srv
	errCh := make(chan error, 1)
	done := make(chan struct{})
	a.done = done
	go func() {
		defer close(done)
		if err := srv.Start(context.WithoutCancel(ctx)); err != nil {
			errCh <- err
			a.logger.Error("http server stopped", "error", err)
		}
	}()

	select {
	case <-srv.Ready():
		a.logger.Info("http server listening", "addr", srv.Addr(), "type", a.GetType())
		return nil
	case err := <-errCh:
		return err
	case <-done:
		return errors.New("platform: server stopped before listening")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts the server down and waits for it to stop or ctx to expire.
func (a *RouterAdapter) Close(ctx context.Context) error {
	a.lmu.Lock()
	defer a.lmu.Unlock()

	if a.fake {
		if a.opts.Close != nil {
			return a.opts.Close(ctx)
		}
		return nil
	}
	if a.srv == nil {
		return nil
	}

	err := a.srv.Shutdown(ctx)
	if a.done != nil {
		select {
		case <-a.done:
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
		}
	}
	return err
}

// Address returns the listening address, the fake address, or "".
func (a *RouterAdapter) Address() string {
	a.lmu.Lock()
	defer a.lmu.Unlock()

	switch {
	case a.fake && a.opts.Address != nil:
		return a.opts.Address()
	case a.fake:
		return fakeAddress
	case a.srv != nil:
		return a.srv.Addr()
	}
	return ""
}
