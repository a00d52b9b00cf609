package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iaconlabs/warpcore"
	"github.com/iaconlabs/warpcore/config"
)

type serveFlags struct {
	engine string
	addr   string
	prefix string
}

func newServeCmd() *cobra.Command {
	var flags serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo application",
		Long: `Serves the demo cats application. Settings come from WARPCORE_*
environment variables; flags override them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("engine") {
				cfg.Engine = flags.engine
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = flags.addr
			}
			if cmd.Flags().Changed("prefix") {
				cfg.GlobalPrefix = flags.prefix
			}

			signals := make(chan os.Signal, 1)
			signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(signals)
			return serve(cmd.Context(), cfg, signals)
		},
	}
	cmd.Flags().StringVar(&flags.engine, "engine", warpcore.DefaultEngine, "router engine")
	cmd.Flags().StringVar(&flags.addr, "addr", ":3000", "listen address")
	cmd.Flags().StringVar(&flags.prefix, "prefix", "", "global route prefix")
	return cmd
}

// signalCause records the signal that stopped the server.
type signalCause struct{ sig os.Signal }

func (c signalCause) Error() string { return "received " + c.sig.String() }

// serve runs the demo application until ctx is canceled or a signal
// arrives, then shuts it down within the configured timeout.
func serve(ctx context.Context, cfg config.Config, signals <-chan os.Signal) error {
	app, err := warpcore.CreateFromConfig(demoModule(), cfg)
	if err != nil {
		return err
	}
	if err := app.Listen(ctx, cfg.Server.Addr); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case sig := <-signals:
			cancel(signalCause{sig: sig})
		case <-gctx.Done():
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		var name string
		var sc signalCause
		if errors.As(context.Cause(ctx), &sc) {
			name = sc.sig.String()
		}
		shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer done()
		return app.Shutdown(shutdownCtx, name)
	})
	return g.Wait()
}

func newEnginesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List the supported router engines",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, name := range warpcore.Engines() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}
