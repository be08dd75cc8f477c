package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/planetary-social/planetary-cli/internal/botapi"
	"github.com/planetary-social/planetary-cli/internal/feed"
	"github.com/planetary-social/planetary-cli/internal/metrics"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		addr        string
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve feed pages over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := opts.setup(cmd, "")
			if err != nil {
				return err
			}
			defer e.Close()
			if addr == "" {
				addr = e.cfg.ServerAddr
			}

			cfg := botapi.ServerConfig{
				Store:    feed.StoreFunc(e.svc.Page),
				Health:   e.db.CheckWritable,
				Observer: e.metrics,
				Logger:   e.log,
			}
			if metricsAddr == "" {
				cfg.Gatherer = e.registry
			}
			server, err := botapi.NewServer(cfg)
			if err != nil {
				return err
			}
			defer server.Close()

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return server.ListenAndServe(ctx, addr)
			})
			if metricsAddr != "" {
				r := chi.NewRouter()
				r.Method(http.MethodGet, "/metrics", metrics.Handler(e.registry))
				g.Go(func() error {
					return serveHTTP(ctx, e.log, metricsAddr, r)
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: configured server address)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on a separate listener")
	return cmd
}

func serveHTTP(ctx context.Context, log *zap.Logger, addr string, h http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving metrics", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve metrics: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown metrics: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}
