package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"dynquery/internal/config"
)

const shutdownTimeout = 30 * time.Second

// Serve wires the application, runs the HTTP server and the catalog
// reloader until ctx is cancelled, then drains running exports.
func Serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close app", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.Reloader.Start(gctx); err != nil {
			return fmt.Errorf("catalog reloader: %w", err)
		}
		<-gctx.Done()
		a.Reloader.Stop()
		return nil
	})
	g.Go(func() error {
		logger.Info("server listening", "addr", cfg.ListenAddr, "tls", cfg.TLSCertFile != "")
		logger.Info("try: curl -H 'Authorization: Bearer <jwt>' http://" + curlHostForListenAddr(cfg.ListenAddr) + "/v1/models/<model>/fields")
		var err error
		if cfg.TLSCertFile != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	a.Query.Wait()
	return err
}

// curlHostForListenAddr turns a listen address into a host:port usable in a
// curl hint. Wildcard and empty hosts become localhost.
func curlHostForListenAddr(listenAddr string) string {
	addr := strings.TrimSpace(listenAddr)
	if addr == "" {
		return "localhost:8080"
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}

// NewLogger returns the JSON logger configured by cfg.
func NewLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}
