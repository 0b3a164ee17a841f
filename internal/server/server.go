package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/spawnd/internal/metrics"
	tlsx "github.com/loykin/spawnd/internal/tls"
)

// Options configure the admin HTTP server.
type Options struct {
	Listen   string
	BasePath string
	// Metrics mounts /metrics served from the default prometheus registry.
	Metrics bool
	TLS     tlsx.Options
	Logger  *slog.Logger
}

// NewEcho mounts the status router under BasePath and, optionally, the
// metrics endpoint.
func NewEcho(src StateSource, opts Options) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	base := sanitizeBase(opts.BasePath)
	h := echo.WrapHandler(NewRouter(src, base).Handler())
	if base == "" {
		e.Any("/*", h)
	} else {
		e.Any(base, h)
		e.Any(base+"/*", h)
	}

	if opts.Metrics {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return nil, err
		}
		e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	}
	return e, nil
}

// Server is a running admin HTTP server.
type Server struct {
	e    *echo.Echo
	ln   net.Listener
	done chan error
}

// Start listens on opts.Listen and serves in the background.
func Start(src StateSource, opts Options) (*Server, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	e, err := NewEcho(src, opts)
	if err != nil {
		return nil, err
	}
	tlsCfg, err := tlsx.Setup(opts.TLS)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", opts.Listen)
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		ln = tls.NewListener(ln, tlsCfg)
	}
	e.Listener = ln
	e.Server.ReadHeaderTimeout = 10 * time.Second
	e.Server.ReadTimeout = 15 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.IdleTimeout = 60 * time.Second

	s := &Server{e: e, ln: ln, done: make(chan error, 1)}
	go func() {
		err := e.Start("")
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			log.Error("admin server stopped", "error", err)
		}
		s.done <- err
	}()
	log.Info("admin server listening", "addr", ln.Addr().String(), "base", sanitizeBase(opts.BasePath), "tls", tlsCfg != nil)
	return s, nil
}

// Addr is the bound listen address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Shutdown stops accepting connections and waits for active requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.e.Shutdown(ctx); err != nil {
		return err
	}
	select {
	case err := <-s.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
