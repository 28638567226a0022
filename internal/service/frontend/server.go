// Package frontend serves the HTTP API.
package frontend

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamdesk/streamdesk/internal/cmn/config"
	"github.com/streamdesk/streamdesk/internal/cmn/logger"
	"github.com/streamdesk/streamdesk/internal/cmn/logger/tag"
	apiv1 "github.com/streamdesk/streamdesk/internal/service/frontend/api/v1"
	"github.com/streamdesk/streamdesk/internal/service/frontend/metrics"
)

// Server represents the HTTP server for the frontend application
type Server struct {
	config     *config.Config
	apiV1      *apiv1.API
	registry   *prometheus.Registry
	httpServer *http.Server
	listener   net.Listener // Optional pre-bound listener (for tests)
	extraRoute []func(chi.Router)
}

// ServerOption is a functional option for configuring the Server
type ServerOption func(*Server)

// WithListener sets a pre-bound listener for the server.
func WithListener(l net.Listener) ServerOption {
	return func(srv *Server) {
		srv.listener = l
	}
}

// WithRoutes mounts additional routes under the API base path.
func WithRoutes(fn func(chi.Router)) ServerOption {
	return func(srv *Server) {
		srv.extraRoute = append(srv.extraRoute, fn)
	}
}

// NewServer constructs a Server serving the license API and metrics.
func NewServer(cfg *config.Config, svc apiv1.LicenseService, settings apiv1.LicenseWriter, registry *prometheus.Registry, l *slog.Logger, opts ...ServerOption) *Server {
	uptime := metrics.NewUptime()
	uptime.Register(registry)

	srv := &Server{
		config:   cfg,
		apiV1:    apiv1.New(svc, settings, uptime, l),
		registry: registry,
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Handler builds the router.
func (srv *Server) Handler() http.Handler {
	requestLogger := httplog.NewLogger("http", httplog.Options{
		LogLevel:         slog.LevelDebug,
		JSON:             srv.config.Core.LogFormat == "json",
		Concise:          true,
		RequestHeaders:   true,
		MessageFieldName: "msg",
		ResponseHeaders:  true,
	})

	r := chi.NewMux()
	r.Use(middleware.RealIP)
	r.Use(middleware.Compress(5))
	r.Use(httplog.RequestLogger(requestLogger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Accept"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.StripSlashes)

	r.Handle(srv.path("metrics"), promhttp.HandlerFor(srv.registry, promhttp.HandlerOpts{Registry: srv.registry}))

	r.Route(srv.path("api/v1"), func(r chi.Router) {
		srv.apiV1.ConfigureRoutes(r)
		for _, fn := range srv.extraRoute {
			fn(r)
		}
	})

	return r
}

// path joins p onto the configured base path.
func (srv *Server) path(p string) string {
	joined := path.Join(srv.config.Server.BasePath, p)
	if !strings.HasPrefix(joined, "/") {
		joined = "/" + joined
	}
	return joined
}

// Serve starts the HTTP server and blocks until ctx is done or a shutdown
// signal is received.
func (srv *Server) Serve(ctx context.Context) error {
	addr := srv.config.Server.Addr()
	srv.httpServer = &http.Server{
		Handler:           srv.Handler(),
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener := srv.listener
	if listener == nil {
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		listener = l
	}

	// Log before starting goroutine to avoid race condition in tests
	logger.Info(ctx, "Server is starting", tag.Addr(listener.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-ctx.Done():
		logger.Info(ctx, "Context done, shutting down server")
	case sig := <-quit:
		logger.Info(ctx, "Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error(ctx, "Server failed to start or unexpected shutdown", tag.Error(err))
			return err
		}
	}

	return srv.Shutdown(context.WithoutCancel(ctx))
}

// Shutdown gracefully shuts down the server
func (srv *Server) Shutdown(ctx context.Context) error {
	if srv.httpServer == nil {
		return nil
	}
	logger.Info(ctx, "Server is shutting down", tag.Addr(srv.httpServer.Addr))

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	srv.httpServer.SetKeepAlivesEnabled(false)
	return srv.httpServer.Shutdown(shutdownCtx)
}
