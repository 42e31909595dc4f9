// Package server wires the host server: the page, its static assets and the
// rate limited /generate forwarder.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"prompt-form/internal/middleware"
	"prompt-form/web"
)

const shutdownTimeout = 30 * time.Second

type Config struct {
	Addr            string
	StaticDir       string
	RateLimitPerMin int
	RateLimitBurst  int
	UpstreamTimeout time.Duration
	// TrustedProxies may set the client address through X-Forwarded-For.
	TrustedProxies []netip.Prefix
}

type Server struct {
	cfg     Config
	limiter *middleware.RateLimiter
	handler http.Handler
	logger  *slog.Logger
}

// New builds the router. generate handles POST /generate after rate
// limiting.
func New(cfg Config, generate http.Handler, logger *slog.Logger) (*Server, error) {
	if generate == nil {
		return nil, errors.New("server: generate handler must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		limiter: middleware.NewRateLimiter(cfg.RateLimitPerMin, cfg.RateLimitBurst),
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP(cfg.TrustedProxies))
	r.Use(middleware.CorrelationID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/", serveIndex)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir))))
	}
	r.With(s.limiter.Middleware).Post("/generate", generate.ServeHTTP)

	s.handler = r
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.handler }

// Close stops the limiter's sweeper.
func (s *Server) Close() { s.limiter.Stop() }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()

	// WriteTimeout leaves room for the slowest upstream reply.
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      s.cfg.UpstreamTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func serveIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(web.Index)
}
