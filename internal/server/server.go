// Package server provides the HTTP handlers and routing for the MCP server.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"voicecal-mcp/internal/logbuf"
	"voicecal-mcp/internal/mcp"
)

const (
	defaultRequestTimeout = 60 * time.Second
	shutdownTimeout       = 15 * time.Second
	maxRequestBody        = 1 << 20
)

// Config contains listener and request settings for the server.
type Config struct {
	Addr           string
	Token          string
	RequestTimeout time.Duration
	CertFile       string
	KeyFile        string
}

// Dispatcher answers MCP envelopes.
type Dispatcher interface {
	Handle(ctx context.Context, req mcp.Request) mcp.Response
}

// LogQuerier reads recent log entries.
type LogQuerier interface {
	Query(f logbuf.Filter) []logbuf.Entry
}

// Server contains the configured router and collaborators for the MCP server.
type Server struct {
	cfg      Config
	router   *chi.Mux
	mcp      Dispatcher
	logs     LogQuerier
	recorder mcp.ErrorRecorder
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogs exposes entries from q on GET /logs.
func WithLogs(q LogQuerier) Option {
	return func(s *Server) { s.logs = q }
}

// WithErrorRecorder reports recovered panics to r.
func WithErrorRecorder(r mcp.ErrorRecorder) Option {
	return func(s *Server) { s.recorder = r }
}

// WithLogger sets the request and server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New constructs a Server with middleware and routes configured.
func New(cfg Config, d Dispatcher, opts ...Option) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	s := &Server{
		cfg:    cfg,
		router: chi.NewRouter(),
		mcp:    d,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.recordPanics)
	s.router.Use(middleware.Timeout(cfg.RequestTimeout))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	s.router.Get("/", s.handleIndex)
	s.router.Get("/health", s.handleHealth)
	s.router.Group(func(r chi.Router) {
		r.Use(s.auth)
		r.Post("/mcp", s.handleMCP)
		r.Get("/logs", s.handleLogs)
	})

	return s
}

// Router exposes the root HTTP handler for the server.
func (s *Server) Router() http.Handler { return s.router }

// ListenAndServe listens on the configured address and serves until ctx
// is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln, using TLS when a certificate and key are
// configured. Cancelling ctx shuts the server down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	tls := s.cfg.CertFile != "" && s.cfg.KeyFile != ""

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", ln.Addr().String(), "tls", tls)
		if tls {
			errCh <- srv.ServeTLS(ln, s.cfg.CertFile, s.cfg.KeyFile)
			return
		}
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Token == "" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+s.cfg.Token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			s.logger.LogAttrs(r.Context(), level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote", r.RemoteAddr),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// recordPanics reports a panic to the error recorder and lets
// middleware.Recoverer answer the request.
func (s *Server) recordPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec != http.ErrAbortHandler && s.recorder != nil {
					s.recorder.RecordError(r.Context(), "server", fmt.Errorf("panic: %v", rec))
				}
				panic(rec)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
