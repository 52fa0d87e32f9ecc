// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/okian/meradin/internal/domain/birth"
	"github.com/okian/meradin/internal/domain/reading"
	"github.com/okian/meradin/pkg/metrics"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Configured reports whether the scoring API base URL is set.
	Configured() bool
	// Now is the clock used for date validation.
	Now() time.Time

	Today(ctx context.Context, p birth.Person) (reading.Today, error)
	Compatibility(ctx context.Context, a, b birth.Person) (reading.Compatibility, error)
	MoonSign(ctx context.Context, q birth.MoonQuery) (reading.MoonSign, error)
}

// Authenticator wraps handlers that only operators may reach.
type Authenticator interface {
	Require(next http.Handler) http.Handler
}

// Server wires HTTP routes for the JSON API and the ops endpoints.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	readingHandler *ReadingHandler
	auth           Authenticator
	opsLimiter     *Limiter
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLimiter rate limits the reading endpoints.
func WithLimiter(l *Limiter) Option {
	return func(s *Server) {
		s.readingHandler.limiter = l
	}
}

// WithAuthenticator protects /metrics and /stats.
func WithAuthenticator(a Authenticator) Option {
	return func(s *Server) {
		if a != nil {
			s.auth = a
		}
	}
}

// WithOpsLimiter rate limits requests to the protected endpoints before
// credentials are checked. Verifying a password is expensive.
func WithOpsLimiter(l *Limiter) Option {
	return func(s *Server) {
		s.opsLimiter = l
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler:  NewHealthHandler(deps),
		statsHandler:   NewStatsHandler(statsProvider),
		readingHandler: NewReadingHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("GET /metrics", s.protect(MetricsMiddleware(HandleMetrics, "metrics")))
	mux.Handle("GET /stats", s.protect(MetricsMiddleware(s.statsHandler.HandleStats, "stats")))

	mux.HandleFunc("POST /api/v1/today", MetricsMiddleware(s.readingHandler.HandleToday, "api_today"))
	mux.HandleFunc("POST /api/v1/compatibility", MetricsMiddleware(s.readingHandler.HandleCompatibility, "api_compatibility"))
	mux.HandleFunc("POST /api/v1/moon-sign", MetricsMiddleware(s.readingHandler.HandleMoonSign, "api_moon_sign"))
}

func (s *Server) protect(h http.HandlerFunc) http.Handler {
	if s.auth == nil {
		return h
	}
	next := s.auth.Require(h)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.opsLimiter.Allow(r) {
			metrics.RecordRateLimited(r.URL.Path)
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, CodeRateLimited, errors.New(MsgRateLimited))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func writeFieldErrors(w http.ResponseWriter, msg string, fields birth.FieldErrors) {
	out := make(map[string]string, len(fields))
	for f, m := range fields {
		out[string(f)] = m
	}
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
		Code:    CodeValidationFailed,
		Message: msg,
		Fields:  out,
	})
}
