// Package server exposes health, metrics and stage progress over HTTP while a
// stage runs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/sbnation-corpus/internal/metrics"
	"github.com/JakeFAU/sbnation-corpus/internal/progress"
)

// ProgressSource returns the latest event per stage.
type ProgressSource interface {
	Latest() []progress.Event
}

// Server wires the HTTP handlers.
type Server struct {
	router   chi.Router
	progress ProgressSource
	logger   *zap.Logger
	srv      *http.Server
	done     chan struct{}
}

// New constructs a Server with middleware and routes. progress may be nil.
func New(source ProgressSource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{progress: source, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/progress", s.listProgress)
	r.Get("/progress/{stage}", s.getProgress)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr and serves in the background. It returns the bound
// address, which differs from addr when addr uses port 0.
func (s *Server) Start(addr string) (string, error) {
	if s.srv != nil {
		return "", errors.New("server already started")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.logger.Info("metrics server listening", zap.String("addr", ln.Addr().String()))
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()
	return ln.Addr().String(), nil
}

// Shutdown stops a started server. It is a no-op otherwise.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	<-s.done
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type progressDTO struct {
	RunID     string  `json:"run_id"`
	Stage     string  `json:"stage"`
	Done      int     `json:"done"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
	ElapsedMS int64   `json:"elapsed_ms"`
	Final     bool    `json:"final"`
	Note      string  `json:"note,omitempty"`
	UpdatedAt string  `json:"updated_at"`
}

func (s *Server) listProgress(w http.ResponseWriter, _ *http.Request) {
	events := s.latest()
	out := make([]progressDTO, 0, len(events))
	for _, evt := range events {
		out = append(out, toProgressDTO(evt))
	}
	writeJSON(w, http.StatusOK, map[string]any{"stages": out})
}

func (s *Server) getProgress(w http.ResponseWriter, r *http.Request) {
	stage := progress.Stage(chi.URLParam(r, "stage"))
	for _, evt := range s.latest() {
		if evt.Stage == stage {
			writeJSON(w, http.StatusOK, toProgressDTO(evt))
			return
		}
	}
	writeError(w, http.StatusNotFound, "no progress for stage")
}

func (s *Server) latest() []progress.Event {
	if s.progress == nil {
		return nil
	}
	return s.progress.Latest()
}

func toProgressDTO(evt progress.Event) progressDTO {
	return progressDTO{
		RunID:     evt.RunID,
		Stage:     string(evt.Stage),
		Done:      evt.Done,
		Total:     evt.Total,
		Percent:   evt.Percent(),
		ElapsedMS: evt.Elapsed.Milliseconds(),
		Final:     evt.Final,
		Note:      evt.Note,
		UpdatedAt: evt.TS.UTC().Format(time.RFC3339),
	}
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Debug("request completed",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("route", metrics.RoutePattern(r)),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
