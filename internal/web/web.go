package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"cthexam/internal/config"
	"cthexam/internal/examapi"
	"cthexam/internal/ics"
	appLog "cthexam/internal/log"
	"cthexam/internal/model"
)

// Searcher runs one exam search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]model.Exam, error)
}

// Server exposes exam searches over HTTP. Every request runs a fresh
// search against the upstream API.
type Server struct {
	cfg      *config.Config
	searcher Searcher
	metrics  http.Handler
	router   chi.Router
}

// NewServer constructs a Server. metricsHandler may be nil, in which case
// /metrics is not mounted.
func NewServer(cfg *config.Config, searcher Searcher, metricsHandler http.Handler) *Server {
	s := &Server{
		cfg:      cfg,
		searcher: searcher,
		metrics:  metricsHandler,
		router:   chi.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// HTTPServer wraps Handler in an *http.Server bound to cfg.Listen.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := s.HTTPServer()

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) basicAuthEnabled() bool {
	return s.cfg != nil && s.cfg.BasicAuth != nil &&
		s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="cthexam", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestLogger)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/exams", s.handleExams)
	s.router.Get("/calendar.ics", s.handleCalendar)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics)
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// search runs the query from ?q= and writes an error response on failure.
func (s *Server) search(w http.ResponseWriter, r *http.Request) (string, []model.Exam, bool) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q", nil)
		return "", nil, false
	}

	ctx := r.Context()
	if s.cfg != nil && s.cfg.RequestTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.RequestTimeoutSeconds)*time.Second)
		defer cancel()
	}

	exams, err := s.searcher.Search(ctx, query)
	if err != nil {
		appLog.Error("api search failed", err, "query", query)
		writeSearchError(w, err)
		return query, nil, false
	}
	return query, exams, true
}

// handleExams returns the mapped exams for ?q= as JSON.
func (s *Server) handleExams(w http.ResponseWriter, r *http.Request) {
	query, exams, ok := s.search(w, r)
	if !ok {
		return
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	writeJSON(w, http.StatusOK, examsResponse{Query: query, Count: len(exams), Exams: exams})
}

// handleCalendar returns the exams for ?q= as an iCalendar feed.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	query, exams, ok := s.search(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="exams.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := ics.Write(w, exams, ics.ExportOptions{CalendarName: query}); err != nil {
		appLog.Error("failed to write calendar response", err)
	}
}

type examsResponse struct {
	Query string       `json:"query"`
	Count int          `json:"count"`
	Exams []model.Exam `json:"exams"`
}

type errResp struct {
	Error  string          `json:"error"`
	Issues []examapi.Issue `json:"issues,omitempty"`
}

// writeSearchError maps search failures to HTTP status codes. Upstream
// and schema failures are the upstream's fault, so both become 502.
func writeSearchError(w http.ResponseWriter, err error) {
	var serr *examapi.StatusError
	var verr *examapi.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadGateway, verr.Message, verr.Issues)
	case errors.As(err, &serr):
		writeError(w, http.StatusBadGateway, serr.Error(), nil)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "upstream search timed out", nil)
	default:
		writeError(w, http.StatusInternalServerError, "search failed", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string, issues []examapi.Issue) {
	writeJSON(w, status, errResp{Error: msg, Issues: issues})
}
