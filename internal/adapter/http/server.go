package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/couchcryptid/station-quality-service/internal/adapter/export"
	"github.com/couchcryptid/station-quality-service/internal/loader"
	"github.com/couchcryptid/station-quality-service/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options tunes the analysis endpoint.
type Options struct {
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

// Server exposes the analysis API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	svc        pipeline.Service
	opts       Options
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /v1/analyses, /healthz, /readyz, and /metrics routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, svc pipeline.Service, opts Options, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  opts.RequestTimeout,
			WriteTimeout: opts.RequestTimeout + 5*time.Second,
			IdleTimeout:  60 * time.Second,
		},
		svc:    svc,
		opts:   opts,
		logger: logger,
	}

	mux.HandleFunc("POST /v1/analyses", s.handleAnalyze)
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// handleAnalyze accepts a station file either as the raw request body or as
// the "file" part of a multipart form. ?format=csv returns the quality table
// instead of the JSON report.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
	defer cancel()

	name, data, err := s.readUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if q := r.URL.Query().Get("name"); q != "" {
		name = q
	}

	report, err := s.svc.Analyze(ctx, pipeline.Input{Name: name, Data: data})
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("analysis request failed", "source", name, "error", err)
		}
		writeError(w, status, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if err := export.WriteQualityCSV(w, report); err != nil {
			s.logger.Warn("write csv response failed", "report_id", report.ID, "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// readUpload reads at most one byte past the upload ceiling so the analyzer
// can reject oversized input without buffering all of it.
func (s *Server) readUpload(r *http.Request) (string, []byte, error) {
	limit := s.opts.MaxUploadBytes + 1

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(io.LimitReader(r.Body, limit))
		return "upload", data, err
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return "", nil, err
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", nil, errors.New(`multipart form has no "file" part`)
		}
		if err != nil {
			return "", nil, err
		}
		if part.FormName() != "file" {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(part, limit))
		name := part.FileName()
		if name == "" {
			name = "upload"
		}
		return name, data, err
	}
}

func statusFor(err error) int {
	var sizeErr *loader.SizeLimitError
	var formatErr *loader.FormatError
	switch {
	case errors.As(err, &sizeErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &formatErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
