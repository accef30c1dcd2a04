package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dunamismax/pixelconv/internal/domain"
	"github.com/dunamismax/pixelconv/internal/health"
	"github.com/dunamismax/pixelconv/internal/service"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	uploadField           = "image"
	defaultMaxUploadBytes = 32 << 20
)

type Options struct {
	MaxUploadBytes int64
	// Checks back /readyz.
	Checks []health.Check
}

type Server struct {
	logger         zerolog.Logger
	uploader       service.Uploader
	converter      service.Converter
	maxUploadBytes int64
	checks         []health.Check
	metrics        *metrics
	tracer         trace.Tracer
	mux            *http.ServeMux
}

func NewServer(logger zerolog.Logger, uploader service.Uploader, converter service.Converter, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}

	s := &Server{
		logger:         logger,
		uploader:       uploader,
		converter:      converter,
		maxUploadBytes: opts.MaxUploadBytes,
		checks:         opts.Checks,
		metrics:        newMetrics(),
		tracer:         otel.Tracer("pixelconv/api"),
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.metrics.withHTTPMetrics(s.withTracing(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /readyz", health.Handler(2*time.Second, s.checks...))
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("POST /upload_file", s.handleUploadFile)
	for _, kind := range domain.Conversions() {
		s.mux.HandleFunc("GET /{id}/"+kind.String(), s.handleConvert(kind))
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	blob, fileName, err := readUpload(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	imageID, err := s.uploader.UploadImage(r.Context(), blob, fileName)
	s.metrics.observeCall("upload", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeText(w, http.StatusOK, imageID)
}

func (s *Server) handleConvert(kind domain.Conversion) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		converted, err := s.converter.ConvertImage(r.Context(), kind, r.PathValue("id"))
		s.metrics.observeCall(kind.String(), err)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		contentType, err := domain.ContentTypeFromFormat(converted.Format)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(converted.Data)
	}
}

// readUpload returns the bytes and client file name of the "image" part.
func readUpload(r *http.Request) ([]byte, string, error) {
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", fmt.Errorf("upload exceeds %d bytes: %w", tooLarge.Limit, err)
		}
		return nil, "", fmt.Errorf("%w: %v", domain.ErrMissingImage, err)
	}
	defer file.Close()

	blob, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	return blob, header.Filename, nil
}

// writeError answers every failure with 500 and a plain-text body naming the
// error kind.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	s.logger.Error().
		Err(err).
		Str("kind", kind).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("request failed")
	writeText(w, http.StatusInternalServerError, fmt.Sprintf("Error: %s: %s", kind, err.Error()))
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
