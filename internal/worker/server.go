package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dunamismax/pixelconv/internal/config"
	"github.com/dunamismax/pixelconv/internal/domain"
	"github.com/dunamismax/pixelconv/internal/health"
	"github.com/dunamismax/pixelconv/internal/queue"
	"github.com/dunamismax/pixelconv/internal/service"
	"github.com/dunamismax/pixelconv/internal/telemetry"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const outcomeOK = "ok"

// Server answers upload and conversion calls taken off the queue. Service
// failures are written back as error replies, so a handler only returns an
// error when no reply could be produced.
type Server struct {
	logger    zerolog.Logger
	server    *asynq.Server
	uploader  service.Uploader
	converter service.Converter
	metrics   *metrics
	tracer    trace.Tracer
}

func NewServer(
	logger zerolog.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	uploader service.Uploader,
	converter service.Converter,
) (*Server, error) {
	if uploader == nil || converter == nil {
		return nil, errors.New("upload and conversion services are required")
	}

	s := newServer(logger, uploader, converter)
	s.server = asynq.NewServer(
		queueCfg.RedisClientOpt(),
		asynq.Config{
			Concurrency: workerCfg.Concurrency,
			Queues: map[string]int{
				queueCfg.Name: 1,
			},
			Logger:   asynqLogger{logger: logger},
			LogLevel: asynq.InfoLevel,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				taskID, _ := asynq.GetTaskID(ctx)
				logger.Error().Err(err).Str("task_type", task.Type()).Str("task_id", taskID).Msg("task failed without reply")
			}),
		},
	)
	return s, nil
}

func newServer(logger zerolog.Logger, uploader service.Uploader, converter service.Converter) *Server {
	return &Server{
		logger:    logger,
		uploader:  uploader,
		converter: converter,
		metrics:   newMetrics(),
		tracer:    otel.Tracer("pixelconv/worker"),
	}
}

// Start begins processing in the background.
func (s *Server) Start() error {
	return s.server.Start(s.Mux())
}

// Shutdown waits for in-flight tasks, bounded by the asynq shutdown timeout.
func (s *Server) Shutdown() {
	s.server.Shutdown()
}

func (s *Server) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeUploadImage, s.handleUploadImage)
	mux.HandleFunc(queue.TypeConvertImage, s.handleConvertImage)
	return mux
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

// OpsHandler serves /metrics and /readyz for the worker process.
func (s *Server) OpsHandler(checks ...health.Check) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", s.MetricsHandler())
	mux.Handle("GET /readyz", health.Handler(2*time.Second, checks...))
	return mux
}

func (s *Server) handleUploadImage(ctx context.Context, task *asynq.Task) error {
	body, err := s.uploadImage(ctx, task)
	if err != nil {
		return err
	}
	return writeReply(task, body)
}

func (s *Server) handleConvertImage(ctx context.Context, task *asynq.Task) error {
	body, err := s.convertImage(ctx, task)
	if err != nil {
		return err
	}
	return writeReply(task, body)
}

func (s *Server) uploadImage(ctx context.Context, task *asynq.Task) ([]byte, error) {
	payload, err := queue.ParseUploadPayload(task)
	if err != nil {
		return nil, fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.startSpan(ctx, task, payload.Trace)
	span.SetAttributes(
		attribute.String("image.name", payload.FileName),
		attribute.Int("image.bytes", len(payload.Blob)),
	)
	defer span.End()
	done := s.track(task.Type())

	imageID, err := s.uploader.UploadImage(ctx, payload.Blob, payload.FileName)
	if err != nil {
		done(err)
		recordSpanError(span, err)
		s.logger.Warn().Err(err).Str("kind", domain.KindOf(err)).Str("name", payload.FileName).Msg("upload failed")
		return queue.EncodeReply(queue.ErrorReply(err))
	}

	done(nil)
	span.SetAttributes(attribute.String("image.id", imageID))
	span.SetStatus(codes.Ok, "stored")
	s.metrics.uploadedBytesTotal.Add(float64(len(payload.Blob)))
	s.logger.Info().Str("image_id", imageID).Str("name", payload.FileName).Int("bytes", len(payload.Blob)).Msg("image uploaded")
	return queue.EncodeReply(queue.Reply{ID: imageID})
}

func (s *Server) convertImage(ctx context.Context, task *asynq.Task) ([]byte, error) {
	payload, err := queue.ParseConvertPayload(task)
	if err != nil {
		return nil, fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.startSpan(ctx, task, payload.Trace)
	span.SetAttributes(
		attribute.String("image.id", payload.ImageID),
		attribute.String("image.conversion", payload.Conversion.String()),
	)
	defer span.End()
	done := s.track(task.Type())

	converted, err := s.converter.ConvertImage(ctx, payload.Conversion, payload.ImageID)
	if err != nil {
		done(err)
		recordSpanError(span, err)
		s.logger.Warn().Err(err).Str("kind", domain.KindOf(err)).Str("image_id", payload.ImageID).Stringer("conversion", payload.Conversion).Msg("conversion failed")
		return queue.EncodeReply(queue.ErrorReply(err))
	}

	done(nil)
	span.SetStatus(codes.Ok, "converted")
	s.metrics.convertedBytesTotal.WithLabelValues(payload.Conversion.String()).Add(float64(len(converted.Data)))
	s.metrics.pixelsProcessedTotal.Add(float64(converted.Width * converted.Height))
	s.logger.Info().
		Str("image_id", payload.ImageID).
		Stringer("conversion", payload.Conversion).
		Stringer("format", converted.Format).
		Int("bytes", len(converted.Data)).
		Msg("image converted")
	return queue.EncodeReply(queue.Reply{Image: &converted})
}

func (s *Server) startSpan(ctx context.Context, task *asynq.Task, carrier map[string]string) (context.Context, trace.Span) {
	ctx = telemetry.ExtractTrace(ctx, carrier)
	ctx, span := s.tracer.Start(ctx, "worker "+task.Type(), trace.WithSpanKind(trace.SpanKindConsumer))
	if taskID, ok := asynq.GetTaskID(ctx); ok {
		span.SetAttributes(attribute.String("task.id", taskID))
	}
	return ctx, span
}

// track counts one task as active until the returned func reports its outcome.
func (s *Server) track(taskType string) func(err error) {
	startedAt := time.Now()
	s.metrics.activeTasks.Inc()
	return func(err error) {
		s.metrics.activeTasks.Dec()
		outcome := outcomeOK
		if err != nil {
			outcome = domain.KindOf(err)
		}
		s.metrics.taskDuration.WithLabelValues(taskType, outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.tasksTotal.WithLabelValues(taskType, outcome).Inc()
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, domain.KindOf(err))
}

func writeReply(task *asynq.Task, body []byte) error {
	writer := task.ResultWriter()
	if writer == nil {
		return errors.New("task has no result writer")
	}
	if _, err := writer.Write(body); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}
