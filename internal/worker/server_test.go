package worker

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dunamismax/pixelconv/internal/config"
	"github.com/dunamismax/pixelconv/internal/domain"
	"github.com/dunamismax/pixelconv/internal/health"
	"github.com/dunamismax/pixelconv/internal/pipeline"
	"github.com/dunamismax/pixelconv/internal/queue"
	"github.com/dunamismax/pixelconv/internal/service"
	"github.com/dunamismax/pixelconv/internal/store"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadThenConvertReplies(t *testing.T) {
	s := newTestServer(t)

	uploadTask, err := queue.NewUploadTask(queue.UploadPayload{Blob: testPNG(t), FileName: "test_image.png"})
	require.NoError(t, err)

	body, err := s.uploadImage(context.Background(), uploadTask)
	require.NoError(t, err)
	reply, err := queue.DecodeReply(body)
	require.NoError(t, err)
	require.NotEmpty(t, reply.ID)

	convertTask, err := queue.NewConvertTask(queue.ConvertPayload{ImageID: reply.ID, Conversion: domain.ConversionJPEG})
	require.NoError(t, err)

	body, err = s.convertImage(context.Background(), convertTask)
	require.NoError(t, err)
	reply, err = queue.DecodeReply(body)
	require.NoError(t, err)
	require.NotNil(t, reply.Image)
	assert.Equal(t, domain.FormatJPEG, reply.Image.Format)
	assert.Equal(t, 6, reply.Image.Width)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.tasksTotal.WithLabelValues(queue.TypeUploadImage, outcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.tasksTotal.WithLabelValues(queue.TypeConvertImage, outcomeOK)))
	assert.Equal(t, 24.0, testutil.ToFloat64(s.metrics.pixelsProcessedTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(s.metrics.activeTasks))
}

func TestServiceErrorsBecomeErrorReplies(t *testing.T) {
	s := newTestServer(t)

	uploadTask, err := queue.NewUploadTask(queue.UploadPayload{Blob: []byte("gif"), FileName: "anim.gif"})
	require.NoError(t, err)
	body, err := s.uploadImage(context.Background(), uploadTask)
	require.NoError(t, err)
	_, err = queue.DecodeReply(body)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	convertTask, err := queue.NewConvertTask(queue.ConvertPayload{
		ImageID:    "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		Conversion: domain.ConversionMirror,
	})
	require.NoError(t, err)
	body, err = s.convertImage(context.Background(), convertTask)
	require.NoError(t, err)
	_, err = queue.DecodeReply(body)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.tasksTotal.WithLabelValues(queue.TypeUploadImage, domain.KindUnsupportedFormat)))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.tasksTotal.WithLabelValues(queue.TypeConvertImage, domain.KindNotFound)))
}

func TestMalformedPayloadSkipsRetry(t *testing.T) {
	s := newTestServer(t)

	_, err := s.convertImage(context.Background(), asynq.NewTask(queue.TypeConvertImage, []byte("{")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandlersFailWithoutResultWriter(t *testing.T) {
	s := newTestServer(t)

	err := writeReply(asynq.NewTask(queue.TypeUploadImage, nil), []byte(`{"id":"x"}`))
	assert.EqualError(t, err, "task has no result writer")

	uploadTask, err := queue.NewUploadTask(queue.UploadPayload{Blob: testPNG(t), FileName: "test_image.png"})
	require.NoError(t, err)
	assert.EqualError(t, s.handleUploadImage(context.Background(), uploadTask), "task has no result writer")

	convertTask, err := queue.NewConvertTask(queue.ConvertPayload{
		ImageID:    "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		Conversion: domain.ConversionPNG,
	})
	require.NoError(t, err)
	assert.EqualError(t, s.handleConvertImage(context.Background(), convertTask), "task has no result writer")
}

func TestOpsHandler(t *testing.T) {
	s := newTestServer(t)
	handler := s.OpsHandler(health.Check{Name: "redis", Probe: func(context.Context) error { return nil }})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pixelconv_worker_active_tasks")
}

func TestNewServerRequiresServices(t *testing.T) {
	_, err := NewServer(zerolog.Nop(), config.QueueConfig{}, config.WorkerConfig{}, nil, nil)
	assert.Error(t, err)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	images := store.NewMemoryImageStore()
	transformer, err := pipeline.New(pipeline.Options{})
	require.NoError(t, err)

	uploads, err := service.NewUploads(images, zerolog.Nop())
	require.NoError(t, err)
	conversions, err := service.NewConversions(images, transformer, zerolog.Nop())
	require.NoError(t, err)

	return newServer(zerolog.Nop(), uploads, conversions)
}

func testPNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 6, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(40 * x), G: uint8(60 * y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
