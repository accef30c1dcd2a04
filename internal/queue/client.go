package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dunamismax/pixelconv/internal/config"
	"github.com/dunamismax/pixelconv/internal/domain"
	"github.com/dunamismax/pixelconv/internal/id"
	"github.com/dunamismax/pixelconv/internal/telemetry"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrRemoteFailure is returned when a task ends without a reply, for example
// when the worker times out or crashes mid-task.
var ErrRemoteFailure = errors.New("remote call failed")

const defaultPollInterval = 25 * time.Millisecond

type taskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	Close() error
}

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client calls the upload and conversion services through the broker. Each
// call enqueues one task and waits for its reply.
type Client struct {
	client       taskEnqueuer
	inspector    taskInspector
	queue        string
	timeout      time.Duration
	pollInterval time.Duration
	retention    time.Duration
	tracer       trace.Tracer
}

func NewClient(queueCfg config.QueueConfig, rpcCfg config.RPCConfig) *Client {
	redisOpt := queueCfg.RedisClientOpt()
	return newClient(asynq.NewClient(redisOpt), asynq.NewInspector(redisOpt), queueCfg.Name, rpcCfg)
}

func newClient(client taskEnqueuer, inspector taskInspector, queueName string, rpcCfg config.RPCConfig) *Client {
	if rpcCfg.PollInterval <= 0 {
		rpcCfg.PollInterval = defaultPollInterval
	}
	return &Client{
		client:       client,
		inspector:    inspector,
		queue:        queueName,
		timeout:      rpcCfg.Timeout,
		pollInterval: rpcCfg.PollInterval,
		retention:    rpcCfg.Retention,
		tracer:       otel.Tracer("pixelconv/queue"),
	}
}

func (c *Client) UploadImage(ctx context.Context, blob []byte, fileName string) (string, error) {
	ctx, span := c.startSpan(ctx, TypeUploadImage, attribute.String("image.name", fileName), attribute.Int("image.bytes", len(blob)))
	defer span.End()

	task, err := NewUploadTask(UploadPayload{
		Blob:     blob,
		FileName: fileName,
		Trace:    telemetry.InjectTrace(ctx),
	})
	if err != nil {
		return "", endSpan(span, err)
	}

	reply, err := c.call(ctx, task)
	if err != nil {
		return "", endSpan(span, err)
	}
	if reply.ID == "" {
		return "", endSpan(span, fmt.Errorf("%w: upload reply has no id", ErrRemoteFailure))
	}

	span.SetAttributes(attribute.String("image.id", reply.ID))
	return reply.ID, endSpan(span, nil)
}

func (c *Client) ConvertImage(ctx context.Context, kind domain.Conversion, imageID string) (domain.ConvertedImage, error) {
	ctx, span := c.startSpan(ctx, TypeConvertImage, attribute.String("image.id", imageID), attribute.String("image.conversion", kind.String()))
	defer span.End()

	task, err := NewConvertTask(ConvertPayload{
		ImageID:    imageID,
		Conversion: kind,
		Trace:      telemetry.InjectTrace(ctx),
	})
	if err != nil {
		return domain.ConvertedImage{}, endSpan(span, err)
	}

	reply, err := c.call(ctx, task)
	if err != nil {
		return domain.ConvertedImage{}, endSpan(span, err)
	}
	if reply.Image == nil {
		return domain.ConvertedImage{}, endSpan(span, fmt.Errorf("%w: convert reply has no image", ErrRemoteFailure))
	}

	return *reply.Image, endSpan(span, nil)
}

func (c *Client) Close() error {
	return errors.Join(c.client.Close(), c.inspector.Close())
}

func (c *Client) call(ctx context.Context, task *asynq.Task) (Reply, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	info, err := c.client.EnqueueContext(
		ctx,
		task,
		asynq.Queue(c.queue),
		asynq.TaskID(id.New()),
		asynq.MaxRetry(0),
		asynq.Timeout(c.timeout),
		asynq.Retention(c.retention),
	)
	if err != nil {
		return Reply{}, fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}

	return c.await(ctx, info.Queue, info.ID)
}

// await polls the task until the worker has written its reply.
func (c *Client) await(ctx context.Context, queueName, taskID string) (Reply, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		info, err := c.inspector.GetTaskInfo(queueName, taskID)
		if err != nil {
			return Reply{}, fmt.Errorf("inspect task %s: %w", taskID, err)
		}

		switch info.State {
		case asynq.TaskStateCompleted:
			return DecodeReply(info.Result)
		case asynq.TaskStateArchived:
			return Reply{}, fmt.Errorf("%w: task %s: %s", ErrRemoteFailure, taskID, info.LastErr)
		}

		select {
		case <-ctx.Done():
			return Reply{}, fmt.Errorf("await task %s: %w", taskID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) startSpan(ctx context.Context, taskType string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := c.tracer.Start(ctx, "rpc "+taskType, trace.WithSpanKind(trace.SpanKindProducer))
	span.SetAttributes(append(attrs, attribute.String("messaging.destination.name", c.queue))...)
	return ctx, span
}

func endSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, domain.KindOf(err))
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
