package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dunamismax/pixelconv/internal/config"
	"github.com/dunamismax/pixelconv/internal/domain"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientUploadImage(t *testing.T) {
	broker := newFakeBroker(func(task *asynq.Task) *asynq.TaskInfo {
		payload, err := ParseUploadPayload(task)
		require.NoError(t, err)
		assert.Equal(t, "test_image.png", payload.FileName)

		body, err := EncodeReply(Reply{ID: "6ba7b810-9dad-11d1-80b4-00c04fd430c8"})
		require.NoError(t, err)
		return &asynq.TaskInfo{State: asynq.TaskStateCompleted, Result: body}
	})
	client := newTestClient(broker)

	imageID, err := client.UploadImage(context.Background(), []byte("png"), "test_image.png")
	require.NoError(t, err)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", imageID)

	require.Len(t, broker.enqueued, 1)
	assert.Equal(t, TypeUploadImage, broker.enqueued[0].Type())
}

func TestClientConvertImagePollsUntilCompleted(t *testing.T) {
	broker := newFakeBroker(func(task *asynq.Task) *asynq.TaskInfo {
		payload, err := ParseConvertPayload(task)
		require.NoError(t, err)
		assert.Equal(t, domain.ConversionGrayscale, payload.Conversion)

		body, err := EncodeReply(Reply{Image: &domain.ConvertedImage{Data: []byte("gray"), Format: domain.FormatPNG}})
		require.NoError(t, err)
		return &asynq.TaskInfo{State: asynq.TaskStateCompleted, Result: body}
	})
	broker.pendingPolls = 3
	client := newTestClient(broker)

	got, err := client.ConvertImage(context.Background(), domain.ConversionGrayscale, "id-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("gray"), got.Data)
	assert.Equal(t, domain.FormatPNG, got.Format)
	assert.Equal(t, 4, broker.polls)
}

func TestClientRebuildsRemoteErrors(t *testing.T) {
	broker := newFakeBroker(func(*asynq.Task) *asynq.TaskInfo {
		body, err := EncodeReply(ErrorReply(domain.ErrNotFound))
		require.NoError(t, err)
		return &asynq.TaskInfo{State: asynq.TaskStateCompleted, Result: body}
	})
	client := newTestClient(broker)

	_, err := client.ConvertImage(context.Background(), domain.ConversionMirror, "id-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClientArchivedTaskIsRemoteFailure(t *testing.T) {
	broker := newFakeBroker(func(*asynq.Task) *asynq.TaskInfo {
		return &asynq.TaskInfo{State: asynq.TaskStateArchived, LastErr: "context deadline exceeded"}
	})
	client := newTestClient(broker)

	_, err := client.UploadImage(context.Background(), []byte("png"), "a.png")
	assert.ErrorIs(t, err, ErrRemoteFailure)
	assert.Contains(t, err.Error(), "context deadline exceeded")
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
}

func TestClientTimesOutWhileWaiting(t *testing.T) {
	broker := newFakeBroker(func(*asynq.Task) *asynq.TaskInfo {
		return &asynq.TaskInfo{State: asynq.TaskStateActive}
	})
	client := newClient(broker, broker, "default", config.RPCConfig{
		Timeout:      30 * time.Millisecond,
		PollInterval: time.Millisecond,
		Retention:    time.Minute,
	})

	_, err := client.ConvertImage(context.Background(), domain.ConversionPNG, "id-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClientEnqueueFailure(t *testing.T) {
	broker := newFakeBroker(nil)
	broker.enqueueErr = errors.New("redis: connection refused")
	client := newTestClient(broker)

	_, err := client.UploadImage(context.Background(), []byte("png"), "a.png")
	assert.ErrorContains(t, err, "connection refused")
}

func TestClientCloseClosesBoth(t *testing.T) {
	broker := newFakeBroker(nil)
	client := newTestClient(broker)

	require.NoError(t, client.Close())
	assert.Equal(t, 2, broker.closed)
}

func newTestClient(broker *fakeBroker) *Client {
	return newClient(broker, broker, "default", config.RPCConfig{
		Timeout:      time.Second,
		PollInterval: time.Millisecond,
		Retention:    time.Minute,
	})
}

// fakeBroker stands in for both the asynq client and inspector.
type fakeBroker struct {
	mu           sync.Mutex
	respond      func(task *asynq.Task) *asynq.TaskInfo
	enqueued     []*asynq.Task
	infos        map[string]*asynq.TaskInfo
	enqueueErr   error
	pendingPolls int
	polls        int
	closed       int
}

func newFakeBroker(respond func(task *asynq.Task) *asynq.TaskInfo) *fakeBroker {
	return &fakeBroker{respond: respond, infos: make(map[string]*asynq.TaskInfo)}
}

func (b *fakeBroker) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.enqueueErr != nil {
		return nil, b.enqueueErr
	}
	b.enqueued = append(b.enqueued, task)

	info := b.respond(task)
	info.ID = "task-1"
	info.Queue = "default"
	b.infos[info.ID] = info
	return &asynq.TaskInfo{ID: info.ID, Queue: info.Queue, State: asynq.TaskStatePending}, nil
}

func (b *fakeBroker) GetTaskInfo(queueName, taskID string) (*asynq.TaskInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.polls++
	if b.pendingPolls > 0 {
		b.pendingPolls--
		return &asynq.TaskInfo{ID: taskID, Queue: queueName, State: asynq.TaskStatePending}, nil
	}
	info, ok := b.infos[taskID]
	if !ok {
		return nil, asynq.ErrTaskNotFound
	}
	return info, nil
}

func (b *fakeBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return nil
}
