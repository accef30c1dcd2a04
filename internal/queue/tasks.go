package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dunamismax/pixelconv/internal/domain"
	"github.com/hibiken/asynq"
)

const (
	TypeUploadImage  = "image:upload"
	TypeConvertImage = "image:convert"
)

type UploadPayload struct {
	Blob     []byte            `json:"blob"`
	FileName string            `json:"file_name"`
	Trace    map[string]string `json:"trace,omitempty"`
}

type ConvertPayload struct {
	ImageID    string            `json:"image_id"`
	Conversion domain.Conversion `json:"conversion"`
	Trace      map[string]string `json:"trace,omitempty"`
}

// Reply is what a worker writes as the task result. Exactly one of the
// fields is set.
type Reply struct {
	ID    string                 `json:"id,omitempty"`
	Image *domain.ConvertedImage `json:"image,omitempty"`
	Error *ReplyError            `json:"error,omitempty"`
}

type ReplyError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func NewUploadTask(payload UploadPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal upload payload: %w", err)
	}
	return asynq.NewTask(TypeUploadImage, body), nil
}

func ParseUploadPayload(task *asynq.Task) (UploadPayload, error) {
	var payload UploadPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return UploadPayload{}, fmt.Errorf("unmarshal upload payload: %w", err)
	}
	return payload, nil
}

func NewConvertTask(payload ConvertPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal convert payload: %w", err)
	}
	return asynq.NewTask(TypeConvertImage, body), nil
}

func ParseConvertPayload(task *asynq.Task) (ConvertPayload, error) {
	var payload ConvertPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ConvertPayload{}, fmt.Errorf("unmarshal convert payload: %w", err)
	}
	return payload, nil
}

// ErrorReply carries err across the broker with its kind.
func ErrorReply(err error) Reply {
	return Reply{Error: &ReplyError{Kind: domain.KindOf(err), Message: err.Error()}}
}

func EncodeReply(reply Reply) ([]byte, error) {
	body, err := json.Marshal(reply)
	if err != nil {
		return nil, fmt.Errorf("marshal reply: %w", err)
	}
	return body, nil
}

// DecodeReply parses a task result. A reply carrying an error is returned as
// that error, rebuilt so errors.Is still matches its kind.
func DecodeReply(body []byte) (Reply, error) {
	if len(body) == 0 {
		return Reply{}, errors.New("empty reply")
	}

	var reply Reply
	if err := json.Unmarshal(body, &reply); err != nil {
		return Reply{}, fmt.Errorf("unmarshal reply: %w", err)
	}
	if reply.Error != nil {
		return Reply{}, domain.ErrorFromKind(reply.Error.Kind, reply.Error.Message)
	}
	return reply, nil
}
