package queue

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dunamismax/pixelconv/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadTaskRoundTrip(t *testing.T) {
	task, err := NewUploadTask(UploadPayload{
		Blob:     []byte{0x89, 'P', 'N', 'G'},
		FileName: "test_image.png",
		Trace:    map[string]string{"traceparent": "00-abc-def-01"},
	})
	require.NoError(t, err)
	assert.Equal(t, TypeUploadImage, task.Type())

	parsed, err := ParseUploadPayload(task)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, parsed.Blob)
	assert.Equal(t, "test_image.png", parsed.FileName)
	assert.Equal(t, "00-abc-def-01", parsed.Trace["traceparent"])
}

func TestConvertTaskRoundTrip(t *testing.T) {
	task, err := NewConvertTask(ConvertPayload{ImageID: "id-1", Conversion: domain.ConversionMirror})
	require.NoError(t, err)
	assert.Equal(t, TypeConvertImage, task.Type())

	parsed, err := ParseConvertPayload(task)
	require.NoError(t, err)
	assert.Equal(t, "id-1", parsed.ImageID)
	assert.Equal(t, domain.ConversionMirror, parsed.Conversion)
	assert.Nil(t, parsed.Trace)
}

func TestErrorReplyKeepsKind(t *testing.T) {
	tests := []error{
		fmt.Errorf("%q %w", ".gif", domain.ErrUnsupportedFormat),
		fmt.Errorf("%w: 6ba7b810-9dad-11d1-80b4-00c04fd430c8", domain.ErrNotFound),
		fmt.Errorf("%w: unexpected EOF", domain.ErrDecode),
		fmt.Errorf("%w: write blob: %w", domain.ErrStoreUnavailable, errors.New("refused")),
	}

	for _, original := range tests {
		body, err := EncodeReply(ErrorReply(original))
		require.NoError(t, err)

		_, err = DecodeReply(body)
		require.Error(t, err)
		assert.Equal(t, original.Error(), err.Error())
		assert.Equal(t, domain.KindOf(original), domain.KindOf(err))
	}
}

func TestDecodeReplyUnknownErrorIsInternal(t *testing.T) {
	body, err := EncodeReply(ErrorReply(errors.New("boom")))
	require.NoError(t, err)

	_, err = DecodeReply(body)
	require.EqualError(t, err, "boom")
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
}

func TestDecodeReplySuccess(t *testing.T) {
	body, err := EncodeReply(Reply{Image: &domain.ConvertedImage{Data: []byte("jpeg"), Format: domain.FormatJPEG, Width: 2, Height: 1}})
	require.NoError(t, err)

	reply, err := DecodeReply(body)
	require.NoError(t, err)
	require.NotNil(t, reply.Image)
	assert.Equal(t, []byte("jpeg"), reply.Image.Data)
	assert.Equal(t, domain.FormatJPEG, reply.Image.Format)
}

func TestDecodeReplyRejectsGarbage(t *testing.T) {
	_, err := DecodeReply(nil)
	assert.Error(t, err)

	_, err = DecodeReply([]byte("{"))
	assert.Error(t, err)
}
