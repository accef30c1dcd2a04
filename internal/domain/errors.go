package domain

import "errors"

var (
	ErrUnsupportedFormat = errors.New("not an accepted image format")
	ErrUnknownFormat     = errors.New("unknown image format")
	ErrDecode            = errors.New("decode image")
	ErrEncode            = errors.New("encode image")
	ErrNotFound          = errors.New("image not found")
	ErrInvalidID         = errors.New("invalid image id")
	ErrStoreUnavailable  = errors.New("image store unavailable")
	ErrMissingImage      = errors.New("image not provided in request")
	ErrUnknownConversion = errors.New("unknown conversion")
)

// Error kinds are the stable names used when an error crosses the broker.
const (
	KindUnsupportedFormat = "unsupported_format"
	KindUnknownFormat     = "unknown_format"
	KindDecode            = "decode_error"
	KindEncode            = "encode_error"
	KindNotFound          = "not_found"
	KindInvalidID         = "invalid_id"
	KindStoreUnavailable  = "store_unavailable"
	KindMissingImage      = "missing_image"
	KindUnknownConversion = "unknown_conversion"
	KindInternal          = "internal"
)

var errorKinds = []struct {
	kind     string
	sentinel error
}{
	{KindUnsupportedFormat, ErrUnsupportedFormat},
	{KindUnknownFormat, ErrUnknownFormat},
	{KindDecode, ErrDecode},
	{KindEncode, ErrEncode},
	{KindNotFound, ErrNotFound},
	{KindInvalidID, ErrInvalidID},
	{KindStoreUnavailable, ErrStoreUnavailable},
	{KindMissingImage, ErrMissingImage},
	{KindUnknownConversion, ErrUnknownConversion},
}

// KindOf reports the kind of err, or KindInternal when err wraps none of the
// known sentinels.
func KindOf(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	return KindInternal
}

// ErrorFromKind rebuilds an error received over the wire. The result keeps
// the original message and matches the kind's sentinel with errors.Is.
func ErrorFromKind(kind, message string) error {
	for _, k := range errorKinds {
		if k.kind == kind {
			return &remoteError{message: message, sentinel: k.sentinel}
		}
	}
	return &remoteError{message: message}
}

type remoteError struct {
	message  string
	sentinel error
}

func (e *remoteError) Error() string {
	return e.message
}

func (e *remoteError) Unwrap() error {
	return e.sentinel
}
