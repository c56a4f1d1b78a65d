package core

import (
	"context"
	"io"
	"time"
)

// Operation transforms encoded image bytes according to typed params.
// Implementations live in operations/ (pure Go) and adapters/vips/ (libvips).
type Operation interface {
	Execute(ctx context.Context, image []byte, params Params) ([]byte, error)
}

// OperationFunc adapts a function to the Operation interface.
type OperationFunc func(ctx context.Context, image []byte, params Params) ([]byte, error)

func (f OperationFunc) Execute(ctx context.Context, image []byte, params Params) ([]byte, error) {
	return f(ctx, image, params)
}

// Handler processes one Request. The terminal handler and every decorator
// share this shape so they compose freely.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req *Request) (*Response, error)

func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// TokenVerifier turns a bearer token into an Identity.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (Identity, error)
}

// EntryLogger persists request log entries. Log is awaited by the caller.
type EntryLogger interface {
	Log(ctx context.Context, entry LogEntry) error
}

// Decoder converts raw bytes into a decoded ImageData.
// Implementations live in adapters/decoder/.
type Decoder interface {
	Decode(ctx context.Context, r io.Reader) (*ImageData, error)
	CanDecode(format Format) bool
}

// Encoder serialises an ImageData to bytes in a target format.
// Implementations live in adapters/encoder/.
type Encoder interface {
	Encode(ctx context.Context, img *ImageData, opts EncodeOptions) ([]byte, error)
	CanEncode(format Format) bool
}

// EncodeOptions carries format-specific encoding parameters.
type EncodeOptions struct {
	Quality  int  // 1-100; 0 = use encoder default
	Lossless bool // WebP lossless mode / best PNG compression
}

// Codecs maps Format values to Decoder/Encoder implementations.
type Codecs interface {
	DecoderFor(format Format) (Decoder, bool)
	EncoderFor(format Format) (Encoder, bool)
	RegisterDecoder(format Format, d Decoder)
	RegisterEncoder(format Format, e Encoder)
}

// StorageAdapter persists processed images and retrieves them later.
// Implementations live in adapters/storage/.
type StorageAdapter interface {
	Put(ctx context.Context, key StorageKey, r io.Reader, meta map[string]string) error
	Get(ctx context.Context, key StorageKey) (io.ReadCloser, error)
	Delete(ctx context.Context, key StorageKey) error
	Exists(ctx context.Context, key StorageKey) (bool, error)
}

// MetricsCollector receives per-step observations from the pipeline runner.
type MetricsCollector interface {
	RecordProcessingTime(step OperationKind, d time.Duration)
	RecordThroughput(bytes int64)
	RecordError(step OperationKind, category string)
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
}

// Hook observes pipeline steps. index is zero-based.
type Hook interface {
	BeforeStep(ctx context.Context, index int, kind OperationKind, input []byte)
	AfterStep(ctx context.Context, index int, kind OperationKind, out *Response, d time.Duration, err error)
}
