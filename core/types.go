package core

import (
	"encoding/json"
	"image"
	"time"
)

// OperationKind names a registered image transformation.
type OperationKind string

const (
	OpResize OperationKind = "resize"
	OpRotate OperationKind = "rotate"
	OpFilter OperationKind = "filter"
	OpFormat OperationKind = "format"
)

// Kinds lists every operation kind the service understands.
var Kinds = []OperationKind{OpResize, OpRotate, OpFilter, OpFormat}

// Valid reports whether k is one of the known operation kinds.
func (k OperationKind) Valid() bool {
	switch k {
	case OpResize, OpRotate, OpFilter, OpFormat:
		return true
	}
	return false
}

// Format identifies an image codec.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatWebP    Format = "webp"
	FormatUnknown Format = "unknown"
)

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	}
	return "application/octet-stream"
}

// Extension returns the filename extension (without dot) used for f.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return "jpg"
	case FormatPNG:
		return "png"
	case FormatWebP:
		return "webp"
	}
	return "bin"
}

// Filename returns the attachment filename for output encoded as f.
func (f Format) Filename() string { return "processed-image." + f.Extension() }

// FormatFromContentType maps a MIME type back to a Format.
func FormatFromContentType(ct string) Format {
	switch ct {
	case "image/jpeg", "image/jpg":
		return FormatJPEG
	case "image/png":
		return FormatPNG
	case "image/webp":
		return FormatWebP
	}
	return FormatUnknown
}

// FitMode controls how a resize maps the source onto the target box.
type FitMode string

const (
	FitCover   FitMode = "cover"
	FitContain FitMode = "contain"
	FitFill    FitMode = "fill"
	FitInside  FitMode = "inside"
	FitOutside FitMode = "outside"
)

// DefaultFit is applied when a resize carries no fit mode.
const DefaultFit = FitCover

// Angle is a clockwise rotation in degrees.
type Angle int

const (
	Angle90  Angle = 90
	Angle180 Angle = 180
	Angle270 Angle = 270
)

// FilterName names a pixel filter.
type FilterName string

const (
	FilterBlur      FilterName = "blur"
	FilterSharpen   FilterName = "sharpen"
	FilterGrayscale FilterName = "grayscale"
)

// ── Parameters ────────────────────────────────────────────────────────────────

// Params is the validated, typed parameter set for one operation. The set of
// implementations is closed: only this package can add variants.
type Params interface {
	Kind() OperationKind
	params()
}

// ResizeParams scales an image to Width x Height using Fit.
type ResizeParams struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Fit    FitMode `json:"fit,omitempty"`
}

func (ResizeParams) Kind() OperationKind { return OpResize }
func (ResizeParams) params()             {}

// FitOrDefault returns the fit mode, falling back to DefaultFit when unset.
func (p ResizeParams) FitOrDefault() FitMode {
	if p.Fit == "" {
		return DefaultFit
	}
	return p.Fit
}

// RotateParams rotates an image clockwise.
type RotateParams struct {
	Angle Angle `json:"angle"`
}

func (RotateParams) Kind() OperationKind { return OpRotate }
func (RotateParams) params()             {}

// FilterParams applies a named filter.
type FilterParams struct {
	Filter FilterName `json:"filter"`
}

func (FilterParams) Kind() OperationKind { return OpFilter }
func (FilterParams) params()             {}

// FormatParams re-encodes an image. It is the only kind that changes the
// declared output metadata.
type FormatParams struct {
	Format Format `json:"format"`
}

func (FormatParams) Kind() OperationKind { return OpFormat }
func (FormatParams) params()             {}

// ── Identity / request / response ─────────────────────────────────────────────

// Identity is the authenticated principal derived from a bearer token.
type Identity struct {
	SubjectID string `json:"subjectId"`
	Email     string `json:"email"`
}

// Label is the user value recorded in log entries.
func (i Identity) Label() string {
	if i.Email != "" {
		return i.Email
	}
	return i.SubjectID
}

// Request is the per-invocation context threaded through the handler chain.
// Identity is nil until the auth decorator succeeds.
type Request struct {
	Image         []byte
	Params        Params
	Endpoint      string
	Authorization string
	Identity      *Identity

	// Output metadata carried in from the previous step.
	ContentType string
	Filename    string
}

// Declared returns the output metadata this invocation produces: format
// operations declare their own, every other kind carries the incoming one.
func (r *Request) Declared() (contentType, filename string) {
	if p, ok := r.Params.(FormatParams); ok {
		return p.Format.ContentType(), p.Format.Filename()
	}
	return r.ContentType, r.Filename
}

// Response is what a handler produces: bytes plus the metadata to serve them with.
type Response struct {
	Body        []byte
	ContentType string
	Filename    string
}

// ── Log entries ───────────────────────────────────────────────────────────────

// Level is the severity of a LogEntry.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Outcome is the result recorded in a LogEntry.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// LogEntry is one structured record per handler invocation.
type LogEntry struct {
	Timestamp time.Time
	Level     Level
	User      string
	Endpoint  string
	Params    Params
	Duration  time.Duration
	Result    Outcome
	Message   string
}

type logEntryJSON struct {
	Timestamp  time.Time `json:"timestamp"`
	Level      Level     `json:"level"`
	User       string    `json:"user,omitempty"`
	Endpoint   string    `json:"endpoint"`
	Params     Params    `json:"params"`
	DurationMs int64     `json:"duration"`
	Result     Outcome   `json:"result"`
	Message    string    `json:"message,omitempty"`
}

// MarshalJSON encodes the entry with the duration in milliseconds.
func (e LogEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(logEntryJSON{
		Timestamp:  e.Timestamp.UTC(),
		Level:      e.Level,
		User:       e.User,
		Endpoint:   e.Endpoint,
		Params:     e.Params,
		DurationMs: e.Duration.Milliseconds(),
		Result:     e.Result,
		Message:    e.Message,
	})
}

// ── Codec data ────────────────────────────────────────────────────────────────

// Metadata holds extracted image information.
type Metadata struct {
	Width     int
	Height    int
	Format    Format
	HasAlpha  bool
	SizeBytes int64
}

// ImageData is a decoded image travelling between a decoder, a transform and
// an encoder inside one operation.
type ImageData struct {
	Image  image.Image
	Format Format
	Meta   Metadata
}

// StorageKey uniquely identifies a stored object.
type StorageKey struct {
	Bucket string
	Path   string
}
