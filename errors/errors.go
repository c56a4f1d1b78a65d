// Package errors defines the structured error type shared by every layer and
// its mapping onto HTTP responses.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Category classifies error types for targeted handling and monitoring.
type Category string

const (
	CategoryInput     Category = "input"
	CategoryAuth      Category = "auth"
	CategoryDecode    Category = "decode"
	CategoryEncode    Category = "encode"
	CategoryOperation Category = "operation"
	CategoryStorage   Category = "storage"
	CategoryConfig    Category = "config"
	CategoryTransient Category = "transient"
)

// Code is the stable machine-readable identifier sent to clients.
type Code string

const (
	CodeMissingToken       Code = "MISSING_TOKEN"
	CodeInvalidToken       Code = "INVALID_TOKEN"
	CodeMissingFields      Code = "MISSING_FIELDS"
	CodeMissingParams      Code = "MISSING_PARAMS"
	CodeInvalidParams      Code = "INVALID_PARAMS"
	CodeInvalidPipeline    Code = "INVALID_PIPELINE"
	CodeUnknownOperation   Code = "UNKNOWN_OPERATION"
	CodeMissingImage       Code = "MISSING_IMAGE"
	CodeMissingPipeline    Code = "MISSING_PIPELINE"
	CodeUnsupportedMedia   Code = "UNSUPPORTED_MEDIA_TYPE"
	CodePayloadTooLarge    Code = "PAYLOAD_TOO_LARGE"
	CodeEmailExists        Code = "EMAIL_EXISTS"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeNotFound           Code = "NOT_FOUND"
	CodeInternal           Code = "INTERNAL_ERROR"
)

// Error is the structured error type used throughout the module.
type Error struct {
	Category  Category
	Code      Code   // empty for internal failures
	Op        string // operation name
	Message   string // client-safe message; empty for internal failures
	Field     string // offending parameter, when known
	Step      int    // zero-based pipeline step; meaningful only when HasStep
	HasStep   bool
	Err       error
	Retryable bool
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("[%s] %s: %s: %v", e.Category, e.Op, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("[%s] %s: %s", e.Category, e.Op, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// AtStep returns a copy of e attributed to pipeline step i, with the step
// appended to the message.
func (e *Error) AtStep(i int) *Error {
	cp := *e
	cp.Step = i
	cp.HasStep = true
	cp.Message = fmt.Sprintf("%s (step[%d])", e.Message, i)
	return &cp
}

// New creates a non-retryable Error.
func New(category Category, op string, err error) *Error {
	return &Error{Category: category, Op: op, Err: err}
}

// Transient creates a retryable Error.
func Transient(op string, err error) *Error {
	return &Error{Category: CategoryTransient, Op: op, Err: err, Retryable: true}
}

// Wrap wraps an existing error with context.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(category, op, err)
}

// Validation creates a client input error carrying code and message.
func Validation(code Code, op, message string) *Error {
	return &Error{Category: CategoryInput, Code: code, Op: op, Message: message}
}

// InvalidField creates an input error attributed to one parameter.
func InvalidField(code Code, op, field, message string) *Error {
	return &Error{Category: CategoryInput, Code: code, Op: op, Field: field, Message: message}
}

// Unauthorized creates an authentication error.
func Unauthorized(code Code, op, message string, cause error) *Error {
	return &Error{Category: CategoryAuth, Code: code, Op: op, Message: message, Err: cause}
}

// NotFound creates a storage miss that renders as a 404.
func NotFound(op, message string) *Error {
	return &Error{Category: CategoryStorage, Code: CodeNotFound, Op: op, Message: message, Err: ErrNotFound}
}

// IsRetryable reports whether err represents a transient failure.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Category == cat
	}
	return false
}

// CodeOf returns the client code carried by err, or "" when there is none.
func CodeOf(err error) Code {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// CategoryOf returns the category of err, or "" for foreign errors.
func CategoryOf(err error) Category {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// Message returns the text recorded for err in request logs: the client
// message when there is one, otherwise the full error string.
func Message(err error) string {
	var pe *Error
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return err.Error()
}

// Public is the client-visible rendering of an error.
type Public struct {
	Status  int
	Code    Code
	Message string
	Step    *int
}

// HTTP maps err onto the response the client sees. Anything that is not a
// coded input or auth error becomes a generic 500.
func HTTP(err error) Public {
	var pe *Error
	if !errors.As(err, &pe) || pe.Code == "" {
		return Public{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "Internal server error"}
	}
	out := Public{Code: pe.Code, Message: pe.Message}
	if pe.HasStep {
		step := pe.Step
		out.Step = &step
	}
	switch pe.Code {
	case CodeUnsupportedMedia:
		out.Status = http.StatusUnsupportedMediaType
	case CodePayloadTooLarge:
		out.Status = http.StatusRequestEntityTooLarge
	case CodeNotFound:
		out.Status = http.StatusNotFound
	case CodeEmailExists:
		out.Status = http.StatusConflict
	case CodeInternal:
		out.Status = http.StatusInternalServerError
	default:
		switch pe.Category {
		case CategoryAuth:
			out.Status = http.StatusUnauthorized
		case CategoryInput:
			out.Status = http.StatusBadRequest
		default:
			return Public{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "Internal server error"}
		}
	}
	return out
}

// Sentinel errors for common failure modes.
var (
	ErrUnsupportedFormat  = errors.New("unsupported image format")
	ErrInvalidDimensions  = errors.New("invalid dimensions")
	ErrEmptyInput         = errors.New("empty input")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrNotFound           = errors.New("not found")
)
