package mcqstudio

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown       Code = "UNKNOWN"
	CodeDataIntegrity Code = "DATA_INTEGRITY"
	CodeValidation    Code = "VALIDATION"
	CodeInvalidState  Code = "INVALID_STATE"
	CodeNotFound      Code = "NOT_FOUND"
	CodeEmptyExport   Code = "EMPTY_EXPORT"
)

// Error is a local, recoverable failure of a review or export operation.
// The collection is never modified when one is returned.
type Error struct {
	Code    Code
	Op      string
	Message string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Is matches any *Error carrying the same code, so the sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrDataIntegrity = &Error{Code: CodeDataIntegrity, Message: "data integrity"}
	ErrValidation    = &Error{Code: CodeValidation, Message: "validation failed"}
	ErrInvalidState  = &Error{Code: CodeInvalidState, Message: "invalid state"}
	ErrNotFound      = &Error{Code: CodeNotFound, Message: "not found"}
	ErrEmptyExport   = &Error{Code: CodeEmptyExport, Message: "nothing to export"}
)

func newError(code Code, op, format string, args ...interface{}) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// Upload validation failures, reported before any generation call.
var (
	ErrUnsupportedDocument  = errors.New("unsupported document type: upload a PDF or DOCX file")
	ErrDocumentTooLarge     = errors.New("document too large")
	ErrInvalidQuestionCount = errors.New("invalid question count")
	ErrInsufficientText     = errors.New("insufficient text content in the file")
)

// UpstreamError is a failure reported by the generation service.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return e.Message
}
