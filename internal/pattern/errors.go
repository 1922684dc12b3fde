package pattern

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes pattern errors.
type ErrorCode string

const (
	// ErrCodeFormat indicates the pattern file could not be decoded.
	ErrCodeFormat ErrorCode = "PATTERN_FORMAT"

	// ErrCodeIDs indicates edge or node ids are missing, duplicated or sparse.
	ErrCodeIDs ErrorCode = "PATTERN_IDS"

	// ErrCodeCycle indicates the temporal relation is not a DAG.
	ErrCodeCycle ErrorCode = "PATTERN_CYCLE"

	// ErrCodeSignature indicates an edge signature is unusable (e.g. a bad regex).
	ErrCodeSignature ErrorCode = "PATTERN_SIGNATURE"
)

// ParseError is returned when a pattern is rejected.
type ParseError struct {
	Code    ErrorCode
	Message string

	// Path is the pattern file, empty when parsing from memory.
	Path string

	Err error
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsCycleError reports whether err is a temporal cycle rejection.
func IsCycleError(err error) bool {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeCycle
	}
	return false
}

func newParseError(code ErrorCode, format string, args ...any) *ParseError {
	return &ParseError{Code: code, Message: fmt.Sprintf(format, args...)}
}
