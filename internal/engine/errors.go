package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while the engine runs.
//
// Runtime errors include:
//   - Out-of-order batch: a batch older than one already processed
//   - Engine stopped: work submitted after Finish
//
// Neither is fatal to a run: the Run loop logs them and continues.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run.
	RunID string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeOutOfOrder indicates a batch timestamp below the watermark.
	ErrCodeOutOfOrder RuntimeErrorCode = "OUT_OF_ORDER_BATCH"

	// ErrCodeStopped indicates the engine already finished.
	ErrCodeStopped RuntimeErrorCode = "ENGINE_STOPPED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.RunID != "" {
		return fmt.Sprintf("%s: %s (run=%s)", e.Code, e.Message, e.RunID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsOutOfOrderError returns true if the error is an out-of-order batch error.
// Uses errors.As to handle wrapped errors.
func IsOutOfOrderError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeOutOfOrder
	}
	return false
}

// IsStoppedError returns true if the error reports a finished engine.
func IsStoppedError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeStopped
	}
	return false
}

// NewOutOfOrderError creates a RuntimeError for a batch at timestamp got
// arriving after the watermark.
func NewOutOfOrderError(runID string, watermark, got int64) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeOutOfOrder,
		Message: fmt.Sprintf("batch at %d arrived after %d", got, watermark),
		RunID:   runID,
		Details: map[string]string{
			"watermark": fmt.Sprintf("%d", watermark),
			"timestamp": fmt.Sprintf("%d", got),
		},
	}
}

// NewStoppedError creates a RuntimeError for work submitted after Finish.
func NewStoppedError(runID string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeStopped,
		Message: "engine already finished",
		RunID:   runID,
	}
}
