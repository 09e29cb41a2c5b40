package dispatch

import (
	"errors"
	"fmt"
)

// DispatchError is a caller-facing rejection.
//
// Rejections never mutate dispatcher state and never forward anything; the
// caller always receives one instead of a silent no-op.
type DispatchError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// SourceID and Sequence identify the rejected item.
	SourceID string
	Sequence uint64

	// NextExpected is the source's counter at rejection time (zero when the
	// source is unknown).
	NextExpected uint64
}

// ErrorCode categorizes dispatch errors.
type ErrorCode string

const (
	// ErrCodeDuplicateOrStale indicates a sequence below the source's counter
	// or one already buffered.
	ErrCodeDuplicateOrStale ErrorCode = "DUPLICATE_OR_STALE_SEQUENCE"

	// ErrCodeUnknownSource indicates a confirmation for a source that was
	// never scheduled.
	ErrCodeUnknownSource ErrorCode = "UNKNOWN_SOURCE"

	// ErrCodeBufferFull indicates the source's reorder buffer reached the
	// configured maximum depth.
	ErrCodeBufferFull ErrorCode = "BUFFER_FULL"

	// ErrCodeInvalidItem indicates an item that fails ir.Item.Validate.
	ErrCodeInvalidItem ErrorCode = "INVALID_ITEM"

	// ErrCodeClosed indicates a call after Close.
	ErrCodeClosed ErrorCode = "CLOSED"
)

// Error implements the error interface.
func (e *DispatchError) Error() string {
	if e.SourceID != "" {
		return fmt.Sprintf("%s: %s (source=%s, sequence=%d, next_expected=%d)",
			e.Code, e.Message, e.SourceID, e.Sequence, e.NextExpected)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf returns the code of the first DispatchError in err's chain, or the
// empty code.
func CodeOf(err error) ErrorCode {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsDuplicateOrStale reports whether err is a duplicate or stale sequence
// rejection. Uses errors.As to handle wrapped errors.
func IsDuplicateOrStale(err error) bool {
	return CodeOf(err) == ErrCodeDuplicateOrStale
}

// IsUnknownSource reports whether err is an unknown source rejection.
func IsUnknownSource(err error) bool {
	return CodeOf(err) == ErrCodeUnknownSource
}

// IsBufferFull reports whether err is a buffer depth rejection.
func IsBufferFull(err error) bool {
	return CodeOf(err) == ErrCodeBufferFull
}

func newStaleError(source string, seq, next uint64) *DispatchError {
	return &DispatchError{
		Code:         ErrCodeDuplicateOrStale,
		Message:      "sequence already forwarded",
		SourceID:     source,
		Sequence:     seq,
		NextExpected: next,
	}
}

func newDuplicateError(source string, seq, next uint64) *DispatchError {
	return &DispatchError{
		Code:         ErrCodeDuplicateOrStale,
		Message:      "sequence already buffered",
		SourceID:     source,
		Sequence:     seq,
		NextExpected: next,
	}
}

func newUnknownSourceError(source string, seq uint64) *DispatchError {
	return &DispatchError{
		Code:     ErrCodeUnknownSource,
		Message:  "confirmation for a source that was never scheduled",
		SourceID: source,
		Sequence: seq,
	}
}

func newBufferFullError(source string, seq, next uint64, limit int) *DispatchError {
	return &DispatchError{
		Code:         ErrCodeBufferFull,
		Message:      fmt.Sprintf("reorder buffer holds %d items", limit),
		SourceID:     source,
		Sequence:     seq,
		NextExpected: next,
	}
}

func newInvalidItemError(err error) *DispatchError {
	return &DispatchError{
		Code:    ErrCodeInvalidItem,
		Message: err.Error(),
	}
}

var errClosed = &DispatchError{
	Code:    ErrCodeClosed,
	Message: "dispatcher is closed",
}
