package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the expected failure modes of the engine core.
// Expected failures are returned as values; contract violations are fatal.
type ErrorKind uint8

const (
	// Malformed input: bad alignment, zero size, absent frame slot, invalid reference.
	KindInvalidRequest ErrorKind = iota
	// State does not yet permit the operation: untracked resource, unmapped buffer.
	KindNotReady
	// Heap segment exhausted, atlas full, staging partition exhausted after growth cap.
	KindOutOfCapacity
	// File read/write failure; carries path and OS error.
	KindIOError
	// On-disk size mismatch, bad header, decoding failure.
	KindIntegrityError
	// Staging allocation failed, mapping failed, transfer submission failed.
	KindUploadError
	// Cooperative cancellation observed.
	KindCancelled
	// State change requested after a permanent transition.
	KindPermanentStateViolation
	// Descriptor or atlas slot released twice.
	KindDoubleRelease
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid request"
	case KindNotReady:
		return "not ready"
	case KindOutOfCapacity:
		return "out of capacity"
	case KindIOError:
		return "io error"
	case KindIntegrityError:
		return "integrity error"
	case KindUploadError:
		return "upload error"
	case KindCancelled:
		return "cancelled"
	case KindPermanentStateViolation:
		return "permanent state violation"
	case KindDoubleRelease:
		return "double release"
	}
	return "unknown"
}

// EngineError is the error type returned for every expected failure in the
// engine core. Use errors.As to retrieve it and inspect the kind, or
// errors.Is with one of the Err* sentinels below.
type EngineError struct {
	Kind    ErrorKind
	Message string
	Wrapped error
}

func (e *EngineError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *EngineError) Unwrap() error { return e.Wrapped }

// Is lets errors.Is match an EngineError against the kind sentinels.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Kind sentinels for errors.Is checks.
var (
	ErrInvalidRequest          = &EngineError{Kind: KindInvalidRequest}
	ErrNotReady                = &EngineError{Kind: KindNotReady}
	ErrOutOfCapacity           = &EngineError{Kind: KindOutOfCapacity}
	ErrIOError                 = &EngineError{Kind: KindIOError}
	ErrIntegrityError          = &EngineError{Kind: KindIntegrityError}
	ErrUploadError             = &EngineError{Kind: KindUploadError}
	ErrCancelled               = &EngineError{Kind: KindCancelled}
	ErrPermanentStateViolation = &EngineError{Kind: KindPermanentStateViolation}
	ErrDoubleRelease           = &EngineError{Kind: KindDoubleRelease}
)

// NewError creates an EngineError of the given kind with a formatted message.
func NewError(kind ErrorKind, format string, args ...interface{}) error {
	return &EngineError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind and message to an underlying error.
func WrapError(kind ErrorKind, err error, format string, args ...interface{}) error {
	return &EngineError{Kind: kind, Message: fmt.Sprintf(format, args...), Wrapped: err}
}

// KindOf reports the kind carried by err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind, true
	}
	return 0, false
}
