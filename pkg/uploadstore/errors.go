// Copyright 2025 HaulFS Authors
// SPDX-License-Identifier: Apache-2.0

package uploadstore

import (
	"context"
	"errors"
	"fmt"
)

type ErrorCode int

const (
	ErrNone ErrorCode = iota
	// ErrNotFound means no upload state exists for the given identifiers.
	ErrNotFound
	// ErrCorruptState means a state record exists but cannot be decoded.
	ErrCorruptState
	// ErrIncompleteUpload means finalization was requested before every
	// part finished.
	ErrIncompleteUpload
	// ErrStorageUnavailable wraps transient blob store failures.
	ErrStorageUnavailable
	// ErrCancelled means the caller's context ended during blob I/O.
	ErrCancelled
	// ErrInvalidPart means a part number is outside the representable range.
	ErrInvalidPart
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "NotFound"
	case ErrCorruptState:
		return "CorruptState"
	case ErrIncompleteUpload:
		return "IncompleteUpload"
	case ErrStorageUnavailable:
		return "StorageUnavailable"
	case ErrCancelled:
		return "Cancelled"
	case ErrInvalidPart:
		return "InvalidPart"
	default:
		return "Unknown"
	}
}

// Error is the error type returned by Store operations.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// storageError classifies a blob store failure. A caller-cancelled
// context is not a storage outage.
func storageError(message string, err error) *Error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewError(ErrCancelled, message, err)
	}
	return NewError(ErrStorageUnavailable, message, err)
}

// CodeOf extracts the ErrorCode from err, or ErrNone if err is not a
// Store error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrNone
}
