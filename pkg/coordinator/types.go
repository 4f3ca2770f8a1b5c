// Copyright 2025 HaulFS Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

// Error codes for coordinator operations
type ErrorCode int

const (
	ErrCodeNone ErrorCode = iota
	ErrCodeObjectTooLarge
	ErrCodePreconditionFailed
	ErrCodeInvalidArgument
	ErrCodeStorageUnavailable
	ErrCodeCancelled
	ErrCodeInternalError
)

// Error represents a coordinator error with an error code
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}
