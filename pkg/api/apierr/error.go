// Copyright 2025 HaulFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package apierr enumerates the error codes of the upload API and
// their HTTP mapping.
package apierr

import "net/http"

// StatusClientClosedRequest is the nginx convention for requests the
// client abandoned. net/http has no constant for it.
const StatusClientClosedRequest = 499

// APIError describes one API error code.
type APIError struct {
	Code           string
	Description    string
	HTTPStatusCode int
}

// Error is the JSON error body returned to clients.
type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
	HTTPCode  int    `json:"-"`
}

func (e Error) Error() string {
	return e.Code + ": " + e.Message
}

// ErrorCode is an enumeration of upload API error codes.
type ErrorCode int

const (
	ErrNone ErrorCode = iota

	ErrInvalidArgument
	ErrNotFound
	ErrCorruptState
	ErrIncompleteUpload
	ErrObjectTooLarge
	ErrPreconditionFailed
	ErrUnauthorized
	ErrStorageUnavailable
	ErrRequestCancelled
	ErrSlowDown
	ErrInternalError
)

var apiErrors = map[ErrorCode]APIError{
	ErrInvalidArgument: {
		Code:           "InvalidArgument",
		Description:    "Invalid argument.",
		HTTPStatusCode: http.StatusBadRequest,
	},
	ErrNotFound: {
		Code:           "NotFound",
		Description:    "The specified upload does not exist.",
		HTTPStatusCode: http.StatusNotFound,
	},
	ErrCorruptState: {
		Code:           "CorruptState",
		Description:    "The upload state records could not be read.",
		HTTPStatusCode: http.StatusConflict,
	},
	ErrIncompleteUpload: {
		Code:           "IncompleteUpload",
		Description:    "Not all parts of the upload have completed.",
		HTTPStatusCode: http.StatusConflict,
	},
	ErrObjectTooLarge: {
		Code:           "ObjectTooLarge",
		Description:    "The object exceeds the maximum part count.",
		HTTPStatusCode: http.StatusRequestEntityTooLarge,
	},
	ErrPreconditionFailed: {
		Code:           "PreconditionFailed",
		Description:    "The target object already exists.",
		HTTPStatusCode: http.StatusPreconditionFailed,
	},
	ErrUnauthorized: {
		Code:           "Unauthorized",
		Description:    "Missing or invalid access token.",
		HTTPStatusCode: http.StatusUnauthorized,
	},
	ErrStorageUnavailable: {
		Code:           "StorageUnavailable",
		Description:    "The blob store is temporarily unavailable.",
		HTTPStatusCode: http.StatusServiceUnavailable,
	},
	ErrRequestCancelled: {
		Code:           "RequestCancelled",
		Description:    "The client closed the request.",
		HTTPStatusCode: StatusClientClosedRequest,
	},
	ErrSlowDown: {
		Code:           "SlowDown",
		Description:    "Too many requests, reduce your request rate.",
		HTTPStatusCode: http.StatusTooManyRequests,
	},
	ErrInternalError: {
		Code:           "InternalError",
		Description:    "An internal error occurred. Try again.",
		HTTPStatusCode: http.StatusInternalServerError,
	},
}

// APIError returns the definition of the code. Unknown codes collapse
// to InternalError.
func (c ErrorCode) APIError() APIError {
	if e, ok := apiErrors[c]; ok {
		return e
	}
	return apiErrors[ErrInternalError]
}

// ToErrorResponse builds the JSON error body. An empty message falls
// back to the code's description.
func (c ErrorCode) ToErrorResponse(message, requestID string) Error {
	def := c.APIError()
	if message == "" {
		message = def.Description
	}
	return Error{
		Code:      def.Code,
		Message:   message,
		RequestID: requestID,
		HTTPCode:  def.HTTPStatusCode,
	}
}
