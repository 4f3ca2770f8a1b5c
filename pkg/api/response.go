// Copyright 2025 HaulFS Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/HaulWorks/haulfs/pkg/api/apierr"
	"github.com/HaulWorks/haulfs/pkg/coordinator"
	"github.com/HaulWorks/haulfs/pkg/logger"
	"github.com/HaulWorks/haulfs/pkg/uploadstore"
)

type wrappedResponseRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func (w *wrappedResponseRecorder) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *wrappedResponseRecorder) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += int64(n)
	return n, err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeErrorCode(w http.ResponseWriter, r *http.Request, code apierr.ErrorCode, message string) {
	resp := code.ToErrorResponse(message, r.Header.Get(headerRequestID))
	writeJSON(w, resp.HTTPCode, resp)
}

// writeError maps service errors onto API error codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := classify(err)
	if code == apierr.ErrInternalError || code == apierr.ErrStorageUnavailable {
		logger.Ctx(r.Context()).Error().Err(err).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	writeErrorCode(w, r, code, err.Error())
}

func classify(err error) apierr.ErrorCode {
	switch uploadstore.CodeOf(err) {
	case uploadstore.ErrNotFound:
		return apierr.ErrNotFound
	case uploadstore.ErrCorruptState:
		return apierr.ErrCorruptState
	case uploadstore.ErrIncompleteUpload:
		return apierr.ErrIncompleteUpload
	case uploadstore.ErrStorageUnavailable:
		return apierr.ErrStorageUnavailable
	case uploadstore.ErrCancelled:
		return apierr.ErrRequestCancelled
	case uploadstore.ErrInvalidPart:
		return apierr.ErrInvalidArgument
	}

	var coordErr *coordinator.Error
	if errors.As(err, &coordErr) {
		switch coordErr.Code {
		case coordinator.ErrCodeObjectTooLarge:
			return apierr.ErrObjectTooLarge
		case coordinator.ErrCodePreconditionFailed:
			return apierr.ErrPreconditionFailed
		case coordinator.ErrCodeInvalidArgument:
			return apierr.ErrInvalidArgument
		case coordinator.ErrCodeStorageUnavailable:
			return apierr.ErrStorageUnavailable
		case coordinator.ErrCodeCancelled:
			return apierr.ErrRequestCancelled
		}
	}
	return apierr.ErrInternalError
}
