// Copyright 2025 HaulFS Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/HaulWorks/haulfs/pkg/api/apierr"
	"github.com/HaulWorks/haulfs/pkg/coordinator"
)

// initiateBody is the optional JSON body of an initiate request.
type initiateBody struct {
	SourceMD5s []string `json:"sourceMd5s"`
}

// handleUpload serves both halves of the upload lifecycle on the same
// route, the way the native multipart APIs do: without an uploadId it
// initiates, with one it completes.
//
// POST /upload/{objectId}?size={bytes}&overwrite={bool}
// POST /upload/{objectId}?uploadId={id}
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	objectID := r.PathValue("objectId")
	query := r.URL.Query()

	if uploadID := query.Get("uploadId"); uploadID != "" {
		if err := s.svc.Complete(r.Context(), objectID, uploadID); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"objectId": objectID,
			"uploadId": uploadID,
		})
		return
	}

	sizeStr := query.Get("size")
	if sizeStr == "" {
		writeErrorCode(w, r, apierr.ErrInvalidArgument, "size query parameter is required")
		return
	}
	size, err := strconv.ParseUint(sizeStr, 10, 64)
	if err != nil {
		writeErrorCode(w, r, apierr.ErrInvalidArgument, "size must be a non-negative integer")
		return
	}

	overwrite := false
	if o := query.Get("overwrite"); o != "" {
		overwrite, err = strconv.ParseBool(o)
		if err != nil {
			writeErrorCode(w, r, apierr.ErrInvalidArgument, "overwrite must be a boolean")
			return
		}
	}

	var body initiateBody
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeErrorCode(w, r, apierr.ErrInvalidArgument, "malformed request body")
			return
		}
	}

	result, err := s.svc.Initiate(r.Context(), &coordinator.InitiateRequest{
		ObjectID:   objectID,
		ObjectSize: size,
		Overwrite:  overwrite,
		SourceMD5s: body.SourceMD5s,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// handleFinalizePart records a finished part.
//
// POST /upload/{objectId}/parts?uploadId={id}&partNumber={n}&md5={hex}&etag={etag}
func (s *Server) handleFinalizePart(w http.ResponseWriter, r *http.Request) {
	objectID := r.PathValue("objectId")
	query := r.URL.Query()

	uploadID := query.Get("uploadId")
	partNumber, ok := parsePartNumber(w, r, query.Get("partNumber"))
	if !ok {
		return
	}
	if uploadID == "" {
		writeErrorCode(w, r, apierr.ErrInvalidArgument, "uploadId query parameter is required")
		return
	}

	err := s.svc.FinalizePart(r.Context(), &coordinator.FinalizePartRequest{
		ObjectID:   objectID,
		UploadID:   uploadID,
		PartNumber: partNumber,
		MD5:        query.Get("md5"),
		ETag:       query.Get("etag"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// handlePresignPart re-signs the upload URL of one part.
//
// GET /upload/{objectId}/parts?uploadId={id}&partNumber={n}
func (s *Server) handlePresignPart(w http.ResponseWriter, r *http.Request) {
	objectID := r.PathValue("objectId")
	query := r.URL.Query()

	uploadID := query.Get("uploadId")
	partNumber, ok := parsePartNumber(w, r, query.Get("partNumber"))
	if !ok {
		return
	}
	if uploadID == "" {
		writeErrorCode(w, r, apierr.ErrInvalidArgument, "uploadId query parameter is required")
		return
	}

	result, err := s.svc.PresignPart(r.Context(), &coordinator.PresignPartRequest{
		ObjectID:   objectID,
		UploadID:   uploadID,
		PartNumber: partNumber,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleStatus reports outstanding parts for resumption.
//
// GET /upload/{objectId}/status?uploadId={id}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	objectID := r.PathValue("objectId")
	uploadID := r.URL.Query().Get("uploadId")
	if uploadID == "" {
		writeErrorCode(w, r, apierr.ErrInvalidArgument, "uploadId query parameter is required")
		return
	}

	status, err := s.svc.Status(r.Context(), objectID, uploadID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleAbort cancels an upload and discards its state.
//
// DELETE /upload/{objectId}?uploadId={id}
func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	objectID := r.PathValue("objectId")
	uploadID := r.URL.Query().Get("uploadId")
	if uploadID == "" {
		writeErrorCode(w, r, apierr.ErrInvalidArgument, "uploadId query parameter is required")
		return
	}

	if err := s.svc.Abort(r.Context(), objectID, uploadID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parsePartNumber(w http.ResponseWriter, r *http.Request, raw string) (int, bool) {
	if raw == "" {
		writeErrorCode(w, r, apierr.ErrInvalidArgument, "partNumber query parameter is required")
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		writeErrorCode(w, r, apierr.ErrInvalidArgument, "partNumber must be a positive integer")
		return 0, false
	}
	return n, true
}
