// Copyright 2025 HaulFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package coordinator drives resumable multipart uploads. It splits
// objects into parts, opens native multipart sessions on the blob
// store, hands out presigned part URLs, and finalizes or aborts the
// transfer using the state kept by pkg/uploadstore.
package coordinator

import (
	"context"
)

// Service defines the interface for upload coordination.
// This separates business logic from HTTP handling.
type Service interface {
	// Initiate starts a new upload: computes the part layout, opens a
	// multipart session, persists the specification, and returns a
	// presigned URL per part.
	Initiate(ctx context.Context, req *InitiateRequest) (*InitiateResult, error)

	// PresignPart issues a fresh presigned URL for one part of an
	// existing upload, for retries after URL expiry.
	PresignPart(ctx context.Context, req *PresignPartRequest) (*PresignPartResult, error)

	// FinalizePart records that the client finished uploading one part.
	FinalizePart(ctx context.Context, req *FinalizePartRequest) error

	// Status reports upload progress: the parts still outstanding.
	Status(ctx context.Context, objectID, uploadID string) (*StatusResult, error)

	// Complete assembles the finished parts into the final object and
	// removes the upload state. Retries the blob store commit with
	// backoff before giving up; state survives a failed commit so the
	// caller can retry.
	Complete(ctx context.Context, objectID, uploadID string) error

	// Abort cancels the multipart session and removes the upload state.
	Abort(ctx context.Context, objectID, uploadID string) error
}

// InitiateRequest contains parameters for starting an upload
type InitiateRequest struct {
	ObjectID   string
	ObjectSize uint64

	// Overwrite permits replacing an object that already exists at the
	// target key.
	Overwrite bool

	// SourceMD5s optionally carries the client-computed MD5 of each
	// part, in part order. When set, its length must match the layout.
	SourceMD5s []string
}

// PartURL is one part of the layout with its upload URL
type PartURL struct {
	PartNumber int    `json:"partNumber"`
	Offset     uint64 `json:"offset"`
	PartSize   uint32 `json:"size"`
	URL        string `json:"url"`
}

// InitiateResult contains the result of starting an upload
type InitiateResult struct {
	UploadID string    `json:"uploadId"`
	Parts    []PartURL `json:"parts"`
}

// PresignPartRequest contains parameters for re-signing one part
type PresignPartRequest struct {
	ObjectID   string
	UploadID   string
	PartNumber int
}

// PresignPartResult contains the re-signed part URL
type PresignPartResult struct {
	PartNumber int    `json:"partNumber"`
	URL        string `json:"url"`
}

// FinalizePartRequest records one finished part
type FinalizePartRequest struct {
	ObjectID   string
	UploadID   string
	PartNumber int
	MD5        string
	ETag       string
}

// StatusResult reports which parts remain outstanding
type StatusResult struct {
	ObjectID        string `json:"objectId"`
	UploadID        string `json:"uploadId"`
	TotalParts      int    `json:"totalParts"`
	IncompleteParts []int  `json:"incompleteParts"`
}
