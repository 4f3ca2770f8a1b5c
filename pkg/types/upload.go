// Copyright 2025 HaulFS Authors
// SPDX-License-Identifier: Apache-2.0

package types

// MaxPartCount is the blob-store limit on the number of parts in a
// single multipart upload.
const MaxPartCount = 10000

// Part describes one slice of the object to be uploaded. Part numbers
// are dense and start at 1. Size may be zero only for the final part.
type Part struct {
	PartNumber int    `json:"partNumber"`
	Offset     uint64 `json:"offset"`
	PartSize   uint32 `json:"partSize"`
	SourceMD5  string `json:"sourceMd5,omitempty"`
}

// UploadSpecification is the plan-of-record for one upload: its part
// layout, created at initiation and never mutated afterwards.
type UploadSpecification struct {
	ObjectID   string `json:"objectId"`
	UploadID   string `json:"uploadId"`
	ObjectSize uint64 `json:"objectSize"`
	Parts      []Part `json:"parts"`
	CreatedAt  int64  `json:"createdAt"` // Unix nanoseconds
}

// CompletedPart records the blob store's acknowledgement of one part PUT.
type CompletedPart struct {
	PartNumber int    `json:"partNumber"`
	MD5        string `json:"md5"`
	ETag       string `json:"etag"`
}

// PartETag is one entry of the finalization manifest handed to the blob
// store's CompleteMultipartUpload call.
type PartETag struct {
	PartNumber int
	ETag       string
}
