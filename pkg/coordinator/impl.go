// Copyright 2025 HaulFS Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/HaulWorks/haulfs/pkg/blobstore"
	"github.com/HaulWorks/haulfs/pkg/logger"
	"github.com/HaulWorks/haulfs/pkg/types"
	"github.com/HaulWorks/haulfs/pkg/uploadstore"
	"github.com/HaulWorks/haulfs/pkg/utils"
)

const (
	// DefaultPartSize is the part size used when none is configured.
	DefaultPartSize = 20 << 20 // 20 MiB

	// DefaultPresignExpiry bounds how long a part URL stays usable.
	DefaultPresignExpiry = time.Hour

	// DefaultCompleteRetries caps how many times the final commit is attempted.
	DefaultCompleteRetries = 5

	completeBackoffBase = 500 * time.Millisecond
	completeBackoffCap  = 30 * time.Second
)

// Config holds configuration for the coordinator service
type Config struct {
	Blobs  blobstore.Store
	States uploadstore.Store

	// DataRoot prefixes the keys of finished objects.
	DataRoot string

	PartSize        uint64
	PresignExpiry   time.Duration
	CompleteRetries int
}

// serviceImpl implements the Service interface
type serviceImpl struct {
	blobs    blobstore.Store
	states   uploadstore.Store
	dataRoot string

	partSize        uint64
	presignExpiry   time.Duration
	completeRetries int

	// sleep is swapped out by tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService creates a new coordinator service
func NewService(cfg Config) (Service, error) {
	if cfg.Blobs == nil {
		return nil, errors.New("Blobs is required")
	}
	if cfg.States == nil {
		return nil, errors.New("States is required")
	}
	if cfg.DataRoot == "" {
		return nil, errors.New("DataRoot is required")
	}

	partSize := cfg.PartSize
	if partSize == 0 {
		partSize = DefaultPartSize
	}
	if partSize > math.MaxUint32 {
		return nil, fmt.Errorf("part size %d exceeds maximum %d", partSize, uint32(math.MaxUint32))
	}

	presignExpiry := cfg.PresignExpiry
	if presignExpiry == 0 {
		presignExpiry = DefaultPresignExpiry
	}

	completeRetries := cfg.CompleteRetries
	if completeRetries == 0 {
		completeRetries = DefaultCompleteRetries
	}

	return &serviceImpl{
		blobs:           cfg.Blobs,
		states:          cfg.States,
		dataRoot:        cfg.DataRoot,
		partSize:        partSize,
		presignExpiry:   presignExpiry,
		completeRetries: completeRetries,
		sleep:           sleepCtx,
	}, nil
}

func (s *serviceImpl) dataKey(objectID string) string {
	return s.dataRoot + "/" + objectID
}

// storageError classifies a blob store failure. A cancelled context and
// a commit the service rejected outright are terminal; anything else
// counts as transient storage trouble and may be retried.
func storageError(message string, err error) *Error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Error{Code: ErrCodeCancelled, Message: message, Err: err}
	case errors.Is(err, blobstore.ErrInvalidSession):
		return &Error{Code: ErrCodeInternalError, Message: message, Err: err}
	default:
		return &Error{Code: ErrCodeStorageUnavailable, Message: message, Err: err}
	}
}

// layout splits objectSize into sequential parts. The last part carries
// the remainder; a zero-size object still gets one zero-size part so
// the upload has something to finalize.
func (s *serviceImpl) layout(objectSize uint64) ([]types.Part, error) {
	count := objectSize / s.partSize
	if objectSize%s.partSize != 0 || objectSize == 0 {
		count++
	}
	if count > types.MaxPartCount {
		return nil, &Error{
			Code: ErrCodeObjectTooLarge,
			Message: fmt.Sprintf("object of %d bytes needs %d parts of %d bytes, limit is %d",
				objectSize, count, s.partSize, types.MaxPartCount),
		}
	}

	parts := make([]types.Part, 0, count)
	var offset uint64
	for i := 1; i <= int(count); i++ {
		size := s.partSize
		if remaining := objectSize - offset; remaining < size {
			size = remaining
		}
		parts = append(parts, types.Part{
			PartNumber: i,
			Offset:     offset,
			PartSize:   uint32(size),
		})
		offset += size
	}
	return parts, nil
}

func (s *serviceImpl) Initiate(ctx context.Context, req *InitiateRequest) (*InitiateResult, error) {
	if req.ObjectID == "" {
		return nil, &Error{Code: ErrCodeInvalidArgument, Message: "object id is required"}
	}

	parts, err := s.layout(req.ObjectSize)
	if err != nil {
		return nil, err
	}
	if len(req.SourceMD5s) > 0 {
		if len(req.SourceMD5s) != len(parts) {
			return nil, &Error{
				Code: ErrCodeInvalidArgument,
				Message: fmt.Sprintf("%d source checksums for %d parts",
					len(req.SourceMD5s), len(parts)),
			}
		}
		for i := range parts {
			parts[i].SourceMD5 = req.SourceMD5s[i]
		}
	}

	key := s.dataKey(req.ObjectID)
	if !req.Overwrite {
		exists, err := s.blobs.Head(ctx, key)
		if err != nil {
			return nil, storageError("check target object", err)
		}
		if exists {
			return nil, &Error{
				Code:    ErrCodePreconditionFailed,
				Message: fmt.Sprintf("object %q already exists and overwrite is off", req.ObjectID),
			}
		}
	}

	uploadID, err := s.blobs.InitiateMultipart(ctx, key)
	if err != nil {
		return nil, storageError("initiate multipart session", err)
	}

	spec := &types.UploadSpecification{
		ObjectID:   req.ObjectID,
		UploadID:   uploadID,
		ObjectSize: req.ObjectSize,
		Parts:      parts,
		CreatedAt:  time.Now().UnixNano(),
	}
	if err := s.states.Create(ctx, spec); err != nil {
		// Best effort: do not leave a dangling session behind.
		if abortErr := s.blobs.AbortMultipart(ctx, key, uploadID); abortErr != nil {
			logger.Ctx(ctx).Warn().Err(abortErr).
				Str("object_id", req.ObjectID).
				Str("upload_id", uploadID).
				Msg("failed to abort session after state write failure")
		}
		return nil, err
	}

	result := &InitiateResult{
		UploadID: uploadID,
		Parts:    make([]PartURL, 0, len(parts)),
	}
	for _, part := range parts {
		url, err := s.blobs.PresignUploadPart(ctx, key, uploadID, part.PartNumber, s.presignExpiry)
		if err != nil {
			return nil, storageError("presign part url", err)
		}
		result.Parts = append(result.Parts, PartURL{
			PartNumber: part.PartNumber,
			Offset:     part.Offset,
			PartSize:   part.PartSize,
			URL:        url,
		})
	}

	logger.Ctx(ctx).Info().
		Str("object_id", req.ObjectID).
		Str("upload_id", uploadID).
		Uint64("object_size", req.ObjectSize).
		Int("parts", len(parts)).
		Msg("initiated upload")
	return result, nil
}

func (s *serviceImpl) PresignPart(ctx context.Context, req *PresignPartRequest) (*PresignPartResult, error) {
	spec, err := s.states.LoadSpecification(ctx, req.ObjectID, req.UploadID)
	if err != nil {
		return nil, err
	}
	if req.PartNumber < 1 || req.PartNumber > len(spec.Parts) {
		return nil, &Error{
			Code:    ErrCodeInvalidArgument,
			Message: fmt.Sprintf("part %d outside layout of %d parts", req.PartNumber, len(spec.Parts)),
		}
	}

	url, err := s.blobs.PresignUploadPart(ctx, s.dataKey(req.ObjectID), req.UploadID, req.PartNumber, s.presignExpiry)
	if err != nil {
		return nil, storageError("presign part url", err)
	}
	return &PresignPartResult{PartNumber: req.PartNumber, URL: url}, nil
}

func (s *serviceImpl) FinalizePart(ctx context.Context, req *FinalizePartRequest) error {
	spec, err := s.states.LoadSpecification(ctx, req.ObjectID, req.UploadID)
	if err != nil {
		return err
	}
	if req.PartNumber < 1 || req.PartNumber > len(spec.Parts) {
		return &Error{
			Code:    ErrCodeInvalidArgument,
			Message: fmt.Sprintf("part %d outside layout of %d parts", req.PartNumber, len(spec.Parts)),
		}
	}
	if req.ETag == "" {
		return &Error{Code: ErrCodeInvalidArgument, Message: "etag is required"}
	}

	return s.states.FinalizePart(ctx, req.ObjectID, req.UploadID, &types.CompletedPart{
		PartNumber: req.PartNumber,
		MD5:        req.MD5,
		ETag:       req.ETag,
	})
}

func (s *serviceImpl) Status(ctx context.Context, objectID, uploadID string) (*StatusResult, error) {
	spec, err := s.states.LoadSpecification(ctx, objectID, uploadID)
	if err != nil {
		return nil, err
	}
	incomplete, err := s.states.ListIncompleteParts(ctx, objectID, uploadID)
	if err != nil {
		return nil, err
	}

	numbers := make([]int, 0, len(incomplete))
	for _, part := range incomplete {
		numbers = append(numbers, part.PartNumber)
	}
	return &StatusResult{
		ObjectID:        objectID,
		UploadID:        uploadID,
		TotalParts:      len(spec.Parts),
		IncompleteParts: numbers,
	}, nil
}

func (s *serviceImpl) Complete(ctx context.Context, objectID, uploadID string) error {
	manifest, err := s.states.FinalizationManifest(ctx, objectID, uploadID)
	if err != nil {
		return err
	}

	key := s.dataKey(objectID)
	backoff := completeBackoffBase
	for attempt := 1; ; attempt++ {
		commitErr := s.blobs.CompleteMultipart(ctx, key, uploadID, manifest)
		if commitErr == nil {
			break
		}
		wrapped := storageError("complete multipart upload", commitErr)
		logger.Ctx(ctx).Warn().Err(commitErr).
			Str("object_id", objectID).
			Str("upload_id", uploadID).
			Int("attempt", attempt).
			Msg("complete multipart failed")
		// Only transient storage failures earn another attempt. A
		// cancelled context or a rejected commit fails right away.
		if wrapped.Code != ErrCodeStorageUnavailable || attempt == s.completeRetries {
			return wrapped
		}
		if err := s.sleep(ctx, utils.JitterUp(backoff, 0.25)); err != nil {
			return storageError("complete multipart upload", err)
		}
		backoff *= 2
		if backoff > completeBackoffCap {
			backoff = completeBackoffCap
		}
	}

	// State goes away only once the object is committed, so a crash
	// here leaves a resumable upload, never a lost one.
	if err := s.states.Delete(ctx, objectID, uploadID); err != nil {
		return err
	}

	logger.Ctx(ctx).Info().
		Str("object_id", objectID).
		Str("upload_id", uploadID).
		Int("parts", len(manifest)).
		Msg("completed upload")
	return nil
}

func (s *serviceImpl) Abort(ctx context.Context, objectID, uploadID string) error {
	// Load first so an unknown upload reports NotFound instead of
	// silently succeeding.
	if _, err := s.states.LoadSpecification(ctx, objectID, uploadID); err != nil {
		return err
	}

	if err := s.blobs.AbortMultipart(ctx, s.dataKey(objectID), uploadID); err != nil {
		return storageError("abort multipart session", err)
	}
	if err := s.states.Delete(ctx, objectID, uploadID); err != nil {
		return err
	}

	logger.Ctx(ctx).Info().
		Str("object_id", objectID).
		Str("upload_id", uploadID).
		Msg("aborted upload")
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
