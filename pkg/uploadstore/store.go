// Copyright 2025 HaulFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package uploadstore persists multipart upload bookkeeping inside the
// blob store itself. Every upload owns a key directory holding one
// specification record plus one small record per finished part, so any
// process can reconstruct upload progress by listing keys. No state is
// kept outside the blob store.
package uploadstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/HaulWorks/haulfs/pkg/blobstore"
	"github.com/HaulWorks/haulfs/pkg/logger"
	"github.com/HaulWorks/haulfs/pkg/types"
)

// Store reads and writes upload state records.
type Store interface {
	// Create persists the specification of a new upload.
	Create(ctx context.Context, spec *types.UploadSpecification) error

	// LoadSpecification fetches the specification of an existing upload.
	LoadSpecification(ctx context.Context, objectID, uploadID string) (*types.UploadSpecification, error)

	// FinalizePart records that one part finished uploading.
	FinalizePart(ctx context.Context, objectID, uploadID string, part *types.CompletedPart) error

	// IsPartCompleted reports whether a completion record exists for the
	// given part.
	IsPartCompleted(ctx context.Context, objectID, uploadID string, partNumber int) (bool, error)

	// ListIncompleteParts returns the parts of the specification that
	// have no completion record yet, in part order.
	ListIncompleteParts(ctx context.Context, objectID, uploadID string) ([]types.Part, error)

	// IsComplete reports whether every part of the upload has finished.
	IsComplete(ctx context.Context, objectID, uploadID string) (bool, error)

	// FinalizationManifest returns the etags of all completed parts in
	// part order. It fails with IncompleteUpload if any part is missing
	// and with CorruptState if a record cannot be decoded.
	FinalizationManifest(ctx context.Context, objectID, uploadID string) ([]types.PartETag, error)

	// Delete removes all state records of an upload. Deleting state that
	// does not exist is not an error.
	Delete(ctx context.Context, objectID, uploadID string) error
}

type storeImpl struct {
	blobs blobstore.Store
	root  string
}

// New creates a Store that keeps its records under root in the given
// blob store.
func New(blobs blobstore.Store, root string) Store {
	return &storeImpl{blobs: blobs, root: root}
}

func (s *storeImpl) Create(ctx context.Context, spec *types.UploadSpecification) error {
	if len(spec.Parts) > types.MaxPartCount {
		return NewError(ErrInvalidPart,
			fmt.Sprintf("upload has %d parts, limit is %d", len(spec.Parts), types.MaxPartCount), nil)
	}

	data, err := encodeSpecification(spec)
	if err != nil {
		return err
	}

	key := metaKey(s.root, spec.ObjectID, spec.UploadID)
	if err := s.blobs.Put(ctx, key, data); err != nil {
		return storageError("write upload specification", err)
	}

	logger.Ctx(ctx).Debug().
		Str("object_id", spec.ObjectID).
		Str("upload_id", spec.UploadID).
		Int("parts", len(spec.Parts)).
		Msg("created upload state")
	return nil
}

func (s *storeImpl) LoadSpecification(ctx context.Context, objectID, uploadID string) (*types.UploadSpecification, error) {
	data, err := s.blobs.Get(ctx, metaKey(s.root, objectID, uploadID))
	if err != nil {
		if errors.Is(err, blobstore.ErrKeyNotFound) {
			return nil, NewError(ErrNotFound,
				fmt.Sprintf("no upload state for object %q upload %q", objectID, uploadID), err)
		}
		return nil, storageError("read upload specification", err)
	}
	return decodeSpecification(data)
}

func (s *storeImpl) FinalizePart(ctx context.Context, objectID, uploadID string, part *types.CompletedPart) error {
	key, err := partKey(s.root, objectID, uploadID, part.PartNumber)
	if err != nil {
		return err
	}
	data, err := encodeCompletedPart(part)
	if err != nil {
		return err
	}
	// Re-finalizing a part overwrites the previous record, which keeps
	// retries after a lost response idempotent.
	if err := s.blobs.Put(ctx, key, data); err != nil {
		return storageError("write part record", err)
	}
	return nil
}

func (s *storeImpl) IsPartCompleted(ctx context.Context, objectID, uploadID string, partNumber int) (bool, error) {
	key, err := partKey(s.root, objectID, uploadID, partNumber)
	if err != nil {
		return false, err
	}
	exists, err := s.blobs.Head(ctx, key)
	if err != nil {
		return false, storageError("check part record", err)
	}
	return exists, nil
}

func (s *storeImpl) ListIncompleteParts(ctx context.Context, objectID, uploadID string) ([]types.Part, error) {
	spec, err := s.LoadSpecification(ctx, objectID, uploadID)
	if err != nil {
		return nil, err
	}
	completed, err := s.completedSet(ctx, objectID, uploadID)
	if err != nil {
		return nil, err
	}

	incomplete := make([]types.Part, 0, len(spec.Parts))
	for _, part := range spec.Parts {
		if !completed[part.PartNumber] {
			incomplete = append(incomplete, part)
		}
	}
	return incomplete, nil
}

func (s *storeImpl) IsComplete(ctx context.Context, objectID, uploadID string) (bool, error) {
	incomplete, err := s.ListIncompleteParts(ctx, objectID, uploadID)
	if err != nil {
		return false, err
	}
	return len(incomplete) == 0, nil
}

func (s *storeImpl) FinalizationManifest(ctx context.Context, objectID, uploadID string) ([]types.PartETag, error) {
	spec, err := s.LoadSpecification(ctx, objectID, uploadID)
	if err != nil {
		return nil, err
	}

	manifest := make([]types.PartETag, 0, len(spec.Parts))
	err = s.walkPartKeys(ctx, objectID, uploadID, func(key string) error {
		partNumber, err := decodePartNumber(key)
		if err != nil {
			return err
		}
		data, err := s.blobs.Get(ctx, key)
		if err != nil {
			return storageError("read part record", err)
		}
		part, err := decodeCompletedPart(data)
		if err != nil {
			return err
		}
		if part.PartNumber != partNumber {
			return NewError(ErrCorruptState,
				fmt.Sprintf("part record %q claims part number %d", key, part.PartNumber), nil)
		}
		manifest = append(manifest, types.PartETag{PartNumber: part.PartNumber, ETag: part.ETag})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Listing order is not trusted here. The manifest must be a dense
	// 1..N cover in part order before it can back a commit call.
	sort.Slice(manifest, func(i, j int) bool {
		return manifest[i].PartNumber < manifest[j].PartNumber
	})
	for i, entry := range manifest {
		if entry.PartNumber != i+1 {
			return nil, NewError(ErrIncompleteUpload,
				fmt.Sprintf("part %d has no completion record", i+1), nil)
		}
	}
	if len(manifest) != len(spec.Parts) {
		return nil, NewError(ErrIncompleteUpload,
			fmt.Sprintf("%d of %d parts completed", len(manifest), len(spec.Parts)), nil)
	}
	return manifest, nil
}

func (s *storeImpl) Delete(ctx context.Context, objectID, uploadID string) error {
	prefix := dirPrefix(s.root, objectID, uploadID)
	marker := ""
	for {
		page, err := s.blobs.ListPrefix(ctx, prefix, marker)
		if err != nil {
			return storageError("list upload state", err)
		}
		for _, key := range page.Keys {
			if err := s.blobs.Delete(ctx, key); err != nil {
				return storageError("delete upload state", err)
			}
		}
		if page.NextMarker == "" {
			return nil
		}
		marker = page.NextMarker
	}
}

// completedSet lists the part numbers that have a completion record.
func (s *storeImpl) completedSet(ctx context.Context, objectID, uploadID string) (map[int]bool, error) {
	completed := make(map[int]bool)
	err := s.walkPartKeys(ctx, objectID, uploadID, func(key string) error {
		partNumber, err := decodePartNumber(key)
		if err != nil {
			return err
		}
		completed[partNumber] = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

// walkPartKeys visits every part record key of an upload in
// lexicographic order, paging through listings and skipping the .meta
// record that shares the prefix.
func (s *storeImpl) walkPartKeys(ctx context.Context, objectID, uploadID string, fn func(key string) error) error {
	prefix := dirPrefix(s.root, objectID, uploadID)
	marker := ""
	for {
		page, err := s.blobs.ListPrefix(ctx, prefix, marker)
		if err != nil {
			return storageError("list upload state", err)
		}
		for _, key := range page.Keys {
			if key == prefix+metaName {
				continue
			}
			if err := fn(key); err != nil {
				return err
			}
		}
		if page.NextMarker == "" {
			return nil
		}
		marker = page.NextMarker
	}
}
