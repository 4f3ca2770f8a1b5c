// Copyright 2025 HaulFS Authors
// SPDX-License-Identifier: Apache-2.0

package uploadstore

import (
	"encoding/json"
	"fmt"

	"github.com/HaulWorks/haulfs/pkg/types"
)

// encodeSpecification serializes an upload specification for the .meta
// record.
func encodeSpecification(spec *types.UploadSpecification) ([]byte, error) {
	data, err := json.Marshal(spec)
	if err != nil {
		return nil, NewError(ErrCorruptState, "encode upload specification", err)
	}
	return data, nil
}

// decodeSpecification deserializes a .meta record. Unknown fields are
// ignored so newer writers stay readable.
func decodeSpecification(data []byte) (*types.UploadSpecification, error) {
	var spec types.UploadSpecification
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, NewError(ErrCorruptState, "decode upload specification", err)
	}
	if spec.ObjectID == "" || spec.UploadID == "" {
		return nil, NewError(ErrCorruptState,
			"upload specification missing object or upload identifier", nil)
	}
	if len(spec.Parts) == 0 {
		return nil, NewError(ErrCorruptState, "upload specification has no parts", nil)
	}
	for i, p := range spec.Parts {
		if p.PartNumber != i+1 {
			return nil, NewError(ErrCorruptState,
				fmt.Sprintf("upload specification parts out of order at index %d", i), nil)
		}
	}
	return &spec, nil
}

func encodeCompletedPart(part *types.CompletedPart) ([]byte, error) {
	data, err := json.Marshal(part)
	if err != nil {
		return nil, NewError(ErrCorruptState, "encode completed part", err)
	}
	return data, nil
}

func decodeCompletedPart(data []byte) (*types.CompletedPart, error) {
	var part types.CompletedPart
	if err := json.Unmarshal(data, &part); err != nil {
		return nil, NewError(ErrCorruptState, "decode completed part", err)
	}
	if part.PartNumber < 1 || part.PartNumber > maxPartNumber {
		return nil, NewError(ErrCorruptState,
			fmt.Sprintf("completed part has invalid part number %d", part.PartNumber), nil)
	}
	if part.ETag == "" {
		return nil, NewError(ErrCorruptState, "completed part missing etag", nil)
	}
	return &part, nil
}
