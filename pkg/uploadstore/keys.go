// Copyright 2025 HaulFS Authors
// SPDX-License-Identifier: Apache-2.0

package uploadstore

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// metaName is the fixed object name holding the upload specification.
	// It sorts before the hex part records within the same directory.
	metaName = ".meta"

	// maxPartNumber bounds the part numbers the hex encoding can carry.
	maxPartNumber = 0xFFFF
)

// dirPrefix returns the key prefix under which all state for one upload
// lives: {root}/{objectID}_{uploadID}/
func dirPrefix(root, objectID, uploadID string) string {
	return fmt.Sprintf("%s/%s_%s/", root, objectID, uploadID)
}

// metaKey returns the key of the upload specification record.
func metaKey(root, objectID, uploadID string) string {
	return dirPrefix(root, objectID, uploadID) + metaName
}

// partKey returns the key of the completion record for one part. Part
// numbers are encoded as four lowercase hex digits so that the
// lexicographic order of keys equals the numeric order of parts.
func partKey(root, objectID, uploadID string, partNumber int) (string, error) {
	suffix, err := encodePartNumber(partNumber)
	if err != nil {
		return "", err
	}
	return dirPrefix(root, objectID, uploadID) + suffix, nil
}

func encodePartNumber(partNumber int) (string, error) {
	if partNumber < 1 || partNumber > maxPartNumber {
		return "", NewError(ErrInvalidPart,
			fmt.Sprintf("part number %d outside range [1, %d]", partNumber, maxPartNumber), nil)
	}
	return fmt.Sprintf("%04x", partNumber), nil
}

// decodePartNumber parses the trailing hex component of a part key.
func decodePartNumber(key string) (int, error) {
	idx := strings.LastIndexByte(key, '/')
	suffix := key[idx+1:]
	if len(suffix) != 4 {
		return 0, NewError(ErrCorruptState,
			fmt.Sprintf("malformed part key %q", key), nil)
	}
	n, err := strconv.ParseUint(suffix, 16, 16)
	if err != nil || n == 0 {
		return 0, NewError(ErrCorruptState,
			fmt.Sprintf("malformed part key %q", key), err)
	}
	return int(n), nil
}
