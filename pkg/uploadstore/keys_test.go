// Copyright 2025 HaulFS Authors
// SPDX-License-Identifier: Apache-2.0

package uploadstore

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		partNumber int
		want       string
		wantErr    bool
	}{
		{name: "first part", partNumber: 1, want: "upload/obj_up/0001"},
		{name: "ten", partNumber: 10, want: "upload/obj_up/000a"},
		{name: "max encodable", partNumber: 0xFFFF, want: "upload/obj_up/ffff"},
		{name: "zero", partNumber: 0, wantErr: true},
		{name: "negative", partNumber: -1, wantErr: true},
		{name: "over max", partNumber: 0x10000, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			key, err := partKey("upload", "obj", "up", tt.partNumber)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, ErrInvalidPart, CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, key)
		})
	}
}

func TestPartKey_LexicographicOrder(t *testing.T) {
	t.Parallel()

	// Key order must equal part order so listings come back sorted by
	// part number.
	numbers := []int{1, 2, 9, 10, 11, 15, 16, 255, 256, 4095, 4096, 9999, 10000}

	keys := make([]string, 0, len(numbers))
	for _, n := range numbers {
		key, err := partKey("upload", "obj", "up", n)
		require.NoError(t, err)
		keys = append(keys, key)
	}

	assert.True(t, sort.StringsAreSorted(keys))
}

func TestMetaKey_SortsBeforeParts(t *testing.T) {
	t.Parallel()

	meta := metaKey("upload", "obj", "up")
	first, err := partKey("upload", "obj", "up", 1)
	require.NoError(t, err)

	assert.Less(t, meta, first)
}

func TestDecodePartNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		key     string
		want    int
		wantErr bool
	}{
		{name: "first", key: "upload/obj_up/0001", want: 1},
		{name: "hex digits", key: "upload/obj_up/00ff", want: 255},
		{name: "max", key: "upload/obj_up/ffff", want: 0xFFFF},
		{name: "zero", key: "upload/obj_up/0000", wantErr: true},
		{name: "too short", key: "upload/obj_up/01", wantErr: true},
		{name: "not hex", key: "upload/obj_up/zzzz", wantErr: true},
		{name: "meta record", key: "upload/obj_up/.meta", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			n, err := decodePartNumber(tt.key)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, ErrCorruptState, CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestPartKey_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 42, 256, 9999, 10000, 0xFFFF} {
		key, err := partKey("upload", "obj", "up", n)
		require.NoError(t, err)

		decoded, err := decodePartNumber(key)
		require.NoError(t, err)
		assert.Equal(t, n, decoded)
	}
}
