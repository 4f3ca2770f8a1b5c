// Copyright 2025 HaulFS Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/HaulWorks/haulfs/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Registry Tests
// ============================================================================

func TestRegister_CustomType(t *testing.T) {
	t.Parallel()

	customType := Type("test-custom")

	Register(customType, func(cfg Config) (Store, error) {
		return NewMemory(), nil
	})

	store, err := New(Config{Type: customType})
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	assert.Equal(t, TypeMemory, store.Type())
}

func TestNew_UnknownType(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Type: "unknown-type"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown blob store type")
}

func TestNew_MemoryType(t *testing.T) {
	t.Parallel()

	store, err := New(Config{Type: TypeMemory})
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	assert.Equal(t, TypeMemory, store.Type())
}

// ============================================================================
// Memory Tests
// ============================================================================

func TestMemory_PutGet(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	err := m.Put(ctx, "key1", []byte("hello world"))
	require.NoError(t, err)

	data, err := m.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), data)
}

func TestMemory_Get_NotFound(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	defer m.Close()

	_, err := m.Get(context.Background(), "nonexistent")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemory_Head(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	exists, err := m.Head(ctx, "key1")
	require.NoError(t, err)
	assert.False(t, exists)

	err = m.Put(ctx, "key1", []byte("data"))
	require.NoError(t, err)

	exists, err = m.Head(ctx, "key1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemory_Delete(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	err := m.Put(ctx, "key1", []byte("data"))
	require.NoError(t, err)

	err = m.Delete(ctx, "key1")
	require.NoError(t, err)

	exists, err := m.Head(ctx, "key1")
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting non-existent key should not error
	err = m.Delete(ctx, "nonexistent")
	assert.NoError(t, err)
}

func TestMemory_ListPrefix(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	for _, key := range []string{"upload/a/0001", "upload/a/0002", "upload/b/0001", "other/x"} {
		require.NoError(t, m.Put(ctx, key, []byte("x")))
	}

	page, err := m.ListPrefix(ctx, "upload/a/", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"upload/a/0001", "upload/a/0002"}, page.Keys)
	assert.Empty(t, page.NextMarker)
}

func TestMemory_ListPrefix_Pagination(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	m.PageSize = 2
	defer m.Close()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, m.Put(ctx, fmt.Sprintf("p/%04x", i), []byte("x")))
	}

	var keys []string
	marker := ""
	for {
		page, err := m.ListPrefix(ctx, "p/", marker)
		require.NoError(t, err)
		keys = append(keys, page.Keys...)
		if page.NextMarker == "" {
			break
		}
		marker = page.NextMarker
	}

	assert.Equal(t, []string{"p/0001", "p/0002", "p/0003", "p/0004", "p/0005"}, keys)
}

func TestMemory_Multipart(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	uploadID, err := m.InitiateMultipart(ctx, "data/obj1")
	require.NoError(t, err)
	require.NotEmpty(t, uploadID)
	assert.True(t, m.SessionOpen(uploadID))

	manifest := []types.PartETag{
		{PartNumber: 1, ETag: "etag-1"},
		{PartNumber: 2, ETag: "etag-2"},
	}
	err = m.CompleteMultipart(ctx, "data/obj1", uploadID, manifest)
	require.NoError(t, err)
	assert.False(t, m.SessionOpen(uploadID))

	committed, ok := m.CommittedManifest("data/obj1")
	require.True(t, ok)
	assert.Equal(t, manifest, committed)

	exists, err := m.Head(ctx, "data/obj1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemory_CompleteMultipart_UnknownUpload(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	defer m.Close()

	err := m.CompleteMultipart(context.Background(), "data/obj1", "bogus", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSession)
	assert.Contains(t, err.Error(), "no such upload")
}

func TestMemory_AbortMultipart(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	uploadID, err := m.InitiateMultipart(ctx, "data/obj1")
	require.NoError(t, err)

	err = m.AbortMultipart(ctx, "data/obj1", uploadID)
	require.NoError(t, err)
	assert.False(t, m.SessionOpen(uploadID))

	// Aborting again should not error
	err = m.AbortMultipart(ctx, "data/obj1", uploadID)
	assert.NoError(t, err)
}

func TestMemory_PresignUploadPart(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	uploadID, err := m.InitiateMultipart(ctx, "data/obj1")
	require.NoError(t, err)

	url, err := m.PresignUploadPart(ctx, "data/obj1", uploadID, 3, 0)
	require.NoError(t, err)
	assert.Contains(t, url, "partNumber=3")
	assert.Contains(t, url, uploadID)
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := "key-" + string(rune('a'+id%26))
			_ = m.Put(ctx, key, []byte(strings.Repeat("x", id+1)))
		}(i)
	}

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := "key-" + string(rune('a'+id%26))
			_, _ = m.Get(ctx, key)
		}(i)
	}

	wg.Wait()
}

// ============================================================================
// Azure block ID Tests
// ============================================================================

func TestAzureBlockID_Ordering(t *testing.T) {
	t.Parallel()

	// Block IDs encode the part number as fixed-width hex so the
	// commit list can be assembled in part order.
	id1 := blockID("upload-1", 1)
	id2 := blockID("upload-1", 2)
	assert.NotEqual(t, id1, id2)

	// Same length is required by the Azure block list API.
	assert.Equal(t, len(id1), len(id2))
	assert.Equal(t, len(id1), len(blockID("upload-1", 0xFFFF)))
}
