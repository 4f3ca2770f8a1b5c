// Copyright 2025 HaulFS Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/HaulWorks/haulfs/pkg/types"

	"github.com/google/uuid"
)

// TypeMemory is used for testing
const TypeMemory Type = "memory"

func init() {
	Register(TypeMemory, func(cfg Config) (Store, error) {
		return NewMemory(), nil
	})
}

// Memory is an in-memory backend for testing
type Memory struct {
	mu       sync.RWMutex
	data     map[string][]byte
	sessions map[string]string              // uploadID -> object key
	commits  map[string][]types.PartETag    // object key -> committed manifest

	// PageSize bounds ListPrefix pages; tests lower it to exercise
	// pagination.
	PageSize int
}

// NewMemory creates a new in-memory blob store
func NewMemory() *Memory {
	return &Memory{
		data:     make(map[string][]byte),
		sessions: make(map[string]string),
		commits:  make(map[string][]types.PartETag),
		PageSize: 1000,
	}
}

func (m *Memory) Type() Type {
	return TypeMemory
}

func (m *Memory) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.data[key] = buf
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

func (m *Memory) Head(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *Memory) ListPrefix(ctx context.Context, prefix, marker string) (*ListPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix && k > marker {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	page := &ListPage{}
	if len(keys) > m.PageSize {
		page.Keys = keys[:m.PageSize]
		page.NextMarker = keys[m.PageSize-1]
	} else {
		page.Keys = keys
	}
	return page, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) InitiateMultipart(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	uploadUUID := uuid.New()
	uploadID := base64.RawURLEncoding.EncodeToString(uploadUUID[:])

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[uploadID] = key
	return uploadID, nil
}

func (m *Memory) CompleteMultipart(ctx context.Context, key, uploadID string, manifest []types.PartETag) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[uploadID]; !ok {
		return fmt.Errorf("%w: no such upload %s", ErrInvalidSession, uploadID)
	}
	delete(m.sessions, uploadID)

	m.data[key] = []byte{}
	m.commits[key] = append([]types.PartETag(nil), manifest...)
	return nil
}

func (m *Memory) AbortMultipart(ctx context.Context, key, uploadID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, uploadID)
	return nil
}

func (m *Memory) PresignUploadPart(ctx context.Context, key, uploadID string, partNumber int, expiry time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("memory:///%s?uploadId=%s&partNumber=%d&X-Amz-Expires=%d",
		key, uploadID, partNumber, int(expiry.Seconds())), nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string][]byte)
	m.sessions = make(map[string]string)
	m.commits = make(map[string][]types.PartETag)
	return nil
}

// CommittedManifest returns the manifest recorded by CompleteMultipart
// for the given object key. Test helper.
func (m *Memory) CommittedManifest(key string) ([]types.PartETag, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	manifest, ok := m.commits[key]
	return manifest, ok
}

// SessionOpen reports whether a multipart session is still open. Test helper.
func (m *Memory) SessionOpen(uploadID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[uploadID]
	return ok
}
