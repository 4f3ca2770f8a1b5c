// Package blobstore provides narrow adapters over blob-store primitives.
// All backends implement the Store interface and are selected by config.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/HaulWorks/haulfs/pkg/types"
)

// ErrKeyNotFound is returned by Get when the key does not exist.
var ErrKeyNotFound = errors.New("key not found")

// ErrInvalidSession marks a multipart commit the service rejected
// outright, such as an unknown upload ID or a part manifest it cannot
// honor. Retrying the same commit cannot succeed.
var ErrInvalidSession = errors.New("invalid multipart session")

// Type identifies a blob-store backend flavor.
type Type string

const (
	TypeS3    Type = "s3"
	TypeAzure Type = "azure"
)

// Config holds connection settings for a backend. Bucket names the S3
// bucket or Azure container; AccessKey doubles as the Azure account name
// and SecretKey as the shared account key.
type Config struct {
	Type      Type
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// ListPage is one page of a prefix listing. NextMarker is the opaque
// continuation token for the following page, empty when exhausted.
type ListPage struct {
	Keys       []string
	NextMarker string
}

// Store is the capability set the upload subsystem needs from a blob
// store: key/value primitives for state records plus the native
// multipart API for the data object itself.
type Store interface {
	Type() Type

	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Head(ctx context.Context, key string) (bool, error)
	ListPrefix(ctx context.Context, prefix, marker string) (*ListPage, error)
	Delete(ctx context.Context, key string) error

	InitiateMultipart(ctx context.Context, key string) (string, error)
	CompleteMultipart(ctx context.Context, key, uploadID string, manifest []types.PartETag) error
	AbortMultipart(ctx context.Context, key, uploadID string) error
	PresignUploadPart(ctx context.Context, key, uploadID string, partNumber int, expiry time.Duration) (string, error)

	Close() error
}

// Registry holds registered backend factories
var (
	registryMu sync.RWMutex
	registry   = make(map[Type]Factory)
)

// Factory creates a Store from config
type Factory func(cfg Config) (Store, error)

// Register adds a factory for a backend type
func Register(t Type, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[t] = f
}

// New creates a Store from config
func New(cfg Config) (Store, error) {
	registryMu.RLock()
	f, ok := registry[cfg.Type]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown blob store type: %s", cfg.Type)
	}
	return f(cfg)
}
