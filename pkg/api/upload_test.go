// Copyright 2025 HaulFS Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HaulWorks/haulfs/pkg/api/apierr"
	"github.com/HaulWorks/haulfs/pkg/blobstore"
	"github.com/HaulWorks/haulfs/pkg/coordinator"
	"github.com/HaulWorks/haulfs/pkg/uploadstore"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, cfg Config) (*Server, *blobstore.Memory) {
	t.Helper()

	mem := blobstore.NewMemory()
	t.Cleanup(func() { mem.Close() })
	return newTestServerWith(t, cfg, mem), mem
}

func newTestServerWith(t *testing.T, cfg Config, blobs blobstore.Store) *Server {
	t.Helper()

	svc, err := coordinator.NewService(coordinator.Config{
		Blobs:         blobs,
		States:        uploadstore.New(blobs, "upload"),
		DataRoot:      "data",
		PartSize:      10,
		PresignExpiry: time.Minute,
	})
	require.NoError(t, err)

	cfg.Service = svc
	cfg.Registry = prometheus.NewRegistry()
	server, err := NewServer(cfg)
	require.NoError(t, err)
	return server
}

func doRequest(t *testing.T, server *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeInitiate(t *testing.T, rec *httptest.ResponseRecorder) coordinator.InitiateResult {
	t.Helper()
	var result coordinator.InitiateResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	return result
}

func errorCodeOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var e apierr.Error
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&e))
	return e.Code
}

func TestInitiateHandler(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, Config{})

	rec := doRequest(t, server, http.MethodPost, "/upload/obj-1?size=25", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	result := decodeInitiate(t, rec)
	assert.NotEmpty(t, result.UploadID)
	require.Len(t, result.Parts, 3)
	assert.Equal(t, 1, result.Parts[0].PartNumber)
	assert.NotEmpty(t, result.Parts[0].URL)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestInitiateHandler_PartFieldNames(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, Config{})

	rec := doRequest(t, server, http.MethodPost, "/upload/obj-1?size=25", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `"partNumber":1`)
	assert.Contains(t, body, `"offset":10`)
	assert.Contains(t, body, `"size":10`)
	assert.NotContains(t, body, "partSize")
}

// headFailStore fails Head with a fixed error.
type headFailStore struct {
	*blobstore.Memory
	headErr error
}

func (s *headFailStore) Head(ctx context.Context, key string) (bool, error) {
	return false, s.headErr
}

func TestInitiateHandler_StorageUnavailable(t *testing.T) {
	t.Parallel()

	store := &headFailStore{Memory: blobstore.NewMemory(), headErr: errors.New("connection refused")}
	t.Cleanup(func() { store.Close() })
	server := newTestServerWith(t, Config{}, store)

	rec := doRequest(t, server, http.MethodPost, "/upload/obj-1?size=25", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "StorageUnavailable", errorCodeOf(t, rec))
}

func TestInitiateHandler_ClientCancelled(t *testing.T) {
	t.Parallel()

	store := &headFailStore{Memory: blobstore.NewMemory(), headErr: context.Canceled}
	t.Cleanup(func() { store.Close() })
	server := newTestServerWith(t, Config{}, store)

	rec := doRequest(t, server, http.MethodPost, "/upload/obj-1?size=25", "")
	require.Equal(t, apierr.StatusClientClosedRequest, rec.Code)
	assert.Equal(t, "RequestCancelled", errorCodeOf(t, rec))
}

func TestInitiateHandler_WithBody(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, Config{})

	rec := doRequest(t, server, http.MethodPost, "/upload/obj-1?size=25",
		`{"sourceMd5s":["a","b","c"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestInitiateHandler_BadRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target string
		body   string
	}{
		{name: "missing size", target: "/upload/obj-1"},
		{name: "malformed size", target: "/upload/obj-1?size=lots"},
		{name: "negative size", target: "/upload/obj-1?size=-5"},
		{name: "malformed overwrite", target: "/upload/obj-1?size=10&overwrite=perhaps"},
		{name: "malformed body", target: "/upload/obj-1?size=10", body: `{{{`},
		{name: "checksum count mismatch", target: "/upload/obj-1?size=25", body: `{"sourceMd5s":["a"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server, _ := newTestServer(t, Config{})

			rec := doRequest(t, server, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "InvalidArgument", errorCodeOf(t, rec))
		})
	}
}

func TestInitiateHandler_PreconditionFailed(t *testing.T) {
	t.Parallel()

	server, mem := newTestServer(t, Config{})
	require.NoError(t, mem.Put(t.Context(), "data/obj-1", []byte("existing")))

	rec := doRequest(t, server, http.MethodPost, "/upload/obj-1?size=10", "")
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, "PreconditionFailed", errorCodeOf(t, rec))

	rec = doRequest(t, server, http.MethodPost, "/upload/obj-1?size=10&overwrite=true", "")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestInitiateHandler_ObjectTooLarge(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, Config{})

	// 10-byte parts cap the object at 100000 bytes.
	rec := doRequest(t, server, http.MethodPost, "/upload/obj-1?size=100001", "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "ObjectTooLarge", errorCodeOf(t, rec))
}

func TestUploadLifecycle(t *testing.T) {
	t.Parallel()

	server, mem := newTestServer(t, Config{})

	rec := doRequest(t, server, http.MethodPost, "/upload/obj-1?size=25", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	uploadID := decodeInitiate(t, rec).UploadID

	// Record all three parts.
	for i := 1; i <= 3; i++ {
		target := fmt.Sprintf("/upload/obj-1/parts?uploadId=%s&partNumber=%d&md5=md5-%d&etag=etag-%d",
			uploadID, i, i, i)
		rec = doRequest(t, server, http.MethodPost, target, "")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	// Complete commits the object and drops the state.
	rec = doRequest(t, server, http.MethodPost, "/upload/obj-1?uploadId="+uploadID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	manifest, ok := mem.CommittedManifest("data/obj-1")
	require.True(t, ok)
	assert.Len(t, manifest, 3)

	rec = doRequest(t, server, http.MethodGet, "/upload/obj-1/status?uploadId="+uploadID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusHandler(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, Config{})

	rec := doRequest(t, server, http.MethodPost, "/upload/obj-1?size=25", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	uploadID := decodeInitiate(t, rec).UploadID

	rec = doRequest(t, server, http.MethodPost,
		"/upload/obj-1/parts?uploadId="+uploadID+"&partNumber=2&etag=e2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, server, http.MethodGet, "/upload/obj-1/status?uploadId="+uploadID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status coordinator.StatusResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, 3, status.TotalParts)
	assert.Equal(t, []int{1, 3}, status.IncompleteParts)
}

func TestStatusHandler_Errors(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, Config{})

	rec := doRequest(t, server, http.MethodGet, "/upload/obj-1/status", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, server, http.MethodGet, "/upload/obj-1/status?uploadId=unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NotFound", errorCodeOf(t, rec))
}

func TestPresignPartHandler(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, Config{})

	rec := doRequest(t, server, http.MethodPost, "/upload/obj-1?size=25", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	uploadID := decodeInitiate(t, rec).UploadID

	rec = doRequest(t, server, http.MethodGet,
		"/upload/obj-1/parts?uploadId="+uploadID+"&partNumber=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result coordinator.PresignPartResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, 2, result.PartNumber)
	assert.NotEmpty(t, result.URL)

	rec = doRequest(t, server, http.MethodGet,
		"/upload/obj-1/parts?uploadId="+uploadID+"&partNumber=7", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompleteHandler_Incomplete(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, Config{})

	rec := doRequest(t, server, http.MethodPost, "/upload/obj-1?size=25", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	uploadID := decodeInitiate(t, rec).UploadID

	rec = doRequest(t, server, http.MethodPost, "/upload/obj-1?uploadId="+uploadID, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "IncompleteUpload", errorCodeOf(t, rec))
}

func TestAbortHandler(t *testing.T) {
	t.Parallel()

	server, mem := newTestServer(t, Config{})

	rec := doRequest(t, server, http.MethodPost, "/upload/obj-1?size=25", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	uploadID := decodeInitiate(t, rec).UploadID

	rec = doRequest(t, server, http.MethodDelete, "/upload/obj-1?uploadId="+uploadID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, mem.SessionOpen(uploadID))

	// Aborting an unknown upload reports NotFound.
	rec = doRequest(t, server, http.MethodDelete, "/upload/obj-1?uploadId="+uploadID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, Config{AccessToken: "secret"})

	rec := doRequest(t, server, http.MethodPost, "/upload/obj-1?size=10", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", errorCodeOf(t, rec))

	req := httptest.NewRequest(http.MethodPost, "/upload/obj-1?size=10", strings.NewReader(""))
	req.Header.Set("Authorization", "Bearer wrong")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/upload/obj-1?size=10", strings.NewReader(""))
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, Config{RateLimit: 1, RateBurst: 1})

	rec := doRequest(t, server, http.MethodGet, "/upload/obj-1/status?uploadId=u", "")
	assert.NotEqual(t, http.StatusTooManyRequests, rec.Code)

	rec = doRequest(t, server, http.MethodGet, "/upload/obj-1/status?uploadId=u", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "SlowDown", errorCodeOf(t, rec))
}

func TestRequestIDPropagation(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/upload/obj-1/status?uploadId=u", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	assert.Equal(t, "req-42", rr.Header().Get("X-Request-Id"))

	var e apierr.Error
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&e))
	assert.Equal(t, "req-42", e.RequestID)
}
