// Copyright 2025 HaulFS Authors
// SPDX-License-Identifier: Apache-2.0

package presign

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		want    Validator
		wantErr bool
	}{
		{
			name: "sigv4 query signature",
			url:  "https://bucket.s3.amazonaws.com/key?X-Amz-Date=20250601T120000Z&X-Amz-Expires=3600",
			want: S3{},
		},
		{
			name: "azure sas",
			url:  "https://account.blob.core.windows.net/container/key?se=2025-06-01T13%3A00%3A00Z&sig=abc",
			want: Azure{},
		},
		{
			name:    "no expiry parameters",
			url:     "https://example.com/key?foo=bar",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v, err := For(mustParse(t, tt.url))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestS3_Expiry(t *testing.T) {
	t.Parallel()

	u := mustParse(t, "https://bucket.s3.amazonaws.com/key?X-Amz-Date=20250601T120000Z&X-Amz-Expires=3600")

	expiry, err := S3{}.Expiry(u)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC), expiry)
}

func TestS3_Expiry_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
	}{
		{name: "missing date", url: "https://h/k?X-Amz-Expires=3600"},
		{name: "missing expires", url: "https://h/k?X-Amz-Date=20250601T120000Z"},
		{name: "malformed date", url: "https://h/k?X-Amz-Date=June-1&X-Amz-Expires=60"},
		{name: "malformed expires", url: "https://h/k?X-Amz-Date=20250601T120000Z&X-Amz-Expires=soon"},
		{name: "negative expires", url: "https://h/k?X-Amz-Date=20250601T120000Z&X-Amz-Expires=-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := S3{}.Expiry(mustParse(t, tt.url))
			assert.Error(t, err)
		})
	}
}

func TestAzure_Expiry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		se   string
		want time.Time
	}{
		{
			name: "utc designator",
			se:   "2025-06-01T13:00:00Z",
			want: time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC),
		},
		{
			name: "zone offset",
			se:   "2025-06-01T09:00:00-04:00",
			want: time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC),
		},
		{
			name: "no seconds",
			se:   "2025-06-01T13:00Z",
			want: time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			u := mustParse(t, "https://account.blob.core.windows.net/c/k?sig=abc&se="+url.QueryEscape(tt.se))

			expiry, err := Azure{}.Expiry(u)
			require.NoError(t, err)
			assert.True(t, expiry.Equal(tt.want), "got %v want %v", expiry, tt.want)
		})
	}
}

func TestAzure_Expiry_Errors(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"https://h/k?sig=abc",
		"https://h/k?se=tomorrow",
	} {
		_, err := Azure{}.Expiry(mustParse(t, raw))
		assert.Error(t, err)
	}
}

func TestIsExpired(t *testing.T) {
	t.Parallel()

	past := mustParse(t, "https://h/k?se="+url.QueryEscape(time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)))
	expired, err := IsExpired(past)
	require.NoError(t, err)
	assert.True(t, expired)

	future := mustParse(t, "https://h/k?se="+url.QueryEscape(time.Now().UTC().Add(time.Hour).Format(time.RFC3339)))
	expired, err = IsExpired(future)
	require.NoError(t, err)
	assert.False(t, expired)
}

func TestLocalExpiry(t *testing.T) {
	t.Parallel()

	u := mustParse(t, "https://h/k?se=2025-06-01T13%3A00%3A00Z")

	local, err := LocalExpiry(u)
	require.NoError(t, err)
	assert.True(t, local.Equal(time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Local, local.Location())
}
