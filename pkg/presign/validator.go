// Copyright 2025 HaulFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package presign inspects presigned part URLs so clients can tell a
// stale URL from a broken one before retrying a transfer. Expiry
// parameters differ per provider: S3 signatures carry an issue time
// plus a TTL, Azure SAS tokens carry an absolute expiry instant.
package presign

import (
	"fmt"
	"net/url"
	"time"
)

// Validator extracts the expiry instant from a presigned URL.
type Validator interface {
	// Expiry returns when the URL stops being usable, in UTC.
	Expiry(u *url.URL) (time.Time, error)
}

// For picks the validator matching the URL's signature style.
func For(u *url.URL) (Validator, error) {
	q := u.Query()
	switch {
	case q.Has("X-Amz-Date") || q.Has("X-Amz-Expires"):
		return S3{}, nil
	case q.Has("se"):
		return Azure{}, nil
	default:
		return nil, fmt.Errorf("no recognizable expiry parameters in presigned url")
	}
}

// IsExpired reports whether the URL's signature has lapsed.
func IsExpired(u *url.URL) (bool, error) {
	v, err := For(u)
	if err != nil {
		return false, err
	}
	expiry, err := v.Expiry(u)
	if err != nil {
		return false, err
	}
	return !time.Now().UTC().Before(expiry), nil
}

// LocalExpiry returns the expiry instant in the host's time zone, for
// display.
func LocalExpiry(u *url.URL) (time.Time, error) {
	v, err := For(u)
	if err != nil {
		return time.Time{}, err
	}
	expiry, err := v.Expiry(u)
	if err != nil {
		return time.Time{}, err
	}
	return expiry.In(time.Local), nil
}
