// Copyright 2025 HaulFS Authors
// SPDX-License-Identifier: Apache-2.0

package presign

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// amzDateLayout is the timestamp format of SigV4 query signatures.
const amzDateLayout = "20060102T150405Z"

// S3 reads SigV4 query-signature expiry: the signing time in X-Amz-Date
// plus the TTL in X-Amz-Expires seconds.
type S3 struct{}

func (S3) Expiry(u *url.URL) (time.Time, error) {
	q := u.Query()

	dateStr := q.Get("X-Amz-Date")
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("presigned url missing X-Amz-Date")
	}
	issued, err := time.Parse(amzDateLayout, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse X-Amz-Date %q: %w", dateStr, err)
	}

	expiresStr := q.Get("X-Amz-Expires")
	if expiresStr == "" {
		return time.Time{}, fmt.Errorf("presigned url missing X-Amz-Expires")
	}
	seconds, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse X-Amz-Expires %q: %w", expiresStr, err)
	}
	if seconds < 0 {
		return time.Time{}, fmt.Errorf("negative X-Amz-Expires %q", expiresStr)
	}

	return issued.UTC().Add(time.Duration(seconds) * time.Second), nil
}
