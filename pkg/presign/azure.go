// Copyright 2025 HaulFS Authors
// SPDX-License-Identifier: Apache-2.0

package presign

import (
	"fmt"
	"net/url"
	"time"
)

// seLayouts are the expiry formats Azure emits in SAS tokens: an
// instant with seconds precision and a zone designator, occasionally
// without seconds.
var seLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04Z07:00",
}

// Azure reads the absolute expiry instant from the SAS `se` parameter.
type Azure struct{}

func (Azure) Expiry(u *url.URL) (time.Time, error) {
	q := u.Query()

	se := q.Get("se")
	if se == "" {
		return time.Time{}, fmt.Errorf("presigned url missing se parameter")
	}

	var lastErr error
	for _, layout := range seLayouts {
		expiry, err := time.Parse(layout, se)
		if err == nil {
			return expiry.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("parse se %q: %w", se, lastErr)
}
