// SPDX-License-Identifier: MIT

package client

import (
	"math/rand/v2"
	"time"
)

// backoffFor computes the wait before the given retry attempt (1-based):
// exponential growth from base, capped at max, with up to 25% jitter to
// avoid thundering-herd replays when the server comes back.
func backoffFor(base, max time.Duration, attempt int) time.Duration {
	wait := base << (attempt - 1)
	if wait > max || wait <= 0 {
		wait = max
	}
	jitter := time.Duration(rand.Int64N(int64(wait)/4 + 1))
	return wait + jitter
}
