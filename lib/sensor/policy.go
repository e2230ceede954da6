// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sensor

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/zeebo/blake3"
)

// maxBackoffInterval saturates the exponential growth so that adding
// jitter (strictly less than the base) cannot overflow.
const maxBackoffInterval = time.Duration(math.MaxInt64 / 2)

// NextPokeInterval returns how long to wait before poke number
// attempt+1, given that the poll cycle started at startedAt and has
// been running for runDuration().
//
// Without exponential backoff the result is always PokeInterval.
//
// With backoff, the base for attempt n is PokeInterval·2^(n-2) and the
// result lies in [base, 2·base): attempt 1 waits between half and all
// of PokeInterval, attempt 2 at least PokeInterval, and every later
// attempt at least as long as the one before. The position inside the
// range is a blake3 hash of (identity, startedAt, attempt), so
// re-evaluating the same cycle yields the same wait. The result is then
// capped by MaxPokeInterval and by the time left before Timeout.
func (c Config) NextPokeInterval(identity string, startedAt time.Time, runDuration func() time.Duration, attempt int) time.Duration {
	if !c.ExponentialBackoff {
		return c.PokeInterval
	}
	if attempt < 1 {
		attempt = 1
	}

	base := scaleInterval(c.PokeInterval, attempt-2)
	interval := base
	if base > 0 {
		interval += time.Duration(jitter(identity, startedAt, attempt) % uint64(base))
	}

	if c.MaxPokeInterval > 0 && interval > c.MaxPokeInterval {
		interval = c.MaxPokeInterval
	}
	if runDuration != nil {
		remaining := max(c.Timeout-runDuration(), 0)
		interval = min(interval, remaining)
	}
	return interval
}

// scaleInterval returns base·2^exponent, saturating at
// maxBackoffInterval. Only exponent -1 is negative in practice.
func scaleInterval(base time.Duration, exponent int) time.Duration {
	if base <= 0 {
		return 0
	}
	if exponent < 0 {
		return base >> uint(-exponent)
	}
	if exponent >= 62 || base > maxBackoffInterval>>uint(exponent) {
		return maxBackoffInterval
	}
	return base << uint(exponent)
}

func jitter(identity string, startedAt time.Time, attempt int) uint64 {
	buffer := make([]byte, 0, len(identity)+17)
	buffer = append(buffer, identity...)
	buffer = append(buffer, '#')
	buffer = binary.BigEndian.AppendUint64(buffer, uint64(startedAt.UnixNano()))
	buffer = binary.BigEndian.AppendUint64(buffer, uint64(attempt))
	sum := blake3.Sum256(buffer)
	return binary.BigEndian.Uint64(sum[:8])
}
