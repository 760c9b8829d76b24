package pipeline

import (
	"math/rand"
	"time"
)

const MaxRetries = 3

// Backoff returns a duration for attempt n (0-indexed) with jitter. Downloads
// fail transiently often enough that an immediate retry just burns the quota.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}
