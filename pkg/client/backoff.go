package client

import (
	"math/rand"
	"time"
)

// backoff returns the delay before reconnect attempt n. The ceiling
// doubles per attempt up to max; the returned delay is jittered into
// the upper half of the ceiling, so consecutive ceilings never shrink
// while simultaneous clients still spread out.
func backoff(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if max <= 0 {
		max = 30 * time.Second
	}
	d := max
	if attempt < 30 {
		if scaled := base << uint(attempt); scaled < max {
			d = scaled
		}
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
