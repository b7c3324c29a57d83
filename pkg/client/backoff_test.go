package client

import (
	"testing"
	"time"
)

func TestBackoffWithinJitterBounds(t *testing.T) {
	base := 100 * time.Millisecond
	max := 2 * time.Second
	for attempt := 0; attempt < 10; attempt++ {
		ceiling := base << uint(attempt)
		if ceiling > max {
			ceiling = max
		}
		for i := 0; i < 100; i++ {
			d := backoff(attempt, base, max)
			if d < ceiling/2 || d > ceiling {
				t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt, d, ceiling/2, ceiling)
			}
		}
	}
}

func TestBackoffCeilingsNeverShrink(t *testing.T) {
	base := 50 * time.Millisecond
	max := time.Second
	prev := time.Duration(0)
	for attempt := 0; attempt < 12; attempt++ {
		ceiling := max
		if attempt < 30 {
			if scaled := base << uint(attempt); scaled < max {
				ceiling = scaled
			}
		}
		if ceiling < prev {
			t.Fatalf("ceiling shrank at attempt %d: %v < %v", attempt, ceiling, prev)
		}
		prev = ceiling
	}
}

func TestBackoffRespectsCap(t *testing.T) {
	max := 300 * time.Millisecond
	for i := 0; i < 100; i++ {
		if d := backoff(40, 100*time.Millisecond, max); d > max {
			t.Fatalf("delay %v above cap %v", d, max)
		}
	}
}

func TestBackoffDefaults(t *testing.T) {
	d := backoff(0, 0, 0)
	if d < 250*time.Millisecond || d > 500*time.Millisecond {
		t.Fatalf("default attempt-0 delay = %v", d)
	}
}
