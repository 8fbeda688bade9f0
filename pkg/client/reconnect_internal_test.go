package client

import (
	"testing"
	"time"
)

// TestBackoffTable verifies the delay doubles per attempt, never
// decreases, and clamps at the cap even for absurd attempt counts.
func TestBackoffTable(t *testing.T) {
	base := 100 * time.Millisecond
	cap := 2 * time.Second

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1600 * time.Millisecond,
		2 * time.Second,
		2 * time.Second,
	}
	for attempt, w := range want {
		if got := backoff(base, cap, attempt); got != w {
			t.Errorf("backoff(attempt=%d) = %v, want %v", attempt, got, w)
		}
	}

	prev := time.Duration(0)
	for attempt := 0; attempt < 100; attempt++ {
		got := backoff(base, cap, attempt)
		if got < prev {
			t.Fatalf("backoff decreased at attempt %d: %v < %v", attempt, got, prev)
		}
		if got > cap {
			t.Fatalf("backoff exceeded cap at attempt %d: %v", attempt, got)
		}
		prev = got
	}
}
