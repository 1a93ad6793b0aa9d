package tracker

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestIPLimiter_AllowsWithinBurst(t *testing.T) {
	l := newIPLimiter(rate.Limit(1), 3)

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("connection %d denied within burst", i)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Error("connection allowed over burst")
	}
}

func TestIPLimiter_IPsAreIndependent(t *testing.T) {
	l := newIPLimiter(rate.Limit(1), 1)

	if !l.Allow("10.0.0.1") {
		t.Fatal("first IP denied")
	}
	if !l.Allow("10.0.0.2") {
		t.Error("second IP denied after first IP spent its budget")
	}
}

func TestIPLimiter_Prune(t *testing.T) {
	l := newIPLimiter(rate.Limit(1), 1)
	l.Allow("10.0.0.1")
	l.Allow("10.0.0.2")

	// Everything is younger than a zero deadline, so nothing goes.
	l.prune(time.Time{})
	if len(l.buckets) != 2 {
		t.Fatalf("bucket count = %d after no-op prune, want 2", len(l.buckets))
	}

	l.prune(time.Now().Add(time.Minute))
	if len(l.buckets) != 0 {
		t.Errorf("bucket count = %d after prune, want 0", len(l.buckets))
	}
}
