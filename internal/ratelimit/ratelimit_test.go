package ratelimit

import (
	"testing"
	"time"
)

func TestAllowUnderLimit(t *testing.T) {
	l := New(3, time.Hour)

	for i := 0; i < 3; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
}

func TestDenyOverLimit(t *testing.T) {
	l := New(3, time.Hour)

	for i := 0; i < 3; i++ {
		l.Allow("1.2.3.4")
	}
	if l.Allow("1.2.3.4") {
		t.Fatal("4th request should be denied")
	}
}

func TestDifferentKeysIndependent(t *testing.T) {
	l := New(2, time.Hour)

	l.Allow("user:1")
	l.Allow("user:1")

	if l.Allow("user:1") {
		t.Fatal("user:1 should be denied")
	}
	if !l.Allow("user:2") {
		t.Fatal("user:2 should be allowed")
	}
}

func TestExpiredEntriesPruned(t *testing.T) {
	l := New(2, time.Minute)
	now := time.Now()
	l.now = func() time.Time { return now }

	l.Allow("1.2.3.4")
	l.Allow("1.2.3.4")

	if l.Allow("1.2.3.4") {
		t.Fatal("should be denied before window expires")
	}

	now = now.Add(61 * time.Second)

	if !l.Allow("1.2.3.4") {
		t.Fatal("should be allowed after window expires")
	}
}

func TestDisabledLimiter(t *testing.T) {
	var nilLimiter *Limiter
	if !nilLimiter.Allow("x") {
		t.Fatal("nil limiter should allow everything")
	}
	nilLimiter.Sweep()
	if nilLimiter.Len() != 0 {
		t.Fatal("nil limiter should track no keys")
	}

	l := New(0, time.Minute)
	for i := 0; i < 100; i++ {
		if !l.Allow("x") {
			t.Fatal("zero max should allow everything")
		}
	}
}

func TestSweep(t *testing.T) {
	l := New(5, time.Minute)
	now := time.Now()
	l.now = func() time.Time { return now }

	l.Allow("old")
	now = now.Add(30 * time.Second)
	l.Allow("recent")
	now = now.Add(45 * time.Second)

	l.Sweep()
	if l.Len() != 1 {
		t.Fatalf("expected 1 tracked key after sweep, got %d", l.Len())
	}
}
