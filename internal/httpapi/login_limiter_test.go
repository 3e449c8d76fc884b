package httpapi

import (
	"testing"
	"time"
)

func TestAttemptLimiterWindow(t *testing.T) {
	l := newAttemptLimiter(2, time.Minute)
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	if !l.Allow(start, "ip:1") || !l.Allow(start.Add(time.Second), "ip:1") {
		t.Fatalf("first two attempts should pass")
	}
	if l.Allow(start.Add(2*time.Second), "ip:1") {
		t.Fatalf("third attempt inside the window should be rejected")
	}
	if !l.Allow(start.Add(2*time.Second), "ip:2") {
		t.Fatalf("other keys are independent")
	}
	if !l.Allow(start.Add(time.Minute+time.Second), "ip:1") {
		t.Fatalf("attempts older than the window should expire")
	}
}

func TestAttemptLimiterAllKeysMustPass(t *testing.T) {
	l := newAttemptLimiter(1, time.Minute)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	if !l.Allow(now, "email:a") {
		t.Fatalf("first attempt should pass")
	}
	if l.Allow(now, "ip:1", "email:a") {
		t.Fatalf("exhausted email key should reject the pair")
	}
	if !l.Allow(now, "ip:1") {
		t.Fatalf("rejected pair must not count against the ip key")
	}
}

func TestAttemptLimiterForget(t *testing.T) {
	l := newAttemptLimiter(1, time.Minute)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	l.Allow(now, "email:a")
	l.Forget("email:a")
	if !l.Allow(now, "email:a") {
		t.Fatalf("forgotten key should start over")
	}
	if len(l.attempts) != 1 {
		t.Fatalf("expected one tracked key, got %d", len(l.attempts))
	}
}
