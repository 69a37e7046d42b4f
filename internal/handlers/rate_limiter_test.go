package handlers

import (
	"testing"
	"time"
)

func TestWindowLimiterResetsAfterWindow(t *testing.T) {
	now := time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)
	limiter := newWindowLimiter(2, time.Minute, func() time.Time { return now })

	for i := 0; i < 2; i++ {
		if ok, _ := limiter.Allow("user_1"); !ok {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}
	ok, retry := limiter.Allow("user_1")
	if ok {
		t.Fatalf("third call should be refused")
	}
	if retry != time.Minute {
		t.Fatalf("expected retry after 1m, got %s", retry)
	}
	if ok, _ := limiter.Allow("user_2"); !ok {
		t.Fatalf("other users keep their own budget")
	}

	now = now.Add(time.Minute)
	if ok, _ := limiter.Allow("user_1"); !ok {
		t.Fatalf("expected budget to reset after the window")
	}
}

func TestWindowLimiterDisabled(t *testing.T) {
	if newWindowLimiter(0, time.Minute, nil) != nil {
		t.Fatalf("expected nil limiter for zero limit")
	}
	var limiter *windowLimiter
	if ok, _ := limiter.Allow("anyone"); !ok {
		t.Fatalf("nil limiter must allow")
	}
}
