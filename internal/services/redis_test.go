package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeCounter struct {
	counts map[string]int64
	keys   []string
	err    error
}

func (f *fakeCounter) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.counts[key]++
	f.keys = append(f.keys, key)
	return f.counts[key], nil
}

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	counter := &fakeCounter{}
	limiter := NewRateLimiter(counter, 2)
	fixed := time.Date(2024, 3, 1, 10, 15, 30, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }

	for i, want := range []bool{true, true, false} {
		ok, _, err := limiter.Allow(context.Background(), "provider:1")
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if ok != want {
			t.Fatalf("request %d: got %v want %v", i+1, ok, want)
		}
	}
}

func TestRateLimiterWindowRollsOver(t *testing.T) {
	counter := &fakeCounter{}
	limiter := NewRateLimiter(counter, 1)
	now := time.Date(2024, 3, 1, 10, 15, 59, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	if ok, _, _ := limiter.Allow(context.Background(), "k"); !ok {
		t.Fatalf("first request should pass")
	}
	if ok, _, _ := limiter.Allow(context.Background(), "k"); ok {
		t.Fatalf("second request in same minute should be limited")
	}

	now = now.Add(2 * time.Second)
	ok, remaining, _ := limiter.Allow(context.Background(), "k")
	if !ok {
		t.Fatalf("request in next minute should pass")
	}
	if remaining != 0 {
		t.Fatalf("remaining = %d, want 0", remaining)
	}
	if counter.keys[0] == counter.keys[2] {
		t.Fatalf("expected different window keys, got %q", counter.keys[0])
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	counter := &fakeCounter{err: errors.New("should not be called")}
	limiter := NewRateLimiter(counter, 0)

	ok, _, err := limiter.Allow(context.Background(), "k")
	if err != nil || !ok {
		t.Fatalf("disabled limiter: ok=%v err=%v", ok, err)
	}
}

func TestRateLimiterPropagatesCounterError(t *testing.T) {
	limiter := NewRateLimiter(&fakeCounter{err: errors.New("redis down")}, 10)

	if _, _, err := limiter.Allow(context.Background(), "k"); err == nil {
		t.Fatalf("expected counter error")
	}
}
