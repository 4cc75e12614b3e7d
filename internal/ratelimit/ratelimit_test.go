package ratelimit

import (
	"testing"
	"time"
)

func newTestLimiter(rpm, burst int) *Limiter {
	return New(Config{
		RequestsPerMinute: rpm,
		BurstSize:         burst,
		CleanupInterval:   time.Minute,
	})
}

func TestAllow_BurstThenDeny(t *testing.T) {
	l := newTestLimiter(60, 5)
	defer l.Stop()

	for i := 0; i < 5; i++ {
		if !l.Allow("10.0.0.1") {
			t.Errorf("request %d within burst should be allowed", i)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Error("request past the burst should be denied")
	}
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	l := newTestLimiter(60, 3)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		l.Allow("client-a")
	}
	if l.Allow("client-a") {
		t.Error("exhausted key should be denied")
	}
	if !l.Allow("client-b") {
		t.Error("a fresh key should not inherit another key's exhaustion")
	}
}

func TestAllow_TokensRefillOverTime(t *testing.T) {
	// 600/min = one token every 100ms.
	l := newTestLimiter(600, 1)
	defer l.Stop()

	if !l.Allow("k") {
		t.Fatal("first request should be allowed")
	}
	if l.Allow("k") {
		t.Fatal("second immediate request should be denied")
	}

	time.Sleep(110 * time.Millisecond)
	if !l.Allow("k") {
		t.Error("request after refill interval should be allowed")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.RequestsPerMinute != 60 || cfg.BurstSize != 10 || cfg.CleanupInterval != time.Minute {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}
