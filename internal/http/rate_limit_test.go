package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWindowLimiterWindow(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rl := newWindowLimiter(func() time.Time { return now }, time.Hour)
	defer rl.Close()

	for i := 1; i <= 3; i++ {
		decision := rl.Allow("login|ip:10.0.0.1", 3, time.Minute)
		if !decision.allowed || decision.count != i {
			t.Fatalf("request %d: unexpected decision %+v", i, decision)
		}
	}
	if decision := rl.Allow("login|ip:10.0.0.1", 3, time.Minute); decision.allowed || decision.remaining(3) != 0 {
		t.Fatalf("expected fourth request to be limited, got %+v", decision)
	}
	if decision := rl.Allow("login|ip:10.0.0.2", 3, time.Minute); !decision.allowed {
		t.Fatal("expected other key to keep its own budget")
	}
	if decision := rl.Allow("anything", 0, time.Minute); !decision.allowed {
		t.Fatal("expected non-positive limit to disable limiting")
	}

	now = now.Add(time.Minute)
	if decision := rl.Allow("login|ip:10.0.0.1", 3, time.Minute); !decision.allowed || decision.count != 1 {
		t.Fatalf("expected a fresh window, got %+v", decision)
	}
}

func TestWindowLimiterSweepDropsClosedWindows(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rl := newWindowLimiter(func() time.Time { return now }, time.Hour)
	defer rl.Close()

	rl.Allow("reports|user:u1", 1, time.Millisecond)
	rl.Allow("reports|user:u2", 1, time.Hour)
	now = now.Add(time.Second)
	if dropped := rl.sweep(); dropped != 1 {
		t.Fatalf("expected one closed window to be swept, got %d", dropped)
	}
	rl.mu.Lock()
	remaining := len(rl.windows)
	rl.mu.Unlock()
	if remaining != 1 {
		t.Fatalf("expected the open window to survive, %d left", remaining)
	}
}

func TestRateLimitKeyIgnoresForwardedWithoutTrustedProxy(t *testing.T) {
	r := &Router{}
	req := httptest.NewRequest("GET", "/jobs", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	if got := r.rateLimitKeyIP(req); got != "ip:192.0.2.10" {
		t.Fatalf("unexpected ip key %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := r.rateLimitKeyIP(req); got != "ip:192.0.2.10" {
		t.Fatalf("forwarded header must not change the key, got %q", got)
	}
	if got := clientIP(req); got != "203.0.113.7" {
		t.Fatalf("audit ip should still report the forwarded client, got %q", got)
	}
}

func TestRateLimitKeyBehindTrustedProxy(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.0.2.10"})
	if err != nil {
		t.Fatalf("parse proxies: %v", err)
	}
	r := &Router{trustedProxies: trusted}

	req := httptest.NewRequest("GET", "/jobs", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	req.Header.Set("X-Forwarded-For", "1.1.1.1, 203.0.113.7, 10.0.0.3")
	if got := r.rateLimitKeyIP(req); got != "ip:203.0.113.7" {
		t.Fatalf("expected right-most untrusted hop, got %q", got)
	}

	req.RemoteAddr = "198.51.100.4:443"
	if got := r.rateLimitKeyIP(req); got != "ip:198.51.100.4" {
		t.Fatalf("untrusted peer must be charged directly, got %q", got)
	}

	req.RemoteAddr = "10.1.2.3:80"
	req.Header.Set("X-Forwarded-For", "10.0.0.9")
	if got := r.rateLimitKeyIP(req); got != "ip:10.0.0.9" {
		t.Fatalf("expected left-most hop when every hop is trusted, got %q", got)
	}
}

func TestParseTrustedProxiesRejectsGarbage(t *testing.T) {
	if _, err := ParseTrustedProxies([]string{"not-an-ip"}); err == nil {
		t.Fatal("expected error for invalid address")
	}
	if _, err := ParseTrustedProxies([]string{"10.0.0.0/99"}); err == nil {
		t.Fatal("expected error for invalid prefix")
	}
	prefixes, err := ParseTrustedProxies([]string{" ", "2001:db8::1"})
	if err != nil || len(prefixes) != 1 || prefixes[0].Bits() != 128 {
		t.Fatalf("unexpected prefixes %v (%v)", prefixes, err)
	}
}

func TestWriteRateHeaders(t *testing.T) {
	h := http.Header{}
	end := time.Unix(1700000000, 0)
	writeRateHeaders(h, 5, rateDecision{allowed: true, count: 2, windowEnd: end})
	if h.Get("X-RateLimit-Limit") != "5" || h.Get("X-RateLimit-Remaining") != "3" || h.Get("X-RateLimit-Reset") != "1700000000" {
		t.Fatalf("unexpected headers %v", h)
	}
	writeRateHeaders(h, 5, rateDecision{count: 9})
	if h.Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("remaining must not go negative, got %q", h.Get("X-RateLimit-Remaining"))
	}
}

func TestRateMetricKey(t *testing.T) {
	if got := rateMetricKey("user:abc"); got != "user" {
		t.Fatalf("unexpected metric key %q", got)
	}
	if got := rateMetricKey(""); got != "unknown" {
		t.Fatalf("unexpected metric key for empty input %q", got)
	}
}
