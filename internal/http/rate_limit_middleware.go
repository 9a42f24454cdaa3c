package httpx

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"
)

const rateLimiterSweepInterval = 5 * time.Minute

// RateLimiter counts requests per key within fixed windows.
type RateLimiter interface {
	Allow(key string, limit int, window time.Duration) rateDecision
	Close()
}

type rateDecision struct {
	allowed   bool
	count     int
	windowEnd time.Time
}

func (d rateDecision) remaining(limit int) int {
	if left := limit - d.count; left > 0 {
		return left
	}
	return 0
}

// windowLimiter keeps one fixed window per key in process memory.
type windowLimiter struct {
	mu      sync.Mutex
	windows map[string]rateDecision
	now     func() time.Time
	done    chan struct{}
	stop    sync.Once
}

// NewMemoryRateLimiter returns a process-local limiter for single replica deployments.
func NewMemoryRateLimiter() RateLimiter {
	return newWindowLimiter(time.Now, rateLimiterSweepInterval)
}

func newWindowLimiter(now func() time.Time, sweep time.Duration) *windowLimiter {
	wl := &windowLimiter{
		windows: make(map[string]rateDecision),
		now:     now,
		done:    make(chan struct{}),
	}
	go wl.sweepEvery(sweep)
	return wl
}

func (wl *windowLimiter) Allow(key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	now := wl.now()
	wl.mu.Lock()
	defer wl.mu.Unlock()

	current, ok := wl.windows[key]
	if !ok || !now.Before(current.windowEnd) {
		current = rateDecision{windowEnd: now.Add(window)}
	}
	if current.count >= limit {
		current.allowed = false
		return current
	}
	current.count++
	current.allowed = true
	wl.windows[key] = current
	return current
}

func (wl *windowLimiter) sweepEvery(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			wl.sweep()
		case <-wl.done:
			return
		}
	}
}

// sweep drops windows that have already closed.
func (wl *windowLimiter) sweep() int {
	now := wl.now()
	wl.mu.Lock()
	defer wl.mu.Unlock()
	dropped := 0
	for key, w := range wl.windows {
		if !now.Before(w.windowEnd) {
			delete(wl.windows, key)
			dropped++
		}
	}
	return dropped
}

func (wl *windowLimiter) Close() {
	wl.stop.Do(func() { close(wl.done) })
}

// ParseTrustedProxies turns addresses and CIDR ranges into prefixes. A bare
// address is treated as a single host range.
func ParseTrustedProxies(values []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(values))
	for _, raw := range values {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			prefix, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// rateRule scopes a limit to one route and one caller identity.
type rateRule struct {
	route  string
	limit  int
	window time.Duration
	key    func(*http.Request) string
}

func (rule rateRule) bucket(callerKey string) string {
	return rule.route + "|" + callerKey
}

func (r *Router) public(route string, limit int, next http.HandlerFunc) http.HandlerFunc {
	return r.limit(rateRule{route: route, limit: limit, window: rateWindowDefault, key: r.rateLimitKeyIP}, next)
}

func (r *Router) read(route string, next http.HandlerFunc) http.HandlerFunc {
	return r.authed(route+":read", rateLimitUserRead, rateWindowDefault, next)
}

func (r *Router) write(route string, next http.HandlerFunc) http.HandlerFunc {
	return r.authed(route+":write", rateLimitUserWrite, rateWindowDefault, next)
}

func (r *Router) authed(route string, limit int, window time.Duration, next http.HandlerFunc) http.HandlerFunc {
	return r.requireAuth(r.limit(rateRule{route: route, limit: limit, window: window, key: r.rateLimitKeyUser}, next))
}

func (r *Router) limit(rule rateRule, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if rule.limit <= 0 || r.limiter == nil {
			next(w, req)
			return
		}
		callerKey := rule.key(req)
		if callerKey == "" {
			callerKey = r.rateLimitKeyIP(req)
		}
		decision := r.limiter.Allow(rule.bucket(callerKey), rule.limit, rule.window)
		writeRateHeaders(w.Header(), rule.limit, decision)
		if decision.allowed {
			next(w, req)
			return
		}
		if wait := decision.windowEnd.Sub(time.Now()); wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(wait.Round(time.Second)/time.Second)))
		}
		r.recordRateLimitHit(rule.route, rateMetricKey(callerKey))
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	}
}

func writeRateHeaders(h http.Header, limit int, decision rateDecision) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.remaining(limit)))
	if !decision.windowEnd.IsZero() {
		h.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) rateLimitKeyUser(req *http.Request) string {
	if info, ok := authInfoFromContext(req.Context()); ok && info.UserID != "" {
		return "user:" + info.UserID
	}
	return ""
}

func (r *Router) rateLimitKeyIP(req *http.Request) string {
	if host := r.peerAddr(req); host != "" {
		return "ip:" + host
	}
	return "ip:unknown"
}

// peerAddr returns the address the limiter charges. X-Forwarded-For is only
// read when the socket peer is a trusted proxy, and then the right-most hop
// that is not itself a trusted proxy wins.
func (r *Router) peerAddr(req *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		host = strings.TrimSpace(req.RemoteAddr)
	}
	if !r.trustedProxy(host) {
		return host
	}
	hops := strings.Split(req.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !r.trustedProxy(hop) {
			return hop
		}
		host = hop
	}
	return host
}

func (r *Router) trustedProxy(host string) bool {
	if len(r.trustedProxies) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range r.trustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func rateMetricKey(key string) string {
	if key == "" {
		return "unknown"
	}
	if idx := strings.IndexRune(key, ':'); idx > 0 {
		return key[:idx]
	}
	return key
}
