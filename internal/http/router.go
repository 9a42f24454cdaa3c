package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splax/gigboard/internal/realtime"
	"github.com/splax/gigboard/internal/service/application"
	"github.com/splax/gigboard/internal/service/auth"
	"github.com/splax/gigboard/internal/service/chat"
	"github.com/splax/gigboard/internal/service/job"
	"github.com/splax/gigboard/internal/service/milestone"
	"github.com/splax/gigboard/internal/service/notification"
	"github.com/splax/gigboard/internal/service/report"
	"github.com/splax/gigboard/internal/service/stats"
	"github.com/splax/gigboard/internal/service/user"
)

// Services bundles the domain services exposed over HTTP.
type Services struct {
	Auth          auth.Service
	Users         user.Service
	Jobs          job.Service
	Applications  application.Service
	Milestones    milestone.Service
	Notifications notification.Service
	Chat          chat.Service
	Stats         stats.Service
	Reports       report.Service
}

// Options carries the infrastructure dependencies of the router.
type Options struct {
	Limiter      RateLimiter
	Broker       *realtime.Broker
	DBHealth     func(context.Context) error
	SSEHeartbeat time.Duration
	MaxBodyBytes int64

	// TrustedProxies lists the peers whose X-Forwarded-For is believed.
	TrustedProxies []netip.Prefix
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux          *http.ServeMux
	logger       *slog.Logger
	svc          Services
	broker       *realtime.Broker
	upgrader     websocket.Upgrader
	limiter      RateLimiter
	dbHealth     func(context.Context) error
	heartbeat    time.Duration
	maxBodyBytes int64

	// trustedProxies gates X-Forwarded-For for rate limiting.
	trustedProxies []netip.Prefix

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateWindowRealtime = 30 * time.Second
	rateLimitSignup    = 5
	rateLimitLogin     = 12
	rateLimitRefresh   = 30
	rateLimitUserWrite = 60
	rateLimitUserRead  = 120
	rateLimitRealtime  = 30
	rateLimitReports   = 20
	healthCheckTimeout = 2 * time.Second
	defaultMaxBody     = 1 << 20
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, svc Services, opts Options) *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		logger: logger,
		svc:    svc,
		broker: opts.Broker,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:      opts.Limiter,
		dbHealth:     opts.DBHealth,
		heartbeat:    opts.SSEHeartbeat,
		maxBodyBytes: opts.MaxBodyBytes,

		trustedProxies: opts.TrustedProxies,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	if r.heartbeat <= 0 {
		r.heartbeat = 25 * time.Second
	}
	if r.maxBodyBytes <= 0 {
		r.maxBodyBytes = defaultMaxBody
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.handle("GET /healthz", r.handleHealthz)
	r.mux.Handle("GET /metrics", promhttp.Handler())

	r.handle("POST /auth/signup", r.public("signup", rateLimitSignup, r.handleSignup))
	r.handle("POST /auth/login", r.public("login", rateLimitLogin, r.handleLogin))
	r.handle("POST /auth/refresh", r.public("refresh", rateLimitRefresh, r.handleRefresh))

	r.handle("GET /users/me", r.read("users", r.handleGetMe))
	r.handle("PATCH /users/me", r.write("users", r.handleUpdateMe))
	r.handle("GET /users/me/payout", r.read("payout", r.handleGetPayout))
	r.handle("PUT /users/me/payout", r.write("payout", r.handleSetPayout))
	r.handle("GET /users/{id}", r.read("users", r.handleGetUser))
	r.handle("GET /freelancers", r.read("freelancers", r.handleListFreelancers))

	r.handle("GET /jobs", r.read("jobs", r.handleListJobs))
	r.handle("POST /jobs", r.write("jobs", r.handleCreateJob))
	r.handle("GET /jobs/{id}", r.read("jobs", r.handleGetJob))
	r.handle("PATCH /jobs/{id}", r.write("jobs", r.handleUpdateJob))
	r.handle("POST /jobs/{id}/cancel", r.write("jobs", r.handleCancelJob))

	r.handle("POST /jobs/{id}/applications", r.write("applications", r.handleApply))
	r.handle("GET /jobs/{id}/applications", r.read("applications", r.handleListJobApplications))
	r.handle("GET /applications/mine", r.read("applications", r.handleListMyApplications))
	r.handle("POST /applications/{id}/hire", r.write("applications", r.handleHire))
	r.handle("POST /applications/{id}/reject", r.write("applications", r.handleReject))
	r.handle("POST /applications/{id}/withdraw", r.write("applications", r.handleWithdraw))

	r.handle("GET /jobs/{id}/milestones", r.read("milestones", r.handleListMilestones))
	r.handle("POST /jobs/{id}/milestones", r.write("milestones", r.handleCreateMilestone))
	r.handle("POST /milestones/{id}/{action}", r.write("milestones", r.handleMilestoneAction))
	r.handle("GET /milestones/{id}/invoice.pdf", r.authed("reports", rateLimitReports, rateWindowDefault, r.handleInvoice))

	r.handle("GET /notifications", r.read("notifications", r.handleListNotifications))
	r.handle("GET /notifications/unread", r.read("notifications", r.handleUnreadNotifications))
	r.handle("POST /notifications/read-all", r.write("notifications", r.handleReadAllNotifications))
	r.handle("POST /notifications/{id}/read", r.write("notifications", r.handleReadNotification))
	r.handle("DELETE /notifications/{id}", r.write("notifications", r.handleDeleteNotification))

	r.handle("GET /conversations", r.read("conversations", r.handleListConversations))
	r.handle("GET /conversations/{id}/messages", r.read("conversations", r.handleListMessages))
	r.handle("POST /conversations/{id}/messages", r.write("conversations", r.handleSendMessage))
	r.handle("POST /conversations/{id}/read", r.write("conversations", r.handleReadConversation))

	r.handle("GET /stats/freelancer", r.read("stats", r.handleFreelancerStats))
	r.handle("GET /stats/client", r.read("stats", r.handleClientStats))
	r.handle("GET /reports/earnings.pdf", r.authed("reports", rateLimitReports, rateWindowDefault, r.handleEarningsReport))

	r.handle("GET /ws", r.authed("realtime", rateLimitRealtime, rateWindowRealtime, r.handleWebsocket))
	r.handle("GET /events", r.authed("realtime", rateLimitRealtime, rateWindowRealtime, r.handleEvents))
}

func (r *Router) handle(pattern string, next http.HandlerFunc) {
	r.mux.HandleFunc(pattern, r.audit(pattern, next))
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	if r.broker != nil {
		components["realtime"] = map[string]any{"status": "up", "streams": r.broker.Streams()}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)
		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"route", route,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = info.Role
			fields = append(fields, "user_id", info.UserID)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

// clientIP is the caller address as reported by the request, for audit logs
// only. It trusts X-Forwarded-For blindly and must not key any limit.
func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

// decodeJSON reads a bounded JSON body into dst, rejecting unknown fields.
func (r *Router) decodeJSON(w http.ResponseWriter, req *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, req.Body, r.maxBodyBytes)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "request body required")
			return false
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func queryInt(req *http.Request, key string) int {
	value, err := strconv.Atoi(strings.TrimSpace(req.URL.Query().Get(key)))
	if err != nil {
		return 0
	}
	return value
}

func queryInt64(req *http.Request, key string) int64 {
	value, err := strconv.ParseInt(strings.TrimSpace(req.URL.Query().Get(key)), 10, 64)
	if err != nil {
		return 0
	}
	return value
}
