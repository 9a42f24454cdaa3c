package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splax/gigboard/internal/app/migrate"
	httpx "github.com/splax/gigboard/internal/http"
	"github.com/splax/gigboard/internal/realtime"
	"github.com/splax/gigboard/internal/repository/postgres"
	"github.com/splax/gigboard/internal/service/application"
	"github.com/splax/gigboard/internal/service/auth"
	"github.com/splax/gigboard/internal/service/chat"
	"github.com/splax/gigboard/internal/service/job"
	"github.com/splax/gigboard/internal/service/milestone"
	"github.com/splax/gigboard/internal/service/notification"
	"github.com/splax/gigboard/internal/service/report"
	"github.com/splax/gigboard/internal/service/stats"
	"github.com/splax/gigboard/internal/service/user"
	"github.com/splax/gigboard/internal/ws"
	"github.com/splax/gigboard/pkg/config"
	"github.com/splax/gigboard/pkg/crypto"
	"github.com/splax/gigboard/pkg/logger"
)

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	sealer, err := crypto.NewSealer(cfg.PayoutEncryptionKey)
	if err != nil {
		log.Error("payout encryption key invalid", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	hub := ws.NewHub()
	defer hub.Close()

	var relay realtime.Relay
	if addr := strings.TrimSpace(cfg.RealtimeRedisAddr); addr != "" {
		redisRelay, err := realtime.NewRedisRelay(addr, cfg.RealtimeRedisPass, cfg.RealtimeRedisDB, cfg.RealtimeChannel, log.With("component", "relay"))
		if err != nil {
			log.Warn("redis realtime relay unavailable, delivering locally", "error", err)
		} else {
			defer redisRelay.Close()
			relay = redisRelay
		}
	}
	broker := realtime.NewBroker(hub, relay, log.With("component", "realtime"))
	go func() {
		if err := broker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("realtime relay stopped", "error", err)
		}
	}()

	notificationSvc := notification.New(repo, broker, log.With("component", "notifications"), cfg)
	services := httpx.Services{
		Auth:          auth.New(repo, log.With("component", "auth"), cfg),
		Users:         user.New(repo, sealer, log.With("component", "users"), cfg),
		Jobs:          job.New(repo, repo, notificationSvc, log.With("component", "jobs"), cfg),
		Applications:  application.New(repo, repo, notificationSvc, log.With("component", "applications")),
		Milestones:    milestone.New(repo, repo, notificationSvc, log.With("component", "milestones")),
		Notifications: notificationSvc,
		Chat:          chat.New(repo, broker, notificationSvc, log.With("component", "chat"), cfg),
		Stats:         stats.New(repo, repo, repo, log.With("component", "stats")),
		Reports:       report.New(repo, repo, repo, log.With("component", "reports"), cfg),
	}

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log.With("component", "ratelimit"))
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter.Close()
			limiter = redisLimiter
		}
	}

	trusted, err := httpx.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Error("invalid TRUSTED_PROXIES", "error", err)
		os.Exit(1)
	}
	router := httpx.NewRouter(log.With("component", "http"), services, httpx.Options{
		Limiter:        limiter,
		Broker:         broker,
		DBHealth:       pool.Ping,
		SSEHeartbeat:   cfg.SSEHeartbeat,
		TrustedProxies: trusted,
	})
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "env", cfg.Environment, "realtime_relay", relay != nil)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Streams never go idle, so they are drained before the server waits on them.
		broker.Shutdown(shutdownCtx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
