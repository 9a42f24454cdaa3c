package config

import "time"

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment         string
	Addr                string
	LogLevel            string
	DatabaseURL         string
	MigrationsDir       string
	JWTSecret           string
	PayoutEncryptionKey string
	AccessTokenTTL      time.Duration
	RefreshTokenTTL     time.Duration
	RateLimitRedisAddr  string
	RateLimitRedisPass  string
	RateLimitRedisDB    int
	RealtimeRedisAddr   string
	RealtimeRedisPass   string
	RealtimeRedisDB     int
	RealtimeChannel     string
	SSEHeartbeat        time.Duration
	DefaultCurrency     string
	PlatformFeeBPS      int
	InvoiceIssuer       string
	MaxPageSize         int
	TrustedProxies      []string
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:         GetString("APP_ENV", "development"),
		Addr:                GetString("API_ADDR", ":4000"),
		LogLevel:            GetString("LOG_LEVEL", "info"),
		DatabaseURL:         GetString("DATABASE_URL", "postgres://gigboard:gigboard@db:5432/gigboard?sslmode=disable"),
		MigrationsDir:       GetString("DB_MIGRATIONS_DIR", "db/migrations"),
		JWTSecret:           GetString("JWT_SECRET", "supersecuresecret"),
		PayoutEncryptionKey: GetString("PAYOUT_ENCRYPTION_KEY", "supersecuresecret"),
		AccessTokenTTL:      GetDuration("ACCESS_TOKEN_TTL_MIN", 15, time.Minute),
		RefreshTokenTTL:     GetDuration("REFRESH_TOKEN_TTL_HOURS", 24, time.Hour),
		RateLimitRedisAddr:  GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass:  GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:    GetInt("RATE_LIMIT_REDIS_DB", 0),
		RealtimeRedisAddr:   GetString("REALTIME_REDIS_ADDR", ""),
		RealtimeRedisPass:   GetString("REALTIME_REDIS_PASSWORD", ""),
		RealtimeRedisDB:     GetInt("REALTIME_REDIS_DB", 0),
		RealtimeChannel:     GetString("REALTIME_CHANNEL", "gigboard:realtime"),
		SSEHeartbeat:        GetDuration("SSE_HEARTBEAT_SECONDS", 15, time.Second),
		DefaultCurrency:     GetString("DEFAULT_CURRENCY", "USD"),
		PlatformFeeBPS:      GetInt("PLATFORM_FEE_BPS", 1000),
		InvoiceIssuer:       GetString("INVOICE_ISSUER", "gigboard"),
		MaxPageSize:         GetInt("MAX_PAGE_SIZE", 100),
		TrustedProxies:      GetList("TRUSTED_PROXIES", nil),
	}
}

// PageLimit clamps a requested page size to the configured bounds.
func (c APIConfig) PageLimit(requested, fallback int) int {
	max := c.MaxPageSize
	if max <= 0 {
		max = 100
	}
	if requested <= 0 {
		requested = fallback
	}
	if requested > max {
		return max
	}
	return requested
}
