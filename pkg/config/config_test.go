package config

import (
	"testing"
	"time"
)

func TestGetDurationFallsBackOnInvalidValue(t *testing.T) {
	t.Setenv("GIGBOARD_TEST_TTL", "soon")
	if got := GetDuration("GIGBOARD_TEST_TTL", 3, time.Minute); got != 3*time.Minute {
		t.Fatalf("expected fallback of 3m, got %s", got)
	}
	t.Setenv("GIGBOARD_TEST_TTL", "7")
	if got := GetDuration("GIGBOARD_TEST_TTL", 3, time.Minute); got != 7*time.Minute {
		t.Fatalf("expected 7m, got %s", got)
	}
}

func TestPageLimitClamps(t *testing.T) {
	cfg := APIConfig{MaxPageSize: 50}
	cases := []struct {
		requested, fallback, want int
	}{
		{0, 20, 20},
		{-5, 20, 20},
		{10, 20, 10},
		{500, 20, 50},
	}
	for _, tc := range cases {
		if got := cfg.PageLimit(tc.requested, tc.fallback); got != tc.want {
			t.Fatalf("PageLimit(%d, %d) = %d, want %d", tc.requested, tc.fallback, got, tc.want)
		}
	}
	if got := (APIConfig{}).PageLimit(1000, 20); got != 100 {
		t.Fatalf("expected default max of 100, got %d", got)
	}
}

func TestLoadAPIConfigReadsEnvironment(t *testing.T) {
	t.Setenv("API_ADDR", ":9999")
	t.Setenv("PLATFORM_FEE_BPS", "250")
	cfg := LoadAPIConfig()
	if cfg.Addr != ":9999" {
		t.Fatalf("unexpected addr %q", cfg.Addr)
	}
	if cfg.PlatformFeeBPS != 250 {
		t.Fatalf("unexpected fee %d", cfg.PlatformFeeBPS)
	}
	if cfg.DefaultCurrency != "USD" {
		t.Fatalf("unexpected default currency %q", cfg.DefaultCurrency)
	}
}

func TestGetListSplitsAndTrims(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", " 10.0.0.0/8, ,192.0.2.1 ")
	got := LoadAPIConfig().TrustedProxies
	if len(got) != 2 || got[0] != "10.0.0.0/8" || got[1] != "192.0.2.1" {
		t.Fatalf("unexpected proxies %q", got)
	}
	if got := GetList("GIGBOARD_UNSET_LIST", []string{"x"}); len(got) != 1 || got[0] != "x" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
