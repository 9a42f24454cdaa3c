package jwt

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndParseRoundTrip(t *testing.T) {
	token, err := GenerateToken("user-1", "client", TypeAccess, "secret", time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseType(token, "secret", TypeAccess)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "client" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseTypeRejectsRefreshAsAccess(t *testing.T) {
	token, err := GenerateToken("user-1", "freelancer", TypeRefresh, "secret", time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseType(token, "secret", TypeAccess); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("expected ErrWrongTokenType, got %v", err)
	}
}

func TestParseRejectsExpiredAndForeignSecret(t *testing.T) {
	expired, err := GenerateToken("user-1", "client", TypeAccess, "secret", -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := Parse(expired, "secret"); err == nil {
		t.Fatalf("expected expired token to fail")
	}
	valid, err := GenerateToken("user-1", "client", TypeAccess, "secret", time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := Parse(valid, "other"); err == nil {
		t.Fatalf("expected signature mismatch to fail")
	}
}
