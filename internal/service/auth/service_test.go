package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/repository"
	"github.com/splax/gigboard/pkg/config"
	jwtpkg "github.com/splax/gigboard/pkg/jwt"
)

type userRepoMock struct {
	byEmail map[string]*domain.User
	byID    map[string]*domain.User
}

func newUserRepo() *userRepoMock {
	return &userRepoMock{byEmail: map[string]*domain.User{}, byID: map[string]*domain.User{}}
}

func (m *userRepoMock) CreateUser(_ context.Context, user *domain.User) error {
	if _, exists := m.byEmail[user.Email]; exists {
		return repository.ErrConflict
	}
	m.byEmail[user.Email] = user
	m.byID[user.ID] = user
	return nil
}

func (m *userRepoMock) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	if user, ok := m.byEmail[email]; ok {
		return user, nil
	}
	return nil, repository.ErrNotFound
}

func (m *userRepoMock) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	if user, ok := m.byID[id]; ok {
		return user, nil
	}
	return nil, repository.ErrNotFound
}

func (m *userRepoMock) UpdateUserProfile(context.Context, *domain.User) error { return nil }
func (m *userRepoMock) SetPayoutAccount(context.Context, string, []byte) error {
	return nil
}
func (m *userRepoMock) ListFreelancers(context.Context, string, int, int) ([]domain.User, error) {
	return nil, nil
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.APIConfig {
	return config.APIConfig{JWTSecret: "test-secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour}
}

func TestSignupNormalizesAndIssuesTokens(t *testing.T) {
	repo := newUserRepo()
	svc := New(repo, newLogger(), testConfig())

	user, tokens, err := svc.Signup(context.Background(), SignupInput{
		Email:    "  Ada@Example.COM ",
		Password: "correct-horse",
		Role:     "Freelancer",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.Role != domain.RoleFreelancer {
		t.Fatalf("unexpected role %q", user.Role)
	}
	if user.DisplayName != "ada" {
		t.Fatalf("expected display name derived from email, got %q", user.DisplayName)
	}
	claims, err := jwtpkg.ParseType(tokens.AccessToken, "test-secret", jwtpkg.TypeAccess)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != domain.RoleFreelancer {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if _, err := jwtpkg.ParseType(tokens.RefreshToken, "test-secret", jwtpkg.TypeRefresh); err != nil {
		t.Fatalf("parse refresh token: %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	svc := New(newUserRepo(), newLogger(), testConfig())
	cases := []struct {
		name  string
		input SignupInput
		field string
	}{
		{"email", SignupInput{Email: "nope", Password: "long-enough", Role: "client"}, "email"},
		{"role", SignupInput{Email: "a@b.io", Password: "long-enough", Role: "admin"}, "role"},
		{"password", SignupInput{Email: "a@b.io", Password: "short", Role: "client"}, "password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Signup(context.Background(), tc.input)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, verr.Field)
			}
		})
	}
}

func TestSignupDuplicateEmailConflicts(t *testing.T) {
	svc := New(newUserRepo(), newLogger(), testConfig())
	input := SignupInput{Email: "dup@example.com", Password: "long-enough", Role: "client"}
	if _, _, err := svc.Signup(context.Background(), input); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	input.Email = "DUP@example.com"
	if _, _, err := svc.Signup(context.Background(), input); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestLoginReturnsGenericError(t *testing.T) {
	svc := New(newUserRepo(), newLogger(), testConfig())
	if _, _, err := svc.Signup(context.Background(), SignupInput{Email: "c@example.com", Password: "long-enough", Role: "client"}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "c@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for bad password, got %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "missing@example.com", "long-enough"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
	user, _, err := svc.Login(context.Background(), " C@example.com", "long-enough")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.Email != "c@example.com" {
		t.Fatalf("unexpected user %q", user.Email)
	}
}

func TestRefreshAndAuthorizeEnforceTokenType(t *testing.T) {
	svc := New(newUserRepo(), newLogger(), testConfig())
	user, tokens, err := svc.Signup(context.Background(), SignupInput{Email: "f@example.com", Password: "long-enough", Role: "freelancer"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, _, err := svc.Authorize(context.Background(), tokens.RefreshToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("refresh token must not authorize requests, got %v", err)
	}
	if _, _, err := svc.Refresh(context.Background(), tokens.AccessToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("access token must not refresh, got %v", err)
	}

	refreshed, pair, err := svc.Refresh(context.Background(), tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.ID != user.ID {
		t.Fatalf("unexpected user %s", refreshed.ID)
	}
	authorized, claims, err := svc.Authorize(context.Background(), "  "+pair.AccessToken)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if authorized.ID != user.ID || claims.Type != jwtpkg.TypeAccess {
		t.Fatalf("unexpected authorize result: %s %+v", authorized.ID, claims)
	}
	if _, _, err := svc.Authorize(context.Background(), ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for empty token, got %v", err)
	}
}
