package user

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/repository"
	"github.com/splax/gigboard/pkg/config"
	"github.com/splax/gigboard/pkg/crypto"
)

type stubUserRepository struct {
	users   map[string]*domain.User
	updated int
	skill   string
	limit   int
}

func (s *stubUserRepository) CreateUser(context.Context, *domain.User) error { return nil }
func (s *stubUserRepository) GetUserByEmail(context.Context, string) (*domain.User, error) {
	return nil, repository.ErrNotFound
}

func (s *stubUserRepository) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := s.users[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubUserRepository) UpdateUserProfile(_ context.Context, u *domain.User) error {
	s.updated++
	clone := *u
	s.users[u.ID] = &clone
	return nil
}

func (s *stubUserRepository) SetPayoutAccount(_ context.Context, id string, sealed []byte) error {
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PayoutAccount = sealed
	return nil
}

func (s *stubUserRepository) ListFreelancers(_ context.Context, skill string, limit, offset int) ([]domain.User, error) {
	s.skill, s.limit = skill, limit
	var out []domain.User
	for _, u := range s.users {
		if u.Role == domain.RoleFreelancer {
			out = append(out, *u)
		}
	}
	return out, nil
}

func newService(t *testing.T, repo *stubUserRepository) Service {
	t.Helper()
	sealer, err := crypto.NewSealer("payout-key")
	require.NoError(t, err)
	return New(repo, sealer, slog.New(slog.NewTextHandler(io.Discard, nil)), config.APIConfig{MaxPageSize: 25})
}

func ptr[T any](v T) *T { return &v }

func TestUpdateAppliesPatch(t *testing.T) {
	repo := &stubUserRepository{users: map[string]*domain.User{
		"u1": {ID: "u1", Role: domain.RoleFreelancer, DisplayName: "Old", Country: "DE"},
	}}
	svc := newService(t, repo)

	updated, err := svc.Update(context.Background(), "u1", ProfilePatch{
		DisplayName:     ptr("  Grace "),
		Skills:          &[]string{"Go", "go ", "PostgreSQL", ""},
		HourlyRateCents: ptr(int64(9500)),
		Country:         ptr("us"),
	})
	require.NoError(t, err)
	require.Equal(t, "Grace", updated.DisplayName)
	require.Equal(t, []string{"go", "postgresql"}, updated.Skills)
	require.EqualValues(t, 9500, updated.HourlyRateCents)
	require.Equal(t, "US", updated.Country)
	require.Equal(t, 1, repo.updated)
}

func TestUpdateRejectsInvalidFields(t *testing.T) {
	repo := &stubUserRepository{users: map[string]*domain.User{"u1": {ID: "u1"}}}
	svc := newService(t, repo)

	_, err := svc.Update(context.Background(), "u1", ProfilePatch{HourlyRateCents: ptr(int64(-1))})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "hourly_rate_cents", verr.Field)

	_, err = svc.Update(context.Background(), "u1", ProfilePatch{DisplayName: ptr("   ")})
	require.ErrorAs(t, err, &verr)
	require.Zero(t, repo.updated)

	_, err = svc.Update(context.Background(), "missing", ProfilePatch{})
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestNormalizeSkillsLimit(t *testing.T) {
	skills := make([]string, 0, 31)
	for i := 0; i < 31; i++ {
		skills = append(skills, "skill-"+strconv.Itoa(i))
	}
	_, err := NormalizeSkills(skills)
	require.Error(t, err)

	out, err := NormalizeSkills(skills[:30])
	require.NoError(t, err)
	require.Len(t, out, 30)
}

func TestPayoutAccountIsEncryptedAndMasked(t *testing.T) {
	repo := &stubUserRepository{users: map[string]*domain.User{"u1": {ID: "u1"}}}
	svc := newService(t, repo)

	_, err := svc.PayoutAccount(context.Background(), "u1")
	require.True(t, errors.Is(err, ErrNoPayoutAccount))

	masked, err := svc.SetPayoutAccount(context.Background(), "u1", " DE89370400440532013000 ")
	require.NoError(t, err)
	require.NotContains(t, string(repo.users["u1"].PayoutAccount), "DE8937")
	require.Equal(t, crypto.Mask("DE89370400440532013000", 4), masked)

	again, err := svc.PayoutAccount(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, masked, again)
	require.True(t, len(again) > 4 && again[len(again)-4:] == "3000")
}

func TestListFreelancersReturnsPublicProfiles(t *testing.T) {
	repo := &stubUserRepository{users: map[string]*domain.User{
		"f1": {ID: "f1", Role: domain.RoleFreelancer, Email: "f1@example.com", PayoutAccount: []byte("secret")},
		"c1": {ID: "c1", Role: domain.RoleClient},
	}}
	svc := newService(t, repo)

	profiles, err := svc.ListFreelancers(context.Background(), " Go ", 500, -1)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	require.Equal(t, "f1", profiles[0].ID)
	require.Equal(t, "go", repo.skill)
	require.Equal(t, 25, repo.limit)
}
