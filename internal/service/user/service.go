package user

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"log/slog"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/repository"
	"github.com/splax/gigboard/pkg/config"
	"github.com/splax/gigboard/pkg/crypto"
)

const (
	maxSkills       = 30
	maxSkillLength  = 40
	maxHeadline     = 120
	maxBio          = 2000
	maxPayoutLength = 64
)

// ErrNoPayoutAccount is returned when the user has not stored payout details.
var ErrNoPayoutAccount = errors.New("payout account not set")

// ProfilePatch lists the editable profile fields. Nil fields are left untouched.
type ProfilePatch struct {
	DisplayName     *string   `json:"display_name"`
	Headline        *string   `json:"headline"`
	Bio             *string   `json:"bio"`
	Skills          *[]string `json:"skills"`
	HourlyRateCents *int64    `json:"hourly_rate_cents"`
	Country         *string   `json:"country"`
}

// Service manages user profiles.
type Service struct {
	users  repository.UserRepository
	sealer *crypto.Sealer
	logger *slog.Logger
	cfg    config.APIConfig
}

// New returns a user service. sealer protects payout details at rest.
func New(users repository.UserRepository, sealer *crypto.Sealer, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{users: users, sealer: sealer, logger: logger, cfg: cfg}
}

// Get loads a user by id.
func (s Service) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetUserByID(ctx, id)
}

// Update applies patch to the user's profile.
func (s Service) Update(ctx context.Context, id string, patch ProfilePatch) (*domain.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.DisplayName != nil {
		name := strings.TrimSpace(*patch.DisplayName)
		if name == "" || len(name) > 80 {
			return nil, domain.Invalid("display_name", "display name must be 1-80 characters")
		}
		user.DisplayName = name
	}
	if patch.Headline != nil {
		headline := strings.TrimSpace(*patch.Headline)
		if len(headline) > maxHeadline {
			return nil, domain.Invalid("headline", "headline is too long")
		}
		user.Headline = headline
	}
	if patch.Bio != nil {
		bio := strings.TrimSpace(*patch.Bio)
		if len(bio) > maxBio {
			return nil, domain.Invalid("bio", "bio is too long")
		}
		user.Bio = bio
	}
	if patch.Skills != nil {
		skills, err := NormalizeSkills(*patch.Skills)
		if err != nil {
			return nil, err
		}
		user.Skills = skills
	}
	if patch.HourlyRateCents != nil {
		if *patch.HourlyRateCents < 0 {
			return nil, domain.Invalid("hourly_rate_cents", "hourly rate cannot be negative")
		}
		user.HourlyRateCents = *patch.HourlyRateCents
	}
	if patch.Country != nil {
		country := strings.ToUpper(strings.TrimSpace(*patch.Country))
		if country != "" && len(country) != 2 {
			return nil, domain.Invalid("country", "country must be an ISO 3166 alpha-2 code")
		}
		user.Country = country
	}
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.UpdateUserProfile(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("profile updated", "user_id", user.ID)
	return user, nil
}

// SetPayoutAccount encrypts and stores the user's payout destination.
func (s Service) SetPayoutAccount(ctx context.Context, id, account string) (string, error) {
	account = strings.TrimSpace(account)
	if account == "" || len(account) > maxPayoutLength {
		return "", domain.Invalid("account", "payout account must be 1-64 characters")
	}
	sealed, err := s.sealer.Seal(account)
	if err != nil {
		return "", err
	}
	if err := s.users.SetPayoutAccount(ctx, id, sealed); err != nil {
		return "", err
	}
	s.logger.Info("payout account updated", "user_id", id)
	return crypto.Mask(account, 4), nil
}

// PayoutAccount returns the masked payout destination.
func (s Service) PayoutAccount(ctx context.Context, id string) (string, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return "", err
	}
	if len(user.PayoutAccount) == 0 {
		return "", ErrNoPayoutAccount
	}
	plain, err := s.sealer.Open(user.PayoutAccount)
	if err != nil {
		s.logger.Error("failed to decrypt payout account", "user_id", id, "error", err)
		return "", err
	}
	return crypto.Mask(plain, 4), nil
}

// ListFreelancers pages through freelancer profiles, optionally by skill.
func (s Service) ListFreelancers(ctx context.Context, skill string, limit, offset int) ([]domain.PublicProfile, error) {
	if offset < 0 {
		offset = 0
	}
	users, err := s.users.ListFreelancers(ctx, strings.ToLower(strings.TrimSpace(skill)), s.cfg.PageLimit(limit, 20), offset)
	if err != nil {
		return nil, err
	}
	profiles := make([]domain.PublicProfile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.Public())
	}
	return profiles, nil
}

// NormalizeSkills lowercases, trims and dedupes skill tags.
func NormalizeSkills(skills []string) ([]string, error) {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, raw := range skills {
		skill := strings.ToLower(strings.TrimSpace(raw))
		if skill == "" {
			continue
		}
		if len(skill) > maxSkillLength {
			return nil, domain.Invalid("skills", "skill tags must be at most 40 characters")
		}
		if _, dup := seen[skill]; dup {
			continue
		}
		seen[skill] = struct{}{}
		out = append(out, skill)
	}
	if len(out) > maxSkills {
		return nil, domain.Invalid("skills", "at most 30 skills are allowed")
	}
	sort.Strings(out)
	return out, nil
}
