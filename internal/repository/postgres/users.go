package postgres

import (
	"context"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/repository"
)

const userColumns = `id, email, password_hash, role, display_name, headline, bio, skills,
	hourly_rate_cents, country, payout_account, created_at, updated_at`

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.DisplayName,
		&u.Headline,
		&u.Bio,
		&u.Skills,
		&u.HourlyRateCents,
		&u.Country,
		&u.PayoutAccount,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, email, password_hash, role, display_name, skills, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Email, user.PasswordHash, user.Role, user.DisplayName, nonNilStrings(user.Skills), user.CreatedAt)
	return mapError(err)
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// UpdateUserProfile writes the editable profile fields.
func (r *Repository) UpdateUserProfile(ctx context.Context, user *domain.User) error {
	const query = `UPDATE users
		SET display_name = $2,
			headline = $3,
			bio = $4,
			skills = $5,
			hourly_rate_cents = $6,
			country = $7,
			updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.DisplayName,
		user.Headline,
		user.Bio,
		nonNilStrings(user.Skills),
		user.HourlyRateCents,
		user.Country,
	).Scan(&user.UpdatedAt)
	return mapError(err)
}

// SetPayoutAccount stores the sealed payout account.
func (r *Repository) SetPayoutAccount(ctx context.Context, userID string, sealed []byte) error {
	const query = `UPDATE users SET payout_account = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, userID, bytesToNil(sealed))
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListFreelancers returns freelancer accounts, optionally filtered by skill.
func (r *Repository) ListFreelancers(ctx context.Context, skill string, limit, offset int) ([]domain.User, error) {
	limit, offset = clampPage(limit, offset)
	query := `SELECT ` + userColumns + ` FROM users
		WHERE role = 'freelancer' AND ($1 = '' OR $1 = ANY(skills))
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, skill, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
