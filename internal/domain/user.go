package domain

import "time"

// Roles a platform account can hold.
const (
	RoleClient     = "client"
	RoleFreelancer = "freelancer"
)

// User represents a platform account.
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	PasswordHash    []byte    `json:"-"`
	Role            string    `json:"role"`
	DisplayName     string    `json:"display_name"`
	Headline        string    `json:"headline"`
	Bio             string    `json:"bio"`
	Skills          []string  `json:"skills"`
	HourlyRateCents int64     `json:"hourly_rate_cents"`
	Country         string    `json:"country"`
	PayoutAccount   []byte    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ValidRole reports whether role is one a user may sign up with.
func ValidRole(role string) bool {
	return role == RoleClient || role == RoleFreelancer
}

// PublicProfile is the subset of a user visible to other accounts.
type PublicProfile struct {
	ID              string    `json:"id"`
	Role            string    `json:"role"`
	DisplayName     string    `json:"display_name"`
	Headline        string    `json:"headline"`
	Bio             string    `json:"bio"`
	Skills          []string  `json:"skills"`
	HourlyRateCents int64     `json:"hourly_rate_cents"`
	Country         string    `json:"country"`
	CreatedAt       time.Time `json:"created_at"`
}

// Public strips private fields from the user.
func (u User) Public() PublicProfile {
	return PublicProfile{
		ID:              u.ID,
		Role:            u.Role,
		DisplayName:     u.DisplayName,
		Headline:        u.Headline,
		Bio:             u.Bio,
		Skills:          u.Skills,
		HourlyRateCents: u.HourlyRateCents,
		Country:         u.Country,
		CreatedAt:       u.CreatedAt,
	}
}
