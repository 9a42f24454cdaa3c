// Package memory is an in-process implementation of the repository
// interfaces. It mirrors the constraints enforced by the postgres schema
// and backs service and handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/repository"
)

var (
	_ repository.UserRepository         = (*Store)(nil)
	_ repository.JobRepository          = (*Store)(nil)
	_ repository.ApplicationRepository  = (*Store)(nil)
	_ repository.MilestoneRepository    = (*Store)(nil)
	_ repository.NotificationRepository = (*Store)(nil)
	_ repository.ChatRepository         = (*Store)(nil)
)

// Store keeps every table in maps guarded by a single mutex.
type Store struct {
	mu            sync.Mutex
	users         map[string]domain.User
	jobs          map[string]domain.Job
	applications  map[string]domain.Application
	milestones    map[string]domain.Milestone
	notifications map[string]domain.Notification
	conversations map[string]domain.Conversation
	messages      map[string][]domain.Message
	now           func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:         map[string]domain.User{},
		jobs:          map[string]domain.Job{},
		applications:  map[string]domain.Application{},
		milestones:    map[string]domain.Milestone{},
		notifications: map[string]domain.Notification{},
		conversations: map[string]domain.Conversation{},
		messages:      map[string][]domain.Message{},
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the timestamp source used for updated_at columns.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// CreateUser inserts a user; emails are unique.
func (s *Store) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return repository.ErrConflict
		}
	}
	if _, exists := s.users[user.ID]; exists {
		return repository.ErrConflict
	}
	s.users[user.ID] = *user
	return nil
}

// GetUserByEmail fetches a user by email.
func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

// GetUserByID fetches a user by id.
func (s *Store) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

// UpdateUserProfile writes the editable profile columns.
func (s *Store) UpdateUserProfile(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[user.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.DisplayName = user.DisplayName
	stored.Headline = user.Headline
	stored.Bio = user.Bio
	stored.Skills = append([]string(nil), user.Skills...)
	stored.HourlyRateCents = user.HourlyRateCents
	stored.Country = user.Country
	stored.UpdatedAt = s.now()
	user.UpdatedAt = stored.UpdatedAt
	s.users[user.ID] = stored
	return nil
}

// SetPayoutAccount stores the sealed payout destination.
func (s *Store) SetPayoutAccount(_ context.Context, userID string, sealed []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.PayoutAccount = append([]byte(nil), sealed...)
	stored.UpdatedAt = s.now()
	s.users[userID] = stored
	return nil
}

// ListFreelancers returns freelancers, newest first.
func (s *Store) ListFreelancers(_ context.Context, skill string, limit, offset int) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0)
	for _, u := range s.users {
		if u.Role != domain.RoleFreelancer {
			continue
		}
		if skill != "" && !containsString(u.Skills, skill) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

// CreateJob inserts a job; the client must exist.
func (s *Store) CreateJob(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[job.ClientID]; !ok {
		return repository.ErrNotFound
	}
	if _, exists := s.jobs[job.ID]; exists {
		return repository.ErrConflict
	}
	s.jobs[job.ID] = *job
	return nil
}

// GetJobByID fetches a job.
func (s *Store) GetJobByID(_ context.Context, id string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &j, nil
}

// ListJobs filters jobs, newest first.
func (s *Store) ListJobs(_ context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]domain.Job, 0)
	for _, j := range s.jobs {
		switch {
		case filter.Status != "" && j.Status != filter.Status:
			continue
		case filter.Skill != "" && !containsString(j.Skills, strings.ToLower(filter.Skill)):
			continue
		case query != "" && !strings.Contains(strings.ToLower(j.Title), query) && !strings.Contains(strings.ToLower(j.Description), query):
			continue
		case filter.ClientID != "" && j.ClientID != filter.ClientID:
			continue
		case filter.FreelancerID != "" && (j.FreelancerID == nil || *j.FreelancerID != filter.FreelancerID):
			continue
		case filter.MinBudget > 0 && j.BudgetCents < filter.MinBudget:
			continue
		case filter.MaxBudget > 0 && j.BudgetCents > filter.MaxBudget:
			continue
		}
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return page(out, filter.Limit, filter.Offset), nil
}

// UpdateJob writes editable fields while the job is open.
func (s *Store) UpdateJob(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.jobs[job.ID]
	if !ok || stored.Status != domain.JobOpen {
		return repository.ErrStale
	}
	stored.Title = job.Title
	stored.Description = job.Description
	stored.Category = job.Category
	stored.Skills = append([]string(nil), job.Skills...)
	stored.BudgetCents = job.BudgetCents
	stored.BudgetType = job.BudgetType
	stored.Deadline = job.Deadline
	stored.UpdatedAt = s.now()
	job.UpdatedAt = stored.UpdatedAt
	s.jobs[job.ID] = stored
	return nil
}

// TransitionJob changes status when the current status equals from.
func (s *Store) TransitionJob(_ context.Context, id string, from, to domain.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.jobs[id]
	if !ok || stored.Status != from {
		return repository.ErrStale
	}
	stored.Status = to
	stored.UpdatedAt = s.now()
	s.jobs[id] = stored
	return nil
}
