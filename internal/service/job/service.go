package job

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"log/slog"

	"github.com/google/uuid"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/repository"
	"github.com/splax/gigboard/internal/service/user"
	"github.com/splax/gigboard/pkg/config"
)

const (
	minTitleLength = 5
	maxTitleLength = 120
)

// Notifier delivers in-app notifications.
type Notifier interface {
	Notify(ctx context.Context, input domain.NotificationInput) (*domain.Notification, error)
}

// CreateInput encapsulates job creation attributes.
type CreateInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Skills      []string   `json:"skills"`
	BudgetCents int64      `json:"budget_cents"`
	Currency    string     `json:"currency"`
	BudgetType  string     `json:"budget_type"`
	Deadline    *time.Time `json:"deadline"`
}

// UpdateInput lists the editable fields of an open job.
type UpdateInput struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Category    *string    `json:"category"`
	Skills      *[]string  `json:"skills"`
	BudgetCents *int64     `json:"budget_cents"`
	Deadline    *time.Time `json:"deadline"`
}

// Service orchestrates job postings.
type Service struct {
	jobs       repository.JobRepository
	milestones repository.MilestoneRepository
	notifier   Notifier
	logger     *slog.Logger
	cfg        config.APIConfig
	now        func() time.Time
}

// New returns a job service.
func New(jobs repository.JobRepository, milestones repository.MilestoneRepository, notifier Notifier, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{
		jobs:       jobs,
		milestones: milestones,
		notifier:   notifier,
		logger:     logger,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create posts a new job on behalf of a client.
func (s Service) Create(ctx context.Context, actor *domain.User, input CreateInput) (*domain.Job, error) {
	if actor == nil || actor.Role != domain.RoleClient {
		return nil, domain.ErrForbidden
	}
	now := s.now()
	title, err := validateTitle(input.Title)
	if err != nil {
		return nil, err
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, domain.Invalid("description", "description is required")
	}
	if input.BudgetCents <= 0 {
		return nil, domain.Invalid("budget_cents", "budget must be positive")
	}
	if input.BudgetCents > domain.MaxAmountCents {
		return nil, domain.Invalid("budget_cents", "budget is too large")
	}
	budgetType := strings.ToLower(strings.TrimSpace(input.BudgetType))
	if budgetType == "" {
		budgetType = domain.BudgetFixed
	}
	if budgetType != domain.BudgetFixed && budgetType != domain.BudgetHourly {
		return nil, domain.Invalid("budget_type", "budget type must be fixed or hourly")
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}
	if len(currency) != 3 {
		return nil, domain.Invalid("currency", "currency must be a three-letter code")
	}
	if err := validateDeadline(input.Deadline, now); err != nil {
		return nil, err
	}
	skills, err := user.NormalizeSkills(input.Skills)
	if err != nil {
		return nil, err
	}
	job := &domain.Job{
		ID:          uuid.NewString(),
		ClientID:    actor.ID,
		Title:       title,
		Description: description,
		Category:    strings.ToLower(strings.TrimSpace(input.Category)),
		Skills:      skills,
		BudgetCents: input.BudgetCents,
		Currency:    currency,
		BudgetType:  budgetType,
		Status:      domain.JobOpen,
		Deadline:    utcPtr(input.Deadline),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	s.logger.Info("job posted", "job_id", job.ID, "client_id", actor.ID, "budget_cents", job.BudgetCents)
	return job, nil
}

// Get returns a job by id.
func (s Service) Get(ctx context.Context, id string) (*domain.Job, error) {
	return s.jobs.GetJobByID(ctx, id)
}

// List returns jobs matching filter.
func (s Service) List(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	if filter.MinBudget < 0 || filter.MaxBudget < 0 {
		return nil, domain.Invalid("budget", "budget bounds cannot be negative")
	}
	if filter.MaxBudget > 0 && filter.MinBudget > filter.MaxBudget {
		return nil, domain.Invalid("budget", "min budget exceeds max budget")
	}
	if filter.Status != "" {
		switch filter.Status {
		case domain.JobOpen, domain.JobInProgress, domain.JobCompleted, domain.JobCancelled:
		default:
			return nil, domain.Invalid("status", "unknown job status")
		}
	}
	filter.Limit = s.cfg.PageLimit(filter.Limit, 20)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	filter.Skill = strings.ToLower(strings.TrimSpace(filter.Skill))
	filter.Query = strings.TrimSpace(filter.Query)
	return s.jobs.ListJobs(ctx, filter)
}

// Update edits an open job owned by actorID.
func (s Service) Update(ctx context.Context, actorID, id string, input UpdateInput) (*domain.Job, error) {
	job, err := s.jobs.GetJobByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.ClientID != actorID {
		return nil, domain.ErrForbidden
	}
	if job.Status != domain.JobOpen {
		return nil, domain.ErrInvalidTransition
	}
	if input.Title != nil {
		title, err := validateTitle(*input.Title)
		if err != nil {
			return nil, err
		}
		job.Title = title
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description == "" {
			return nil, domain.Invalid("description", "description is required")
		}
		job.Description = description
	}
	if input.Category != nil {
		job.Category = strings.ToLower(strings.TrimSpace(*input.Category))
	}
	if input.Skills != nil {
		skills, err := user.NormalizeSkills(*input.Skills)
		if err != nil {
			return nil, err
		}
		job.Skills = skills
	}
	if input.BudgetCents != nil {
		if *input.BudgetCents <= 0 {
			return nil, domain.Invalid("budget_cents", "budget must be positive")
		}
		if *input.BudgetCents > domain.MaxAmountCents {
			return nil, domain.Invalid("budget_cents", "budget is too large")
		}
		job.BudgetCents = *input.BudgetCents
	}
	if input.Deadline != nil {
		if err := validateDeadline(input.Deadline, s.now()); err != nil {
			return nil, err
		}
		job.Deadline = utcPtr(input.Deadline)
	}
	job.UpdatedAt = s.now()
	if err := s.jobs.UpdateJob(ctx, job); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return nil, domain.ErrInvalidTransition
		}
		return nil, err
	}
	s.logger.Info("job updated", "job_id", job.ID)
	return job, nil
}

// Cancel withdraws a job and any milestones that have not been delivered.
func (s Service) Cancel(ctx context.Context, actorID, id string) (*domain.Job, error) {
	job, err := s.jobs.GetJobByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.ClientID != actorID {
		return nil, domain.ErrForbidden
	}
	if !job.Status.CanTransition(domain.JobCancelled) {
		return nil, domain.ErrInvalidTransition
	}
	if err := s.jobs.TransitionJob(ctx, job.ID, job.Status, domain.JobCancelled); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return nil, domain.ErrInvalidTransition
		}
		return nil, err
	}
	job.Status = domain.JobCancelled
	job.UpdatedAt = s.now()
	cancelled, err := s.milestones.CancelOpenMilestones(ctx, job.ID)
	if err != nil {
		s.logger.Error("failed to cancel open milestones", "job_id", job.ID, "error", err)
		return nil, err
	}
	if job.FreelancerID != nil {
		s.notify(ctx, domain.NotificationInput{
			UserID:   *job.FreelancerID,
			Type:     domain.NotifyJobCancelled,
			Title:    "Job cancelled",
			Body:     job.Title + " was cancelled by the client.",
			Link:     "/jobs/" + job.ID,
			Metadata: map[string]any{"job_id": job.ID, "milestones_cancelled": cancelled},
		})
	}
	s.logger.Info("job cancelled", "job_id", job.ID, "milestones_cancelled", cancelled)
	return job, nil
}

func (s Service) notify(ctx context.Context, input domain.NotificationInput) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, input); err != nil {
		s.logger.Warn("failed to send notification", "error", err, "user_id", input.UserID, "type", input.Type)
	}
}

func validateTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(title)
	if n < minTitleLength || n > maxTitleLength {
		return "", domain.Invalid("title", "title must be 5-120 characters")
	}
	return title, nil
}

func validateDeadline(deadline *time.Time, now time.Time) error {
	if deadline != nil && !deadline.After(now) {
		return domain.Invalid("deadline", "deadline must be in the future")
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
