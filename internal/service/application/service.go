package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/repository"
)

const maxCoverLetter = 5000

// Notifier delivers in-app notifications.
type Notifier interface {
	Notify(ctx context.Context, input domain.NotificationInput) (*domain.Notification, error)
}

// ApplyInput carries the proposal submitted by a freelancer.
type ApplyInput struct {
	CoverLetter   string `json:"cover_letter"`
	BidCents      int64  `json:"bid_cents"`
	EstimatedDays int    `json:"estimated_days"`
}

// Service coordinates proposals and hiring.
type Service struct {
	applications repository.ApplicationRepository
	jobs         repository.JobRepository
	notifier     Notifier
	logger       *slog.Logger
	now          func() time.Time
}

// New returns an application service.
func New(applications repository.ApplicationRepository, jobs repository.JobRepository, notifier Notifier, logger *slog.Logger) Service {
	return Service{
		applications: applications,
		jobs:         jobs,
		notifier:     notifier,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Apply submits a proposal on an open job.
func (s Service) Apply(ctx context.Context, actor *domain.User, jobID string, input ApplyInput) (*domain.Application, error) {
	if actor == nil || actor.Role != domain.RoleFreelancer {
		return nil, domain.ErrForbidden
	}
	job, err := s.jobs.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.ClientID == actor.ID {
		return nil, domain.ErrForbidden
	}
	if job.Status != domain.JobOpen {
		return nil, domain.ErrInvalidTransition
	}
	if input.BidCents <= 0 {
		return nil, domain.Invalid("bid_cents", "bid must be positive")
	}
	if input.BidCents > domain.MaxAmountCents {
		return nil, domain.Invalid("bid_cents", "bid is too large")
	}
	if input.EstimatedDays < 0 {
		return nil, domain.Invalid("estimated_days", "estimated days cannot be negative")
	}
	letter := strings.TrimSpace(input.CoverLetter)
	if len(letter) > maxCoverLetter {
		return nil, domain.Invalid("cover_letter", "cover letter is too long")
	}
	now := s.now()
	app := &domain.Application{
		ID:            uuid.NewString(),
		JobID:         job.ID,
		FreelancerID:  actor.ID,
		CoverLetter:   letter,
		BidCents:      input.BidCents,
		EstimatedDays: input.EstimatedDays,
		Status:        domain.ApplicationPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.applications.CreateApplication(ctx, app); err != nil {
		return nil, err
	}
	s.notify(ctx, domain.NotificationInput{
		UserID:   job.ClientID,
		Type:     domain.NotifyApplicationReceived,
		Title:    "New proposal",
		Body:     actor.DisplayName + " applied to " + job.Title,
		Link:     "/jobs/" + job.ID + "/applications",
		Metadata: map[string]any{"job_id": job.ID, "application_id": app.ID},
	})
	s.logger.Info("application submitted", "application_id", app.ID, "job_id", job.ID, "freelancer_id", actor.ID)
	return app, nil
}

// Withdraw retracts a pending proposal.
func (s Service) Withdraw(ctx context.Context, freelancerID, id string) (*domain.Application, error) {
	app, err := s.applications.GetApplicationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.FreelancerID != freelancerID {
		return nil, domain.ErrForbidden
	}
	if err := s.transition(ctx, app, domain.ApplicationWithdrawn); err != nil {
		return nil, err
	}
	s.logger.Info("application withdrawn", "application_id", app.ID)
	return app, nil
}

// ListByJob returns proposals on a job to its owner.
func (s Service) ListByJob(ctx context.Context, actorID, jobID string) ([]domain.Application, error) {
	job, err := s.jobs.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.ClientID != actorID {
		return nil, domain.ErrForbidden
	}
	return s.applications.ListApplicationsByJob(ctx, jobID)
}

// ListMine returns the freelancer's own proposals.
func (s Service) ListMine(ctx context.Context, freelancerID string) ([]domain.Application, error) {
	return s.applications.ListApplicationsByFreelancer(ctx, freelancerID)
}

// Hire accepts a proposal, closes the others and starts the job.
func (s Service) Hire(ctx context.Context, clientID, applicationID string) (*domain.HireResult, error) {
	app, job, err := s.ownedApplication(ctx, clientID, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != domain.ApplicationPending || job.Status != domain.JobOpen {
		return nil, domain.ErrInvalidTransition
	}
	result, err := s.applications.Hire(ctx, app.ID, domain.Conversation{ID: uuid.NewString(), CreatedAt: s.now()})
	if err != nil {
		if errors.Is(err, repository.ErrStale) {
			return nil, domain.ErrInvalidTransition
		}
		return nil, err
	}
	s.notify(ctx, domain.NotificationInput{
		UserID:   result.Application.FreelancerID,
		Type:     domain.NotifyApplicationAccepted,
		Title:    "You were hired",
		Body:     "Your proposal for " + result.Job.Title + " was accepted.",
		Link:     "/conversations/" + result.Conversation.ID,
		Metadata: map[string]any{"job_id": result.Job.ID, "conversation_id": result.Conversation.ID},
	})
	for _, rejected := range result.Rejected {
		s.notifyRejected(ctx, rejected, result.Job)
	}
	s.logger.Info("freelancer hired",
		"job_id", result.Job.ID,
		"application_id", result.Application.ID,
		"freelancer_id", result.Application.FreelancerID,
		"rejected", len(result.Rejected),
	)
	return result, nil
}

// Reject declines a pending proposal.
func (s Service) Reject(ctx context.Context, clientID, applicationID string) (*domain.Application, error) {
	app, job, err := s.ownedApplication(ctx, clientID, applicationID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, app, domain.ApplicationRejected); err != nil {
		return nil, err
	}
	s.notifyRejected(ctx, *app, *job)
	s.logger.Info("application rejected", "application_id", app.ID, "job_id", job.ID)
	return app, nil
}

func (s Service) ownedApplication(ctx context.Context, clientID, applicationID string) (*domain.Application, *domain.Job, error) {
	app, err := s.applications.GetApplicationByID(ctx, applicationID)
	if err != nil {
		return nil, nil, err
	}
	job, err := s.jobs.GetJobByID(ctx, app.JobID)
	if err != nil {
		return nil, nil, err
	}
	if job.ClientID != clientID {
		return nil, nil, domain.ErrForbidden
	}
	return app, job, nil
}

func (s Service) transition(ctx context.Context, app *domain.Application, to domain.ApplicationStatus) error {
	if !app.Status.CanTransition(to) {
		return domain.ErrInvalidTransition
	}
	if err := s.applications.TransitionApplication(ctx, app.ID, app.Status, to); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return domain.ErrInvalidTransition
		}
		return err
	}
	app.Status = to
	app.UpdatedAt = s.now()
	return nil
}

func (s Service) notifyRejected(ctx context.Context, app domain.Application, job domain.Job) {
	s.notify(ctx, domain.NotificationInput{
		UserID:   app.FreelancerID,
		Type:     domain.NotifyApplicationRejected,
		Title:    "Proposal declined",
		Body:     "Your proposal for " + job.Title + " was not selected.",
		Link:     "/jobs/" + job.ID,
		Metadata: map[string]any{"job_id": job.ID, "application_id": app.ID},
	})
}

func (s Service) notify(ctx context.Context, input domain.NotificationInput) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, input); err != nil {
		s.logger.Warn("failed to send notification", "error", err, "user_id", input.UserID, "type", input.Type)
	}
}
