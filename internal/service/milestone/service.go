package milestone

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
)

const maxNoteLength = 4000

// Notifier delivers in-app notifications.
type Notifier interface {
	Notify(ctx context.Context, input domain.NotificationInput) (*domain.Notification, error)
}

// CreateInput describes a new milestone.
type CreateInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	AmountCents int64      `json:"amount_cents"`
	DueDate     *time.Time `json:"due_date"`
}

// Service drives the milestone lifecycle.
type Service struct {
	milestones repository.MilestoneRepository
	jobs       repository.JobRepository
	notifier   Notifier
	logger     *slog.Logger
	now        func() time.Time
}

// New returns a milestone service.
func New(milestones repository.MilestoneRepository, jobs repository.JobRepository, notifier Notifier, logger *slog.Logger) Service {
	return Service{
		milestones: milestones,
		jobs:       jobs,
		notifier:   notifier,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create appends a milestone to a job owned by clientID.
func (s Service) Create(ctx context.Context, clientID, jobID string, input CreateInput) (*domain.Milestone, error) {
	job, err := s.jobs.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.ClientID != clientID {
		return nil, domain.ErrForbidden
	}
	if job.Status.Terminal() {
		return nil, domain.ErrInvalidTransition
	}
	title := strings.TrimSpace(input.Title)
	if n := utf8.RuneCountInString(title); n == 0 || n > 120 {
		return nil, domain.Invalid("title", "title must be 1-120 characters")
	}
	if input.AmountCents <= 0 {
		return nil, domain.Invalid("amount_cents", "amount must be positive")
	}
	if input.AmountCents > domain.MaxAmountCents {
		return nil, domain.Invalid("amount_cents", "amount is too large")
	}
	now := s.now()
	if input.DueDate != nil && !input.DueDate.After(now) {
		return nil, domain.Invalid("due_date", "due date must be in the future")
	}
	m := &domain.Milestone{
		ID:          uuid.NewString(),
		JobID:       job.ID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		AmountCents: input.AmountCents,
		Currency:    job.Currency,
		DueDate:     input.DueDate,
		Status:      domain.MilestonePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.milestones.CreateMilestone(ctx, m); err != nil {
		return nil, err
	}
	if job.FreelancerID != nil {
		s.notify(ctx, *job.FreelancerID, domain.NotifyMilestoneCreated, "New milestone", m.Title+" was added to "+job.Title, m)
	}
	s.logger.Info("milestone created", "milestone_id", m.ID, "job_id", job.ID, "amount_cents", m.AmountCents)
	return m, nil
}

// List returns a job's milestones to either party.
func (s Service) List(ctx context.Context, actorID, jobID string) ([]domain.Milestone, error) {
	job, err := s.jobs.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsParty(actorID) {
		return nil, domain.ErrForbidden
	}
	return s.milestones.ListMilestonesByJob(ctx, jobID)
}

// Get returns a milestone visible to either party.
func (s Service) Get(ctx context.Context, actorID, id string) (*domain.Milestone, *domain.Job, error) {
	m, job, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !job.IsParty(actorID) {
		return nil, nil, domain.ErrForbidden
	}
	return m, job, nil
}

// Fund places the milestone amount in escrow.
func (s Service) Fund(ctx context.Context, clientID, id string) (*domain.Milestone, error) {
	m, job, err := s.asClient(ctx, clientID, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return nil, domain.ErrInvalidTransition
	}
	now := s.now()
	if err := s.transition(ctx, m, domain.MilestoneFunded, func(m *domain.Milestone) { m.FundedAt = &now }); err != nil {
		return nil, err
	}
	if job.FreelancerID != nil {
		s.notify(ctx, *job.FreelancerID, domain.NotifyMilestoneFunded, "Milestone funded", m.Title+" is funded and ready to start", m)
	}
	s.logger.Info("milestone funded", "milestone_id", m.ID, "amount_cents", m.AmountCents)
	return m, nil
}

// Submit hands in work for review.
func (s Service) Submit(ctx context.Context, freelancerID, id, note string) (*domain.Milestone, error) {
	m, job, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.FreelancerID == nil || *job.FreelancerID != freelancerID {
		return nil, domain.ErrForbidden
	}
	if job.Status.Terminal() {
		return nil, domain.ErrInvalidTransition
	}
	note = strings.TrimSpace(note)
	if len(note) > maxNoteLength {
		return nil, domain.Invalid("note", "note is too long")
	}
	now := s.now()
	err = s.transition(ctx, m, domain.MilestoneSubmitted, func(m *domain.Milestone) {
		m.SubmissionNote = note
		m.SubmittedAt = &now
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, job.ClientID, domain.NotifyMilestoneSubmitted, "Work submitted", m.Title+" is ready for review", m)
	s.logger.Info("milestone submitted", "milestone_id", m.ID)
	return m, nil
}

// RequestRevision sends submitted work back with a note.
func (s Service) RequestRevision(ctx context.Context, clientID, id, note string) (*domain.Milestone, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, domain.Invalid("note", "a revision note is required")
	}
	if len(note) > maxNoteLength {
		return nil, domain.Invalid("note", "note is too long")
	}
	m, job, err := s.asClient(ctx, clientID, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return nil, domain.ErrInvalidTransition
	}
	if err := s.transition(ctx, m, domain.MilestoneRevisionRequested, func(m *domain.Milestone) { m.RevisionNote = note }); err != nil {
		return nil, err
	}
	if job.FreelancerID != nil {
		s.notify(ctx, *job.FreelancerID, domain.NotifyMilestoneRevision, "Revision requested", note, m)
	}
	s.logger.Info("milestone revision requested", "milestone_id", m.ID)
	return m, nil
}

// Approve releases payment and completes the job once every remaining
// milestone is approved. The returned job reflects any completion.
func (s Service) Approve(ctx context.Context, clientID, id string) (*domain.Milestone, *domain.Job, error) {
	m, job, err := s.asClient(ctx, clientID, id)
	if err != nil {
		return nil, nil, err
	}
	if job.Status.Terminal() {
		return nil, nil, domain.ErrInvalidTransition
	}
	now := s.now()
	if err := s.transition(ctx, m, domain.MilestoneApproved, func(m *domain.Milestone) { m.ApprovedAt = &now }); err != nil {
		return nil, nil, err
	}
	if job.FreelancerID != nil {
		s.notify(ctx, *job.FreelancerID, domain.NotifyMilestoneApproved, "Payment released", m.Title+" was approved", m)
	}
	s.logger.Info("milestone approved", "milestone_id", m.ID, "amount_cents", m.AmountCents)
	if err := s.completeIfDone(ctx, job); err != nil {
		return nil, nil, err
	}
	return m, job, nil
}

// Cancel withdraws a milestone that has not been submitted.
func (s Service) Cancel(ctx context.Context, clientID, id string) (*domain.Milestone, error) {
	m, job, err := s.asClient(ctx, clientID, id)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, m, domain.MilestoneCancelled, nil); err != nil {
		return nil, err
	}
	if job.FreelancerID != nil {
		s.notify(ctx, *job.FreelancerID, domain.NotifyMilestoneCancelled, "Milestone cancelled", m.Title+" was cancelled", m)
	}
	s.logger.Info("milestone cancelled", "milestone_id", m.ID)
	if err := s.completeIfDone(ctx, job); err != nil {
		return nil, err
	}
	return m, nil
}

// completeIfDone moves an in-progress job to completed when it has at least
// one approved milestone and every non-cancelled milestone is approved.
func (s Service) completeIfDone(ctx context.Context, job *domain.Job) error {
	if job.Status != domain.JobInProgress {
		return nil
	}
	milestones, err := s.milestones.ListMilestonesByJob(ctx, job.ID)
	if err != nil {
		return err
	}
	approved := 0
	for _, m := range milestones {
		switch m.Status {
		case domain.MilestoneApproved:
			approved++
		case domain.MilestoneCancelled:
		default:
			return nil
		}
	}
	if approved == 0 {
		return nil
	}
	if err := s.jobs.TransitionJob(ctx, job.ID, domain.JobInProgress, domain.JobCompleted); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return nil
		}
		return err
	}
	job.Status = domain.JobCompleted
	job.UpdatedAt = s.now()
	for _, userID := range []string{job.ClientID, derefOrEmpty(job.FreelancerID)} {
		if userID == "" {
			continue
		}
		s.notifyUser(ctx, domain.NotificationInput{
			UserID:   userID,
			Type:     domain.NotifyJobCompleted,
			Title:    "Job completed",
			Body:     job.Title + " is complete.",
			Link:     "/jobs/" + job.ID,
			Metadata: map[string]any{"job_id": job.ID},
		})
	}
	s.logger.Info("job completed", "job_id", job.ID)
	return nil
}

func (s Service) load(ctx context.Context, id string) (*domain.Milestone, *domain.Job, error) {
	m, err := s.milestones.GetMilestoneByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	job, err := s.jobs.GetJobByID(ctx, m.JobID)
	if err != nil {
		return nil, nil, err
	}
	return m, job, nil
}

func (s Service) asClient(ctx context.Context, clientID, id string) (*domain.Milestone, *domain.Job, error) {
	m, job, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if job.ClientID != clientID {
		return nil, nil, domain.ErrForbidden
	}
	return m, job, nil
}

func (s Service) transition(ctx context.Context, m *domain.Milestone, to domain.MilestoneStatus, mutate func(*domain.Milestone)) error {
	if !m.Status.CanTransition(to) {
		return domain.ErrInvalidTransition
	}
	from := m.Status
	next := *m
	next.Status = to
	if mutate != nil {
		mutate(&next)
	}
	if err := s.milestones.UpdateMilestone(ctx, &next, from); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return domain.ErrInvalidTransition
		}
		return err
	}
	*m = next
	return nil
}

func (s Service) notify(ctx context.Context, userID, kind, title, body string, m *domain.Milestone) {
	s.notifyUser(ctx, domain.NotificationInput{
		UserID:   userID,
		Type:     kind,
		Title:    title,
		Body:     body,
		Link:     "/jobs/" + m.JobID + "/milestones",
		Metadata: map[string]any{"job_id": m.JobID, "milestone_id": m.ID, "status": string(m.Status)},
	})
}

func (s Service) notifyUser(ctx context.Context, input domain.NotificationInput) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, input); err != nil {
		s.logger.Warn("failed to send notification", "error", err, "user_id", input.UserID, "type", input.Type)
	}
}

func derefOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
