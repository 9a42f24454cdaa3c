package memory

import (
	"context"
	"sort"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/repository"
)

// CreateApplication inserts a proposal; one per (job, freelancer).
func (s *Store) CreateApplication(_ context.Context, app *domain.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[app.JobID]; !ok {
		return repository.ErrNotFound
	}
	for _, existing := range s.applications {
		if existing.JobID == app.JobID && existing.FreelancerID == app.FreelancerID {
			return repository.ErrConflict
		}
	}
	s.applications[app.ID] = *app
	return nil
}

// GetApplicationByID fetches a proposal.
func (s *Store) GetApplicationByID(_ context.Context, id string) (*domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.applications[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

// ListApplicationsByJob returns proposals on a job, oldest first.
func (s *Store) ListApplicationsByJob(_ context.Context, jobID string) ([]domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filterApplications(func(a domain.Application) bool { return a.JobID == jobID })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListApplicationsByFreelancer returns a freelancer's proposals, newest first.
func (s *Store) ListApplicationsByFreelancer(_ context.Context, freelancerID string) ([]domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filterApplications(func(a domain.Application) bool { return a.FreelancerID == freelancerID })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) filterApplications(keep func(domain.Application) bool) []domain.Application {
	out := make([]domain.Application, 0)
	for _, a := range s.applications {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

// TransitionApplication changes status when the current status equals from.
func (s *Store) TransitionApplication(_ context.Context, id string, from, to domain.ApplicationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.applications[id]
	if !ok || a.Status != from {
		return repository.ErrStale
	}
	a.Status = to
	a.UpdatedAt = s.now()
	s.applications[id] = a
	return nil
}

// Hire applies the hire transaction under the store lock.
func (s *Store) Hire(_ context.Context, applicationID string, conversation domain.Conversation) (*domain.HireResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.applications[applicationID]
	if !ok || app.Status != domain.ApplicationPending {
		return nil, repository.ErrStale
	}
	job, ok := s.jobs[app.JobID]
	if !ok || job.Status != domain.JobOpen {
		return nil, repository.ErrStale
	}
	for _, c := range s.conversations {
		if c.JobID == job.ID {
			return nil, repository.ErrConflict
		}
	}
	now := s.now()
	app.Status = domain.ApplicationAccepted
	app.UpdatedAt = now
	s.applications[app.ID] = app

	freelancerID := app.FreelancerID
	job.Status = domain.JobInProgress
	job.FreelancerID = &freelancerID
	job.UpdatedAt = now
	s.jobs[job.ID] = job

	result := &domain.HireResult{Job: job, Application: app, Rejected: []domain.Application{}}
	for id, other := range s.applications {
		if other.JobID != job.ID || other.ID == app.ID || other.Status != domain.ApplicationPending {
			continue
		}
		other.Status = domain.ApplicationRejected
		other.UpdatedAt = now
		s.applications[id] = other
		result.Rejected = append(result.Rejected, other)
	}
	sort.Slice(result.Rejected, func(i, j int) bool { return result.Rejected[i].CreatedAt.Before(result.Rejected[j].CreatedAt) })

	conversation.JobID = job.ID
	conversation.ClientID = job.ClientID
	conversation.FreelancerID = app.FreelancerID
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = now
	}
	s.conversations[conversation.ID] = conversation
	result.Conversation = conversation
	return result, nil
}
