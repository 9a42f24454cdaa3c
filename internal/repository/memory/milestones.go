package memory

import (
	"context"
	"sort"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/repository"
)

// CreateMilestone appends a milestone, assigning the next position.
func (s *Store) CreateMilestone(_ context.Context, m *domain.Milestone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[m.JobID]; !ok {
		return repository.ErrNotFound
	}
	max := 0
	for _, existing := range s.milestones {
		if existing.JobID == m.JobID && existing.Position > max {
			max = existing.Position
		}
	}
	m.Position = max + 1
	m.UpdatedAt = m.CreatedAt
	s.milestones[m.ID] = *m
	return nil
}

// GetMilestoneByID fetches a milestone.
func (s *Store) GetMilestoneByID(_ context.Context, id string) (*domain.Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.milestones[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

// ListMilestonesByJob returns milestones ordered by position.
func (s *Store) ListMilestonesByJob(_ context.Context, jobID string) ([]domain.Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filterMilestones(func(m domain.Milestone) bool { return m.JobID == jobID })
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// ListMilestonesByFreelancer returns milestones on jobs the freelancer was hired for.
func (s *Store) ListMilestonesByFreelancer(_ context.Context, freelancerID string) ([]domain.Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filterMilestones(func(m domain.Milestone) bool {
		j := s.jobs[m.JobID]
		return j.FreelancerID != nil && *j.FreelancerID == freelancerID
	})
	sortByCreated(out)
	return out, nil
}

// ListMilestonesByClient returns milestones on jobs posted by the client.
func (s *Store) ListMilestonesByClient(_ context.Context, clientID string) ([]domain.Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filterMilestones(func(m domain.Milestone) bool { return s.jobs[m.JobID].ClientID == clientID })
	sortByCreated(out)
	return out, nil
}

func (s *Store) filterMilestones(keep func(domain.Milestone) bool) []domain.Milestone {
	out := make([]domain.Milestone, 0)
	for _, m := range s.milestones {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

func sortByCreated(ms []domain.Milestone) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].Position < ms[j].Position
		}
		return ms[i].CreatedAt.Before(ms[j].CreatedAt)
	})
}

// UpdateMilestone writes state columns when the stored status equals from.
func (s *Store) UpdateMilestone(_ context.Context, m *domain.Milestone, from domain.MilestoneStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.milestones[m.ID]
	if !ok || stored.Status != from {
		return repository.ErrStale
	}
	stored.Status = m.Status
	stored.SubmissionNote = m.SubmissionNote
	stored.RevisionNote = m.RevisionNote
	stored.FundedAt = m.FundedAt
	stored.SubmittedAt = m.SubmittedAt
	stored.ApprovedAt = m.ApprovedAt
	stored.UpdatedAt = s.now()
	m.UpdatedAt = stored.UpdatedAt
	s.milestones[m.ID] = stored
	return nil
}

// CancelOpenMilestones cancels every milestone of a job that has not been approved.
func (s *Store) CancelOpenMilestones(_ context.Context, jobID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for id, m := range s.milestones {
		if m.JobID != jobID || m.Status == domain.MilestoneApproved || m.Status == domain.MilestoneCancelled {
			continue
		}
		m.Status = domain.MilestoneCancelled
		m.UpdatedAt = s.now()
		s.milestones[id] = m
		count++
	}
	return count, nil
}
