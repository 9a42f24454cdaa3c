package stats

import (
	"context"
	"time"

	"log/slog"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/repository"
)

const jobPageSize = 100

// Service loads the rows behind dashboard statistics.
type Service struct {
	jobs         repository.JobRepository
	applications repository.ApplicationRepository
	milestones   repository.MilestoneRepository
	logger       *slog.Logger
	now          func() time.Time
}

// New returns a stats service.
func New(jobs repository.JobRepository, applications repository.ApplicationRepository, milestones repository.MilestoneRepository, logger *slog.Logger) Service {
	return Service{
		jobs:         jobs,
		applications: applications,
		milestones:   milestones,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Freelancer returns statistics for a freelancer account.
func (s Service) Freelancer(ctx context.Context, userID string) (FreelancerStats, error) {
	milestones, err := s.milestones.ListMilestonesByFreelancer(ctx, userID)
	if err != nil {
		return FreelancerStats{}, err
	}
	applications, err := s.applications.ListApplicationsByFreelancer(ctx, userID)
	if err != nil {
		return FreelancerStats{}, err
	}
	jobs, err := s.allJobs(ctx, domain.JobFilter{FreelancerID: userID})
	if err != nil {
		return FreelancerStats{}, err
	}
	return AggregateFreelancer(milestones, applications, jobs, s.now()), nil
}

// Client returns statistics for a client account.
func (s Service) Client(ctx context.Context, userID string) (ClientStats, error) {
	milestones, err := s.milestones.ListMilestonesByClient(ctx, userID)
	if err != nil {
		return ClientStats{}, err
	}
	jobs, err := s.allJobs(ctx, domain.JobFilter{ClientID: userID})
	if err != nil {
		return ClientStats{}, err
	}
	return AggregateClient(milestones, jobs, s.now()), nil
}

func (s Service) allJobs(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	var all []domain.Job
	filter.Limit = jobPageSize
	for {
		page, err := s.jobs.ListJobs(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < jobPageSize {
			return all, nil
		}
		filter.Offset += len(page)
	}
}
