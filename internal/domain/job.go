package domain

import "time"

// JobStatus tracks a job posting through its lifecycle.
type JobStatus string

const (
	JobOpen       JobStatus = "open"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobCancelled  JobStatus = "cancelled"
)

// Budget types.
const (
	BudgetFixed  = "fixed"
	BudgetHourly = "hourly"
)

// MaxAmountCents caps budgets, bids and milestone amounts so fee and total
// arithmetic stays inside int64.
const MaxAmountCents int64 = 1_000_000_000_000

var jobTransitions = map[JobStatus][]JobStatus{
	JobOpen:       {JobInProgress, JobCancelled},
	JobInProgress: {JobCompleted, JobCancelled},
}

// CanTransition reports whether the job may move from s to next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	return allowed(jobTransitions[s], next)
}

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobCancelled
}

// Job is a posting created by a client.
type Job struct {
	ID           string     `json:"id"`
	ClientID     string     `json:"client_id"`
	FreelancerID *string    `json:"freelancer_id,omitempty"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Category     string     `json:"category"`
	Skills       []string   `json:"skills"`
	BudgetCents  int64      `json:"budget_cents"`
	Currency     string     `json:"currency"`
	BudgetType   string     `json:"budget_type"`
	Status       JobStatus  `json:"status"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsParty reports whether userID is the client or the hired freelancer.
func (j Job) IsParty(userID string) bool {
	if userID == "" {
		return false
	}
	if j.ClientID == userID {
		return true
	}
	return j.FreelancerID != nil && *j.FreelancerID == userID
}

// Counterparty returns the other party on the job, or "" when none is hired.
func (j Job) Counterparty(userID string) string {
	if j.FreelancerID == nil {
		return ""
	}
	if userID == j.ClientID {
		return *j.FreelancerID
	}
	if userID == *j.FreelancerID {
		return j.ClientID
	}
	return ""
}

// JobFilter narrows job listings.
type JobFilter struct {
	Status       JobStatus
	Skill        string
	Query        string
	ClientID     string
	FreelancerID string
	MinBudget    int64
	MaxBudget    int64
	Limit        int
	Offset       int
}

func allowed[T comparable](targets []T, next T) bool {
	for _, t := range targets {
		if t == next {
			return true
		}
	}
	return false
}
