package domain

import "time"

// ApplicationStatus tracks a freelancer's proposal on a job.
type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationAccepted  ApplicationStatus = "accepted"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationWithdrawn ApplicationStatus = "withdrawn"
)

// CanTransition reports whether the application may move from s to next.
// Only pending applications change state.
func (s ApplicationStatus) CanTransition(next ApplicationStatus) bool {
	if s != ApplicationPending {
		return false
	}
	return next == ApplicationAccepted || next == ApplicationRejected || next == ApplicationWithdrawn
}

// Application is a freelancer's bid on a job.
type Application struct {
	ID            string            `json:"id"`
	JobID         string            `json:"job_id"`
	FreelancerID  string            `json:"freelancer_id"`
	CoverLetter   string            `json:"cover_letter"`
	BidCents      int64             `json:"bid_cents"`
	EstimatedDays int               `json:"estimated_days"`
	Status        ApplicationStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// HireResult describes the rows touched when a client hires a freelancer.
type HireResult struct {
	Job          Job
	Application  Application
	Rejected     []Application
	Conversation Conversation
}
