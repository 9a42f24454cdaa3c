package domain

import "time"

// MilestoneStatus tracks payment and delivery of a unit of work.
type MilestoneStatus string

const (
	MilestonePending           MilestoneStatus = "pending"
	MilestoneFunded            MilestoneStatus = "funded"
	MilestoneSubmitted         MilestoneStatus = "submitted"
	MilestoneRevisionRequested MilestoneStatus = "revision_requested"
	MilestoneApproved          MilestoneStatus = "approved"
	MilestoneCancelled         MilestoneStatus = "cancelled"
)

var milestoneTransitions = map[MilestoneStatus][]MilestoneStatus{
	MilestonePending:           {MilestoneFunded, MilestoneCancelled},
	MilestoneFunded:            {MilestoneSubmitted, MilestoneCancelled},
	MilestoneSubmitted:         {MilestoneApproved, MilestoneRevisionRequested},
	MilestoneRevisionRequested: {MilestoneSubmitted},
}

// CanTransition reports whether the milestone may move from s to next.
func (s MilestoneStatus) CanTransition(next MilestoneStatus) bool {
	return allowed(milestoneTransitions[s], next)
}

// Escrowed reports whether money for the milestone is held but not released.
func (s MilestoneStatus) Escrowed() bool {
	return s == MilestoneFunded || s == MilestoneSubmitted || s == MilestoneRevisionRequested
}

// Milestone is a payable deliverable on a job.
type Milestone struct {
	ID             string          `json:"id"`
	JobID          string          `json:"job_id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	AmountCents    int64           `json:"amount_cents"`
	Currency       string          `json:"currency"`
	Position       int             `json:"position"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
	Status         MilestoneStatus `json:"status"`
	SubmissionNote string          `json:"submission_note,omitempty"`
	RevisionNote   string          `json:"revision_note,omitempty"`
	FundedAt       *time.Time      `json:"funded_at,omitempty"`
	SubmittedAt    *time.Time      `json:"submitted_at,omitempty"`
	ApprovedAt     *time.Time      `json:"approved_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
