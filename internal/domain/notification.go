package domain

import (
	"encoding/json"
	"time"
)

// Notification types emitted by marketplace workflows.
const (
	NotifyApplicationReceived = "application.received"
	NotifyApplicationAccepted = "application.accepted"
	NotifyApplicationRejected = "application.rejected"
	NotifyJobCancelled        = "job.cancelled"
	NotifyJobCompleted        = "job.completed"
	NotifyMilestoneCreated    = "milestone.created"
	NotifyMilestoneFunded     = "milestone.funded"
	NotifyMilestoneSubmitted  = "milestone.submitted"
	NotifyMilestoneRevision   = "milestone.revision_requested"
	NotifyMilestoneApproved   = "milestone.approved"
	NotifyMilestoneCancelled  = "milestone.cancelled"
	NotifyMessage             = "message"
)

// Notification is an in-app alert addressed to a single user.
type Notification struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	Link      string          `json:"link,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	ReadAt    *time.Time      `json:"read_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NotificationInput carries the caller-supplied fields of a notification.
type NotificationInput struct {
	UserID   string
	Type     string
	Title    string
	Body     string
	Link     string
	Metadata map[string]any
}
