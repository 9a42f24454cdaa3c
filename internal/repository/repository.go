package repository

import (
	"context"
	"time"

	"github.com/splax/gigboard/internal/domain"
)

// UserRepository persists users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	UpdateUserProfile(ctx context.Context, user *domain.User) error
	SetPayoutAccount(ctx context.Context, userID string, sealed []byte) error
	ListFreelancers(ctx context.Context, skill string, limit, offset int) ([]domain.User, error)
}

// JobRepository persists job postings.
type JobRepository interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJobByID(ctx context.Context, id string) (*domain.Job, error)
	ListJobs(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error)
	UpdateJob(ctx context.Context, job *domain.Job) error
	// TransitionJob moves the job to status "to" only when it is currently "from".
	TransitionJob(ctx context.Context, id string, from, to domain.JobStatus) error
}

// ApplicationRepository persists proposals and the hire transaction.
type ApplicationRepository interface {
	CreateApplication(ctx context.Context, app *domain.Application) error
	GetApplicationByID(ctx context.Context, id string) (*domain.Application, error)
	ListApplicationsByJob(ctx context.Context, jobID string) ([]domain.Application, error)
	ListApplicationsByFreelancer(ctx context.Context, freelancerID string) ([]domain.Application, error)
	TransitionApplication(ctx context.Context, id string, from, to domain.ApplicationStatus) error
	// Hire accepts the application, rejects other pending ones, starts the job
	// and opens the conversation in one transaction.
	Hire(ctx context.Context, applicationID string, conversation domain.Conversation) (*domain.HireResult, error)
}

// MilestoneRepository persists milestones.
type MilestoneRepository interface {
	CreateMilestone(ctx context.Context, milestone *domain.Milestone) error
	GetMilestoneByID(ctx context.Context, id string) (*domain.Milestone, error)
	ListMilestonesByJob(ctx context.Context, jobID string) ([]domain.Milestone, error)
	ListMilestonesByFreelancer(ctx context.Context, freelancerID string) ([]domain.Milestone, error)
	ListMilestonesByClient(ctx context.Context, clientID string) ([]domain.Milestone, error)
	// UpdateMilestone writes status, notes and timestamps when the stored status equals from.
	UpdateMilestone(ctx context.Context, milestone *domain.Milestone, from domain.MilestoneStatus) error
	// CancelOpenMilestones cancels every non-approved milestone of a job.
	CancelOpenMilestones(ctx context.Context, jobID string) (int64, error)
}

// NotificationRepository persists in-app notifications.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
	MarkNotificationRead(ctx context.Context, userID, id string, at time.Time) error
	MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) (int64, error)
	DeleteNotification(ctx context.Context, userID, id string) error
}

// MessageCursor bounds a page to messages strictly before (Before, BeforeID)
// in (created_at, id) order. An empty BeforeID compares on time alone and the
// zero cursor selects the latest page.
type MessageCursor struct {
	Before   time.Time
	BeforeID string
}

// ChatRepository persists conversations and messages.
type ChatRepository interface {
	GetConversationByID(ctx context.Context, id string) (*domain.Conversation, error)
	GetConversationByJob(ctx context.Context, jobID string) (*domain.Conversation, error)
	ListConversationsByUser(ctx context.Context, userID string) ([]domain.Conversation, error)
	// InsertMessage stores msg unless (conversation, client message id) exists,
	// in which case the stored message is returned with created=false.
	InsertMessage(ctx context.Context, msg *domain.Message, recipientID, preview string) (stored *domain.Message, created bool, err error)
	// ListMessages returns up to limit messages before cursor, newest first.
	ListMessages(ctx context.Context, conversationID string, cursor MessageCursor, limit int) ([]domain.Message, error)
	ResetUnread(ctx context.Context, conversationID, userID string) error
	SumUnread(ctx context.Context, userID string) (int, error)
}
