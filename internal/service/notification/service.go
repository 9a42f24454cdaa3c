package notification

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/realtime"
	"github.com/splax/gigboard/internal/repository"
	"github.com/splax/gigboard/pkg/config"
)

// Publisher pushes realtime events to a user's streams.
type Publisher interface {
	Publish(ctx context.Context, userID, eventType string, data any) error
}

// Service handles notification persistence and streaming.
type Service struct {
	repo      repository.NotificationRepository
	publisher Publisher
	logger    *slog.Logger
	cfg       config.APIConfig
	now       func() time.Time
}

// New constructs a notification service.
func New(repo repository.NotificationRepository, publisher Publisher, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{repo: repo, publisher: publisher, logger: logger, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// Notify stores a notification and streams it to the recipient.
func (s Service) Notify(ctx context.Context, input domain.NotificationInput) (*domain.Notification, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return nil, domain.Invalid("user_id", "recipient is required")
	}
	if strings.TrimSpace(input.Type) == "" {
		return nil, domain.Invalid("type", "notification type is required")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, domain.Invalid("title", "notification title is required")
	}
	n := &domain.Notification{
		ID:        uuid.NewString(),
		UserID:    input.UserID,
		Type:      input.Type,
		Title:     strings.TrimSpace(input.Title),
		Body:      strings.TrimSpace(input.Body),
		Link:      input.Link,
		CreatedAt: s.now(),
	}
	if len(input.Metadata) > 0 {
		raw, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, err
		}
		n.Metadata = raw
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return nil, err
	}
	s.publish(ctx, n.UserID, realtime.EventNotificationCreated, n)
	s.logger.Debug("notification created", "user_id", n.UserID, "type", n.Type, "notification_id", n.ID)
	return n, nil
}

// List returns a page of notifications, newest first.
func (s Service) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListNotifications(ctx, userID, unreadOnly, s.cfg.PageLimit(limit, 20), offset)
}

// UnreadCount returns how many notifications the user has not read.
func (s Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.CountUnreadNotifications(ctx, userID)
}

// MarkRead flags one notification as read. Repeated calls succeed.
func (s Service) MarkRead(ctx context.Context, userID, id string) error {
	return s.repo.MarkNotificationRead(ctx, userID, id, s.now())
}

// MarkAllRead flags every unread notification and returns how many changed.
func (s Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	count, err := s.repo.MarkAllNotificationsRead(ctx, userID, s.now())
	if err != nil {
		return 0, err
	}
	s.publish(ctx, userID, realtime.EventNotificationReadAll, map[string]int64{"count": count})
	return count, nil
}

// Delete removes a notification owned by userID.
func (s Service) Delete(ctx context.Context, userID, id string) error {
	return s.repo.DeleteNotification(ctx, userID, id)
}

func (s Service) publish(ctx context.Context, userID, eventType string, data any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, userID, eventType, data); err != nil {
		s.logger.Warn("failed to publish notification event", "error", err, "user_id", userID, "type", eventType)
	}
}
