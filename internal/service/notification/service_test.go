package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/realtime"
	"github.com/splax/gigboard/internal/repository"
	"github.com/splax/gigboard/pkg/config"
)

type memoryNotificationRepository struct {
	items map[string]*domain.Notification
}

func newMemoryRepo() *memoryNotificationRepository {
	return &memoryNotificationRepository{items: map[string]*domain.Notification{}}
}

func (m *memoryNotificationRepository) CreateNotification(ctx context.Context, n *domain.Notification) error {
	stored := *n
	m.items[n.ID] = &stored
	return nil
}

func (m *memoryNotificationRepository) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, n := range m.items {
		if n.UserID != userID || (unreadOnly && n.ReadAt != nil) {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryNotificationRepository) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	count := 0
	for _, n := range m.items {
		if n.UserID == userID && n.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (m *memoryNotificationRepository) MarkNotificationRead(ctx context.Context, userID, id string, at time.Time) error {
	n, ok := m.items[id]
	if !ok || n.UserID != userID {
		return repository.ErrNotFound
	}
	if n.ReadAt == nil {
		n.ReadAt = &at
	}
	return nil
}

func (m *memoryNotificationRepository) MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	var count int64
	for _, n := range m.items {
		if n.UserID == userID && n.ReadAt == nil {
			n.ReadAt = &at
			count++
		}
	}
	return count, nil
}

func (m *memoryNotificationRepository) DeleteNotification(ctx context.Context, userID, id string) error {
	n, ok := m.items[id]
	if !ok || n.UserID != userID {
		return repository.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type publishedEvent struct {
	userID    string
	eventType string
	data      any
}

type recordingPublisher struct {
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, userID, eventType string, data any) error {
	p.events = append(p.events, publishedEvent{userID: userID, eventType: eventType, data: data})
	return p.err
}

func newTestService(repo *memoryNotificationRepository, pub Publisher) Service {
	svc := New(repo, pub, slog.New(slog.NewTextHandler(io.Discard, nil)), config.APIConfig{MaxPageSize: 50})
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	return svc
}

func TestNotifyPersistsAndPublishes(t *testing.T) {
	repo := newMemoryRepo()
	pub := &recordingPublisher{}
	svc := newTestService(repo, pub)

	n, err := svc.Notify(context.Background(), domain.NotificationInput{
		UserID:   "client-1",
		Type:     domain.NotifyApplicationReceived,
		Title:    " New proposal ",
		Link:     "/jobs/job-1",
		Metadata: map[string]any{"job_id": "job-1"},
	})
	require.NoError(t, err)
	require.Equal(t, "New proposal", n.Title)
	require.Contains(t, repo.items, n.ID)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(n.Metadata, &meta))
	require.Equal(t, "job-1", meta["job_id"])

	require.Len(t, pub.events, 1)
	require.Equal(t, realtime.EventNotificationCreated, pub.events[0].eventType)
	require.Equal(t, "client-1", pub.events[0].userID)
}

func TestNotifyValidatesInput(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)
	_, err := svc.Notify(context.Background(), domain.NotificationInput{Type: "x", Title: "y"})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "user_id", verr.Field)

	_, err = svc.Notify(context.Background(), domain.NotificationInput{UserID: "u", Type: "x"})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "title", verr.Field)
}

func TestNotifySurvivesPublishFailure(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &recordingPublisher{err: errors.New("hub closed")})
	_, err := svc.Notify(context.Background(), domain.NotificationInput{UserID: "u", Type: domain.NotifyMessage, Title: "hi"})
	require.NoError(t, err)
	require.Len(t, repo.items, 1)
}

func TestMarkReadIsIdempotentAndScoped(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	n, err := svc.Notify(context.Background(), domain.NotificationInput{UserID: "u1", Type: domain.NotifyMessage, Title: "hi"})
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(context.Background(), "u1", n.ID))
	first := *repo.items[n.ID].ReadAt
	require.NoError(t, svc.MarkRead(context.Background(), "u1", n.ID))
	require.True(t, repo.items[n.ID].ReadAt.Equal(first))

	require.ErrorIs(t, svc.MarkRead(context.Background(), "u2", n.ID), repository.ErrNotFound)
	require.ErrorIs(t, svc.Delete(context.Background(), "u2", n.ID), repository.ErrNotFound)
}

func TestMarkAllReadCountsAndPublishes(t *testing.T) {
	repo := newMemoryRepo()
	pub := &recordingPublisher{}
	svc := newTestService(repo, pub)
	for i := 0; i < 3; i++ {
		_, err := svc.Notify(context.Background(), domain.NotificationInput{UserID: "u1", Type: domain.NotifyMessage, Title: "hi"})
		require.NoError(t, err)
	}
	_, err := svc.Notify(context.Background(), domain.NotificationInput{UserID: "u2", Type: domain.NotifyMessage, Title: "other"})
	require.NoError(t, err)

	unread, err := svc.UnreadCount(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 3, unread)

	count, err := svc.MarkAllRead(context.Background(), "u1")
	require.NoError(t, err)
	require.EqualValues(t, 3, count)
	last := pub.events[len(pub.events)-1]
	require.Equal(t, realtime.EventNotificationReadAll, last.eventType)

	unreadOnly, err := svc.List(context.Background(), "u1", true, 10, 0)
	require.NoError(t, err)
	require.Empty(t, unreadOnly)

	all, err := svc.List(context.Background(), "u1", false, 2, -5)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.True(t, all[0].CreatedAt.After(all[1].CreatedAt))
}
