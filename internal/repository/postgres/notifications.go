package postgres

import (
	"context"
	"time"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/repository"
)

// CreateNotification inserts a notification.
func (r *Repository) CreateNotification(ctx context.Context, n *domain.Notification) error {
	const query = `INSERT INTO notifications (id, user_id, type, title, body, link, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.pool.Exec(ctx, query, n.ID, n.UserID, n.Type, n.Title, n.Body, n.Link, bytesToNil(n.Metadata), n.CreatedAt)
	return mapError(err)
}

// ListNotifications returns a user's notifications, newest first.
func (r *Repository) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	limit, offset = clampPage(limit, offset)
	const query = `SELECT id, user_id, type, title, body, link, metadata, read_at, created_at
		FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR read_at IS NULL)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4`
	rows, err := r.pool.Query(ctx, query, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Notification, 0)
	for rows.Next() {
		var (
			n        domain.Notification
			metadata []byte
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.Link, &metadata, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			n.Metadata = append([]byte(nil), metadata...)
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

// CountUnreadNotifications counts notifications without read_at.
func (r *Repository) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(1) FROM notifications WHERE user_id = $1 AND read_at IS NULL`
	var count int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// MarkNotificationRead sets read_at once; already-read notifications are left untouched.
func (r *Repository) MarkNotificationRead(ctx context.Context, userID, id string, at time.Time) error {
	const query = `UPDATE notifications SET read_at = COALESCE(read_at, $3) WHERE id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, query, id, userID, at)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// MarkAllNotificationsRead marks every unread notification of the user.
func (r *Repository) MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	const query = `UPDATE notifications SET read_at = $2 WHERE user_id = $1 AND read_at IS NULL`
	tag, err := r.pool.Exec(ctx, query, userID, at)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteNotification removes a notification owned by the user.
func (r *Repository) DeleteNotification(ctx context.Context, userID, id string) error {
	const query = `DELETE FROM notifications WHERE id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
