package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/repository"
)

const conversationColumns = `id, job_id, client_id, freelancer_id, last_message_at, last_message_preview,
	client_unread, freelancer_unread, created_at`

func scanConversation(row rowScanner) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := row.Scan(
		&c.ID,
		&c.JobID,
		&c.ClientID,
		&c.FreelancerID,
		&c.LastMessageAt,
		&c.LastMessagePreview,
		&c.ClientUnread,
		&c.FreelancerUnread,
		&c.CreatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	var (
		m        domain.Message
		clientID *string
	)
	if err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &clientID, &m.Body, &m.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	if clientID != nil {
		m.ClientMessageID = *clientID
	}
	return &m, nil
}

// GetConversationByID fetches a conversation.
func (r *Repository) GetConversationByID(ctx context.Context, id string) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	return scanConversation(r.pool.QueryRow(ctx, query, id))
}

// GetConversationByJob fetches the conversation attached to a job.
func (r *Repository) GetConversationByJob(ctx context.Context, jobID string) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE job_id = $1`
	return scanConversation(r.pool.QueryRow(ctx, query, jobID))
}

// ListConversationsByUser returns conversations the user takes part in, most recent activity first.
func (r *Repository) ListConversationsByUser(ctx context.Context, userID string) ([]domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations
		WHERE client_id = $1 OR freelancer_id = $1
		ORDER BY COALESCE(last_message_at, created_at) DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	convs := make([]domain.Conversation, 0)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *c)
	}
	return convs, rows.Err()
}

// InsertMessage stores a message and bumps the recipient's unread counter in one transaction.
func (r *Repository) InsertMessage(ctx context.Context, msg *domain.Message, recipientID, preview string) (*domain.Message, bool, error) {
	var (
		stored  *domain.Message
		created bool
	)
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		const insert = `INSERT INTO messages (id, conversation_id, sender_id, client_message_id, body, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (conversation_id, client_message_id) WHERE client_message_id IS NOT NULL DO NOTHING`
		tag, err := tx.Exec(ctx, insert, msg.ID, msg.ConversationID, msg.SenderID, nilIfEmpty(msg.ClientMessageID), msg.Body, msg.CreatedAt)
		if err != nil {
			return mapError(err)
		}
		if tag.RowsAffected() == 0 {
			const existing = `SELECT id, conversation_id, sender_id, client_message_id, body, created_at
				FROM messages WHERE conversation_id = $1 AND client_message_id = $2`
			stored, err = scanMessage(tx.QueryRow(ctx, existing, msg.ConversationID, msg.ClientMessageID))
			return err
		}
		const bump = `UPDATE conversations
			SET last_message_at = $2,
				last_message_preview = $3,
				client_unread = client_unread + CASE WHEN client_id = $4 THEN 1 ELSE 0 END,
				freelancer_unread = freelancer_unread + CASE WHEN freelancer_id = $4 THEN 1 ELSE 0 END
			WHERE id = $1`
		if _, err := tx.Exec(ctx, bump, msg.ConversationID, msg.CreatedAt, preview, recipientID); err != nil {
			return mapError(err)
		}
		copyMsg := *msg
		stored = &copyMsg
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// ListMessages returns up to limit messages before cursor, newest first.
func (r *Repository) ListMessages(ctx context.Context, conversationID string, cursor repository.MessageCursor, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	args := []any{conversationID, limit}
	bound := ""
	switch {
	case cursor.Before.IsZero():
	case cursor.BeforeID == "":
		args = append(args, cursor.Before)
		bound = " AND created_at < $3"
	default:
		args = append(args, cursor.Before, cursor.BeforeID)
		bound = " AND (created_at, id) < ($3, $4::uuid)"
	}
	query := `SELECT id, conversation_id, sender_id, client_message_id, body, created_at
		FROM messages
		WHERE conversation_id = $1` + bound + `
		ORDER BY created_at DESC, id DESC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := make([]domain.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// ResetUnread zeroes the unread counter of the participant.
func (r *Repository) ResetUnread(ctx context.Context, conversationID, userID string) error {
	const query = `UPDATE conversations
		SET client_unread = CASE WHEN client_id = $2 THEN 0 ELSE client_unread END,
			freelancer_unread = CASE WHEN freelancer_id = $2 THEN 0 ELSE freelancer_unread END
		WHERE id = $1 AND (client_id = $2 OR freelancer_id = $2)`
	tag, err := r.pool.Exec(ctx, query, conversationID, userID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SumUnread totals the user's unread counters across conversations.
func (r *Repository) SumUnread(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COALESCE(SUM(CASE WHEN client_id = $1 THEN client_unread ELSE freelancer_unread END), 0)
		FROM conversations WHERE client_id = $1 OR freelancer_id = $1`
	var total int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return total, nil
}
