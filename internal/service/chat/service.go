package chat

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"log/slog"

	"github.com/google/uuid"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/realtime"
	"github.com/splax/gigboard/internal/repository"
	"github.com/splax/gigboard/pkg/config"
)

const (
	maxBodyLength     = 4000
	previewLength     = 140
	maxClientIDLength = 64
)

// Notifier delivers in-app notifications.
type Notifier interface {
	Notify(ctx context.Context, input domain.NotificationInput) (*domain.Notification, error)
}

// Broker publishes realtime events and answers presence queries.
type Broker interface {
	Publish(ctx context.Context, userID, eventType string, data any) error
	Connected(ctx context.Context, userID string) bool
}

// ConversationView is a conversation as seen by one participant.
type ConversationView struct {
	domain.Conversation
	Unread int `json:"unread"`
}

// Service implements job chat.
type Service struct {
	repo     repository.ChatRepository
	broker   Broker
	notifier Notifier
	logger   *slog.Logger
	cfg      config.APIConfig
	now      func() time.Time
}

// New returns a chat service.
func New(repo repository.ChatRepository, broker Broker, notifier Notifier, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{
		repo:     repo,
		broker:   broker,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ListConversations returns the user's conversations, most recent activity first.
func (s Service) ListConversations(ctx context.Context, userID string) ([]ConversationView, error) {
	convs, err := s.repo.ListConversationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]ConversationView, 0, len(convs))
	for _, c := range convs {
		views = append(views, ConversationView{Conversation: c, Unread: c.UnreadFor(userID)})
	}
	return views, nil
}

// Send posts a message. A repeated clientMessageID returns the stored message
// with created=false and publishes nothing.
func (s Service) Send(ctx context.Context, senderID, conversationID, clientMessageID, body string) (*domain.Message, bool, error) {
	conv, err := s.participant(ctx, senderID, conversationID)
	if err != nil {
		return nil, false, err
	}
	body = strings.TrimSpace(body)
	if n := utf8.RuneCountInString(body); n == 0 || n > maxBodyLength {
		return nil, false, domain.Invalid("body", "message must be 1-4000 characters")
	}
	clientMessageID = strings.TrimSpace(clientMessageID)
	if len(clientMessageID) > maxClientIDLength {
		return nil, false, domain.Invalid("client_message_id", "client message id is too long")
	}
	recipientID := conv.Other(senderID)
	msg := &domain.Message{
		ID:              uuid.NewString(),
		ConversationID:  conv.ID,
		SenderID:        senderID,
		ClientMessageID: clientMessageID,
		Body:            body,
		CreatedAt:       s.now(),
	}
	stored, created, err := s.repo.InsertMessage(ctx, msg, recipientID, Preview(body))
	if err != nil {
		return nil, false, err
	}
	if !created {
		s.logger.Debug("duplicate message suppressed", "conversation_id", conv.ID, "client_message_id", clientMessageID)
		return stored, false, nil
	}
	for _, userID := range []string{senderID, recipientID} {
		s.publish(ctx, userID, realtime.EventMessageCreated, stored)
	}
	if s.broker == nil || !s.broker.Connected(ctx, recipientID) {
		s.notify(ctx, domain.NotificationInput{
			UserID:   recipientID,
			Type:     domain.NotifyMessage,
			Title:    "New message",
			Body:     Preview(body),
			Link:     "/conversations/" + conv.ID,
			Metadata: map[string]any{"conversation_id": conv.ID, "message_id": stored.ID, "job_id": conv.JobID},
		})
	}
	return stored, true, nil
}

// Messages returns one page of history, oldest first. The cursor names the
// oldest message of the previous page; the zero cursor means the latest page.
func (s Service) Messages(ctx context.Context, userID, conversationID string, cursor repository.MessageCursor, limit int) ([]domain.Message, error) {
	if _, err := s.participant(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	msgs, err := s.repo.ListMessages(ctx, conversationID, cursor, s.cfg.PageLimit(limit, 50))
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MarkRead zeroes the caller's unread counter and tells the other participant.
func (s Service) MarkRead(ctx context.Context, userID, conversationID string) error {
	conv, err := s.participant(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	if err := s.repo.ResetUnread(ctx, conv.ID, userID); err != nil {
		return err
	}
	s.publish(ctx, conv.Other(userID), realtime.EventConversationRead, map[string]any{
		"conversation_id": conv.ID,
		"reader_id":       userID,
		"read_at":         s.now(),
	})
	return nil
}

// UnreadTotal sums unread messages across the user's conversations.
func (s Service) UnreadTotal(ctx context.Context, userID string) (int, error) {
	return s.repo.SumUnread(ctx, userID)
}

func (s Service) participant(ctx context.Context, userID, conversationID string) (*domain.Conversation, error) {
	conv, err := s.repo.GetConversationByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, domain.ErrForbidden
	}
	return conv, nil
}

func (s Service) publish(ctx context.Context, userID, eventType string, data any) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, userID, eventType, data); err != nil {
		s.logger.Warn("failed to publish chat event", "error", err, "user_id", userID, "type", eventType)
	}
}

func (s Service) notify(ctx context.Context, input domain.NotificationInput) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, input); err != nil {
		s.logger.Warn("failed to send notification", "error", err, "user_id", input.UserID)
	}
}

// Preview truncates body to the conversation preview length.
func Preview(body string) string {
	if utf8.RuneCountInString(body) <= previewLength {
		return body
	}
	runes := []rune(body)
	return string(runes[:previewLength])
}
