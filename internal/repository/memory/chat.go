package memory

import (
	"context"
	"sort"
	"time"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/repository"
)

// GetConversationByID fetches a conversation.
func (s *Store) GetConversationByID(_ context.Context, id string) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

// GetConversationByJob fetches the conversation opened for a job.
func (s *Store) GetConversationByJob(_ context.Context, jobID string) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if c.JobID == jobID {
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ListConversationsByUser returns the user's conversations by latest activity.
func (s *Store) ListConversationsByUser(_ context.Context, userID string) ([]domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Conversation, 0)
	for _, c := range s.conversations {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	activity := func(c domain.Conversation) time.Time {
		if c.LastMessageAt != nil {
			return *c.LastMessageAt
		}
		return c.CreatedAt
	}
	sort.Slice(out, func(i, j int) bool { return activity(out[i]).After(activity(out[j])) })
	return out, nil
}

// InsertMessage stores msg unless its client message id was already used.
func (s *Store) InsertMessage(_ context.Context, msg *domain.Message, recipientID, preview string) (*domain.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[msg.ConversationID]
	if !ok {
		return nil, false, repository.ErrNotFound
	}
	if msg.ClientMessageID != "" {
		for _, existing := range s.messages[msg.ConversationID] {
			if existing.ClientMessageID == msg.ClientMessageID {
				found := existing
				return &found, false, nil
			}
		}
	}
	stored := *msg
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], stored)
	at := msg.CreatedAt
	conv.LastMessageAt = &at
	conv.LastMessagePreview = preview
	switch recipientID {
	case conv.ClientID:
		conv.ClientUnread++
	case conv.FreelancerID:
		conv.FreelancerUnread++
	}
	s.conversations[conv.ID] = conv
	return &stored, true, nil
}

// ListMessages returns up to limit messages before cursor, newest first.
func (s *Store) ListMessages(_ context.Context, conversationID string, cursor repository.MessageCursor, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	out := make([]domain.Message, 0)
	for _, m := range s.messages[conversationID] {
		if beforeCursor(m, cursor) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ResetUnread zeroes the participant's unread counter.
func (s *Store) ResetUnread(_ context.Context, conversationID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok || !c.HasParticipant(userID) {
		return repository.ErrNotFound
	}
	if c.ClientID == userID {
		c.ClientUnread = 0
	}
	if c.FreelancerID == userID {
		c.FreelancerUnread = 0
	}
	s.conversations[conversationID] = c
	return nil
}

// SumUnread totals unread counters across the user's conversations.
func (s *Store) SumUnread(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, c := range s.conversations {
		total += c.UnreadFor(userID)
	}
	return total, nil
}

func beforeCursor(m domain.Message, cursor repository.MessageCursor) bool {
	switch {
	case cursor.Before.IsZero():
		return true
	case m.CreatedAt.Before(cursor.Before):
		return true
	case cursor.BeforeID != "" && m.CreatedAt.Equal(cursor.Before):
		return m.ID < cursor.BeforeID
	}
	return false
}
