package domain

import "time"

// Conversation is the chat thread between the two parties of a job.
type Conversation struct {
	ID                 string     `json:"id"`
	JobID              string     `json:"job_id"`
	ClientID           string     `json:"client_id"`
	FreelancerID       string     `json:"freelancer_id"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	LastMessagePreview string     `json:"last_message_preview"`
	ClientUnread       int        `json:"-"`
	FreelancerUnread   int        `json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
}

// HasParticipant reports whether userID belongs to the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.ClientID == userID || c.FreelancerID == userID)
}

// Other returns the participant that is not userID.
func (c Conversation) Other(userID string) string {
	if userID == c.ClientID {
		return c.FreelancerID
	}
	return c.ClientID
}

// UnreadFor returns the unread counter of the given participant.
func (c Conversation) UnreadFor(userID string) int {
	switch userID {
	case c.ClientID:
		return c.ClientUnread
	case c.FreelancerID:
		return c.FreelancerUnread
	}
	return 0
}

// Message is a single chat line.
type Message struct {
	ID              string    `json:"id"`
	ConversationID  string    `json:"conversation_id"`
	SenderID        string    `json:"sender_id"`
	ClientMessageID string    `json:"client_message_id,omitempty"`
	Body            string    `json:"body"`
	CreatedAt       time.Time `json:"created_at"`
}
