package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	ConversationTypeDirect = "direct"
	ConversationTypeGroup  = "group"
)

type Conversation struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Name      *string   `json:"name,omitempty"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	// Joined fields for listing
	LastMessage *Message `json:"last_message,omitempty"`
	UnreadCount int      `json:"unread_count"`
}

type ConversationMember struct {
	ConversationID uuid.UUID  `json:"conversation_id"`
	UserID         uuid.UUID  `json:"user_id"`
	UnreadCount    int        `json:"unread_count"`
	LastReadAt     *time.Time `json:"last_read_at,omitempty"`
	JoinedAt       time.Time  `json:"joined_at"`
	// Joined fields
	Username          string `json:"username,omitempty"`
	DisplayName       string `json:"display_name,omitempty"`
	PreferredLanguage string `json:"preferred_language,omitempty"`
}

// ParticipantLanguage pairs a conversation member with their preferred
// language, for translation fanout.
type ParticipantLanguage struct {
	UserID   uuid.UUID `json:"user_id"`
	Language string    `json:"language"`
}
