package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	MessageKindText   = "text"
	MessageKindImage  = "image"
	MessageKindSystem = "system"
)

// MaxMessageLength is the upper bound on message content, in runes.
const MaxMessageLength = 2000

// Message is a single chat message. The id and created timestamp are
// assigned by the sending client so that the realtime echo of its own
// insert can be recognized and deduplicated.
type Message struct {
	ID             uuid.UUID         `json:"id"`
	ConversationID uuid.UUID         `json:"conversation_id"`
	SenderID       uuid.UUID         `json:"sender_id"`
	Kind           string            `json:"kind"`
	Content        string            `json:"content"`
	MediaURL       *string           `json:"media_url,omitempty"`
	SourceLanguage string            `json:"source_language"`
	Translations   map[string]string `json:"translations,omitempty"`
	ReadBy         []uuid.UUID       `json:"read_by,omitempty"`
	DeletedAt      *time.Time        `json:"-"`
	CreatedAt      time.Time         `json:"created_at"`
	// Joined fields
	SenderUsername    string `json:"sender_username,omitempty"`
	SenderDisplayName string `json:"sender_display_name,omitempty"`
}

// TranslationFor returns the translation for lang, if one exists.
// The source language never has an entry.
func (m *Message) TranslationFor(lang string) (string, bool) {
	if m.Translations == nil {
		return "", false
	}
	text, ok := m.Translations[lang]
	return text, ok
}

// Clone returns a deep copy so callers can hand messages across
// goroutine boundaries without sharing the translations map.
func (m *Message) Clone() *Message {
	cp := *m
	if m.Translations != nil {
		cp.Translations = make(map[string]string, len(m.Translations))
		for k, v := range m.Translations {
			cp.Translations[k] = v
		}
	}
	if m.ReadBy != nil {
		cp.ReadBy = append([]uuid.UUID(nil), m.ReadBy...)
	}
	return &cp
}
