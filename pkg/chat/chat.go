// Package chat implements the message pipeline: optimistic sends,
// translation fanout, and reconciliation of local state against the
// realtime change feed, for one conversation at a time.
package chat

import (
	"context"

	"github.com/google/uuid"
	"github.com/kaiwa-chat/kaiwa/internal/domain"
)

// MessageStore is the durable message table as the pipeline sees it.
type MessageStore interface {
	// Insert persists a message with its client-assigned id and timestamp.
	// Implementations must report an already-existing id in a way that is
	// success-equivalent when the payload matches (retried inserts).
	Insert(ctx context.Context, msg *domain.Message) error

	// UpdateTranslations union-merges the mapping into the stored message.
	// Applying the same merge twice must leave the row unchanged.
	UpdateTranslations(ctx context.Context, id uuid.UUID, translations map[string]string) error
}

// ParticipantSource reads the conversation's membership for fanout.
type ParticipantSource interface {
	ParticipantLanguages(ctx context.Context, conversationID uuid.UUID) ([]domain.ParticipantLanguage, error)
}

// Translator turns one text into every requested target language in a
// single call. A subset result is valid.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang string, targetLangs []string) (map[string]string, error)
}

// SendState tracks an outgoing message through the pipeline.
type SendState int

const (
	StateUnknown SendState = iota
	StateOptimistic
	StatePersisted
	StateTranslating
	StateTranslated
	StateTranslationSkipped
	StatePersistFailed
)

func (s SendState) String() string {
	switch s {
	case StateOptimistic:
		return "optimistic"
	case StatePersisted:
		return "persisted"
	case StateTranslating:
		return "translating"
	case StateTranslated:
		return "translated"
	case StateTranslationSkipped:
		return "translation_skipped"
	case StatePersistFailed:
		return "persist_failed"
	default:
		return "unknown"
	}
}
