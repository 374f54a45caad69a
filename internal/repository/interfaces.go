package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kaiwa-chat/kaiwa/internal/domain"
)

// ErrDuplicate is returned by Create when a row with the same id already
// exists. Callers that retried an insert treat it as success.
var ErrDuplicate = errors.New("duplicate row")

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdatePreferredLanguage(ctx context.Context, id uuid.UUID, language string) error
}

type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	GetDirectByUsers(ctx context.Context, user1ID, user2ID uuid.UUID) (*domain.Conversation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error)
	AddMember(ctx context.Context, member *domain.ConversationMember) error
	RemoveMember(ctx context.Context, conversationID, userID uuid.UUID) error
	GetMember(ctx context.Context, conversationID, userID uuid.UUID) (*domain.ConversationMember, error)
	ListMembers(ctx context.Context, conversationID uuid.UUID) ([]domain.ConversationMember, error)
	// ParticipantLanguages returns every member's preferred language, for
	// translation fanout.
	ParticipantLanguages(ctx context.Context, conversationID uuid.UUID) ([]domain.ParticipantLanguage, error)
	// IncrementUnread bumps the unread counter for every member except
	// those listed (the sender, plus anyone with the conversation open).
	IncrementUnread(ctx context.Context, conversationID uuid.UUID, except []uuid.UUID) error
	ResetUnread(ctx context.Context, conversationID, userID uuid.UUID, readAt time.Time) error
}

type MessageRepository interface {
	// Create inserts with the client-assigned id and timestamp. Returns
	// ErrDuplicate when the id already exists.
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID, before *uuid.UUID, limit int) ([]domain.Message, error)
	// UpdateTranslations union-merges the given mapping into the message's
	// translations column. A merge into a soft-deleted message is a no-op;
	// the returned message is nil in that case.
	UpdateTranslations(ctx context.Context, id uuid.UUID, translations map[string]string) (*domain.Message, error)
	MarkRead(ctx context.Context, conversationID, userID uuid.UUID) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
}
