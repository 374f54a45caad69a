package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kaiwa-chat/kaiwa/internal/domain"
	"github.com/kaiwa-chat/kaiwa/internal/metrics"
	"github.com/kaiwa-chat/kaiwa/internal/repository"
	"github.com/rs/zerolog"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNotSender       = errors.New("only the message sender can perform this action")
	ErrDuplicateSend   = errors.New("message id already exists")
)

// Notifier broadcasts change-feed events to connected clients.
type Notifier interface {
	NotifyNewMessage(msg *domain.Message)
	NotifyTranslatedMessage(msg *domain.Message)
	NotifyDeletedMessage(conversationID, messageID uuid.UUID)
}

// PresenceReader reports which conversation a user currently has open, so
// unread counts are not bumped for something they are already reading.
type PresenceReader interface {
	ActiveConversation(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
}

type MessageService struct {
	messageRepo      repository.MessageRepository
	conversationRepo repository.ConversationRepository
	notifier         Notifier
	presence         PresenceReader
	logger           zerolog.Logger
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	conversationRepo repository.ConversationRepository,
	logger zerolog.Logger,
) *MessageService {
	return &MessageService{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		logger:           logger,
	}
}

// SetNotifier sets the realtime notifier (optional dependency).
func (s *MessageService) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetPresence sets the presence reader (optional dependency).
func (s *MessageService) SetPresence(p PresenceReader) {
	s.presence = p
}

type SendMessageInput struct {
	// ID and CreatedAt are assigned by the sending client, so its
	// optimistic local entry and the feed echo carry the same identity.
	ID             uuid.UUID `json:"id"`
	Kind           string    `json:"kind"`
	Content        string    `json:"content"`
	MediaURL       *string   `json:"media_url,omitempty"`
	SourceLanguage string    `json:"source_language"`
	CreatedAt      string    `json:"created_at"`
}

type MessageListResponse struct {
	Messages []domain.Message `json:"messages"`
	HasMore  bool             `json:"has_more"`
}

// Send persists a client-built message and fans the insert out on the
// change feed. A duplicate id with a previously accepted payload is a
// retried insert: the stored message is returned as if freshly created.
func (s *MessageService) Send(ctx context.Context, userID uuid.UUID, msg *domain.Message) (*domain.Message, error) {
	if err := s.checkMembership(ctx, userID, msg.ConversationID); err != nil {
		return nil, err
	}

	err := s.messageRepo.Create(ctx, msg)
	if errors.Is(err, repository.ErrDuplicate) {
		existing, getErr := s.messageRepo.GetByID(ctx, msg.ID)
		if getErr != nil {
			return nil, getErr
		}
		if existing == nil || existing.SenderID != userID {
			return nil, ErrDuplicateSend
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	metrics.MessagesSent.WithLabelValues(msg.Kind).Inc()

	// Fetch with sender info joined
	full, err := s.messageRepo.GetByID(ctx, msg.ID)
	if err != nil {
		return nil, err
	}

	s.bumpUnread(ctx, full)

	if s.notifier != nil {
		s.notifier.NotifyNewMessage(full)
	}

	return full, nil
}

// MergeTranslations union-merges translation results into a message and
// fans the update out. Only the sending client dispatches translation, so
// only the sender may merge. Merging into an unsent message is a no-op.
func (s *MessageService) MergeTranslations(ctx context.Context, userID, messageID uuid.UUID, translations map[string]string) (*domain.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	if msg.SenderID != userID {
		return nil, ErrNotSender
	}

	// Self-translation never lands in the mapping.
	delete(translations, msg.SourceLanguage)
	if len(translations) == 0 {
		return msg, nil
	}

	updated, err := s.messageRepo.UpdateTranslations(ctx, messageID, translations)
	if err != nil {
		return nil, fmt.Errorf("merging translations: %w", err)
	}
	if updated == nil {
		// Message was unsent while translation was in flight.
		s.logger.Debug().Stringer("message_id", messageID).Msg("translation merge for deleted message dropped")
		return msg, nil
	}

	metrics.TranslationsMerged.Inc()

	if s.notifier != nil {
		s.notifier.NotifyTranslatedMessage(updated)
	}

	return updated, nil
}

func (s *MessageService) List(ctx context.Context, userID, conversationID uuid.UUID, before *uuid.UUID, limit int) (*MessageListResponse, error) {
	if err := s.checkMembership(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	// Fetch limit+1 to learn whether more remain
	messages, err := s.messageRepo.ListByConversation(ctx, conversationID, before, limit+1)
	if err != nil {
		return nil, err
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[len(messages)-limit:]
	}

	if messages == nil {
		messages = []domain.Message{}
	}

	return &MessageListResponse{
		Messages: messages,
		HasMore:  hasMore,
	}, nil
}

// Unsend soft-deletes a message. Idempotent against a message whose
// translation is still in flight: the later merge finds the deleted row
// and does nothing.
func (s *MessageService) Unsend(ctx context.Context, userID, messageID uuid.UUID) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	if msg.SenderID != userID {
		return ErrNotSender
	}
	if msg.DeletedAt != nil {
		return nil
	}

	if err := s.messageRepo.SoftDelete(ctx, messageID); err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.NotifyDeletedMessage(msg.ConversationID, messageID)
	}

	return nil
}

// bumpUnread increments unread counters, skipping the sender and anyone
// whose active conversation is this one. Presence failures only cost
// suppression, never the message.
func (s *MessageService) bumpUnread(ctx context.Context, msg *domain.Message) {
	except := []uuid.UUID{msg.SenderID}

	if s.presence != nil {
		members, err := s.conversationRepo.ListMembers(ctx, msg.ConversationID)
		if err != nil {
			s.logger.Warn().Err(err).Msg("listing members for unread suppression")
		} else {
			for _, m := range members {
				if m.UserID == msg.SenderID {
					continue
				}
				active, err := s.presence.ActiveConversation(ctx, m.UserID)
				if err != nil {
					continue
				}
				if active == msg.ConversationID {
					except = append(except, m.UserID)
				}
			}
		}
	}

	if err := s.conversationRepo.IncrementUnread(ctx, msg.ConversationID, except); err != nil {
		s.logger.Warn().Err(err).Msg("incrementing unread counts")
	}
}

func (s *MessageService) checkMembership(ctx context.Context, userID, conversationID uuid.UUID) error {
	conv, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv == nil {
		return ErrConversationNotFound
	}

	member, err := s.conversationRepo.GetMember(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrNotMember
	}
	return nil
}
