package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kaiwa-chat/kaiwa/internal/domain"
	"github.com/kaiwa-chat/kaiwa/internal/repository"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotMember            = errors.New("not a member of this conversation")
)

type ConversationService struct {
	conversationRepo repository.ConversationRepository
	userRepo         repository.UserRepository
}

func NewConversationService(conversationRepo repository.ConversationRepository, userRepo repository.UserRepository) *ConversationService {
	return &ConversationService{
		conversationRepo: conversationRepo,
		userRepo:         userRepo,
	}
}

type CreateConversationInput struct {
	Type      string      `json:"type"`
	Name      *string     `json:"name,omitempty"`
	MemberIDs []uuid.UUID `json:"member_ids"`
}

// Create starts a conversation. Direct conversations are deduplicated:
// creating one that already exists between the two users returns the
// existing conversation.
func (s *ConversationService) Create(ctx context.Context, creatorID uuid.UUID, input CreateConversationInput) (*domain.Conversation, error) {
	if input.Type == domain.ConversationTypeDirect && len(input.MemberIDs) == 1 {
		existing, err := s.conversationRepo.GetDirectByUsers(ctx, creatorID, input.MemberIDs[0])
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	now := time.Now()
	conv := &domain.Conversation{
		ID:        uuid.New(),
		Type:      input.Type,
		Name:      input.Name,
		CreatedBy: creatorID,
		CreatedAt: now,
	}

	if err := s.conversationRepo.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	for _, userID := range append([]uuid.UUID{creatorID}, input.MemberIDs...) {
		member := &domain.ConversationMember{
			ConversationID: conv.ID,
			UserID:         userID,
			JoinedAt:       now,
		}
		if err := s.conversationRepo.AddMember(ctx, member); err != nil {
			return nil, fmt.Errorf("adding member: %w", err)
		}
	}

	return conv, nil
}

func (s *ConversationService) Get(ctx context.Context, userID, conversationID uuid.UUID) (*domain.Conversation, error) {
	if err := s.checkMembership(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.conversationRepo.GetByID(ctx, conversationID)
}

func (s *ConversationService) List(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	conversations, err := s.conversationRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if conversations == nil {
		conversations = []domain.Conversation{}
	}
	return conversations, nil
}

func (s *ConversationService) ListMembers(ctx context.Context, userID, conversationID uuid.UUID) ([]domain.ConversationMember, error) {
	if err := s.checkMembership(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.conversationRepo.ListMembers(ctx, conversationID)
}

// ParticipantLanguages exposes the fanout data source: every member's
// preferred language for one conversation.
func (s *ConversationService) ParticipantLanguages(ctx context.Context, userID, conversationID uuid.UUID) ([]domain.ParticipantLanguage, error) {
	if err := s.checkMembership(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.conversationRepo.ParticipantLanguages(ctx, conversationID)
}

// MarkRead resets the member's unread counter and stamps last_read_at.
func (s *ConversationService) MarkRead(ctx context.Context, userID, conversationID uuid.UUID) error {
	if err := s.checkMembership(ctx, userID, conversationID); err != nil {
		return err
	}
	return s.conversationRepo.ResetUnread(ctx, conversationID, userID, time.Now())
}

func (s *ConversationService) checkMembership(ctx context.Context, userID, conversationID uuid.UUID) error {
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
