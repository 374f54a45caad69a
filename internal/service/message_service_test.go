package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiwa-chat/kaiwa/internal/domain"
	"github.com/kaiwa-chat/kaiwa/internal/repository"
)

type memMessageRepo struct {
	messages map[uuid.UUID]*domain.Message
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{messages: make(map[uuid.UUID]*domain.Message)}
}

func (r *memMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	if _, ok := r.messages[msg.ID]; ok {
		return repository.ErrDuplicate
	}
	r.messages[msg.ID] = msg.Clone()
	return nil
}

func (r *memMessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	msg, ok := r.messages[id]
	if !ok {
		return nil, nil
	}
	return msg.Clone(), nil
}

func (r *memMessageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID, before *uuid.UUID, limit int) ([]domain.Message, error) {
	var out []domain.Message
	for _, msg := range r.messages {
		if msg.ConversationID == conversationID && msg.DeletedAt == nil {
			out = append(out, *msg.Clone())
		}
	}
	return out, nil
}

func (r *memMessageRepo) UpdateTranslations(ctx context.Context, id uuid.UUID, translations map[string]string) (*domain.Message, error) {
	msg, ok := r.messages[id]
	if !ok || msg.DeletedAt != nil {
		return nil, nil
	}
	if msg.Translations == nil {
		msg.Translations = make(map[string]string)
	}
	for lang, text := range translations {
		msg.Translations[lang] = text
	}
	return msg.Clone(), nil
}

func (r *memMessageRepo) MarkRead(ctx context.Context, conversationID, userID uuid.UUID) error {
	return nil
}

func (r *memMessageRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	if msg, ok := r.messages[id]; ok {
		now := time.Now()
		msg.DeletedAt = &now
	}
	return nil
}

type memConversationRepo struct {
	conv       *domain.Conversation
	members    []domain.ConversationMember
	unreadFor  map[uuid.UUID]int
	lastExcept []uuid.UUID
}

func newMemConversationRepo(memberIDs ...uuid.UUID) *memConversationRepo {
	conv := &domain.Conversation{ID: uuid.New(), Type: domain.ConversationTypeGroup}
	r := &memConversationRepo{conv: conv, unreadFor: make(map[uuid.UUID]int)}
	for _, id := range memberIDs {
		r.members = append(r.members, domain.ConversationMember{
			ConversationID: conv.ID,
			UserID:         id,
		})
	}
	return r
}

func (r *memConversationRepo) Create(ctx context.Context, conv *domain.Conversation) error {
	return nil
}

func (r *memConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	if id != r.conv.ID {
		return nil, nil
	}
	return r.conv, nil
}

func (r *memConversationRepo) GetDirectByUsers(ctx context.Context, user1ID, user2ID uuid.UUID) (*domain.Conversation, error) {
	return nil, nil
}

func (r *memConversationRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	return []domain.Conversation{*r.conv}, nil
}

func (r *memConversationRepo) AddMember(ctx context.Context, member *domain.ConversationMember) error {
	return nil
}

func (r *memConversationRepo) RemoveMember(ctx context.Context, conversationID, userID uuid.UUID) error {
	return nil
}

func (r *memConversationRepo) GetMember(ctx context.Context, conversationID, userID uuid.UUID) (*domain.ConversationMember, error) {
	for i := range r.members {
		if r.members[i].UserID == userID {
			return &r.members[i], nil
		}
	}
	return nil, nil
}

func (r *memConversationRepo) ListMembers(ctx context.Context, conversationID uuid.UUID) ([]domain.ConversationMember, error) {
	return r.members, nil
}

func (r *memConversationRepo) ParticipantLanguages(ctx context.Context, conversationID uuid.UUID) ([]domain.ParticipantLanguage, error) {
	return nil, nil
}

func (r *memConversationRepo) IncrementUnread(ctx context.Context, conversationID uuid.UUID, except []uuid.UUID) error {
	r.lastExcept = except
	skip := make(map[uuid.UUID]bool, len(except))
	for _, id := range except {
		skip[id] = true
	}
	for _, m := range r.members {
		if !skip[m.UserID] {
			r.unreadFor[m.UserID]++
		}
	}
	return nil
}

func (r *memConversationRepo) ResetUnread(ctx context.Context, conversationID, userID uuid.UUID, readAt time.Time) error {
	r.unreadFor[userID] = 0
	return nil
}

type recordingNotifier struct {
	newMessages        []*domain.Message
	translatedMessages []*domain.Message
	deleted            []uuid.UUID
}

func (n *recordingNotifier) NotifyNewMessage(msg *domain.Message) {
	n.newMessages = append(n.newMessages, msg)
}

func (n *recordingNotifier) NotifyTranslatedMessage(msg *domain.Message) {
	n.translatedMessages = append(n.translatedMessages, msg)
}

func (n *recordingNotifier) NotifyDeletedMessage(conversationID, messageID uuid.UUID) {
	n.deleted = append(n.deleted, messageID)
}

type stubPresence struct {
	active map[uuid.UUID]uuid.UUID
}

func (p *stubPresence) ActiveConversation(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	return p.active[userID], nil
}

func newTestMessage(conversationID, senderID uuid.UUID) *domain.Message {
	return &domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Kind:           domain.MessageKindText,
		Content:        "こんにちは",
		SourceLanguage: "ja",
		CreatedAt:      time.Now(),
	}
}

func TestMessageServiceSend(t *testing.T) {
	sender := uuid.New()
	reader := uuid.New()
	convRepo := newMemConversationRepo(sender, reader)
	msgRepo := newMemMessageRepo()
	notifier := &recordingNotifier{}

	svc := NewMessageService(msgRepo, convRepo, zerolog.Nop())
	svc.SetNotifier(notifier)

	msg := newTestMessage(convRepo.conv.ID, sender)
	got, err := svc.Send(context.Background(), sender, msg)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, got.ID)

	// The insert is fanned out, including to the sender.
	require.Len(t, notifier.newMessages, 1)
	assert.Equal(t, msg.ID, notifier.newMessages[0].ID)

	// Unread bumped for the reader, never the sender.
	assert.Equal(t, 1, convRepo.unreadFor[reader])
	assert.Zero(t, convRepo.unreadFor[sender])
}

func TestMessageServiceSendRetriedInsertIsIdempotent(t *testing.T) {
	sender := uuid.New()
	convRepo := newMemConversationRepo(sender)
	msgRepo := newMemMessageRepo()
	notifier := &recordingNotifier{}

	svc := NewMessageService(msgRepo, convRepo, zerolog.Nop())
	svc.SetNotifier(notifier)

	msg := newTestMessage(convRepo.conv.ID, sender)
	first, err := svc.Send(context.Background(), sender, msg)
	require.NoError(t, err)

	second, err := svc.Send(context.Background(), sender, msg)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// The retry is absorbed: no second feed event, no second unread bump.
	assert.Len(t, notifier.newMessages, 1)
	assert.Len(t, msgRepo.messages, 1)
}

func TestMessageServiceSendRejectsForeignDuplicateID(t *testing.T) {
	sender := uuid.New()
	impostor := uuid.New()
	convRepo := newMemConversationRepo(sender, impostor)
	msgRepo := newMemMessageRepo()

	svc := NewMessageService(msgRepo, convRepo, zerolog.Nop())

	msg := newTestMessage(convRepo.conv.ID, sender)
	_, err := svc.Send(context.Background(), sender, msg)
	require.NoError(t, err)

	stolen := msg.Clone()
	stolen.SenderID = impostor
	_, err = svc.Send(context.Background(), impostor, stolen)
	assert.ErrorIs(t, err, ErrDuplicateSend)
}

func TestMessageServiceSendRequiresMembership(t *testing.T) {
	member := uuid.New()
	outsider := uuid.New()
	convRepo := newMemConversationRepo(member)
	svc := NewMessageService(newMemMessageRepo(), convRepo, zerolog.Nop())

	msg := newTestMessage(convRepo.conv.ID, outsider)
	_, err := svc.Send(context.Background(), outsider, msg)
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestMessageServiceSendSuppressesUnreadForActiveViewer(t *testing.T) {
	sender := uuid.New()
	activeReader := uuid.New()
	idleReader := uuid.New()
	convRepo := newMemConversationRepo(sender, activeReader, idleReader)
	msgRepo := newMemMessageRepo()

	svc := NewMessageService(msgRepo, convRepo, zerolog.Nop())
	svc.SetPresence(&stubPresence{active: map[uuid.UUID]uuid.UUID{
		activeReader: convRepo.conv.ID,
	}})

	msg := newTestMessage(convRepo.conv.ID, sender)
	_, err := svc.Send(context.Background(), sender, msg)
	require.NoError(t, err)

	assert.Zero(t, convRepo.unreadFor[activeReader])
	assert.Equal(t, 1, convRepo.unreadFor[idleReader])
}

func TestMessageServiceMergeTranslations(t *testing.T) {
	sender := uuid.New()
	convRepo := newMemConversationRepo(sender)
	msgRepo := newMemMessageRepo()
	notifier := &recordingNotifier{}

	svc := NewMessageService(msgRepo, convRepo, zerolog.Nop())
	svc.SetNotifier(notifier)

	msg := newTestMessage(convRepo.conv.ID, sender)
	_, err := svc.Send(context.Background(), sender, msg)
	require.NoError(t, err)

	updated, err := svc.MergeTranslations(context.Background(), sender, msg.ID, map[string]string{
		"en": "Hello",
		"ja": "echoed self-translation",
	})
	require.NoError(t, err)

	// The source language never lands in the mapping.
	assert.Equal(t, map[string]string{"en": "Hello"}, updated.Translations)
	require.Len(t, notifier.translatedMessages, 1)

	// Merging again with the same mapping changes nothing.
	again, err := svc.MergeTranslations(context.Background(), sender, msg.ID, map[string]string{"en": "Hello"})
	require.NoError(t, err)
	assert.Equal(t, updated.Translations, again.Translations)
}

func TestMessageServiceMergeTranslationsOnlySender(t *testing.T) {
	sender := uuid.New()
	other := uuid.New()
	convRepo := newMemConversationRepo(sender, other)
	msgRepo := newMemMessageRepo()
	svc := NewMessageService(msgRepo, convRepo, zerolog.Nop())

	msg := newTestMessage(convRepo.conv.ID, sender)
	_, err := svc.Send(context.Background(), sender, msg)
	require.NoError(t, err)

	_, err = svc.MergeTranslations(context.Background(), other, msg.ID, map[string]string{"en": "Hello"})
	assert.ErrorIs(t, err, ErrNotSender)
}

func TestMessageServiceUnsend(t *testing.T) {
	sender := uuid.New()
	convRepo := newMemConversationRepo(sender)
	msgRepo := newMemMessageRepo()
	notifier := &recordingNotifier{}

	svc := NewMessageService(msgRepo, convRepo, zerolog.Nop())
	svc.SetNotifier(notifier)

	msg := newTestMessage(convRepo.conv.ID, sender)
	_, err := svc.Send(context.Background(), sender, msg)
	require.NoError(t, err)

	require.NoError(t, svc.Unsend(context.Background(), sender, msg.ID))
	assert.Equal(t, []uuid.UUID{msg.ID}, notifier.deleted)

	// Unsend is idempotent.
	require.NoError(t, svc.Unsend(context.Background(), sender, msg.ID))
	assert.Len(t, notifier.deleted, 1)

	// A merge racing the unsend is dropped without error or feed event.
	_, err = svc.MergeTranslations(context.Background(), sender, msg.ID, map[string]string{"en": "Hello"})
	require.NoError(t, err)
	assert.Empty(t, notifier.translatedMessages)
}
