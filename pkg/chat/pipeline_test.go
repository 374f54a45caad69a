package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiwa-chat/kaiwa/internal/domain"
)

type fakeStore struct {
	mu           sync.Mutex
	inserted     []*domain.Message
	insertErr    error
	merged       map[uuid.UUID]map[string]string
	mergeErr     error
	mergeCalls   int
	insertedOnce map[uuid.UUID]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		merged:       make(map[uuid.UUID]map[string]string),
		insertedOnce: make(map[uuid.UUID]bool),
	}
}

func (s *fakeStore) Insert(ctx context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	if s.insertedOnce[msg.ID] {
		return ErrConflict
	}
	s.insertedOnce[msg.ID] = true
	s.inserted = append(s.inserted, msg)
	return nil
}

func (s *fakeStore) UpdateTranslations(ctx context.Context, id uuid.UUID, translations map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mergeErr != nil {
		return s.mergeErr
	}
	s.mergeCalls++
	existing := s.merged[id]
	if existing == nil {
		existing = make(map[string]string)
		s.merged[id] = existing
	}
	for lang, text := range translations {
		existing[lang] = text
	}
	return nil
}

type fakeParticipants struct {
	mu        sync.Mutex
	languages []domain.ParticipantLanguage
	err       error
}

func (f *fakeParticipants) ParticipantLanguages(ctx context.Context, conversationID uuid.UUID) ([]domain.ParticipantLanguage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.languages, nil
}

type fakeTranslator struct {
	mu      sync.Mutex
	calls   [][]string
	results map[string]string
	err     error
}

func (f *fakeTranslator) Translate(ctx context.Context, text, sourceLang string, targetLangs []string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, targetLangs)
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]string, len(targetLangs))
	for _, lang := range targetLangs {
		if text, ok := f.results[lang]; ok {
			out[lang] = text
		}
	}
	return out, nil
}

func (f *fakeTranslator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func participant(lang string) domain.ParticipantLanguage {
	return domain.ParticipantLanguage{UserID: uuid.New(), Language: lang}
}

func testPipeline(t *testing.T, store *fakeStore, participants *fakeParticipants, translator *fakeTranslator) *Pipeline {
	t.Helper()
	return NewPipeline(PipelineConfig{
		ConversationID: uuid.New(),
		SenderID:       uuid.New(),
		SenderLanguage: "ja",
		Store:          store,
		Participants:   participants,
		Translator:     translator,
	})
}

func TestSendOptimisticAppendBeforePersist(t *testing.T) {
	store := newFakeStore()
	store.insertErr = errors.New("connection refused")
	participants := &fakeParticipants{}
	translator := &fakeTranslator{}
	p := testPipeline(t, store, participants, translator)

	msg, err := p.Send(context.Background(), "こんにちは")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersist)

	// Persist failed but the optimistic entry is retained.
	messages := p.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, msg.ID, messages[0].ID)
	assert.Equal(t, "こんにちは", messages[0].Content)
	assert.Equal(t, StatePersistFailed, p.State(msg.ID))
}

func TestSendValidation(t *testing.T) {
	store := newFakeStore()
	p := testPipeline(t, store, &fakeParticipants{}, &fakeTranslator{})

	_, err := p.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrValidation)

	long := make([]rune, domain.MaxMessageLength+1)
	for i := range long {
		long[i] = 'あ'
	}
	_, err = p.Send(context.Background(), string(long))
	assert.ErrorIs(t, err, ErrValidation)

	assert.Empty(t, p.Messages())
	assert.Empty(t, store.inserted)
}

func TestSendTranslatesOnceForWholeTargetSet(t *testing.T) {
	store := newFakeStore()
	participants := &fakeParticipants{languages: []domain.ParticipantLanguage{
		participant("ja"),
		participant("en"),
		participant("en"),
		participant("zh"),
	}}
	translator := &fakeTranslator{results: map[string]string{
		"en": "Hello",
		"zh": "你好",
	}}
	p := testPipeline(t, store, participants, translator)

	msg, err := p.Send(context.Background(), "こんにちは")
	require.NoError(t, err)
	p.Wait()

	// One call, covering both distinct non-source languages.
	require.Equal(t, 1, translator.callCount())
	assert.Equal(t, []string{"en", "zh"}, translator.calls[0])

	assert.Equal(t, map[string]string{"en": "Hello", "zh": "你好"}, store.merged[msg.ID])
	assert.Equal(t, StateTranslated, p.State(msg.ID))

	messages := p.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "Hello", messages[0].Translations["en"])
}

func TestSendSkipsTranslationWhenAllShareLanguage(t *testing.T) {
	store := newFakeStore()
	participants := &fakeParticipants{languages: []domain.ParticipantLanguage{
		participant("ja"),
		participant("ja"),
	}}
	translator := &fakeTranslator{}
	p := testPipeline(t, store, participants, translator)

	msg, err := p.Send(context.Background(), "おはよう")
	require.NoError(t, err)
	p.Wait()

	assert.Zero(t, translator.callCount())
	assert.Equal(t, StateTranslationSkipped, p.State(msg.ID))
	assert.Empty(t, store.merged[msg.ID])
}

func TestSendDeliversUntranslatedOnFanoutFailure(t *testing.T) {
	store := newFakeStore()
	participants := &fakeParticipants{err: errors.New("membership lookup down")}
	translator := &fakeTranslator{}
	p := testPipeline(t, store, participants, translator)

	msg, err := p.Send(context.Background(), "こんにちは")
	require.NoError(t, err)
	p.Wait()

	// The message persisted; only translation was skipped.
	require.Len(t, store.inserted, 1)
	assert.Zero(t, translator.callCount())
	assert.Equal(t, StateTranslationSkipped, p.State(msg.ID))
}

func TestSendDeliversUntranslatedOnTranslatorFailure(t *testing.T) {
	store := newFakeStore()
	participants := &fakeParticipants{languages: []domain.ParticipantLanguage{
		participant("ja"),
		participant("en"),
	}}
	translator := &fakeTranslator{err: errors.New("backend overloaded")}
	p := testPipeline(t, store, participants, translator)

	msg, err := p.Send(context.Background(), "こんにちは")
	require.NoError(t, err)
	p.Wait()

	assert.Equal(t, StateTranslationSkipped, p.State(msg.ID))
	assert.Empty(t, store.merged[msg.ID])

	messages := p.Messages()
	require.Len(t, messages, 1)
	assert.Empty(t, messages[0].Translations)
}

func TestSendToleratesDuplicateInsert(t *testing.T) {
	store := newFakeStore()
	participants := &fakeParticipants{languages: []domain.ParticipantLanguage{participant("en")}}
	translator := &fakeTranslator{results: map[string]string{"en": "Hello"}}
	p := testPipeline(t, store, participants, translator)

	store.insertErr = ErrConflict
	msg, err := p.Send(context.Background(), "こんにちは")
	require.NoError(t, err)
	p.Wait()

	assert.Equal(t, StateTranslated, p.State(msg.ID))
}

func TestRetryTranslation(t *testing.T) {
	store := newFakeStore()
	participants := &fakeParticipants{languages: []domain.ParticipantLanguage{
		participant("ja"),
		participant("en"),
	}}
	translator := &fakeTranslator{err: errors.New("backend overloaded")}
	p := testPipeline(t, store, participants, translator)

	msg, err := p.Send(context.Background(), "こんにちは")
	require.NoError(t, err)
	p.Wait()
	require.Equal(t, StateTranslationSkipped, p.State(msg.ID))

	translator.mu.Lock()
	translator.err = nil
	translator.results = map[string]string{"en": "Hello"}
	translator.mu.Unlock()

	require.NoError(t, p.RetryTranslation(msg.ID))
	p.Wait()

	assert.Equal(t, StateTranslated, p.State(msg.ID))
	assert.Equal(t, "Hello", store.merged[msg.ID]["en"])

	assert.ErrorIs(t, p.RetryTranslation(uuid.New()), ErrUnknownMessage)
}

func TestObserveRemoteInsertDeduplicatesById(t *testing.T) {
	store := newFakeStore()
	p := testPipeline(t, store, &fakeParticipants{}, &fakeTranslator{})

	remote := &domain.Message{
		ID:             uuid.New(),
		ConversationID: uuid.New(),
		SenderID:       uuid.New(),
		Kind:           domain.MessageKindText,
		Content:        "Hi there",
		SourceLanguage: "en",
		CreatedAt:      time.Now(),
	}

	p.ObserveRemoteInsert(remote)
	p.ObserveRemoteInsert(remote)

	assert.Len(t, p.Messages(), 1)
}

func TestObserveRemoteInsertDropsEchoOfLocalSend(t *testing.T) {
	store := newFakeStore()
	participants := &fakeParticipants{}
	p := testPipeline(t, store, participants, &fakeTranslator{})

	msg, err := p.Send(context.Background(), "こんにちは")
	require.NoError(t, err)
	p.Wait()

	// The feed echoes the sender's own insert back.
	echo := msg.Clone()
	p.ObserveRemoteInsert(echo)

	assert.Len(t, p.Messages(), 1)
}

func TestObserveRemoteUpdateReplacesTranslations(t *testing.T) {
	store := newFakeStore()
	p := testPipeline(t, store, &fakeParticipants{}, &fakeTranslator{})

	id := uuid.New()
	p.ObserveRemoteInsert(&domain.Message{
		ID:             id,
		Kind:           domain.MessageKindText,
		Content:        "こんにちは",
		SourceLanguage: "ja",
		CreatedAt:      time.Now(),
	})
	p.ObserveRemoteUpdate(id, map[string]string{"en": "Hello"})
	p.ObserveRemoteUpdate(id, map[string]string{"en": "Hello", "zh": "你好"})

	messages := p.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, map[string]string{"en": "Hello", "zh": "你好"}, messages[0].Translations)
}

func TestObserveRemoteUpdateBuffersUntilInsertArrives(t *testing.T) {
	store := newFakeStore()
	p := testPipeline(t, store, &fakeParticipants{}, &fakeTranslator{})

	id := uuid.New()

	// Update races ahead of its insert on the feed.
	p.ObserveRemoteUpdate(id, map[string]string{"en": "Hello"})
	assert.Empty(t, p.Messages())

	p.ObserveRemoteInsert(&domain.Message{
		ID:             id,
		Kind:           domain.MessageKindText,
		Content:        "こんにちは",
		SourceLanguage: "ja",
		CreatedAt:      time.Now(),
	})

	messages := p.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "Hello", messages[0].Translations["en"])
}

func TestPendingUpdateBufferIsBounded(t *testing.T) {
	store := newFakeStore()
	p := testPipeline(t, store, &fakeParticipants{}, &fakeTranslator{})

	oldest := uuid.New()
	p.ObserveRemoteUpdate(oldest, map[string]string{"en": "dropped"})
	for i := 0; i < maxPendingUpdates; i++ {
		p.ObserveRemoteUpdate(uuid.New(), map[string]string{"en": "x"})
	}

	// The oldest entry was evicted, so its late insert stays untranslated.
	p.ObserveRemoteInsert(&domain.Message{
		ID:             oldest,
		Kind:           domain.MessageKindText,
		Content:        "hi",
		SourceLanguage: "ja",
		CreatedAt:      time.Now(),
	})

	messages := p.Messages()
	require.Len(t, messages, 1)
	assert.Empty(t, messages[0].Translations)
}

func TestLoadReplacesStateAndFlushesPending(t *testing.T) {
	store := newFakeStore()
	p := testPipeline(t, store, &fakeParticipants{}, &fakeTranslator{})

	stale := &domain.Message{ID: uuid.New(), Kind: domain.MessageKindText, Content: "old", CreatedAt: time.Now()}
	p.ObserveRemoteInsert(stale)

	id := uuid.New()
	p.ObserveRemoteUpdate(id, map[string]string{"en": "Hello"})

	base := time.Now()
	p.Load([]domain.Message{
		{ID: uuid.New(), Kind: domain.MessageKindText, Content: "first", CreatedAt: base},
		{ID: id, Kind: domain.MessageKindText, Content: "こんにちは", SourceLanguage: "ja", CreatedAt: base.Add(time.Second)},
	})

	messages := p.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "first", messages[0].Content)
	assert.Equal(t, "Hello", messages[1].Translations["en"])
}

func TestMessagesOrderedByCreatedAt(t *testing.T) {
	store := newFakeStore()
	p := testPipeline(t, store, &fakeParticipants{}, &fakeTranslator{})

	base := time.Now()
	late := &domain.Message{ID: uuid.New(), Kind: domain.MessageKindText, Content: "third", CreatedAt: base.Add(2 * time.Second)}
	early := &domain.Message{ID: uuid.New(), Kind: domain.MessageKindText, Content: "first", CreatedAt: base}
	mid := &domain.Message{ID: uuid.New(), Kind: domain.MessageKindText, Content: "second", CreatedAt: base.Add(time.Second)}

	p.ObserveRemoteInsert(late)
	p.ObserveRemoteInsert(early)
	p.ObserveRemoteInsert(mid)

	messages := p.Messages()
	require.Len(t, messages, 3)
	assert.Equal(t, "first", messages[0].Content)
	assert.Equal(t, "second", messages[1].Content)
	assert.Equal(t, "third", messages[2].Content)
}

func TestCloseStopsFeedApplication(t *testing.T) {
	store := newFakeStore()
	p := testPipeline(t, store, &fakeParticipants{}, &fakeTranslator{})

	p.Close()
	p.ObserveRemoteInsert(&domain.Message{ID: uuid.New(), Kind: domain.MessageKindText, Content: "late", CreatedAt: time.Now()})

	assert.Empty(t, p.Messages())
}

// Two pipelines against one store, exercising the full send and reconcile
// round trip the way two connected clients would see it.
func TestTwoViewersEndToEnd(t *testing.T) {
	store := newFakeStore()
	participants := &fakeParticipants{languages: []domain.ParticipantLanguage{
		participant("ja"),
		participant("en"),
	}}
	translator := &fakeTranslator{results: map[string]string{"en": "Hello"}}

	conversationID := uuid.New()
	sender := NewPipeline(PipelineConfig{
		ConversationID: conversationID,
		SenderID:       uuid.New(),
		SenderLanguage: "ja",
		Store:          store,
		Participants:   participants,
		Translator:     translator,
	})
	receiver := NewPipeline(PipelineConfig{
		ConversationID: conversationID,
		SenderID:       uuid.New(),
		SenderLanguage: "en",
		Store:          store,
		Participants:   participants,
		Translator:     translator,
	})

	msg, err := sender.Send(context.Background(), "こんにちは")
	require.NoError(t, err)
	sender.Wait()

	// Feed delivery: insert, then the merged translation mapping.
	receiver.ObserveRemoteInsert(msg)
	receiver.ObserveRemoteUpdate(msg.ID, store.merged[msg.ID])

	got := receiver.Messages()
	require.Len(t, got, 1)

	view := Project(&got[0], "en")
	assert.Equal(t, "Hello", view.PrimaryText)
	assert.Equal(t, "こんにちは", view.SecondaryText)

	// The sender keeps seeing the original.
	sent := sender.Messages()
	require.Len(t, sent, 1)
	senderView := Project(&sent[0], "ja")
	assert.Equal(t, "こんにちは", senderView.PrimaryText)
	assert.Empty(t, senderView.SecondaryText)
}
