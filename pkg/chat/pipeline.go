package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kaiwa-chat/kaiwa/internal/domain"
	"github.com/rs/zerolog"
)

const (
	defaultTranslateTimeout = 15 * time.Second

	// maxPendingUpdates bounds the buffer for translation updates that
	// arrive before their insert. Overflow drops the oldest entry; a
	// dropped update is recovered by the next full fetch.
	maxPendingUpdates = 64
)

// PipelineConfig wires one conversation view's pipeline.
type PipelineConfig struct {
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	// SenderLanguage becomes each outgoing message's immutable source
	// language.
	SenderLanguage string

	Store        MessageStore
	Participants ParticipantSource
	Translator   Translator

	// TranslateTimeout bounds the translator call. Zero means the default.
	TranslateTimeout time.Duration

	Logger zerolog.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Pipeline orchestrates sends and reconciles local ordered state for a
// single open conversation. All mutation of local state is serialized
// behind one mutex; translation dispatch, remote-insert and remote-update
// callbacks may interleave in any order and commute.
type Pipeline struct {
	conversationID uuid.UUID
	senderID       uuid.UUID
	senderLanguage string

	store        MessageStore
	participants ParticipantSource
	translator   Translator
	resolver     *FanoutResolver

	translateTimeout time.Duration
	logger           zerolog.Logger
	now              func() time.Time

	mu       sync.Mutex
	messages []*domain.Message // ordered by CreatedAt, unique by ID
	index    map[uuid.UUID]*domain.Message
	states   map[uuid.UUID]SendState
	pending  map[uuid.UUID]map[string]string // translation updates awaiting their insert
	pendingQ []uuid.UUID                     // arrival order, for bounded eviction
	closed   bool

	dispatches sync.WaitGroup
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	timeout := cfg.TranslateTimeout
	if timeout <= 0 {
		timeout = defaultTranslateTimeout
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		conversationID:   cfg.ConversationID,
		senderID:         cfg.SenderID,
		senderLanguage:   cfg.SenderLanguage,
		store:            cfg.Store,
		participants:     cfg.Participants,
		translator:       cfg.Translator,
		resolver:         NewFanoutResolver(cfg.Participants),
		translateTimeout: timeout,
		logger:           cfg.Logger,
		now:              now,
		index:            make(map[uuid.UUID]*domain.Message),
		states:           make(map[uuid.UUID]SendState),
		pending:          make(map[uuid.UUID]map[string]string),
	}
}

// Load replaces local state with a fetched message history, then flushes
// any buffered translation updates that now have a matching entry.
func (p *Pipeline) Load(messages []domain.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.messages = p.messages[:0]
	p.index = make(map[uuid.UUID]*domain.Message, len(messages))
	for i := range messages {
		msg := messages[i].Clone()
		if _, ok := p.index[msg.ID]; ok {
			continue
		}
		p.insertOrderedLocked(msg)
	}
	p.flushPendingLocked()
}

// Send validates and sends a text message. The optimistic local append
// happens synchronously, before any network I/O; Send returns once the
// store accepted the insert. Translation dispatch continues in the
// background and outlives ctx.
func (p *Pipeline) Send(ctx context.Context, text string) (*domain.Message, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty text", ErrValidation)
	}
	if len([]rune(trimmed)) > domain.MaxMessageLength {
		return nil, fmt.Errorf("%w: text exceeds %d characters", ErrValidation, domain.MaxMessageLength)
	}

	msg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: p.conversationID,
		SenderID:       p.senderID,
		Kind:           domain.MessageKindText,
		Content:        trimmed,
		SourceLanguage: p.senderLanguage,
		CreatedAt:      p.now(),
	}

	p.mu.Lock()
	p.insertOrderedLocked(msg.Clone())
	p.states[msg.ID] = StateOptimistic
	p.mu.Unlock()

	if err := p.store.Insert(ctx, msg.Clone()); err != nil && !errors.Is(err, ErrConflict) {
		// Local and remote are now inconsistent: the optimistic entry
		// stays so the caller can surface a retry affordance.
		p.setState(msg.ID, StatePersistFailed)
		return msg.Clone(), fmt.Errorf("%w: %v", ErrPersist, err)
	}
	p.setState(msg.ID, StatePersisted)

	p.dispatches.Add(1)
	go func() {
		defer p.dispatches.Done()
		p.dispatchTranslation(msg.ID, msg.Content, msg.SourceLanguage)
	}()

	return msg.Clone(), nil
}

// RetryTranslation re-runs translation dispatch for a message, e.g. after
// a transient backend failure. The merge is a union, so retrying a message
// that already has translations is harmless.
func (p *Pipeline) RetryTranslation(messageID uuid.UUID) error {
	p.mu.Lock()
	msg, ok := p.index[messageID]
	if !ok {
		p.mu.Unlock()
		return ErrUnknownMessage
	}
	if msg.Kind != domain.MessageKindText {
		p.mu.Unlock()
		return fmt.Errorf("%w: not a text message", ErrValidation)
	}
	content, sourceLang := msg.Content, msg.SourceLanguage
	p.mu.Unlock()

	p.dispatches.Add(1)
	go func() {
		defer p.dispatches.Done()
		p.dispatchTranslation(messageID, content, sourceLang)
	}()
	return nil
}

// dispatchTranslation runs detached from the sending context: a message
// sent just before the view closes must still get its translation
// persisted for other viewers. Every failure path ends in
// StateTranslationSkipped and is never surfaced to the sender.
func (p *Pipeline) dispatchTranslation(messageID uuid.UUID, content, sourceLang string) {
	p.setState(messageID, StateTranslating)

	ctx, cancel := context.WithTimeout(context.Background(), p.translateTimeout)
	defer cancel()

	targets, err := p.resolver.ResolveTargetLanguages(ctx, p.conversationID, sourceLang)
	if err != nil {
		p.logger.Warn().Err(err).Stringer("message_id", messageID).Msg("fanout lookup failed, delivering untranslated")
		p.setState(messageID, StateTranslationSkipped)
		return
	}
	if len(targets) == 0 {
		// Everyone already reads the source language.
		p.setState(messageID, StateTranslationSkipped)
		return
	}

	// One call for the whole target set, never one per language.
	translations, err := p.translator.Translate(ctx, content, sourceLang, targets)
	if err != nil || len(translations) == 0 {
		p.logger.Warn().Err(err).Stringer("message_id", messageID).Msg("translation failed, delivering untranslated")
		p.setState(messageID, StateTranslationSkipped)
		return
	}

	if err := p.store.UpdateTranslations(ctx, messageID, translations); err != nil {
		p.logger.Warn().Err(err).Stringer("message_id", messageID).Msg("translation merge failed")
		p.setState(messageID, StateTranslationSkipped)
		return
	}

	p.mu.Lock()
	if msg, ok := p.index[messageID]; ok {
		mergeTranslations(msg, translations)
	}
	p.states[messageID] = StateTranslated
	p.mu.Unlock()
}

// ObserveRemoteInsert applies an insert event from the change feed. The
// echo of a locally-authored message is dropped: first writer wins, local
// state never holds two entries with one id.
func (p *Pipeline) ObserveRemoteInsert(msg *domain.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if _, ok := p.index[msg.ID]; ok {
		return
	}
	p.insertOrderedLocked(msg.Clone())
	p.flushPendingLocked()
}

// ObserveRemoteUpdate applies a translation update from the change feed.
// The store already merged, so the delivered mapping replaces the local
// one wholesale. An update for an id not yet seen is buffered until its
// insert arrives.
func (p *Pipeline) ObserveRemoteUpdate(messageID uuid.UUID, translations map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	msg, ok := p.index[messageID]
	if !ok {
		p.bufferPendingLocked(messageID, translations)
		return
	}

	msg.Translations = copyTranslations(translations)
}

// Messages returns a snapshot of local ordered state.
func (p *Pipeline) Messages() []domain.Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]domain.Message, len(p.messages))
	for i, msg := range p.messages {
		out[i] = *msg.Clone()
	}
	return out
}

// State reports where an outgoing message is in its lifecycle.
func (p *Pipeline) State(messageID uuid.UUID) SendState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.states[messageID]
}

// Close stops the pipeline from applying further feed events. In-flight
// translation dispatches keep running so their merges still reach the
// store.
func (p *Pipeline) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// Wait blocks until background translation dispatches finish. Intended
// for shutdown and tests.
func (p *Pipeline) Wait() {
	p.dispatches.Wait()
}

func (p *Pipeline) setState(messageID uuid.UUID, state SendState) {
	p.mu.Lock()
	p.states[messageID] = state
	p.mu.Unlock()
}

// insertOrderedLocked places msg by created timestamp. New messages almost
// always append, so scan from the tail.
func (p *Pipeline) insertOrderedLocked(msg *domain.Message) {
	i := len(p.messages)
	for i > 0 && p.messages[i-1].CreatedAt.After(msg.CreatedAt) {
		i--
	}
	p.messages = append(p.messages, nil)
	copy(p.messages[i+1:], p.messages[i:])
	p.messages[i] = msg
	p.index[msg.ID] = msg
}

func (p *Pipeline) bufferPendingLocked(messageID uuid.UUID, translations map[string]string) {
	if _, ok := p.pending[messageID]; !ok {
		if len(p.pendingQ) >= maxPendingUpdates {
			oldest := p.pendingQ[0]
			p.pendingQ = p.pendingQ[1:]
			delete(p.pending, oldest)
		}
		p.pendingQ = append(p.pendingQ, messageID)
	}
	p.pending[messageID] = copyTranslations(translations)
}

func (p *Pipeline) flushPendingLocked() {
	if len(p.pending) == 0 {
		return
	}
	remaining := p.pendingQ[:0]
	for _, id := range p.pendingQ {
		if msg, ok := p.index[id]; ok {
			msg.Translations = p.pending[id]
			delete(p.pending, id)
			continue
		}
		remaining = append(remaining, id)
	}
	p.pendingQ = remaining
}

// mergeTranslations is a set union: existing keys win only if absent from
// the incoming mapping, and the source language never gains an entry.
func mergeTranslations(msg *domain.Message, translations map[string]string) {
	if msg.Translations == nil {
		msg.Translations = make(map[string]string, len(translations))
	}
	for lang, text := range translations {
		if lang == msg.SourceLanguage {
			continue
		}
		msg.Translations[lang] = text
	}
}

func copyTranslations(translations map[string]string) map[string]string {
	if translations == nil {
		return nil
	}
	cp := make(map[string]string, len(translations))
	for k, v := range translations {
		cp[k] = v
	}
	return cp
}
