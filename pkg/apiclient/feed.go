package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kaiwa-chat/kaiwa/internal/domain"
	"github.com/kaiwa-chat/kaiwa/internal/transport/ws"
	"github.com/kaiwa-chat/kaiwa/pkg/chat"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Feed is a live change-feed connection. One Feed serves every
// conversation the client subscribes to; events are routed to the
// pipeline registered for their conversation.
type Feed struct {
	conn   *websocket.Conn
	client *Client

	mu        sync.Mutex
	pipelines map[uuid.UUID]*chat.Pipeline
}

// Connect dials the server's websocket endpoint using the client's token.
func (c *Client) Connect(ctx context.Context) (*Feed, error) {
	wsURL := strings.Replace(c.BaseURL, "http", "ws", 1) + "/ws?token=" + c.Token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing change feed: %w", err)
	}
	return &Feed{
		conn:      conn,
		client:    c,
		pipelines: make(map[uuid.UUID]*chat.Pipeline),
	}, nil
}

// Subscribe registers a pipeline to receive a conversation's events and
// marks the conversation as focused, so the server suppresses unread
// bumps while the view is open.
func (f *Feed) Subscribe(ctx context.Context, conversationID uuid.UUID, p *chat.Pipeline) error {
	f.mu.Lock()
	f.pipelines[conversationID] = p
	f.mu.Unlock()
	if err := f.send(ctx, ws.EventTypeSubscribe, conversationID); err != nil {
		return err
	}
	return f.send(ctx, ws.EventTypeFocus, conversationID)
}

// Unsubscribe detaches the conversation's pipeline and clears focus. The
// pipeline's in-flight translation dispatches are unaffected.
func (f *Feed) Unsubscribe(ctx context.Context, conversationID uuid.UUID) error {
	f.mu.Lock()
	delete(f.pipelines, conversationID)
	f.mu.Unlock()
	if err := f.send(ctx, ws.EventTypeBlur, conversationID); err != nil {
		return err
	}
	return f.send(ctx, ws.EventTypeUnsubscribe, conversationID)
}

// Run reads feed events until ctx is done or the connection drops,
// applying inserts and translation updates to registered pipelines.
func (f *Feed) Run(ctx context.Context) error {
	defer f.conn.Close(websocket.StatusNormalClosure, "")

	for {
		var event ws.Event
		if err := wsjson.Read(ctx, f.conn, &event); err != nil {
			return err
		}

		switch event.Type {
		case ws.EventTypeMessageNew:
			var p ws.MessagePayload
			if err := json.Unmarshal(event.Payload, &p); err != nil {
				continue
			}
			if pipeline, ok := f.pipeline(p.ConversationID); ok {
				pipeline.ObserveRemoteInsert(&p.Message)
			}

		case ws.EventTypeMessageTranslated:
			if event.ConversationID == nil {
				continue
			}
			var p ws.TranslationPayload
			if err := json.Unmarshal(event.Payload, &p); err != nil {
				continue
			}
			if pipeline, ok := f.pipeline(*event.ConversationID); ok {
				pipeline.ObserveRemoteUpdate(p.ID, p.Translations)
			}

		default:
			// typing/presence/pong are presentation concerns; callers
			// wanting them can layer a second reader later.
		}
	}
}

// Close tears the connection down.
func (f *Feed) Close() error {
	return f.conn.Close(websocket.StatusNormalClosure, "")
}

func (f *Feed) pipeline(conversationID uuid.UUID) (*chat.Pipeline, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pipelines[conversationID]
	return p, ok
}

func (f *Feed) send(ctx context.Context, eventType string, conversationID uuid.UUID) error {
	payload, err := json.Marshal(ws.ConversationPayload{ConversationID: conversationID})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return wsjson.Write(ctx, f.conn, ws.Event{
		Type:    eventType,
		Payload: payload,
	})
}

// OpenConversation is the high-level entry for a conversation view: fetch
// history, build a pipeline for the user, load state, and subscribe it to
// the feed.
func (f *Feed) OpenConversation(ctx context.Context, user *domain.User, conversationID uuid.UUID) (*chat.Pipeline, error) {
	history, err := f.client.ListMessages(ctx, conversationID, 100)
	if err != nil {
		return nil, err
	}

	pipeline := chat.NewPipeline(chat.PipelineConfig{
		ConversationID: conversationID,
		SenderID:       user.ID,
		SenderLanguage: user.PreferredLanguage,
		Store:          f.client,
		Participants:   f.client,
		Translator:     f.client,
	})
	pipeline.Load(history)

	if err := f.Subscribe(ctx, conversationID, pipeline); err != nil {
		return nil, err
	}
	return pipeline, nil
}
