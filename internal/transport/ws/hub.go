package ws

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/kaiwa-chat/kaiwa/internal/metrics"
	"github.com/rs/zerolog"
)

// PresenceTracker mirrors connection and view-focus state into an external
// store, where the rest of the system (unread counters, notification
// suppression) can read it.
type PresenceTracker interface {
	SetOnline(ctx context.Context, userID uuid.UUID) error
	SetOffline(ctx context.Context, userID uuid.UUID) error
	SetActiveConversation(ctx context.Context, userID, conversationID uuid.UUID) error
	ClearActiveConversation(ctx context.Context, userID uuid.UUID) error
}

// Hub manages all active WebSocket clients and routes change-feed events.
type Hub struct {
	// clients maps userID → client.
	clients map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMsg

	presence PresenceTracker
	logger   zerolog.Logger
}

type broadcastMsg struct {
	conversationID uuid.UUID
	data           []byte
}

func NewHub(presence PresenceTracker, logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMsg, 256),
		presence:   presence,
		logger:     logger,
	}
}

// Run starts the Hub's main event loop. Returns when ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case client := <-h.register:
			h.clients[client.userID] = client
			metrics.WSConnections.Set(float64(len(h.clients)))
			h.logger.Info().Stringer("user_id", client.userID).Int("total", len(h.clients)).Msg("ws client connected")

			h.trackOnline(client.userID, true)
			h.broadcastPresence(client.userID, "online")

		case client := <-h.unregister:
			if _, ok := h.clients[client.userID]; ok {
				delete(h.clients, client.userID)
				close(client.send)
				close(client.done)
				metrics.WSConnections.Set(float64(len(h.clients)))
				h.logger.Info().Stringer("user_id", client.userID).Int("total", len(h.clients)).Msg("ws client disconnected")

				h.trackOnline(client.userID, false)
				h.broadcastPresence(client.userID, "offline")
			}

		case msg := <-h.broadcast:
			for _, client := range h.clients {
				// All subscribers get the event, the author included;
				// clients dedup their own inserts by message id.
				if !client.IsSubscribed(msg.conversationID) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Client buffer full - disconnect
					delete(h.clients, client.userID)
					close(client.send)
					close(client.done)
					metrics.WSConnections.Set(float64(len(h.clients)))
				}
			}
		}
	}
}

// BroadcastToConversation sends an event to all subscribers of a conversation.
func (h *Hub) BroadcastToConversation(conversationID uuid.UUID, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Msg("ws hub: marshal error")
		return
	}
	h.broadcast <- &broadcastMsg{
		conversationID: conversationID,
		data:           data,
	}
}

// HandleTyping relays typing starts to other subscribers of the
// conversation. Stops are not relayed; the frontend uses a timeout.
func (h *Hub) HandleTyping(sender *Client, event *Event) {
	if event.Type != EventTypeTypingStart || event.ConversationID == nil {
		return
	}
	conversationID := *event.ConversationID

	evt, err := NewEvent(EventTypeTyping, &conversationID, TypingPayload{UserID: sender.userID})
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}

	for _, client := range h.clients {
		if client.userID == sender.userID || !client.IsSubscribed(conversationID) {
			continue
		}
		select {
		case client.send <- data:
		default:
		}
	}
}

func (h *Hub) setFocus(userID uuid.UUID, conversationID *uuid.UUID) {
	if h.presence == nil {
		return
	}
	var err error
	if conversationID != nil {
		err = h.presence.SetActiveConversation(context.Background(), userID, *conversationID)
	} else {
		err = h.presence.ClearActiveConversation(context.Background(), userID)
	}
	if err != nil {
		h.logger.Warn().Err(err).Stringer("user_id", userID).Msg("updating active conversation")
	}
}

func (h *Hub) trackOnline(userID uuid.UUID, online bool) {
	if h.presence == nil {
		return
	}
	var err error
	if online {
		err = h.presence.SetOnline(context.Background(), userID)
	} else {
		err = h.presence.SetOffline(context.Background(), userID)
		// A dropped connection also drops view focus.
		if clearErr := h.presence.ClearActiveConversation(context.Background(), userID); clearErr != nil && err == nil {
			err = clearErr
		}
	}
	if err != nil {
		h.logger.Warn().Err(err).Stringer("user_id", userID).Msg("updating presence")
	}
}

// broadcastPresence sends online/offline to all other connected clients.
func (h *Hub) broadcastPresence(userID uuid.UUID, status string) {
	evt, err := NewEvent(EventTypePresence, nil, PresencePayload{
		UserID: userID,
		Status: status,
	})
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	for _, client := range h.clients {
		if client.userID == userID {
			continue
		}
		select {
		case client.send <- data:
		default:
		}
	}
}
