package ws

import (
	"github.com/google/uuid"
	"github.com/kaiwa-chat/kaiwa/internal/domain"
)

// HubNotifier implements service.Notifier using the WebSocket Hub.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyNewMessage(msg *domain.Message) {
	evt, err := NewEvent(EventTypeMessageNew, &msg.ConversationID, MessagePayload{Message: *msg})
	if err != nil {
		n.hub.logger.Error().Err(err).Msg("ws notifier: marshal error")
		return
	}
	n.hub.BroadcastToConversation(msg.ConversationID, evt)
}

func (n *HubNotifier) NotifyTranslatedMessage(msg *domain.Message) {
	evt, err := NewEvent(EventTypeMessageTranslated, &msg.ConversationID, TranslationPayload{
		ID:           msg.ID,
		Translations: msg.Translations,
	})
	if err != nil {
		n.hub.logger.Error().Err(err).Msg("ws notifier: marshal error")
		return
	}
	n.hub.BroadcastToConversation(msg.ConversationID, evt)
}

func (n *HubNotifier) NotifyDeletedMessage(conversationID, messageID uuid.UUID) {
	evt, err := NewEvent(EventTypeMessageDeleted, &conversationID, MessageDeletedPayload{ID: messageID})
	if err != nil {
		n.hub.logger.Error().Err(err).Msg("ws notifier: marshal error")
		return
	}
	n.hub.BroadcastToConversation(conversationID, evt)
}
