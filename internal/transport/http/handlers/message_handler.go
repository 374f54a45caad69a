package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/kaiwa-chat/kaiwa/internal/domain"
	"github.com/kaiwa-chat/kaiwa/internal/service"
	"github.com/kaiwa-chat/kaiwa/internal/transport/http/middleware"
	"github.com/kaiwa-chat/kaiwa/pkg/validator"
	"github.com/rs/zerolog"
)

type MessageHandler struct {
	messageService *service.MessageService
	logger         zerolog.Logger
}

func NewMessageHandler(messageService *service.MessageService, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{messageService: messageService, logger: logger}
}

type sendMessageBody struct {
	ID             uuid.UUID `json:"id"`
	Kind           string    `json:"kind"`
	Content        string    `json:"content"`
	MediaURL       *string   `json:"media_url,omitempty"`
	SourceLanguage string    `json:"source_language"`
	CreatedAt      time.Time `json:"created_at"`
}

// Send accepts a client-built message. The client assigns id and
// created_at so its optimistic entry and the feed echo share identity;
// the server validates but never regenerates them.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	conversationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid conversation ID")
		return
	}

	var body sendMessageBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if body.ID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "Client-assigned message ID is required")
		return
	}

	if errs := validator.ValidateMessage(body.Kind, body.Content, body.MediaURL, body.SourceLanguage); errs.HasErrors() {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
		return
	}

	createdAt := body.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	msg := &domain.Message{
		ID:             body.ID,
		ConversationID: conversationID,
		SenderID:       userID,
		Kind:           body.Kind,
		Content:        body.Content,
		MediaURL:       body.MediaURL,
		SourceLanguage: body.SourceLanguage,
		CreatedAt:      createdAt,
	}

	full, err := h.messageService.Send(r.Context(), userID, msg)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrConversationNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Conversation not found")
		case errors.Is(err, service.ErrNotMember):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "You do not have access to this conversation")
		case errors.Is(err, service.ErrDuplicateSend):
			writeError(w, http.StatusConflict, "CONFLICT", "Message ID already used by another sender")
		default:
			h.logger.Error().Err(err).Msg("send message failed")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusCreated, full)
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	conversationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid conversation ID")
		return
	}

	var before *uuid.UUID
	if beforeStr := r.URL.Query().Get("before"); beforeStr != "" {
		id, err := uuid.Parse(beforeStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid before cursor")
			return
		}
		before = &id
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	resp, err := h.messageService.List(r.Context(), userID, conversationID, before, limit)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrConversationNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Conversation not found")
		case errors.Is(err, service.ErrNotMember):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "You do not have access to this conversation")
		default:
			h.logger.Error().Err(err).Msg("list messages failed")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

type mergeTranslationsBody struct {
	Translations map[string]string `json:"translations"`
}

// MergeTranslations applies a translation result to a message. The merge
// is a union server-side, so a duplicate delivery is harmless.
func (h *MessageHandler) MergeTranslations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}

	var body mergeTranslationsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if len(body.Translations) == 0 {
		writeError(w, http.StatusBadRequest, "MISSING_TRANSLATIONS", "Translations mapping is required")
		return
	}

	msg, err := h.messageService.MergeTranslations(r.Context(), userID, messageID, body.Translations)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMessageNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Message not found")
		case errors.Is(err, service.ErrNotSender):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Only the sender can merge translations")
		default:
			h.logger.Error().Err(err).Msg("merge translations failed")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

func (h *MessageHandler) Unsend(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}

	if err := h.messageService.Unsend(r.Context(), userID, messageID); err != nil {
		switch {
		case errors.Is(err, service.ErrMessageNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Message not found")
		case errors.Is(err, service.ErrNotSender):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "You can only unsend your own messages")
		default:
			h.logger.Error().Err(err).Msg("unsend message failed")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
