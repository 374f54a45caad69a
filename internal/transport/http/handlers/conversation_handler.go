package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/kaiwa-chat/kaiwa/internal/domain"
	"github.com/kaiwa-chat/kaiwa/internal/service"
	"github.com/kaiwa-chat/kaiwa/internal/transport/http/middleware"
	"github.com/rs/zerolog"
)

type ConversationHandler struct {
	conversationService *service.ConversationService
	logger              zerolog.Logger
}

func NewConversationHandler(conversationService *service.ConversationService, logger zerolog.Logger) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService, logger: logger}
}

func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.CreateConversationInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if input.Type != domain.ConversationTypeDirect && input.Type != domain.ConversationTypeGroup {
		writeError(w, http.StatusBadRequest, "INVALID_TYPE", "Conversation type must be direct or group")
		return
	}
	if len(input.MemberIDs) == 0 {
		writeError(w, http.StatusBadRequest, "MISSING_MEMBERS", "At least one other member is required")
		return
	}

	conv, err := h.conversationService.Create(r.Context(), userID, input)
	if err != nil {
		h.logger.Error().Err(err).Msg("create conversation failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusCreated, conv)
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	conversations, err := h.conversationService.List(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("list conversations failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, conversations)
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	conversationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid conversation ID")
		return
	}

	conv, err := h.conversationService.Get(r.Context(), userID, conversationID)
	if err != nil {
		h.writeServiceError(w, err, "get conversation")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

func (h *ConversationHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	conversationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid conversation ID")
		return
	}

	members, err := h.conversationService.ListMembers(r.Context(), userID, conversationID)
	if err != nil {
		h.writeServiceError(w, err, "list members")
		return
	}

	writeJSON(w, http.StatusOK, members)
}

// Languages serves the fanout data source: each participant's preferred
// language, which sending clients resolve into a translation target set.
func (h *ConversationHandler) Languages(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	conversationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid conversation ID")
		return
	}

	languages, err := h.conversationService.ParticipantLanguages(r.Context(), userID, conversationID)
	if err != nil {
		h.writeServiceError(w, err, "participant languages")
		return
	}

	writeJSON(w, http.StatusOK, languages)
}

func (h *ConversationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	conversationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid conversation ID")
		return
	}

	if err := h.conversationService.MarkRead(r.Context(), userID, conversationID); err != nil {
		h.writeServiceError(w, err, "mark read")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ConversationHandler) writeServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Conversation not found")
	case errors.Is(err, service.ErrNotMember):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "You do not have access to this conversation")
	default:
		h.logger.Error().Err(err).Str("op", op).Msg("conversation handler error")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
	}
}
