package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kaiwa-chat/kaiwa/internal/service"
	"github.com/kaiwa-chat/kaiwa/internal/transport/http/middleware"
	"github.com/kaiwa-chat/kaiwa/pkg/validator"
	"github.com/rs/zerolog"
)

type AuthHandler struct {
	authService *service.AuthService
	logger      zerolog.Logger
}

func NewAuthHandler(authService *service.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateRegister(input.Email, input.Username, input.DisplayName, input.Password, input.PreferredLanguage); errs.HasErrors() {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
		return
	}

	resp, err := h.authService.Register(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			writeError(w, http.StatusConflict, "EMAIL_TAKEN", "Email already registered")
		case errors.Is(err, service.ErrUsernameTaken):
			writeError(w, http.StatusConflict, "USERNAME_TAKEN", "Username already taken")
		case errors.Is(err, service.ErrUnsupportedLanguage):
			writeError(w, http.StatusBadRequest, "UNSUPPORTED_LANGUAGE", "Unsupported preferred language")
		default:
			h.logger.Error().Err(err).Msg("register failed")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	resp, err := h.authService.Login(r.Context(), input)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCreds) {
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
			return
		}
		h.logger.Error().Err(err).Msg("login failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.authService.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type updateLanguageInput struct {
	PreferredLanguage string `json:"preferred_language"`
}

func (h *AuthHandler) UpdateLanguage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input updateLanguageInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	user, err := h.authService.UpdatePreferredLanguage(r.Context(), userID, input.PreferredLanguage)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedLanguage) {
			writeError(w, http.StatusBadRequest, "UNSUPPORTED_LANGUAGE", "Unsupported preferred language")
			return
		}
		h.logger.Error().Err(err).Msg("update language failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, user)
}
