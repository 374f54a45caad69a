package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/kaiwa-chat/kaiwa/internal/domain"
	"github.com/kaiwa-chat/kaiwa/internal/translate"
	"github.com/rs/zerolog"
)

// TranslateHandler proxies translation so API keys never reach clients.
type TranslateHandler struct {
	translator translate.Translator
	logger     zerolog.Logger
}

func NewTranslateHandler(translator translate.Translator, logger zerolog.Logger) *TranslateHandler {
	return &TranslateHandler{translator: translator, logger: logger}
}

type translateBody struct {
	Text            string   `json:"text"`
	SourceLang      string   `json:"source_lang"`
	TargetLanguages []string `json:"target_languages"`
}

type translateResponse struct {
	Translations map[string]string `json:"translations"`
}

func (h *TranslateHandler) Translate(w http.ResponseWriter, r *http.Request) {
	var body translateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if body.Text == "" || body.SourceLang == "" || len(body.TargetLanguages) == 0 {
		writeError(w, http.StatusBadRequest, "MISSING_FIELDS", "text, source_lang and target_languages are required")
		return
	}
	for _, lang := range body.TargetLanguages {
		if !domain.IsSupportedLanguage(lang) {
			writeError(w, http.StatusBadRequest, "UNSUPPORTED_LANGUAGE", "Unsupported target language: "+lang)
			return
		}
	}

	translations, err := h.translator.Translate(r.Context(), body.Text, body.SourceLang, body.TargetLanguages)
	if err != nil {
		h.logger.Warn().Err(err).Msg("translation failed")
		writeError(w, http.StatusBadGateway, "TRANSLATION_FAILED", "Translation backend error")
		return
	}

	writeJSON(w, http.StatusOK, translateResponse{Translations: translations})
}
