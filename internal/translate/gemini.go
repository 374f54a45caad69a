package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kaiwa-chat/kaiwa/internal/domain"
	"github.com/kaiwa-chat/kaiwa/internal/metrics"
	"github.com/rs/zerolog"
)

// GeminiTranslator translates via the Gemini generateContent REST API. One
// prompt asks for all target languages at once and the model is forced into
// JSON output mode, so the response body is a single language→text object.
type GeminiTranslator struct {
	apiKey  string
	apiURL  string
	client  *http.Client
	logger  zerolog.Logger
	timeout time.Duration
}

func NewGeminiTranslator(apiKey, apiURL string, timeout time.Duration, logger zerolog.Logger) *GeminiTranslator {
	return &GeminiTranslator{
		apiKey:  apiKey,
		apiURL:  apiURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		timeout: timeout,
	}
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (t *GeminiTranslator) Translate(ctx context.Context, text, sourceLang string, targetLangs []string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: buildPrompt(text, sourceLang, targetLangs)}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      0.1,
			ResponseMimeType: "application/json",
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL+"?key="+t.apiKey, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	metrics.TranslationRequests.Inc()
	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		metrics.TranslationFailures.WithLabelValues("timeout").Inc()
		return nil, fmt.Errorf("calling translation backend: %w", err)
	}
	defer resp.Body.Close()
	metrics.TranslationLatency.Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		t.logger.Warn().Int("status", resp.StatusCode).Bytes("body", errBody).Msg("translation backend error")
		metrics.TranslationFailures.WithLabelValues("backend").Inc()
		return nil, fmt.Errorf("translation backend returned status %d", resp.StatusCode)
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		metrics.TranslationFailures.WithLabelValues("malformed").Inc()
		return nil, fmt.Errorf("decoding translation response: %w", err)
	}

	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		metrics.TranslationFailures.WithLabelValues("malformed").Inc()
		return nil, ErrEmptyResult
	}

	var translations map[string]string
	if err := json.Unmarshal([]byte(gr.Candidates[0].Content.Parts[0].Text), &translations); err != nil {
		metrics.TranslationFailures.WithLabelValues("malformed").Inc()
		return nil, fmt.Errorf("parsing translation JSON: %w", err)
	}

	// The model never needs to echo the source language back; drop it if
	// it does so the translations mapping stays self-translation free.
	delete(translations, sourceLang)

	if len(translations) == 0 {
		metrics.TranslationFailures.WithLabelValues("malformed").Inc()
		return nil, ErrEmptyResult
	}

	return translations, nil
}

func buildPrompt(text, sourceLang string, targetLangs []string) string {
	pairs := make([]string, 0, len(targetLangs))
	for _, code := range targetLangs {
		pairs = append(pairs, fmt.Sprintf("%q: %q", code, domain.LanguageName(code)))
	}

	return fmt.Sprintf(`Translate the following text into the specified languages. Return ONLY a JSON object with language codes as keys and translated text as values. Do not include any explanation.

Source language: %s
Target languages: {%s}

Text to translate:
%s

Response format example:
{"en": "Hello", "ja": "こんにちは"}`,
		domain.LanguageName(sourceLang), strings.Join(pairs, ", "), text)
}
