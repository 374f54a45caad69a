package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geminiBody(t *testing.T, inner any) string {
	t.Helper()
	text, err := json.Marshal(inner)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": string(text)}}}},
		},
	})
	require.NoError(t, err)
	return string(body)
}

func TestGeminiTranslate(t *testing.T) {
	var gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		gotPrompt = req.Contents[0].Parts[0].Text
		assert.Equal(t, "application/json", req.GenerationConfig.ResponseMimeType)

		w.Write([]byte(geminiBody(t, map[string]string{"en": "Hello", "zh": "你好"})))
	}))
	defer server.Close()

	tr := NewGeminiTranslator("test-key", server.URL, 5*time.Second, zerolog.Nop())
	got, err := tr.Translate(context.Background(), "こんにちは", "ja", []string{"en", "zh"})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"en": "Hello", "zh": "你好"}, got)
	assert.Contains(t, gotPrompt, "こんにちは")
	assert.Contains(t, gotPrompt, "Source language: 日本語")
	assert.Contains(t, gotPrompt, `"en": "English"`)
}

func TestGeminiTranslateDropsSourceLanguageEcho(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiBody(t, map[string]string{"ja": "こんにちは", "en": "Hello"})))
	}))
	defer server.Close()

	tr := NewGeminiTranslator("test-key", server.URL, 5*time.Second, zerolog.Nop())
	got, err := tr.Translate(context.Background(), "こんにちは", "ja", []string{"en"})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"en": "Hello"}, got)
}

func TestGeminiTranslateBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	tr := NewGeminiTranslator("test-key", server.URL, 5*time.Second, zerolog.Nop())
	_, err := tr.Translate(context.Background(), "hello", "en", []string{"ja"})
	assert.ErrorContains(t, err, "status 429")
}

func TestGeminiTranslateMalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no candidates", `{"candidates": []}`},
		{"non-json part", `{"candidates":[{"content":{"parts":[{"text":"not json"}]}}]}`},
		{"empty mapping", `{"candidates":[{"content":{"parts":[{"text":"{}"}]}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			tr := NewGeminiTranslator("test-key", server.URL, 5*time.Second, zerolog.Nop())
			_, err := tr.Translate(context.Background(), "hello", "en", []string{"ja"})
			assert.Error(t, err)
		})
	}
}
