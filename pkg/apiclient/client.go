// Package apiclient talks to a kaiwa server over its REST and WebSocket
// API, and plugs directly into the chat pipeline: Client implements the
// pipeline's MessageStore, ParticipantSource and Translator contracts.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/kaiwa-chat/kaiwa/internal/domain"
	"github.com/kaiwa-chat/kaiwa/pkg/chat"
)

// Client is a kaiwa API client for one authenticated user.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type authRequest struct {
	Email             string `json:"email"`
	Username          string `json:"username,omitempty"`
	DisplayName       string `json:"display_name,omitempty"`
	Password          string `json:"password"`
	PreferredLanguage string `json:"preferred_language,omitempty"`
}

type authResponse struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"access_token"`
}

// Register creates an account and stores the session token on the client.
func (c *Client) Register(ctx context.Context, email, username, displayName, password, language string) (*domain.User, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", authRequest{
		Email:             email,
		Username:          username,
		DisplayName:       displayName,
		Password:          password,
		PreferredLanguage: language,
	}, &resp)
	if err != nil {
		return nil, err
	}
	c.Token = resp.AccessToken
	return resp.User, nil
}

// Login authenticates and stores the session token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.User, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", authRequest{
		Email:    email,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	c.Token = resp.AccessToken
	return resp.User, nil
}

// Insert persists a client-built message. A 409 maps to chat.ErrConflict,
// which the pipeline treats as a successfully retried insert.
func (c *Client) Insert(ctx context.Context, msg *domain.Message) error {
	path := fmt.Sprintf("/api/v1/conversations/%s/messages", msg.ConversationID)
	err := c.do(ctx, http.MethodPost, path, msg, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
		return chat.ErrConflict
	}
	return err
}

// UpdateTranslations merges a translation mapping into a stored message.
func (c *Client) UpdateTranslations(ctx context.Context, id uuid.UUID, translations map[string]string) error {
	path := fmt.Sprintf("/api/v1/messages/%s/translations", id)
	body := map[string]any{"translations": translations}
	return c.do(ctx, http.MethodPatch, path, body, nil)
}

type messageList struct {
	Messages []domain.Message `json:"messages"`
	HasMore  bool             `json:"has_more"`
}

// ListMessages fetches conversation history for pipeline bootstrap.
func (c *Client) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]domain.Message, error) {
	path := fmt.Sprintf("/api/v1/conversations/%s/messages?limit=%d", conversationID, limit)
	var resp messageList
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// ParticipantLanguages reads the fanout data source.
func (c *Client) ParticipantLanguages(ctx context.Context, conversationID uuid.UUID) ([]domain.ParticipantLanguage, error) {
	path := fmt.Sprintf("/api/v1/conversations/%s/languages", conversationID)
	var resp []domain.ParticipantLanguage
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

type translateRequest struct {
	Text            string   `json:"text"`
	SourceLang      string   `json:"source_lang"`
	TargetLanguages []string `json:"target_languages"`
}

type translateResponse struct {
	Translations map[string]string `json:"translations"`
}

// Translate calls the server's translation proxy: one request covers the
// whole target set.
func (c *Client) Translate(ctx context.Context, text, sourceLang string, targetLangs []string) (map[string]string, error) {
	var resp translateResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/translate", translateRequest{
		Text:            text,
		SourceLang:      sourceLang,
		TargetLanguages: targetLangs,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Translations, nil
}

// CreateConversation starts a direct or group conversation.
func (c *Client) CreateConversation(ctx context.Context, convType string, name *string, memberIDs []uuid.UUID) (*domain.Conversation, error) {
	body := map[string]any{"type": convType, "name": name, "member_ids": memberIDs}
	var conv domain.Conversation
	if err := c.do(ctx, http.MethodPost, "/api/v1/conversations", body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversations returns the user's conversations with unread counts.
func (c *Client) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	var out []domain.Conversation
	if err := c.do(ctx, http.MethodGet, "/api/v1/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead resets the unread counter for a conversation.
func (c *Client) MarkRead(ctx context.Context, conversationID uuid.UUID) error {
	path := fmt.Sprintf("/api/v1/conversations/%s/read", conversationID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Code: "UNKNOWN"}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&envelope) == nil && envelope.Error.Code != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
