package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	onlineTTL = 90 * time.Second
	activeTTL = 12 * time.Hour
)

// PresenceStore tracks which users are online and which conversation each
// user currently has open. The active-conversation key exists so the server
// can suppress unread increments (and, upstream, push notifications) for a
// conversation the user is already looking at. It is set when a client
// focuses a conversation view and cleared when it leaves; the TTL is a
// backstop against clients that die without clearing.
type PresenceStore struct {
	client *redis.Client
}

func NewPresenceStore(ctx context.Context, redisURL string) (*PresenceStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &PresenceStore{client: client}, nil
}

func (s *PresenceStore) Close() error {
	return s.client.Close()
}

func (s *PresenceStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func onlineKey(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s:online", userID)
}

func activeConversationKey(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s:active_conversation", userID)
}

// SetOnline marks a user online; refreshed by the ws ping loop.
func (s *PresenceStore) SetOnline(ctx context.Context, userID uuid.UUID) error {
	return s.client.Set(ctx, onlineKey(userID), "1", onlineTTL).Err()
}

func (s *PresenceStore) SetOffline(ctx context.Context, userID uuid.UUID) error {
	return s.client.Del(ctx, onlineKey(userID)).Err()
}

func (s *PresenceStore) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	n, err := s.client.Exists(ctx, onlineKey(userID)).Result()
	return n > 0, err
}

func (s *PresenceStore) SetActiveConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	return s.client.Set(ctx, activeConversationKey(userID), conversationID.String(), activeTTL).Err()
}

func (s *PresenceStore) ClearActiveConversation(ctx context.Context, userID uuid.UUID) error {
	return s.client.Del(ctx, activeConversationKey(userID)).Err()
}

// ActiveConversation returns uuid.Nil when the user has no conversation open.
func (s *PresenceStore) ActiveConversation(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	val, err := s.client.Get(ctx, activeConversationKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(val)
}
