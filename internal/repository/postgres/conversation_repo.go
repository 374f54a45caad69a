package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kaiwa-chat/kaiwa/internal/domain"
)

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

func (r *ConversationRepo) Create(ctx context.Context, conv *domain.Conversation) error {
	query := `
		INSERT INTO conversations (id, type, name, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query,
		conv.ID, conv.Type, conv.Name, conv.CreatedBy, conv.CreatedAt,
	)
	return err
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	query := `SELECT id, type, name, created_by, created_at FROM conversations WHERE id = $1`
	var conv domain.Conversation
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&conv.ID, &conv.Type, &conv.Name, &conv.CreatedBy, &conv.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &conv, err
}

func (r *ConversationRepo) GetDirectByUsers(ctx context.Context, user1ID, user2ID uuid.UUID) (*domain.Conversation, error) {
	query := `
		SELECT c.id, c.type, c.name, c.created_by, c.created_at
		FROM conversations c
		JOIN conversation_members m1 ON m1.conversation_id = c.id AND m1.user_id = $1
		JOIN conversation_members m2 ON m2.conversation_id = c.id AND m2.user_id = $2
		WHERE c.type = 'direct'`
	var conv domain.Conversation
	err := r.pool.QueryRow(ctx, query, user1ID, user2ID).Scan(
		&conv.ID, &conv.Type, &conv.Name, &conv.CreatedBy, &conv.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &conv, err
}

func (r *ConversationRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	query := `
		SELECT c.id, c.type, c.name, c.created_by, c.created_at, cm.unread_count
		FROM conversations c
		JOIN conversation_members cm ON cm.conversation_id = c.id
		WHERE cm.user_id = $1
		ORDER BY c.created_at DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		if err := rows.Scan(
			&conv.ID, &conv.Type, &conv.Name, &conv.CreatedBy, &conv.CreatedAt,
			&conv.UnreadCount,
		); err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

func (r *ConversationRepo) AddMember(ctx context.Context, member *domain.ConversationMember) error {
	query := `
		INSERT INTO conversation_members (conversation_id, user_id, unread_count, joined_at)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (conversation_id, user_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query, member.ConversationID, member.UserID, member.JoinedAt)
	return err
}

func (r *ConversationRepo) RemoveMember(ctx context.Context, conversationID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM conversation_members WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID,
	)
	return err
}

func (r *ConversationRepo) GetMember(ctx context.Context, conversationID, userID uuid.UUID) (*domain.ConversationMember, error) {
	query := `
		SELECT conversation_id, user_id, unread_count, last_read_at, joined_at
		FROM conversation_members
		WHERE conversation_id = $1 AND user_id = $2`
	var m domain.ConversationMember
	err := r.pool.QueryRow(ctx, query, conversationID, userID).Scan(
		&m.ConversationID, &m.UserID, &m.UnreadCount, &m.LastReadAt, &m.JoinedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &m, err
}

func (r *ConversationRepo) ListMembers(ctx context.Context, conversationID uuid.UUID) ([]domain.ConversationMember, error) {
	query := `
		SELECT cm.conversation_id, cm.user_id, cm.unread_count, cm.last_read_at, cm.joined_at,
			u.username, u.display_name, u.preferred_language
		FROM conversation_members cm
		JOIN users u ON cm.user_id = u.id
		WHERE cm.conversation_id = $1
		ORDER BY cm.joined_at`
	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.ConversationMember
	for rows.Next() {
		var m domain.ConversationMember
		if err := rows.Scan(
			&m.ConversationID, &m.UserID, &m.UnreadCount, &m.LastReadAt, &m.JoinedAt,
			&m.Username, &m.DisplayName, &m.PreferredLanguage,
		); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *ConversationRepo) ParticipantLanguages(ctx context.Context, conversationID uuid.UUID) ([]domain.ParticipantLanguage, error) {
	query := `
		SELECT cm.user_id, u.preferred_language
		FROM conversation_members cm
		JOIN users u ON cm.user_id = u.id
		WHERE cm.conversation_id = $1`
	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var langs []domain.ParticipantLanguage
	for rows.Next() {
		var pl domain.ParticipantLanguage
		if err := rows.Scan(&pl.UserID, &pl.Language); err != nil {
			return nil, err
		}
		langs = append(langs, pl)
	}
	return langs, rows.Err()
}

func (r *ConversationRepo) IncrementUnread(ctx context.Context, conversationID uuid.UUID, except []uuid.UUID) error {
	query := `
		UPDATE conversation_members
		SET unread_count = unread_count + 1
		WHERE conversation_id = $1 AND user_id != ALL($2)`
	_, err := r.pool.Exec(ctx, query, conversationID, except)
	return err
}

func (r *ConversationRepo) ResetUnread(ctx context.Context, conversationID, userID uuid.UUID, readAt time.Time) error {
	query := `
		UPDATE conversation_members
		SET unread_count = 0, last_read_at = $1
		WHERE conversation_id = $2 AND user_id = $3`
	_, err := r.pool.Exec(ctx, query, readAt, conversationID, userID)
	return err
}
