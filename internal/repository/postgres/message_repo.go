package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kaiwa-chat/kaiwa/internal/domain"
	"github.com/kaiwa-chat/kaiwa/internal/repository"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, sender_id, kind, content, media_url, source_language, translations, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, query,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Kind, msg.Content,
		msg.MediaURL, msg.SourceLanguage, msg.Translations, msg.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return repository.ErrDuplicate
	}
	return err
}

const messageColumns = `m.id, m.conversation_id, m.sender_id, m.kind, m.content, m.media_url,
		m.source_language, m.translations, m.read_by, m.deleted_at, m.created_at,
		u.username, u.display_name`

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.id = $1`
	var msg domain.Message
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Kind, &msg.Content,
		&msg.MediaURL, &msg.SourceLanguage, &msg.Translations, &msg.ReadBy,
		&msg.DeletedAt, &msg.CreatedAt,
		&msg.SenderUsername, &msg.SenderDisplayName,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &msg, err
}

func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID, before *uuid.UUID, limit int) ([]domain.Message, error) {
	var query string
	var args []any

	if before != nil {
		// Cursor pagination keyed on the "before" message's created_at
		query = fmt.Sprintf(`
			SELECT `+messageColumns+`
			FROM messages m
			JOIN users u ON m.sender_id = u.id
			WHERE m.conversation_id = $1 AND m.deleted_at IS NULL
				AND m.created_at < (SELECT created_at FROM messages WHERE id = $2)
			ORDER BY m.created_at DESC
			LIMIT %d`, limit)
		args = []any{conversationID, *before}
	} else {
		query = fmt.Sprintf(`
			SELECT `+messageColumns+`
			FROM messages m
			JOIN users u ON m.sender_id = u.id
			WHERE m.conversation_id = $1 AND m.deleted_at IS NULL
			ORDER BY m.created_at DESC
			LIMIT %d`, limit)
		args = []any{conversationID}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Kind, &msg.Content,
			&msg.MediaURL, &msg.SourceLanguage, &msg.Translations, &msg.ReadBy,
			&msg.DeletedAt, &msg.CreatedAt,
			&msg.SenderUsername, &msg.SenderDisplayName,
		); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	// Reverse to chronological (query returns DESC)
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, rows.Err()
}

// UpdateTranslations union-merges the mapping into the jsonb column, so the
// same update applied twice leaves the row unchanged. Soft-deleted messages
// are left untouched and nil is returned.
func (r *MessageRepo) UpdateTranslations(ctx context.Context, id uuid.UUID, translations map[string]string) (*domain.Message, error) {
	query := `
		UPDATE messages
		SET translations = COALESCE(translations, '{}'::jsonb) || $1::jsonb
		WHERE id = $2 AND deleted_at IS NULL`
	tag, err := r.pool.Exec(ctx, query, translations, id)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *MessageRepo) MarkRead(ctx context.Context, conversationID, userID uuid.UUID) error {
	query := `
		UPDATE messages
		SET read_by = array_append(read_by, $1)
		WHERE conversation_id = $2 AND deleted_at IS NULL AND NOT ($1 = ANY(read_by))`
	_, err := r.pool.Exec(ctx, query, userID, conversationID)
	return err
}

func (r *MessageRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE messages SET deleted_at = $1 WHERE id = $2`, time.Now(), id)
	return err
}
