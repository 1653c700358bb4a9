package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"omnidesk/internal/entities"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append writes one immutable ledger entry. The id and the sent_at ordering
// timestamp are assigned here, at persistence time.
func (r *MessageRepository) Append(ctx context.Context, m *entities.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	var media []byte
	if len(m.Media) > 0 {
		var err error
		media, err = json.Marshal(m.Media)
		if err != nil {
			return fmt.Errorf("marshal media: %w", err)
		}
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, sender, content, original_content,
			original_language, translated_content, is_read, media)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING sent_at
	`, m.ID, m.ConversationID, m.Sender, m.Content, m.OriginalContent,
		m.OriginalLanguage, m.TranslatedContent, m.IsRead, media).Scan(&m.SentAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]entities.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, conversation_id, sender, content, original_content,
			original_language, translated_content, is_read, media, sent_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY sent_at ASC
		LIMIT $2
	`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []entities.Message{}
	for rows.Next() {
		var m entities.Message
		var media []byte
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Sender, &m.Content, &m.OriginalContent,
			&m.OriginalLanguage, &m.TranslatedContent, &m.IsRead, &media, &m.SentAt); err != nil {
			return nil, err
		}
		if len(media) > 0 {
			if err := json.Unmarshal(media, &m.Media); err != nil {
				return nil, fmt.Errorf("unmarshal media: %w", err)
			}
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// LatestCustomerLanguage returns the original_language of the most recent
// customer-authored message, or "" when no customer message exists yet.
func (r *MessageRepository) LatestCustomerLanguage(ctx context.Context, conversationID string) (string, error) {
	var lang string
	err := r.db.QueryRow(ctx, `
		SELECT original_language FROM messages
		WHERE conversation_id = $1 AND sender = 'customer'
		ORDER BY sent_at DESC
		LIMIT 1
	`, conversationID).Scan(&lang)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return lang, nil
}

// LatestCustomerMessageID is used for mail threading headers.
func (r *MessageRepository) LatestCustomerMessageID(ctx context.Context, conversationID string) (string, error) {
	var id string
	err := r.db.QueryRow(ctx, `
		SELECT id FROM messages
		WHERE conversation_id = $1 AND sender = 'customer'
		ORDER BY sent_at DESC
		LIMIT 1
	`, conversationID).Scan(&id)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}
