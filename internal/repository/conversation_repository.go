package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"omnidesk/internal/entities"
)

type ConversationRepository struct {
	db *pgxpool.Pool
}

func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*entities.Conversation, error) {
	var c entities.Conversation
	err := r.db.QueryRow(ctx, `
		SELECT id, customer_id, channel, last_message, last_message_at, is_read, created_at
		FROM conversations WHERE id = $1
	`, id).Scan(&c.ID, &c.CustomerID, &c.Channel, &c.LastMessage, &c.LastMessageAt, &c.IsRead, &c.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindOrCreate returns the one conversation for a (customer, channel) pair,
// creating it lazily on first contact. Insert-or-fetch against the unique
// constraint, so concurrent racing inserts converge on the same row.
func (r *ConversationRepository) FindOrCreate(ctx context.Context, customerID string, channel entities.Channel) (*entities.Conversation, error) {
	id := uuid.NewString()
	_, err := r.db.Exec(ctx, `
		INSERT INTO conversations (id, customer_id, channel)
		VALUES ($1, $2, $3)
		ON CONFLICT (customer_id, channel) DO NOTHING
	`, id, customerID, channel)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	var c entities.Conversation
	err = r.db.QueryRow(ctx, `
		SELECT id, customer_id, channel, last_message, last_message_at, is_read, created_at
		FROM conversations WHERE customer_id = $1 AND channel = $2
	`, customerID, channel).Scan(&c.ID, &c.CustomerID, &c.Channel, &c.LastMessage, &c.LastMessageAt, &c.IsRead, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("fetch conversation: %w", err)
	}
	return &c, nil
}

// Touch updates the preview, timestamp and read flag after a message lands
// in either direction.
func (r *ConversationRepository) Touch(ctx context.Context, id, preview string, at time.Time, read bool) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversations
		SET last_message = $1, last_message_at = $2, is_read = $3
		WHERE id = $4
	`, preview, at, read, id)
	return err
}

func (r *ConversationRepository) MarkRead(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, "UPDATE conversations SET is_read = TRUE WHERE id = $1", id)
	return err
}

func (r *ConversationRepository) ListRecent(ctx context.Context, limit int) ([]entities.Conversation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, customer_id, channel, last_message, last_message_at, is_read, created_at
		FROM conversations
		ORDER BY last_message_at DESC NULLS LAST
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := []entities.Conversation{}
	for rows.Next() {
		var c entities.Conversation
		if err := rows.Scan(&c.ID, &c.CustomerID, &c.Channel, &c.LastMessage, &c.LastMessageAt, &c.IsRead, &c.CreatedAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}
