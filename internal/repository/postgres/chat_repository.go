package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/foxfit/backend/internal/database"
	"github.com/foxfit/backend/internal/models"
)

type ChatRepository struct {
	db *database.DB
}

func NewChatRepository(db *database.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Create inserts a chat message and returns it joined with the author's display name
func (r *ChatRepository) Create(ctx context.Context, msg *models.ChatMessage) error {
	query := `
		WITH ins AS (
			INSERT INTO chat_messages (video_id, user_id, message)
			VALUES ($1, $2, $3)
			RETURNING id, user_id, created_at
		)
		SELECT ins.id, ins.created_at, u.display_name
		FROM ins JOIN users u ON u.id = ins.user_id
	`
	err := r.db.Conn(ctx).QueryRowContext(ctx, query, msg.VideoID, msg.UserID, msg.Message).
		Scan(&msg.ID, &msg.CreatedAt, &msg.DisplayName)
	if err != nil {
		return database.Classify(fmt.Errorf("failed to create chat message: %w", err))
	}
	return nil
}

// Newest returns the latest messages for a video, newest first
func (r *ChatRepository) Newest(ctx context.Context, videoID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	query := `
		SELECT m.id, m.video_id, m.user_id, u.display_name, m.message, m.created_at
		FROM chat_messages m
		JOIN users u ON u.id = m.user_id
		WHERE m.video_id = $1
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $2
	`
	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, videoID, limit)
	if err != nil {
		return nil, database.Classify(fmt.Errorf("failed to get chat messages: %w", err))
	}
	defer rows.Close()

	messages := []models.ChatMessage{}
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.VideoID, &m.UserID, &m.DisplayName, &m.Message, &m.CreatedAt); err != nil {
			return nil, database.Classify(fmt.Errorf("failed to scan chat message: %w", err))
		}
		messages = append(messages, m)
	}
	return messages, database.Classify(rows.Err())
}
