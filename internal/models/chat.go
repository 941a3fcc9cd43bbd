package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxChatMessageLength bounds a chat message, counted in characters.
const MaxChatMessageLength = 1000

// ChatMessage is immutable once stored. Ordering key is (CreatedAt, ID).
type ChatMessage struct {
	ID          int64     `json:"id" db:"id"`
	VideoID     uuid.UUID `json:"video_id" db:"video_id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Message     string    `json:"message" db:"message"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Before reports whether m sorts strictly before other.
func (m ChatMessage) Before(other ChatMessage) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

type PostChatRequest struct {
	Message string `json:"message"`
}
