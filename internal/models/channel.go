package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel is a broadcaster's stage. StreamKey is a secret: it is never
// marshalled, and only the owner-facing ChannelWithKey exposes it.
type Channel struct {
	ID          uuid.UUID `json:"id" db:"id"`
	OwnerID     uuid.UUID `json:"owner_id" db:"owner_id"`
	Name        string    `json:"name" db:"name"`
	Slug        string    `json:"slug" db:"slug"`
	Description *string   `json:"description,omitempty" db:"description"`
	CoverImage  *string   `json:"cover_image,omitempty" db:"cover_image"`
	StreamKey   string    `json:"-" db:"stream_key"`
	IsLive      bool      `json:"is_live" db:"is_live"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ChannelWithKey is the owner's view of a channel.
type ChannelWithKey struct {
	Channel
	StreamKey string `json:"stream_key"`
}

// WithKey returns the owner's view of c.
func (c Channel) WithKey() ChannelWithKey {
	return ChannelWithKey{Channel: c, StreamKey: c.StreamKey}
}

type CreateChannelRequest struct {
	Name        string  `json:"name" binding:"required,min=2,max=100"`
	Slug        string  `json:"slug,omitempty" binding:"omitempty,slug"`
	Description *string `json:"description,omitempty" binding:"omitempty,max=2000"`
	CoverImage  *string `json:"cover_image,omitempty" binding:"omitempty,max=500"`
}
