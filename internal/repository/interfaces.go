// Package repository declares the persistence contracts used by the core
// packages. Implementations live in repository/postgres and
// repository/memory; both report failures with the apperr sentinels.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/foxfit/backend/internal/models"
)

// Transactor runs fn atomically. Repository calls made with the ctx passed
// to fn join the transaction; nested WithinTx calls join the outer one.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

type ChannelRepository interface {
	Create(ctx context.Context, channel *models.Channel) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error)
	GetBySlug(ctx context.Context, slug string) (*models.Channel, error)
	GetByStreamKey(ctx context.Context, key string) (*models.Channel, error)
	// List returns live channels first, then newest.
	List(ctx context.Context, limit int) ([]models.Channel, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Channel, error)
	// LockForUpdate reads the channel and holds its row lock until the
	// surrounding transaction ends.
	LockForUpdate(ctx context.Context, id uuid.UUID) (*models.Channel, error)
	SetLive(ctx context.Context, id uuid.UUID, live bool) error
	UpdateStreamKey(ctx context.Context, id uuid.UUID, key string) error
}

type VideoRepository interface {
	Create(ctx context.Context, video *models.Video) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
	// LatestLive returns the most recent live video of a channel, or
	// apperr.ErrNotFound.
	LatestLive(ctx context.Context, channelID uuid.UUID) (*models.Video, error)
	// Latest returns the most recently created video of a channel.
	Latest(ctx context.Context, channelID uuid.UUID) (*models.Video, error)
	ListByChannel(ctx context.Context, channelID uuid.UUID, limit int) ([]models.Video, error)
	// UpdateStatus moves a video from one status to another only if it is
	// still in from. A stale from yields apperr.ErrStateConflict.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.VideoStatus, endedAt *time.Time) (*models.Video, error)
	// Finalize moves a processing video to vod and records its recording.
	Finalize(ctx context.Context, id uuid.UUID, filePath string, durationSeconds int64) (*models.Video, error)
}

type ChatRepository interface {
	// Create stores msg and fills in ID, CreatedAt and DisplayName.
	Create(ctx context.Context, msg *models.ChatMessage) error
	// Newest returns up to limit messages, newest first, ordered by
	// (created_at, id) descending.
	Newest(ctx context.Context, videoID uuid.UUID, limit int) ([]models.ChatMessage, error)
}
