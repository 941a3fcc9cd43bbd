package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/foxfit/backend/internal/apperr"
	"github.com/foxfit/backend/internal/database"
	"github.com/foxfit/backend/internal/models"
)

const channelColumns = `id, owner_id, name, slug, description, cover_image, stream_key, is_live, created_at, updated_at`

type ChannelRepository struct {
	db *database.DB
}

func NewChannelRepository(db *database.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

func scanChannel(row rowScanner) (*models.Channel, error) {
	ch := &models.Channel{}
	err := row.Scan(
		&ch.ID,
		&ch.OwnerID,
		&ch.Name,
		&ch.Slug,
		&ch.Description,
		&ch.CoverImage,
		&ch.StreamKey,
		&ch.IsLive,
		&ch.CreatedAt,
		&ch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (r *ChannelRepository) Create(ctx context.Context, channel *models.Channel) error {
	if channel.ID == uuid.Nil {
		channel.ID = uuid.New()
	}
	query := `
		INSERT INTO channels (id, owner_id, name, slug, description, cover_image, stream_key, is_live)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err := r.db.Conn(ctx).QueryRowContext(ctx, query,
		channel.ID,
		channel.OwnerID,
		channel.Name,
		channel.Slug,
		channel.Description,
		channel.CoverImage,
		channel.StreamKey,
		channel.IsLive,
	).Scan(&channel.CreatedAt, &channel.UpdatedAt)
	if err != nil {
		return database.Classify(fmt.Errorf("failed to create channel: %w", err))
	}
	return nil
}

func (r *ChannelRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *ChannelRepository) GetBySlug(ctx context.Context, slug string) (*models.Channel, error) {
	return r.getOne(ctx, `WHERE slug = $1`, slug)
}

func (r *ChannelRepository) GetByStreamKey(ctx context.Context, key string) (*models.Channel, error) {
	return r.getOne(ctx, `WHERE stream_key = $1`, key)
}

// LockForUpdate must run inside WithinTx for the row lock to outlive the call.
func (r *ChannelRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	return r.getOne(ctx, `WHERE id = $1 FOR UPDATE`, id)
}

func (r *ChannelRepository) getOne(ctx context.Context, where string, arg any) (*models.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels ` + where
	ch, err := scanChannel(r.db.Conn(ctx).QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, database.Classify(fmt.Errorf("failed to get channel: %w", err))
	}
	return ch, nil
}

func (r *ChannelRepository) List(ctx context.Context, limit int) ([]models.Channel, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + channelColumns + ` FROM channels ORDER BY is_live DESC, created_at DESC LIMIT $1`
	return r.list(ctx, query, limit)
}

func (r *ChannelRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE owner_id = $1 ORDER BY created_at`
	return r.list(ctx, query, ownerID)
}

func (r *ChannelRepository) list(ctx context.Context, query string, arg any) ([]models.Channel, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, database.Classify(fmt.Errorf("failed to list channels: %w", err))
	}
	defer rows.Close()

	out := []models.Channel{}
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, database.Classify(fmt.Errorf("failed to scan channel: %w", err))
		}
		out = append(out, *ch)
	}
	return out, database.Classify(rows.Err())
}

func (r *ChannelRepository) SetLive(ctx context.Context, id uuid.UUID, live bool) error {
	query := `UPDATE channels SET is_live = $1, updated_at = NOW() WHERE id = $2`
	return r.exec(ctx, "failed to set channel live flag", query, live, id)
}

func (r *ChannelRepository) UpdateStreamKey(ctx context.Context, id uuid.UUID, key string) error {
	query := `UPDATE channels SET stream_key = $1, updated_at = NOW() WHERE id = $2`
	return r.exec(ctx, "failed to update stream key", query, key, id)
}

func (r *ChannelRepository) exec(ctx context.Context, msg, query string, args ...any) error {
	result, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return database.Classify(fmt.Errorf("%s: %w", msg, err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", msg, apperr.ErrNotFound)
	}
	return nil
}
