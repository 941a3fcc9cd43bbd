package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/foxfit/backend/internal/apperr"
	"github.com/foxfit/backend/internal/database"
	"github.com/foxfit/backend/internal/models"
)

const videoColumns = `id, channel_id, title, description, status, file_path, thumbnail_path,
	duration_seconds, started_at, ended_at, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

type VideoRepository struct {
	db *database.DB
}

func NewVideoRepository(db *database.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

func scanVideo(row rowScanner) (*models.Video, error) {
	v := &models.Video{}
	err := row.Scan(
		&v.ID,
		&v.ChannelID,
		&v.Title,
		&v.Description,
		&v.Status,
		&v.FilePath,
		&v.ThumbnailPath,
		&v.DurationSeconds,
		&v.StartedAt,
		&v.EndedAt,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *VideoRepository) Create(ctx context.Context, v *models.Video) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	query := `
		INSERT INTO videos (id, channel_id, title, description, status, file_path, thumbnail_path, duration_seconds, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`
	err := r.db.Conn(ctx).QueryRowContext(ctx, query,
		v.ID,
		v.ChannelID,
		v.Title,
		v.Description,
		v.Status,
		v.FilePath,
		v.ThumbnailPath,
		v.DurationSeconds,
		v.StartedAt,
		v.EndedAt,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return database.Classify(fmt.Errorf("failed to create video: %w", err))
	}
	return nil
}

func (r *VideoRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`
	v, err := scanVideo(r.db.Conn(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, database.Classify(fmt.Errorf("failed to get video: %w", err))
	}
	return v, nil
}

func (r *VideoRepository) LatestLive(ctx context.Context, channelID uuid.UUID) (*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos
		WHERE channel_id = $1 AND status = 'live' ORDER BY created_at DESC LIMIT 1`
	v, err := scanVideo(r.db.Conn(ctx).QueryRowContext(ctx, query, channelID))
	if err != nil {
		return nil, database.Classify(fmt.Errorf("failed to get live video: %w", err))
	}
	return v, nil
}

func (r *VideoRepository) Latest(ctx context.Context, channelID uuid.UUID) (*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos
		WHERE channel_id = $1 ORDER BY created_at DESC LIMIT 1`
	v, err := scanVideo(r.db.Conn(ctx).QueryRowContext(ctx, query, channelID))
	if err != nil {
		return nil, database.Classify(fmt.Errorf("failed to get latest video: %w", err))
	}
	return v, nil
}

func (r *VideoRepository) ListByChannel(ctx context.Context, channelID uuid.UUID, limit int) ([]models.Video, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + videoColumns + ` FROM videos
		WHERE channel_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, channelID, limit)
	if err != nil {
		return nil, database.Classify(fmt.Errorf("failed to list videos: %w", err))
	}
	defer rows.Close()

	out := []models.Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, database.Classify(fmt.Errorf("failed to scan video: %w", err))
		}
		out = append(out, *v)
	}
	return out, database.Classify(rows.Err())
}

func (r *VideoRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.VideoStatus, endedAt *time.Time) (*models.Video, error) {
	query := `UPDATE videos SET status = $1, ended_at = COALESCE($2, ended_at), updated_at = NOW()
		WHERE id = $3 AND status = $4
		RETURNING ` + videoColumns
	v, err := scanVideo(r.db.Conn(ctx).QueryRowContext(ctx, query, to, endedAt, id, from))
	if err != nil {
		return nil, r.casError(ctx, id, fmt.Errorf("failed to update video status: %w", err))
	}
	return v, nil
}

func (r *VideoRepository) Finalize(ctx context.Context, id uuid.UUID, filePath string, durationSeconds int64) (*models.Video, error) {
	query := `UPDATE videos SET status = 'vod', file_path = $1, duration_seconds = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'processing'
		RETURNING ` + videoColumns
	v, err := scanVideo(r.db.Conn(ctx).QueryRowContext(ctx, query, filePath, durationSeconds, id))
	if err != nil {
		return nil, r.casError(ctx, id, fmt.Errorf("failed to finalize video: %w", err))
	}
	return v, nil
}

// casError tells a missing row apart from a row whose status moved on.
func (r *VideoRepository) casError(ctx context.Context, id uuid.UUID, err error) error {
	if !errors.Is(err, sql.ErrNoRows) {
		return database.Classify(err)
	}
	var exists bool
	if qerr := r.db.Conn(ctx).QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM videos WHERE id = $1)`, id).Scan(&exists); qerr != nil {
		return database.Classify(fmt.Errorf("failed to check video: %w", qerr))
	}
	if !exists {
		return fmt.Errorf("video %s: %w", id, apperr.ErrNotFound)
	}
	return fmt.Errorf("video %s: %w", id, apperr.ErrStateConflict)
}
