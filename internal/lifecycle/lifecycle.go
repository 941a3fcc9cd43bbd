// Package lifecycle creates videos and walks them through
// scheduled|live -> processing -> vod. Every transition is a conditional
// update on the expected prior status.
package lifecycle

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/foxfit/backend/internal/apperr"
	"github.com/foxfit/backend/internal/logger"
	"github.com/foxfit/backend/internal/models"
	"github.com/foxfit/backend/internal/repository"
)

type Manager struct {
	videos repository.VideoRepository
	now    func() time.Time
}

func New(videos repository.VideoRepository) *Manager {
	return &Manager{videos: videos, now: time.Now}
}

// PlaceholderPath is where the ingest server writes the live playlist for
// a stream key. It is stored on the live video and never serialized.
func PlaceholderPath(streamKey string) string {
	return "streaming/live/" + streamKey + ".m3u8"
}

func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	return m.videos.GetByID(ctx, id)
}

// CreateLive inserts the live video for a channel that is going on air.
func (m *Manager) CreateLive(ctx context.Context, ch *models.Channel) (*models.Video, error) {
	now := m.now().UTC()
	placeholder := PlaceholderPath(ch.StreamKey)
	v := &models.Video{
		ChannelID:     ch.ID,
		Title:         "Live broadcast " + now.Format("2006-01-02 15:04"),
		Status:        models.VideoLive,
		FilePath:      &placeholder,
		ThumbnailPath: ch.CoverImage,
		StartedAt:     &now,
	}
	if err := m.videos.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("create live video: %w", err)
	}
	return v, nil
}

// MarkProcessing ends a live (or abandons a scheduled) video.
func (m *Manager) MarkProcessing(ctx context.Context, v *models.Video) (*models.Video, error) {
	if !v.Status.CanTransitionTo(models.VideoProcessing) {
		return nil, transitionError(v, models.VideoProcessing)
	}
	var endedAt *time.Time
	if v.Status == models.VideoLive {
		now := m.now().UTC()
		endedAt = &now
	}
	updated, err := m.videos.UpdateStatus(ctx, v.ID, v.Status, models.VideoProcessing, endedAt)
	if err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}
	return updated, nil
}

// MarkVod records the finished recording of a processing video.
func (m *Manager) MarkVod(ctx context.Context, v *models.Video, filePath string, durationSeconds int64) (*models.Video, error) {
	if !validRecordingPath(filePath) {
		return nil, apperr.Validation("file_path", "relative_path")
	}
	if durationSeconds < 0 {
		return nil, apperr.Validation("duration_seconds", "min=0")
	}
	if !v.Status.CanTransitionTo(models.VideoVOD) {
		return nil, transitionError(v, models.VideoVOD)
	}

	updated, err := m.videos.Finalize(ctx, v.ID, path.Clean(filePath), durationSeconds)
	if err != nil {
		return nil, fmt.Errorf("mark vod: %w", err)
	}
	logger.WithContext(ctx).WithFields(logrus.Fields{
		"video_id":         updated.ID,
		"duration_seconds": durationSeconds,
	}).Info("video published as vod")
	return updated, nil
}

// Finalize loads a video by id and publishes its recording.
func (m *Manager) Finalize(ctx context.Context, id uuid.UUID, filePath string, durationSeconds int64) (*models.Video, error) {
	v, err := m.videos.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.MarkVod(ctx, v, filePath, durationSeconds)
}

func transitionError(v *models.Video, to models.VideoStatus) error {
	err := fmt.Errorf("video %s cannot move from %s to %s: %w", v.ID, v.Status, to, apperr.ErrStateConflict)
	logger.WithComponent("lifecycle").WithField("video_id", v.ID).Warn(err.Error())
	return err
}

// validRecordingPath accepts slash separated paths relative to the media
// root that never climb out of it.
func validRecordingPath(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, `\`) {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return false
		}
	}
	clean := path.Clean(p)
	return clean != "." && clean != ""
}
