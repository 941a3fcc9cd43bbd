package lifecycle

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxfit/backend/internal/apperr"
	"github.com/foxfit/backend/internal/models"
	"github.com/foxfit/backend/internal/repository/memory"
)

func setup(t *testing.T) (*Manager, *memory.Store, *models.Channel) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	owner := &models.User{Email: "coach@foxfit.test", DisplayName: "Coach"}
	require.NoError(t, store.Users().Create(ctx, owner))
	cover := "covers/hiit.jpg"
	ch := &models.Channel{OwnerID: owner.ID, Name: "HIIT", Slug: "hiit", StreamKey: "live_abc123", CoverImage: &cover}
	require.NoError(t, store.Channels().Create(ctx, ch))
	return New(store.Videos()), store, ch
}

func TestCreateLive(t *testing.T) {
	m, _, ch := setup(t)

	v, err := m.CreateLive(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, models.VideoLive, v.Status)
	require.NotNil(t, v.FilePath)
	assert.Equal(t, "streaming/live/live_abc123.m3u8", *v.FilePath)
	assert.Equal(t, ch.CoverImage, v.ThumbnailPath)
	assert.NotNil(t, v.StartedAt)
	assert.Nil(t, v.DurationSeconds)
}

func TestFullLifecycle(t *testing.T) {
	m, _, ch := setup(t)
	ctx := context.Background()

	v, err := m.CreateLive(ctx, ch)
	require.NoError(t, err)

	v, err = m.MarkProcessing(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, models.VideoProcessing, v.Status)
	assert.NotNil(t, v.EndedAt)

	v, err = m.MarkVod(ctx, v, "recordings/hiit/2024-05-01.mp4", 3600)
	require.NoError(t, err)
	assert.Equal(t, models.VideoVOD, v.Status)
	require.NotNil(t, v.DurationSeconds)
	assert.EqualValues(t, 3600, *v.DurationSeconds)
}

func TestInvalidTransitions(t *testing.T) {
	m, _, ch := setup(t)
	ctx := context.Background()

	live, err := m.CreateLive(ctx, ch)
	require.NoError(t, err)

	_, err = m.MarkVod(ctx, live, "recordings/a.mp4", 10)
	assert.ErrorIs(t, err, apperr.ErrStateConflict)

	processing, err := m.MarkProcessing(ctx, live)
	require.NoError(t, err)

	// the caller still holds the stale live copy
	_, err = m.MarkProcessing(ctx, live)
	assert.ErrorIs(t, err, apperr.ErrStateConflict)

	_, err = m.MarkProcessing(ctx, processing)
	assert.ErrorIs(t, err, apperr.ErrStateConflict)

	vod, err := m.MarkVod(ctx, processing, "recordings/a.mp4", 10)
	require.NoError(t, err)

	_, err = m.MarkVod(ctx, vod, "recordings/b.mp4", 10)
	assert.ErrorIs(t, err, apperr.ErrStateConflict)
}

func TestMarkVod_Validation(t *testing.T) {
	m, _, ch := setup(t)
	ctx := context.Background()

	v, err := m.CreateLive(ctx, ch)
	require.NoError(t, err)
	v, err = m.MarkProcessing(ctx, v)
	require.NoError(t, err)

	tests := []struct {
		name     string
		path     string
		duration int64
		field    string
	}{
		{"empty path", "", 10, "file_path"},
		{"absolute path", "/etc/passwd", 10, "file_path"},
		{"climbs out", "recordings/../../secret.mp4", 10, "file_path"},
		{"backslash", `recordings\a.mp4`, 10, "file_path"},
		{"negative duration", "recordings/a.mp4", -1, "duration_seconds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.MarkVod(ctx, v, tt.path, tt.duration)
			ve, ok := apperr.AsValidation(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestFinalize_UnknownVideo(t *testing.T) {
	m, _, _ := setup(t)
	_, err := m.Finalize(context.Background(), uuid.New(), "recordings/a.mp4", 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
