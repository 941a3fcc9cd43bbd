// Package chat is the append-only message log attached to a video. Reads
// always return the newest window in ascending order.
package chat

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/foxfit/backend/internal/apperr"
	"github.com/foxfit/backend/internal/logger"
	"github.com/foxfit/backend/internal/models"
	"github.com/foxfit/backend/internal/repository"
)

// DefaultLimit is both the default and the largest window Recent returns.
const DefaultLimit = 100

// Notifier is told about every stored message. It must not block.
type Notifier interface {
	ChatMessagePosted(ctx context.Context, msg models.ChatMessage)
}

type Feed struct {
	messages repository.ChatRepository
	videos   repository.VideoRepository
	notifier Notifier
}

func NewFeed(messages repository.ChatRepository, videos repository.VideoRepository) *Feed {
	return &Feed{messages: messages, videos: videos}
}

// SetNotifier installs n. Call before serving traffic.
func (f *Feed) SetNotifier(n Notifier) {
	f.notifier = n
}

// Append stores a message on a live or vod video. It is not retried on
// storage failures so a message is never stored twice.
func (f *Feed) Append(ctx context.Context, videoID, userID uuid.UUID, text string) (*models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation("message", "required")
	}
	if utf8.RuneCountInString(text) > models.MaxChatMessageLength {
		return nil, apperr.Validation("message", fmt.Sprintf("max=%d", models.MaxChatMessageLength))
	}

	v, err := f.videos.GetByID(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("append chat: %w", err)
	}
	if v.Status != models.VideoLive && v.Status != models.VideoVOD {
		return nil, fmt.Errorf("append chat: video is %s: %w", v.Status, apperr.ErrStateConflict)
	}

	msg := &models.ChatMessage{VideoID: videoID, UserID: userID, Message: text}
	if err := f.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("append chat: %w", err)
	}

	if f.notifier != nil {
		f.notifier.ChatMessagePosted(ctx, *msg)
	}
	logger.WithContext(ctx).WithField("video_id", videoID).Debug("chat message stored")
	return msg, nil
}

// Recent returns up to limit of the newest messages, oldest first. A limit
// outside 1..100 is clamped.
func (f *Feed) Recent(ctx context.Context, videoID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}
	if _, err := f.videos.GetByID(ctx, videoID); err != nil {
		return nil, fmt.Errorf("recent chat: %w", err)
	}

	newest, err := f.messages.Newest(ctx, videoID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent chat: %w", err)
	}
	for i, j := 0, len(newest)-1; i < j; i, j = i+1, j-1 {
		newest[i], newest[j] = newest[j], newest[i]
	}
	return newest, nil
}
