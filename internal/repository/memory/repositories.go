package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/foxfit/backend/internal/apperr"
	"github.com/foxfit/backend/internal/models"
)

type UserRepository struct{ s *Store }

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Email = strings.ToLower(user.Email)
	for _, u := range s.users {
		if u.Email == user.Email {
			return fmt.Errorf("failed to create user: %w", apperr.ErrConflict)
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = *user

	id := user.ID
	s.record(ctx, func() { delete(s.users, id) })
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, fmt.Errorf("failed to get user: %w", apperr.ErrNotFound)
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email = strings.ToLower(email)
	for _, u := range r.s.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, fmt.Errorf("failed to get user: %w", apperr.ErrNotFound)
}

type ChannelRepository struct{ s *Store }

func (r *ChannelRepository) Create(ctx context.Context, channel *models.Channel) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[channel.OwnerID]; !ok {
		return fmt.Errorf("failed to create channel: owner: %w", apperr.ErrNotFound)
	}
	for _, ch := range s.channels {
		if ch.Slug == channel.Slug || ch.StreamKey == channel.StreamKey {
			return fmt.Errorf("failed to create channel: %w", apperr.ErrConflict)
		}
	}
	if channel.ID == uuid.Nil {
		channel.ID = uuid.New()
	}
	now := s.now()
	channel.CreatedAt, channel.UpdatedAt = now, now
	s.channels[channel.ID] = *channel

	id := channel.ID
	s.record(ctx, func() { delete(s.channels, id) })
	return nil
}

func (r *ChannelRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	return r.find(func(ch models.Channel) bool { return ch.ID == id })
}

func (r *ChannelRepository) GetBySlug(ctx context.Context, slug string) (*models.Channel, error) {
	return r.find(func(ch models.Channel) bool { return ch.Slug == slug })
}

func (r *ChannelRepository) GetByStreamKey(ctx context.Context, key string) (*models.Channel, error) {
	if key == "" {
		return nil, fmt.Errorf("failed to get channel: %w", apperr.ErrNotFound)
	}
	return r.find(func(ch models.Channel) bool { return ch.StreamKey == key })
}

func (r *ChannelRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	if err := r.s.lockRow(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to lock channel: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *ChannelRepository) find(match func(models.Channel) bool) (*models.Channel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ch := range r.s.channels {
		if match(ch) {
			ch := ch
			return &ch, nil
		}
	}
	return nil, fmt.Errorf("failed to get channel: %w", apperr.ErrNotFound)
}

func (r *ChannelRepository) List(ctx context.Context, limit int) ([]models.Channel, error) {
	if limit <= 0 {
		limit = 100
	}
	out := r.collect(func(models.Channel) bool { return true })
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsLive != out[j].IsLive {
			return out[i].IsLive
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ChannelRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Channel, error) {
	out := r.collect(func(ch models.Channel) bool { return ch.OwnerID == ownerID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *ChannelRepository) collect(match func(models.Channel) bool) []models.Channel {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Channel{}
	for _, ch := range r.s.channels {
		if match(ch) {
			out = append(out, ch)
		}
	}
	return out
}

func (r *ChannelRepository) SetLive(ctx context.Context, id uuid.UUID, live bool) error {
	return r.update(ctx, id, func(ch *models.Channel) error {
		ch.IsLive = live
		return nil
	})
}

func (r *ChannelRepository) UpdateStreamKey(ctx context.Context, id uuid.UUID, key string) error {
	return r.update(ctx, id, func(ch *models.Channel) error {
		for _, other := range r.s.channels {
			if other.ID != id && other.StreamKey == key {
				return apperr.ErrConflict
			}
		}
		ch.StreamKey = key
		return nil
	})
}

func (r *ChannelRepository) update(ctx context.Context, id uuid.UUID, mutate func(*models.Channel) error) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.channels[id]
	if !ok {
		return fmt.Errorf("failed to update channel: %w", apperr.ErrNotFound)
	}
	next := prev
	if err := mutate(&next); err != nil {
		return fmt.Errorf("failed to update channel: %w", err)
	}
	next.UpdatedAt = s.now()
	s.channels[id] = next
	s.record(ctx, func() { s.channels[id] = prev })
	return nil
}

type VideoRepository struct{ s *Store }

func (r *VideoRepository) Create(ctx context.Context, v *models.Video) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.channels[v.ChannelID]; !ok {
		return fmt.Errorf("failed to create video: channel: %w", apperr.ErrNotFound)
	}
	if v.Status == models.VideoLive {
		for _, other := range s.videos {
			if other.ChannelID == v.ChannelID && other.Status == models.VideoLive {
				return fmt.Errorf("failed to create video: channel already has a live video: %w", apperr.ErrConflict)
			}
		}
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	now := s.now()
	v.CreatedAt, v.UpdatedAt = now, now
	s.videos[v.ID] = *v

	id := v.ID
	s.record(ctx, func() { delete(s.videos, id) })
	return nil
}

func (r *VideoRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.videos[id]
	if !ok {
		return nil, fmt.Errorf("failed to get video: %w", apperr.ErrNotFound)
	}
	return &v, nil
}

func (r *VideoRepository) LatestLive(ctx context.Context, channelID uuid.UUID) (*models.Video, error) {
	list := r.byChannel(channelID, func(v models.Video) bool { return v.Status == models.VideoLive })
	if len(list) == 0 {
		return nil, fmt.Errorf("failed to get live video: %w", apperr.ErrNotFound)
	}
	return &list[0], nil
}

func (r *VideoRepository) Latest(ctx context.Context, channelID uuid.UUID) (*models.Video, error) {
	list := r.byChannel(channelID, func(models.Video) bool { return true })
	if len(list) == 0 {
		return nil, fmt.Errorf("failed to get latest video: %w", apperr.ErrNotFound)
	}
	return &list[0], nil
}

func (r *VideoRepository) ListByChannel(ctx context.Context, channelID uuid.UUID, limit int) ([]models.Video, error) {
	if limit <= 0 {
		limit = 50
	}
	list := r.byChannel(channelID, func(models.Video) bool { return true })
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// byChannel returns matching videos newest first.
func (r *VideoRepository) byChannel(channelID uuid.UUID, match func(models.Video) bool) []models.Video {
	r.s.mu.Lock()
	out := []models.Video{}
	for _, v := range r.s.videos {
		if v.ChannelID == channelID && match(v) {
			out = append(out, v)
		}
	}
	r.s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *VideoRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.VideoStatus, endedAt *time.Time) (*models.Video, error) {
	return r.cas(ctx, id, from, func(v *models.Video) {
		v.Status = to
		if endedAt != nil {
			t := *endedAt
			v.EndedAt = &t
		}
	})
}

func (r *VideoRepository) Finalize(ctx context.Context, id uuid.UUID, filePath string, durationSeconds int64) (*models.Video, error) {
	return r.cas(ctx, id, models.VideoProcessing, func(v *models.Video) {
		v.Status = models.VideoVOD
		v.FilePath = &filePath
		v.DurationSeconds = &durationSeconds
	})
}

func (r *VideoRepository) cas(ctx context.Context, id uuid.UUID, from models.VideoStatus, mutate func(*models.Video)) (*models.Video, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.videos[id]
	if !ok {
		return nil, fmt.Errorf("video %s: %w", id, apperr.ErrNotFound)
	}
	if prev.Status != from {
		return nil, fmt.Errorf("video %s is %s: %w", id, prev.Status, apperr.ErrStateConflict)
	}
	next := prev
	mutate(&next)
	next.UpdatedAt = s.now()
	s.videos[id] = next
	s.record(ctx, func() { s.videos[id] = prev })
	return &next, nil
}

type ChatRepository struct{ s *Store }

func (r *ChatRepository) Create(ctx context.Context, msg *models.ChatMessage) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.videos[msg.VideoID]; !ok {
		return fmt.Errorf("failed to create chat message: video: %w", apperr.ErrNotFound)
	}
	user, ok := s.users[msg.UserID]
	if !ok {
		return fmt.Errorf("failed to create chat message: user: %w", apperr.ErrNotFound)
	}

	// created_at never goes backwards, so (created_at, id) follows insertion order
	now := s.now()
	if now.Before(s.lastChat) {
		now = s.lastChat
	}
	s.lastChat = now
	s.chatSeq++

	msg.ID = s.chatSeq
	msg.CreatedAt = now
	msg.DisplayName = user.DisplayName

	videoID, id := msg.VideoID, msg.ID
	s.chat[videoID] = append(s.chat[videoID], *msg)
	s.record(ctx, func() {
		list := s.chat[videoID]
		for i := range list {
			if list[i].ID == id {
				s.chat[videoID] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (r *ChatRepository) Newest(ctx context.Context, videoID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	r.s.mu.Lock()
	list := append([]models.ChatMessage(nil), r.s.chat[videoID]...)
	r.s.mu.Unlock()

	sort.SliceStable(list, func(i, j int) bool { return list[j].Before(list[i]) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	if list == nil {
		list = []models.ChatMessage{}
	}
	return list, nil
}
