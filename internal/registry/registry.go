// Package registry owns the channel to stream key mapping. Lookups are side
// effect free; keys are only minted at creation or by an explicit rotation.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/foxfit/backend/internal/apperr"
	"github.com/foxfit/backend/internal/logger"
	"github.com/foxfit/backend/internal/models"
	"github.com/foxfit/backend/internal/repository"
)

const generatedSlugAttempts = 3

type Registry struct {
	channels repository.ChannelRepository
	tx       repository.Transactor
	newKey   func() (string, error)
}

func New(channels repository.ChannelRepository, tx repository.Transactor) *Registry {
	return &Registry{channels: channels, tx: tx, newKey: GenerateStreamKey}
}

// ResolveByStreamKey maps a broadcaster credential to its channel.
func (r *Registry) ResolveByStreamKey(ctx context.Context, key string) (*models.Channel, error) {
	if key == "" {
		return nil, fmt.Errorf("resolve stream key: %w", apperr.ErrNotFound)
	}
	ch, err := r.channels.GetByStreamKey(ctx, key)
	if err != nil {
		// the key itself is never part of the error
		return nil, fmt.Errorf("resolve stream key: %w", err)
	}
	return ch, nil
}

func (r *Registry) ResolveBySlug(ctx context.Context, slug string) (*models.Channel, error) {
	if !ValidSlug(slug) {
		return nil, fmt.Errorf("resolve slug %q: %w", slug, apperr.ErrNotFound)
	}
	ch, err := r.channels.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("resolve slug %q: %w", slug, err)
	}
	return ch, nil
}

func (r *Registry) GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	return r.channels.GetByID(ctx, id)
}

func (r *Registry) List(ctx context.Context, limit int) ([]models.Channel, error) {
	return r.channels.List(ctx, limit)
}

func (r *Registry) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Channel, error) {
	return r.channels.ListByOwner(ctx, ownerID)
}

// CreateInput carries the owner supplied channel fields. An empty Slug is
// derived from Name.
type CreateInput struct {
	Name        string
	Slug        string
	Description *string
	CoverImage  *string
}

// Create registers a channel and mints its stream key.
func (r *Registry) Create(ctx context.Context, ownerID uuid.UUID, in CreateInput) (*models.Channel, error) {
	name := strings.TrimSpace(in.Name)
	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		return nil, apperr.Validation("name", "required")
	case n < 2:
		return nil, apperr.Validation("name", "min=2")
	case n > 100:
		return nil, apperr.Validation("name", "max=100")
	}

	explicit := in.Slug != ""
	if explicit && !ValidSlug(in.Slug) {
		return nil, apperr.Validation("slug", "slug")
	}

	attempts := 1
	if !explicit {
		attempts = generatedSlugAttempts
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		slug := in.Slug
		if !explicit {
			var err error
			if slug, err = r.deriveSlug(name); err != nil {
				return nil, err
			}
		}
		key, err := r.newKey()
		if err != nil {
			return nil, err
		}

		ch := &models.Channel{
			OwnerID:     ownerID,
			Name:        name,
			Slug:        slug,
			Description: in.Description,
			CoverImage:  in.CoverImage,
			StreamKey:   key,
		}
		err = r.channels.Create(ctx, ch)
		if err == nil {
			logger.WithContext(logger.ContextWithChannelID(ctx, ch.ID.String())).
				WithField("slug", ch.Slug).Info("channel created")
			return ch, nil
		}
		if !errors.Is(err, apperr.ErrConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (r *Registry) deriveSlug(name string) (string, error) {
	base := Slugify(name)
	if base == "" {
		base = "channel"
	}
	suffix, err := randomSuffix()
	if err != nil {
		return "", err
	}
	return base + "-" + suffix, nil
}

// RotateStreamKey replaces the key of an owned channel. It is refused while
// the channel is live because the running broadcast is bound to the old key.
func (r *Registry) RotateStreamKey(ctx context.Context, ownerID uuid.UUID, slug string) (*models.Channel, error) {
	ch, err := r.ResolveBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if ch.OwnerID != ownerID {
		return nil, fmt.Errorf("rotate stream key: %w", apperr.ErrForbidden)
	}

	var rotated *models.Channel
	err = r.tx.WithinTx(ctx, func(ctx context.Context) error {
		locked, err := r.channels.LockForUpdate(ctx, ch.ID)
		if err != nil {
			return err
		}
		if locked.IsLive {
			return fmt.Errorf("rotate stream key while live: %w", apperr.ErrStateConflict)
		}
		key, err := r.newKey()
		if err != nil {
			return err
		}
		if err := r.channels.UpdateStreamKey(ctx, ch.ID, key); err != nil {
			return err
		}
		locked.StreamKey = key
		rotated = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(logger.ContextWithChannelID(ctx, ch.ID.String())).Info("stream key rotated")
	return rotated, nil
}
