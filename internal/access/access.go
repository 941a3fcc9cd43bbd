// Package access answers "may this user watch channel X". Subscription and
// role checks belong to the wider platform; here any signed-in user of an
// existing channel may watch.
package access

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/foxfit/backend/internal/apperr"
	"github.com/foxfit/backend/internal/models"
)

type ChannelSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error)
}

type Authorizer struct {
	channels ChannelSource
}

func NewAuthorizer(channels ChannelSource) *Authorizer {
	return &Authorizer{channels: channels}
}

func (a *Authorizer) CanView(ctx context.Context, requester, channelID uuid.UUID) (bool, error) {
	if requester == uuid.Nil {
		return false, nil
	}
	if _, err := a.channels.GetByID(ctx, channelID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CanManage reports whether requester owns the channel.
func (a *Authorizer) CanManage(ctx context.Context, requester, channelID uuid.UUID) (bool, error) {
	ch, err := a.channels.GetByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return ch.OwnerID == requester, nil
}
