// Package ingest turns publish-start/publish-stop callbacks from the ingest
// server into live state transitions. It holds no state of its own.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/foxfit/backend/internal/apperr"
	"github.com/foxfit/backend/internal/logger"
	"github.com/foxfit/backend/internal/models"
)

// DefaultTimeout bounds one callback: key lookup plus the transition.
const DefaultTimeout = 5 * time.Second

type Resolver interface {
	ResolveByStreamKey(ctx context.Context, key string) (*models.Channel, error)
}

type Sessions interface {
	IsLive(ctx context.Context, channelID uuid.UUID) (bool, error)
	StartLive(ctx context.Context, channel *models.Channel) (*models.Video, error)
	StopLive(ctx context.Context, channel *models.Channel) (*models.Video, error)
}

type Gateway struct {
	registry Resolver
	sessions Sessions
	timeout  time.Duration
}

func NewGateway(registry Resolver, sessions Sessions, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gateway{registry: registry, sessions: sessions, timeout: timeout}
}

// OnPublishStart authorizes a broadcaster. An unknown key yields
// apperr.ErrForbidden; a channel that is already live is accepted as is.
func (g *Gateway) OnPublishStart(ctx context.Context, key string) error {
	if key == "" {
		return apperr.Validation("key", "required")
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ch, err := g.registry.ResolveByStreamKey(ctx, key)
	if errors.Is(err, apperr.ErrNotFound) {
		logger.WithContext(ctx).WithField("component", "ingest").Warn("publish rejected: unknown stream key")
		return fmt.Errorf("publish start: %w", apperr.ErrForbidden)
	}
	if err != nil {
		return fmt.Errorf("publish start: %w", err)
	}
	ctx = logger.ContextWithChannelID(ctx, ch.ID.String())

	live, err := g.sessions.IsLive(ctx, ch.ID)
	if err != nil {
		return fmt.Errorf("publish start: %w", err)
	}
	if live {
		logger.WithContext(ctx).WithField("component", "ingest").Info("publish start ignored: channel already live")
		return nil
	}

	if _, err := g.sessions.StartLive(ctx, ch); err != nil {
		return fmt.Errorf("publish start: %w", err)
	}
	return nil
}

// OnPublishStop tears a broadcast down. Unknown keys and offline channels
// are successes: there is nothing to stop.
func (g *Gateway) OnPublishStop(ctx context.Context, key string) error {
	if key == "" {
		return apperr.Validation("key", "required")
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ch, err := g.registry.ResolveByStreamKey(ctx, key)
	if errors.Is(err, apperr.ErrNotFound) {
		logger.WithContext(ctx).WithField("component", "ingest").Info("publish stop for unknown stream key ignored")
		return nil
	}
	if err != nil {
		return fmt.Errorf("publish stop: %w", err)
	}

	if _, err := g.sessions.StopLive(ctx, ch); err != nil {
		return fmt.Errorf("publish stop: %w", err)
	}
	return nil
}
