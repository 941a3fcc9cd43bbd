// Package live owns the per-channel OFFLINE/LIVE state. Transitions for one
// channel are linearized by a keyed mutex and committed in one datastore
// transaction; different channels never share a lock.
package live

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/foxfit/backend/internal/apperr"
	"github.com/foxfit/backend/internal/lifecycle"
	"github.com/foxfit/backend/internal/logger"
	"github.com/foxfit/backend/internal/models"
	"github.com/foxfit/backend/internal/repository"
)

// Observer is told about committed transitions.
type Observer interface {
	LiveStarted(ctx context.Context, channel models.Channel, video models.Video)
	LiveEnded(ctx context.Context, channel models.Channel, video models.Video)
}

type StateMachine struct {
	channels  repository.ChannelRepository
	videos    repository.VideoRepository
	lifecycle *lifecycle.Manager
	tx        repository.Transactor
	locks     *KeyedMutex
	observers []Observer
}

func NewStateMachine(
	channels repository.ChannelRepository,
	videos repository.VideoRepository,
	lc *lifecycle.Manager,
	tx repository.Transactor,
) *StateMachine {
	return &StateMachine{
		channels:  channels,
		videos:    videos,
		lifecycle: lc,
		tx:        tx,
		locks:     NewKeyedMutex(),
	}
}

// Observe registers o. Call before serving traffic.
func (sm *StateMachine) Observe(o Observer) {
	sm.observers = append(sm.observers, o)
}

// IsLive reads the channel's live flag without taking the transition lock.
func (sm *StateMachine) IsLive(ctx context.Context, channelID uuid.UUID) (bool, error) {
	ch, err := sm.channels.GetByID(ctx, channelID)
	if err != nil {
		return false, err
	}
	return ch.IsLive, nil
}

// StartLive moves the channel to LIVE and returns its live video. Starting
// a channel that is already live returns the existing video.
func (sm *StateMachine) StartLive(ctx context.Context, channel *models.Channel) (*models.Video, error) {
	ctx = logger.ContextWithChannelID(ctx, channel.ID.String())
	log := logger.WithContext(ctx).WithField("component", "live")

	unlock, err := sm.locks.Lock(ctx, channel.ID)
	if err != nil {
		return nil, fmt.Errorf("start live: %w", err)
	}
	defer unlock()

	var (
		video   *models.Video
		current *models.Channel
		started bool
	)
	err = sm.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		current, err = sm.channels.LockForUpdate(ctx, channel.ID)
		if err != nil {
			return err
		}
		existing, err := sm.liveVideo(ctx, channel.ID)
		if err != nil {
			return err
		}

		switch {
		case existing != nil && current.IsLive:
			video = existing
			return nil
		case existing != nil:
			log.WithField("video_id", existing.ID).Warn("live video found on offline channel, restoring live flag")
			video = existing
			current.IsLive = true
			return sm.channels.SetLive(ctx, channel.ID, true)
		case current.IsLive:
			log.Warn("channel flagged live without a live video, creating one")
		default:
			if err := sm.channels.SetLive(ctx, channel.ID, true); err != nil {
				return err
			}
			current.IsLive = true
		}

		video, err = sm.lifecycle.CreateLive(ctx, current)
		if err != nil {
			return err
		}
		started = true
		return nil
	})
	// observers run outside the channel lock
	unlock()
	if err != nil {
		return nil, fmt.Errorf("start live: %w", err)
	}

	if started {
		log.WithField("video_id", video.ID).Info("channel went live")
		for _, o := range sm.observers {
			o.LiveStarted(ctx, *current, *video)
		}
	} else {
		log.WithField("video_id", video.ID).Debug("channel already live")
	}
	return video, nil
}

// StopLive moves the channel to OFFLINE and returns the video that left the
// live state, or nil when there was none.
func (sm *StateMachine) StopLive(ctx context.Context, channel *models.Channel) (*models.Video, error) {
	ctx = logger.ContextWithChannelID(ctx, channel.ID.String())
	log := logger.WithContext(ctx).WithField("component", "live")

	unlock, err := sm.locks.Lock(ctx, channel.ID)
	if err != nil {
		return nil, fmt.Errorf("stop live: %w", err)
	}
	defer unlock()

	var (
		ended   *models.Video
		current *models.Channel
	)
	err = sm.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		current, err = sm.channels.LockForUpdate(ctx, channel.ID)
		if err != nil {
			return err
		}
		existing, err := sm.liveVideo(ctx, channel.ID)
		if err != nil {
			return err
		}

		if existing == nil {
			if current.IsLive {
				log.Warn("channel flagged live without a live video, clearing flag")
				current.IsLive = false
				return sm.channels.SetLive(ctx, channel.ID, false)
			}
			return nil
		}

		ended, err = sm.lifecycle.MarkProcessing(ctx, existing)
		if err != nil {
			return err
		}
		if current.IsLive {
			current.IsLive = false
			return sm.channels.SetLive(ctx, channel.ID, false)
		}
		return nil
	})
	// observers run outside the channel lock
	unlock()
	if err != nil {
		return nil, fmt.Errorf("stop live: %w", err)
	}

	if ended == nil {
		log.Debug("channel already offline")
		return nil, nil
	}
	log.WithFields(logrus.Fields{"video_id": ended.ID, "status": ended.Status}).Info("channel went offline")
	for _, o := range sm.observers {
		o.LiveEnded(ctx, *current, *ended)
	}
	return ended, nil
}

func (sm *StateMachine) liveVideo(ctx context.Context, channelID uuid.UUID) (*models.Video, error) {
	v, err := sm.videos.LatestLive(ctx, channelID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	return v, err
}
