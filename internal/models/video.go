package models

import (
	"time"

	"github.com/google/uuid"
)

type VideoStatus string

const (
	VideoScheduled  VideoStatus = "scheduled"
	VideoLive       VideoStatus = "live"
	VideoProcessing VideoStatus = "processing"
	VideoVOD        VideoStatus = "vod"
)

// videoTransitions is the lifecycle graph: scheduled|live -> processing -> vod.
var videoTransitions = map[VideoStatus][]VideoStatus{
	VideoScheduled:  {VideoProcessing},
	VideoLive:       {VideoProcessing},
	VideoProcessing: {VideoVOD},
}

// Valid reports whether s is a known status.
func (s VideoStatus) Valid() bool {
	switch s {
	case VideoScheduled, VideoLive, VideoProcessing, VideoVOD:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s VideoStatus) CanTransitionTo(next VideoStatus) bool {
	for _, allowed := range videoTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// HasRecording reports whether a static object is expected to exist.
func (s VideoStatus) HasRecording() bool {
	return s == VideoProcessing || s == VideoVOD
}

// Video is one broadcast or recording of a channel. FilePath references the
// stream key while live and is therefore never marshalled.
type Video struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	ChannelID       uuid.UUID   `json:"channel_id" db:"channel_id"`
	Title           string      `json:"title" db:"title"`
	Description     *string     `json:"description,omitempty" db:"description"`
	Status          VideoStatus `json:"status" db:"status"`
	FilePath        *string     `json:"-" db:"file_path"`
	ThumbnailPath   *string     `json:"thumbnail_path,omitempty" db:"thumbnail_path"`
	DurationSeconds *int64      `json:"duration_seconds,omitempty" db:"duration_seconds"`
	StartedAt       *time.Time  `json:"started_at,omitempty" db:"started_at"`
	EndedAt         *time.Time  `json:"ended_at,omitempty" db:"ended_at"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

// FinalizeVideoRequest is sent by the post-processing worker once a
// recording is ready to be served.
type FinalizeVideoRequest struct {
	FilePath        string `json:"file_path" binding:"required"`
	DurationSeconds int64  `json:"duration_seconds" binding:"min=0"`
}
