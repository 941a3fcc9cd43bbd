// Package media serves recorded video bytes to authorized viewers with
// HTTP range semantics. Recordings are only reachable through Delivery.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/foxfit/backend/internal/apperr"
	"github.com/foxfit/backend/internal/logger"
	"github.com/foxfit/backend/internal/models"
)

const copyBufferSize = 32 * 1024

// Authorizer decides whether a viewer may watch a channel's recordings.
type Authorizer interface {
	CanView(ctx context.Context, requester uuid.UUID, channelID uuid.UUID) (bool, error)
}

type VideoSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
}

// Result summarises a completed delivery for access logs.
type Result struct {
	Status int
	Plan   DeliveryPlan
	Sent   int64
}

type Delivery struct {
	videos     VideoSource
	authorizer Authorizer
	store      Store
	retryDelay time.Duration
}

func NewDelivery(videos VideoSource, authorizer Authorizer, store Store, retryDelay time.Duration) *Delivery {
	return &Delivery{videos: videos, authorizer: authorizer, store: store, retryDelay: retryDelay}
}

// Serve writes a recording to w.
//
// It returns apperr.ErrForbidden for anonymous or unauthorized requesters,
// including when the video does not exist, and apperr.ErrNotFound when an
// authorized requester asks for a video without a stored recording. In
// both cases nothing has been written. Unsatisfiable ranges are answered
// with 416 by Serve itself. An error after the status line was written
// means the transfer was cut short.
func (d *Delivery) Serve(ctx context.Context, w http.ResponseWriter, videoID uuid.UUID, requester *uuid.UUID, rangeHeader string) (Result, error) {
	if requester == nil {
		return Result{}, fmt.Errorf("stream video: %w", apperr.ErrForbidden)
	}

	video, err := d.videos.GetByID(ctx, videoID)
	if errors.Is(err, apperr.ErrNotFound) {
		return Result{}, fmt.Errorf("stream video: %w", apperr.ErrForbidden)
	}
	if err != nil {
		return Result{}, fmt.Errorf("stream video: %w", err)
	}

	allowed, err := d.authorizer.CanView(ctx, *requester, video.ChannelID)
	if err != nil {
		return Result{}, fmt.Errorf("stream video: %w", err)
	}
	if !allowed {
		return Result{}, fmt.Errorf("stream video: %w", apperr.ErrForbidden)
	}

	if !video.Status.HasRecording() || video.FilePath == nil || *video.FilePath == "" {
		return Result{}, fmt.Errorf("stream video: no recording: %w", apperr.ErrNotFound)
	}

	obj, err := d.open(ctx, *video.FilePath)
	if err != nil {
		return Result{}, fmt.Errorf("stream video: %w", err)
	}
	defer obj.Close()

	plan := Plan(obj.Size, rangeHeader)
	if plan.Kind != PlanUnsatisfiable && plan.Length > 0 {
		if _, err := obj.Seek(plan.Start, io.SeekStart); err != nil {
			return Result{}, fmt.Errorf("stream video: seek: %w: %w", apperr.ErrTransient, err)
		}
	}

	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Cache-Control", "private, no-store")
	h.Set("X-Content-Type-Options", "nosniff")

	if plan.Kind == PlanUnsatisfiable {
		h.Set("Content-Range", plan.ContentRange())
		h.Set("Content-Length", "0")
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return Result{Status: http.StatusRequestedRangeNotSatisfiable, Plan: plan}, nil
	}

	h.Set("Content-Type", contentType(obj.Name))
	h.Set("Content-Disposition", "inline")
	h.Set("Content-Length", strconv.FormatInt(plan.Length, 10))
	h.Set("Last-Modified", obj.ModTime.UTC().Format(http.TimeFormat))

	status := http.StatusOK
	if plan.Kind == PlanPartial {
		status = http.StatusPartialContent
		h.Set("Content-Range", plan.ContentRange())
	}

	w.WriteHeader(status)

	sent, err := copyWindow(ctx, w, obj, plan.Length)
	res := Result{Status: status, Plan: plan, Sent: sent}
	if err != nil {
		logger.WithContext(ctx).WithFields(logrus.Fields{
			"video_id": videoID,
			"sent":     sent,
			"expected": plan.Length,
		}).WithError(err).Debug("media transfer interrupted")
		return res, fmt.Errorf("stream video: transfer interrupted: %w", err)
	}
	return res, nil
}

// open retries a transient store failure once. Missing objects are final.
func (d *Delivery) open(ctx context.Context, key string) (*Object, error) {
	var obj *Object
	op := func() error {
		o, err := d.store.Open(ctx, key)
		if err != nil {
			if errors.Is(err, apperr.ErrTransient) {
				return err
			}
			return backoff.Permanent(err)
		}
		obj = o
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(d.retryDelay), 1), ctx)
	notify := func(err error, wait time.Duration) {
		logger.WithContext(ctx).WithError(err).WithField("retry_in", wait.String()).Warn("media store unavailable, retrying")
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return obj, nil
}

// copyWindow copies n bytes, stopping as soon as ctx is cancelled.
func copyWindow(ctx context.Context, w io.Writer, r io.Reader, n int64) (int64, error) {
	buf := make([]byte, copyBufferSize)
	var sent int64
	for sent < n {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		chunk := buf
		if remaining := n - sent; remaining < int64(len(chunk)) {
			chunk = chunk[:remaining]
		}
		read, rerr := r.Read(chunk)
		if read > 0 {
			written, werr := w.Write(chunk[:read])
			sent += int64(written)
			if werr != nil {
				return sent, werr
			}
			if written != read {
				return sent, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			if sent < n {
				return sent, io.ErrUnexpectedEOF
			}
			break
		}
		if rerr != nil {
			return sent, rerr
		}
	}
	return sent, nil
}

var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".ts":   "video/mp2t",
	".m3u8": "application/vnd.apple.mpegurl",
}

func contentType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ct, ok := videoTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
