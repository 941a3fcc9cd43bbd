package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/foxfit/backend/internal/apperr"
	"github.com/foxfit/backend/internal/logger"
	"github.com/foxfit/backend/internal/media"
	"github.com/foxfit/backend/internal/middleware"
	"github.com/foxfit/backend/internal/models"
)

// Lifecycle is the part of the video lifecycle the HTTP layer drives.
type Lifecycle interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Video, error)
	Finalize(ctx context.Context, id uuid.UUID, filePath string, durationSeconds int64) (*models.Video, error)
}

type VideoHandler struct {
	lifecycle Lifecycle
	delivery  *media.Delivery
}

func NewVideoHandler(lc Lifecycle, delivery *media.Delivery) *VideoHandler {
	return &VideoHandler{lifecycle: lc, delivery: delivery}
}

// GetVideo returns video metadata. The recording path is never included.
func (h *VideoHandler) GetVideo(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	v, err := h.lifecycle.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// Stream serves the recording with Range support. Authorization is decided
// before existence, so unknown ids answer 403 like forbidden ones.
func (h *VideoHandler) Stream(c *gin.Context) {
	var requester *uuid.UUID
	if uid, ok := middleware.GetUserID(c); ok {
		requester = &uid
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperr.ErrForbidden)
		return
	}

	res, err := h.delivery.Serve(c.Request.Context(), c.Writer, id, requester, c.GetHeader("Range"))
	if err == nil {
		return
	}
	if res.Status != 0 || c.Writer.Written() {
		// The status line is out; the client went away mid-transfer.
		if !errors.Is(err, context.Canceled) {
			logger.WithContext(c.Request.Context()).WithFields(logrus.Fields{
				"video_id": id,
				"sent":     res.Sent,
			}).WithError(err).Warn("media transfer failed")
		}
		c.Abort()
		return
	}
	respondError(c, err)
}

// Finalize is called by the post-processing worker once a recording is
// ready: processing -> vod.
func (h *VideoHandler) Finalize(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req models.FinalizeVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	v, err := h.lifecycle.Finalize(c.Request.Context(), id, req.FilePath, req.DurationSeconds)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}
