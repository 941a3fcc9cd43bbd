package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/foxfit/backend/internal/apperr"
	"github.com/foxfit/backend/internal/middleware"
	"github.com/foxfit/backend/internal/models"
	"github.com/foxfit/backend/internal/registry"
	"github.com/foxfit/backend/internal/repository"
)

const (
	defaultChannelPage = 50
	maxChannelPage     = 100
	channelVideoLimit  = 50
)

type ChannelHandler struct {
	registry *registry.Registry
	videos   repository.VideoRepository
}

func NewChannelHandler(reg *registry.Registry, videos repository.VideoRepository) *ChannelHandler {
	return &ChannelHandler{registry: reg, videos: videos}
}

// CreateChannel registers a channel owned by the caller. The response is the
// only place besides the studio where the stream key is shown.
func (h *ChannelHandler) CreateChannel(c *gin.Context) {
	var req models.CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	uid, ok := middleware.GetUserID(c)
	if !ok {
		respondError(c, apperr.ErrUnauthenticated)
		return
	}

	ch, err := h.registry.Create(c.Request.Context(), uid, registry.CreateInput{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		CoverImage:  req.CoverImage,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			ErrorResponse(c, http.StatusConflict, "Slug already taken")
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ch.WithKey())
}

// ListChannels lists channels, live ones first
func (h *ChannelHandler) ListChannels(c *gin.Context) {
	limit := defaultChannelPage
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(c, apperr.Validation("limit", "min=1"))
			return
		}
		limit = n
	}
	if limit > maxChannelPage {
		limit = maxChannelPage
	}

	channels, err := h.registry.List(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

// GetChannel returns a channel by slug with its videos, newest first
func (h *ChannelHandler) GetChannel(c *gin.Context) {
	ctx := c.Request.Context()
	ch, err := h.registry.ResolveBySlug(ctx, c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}

	videos, err := h.videos.ListByChannel(ctx, ch.ID, channelVideoLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel": ch, "videos": videos})
}

type studioChannel struct {
	models.ChannelWithKey
	LatestVideo *models.Video `json:"latest_video"`
}

// Studio is the owner's dashboard: every owned channel with its stream key
// and most recent video.
func (h *ChannelHandler) Studio(c *gin.Context) {
	ctx := c.Request.Context()
	uid, ok := middleware.GetUserID(c)
	if !ok {
		respondError(c, apperr.ErrUnauthenticated)
		return
	}

	owned, err := h.registry.ListByOwner(ctx, uid)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]studioChannel, 0, len(owned))
	for _, ch := range owned {
		entry := studioChannel{ChannelWithKey: ch.WithKey()}
		latest, err := h.videos.Latest(ctx, ch.ID)
		switch {
		case err == nil:
			entry.LatestVideo = latest
		case errors.Is(err, apperr.ErrNotFound):
		default:
			respondError(c, err)
			return
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"channels": out})
}

// RotateStreamKey issues a new stream key for an offline channel
func (h *ChannelHandler) RotateStreamKey(c *gin.Context) {
	uid, ok := middleware.GetUserID(c)
	if !ok {
		respondError(c, apperr.ErrUnauthenticated)
		return
	}

	ch, err := h.registry.RotateStreamKey(c.Request.Context(), uid, c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ch.WithKey())
}
