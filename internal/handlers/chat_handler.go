package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/foxfit/backend/internal/apperr"
	"github.com/foxfit/backend/internal/chat"
	"github.com/foxfit/backend/internal/middleware"
	"github.com/foxfit/backend/internal/models"
)

type ChatHandler struct {
	feed *chat.Feed
}

func NewChatHandler(feed *chat.Feed) *ChatHandler {
	return &ChatHandler{feed: feed}
}

// GetMessages returns the newest messages of a video, oldest first
func (h *ChatHandler) GetMessages(c *gin.Context) {
	videoID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	limit := chat.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, apperr.Validation("limit", "numeric"))
			return
		}
		limit = n
	}

	messages, err := h.feed.Recent(c.Request.Context(), videoID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": messages})
}

// PostMessage appends a message from the authenticated user
func (h *ChatHandler) PostMessage(c *gin.Context) {
	videoID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	uid, ok := middleware.GetUserID(c)
	if !ok {
		respondError(c, apperr.ErrUnauthenticated)
		return
	}

	var req models.PostChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	msg, err := h.feed.Append(c.Request.Context(), videoID, uid, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
