package websocket

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/foxfit/backend/internal/apperr"
	"github.com/foxfit/backend/internal/logger"
	"github.com/foxfit/backend/internal/middleware"
	"github.com/foxfit/backend/internal/repository"
)

// Handler upgrades viewers into a video's chat room
type Handler struct {
	hub      *Hub
	videos   repository.VideoRepository
	poster   ChatPoster
	limiter  Limiter
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler. An empty allowedOrigins list
// accepts any origin.
func NewHandler(hub *Hub, videos repository.VideoRepository, poster ChatPoster, limiter Limiter, allowedOrigins []string) *Handler {
	h := &Handler{
		hub:     hub,
		videos:  videos,
		poster:  poster,
		limiter: limiter,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				// not a browser
				return true
			}
			for _, pattern := range allowedOrigins {
				if matchOrigin(pattern, origin) {
					return true
				}
			}
			return false
		},
	}
	return h
}

// HandleWebSocket handles GET /videos/:id/chat/ws
func (h *Handler) HandleWebSocket(c *gin.Context) {
	videoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
		return
	}

	if _, err := h.videos.GetByID(c.Request.Context(), videoID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
			return
		}
		logger.WithContext(c.Request.Context()).WithError(err).Error("websocket video lookup failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service unavailable"})
		return
	}

	userID, _ := middleware.GetUserID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logger.WithContext(c.Request.Context()).WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := NewClient(h.hub, conn, videoID, userID, h.poster, h.limiter)
	if !h.hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// ViewerCount handles GET /videos/:id/viewers
func (h *Handler) ViewerCount(c *gin.Context) {
	videoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"video_id": videoID,
		"count":    h.hub.ViewerCount(c.Request.Context(), videoID),
	})
}

// matchOrigin supports exact matches or wildcard patterns like *.example.com
func matchOrigin(pattern, origin string) bool {
	if pattern == origin {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		originHost := origin
		if u, err := url.Parse(origin); err == nil {
			originHost = u.Hostname()
		}
		suffix := strings.TrimPrefix(pattern, "*")
		// ".example.com" must match a label boundary
		if strings.HasSuffix(originHost, suffix) {
			return true
		}
	}
	return false
}
