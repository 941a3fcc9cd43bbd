package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/foxfit/backend/internal/apperr"
	"github.com/foxfit/backend/internal/logger"
	"github.com/foxfit/backend/internal/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Bound on storing one chat message sent over the socket
	postTimeout = 5 * time.Second
)

// ChatPoster stores a chat message; the stored message reaches the room
// through the hub's notifier.
type ChatPoster interface {
	Append(ctx context.Context, videoID, userID uuid.UUID, text string) (*models.ChatMessage, error)
}

// Limiter throttles chat posts per user.
type Limiter interface {
	Allow(ctx context.Context, userID uuid.UUID) bool
}

// Client is one viewer connected to a video's room. Anonymous viewers
// (userID == uuid.Nil) receive events but cannot post.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	videoID   uuid.UUID
	userID    uuid.UUID
	sessionID string

	poster  ChatPoster
	limiter Limiter
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, videoID, userID uuid.UUID, poster ChatPoster, limiter Limiter) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		videoID:   videoID,
		userID:    userID,
		sessionID: uuid.NewString(),
		poster:    poster,
		limiter:   limiter,
	}
}

// ReadPump pumps messages from the WebSocket connection to the chat feed
func (c *Client) ReadPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.WithComponent("ws_client").WithError(err).Warn("websocket read failed")
			}
			break
		}
		c.handleMessage(message)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One event per frame so clients can parse each as JSON.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage handles incoming WebSocket messages
func (c *Client) handleMessage(data []byte) {
	var wsMsg struct {
		Event   string          `json:"event"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &wsMsg); err != nil {
		c.sendError("Invalid message format", "bad_request")
		return
	}

	switch wsMsg.Event {
	case models.EventChatSend:
		c.handleChatSend(wsMsg.Payload)
	default:
		c.sendError("Unknown event type", "bad_request")
	}
}

func (c *Client) handleChatSend(payload json.RawMessage) {
	if c.userID == uuid.Nil || c.poster == nil {
		c.sendError("Authentication required", "unauthenticated")
		return
	}

	var req models.WSChatSendPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		c.sendError("Invalid chat payload", "bad_request")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
	defer cancel()
	ctx = logger.ContextWithUserID(ctx, c.userID.String())

	if c.limiter != nil && !c.limiter.Allow(ctx, c.userID) {
		c.sendError("Rate limit exceeded", "rate_limited")
		return
	}

	if _, err := c.poster.Append(ctx, c.videoID, c.userID, req.Message); err != nil {
		c.sendAppendError(ctx, err)
	}
}

func (c *Client) sendAppendError(ctx context.Context, err error) {
	if ve, ok := apperr.AsValidation(err); ok {
		c.sendError(ve.Error(), "invalid")
		return
	}
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		c.sendError("Video not found", "not_found")
	case errors.Is(err, apperr.ErrStateConflict):
		c.sendError("Chat is closed for this video", "conflict")
	default:
		logger.WithContext(ctx).WithError(err).Error("websocket chat post failed")
		c.sendError("Failed to send message", "internal")
	}
}

// sendError sends an error message to the client. The hub closes send
// under its write lock, so membership is checked under the read lock.
func (c *Client) sendError(message, code string) {
	data, err := encode(models.EventError, c.videoID, models.WSErrorPayload{Message: message, Code: code})
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.rooms[c.videoID][c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
