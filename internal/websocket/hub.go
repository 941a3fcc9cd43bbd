package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/foxfit/backend/internal/logger"
	"github.com/foxfit/backend/internal/models"
)

const presenceTimeout = 2 * time.Second

// ViewerTracker shares viewer presence between instances. The Redis client
// implements it.
type ViewerTracker interface {
	AddViewer(ctx context.Context, videoID uuid.UUID, sessionID string) error
	RemoveViewer(ctx context.Context, videoID uuid.UUID, sessionID string) error
	CountViewers(ctx context.Context, videoID uuid.UUID) (int64, error)
	ClearViewers(ctx context.Context, videoID uuid.UUID) error
}

type roomMessage struct {
	videoID uuid.UUID
	data    []byte
}

// Hub keeps one room of clients per video and fans events out to them.
type Hub struct {
	// Connected clients, grouped by video
	rooms map[uuid.UUID]map[*Client]struct{}

	// Events addressed to a room
	broadcast chan roomMessage

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	// Optional cross-instance presence
	viewers ViewerTracker

	mu      sync.RWMutex
	stopped bool
}

// NewHub creates a new Hub. viewers may be nil.
func NewHub(viewers ViewerTracker) *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]struct{}),
		broadcast:  make(chan roomMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		viewers:    viewers,
	}
}

// Run serves the hub until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	log := logger.WithComponent("ws_hub")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			h.stopped = true
			for videoID, room := range h.rooms {
				for client := range room {
					close(client.send)
				}
				delete(h.rooms, videoID)
			}
			h.mu.Unlock()
			return nil

		case client := <-h.register:
			h.track(ctx, client, true)
			h.fanout(client.videoID, h.viewerCountEvent(ctx, client.videoID))
			log.WithField("video_id", client.videoID).Debug("viewer joined")

		case client := <-h.unregister:
			if h.drop(client) {
				h.track(ctx, client, false)
				h.fanout(client.videoID, h.viewerCountEvent(ctx, client.videoID))
				log.WithField("video_id", client.videoID).Debug("viewer left")
			}

		case msg := <-h.broadcast:
			h.fanout(msg.videoID, msg.data)
		}
	}
}

// drop removes client from its room and closes its send channel once.
func (h *Hub) drop(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[client.videoID]
	if !ok {
		return false
	}
	if _, ok := room[client]; !ok {
		return false
	}
	delete(room, client)
	close(client.send)
	if len(room) == 0 {
		delete(h.rooms, client.videoID)
	}
	return true
}

func (h *Hub) fanout(videoID uuid.UUID, data []byte) {
	if data == nil {
		return
	}
	var slow []*Client
	h.mu.RLock()
	for client := range h.rooms[videoID] {
		select {
		case client.send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	// Clients that cannot keep up are disconnected.
	for _, client := range slow {
		h.drop(client)
	}
}

func (h *Hub) track(ctx context.Context, client *Client, joined bool) {
	if h.viewers == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, presenceTimeout)
	defer cancel()

	var err error
	if joined {
		err = h.viewers.AddViewer(ctx, client.videoID, client.sessionID)
	} else {
		err = h.viewers.RemoveViewer(ctx, client.videoID, client.sessionID)
	}
	if err != nil {
		logger.WithComponent("ws_hub").WithError(err).Warn("viewer presence update failed")
	}
}

// ViewerCount returns the number of viewers connected to a video's room. With
// a tracker it counts across instances and falls back to the local room.
func (h *Hub) ViewerCount(ctx context.Context, videoID uuid.UUID) int64 {
	if h.viewers != nil {
		ctx, cancel := context.WithTimeout(ctx, presenceTimeout)
		defer cancel()
		n, err := h.viewers.CountViewers(ctx, videoID)
		if err == nil {
			return n
		}
		logger.WithContext(ctx).WithError(err).Warn("viewer count unavailable, using local room")
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return int64(len(h.rooms[videoID]))
}

func (h *Hub) viewerCountEvent(ctx context.Context, videoID uuid.UUID) []byte {
	data, err := encode(models.EventViewerCount, videoID, models.WSViewerCountPayload{Count: h.ViewerCount(ctx, videoID)})
	if err != nil {
		return nil
	}
	return data
}

// Publish queues an event for every client watching videoID.
func (h *Hub) Publish(ctx context.Context, videoID uuid.UUID, event string, payload interface{}) error {
	data, err := encode(event, videoID, payload)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- roomMessage{videoID: videoID, data: data}:
		return nil
	case <-h.done:
		return fmt.Errorf("hub stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ChatMessagePosted pushes a stored chat message to the room.
func (h *Hub) ChatMessagePosted(ctx context.Context, msg models.ChatMessage) {
	if err := h.Publish(ctx, msg.VideoID, models.EventChatMessage, msg); err != nil {
		logger.WithContext(ctx).WithError(err).Warn("chat message not pushed")
	}
}

// LiveStarted is a no-op: rooms are keyed by video, which did not exist before.
func (h *Hub) LiveStarted(context.Context, models.Channel, models.Video) {}

// LiveEnded tells the room the broadcast is over.
func (h *Hub) LiveEnded(ctx context.Context, _ models.Channel, video models.Video) {
	if err := h.Publish(ctx, video.ID, models.EventStreamEnded, video); err != nil {
		logger.WithContext(ctx).WithError(err).Warn("stream end not pushed")
	}
	if h.viewers != nil {
		if err := h.viewers.ClearViewers(ctx, video.ID); err != nil {
			logger.WithContext(ctx).WithError(err).Warn("viewer presence not cleared")
		}
	}
}

func encode(event string, videoID uuid.UUID, payload interface{}) ([]byte, error) {
	return json.Marshal(models.WSMessage{Event: event, VideoID: videoID, Payload: payload})
}

// Register adds client to its video's room. The client is in the room when
// Register returns; presence and the viewer count update asynchronously. It
// returns false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return false
	}
	room, ok := h.rooms[client.videoID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[client.videoID] = room
	}
	room[client] = struct{}{}
	h.mu.Unlock()

	select {
	case h.register <- client:
	case <-h.done:
	}
	return true
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
