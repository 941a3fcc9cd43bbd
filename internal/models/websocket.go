package models

import "github.com/google/uuid"

// WebSocket event types
const (
	EventChatMessage = "chat.message"
	EventChatSend    = "chat.send"
	EventViewerCount = "viewers.count"
	EventStreamEnded = "stream.ended"
	EventError       = "error"
)

type WSMessage struct {
	Event   string      `json:"event"`
	VideoID uuid.UUID   `json:"video_id"`
	Payload interface{} `json:"payload"`
}

// WSChatSendPayload is what a viewer sends to post into the room's chat.
type WSChatSendPayload struct {
	Message string `json:"message"`
}

type WSViewerCountPayload struct {
	Count int64 `json:"count"`
}

type WSErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
