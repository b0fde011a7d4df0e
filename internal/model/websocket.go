package model

// WebSocket message types
const (
	WSMessageTypeState        = "state"
	WSMessageTypeNotification = "notification"
	WSMessageTypePing         = "ping"
	WSMessageTypePong         = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSStateMessage carries a new rendering state for a session
type WSStateMessage struct {
	Type      string    `json:"type"`
	SessionID string    `json:"sessionId"`
	State     StateView `json:"state"`
}

// WSNotificationMessage carries a user notification for a session
type WSNotificationMessage struct {
	Type         string       `json:"type"`
	SessionID    string       `json:"sessionId"`
	Notification Notification `json:"notification"`
}
