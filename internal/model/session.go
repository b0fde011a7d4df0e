package model

// GenerateRequest represents the request body for submitting a prompt.
// The key must be present; a blank value is accepted and handled by the controller.
type GenerateRequest struct {
	Prompt *string `json:"prompt" validate:"required"`
}

// NotificationsResponse lists notifications recorded for a session
type NotificationsResponse struct {
	SessionID     string         `json:"sessionId"`
	Notifications []Notification `json:"notifications"`
}
