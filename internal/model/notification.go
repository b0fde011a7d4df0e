package model

import "time"

// NotificationKind is the visual category of a user notification.
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
)

// Notification is a user-facing toast emitted on every terminal transition.
type Notification struct {
	Kind        NotificationKind `json:"kind"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Cause       ErrorKind        `json:"cause,omitempty"`
	At          time.Time        `json:"at"`
}

// Fixed notification texts, one per call site.
var (
	NoticePromptRequired = Notification{
		Kind:        NotificationError,
		Title:       "Movie idea required",
		Description: "Please enter your movie idea before generating.",
		Cause:       ErrorKindValidation,
	}
	NoticeGenerated = Notification{
		Kind:        NotificationSuccess,
		Title:       "Movie generated successfully!",
		Description: "Your movie concept is ready to explore.",
	}
	NoticeSchemaFailure = Notification{
		Kind:        NotificationError,
		Title:       "Generation Error",
		Description: "Failed to process the generated movie. Please try again.",
		Cause:       ErrorKindSchema,
	}
	NoticeTransportFailure = Notification{
		Kind:        NotificationError,
		Title:       "Generation failed",
		Description: "Failed to generate movie. Please check your connection and try again.",
		Cause:       ErrorKindTransport,
	}
)
