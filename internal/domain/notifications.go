package domain

import "time"

// Live push destinations.
const (
	QueueNotifications = "/queue/notifications"
	QueueMessages      = "/queue/messages"
)

type NotificationKind string

const (
	KindNewRequest   NotificationKind = "NEW_REQUEST"
	KindHelpOffered  NotificationKind = "HELP_OFFERED"
	KindHelpAccepted NotificationKind = "HELP_ACCEPTED"
	KindHelpRejected NotificationKind = "HELP_REJECTED"
	KindCompleted    NotificationKind = "REQUEST_COMPLETED"
	KindReopened     NotificationKind = "REQUEST_REOPENED"
	KindNewResource  NotificationKind = "NEW_RESOURCE"
	KindChatFallback NotificationKind = "CHAT_FALLBACK"
)

// Notification is one user-facing event. Text goes to the live channel, Subject and Body to email.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	RequestID string           `json:"request_id,omitempty"`
	Text      string           `json:"text"`
	Subject   string           `json:"-"`
	Body      string           `json:"-"`
}

type NotificationToken struct {
	ID        string    `json:"-"`
	UserID    string    `json:"-"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
