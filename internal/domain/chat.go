package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxMessageLength bounds chat message content in characters.
const MaxMessageLength = 1000

type MessageKind string

const (
	MessageChat  MessageKind = "CHAT"
	MessageJoin  MessageKind = "JOIN"
	MessageLeave MessageKind = "LEAVE"
)

type ChatMessage struct {
	ID          string      `json:"id"`
	SenderID    string      `json:"sender_id"`
	RecipientID string      `json:"recipient_id"`
	Content     string      `json:"content"`
	RequestID   string      `json:"request_id,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	Kind        MessageKind `json:"kind"`
}

// Normalize fills the default kind and checks recipient and content.
func (m ChatMessage) Normalize() (ChatMessage, error) {
	m.RecipientID = strings.ToLower(strings.TrimSpace(m.RecipientID))
	m.RequestID = strings.TrimSpace(m.RequestID)
	if m.Kind == "" {
		m.Kind = MessageChat
	}

	fields := map[string]string{}
	if m.RecipientID == "" {
		fields["recipient_id"] = "required"
	}
	switch n := utf8.RuneCountInString(m.Content); {
	case strings.TrimSpace(m.Content) == "":
		fields["content"] = "required"
	case n > MaxMessageLength:
		fields["content"] = "must be at most 1000 characters"
	}
	switch m.Kind {
	case MessageChat, MessageJoin, MessageLeave:
	default:
		fields["kind"] = "must be CHAT, JOIN or LEAVE"
	}
	if len(fields) > 0 {
		return ChatMessage{}, NewValidationError(fields)
	}
	return m, nil
}

// Conversation summarises the latest exchange with one chat partner.
type Conversation struct {
	PartnerID     string    `json:"partner_id"`
	PartnerName   string    `json:"partner_name"`
	LastMessageAt time.Time `json:"last_message_at"`
}
