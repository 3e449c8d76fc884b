package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"SkillSwapserver/internal/domain"
)

const DefaultChatEmailDelay = 40 * time.Second

type MessagesStore interface {
	SaveMessage(ctx context.Context, m domain.ChatMessage) (domain.ChatMessage, error)
	// ListMessagesForUser returns messages sent or received by userID, oldest first.
	ListMessagesForUser(ctx context.Context, userID string) ([]domain.ChatMessage, error)
}

// Presence answers whether a user currently holds a live connection.
type Presence interface {
	IsOnline(userID string) bool
}

// Scheduler runs fn once after delay on a background worker.
type Scheduler interface {
	Schedule(delay time.Duration, fn func(ctx context.Context))
}

// ChatService persists chat messages, pushes them live to both parties and falls back to
// email when the recipient stays offline past FallbackDelay.
type ChatService struct {
	Messages      MessagesStore
	Users         UserLookup
	Live          Pusher
	Mail          Mailer
	Presence      Presence
	Scheduler     Scheduler
	FallbackDelay time.Duration
	Logger        *slog.Logger
	Now           func() time.Time
}

func (s *ChatService) Send(ctx context.Context, senderID string, msg domain.ChatMessage) (domain.ChatMessage, error) {
	if senderID == "" {
		return domain.ChatMessage{}, domain.ErrUnauthorized
	}
	msg.SenderID = senderID
	msg, err := msg.Normalize()
	if err != nil {
		return domain.ChatMessage{}, err
	}
	if _, err := s.Users.GetUserByID(ctx, msg.RecipientID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ChatMessage{}, domain.NewValidationError(map[string]string{"recipient_id": "unknown user"})
		}
		return domain.ChatMessage{}, err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}

	saved, err := s.Messages.SaveMessage(ctx, msg)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("save message: %w", err)
	}

	s.push(ctx, saved.RecipientID, saved)
	s.push(ctx, saved.SenderID, saved)

	if s.Presence != nil && s.Scheduler != nil && !s.Presence.IsOnline(saved.RecipientID) {
		s.Scheduler.Schedule(s.fallbackDelay(), func(ctx context.Context) {
			s.emailIfStillOffline(ctx, saved)
		})
	}
	return saved, nil
}

func (s *ChatService) History(ctx context.Context, userID string) ([]domain.ChatMessage, error) {
	return s.Messages.ListMessagesForUser(ctx, userID)
}

// Conversations lists distinct chat partners, most recent exchange first.
func (s *ChatService) Conversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	msgs, err := s.Messages.ListMessagesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []domain.Conversation
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		partner := m.RecipientID
		if partner == userID {
			partner = m.SenderID
		}
		if partner == "" || seen[partner] {
			continue
		}
		seen[partner] = true

		name := "User"
		if u, err := s.Users.GetUserByID(ctx, partner); err == nil && u.Name != "" {
			name = u.Name
		}
		out = append(out, domain.Conversation{PartnerID: partner, PartnerName: name, LastMessageAt: m.Timestamp})
	}
	if out == nil {
		out = []domain.Conversation{}
	}
	return out, nil
}

func (s *ChatService) emailIfStillOffline(ctx context.Context, m domain.ChatMessage) {
	if s.Presence.IsOnline(m.RecipientID) {
		return
	}
	if s.Mail == nil {
		return
	}
	senderName := m.SenderID
	if u, err := s.Users.GetUserByID(ctx, m.SenderID); err == nil {
		senderName = u.DisplayName()
	}
	subject := "New Message from " + senderName
	body := "You have received a new message regarding your request on SkillSwap:\n\n" + m.Content
	if err := s.Mail.Send(ctx, m.RecipientID, subject, body); err != nil {
		s.logger().WarnContext(ctx, "chat fallback email failed", "err", &domain.DeliveryError{Channel: "email", UserID: m.RecipientID, Err: err}, "message_id", m.ID)
	}
}

func (s *ChatService) push(ctx context.Context, userID string, m domain.ChatMessage) {
	if s.Live == nil {
		return
	}
	if err := s.Live.Push(userID, domain.QueueMessages, m); err != nil {
		s.logger().WarnContext(ctx, "chat live push failed", "err", &domain.DeliveryError{Channel: "live", UserID: userID, Err: err}, "message_id", m.ID)
	}
}

func (s *ChatService) fallbackDelay() time.Duration {
	if s.FallbackDelay > 0 {
		return s.FallbackDelay
	}
	return DefaultChatEmailDelay
}

func (s *ChatService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *ChatService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
