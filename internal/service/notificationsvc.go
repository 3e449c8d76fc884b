package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"SkillSwapserver/internal/domain"
	"SkillSwapserver/internal/notifications"
)

type NotificationTokensStore interface {
	UpsertToken(ctx context.Context, userID, token, platform string, when time.Time) (domain.NotificationToken, error)
	DeleteToken(ctx context.Context, userID, token string) error
	ListTokens(ctx context.Context, userID string) ([]domain.NotificationToken, error)
}

type PushSender interface {
	Send(ctx context.Context, token string, msg notifications.Message) error
}

// NotificationService manages mobile device tokens and pushes notifications to them.
type NotificationService struct {
	Tokens NotificationTokensStore
	Sender PushSender
	Logger *slog.Logger
	Now    func() time.Time
}

func (s *NotificationService) RegisterToken(ctx context.Context, userID, token, platform string) (domain.NotificationToken, error) {
	if s.Tokens == nil {
		return domain.NotificationToken{}, errors.New("notifications unavailable")
	}
	token = strings.TrimSpace(token)
	platform = strings.TrimSpace(strings.ToLower(platform))
	if token == "" || platform == "" {
		return domain.NotificationToken{}, domain.NewValidationError(map[string]string{"token": "required", "platform": "required"})
	}
	switch platform {
	case "android", "ios":
	default:
		return domain.NotificationToken{}, domain.NewValidationError(map[string]string{"platform": "must be ios or android"})
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	when := now().UTC().Truncate(time.Millisecond)
	return s.Tokens.UpsertToken(ctx, userID, token, platform, when)
}

func (s *NotificationService) DeleteToken(ctx context.Context, userID, token string) error {
	if s.Tokens == nil {
		return errors.New("notifications unavailable")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.NewValidationError(map[string]string{"token": "required"})
	}
	return s.Tokens.DeleteToken(ctx, userID, token)
}

// PushToUser sends n to every device of userID. Tokens the push service reports as
// unregistered are removed. Only listing the tokens can fail.
func (s *NotificationService) PushToUser(ctx context.Context, userID string, n domain.Notification) error {
	if s.Tokens == nil || s.Sender == nil {
		return nil
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tokens, err := s.Tokens.ListTokens(ctx, userID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}

	data := map[string]string{
		"kind": string(n.Kind),
		"text": n.Text,
	}
	if n.RequestID != "" {
		data["request_id"] = n.RequestID
	}
	dataOnly := notifications.Message{Data: data}
	withAlert := notifications.Message{
		Data:         data,
		Notification: &notifications.Notification{Title: "SkillSwap", Body: n.Text},
	}

	for _, token := range tokens {
		msg := dataOnly
		if strings.EqualFold(strings.TrimSpace(token.Platform), "ios") {
			msg = withAlert
		}
		if err := s.Sender.Send(ctx, token.Token, msg); err != nil {
			if errors.Is(err, notifications.ErrInvalidToken) {
				if delErr := s.Tokens.DeleteToken(ctx, userID, token.Token); delErr != nil {
					logger.Error("notifications: delete invalid token failed", "err", delErr, "user_id", userID)
				}
				continue
			}
			logger.Warn("notifications: send failed", "err", err, "user_id", userID, "platform", token.Platform)
		}
	}
	return nil
}
