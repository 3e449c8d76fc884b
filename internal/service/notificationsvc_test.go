package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"SkillSwapserver/internal/domain"
	"SkillSwapserver/internal/notifications"
)

type stubNotificationTokensStore struct {
	upsertFunc func(context.Context, string, string, string, time.Time) (domain.NotificationToken, error)
	deleteFunc func(context.Context, string, string) error
	listFunc   func(context.Context, string) ([]domain.NotificationToken, error)
}

func (s *stubNotificationTokensStore) UpsertToken(ctx context.Context, userID, token, platform string, when time.Time) (domain.NotificationToken, error) {
	if s.upsertFunc != nil {
		return s.upsertFunc(ctx, userID, token, platform, when)
	}
	return domain.NotificationToken{}, errors.New("upsert not stubbed")
}

func (s *stubNotificationTokensStore) DeleteToken(ctx context.Context, userID, token string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, userID, token)
	}
	return errors.New("delete not stubbed")
}

func (s *stubNotificationTokensStore) ListTokens(ctx context.Context, userID string) ([]domain.NotificationToken, error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, userID)
	}
	return nil, errors.New("list not stubbed")
}

type stubPushSender struct {
	sendFunc func(context.Context, string, notifications.Message) error
}

func (s *stubPushSender) Send(ctx context.Context, token string, msg notifications.Message) error {
	if s.sendFunc != nil {
		return s.sendFunc(ctx, token, msg)
	}
	return nil
}

func TestNotificationServiceRegisterTokenValidation(t *testing.T) {
	svc := &NotificationService{
		Tokens: &stubNotificationTokensStore{},
	}

	if _, err := svc.RegisterToken(context.Background(), "alice@example.com", "", "android"); err == nil {
		t.Fatalf("expected validation error for empty token")
	}
	if _, err := svc.RegisterToken(context.Background(), "alice@example.com", "token", ""); err == nil {
		t.Fatalf("expected validation error for empty platform")
	}
	if _, err := svc.RegisterToken(context.Background(), "alice@example.com", "token", "windows"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for unknown platform, got %v", err)
	}
}

func TestNotificationServiceRegisterTokenNormalizes(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 123456789, time.UTC)
	var gotPlatform string
	var gotWhen time.Time
	svc := &NotificationService{
		Tokens: &stubNotificationTokensStore{
			upsertFunc: func(_ context.Context, userID, token, platform string, when time.Time) (domain.NotificationToken, error) {
				gotPlatform, gotWhen = platform, when
				return domain.NotificationToken{UserID: userID, Token: token, Platform: platform}, nil
			},
		},
		Now: func() time.Time { return now },
	}

	if _, err := svc.RegisterToken(context.Background(), "alice@example.com", " tok ", " IOS "); err != nil {
		t.Fatalf("RegisterToken: %v", err)
	}
	if gotPlatform != "ios" {
		t.Fatalf("platform = %q", gotPlatform)
	}
	if !gotWhen.Equal(now.Truncate(time.Millisecond)) {
		t.Fatalf("when = %v", gotWhen)
	}
}

func TestNotificationServicePushToUserDeletesInvalidToken(t *testing.T) {
	deleted := false
	tokens := &stubNotificationTokensStore{
		listFunc: func(_ context.Context, userID string) ([]domain.NotificationToken, error) {
			if userID != "bob@example.com" {
				t.Fatalf("unexpected user id: %s", userID)
			}
			return []domain.NotificationToken{{Token: "token-1", Platform: "android"}}, nil
		},
		deleteFunc: func(_ context.Context, userID, token string) error {
			if userID != "bob@example.com" || token != "token-1" {
				t.Fatalf("unexpected delete args: %s %s", userID, token)
			}
			deleted = true
			return nil
		},
	}

	sender := &stubPushSender{
		sendFunc: func(_ context.Context, token string, msg notifications.Message) error {
			if token != "token-1" {
				t.Fatalf("unexpected token: %s", token)
			}
			if msg.Notification != nil {
				t.Fatalf("android message should be data-only")
			}
			return notifications.ErrInvalidToken
		},
	}

	svc := &NotificationService{
		Tokens: tokens,
		Sender: sender,
	}

	err := svc.PushToUser(context.Background(), "bob@example.com", domain.Notification{
		Kind:      domain.KindHelpAccepted,
		RequestID: "req-1",
		Text:      "Your offer to help Alice was ACCEPTED!",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Fatalf("expected invalid token to be deleted")
	}
}

func TestNotificationServicePushToUserIOSGetsAlert(t *testing.T) {
	var got notifications.Message
	svc := &NotificationService{
		Tokens: &stubNotificationTokensStore{
			listFunc: func(context.Context, string) ([]domain.NotificationToken, error) {
				return []domain.NotificationToken{{Token: "ios-1", Platform: "ios"}}, nil
			},
		},
		Sender: &stubPushSender{sendFunc: func(_ context.Context, _ string, msg notifications.Message) error {
			got = msg
			return nil
		}},
	}

	n := domain.Notification{Kind: domain.KindNewRequest, RequestID: "req-9", Text: "New Request: Alice needs ladder"}
	if err := svc.PushToUser(context.Background(), "bob@example.com", n); err != nil {
		t.Fatalf("PushToUser: %v", err)
	}
	if got.Notification == nil || got.Notification.Body != n.Text {
		t.Fatalf("expected alert with notification text, got %+v", got.Notification)
	}
	if got.Data["kind"] != "NEW_REQUEST" || got.Data["request_id"] != "req-9" {
		t.Fatalf("unexpected data %v", got.Data)
	}
}

func TestNotificationServicePushToUserWithoutSenderIsNoop(t *testing.T) {
	svc := &NotificationService{Tokens: &stubNotificationTokensStore{}}
	if err := svc.PushToUser(context.Background(), "bob@example.com", domain.Notification{Text: "x"}); err != nil {
		t.Fatalf("PushToUser: %v", err)
	}
}
