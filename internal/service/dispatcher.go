package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"SkillSwapserver/internal/domain"
)

const defaultBroadcastConcurrency = 4

// UserDirectory resolves identities and lists every known user.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// Pusher is a best-effort live channel addressed by user identity.
type Pusher interface {
	Push(userID, destination string, payload any) error
}

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// DevicePusher forwards notifications to a user's registered mobile devices.
type DevicePusher interface {
	PushToUser(ctx context.Context, userID string, n domain.Notification) error
}

// Dispatcher delivers notifications over the live channel and email. Delivery failures are
// logged and never returned.
type Dispatcher struct {
	Live        Pusher
	Devices     DevicePusher
	Mail        Mailer
	Users       UserDirectory
	Concurrency int
	Logger      *slog.Logger
}

// Notify attempts every channel for userID independently.
func (d *Dispatcher) Notify(ctx context.Context, userID string, n domain.Notification) {
	if d.Live != nil {
		if err := d.Live.Push(userID, domain.QueueNotifications, n.Text); err != nil {
			d.deliveryFailed(ctx, "live", userID, n, err)
		}
	}
	if d.Devices != nil {
		if err := d.Devices.PushToUser(ctx, userID, n); err != nil {
			d.deliveryFailed(ctx, "device", userID, n, err)
		}
	}
	if d.Mail != nil {
		subject, body := n.Subject, n.Body
		if subject == "" {
			subject = "SkillSwap notification"
		}
		if body == "" {
			body = n.Text
		}
		if err := d.Mail.Send(ctx, userID, subject, body); err != nil {
			d.deliveryFailed(ctx, "email", userID, n, err)
		}
	}
}

// Broadcast notifies every user except actorID. build renders the notification per recipient.
// Only failing to read the user directory is reported.
func (d *Dispatcher) Broadcast(ctx context.Context, actorID string, build func(domain.User) domain.Notification) error {
	users, err := d.Users.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("broadcast: list users: %w", err)
	}

	limit := d.Concurrency
	if limit <= 0 {
		limit = defaultBroadcastConcurrency
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for _, u := range users {
		if u.ID == actorID {
			continue
		}
		g.Go(func() error {
			d.Notify(ctx, u.ID, build(u))
			return nil
		})
	}
	return g.Wait()
}

func (d *Dispatcher) deliveryFailed(ctx context.Context, channel, userID string, n domain.Notification, err error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	derr := &domain.DeliveryError{Channel: channel, UserID: userID, Err: err}
	logger.WarnContext(ctx, "notification delivery failed", "kind", n.Kind, "help_request_id", n.RequestID, "err", derr)
}
