package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"SkillSwapserver/internal/domain"
)

// RequestsStore persists requests with optimistic concurrency. UpdateRequest and DeleteRequest
// succeed only while the stored version equals the given one, otherwise they return
// domain.ErrConflict. A non-nil award is applied in the same atomic write.
type RequestsStore interface {
	CreateRequest(ctx context.Context, r domain.Request) (domain.Request, error)
	GetRequest(ctx context.Context, id string) (domain.Request, error)
	UpdateRequest(ctx context.Context, r domain.Request, award *domain.KarmaAward) (domain.Request, error)
	DeleteRequest(ctx context.Context, id string, version int64) error
	ListRequestsByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.Request, error)
	ListRequestsForUser(ctx context.Context, userID string) ([]domain.Request, error)
	DeleteRequestsByRequester(ctx context.Context, requesterID string, keep domain.RequestStatus) (int, error)
}

type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
}

type Notifier interface {
	Notify(ctx context.Context, userID string, n domain.Notification)
	Broadcast(ctx context.Context, actorID string, build func(domain.User) domain.Notification) error
}

// RequestService drives the request lifecycle. Every transition is committed before any
// notification is attempted.
type RequestService struct {
	Requests RequestsStore
	Users    UserLookup
	Notifier Notifier
	Logger   *slog.Logger
	Now      func() time.Time
}

func (s *RequestService) Create(ctx context.Context, requesterID string, draft domain.RequestDraft) (domain.Request, error) {
	requester, err := s.Users.GetUserByID(ctx, requesterID)
	if err != nil {
		return domain.Request{}, err
	}
	draft, err = draft.Normalize()
	if err != nil {
		return domain.Request{}, err
	}

	now := s.now()
	created, err := s.Requests.CreateRequest(ctx, domain.Request{
		RequesterID: requester.ID,
		Item:        draft.Item,
		Category:    draft.Category,
		Description: draft.Description,
		Duration:    draft.Duration,
		Intent:      draft.Intent,
		Latitude:    draft.Latitude,
		Longitude:   draft.Longitude,
		Status:      domain.StatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return domain.Request{}, err
	}

	if s.Notifier != nil {
		requesterName := requester.DisplayName()
		err := s.Notifier.Broadcast(detach(ctx), requester.ID, func(u domain.User) domain.Notification {
			return domain.Notification{
				Kind:      domain.KindNewRequest,
				RequestID: created.ID,
				Text:      fmt.Sprintf("New Request: %s needs %s", requesterName, created.Item),
				Subject:   "New Request: " + created.Item,
				Body: fmt.Sprintf("Hi %s,\n\n%s is looking for %s.\nLog in to SkillSwap to offer help!",
					u.DisplayName(), requesterName, created.Item),
			}
		})
		if err != nil {
			s.logger().WarnContext(ctx, "request broadcast failed", "err", err, "help_request_id", created.ID)
		}
	}
	return created, nil
}

func (s *RequestService) OfferHelp(ctx context.Context, id, helperID string) (domain.Request, error) {
	helper, err := s.Users.GetUserByID(ctx, helperID)
	if err != nil {
		return domain.Request{}, err
	}
	updated, err := s.transition(ctx, id, func(r domain.Request) (domain.Request, *domain.KarmaAward, error) {
		next, err := r.Offer(helper.ID)
		return next, nil, err
	})
	if err != nil {
		return domain.Request{}, err
	}

	s.notify(ctx, updated.RequesterID, domain.Notification{
		Kind:      domain.KindHelpOffered,
		RequestID: updated.ID,
		Text:      fmt.Sprintf("User %s has offered to help with your request: %s", helper.DisplayName(), updated.Item),
		Subject:   "Someone offered to help: " + updated.Item,
	})
	return updated, nil
}

func (s *RequestService) AcceptHelp(ctx context.Context, id, requesterID string) (domain.Request, error) {
	updated, err := s.transition(ctx, id, func(r domain.Request) (domain.Request, *domain.KarmaAward, error) {
		next, err := r.Accept(requesterID)
		return next, nil, err
	})
	if err != nil {
		return domain.Request{}, err
	}

	s.notify(ctx, updated.HelperID, domain.Notification{
		Kind:      domain.KindHelpAccepted,
		RequestID: updated.ID,
		Text:      fmt.Sprintf("Your offer to help %s was ACCEPTED!", s.displayName(ctx, updated.RequesterID)),
		Subject:   "Your offer was accepted: " + updated.Item,
	})
	return updated, nil
}

func (s *RequestService) RejectHelp(ctx context.Context, id, requesterID string) (domain.Request, error) {
	var previousHelper string
	updated, err := s.transition(ctx, id, func(r domain.Request) (domain.Request, *domain.KarmaAward, error) {
		previousHelper = r.HelperID
		next, err := r.Reject(requesterID)
		return next, nil, err
	})
	if err != nil {
		return domain.Request{}, err
	}

	s.notify(ctx, previousHelper, domain.Notification{
		Kind:      domain.KindHelpRejected,
		RequestID: updated.ID,
		Text:      fmt.Sprintf("Your offer to help %s was declined.", s.displayName(ctx, updated.RequesterID)),
		Subject:   "Your offer was declined: " + updated.Item,
	})
	return updated, nil
}

// Complete closes the request and awards the helper in the same write. The completed request
// no longer names a helper, so the award and notification go to the one read before the commit.
func (s *RequestService) Complete(ctx context.Context, id, requesterID string) (domain.Request, error) {
	var helperID string
	updated, err := s.transition(ctx, id, func(r domain.Request) (domain.Request, *domain.KarmaAward, error) {
		next, err := r.Complete(requesterID)
		if err != nil {
			return domain.Request{}, nil, err
		}
		helperID = r.HelperID
		return next, &domain.KarmaAward{UserID: r.HelperID, Amount: domain.CompletionKarmaBonus}, nil
	})
	if err != nil {
		return domain.Request{}, err
	}

	s.notify(ctx, helperID, domain.Notification{
		Kind:      domain.KindCompleted,
		RequestID: updated.ID,
		Text:      fmt.Sprintf("Request %s marked as COMPLETED! You earned %d Karma points!", updated.Item, domain.CompletionKarmaBonus),
		Subject:   "Request completed: " + updated.Item,
	})
	return updated, nil
}

func (s *RequestService) Reopen(ctx context.Context, id, requesterID string) (domain.Request, error) {
	var previousHelper string
	updated, err := s.transition(ctx, id, func(r domain.Request) (domain.Request, *domain.KarmaAward, error) {
		previousHelper = r.HelperID
		next, err := r.Reopen(requesterID)
		return next, nil, err
	})
	if err != nil {
		return domain.Request{}, err
	}

	s.notify(ctx, previousHelper, domain.Notification{
		Kind:      domain.KindReopened,
		RequestID: updated.ID,
		Text:      fmt.Sprintf("The request %s was reopened by the owner (incomplete).", updated.Item),
		Subject:   "Request reopened: " + updated.Item,
	})
	return updated, nil
}

func (s *RequestService) Delete(ctx context.Context, id, requesterID string) error {
	r, err := s.Requests.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if err := r.CheckDelete(requesterID); err != nil {
		return err
	}
	return s.Requests.DeleteRequest(ctx, r.ID, r.Version)
}

// DeleteAllMine removes every request the user posted, except those in progress.
func (s *RequestService) DeleteAllMine(ctx context.Context, userID string) (int, error) {
	return s.Requests.DeleteRequestsByRequester(ctx, userID, domain.StatusInProgress)
}

func (s *RequestService) ListOpen(ctx context.Context) ([]domain.Request, error) {
	return s.Requests.ListRequestsByStatus(ctx, domain.StatusOpen)
}

func (s *RequestService) ListMine(ctx context.Context, userID string) ([]domain.Request, error) {
	return s.Requests.ListRequestsForUser(ctx, userID)
}

// transition loads the request, applies step and commits the result against the loaded version.
func (s *RequestService) transition(ctx context.Context, id string, step func(domain.Request) (domain.Request, *domain.KarmaAward, error)) (domain.Request, error) {
	current, err := s.Requests.GetRequest(ctx, id)
	if err != nil {
		return domain.Request{}, err
	}
	next, award, err := step(current)
	if err != nil {
		return domain.Request{}, err
	}
	if err := next.Validate(); err != nil {
		return domain.Request{}, fmt.Errorf("transition produced invalid request: %w", err)
	}
	next.UpdatedAt = s.now()

	updated, err := s.Requests.UpdateRequest(ctx, next, award)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.logger().InfoContext(ctx, "request update lost a race", "help_request_id", id, "version", current.Version)
		}
		return domain.Request{}, err
	}
	return updated, nil
}

func (s *RequestService) notify(ctx context.Context, userID string, n domain.Notification) {
	if s.Notifier == nil || userID == "" {
		return
	}
	if n.Body == "" {
		n.Body = n.Text + "\n\nOpen SkillSwap to see the details."
	}
	s.Notifier.Notify(detach(ctx), userID, n)
}

func (s *RequestService) displayName(ctx context.Context, userID string) string {
	u, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return userID
	}
	return strings.TrimSpace(u.DisplayName())
}

func (s *RequestService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *RequestService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// detach keeps request-scoped values but drops cancellation. Deliveries that start after a
// commit run to completion even if the caller has gone away.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
