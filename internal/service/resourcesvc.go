package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"SkillSwapserver/internal/domain"
)

type ResourcesStore interface {
	CreateResource(ctx context.Context, r domain.Resource) (domain.Resource, error)
	ListResources(ctx context.Context) ([]domain.Resource, error)
	ListResourcesByOwner(ctx context.Context, ownerID string) ([]domain.Resource, error)
}

type ResourceService struct {
	Resources ResourcesStore
	Users     UserLookup
	Notifier  Notifier
	Logger    *slog.Logger
	Now       func() time.Time
}

// Create lists a new resource and announces it to every other user.
func (s *ResourceService) Create(ctx context.Context, ownerID string, draft domain.ResourceDraft) (domain.Resource, error) {
	owner, err := s.Users.GetUserByID(ctx, ownerID)
	if err != nil {
		return domain.Resource{}, err
	}
	draft, err = draft.Normalize()
	if err != nil {
		return domain.Resource{}, err
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	created, err := s.Resources.CreateResource(ctx, domain.Resource{
		OwnerID:     owner.ID,
		Title:       draft.Title,
		Description: draft.Description,
		Category:    draft.Category,
		Price:       draft.Price,
		Status:      domain.ResourceAvailable,
		CreatedAt:   now().UTC(),
	})
	if err != nil {
		return domain.Resource{}, err
	}

	if s.Notifier != nil {
		ownerName := owner.DisplayName()
		err := s.Notifier.Broadcast(detach(ctx), owner.ID, func(u domain.User) domain.Notification {
			return domain.Notification{
				Kind:    domain.KindNewResource,
				Text:    fmt.Sprintf("New %s available: %s", created.Category, created.Title),
				Subject: "New Resource Available: " + created.Title,
				Body: fmt.Sprintf("Hi %s,\n\n%s just listed a new %s: %s\nCheck it out on SkillSwap!",
					u.DisplayName(), ownerName, created.Category, created.Title),
			}
		})
		if err != nil {
			logger := s.Logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.WarnContext(ctx, "resource broadcast failed", "err", err, "resource_id", created.ID)
		}
	}
	return created, nil
}

func (s *ResourceService) List(ctx context.Context) ([]domain.Resource, error) {
	return s.Resources.ListResources(ctx)
}

func (s *ResourceService) ListMine(ctx context.Context, ownerID string) ([]domain.Resource, error) {
	return s.Resources.ListResourcesByOwner(ctx, ownerID)
}
