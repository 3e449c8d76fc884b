package domain

import (
	"strings"
	"time"
)

const ResourceAvailable = "Available"

// Resource is an item or service a user lists for others.
type Resource struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category"`
	Price       string    `json:"price,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type ResourceDraft struct {
	Title       string
	Description string
	Category    string
	Price       string
}

func (d ResourceDraft) Normalize() (ResourceDraft, error) {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Category = strings.TrimSpace(d.Category)
	d.Price = strings.TrimSpace(d.Price)

	fields := map[string]string{}
	if d.Title == "" {
		fields["title"] = "required"
	}
	if d.Category == "" {
		fields["category"] = "required"
	}
	if len(fields) > 0 {
		return ResourceDraft{}, NewValidationError(fields)
	}
	return d, nil
}
