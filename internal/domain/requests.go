package domain

import (
	"fmt"
	"strings"
	"time"
)

// CompletionKarmaBonus is awarded to the helper when a request is completed.
const CompletionKarmaBonus = 10

type RequestStatus string

const (
	StatusOpen            RequestStatus = "OPEN"
	StatusPendingApproval RequestStatus = "PENDING_APPROVAL"
	StatusInProgress      RequestStatus = "IN_PROGRESS"
	StatusCompleted       RequestStatus = "COMPLETED"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusPendingApproval, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// HasHelper reports whether a request in this status must carry a helper.
func (s RequestStatus) HasHelper() bool {
	return s == StatusPendingApproval || s == StatusInProgress
}

type Intent string

const (
	IntentRequest Intent = "REQUEST"
	IntentOffer   Intent = "OFFER"
)

type Request struct {
	ID          string        `json:"id"`
	RequesterID string        `json:"requester_id"`
	HelperID    string        `json:"helper_id,omitempty"`
	// CompletedBy keeps the helper of a completed request; HelperID is empty by then.
	CompletedBy string        `json:"completed_by,omitempty"`
	Item        string        `json:"item"`
	Category    string        `json:"category"`
	Description string        `json:"description,omitempty"`
	Duration    string        `json:"duration,omitempty"`
	Intent      Intent        `json:"intent"`
	Latitude    *float64      `json:"latitude,omitempty"`
	Longitude   *float64      `json:"longitude,omitempty"`
	Status      RequestStatus `json:"status"`
	Version     int64         `json:"version"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// RequestDraft holds the caller-supplied fields of a new request.
type RequestDraft struct {
	Item        string
	Category    string
	Description string
	Duration    string
	Intent      Intent
	Latitude    *float64
	Longitude   *float64
}

// Normalize trims the draft and fills defaults, returning a validation error for bad input.
func (d RequestDraft) Normalize() (RequestDraft, error) {
	d.Item = strings.TrimSpace(d.Item)
	d.Category = strings.TrimSpace(d.Category)
	d.Description = strings.TrimSpace(d.Description)
	d.Duration = strings.TrimSpace(d.Duration)
	d.Intent = Intent(strings.ToUpper(strings.TrimSpace(string(d.Intent))))
	if d.Intent == "" {
		d.Intent = IntentRequest
	}

	fields := map[string]string{}
	if d.Item == "" {
		fields["item"] = "required"
	}
	if d.Intent != IntentRequest && d.Intent != IntentOffer {
		fields["intent"] = "must be REQUEST or OFFER"
	}
	if (d.Latitude == nil) != (d.Longitude == nil) {
		fields["location"] = "latitude and longitude must be given together"
	}
	if d.Latitude != nil && (*d.Latitude < -90 || *d.Latitude > 90) {
		fields["latitude"] = "out of range"
	}
	if d.Longitude != nil && (*d.Longitude < -180 || *d.Longitude > 180) {
		fields["longitude"] = "out of range"
	}
	if len(fields) > 0 {
		return RequestDraft{}, NewValidationError(fields)
	}
	return d, nil
}

// Validate checks the helper/status invariant.
func (r Request) Validate() error {
	if !r.Status.Valid() {
		return fmt.Errorf("request %s: unknown status %q", r.ID, r.Status)
	}
	if r.Status.HasHelper() != (r.HelperID != "") {
		return fmt.Errorf("request %s: helper %q inconsistent with status %s", r.ID, r.HelperID, r.Status)
	}
	if r.CompletedBy != "" && r.Status != StatusCompleted {
		return fmt.Errorf("request %s: completed_by set while %s", r.ID, r.Status)
	}
	return nil
}

// Offer moves an open request to PENDING_APPROVAL with helperID assigned.
func (r Request) Offer(helperID string) (Request, error) {
	if helperID == r.RequesterID {
		return Request{}, ErrSelfReference
	}
	if r.Status != StatusOpen {
		return Request{}, &StateError{Op: "offer help", Status: r.Status, Want: StatusOpen}
	}
	r.Status = StatusPendingApproval
	r.HelperID = helperID
	return r, nil
}

func (r Request) Accept(actorID string) (Request, error) {
	if err := r.requireRequester(actorID, "accept help"); err != nil {
		return Request{}, err
	}
	if r.Status != StatusPendingApproval {
		return Request{}, &StateError{Op: "accept help", Status: r.Status, Want: StatusPendingApproval}
	}
	r.Status = StatusInProgress
	return r, nil
}

func (r Request) Reject(actorID string) (Request, error) {
	if err := r.requireRequester(actorID, "reject help"); err != nil {
		return Request{}, err
	}
	if r.Status != StatusPendingApproval {
		return Request{}, &StateError{Op: "reject help", Status: r.Status, Want: StatusPendingApproval}
	}
	r.Status = StatusOpen
	r.HelperID = ""
	return r, nil
}

func (r Request) Complete(actorID string) (Request, error) {
	if err := r.requireRequester(actorID, "complete request"); err != nil {
		return Request{}, err
	}
	if r.Status != StatusInProgress {
		return Request{}, &StateError{Op: "complete request", Status: r.Status, Want: StatusInProgress}
	}
	r.Status = StatusCompleted
	r.CompletedBy = r.HelperID
	r.HelperID = ""
	return r, nil
}

func (r Request) Reopen(actorID string) (Request, error) {
	if err := r.requireRequester(actorID, "reopen request"); err != nil {
		return Request{}, err
	}
	if r.Status != StatusInProgress {
		return Request{}, &StateError{Op: "reopen request", Status: r.Status, Want: StatusInProgress}
	}
	r.Status = StatusOpen
	r.HelperID = ""
	return r, nil
}

// CheckDelete allows the requester to remove the request unless work is under way.
func (r Request) CheckDelete(actorID string) error {
	if err := r.requireRequester(actorID, "delete request"); err != nil {
		return err
	}
	if r.Status == StatusInProgress {
		return &StateError{Op: "delete request", Status: r.Status, Want: "OPEN, PENDING_APPROVAL or COMPLETED"}
	}
	return nil
}

func (r Request) requireRequester(actorID, op string) error {
	if actorID != r.RequesterID {
		return fmt.Errorf("%w: only the requester can %s", ErrForbidden, op)
	}
	return nil
}

// KarmaAward is committed atomically with the request transition that earns it.
type KarmaAward struct {
	UserID string
	Amount int
}
