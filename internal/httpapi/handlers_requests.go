package httpapi

import (
	"context"
	"net/http"

	"SkillSwapserver/internal/domain"
)

type createRequestRequest struct {
	Item        string   `json:"item"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Duration    string   `json:"duration"`
	Intent      string   `json:"intent"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

func (a *api) handleRequestsCreate(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	var req createRequestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	created, err := a.requestsSvc.Create(r.Context(), u.ID, domain.RequestDraft{
		Item:        req.Item,
		Category:    req.Category,
		Description: req.Description,
		Duration:    req.Duration,
		Intent:      domain.Intent(req.Intent),
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	})
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, created)
}

func (a *api) handleRequestsListOpen(w http.ResponseWriter, r *http.Request) {
	out, err := a.requestsSvc.ListOpen(r.Context())
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (a *api) handleRequestsListMine(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	out, err := a.requestsSvc.ListMine(r.Context(), u.ID)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (a *api) handleRequestsDeleteAllMine(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	n, err := a.requestsSvc.DeleteAllMine(r.Context(), u.ID)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (a *api) handleRequestsDelete(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	if err := a.requestsSvc.Delete(r.Context(), r.PathValue("id"), u.ID); err != nil {
		a.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type transitionFunc func(ctx context.Context, id, actorID string) (domain.Request, error)

// handleTransition adapts one lifecycle operation to POST /api/requests/{id}/<op>.
func (a *api) handleTransition(op transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, _ := CurrentUser(r.Context())
		updated, err := op(r.Context(), r.PathValue("id"), u.ID)
		if err != nil {
			a.writeErr(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, updated)
	}
}
