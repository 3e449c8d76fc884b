package httpapi

import (
	"net/http"

	"SkillSwapserver/internal/domain"
)

type createResourceRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Price       string `json:"price"`
}

func (a *api) handleResourcesCreate(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	var req createResourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	created, err := a.resourcesSvc.Create(r.Context(), u.ID, domain.ResourceDraft{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
	})
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, created)
}

func (a *api) handleResourcesList(w http.ResponseWriter, r *http.Request) {
	out, err := a.resourcesSvc.List(r.Context())
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (a *api) handleResourcesListMine(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	out, err := a.resourcesSvc.ListMine(r.Context(), u.ID)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}
