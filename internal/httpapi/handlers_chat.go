package httpapi

import (
	"net/http"
	"time"

	"SkillSwapserver/internal/domain"
)

type chatSendRequest struct {
	RecipientID string    `json:"recipient_id"`
	Content     string    `json:"content"`
	RequestID   string    `json:"request_id"`
	Kind        string    `json:"kind"`
	Timestamp   time.Time `json:"timestamp"`
}

func (r chatSendRequest) message() domain.ChatMessage {
	return domain.ChatMessage{
		RecipientID: r.RecipientID,
		Content:     r.Content,
		RequestID:   r.RequestID,
		Kind:        domain.MessageKind(r.Kind),
		Timestamp:   r.Timestamp,
	}
}

func (a *api) handleChatSend(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	var req chatSendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	saved, err := a.chatSvc.Send(r.Context(), u.ID, req.message())
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, saved)
}

func (a *api) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	out, err := a.chatSvc.History(r.Context(), u.ID)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (a *api) handleChatConversations(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	out, err := a.chatSvc.Conversations(r.Context(), u.ID)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}
