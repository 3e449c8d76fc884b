package httpapi

import (
	"encoding/json"
	"net/http"

	"SkillSwapserver/internal/live"
)

const (
	destChatSend = "/app/chat.send"
	queueErrors  = "/queue/errors"
)

// handleWS attaches the caller to the live hub. Inbound chat frames go through the same path as
// POST /api/chat/send; rejections are pushed back on /queue/errors.
func (a *api) handleWS(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	ctx := r.Context()

	err := a.hub.Serve(w, r, u.ID, func(f live.Frame) {
		switch f.Destination {
		case destChatSend:
			var req chatSendRequest
			if err := json.Unmarshal(f.Payload, &req); err != nil {
				_ = a.hub.Push(u.ID, queueErrors, "invalid json")
				return
			}
			if _, err := a.chatSvc.Send(ctx, u.ID, req.message()); err != nil {
				msg := err.Error()
				if domainErrorStatus(err) == http.StatusInternalServerError {
					a.logger.ErrorContext(ctx, "ws chat send failed", "user_id", u.ID, "err", err)
					msg = "internal server error"
				}
				_ = a.hub.Push(u.ID, queueErrors, msg)
			}
		default:
			a.logger.DebugContext(ctx, "ws frame ignored", "user_id", u.ID, "destination", f.Destination)
		}
	})
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		a.logger.DebugContext(ctx, "ws upgrade failed", "user_id", u.ID, "err", err)
	}
}
