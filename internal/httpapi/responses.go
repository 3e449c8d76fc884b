package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"SkillSwapserver/internal/domain"
)

// WriteError writes a plain-text error body.
func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// domainErrorStatus maps err to an HTTP status. Rejected business rules are 400 and carry
// their own message; anything unrecognised is a 500.
func domainErrorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func WriteDomainError(w http.ResponseWriter, err error) {
	status := domainErrorStatus(err)
	if status == http.StatusInternalServerError {
		WriteError(w, status, "internal server error")
		return
	}
	WriteError(w, status, err.Error())
}

// writeErr logs unexpected failures before answering with WriteDomainError.
func (a *api) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	if domainErrorStatus(err) == http.StatusInternalServerError {
		fields := []any{"method", r.Method, "path", r.URL.Path, "err", err}
		if rid, ok := GetRequestID(r.Context()); ok {
			fields = append(fields, "request_id", rid)
		}
		a.logger.ErrorContext(r.Context(), "request failed", fields...)
	}
	WriteDomainError(w, err)
}

func writeBadJSON(w http.ResponseWriter) {
	WriteError(w, http.StatusBadRequest, "invalid json")
}
