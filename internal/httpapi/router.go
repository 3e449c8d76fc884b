package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"SkillSwapserver/internal/auth"
	"SkillSwapserver/internal/live"
	"SkillSwapserver/internal/service"
)

type RouterOpts struct {
	Logger *slog.Logger
	// IsProd drops stack traces from panic logs.
	IsProd bool

	DBPing func(context.Context) error

	Auth          *service.AuthService
	Requests      *service.RequestService
	Chat          *service.ChatService
	Resources     *service.ResourceService
	Notifications *service.NotificationService
	Hub           *live.Hub

	CookieCodec  auth.CookieCodec
	CookieSecure bool
	SessionTTL   time.Duration

	// LoginAttempts and LoginWindow bound failed logins per client IP and per email.
	LoginAttempts int
	LoginWindow   time.Duration
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := &api{
		logger:           logger,
		dbPing:           opts.DBPing,
		authSvc:          opts.Auth,
		requestsSvc:      opts.Requests,
		chatSvc:          opts.Chat,
		resourcesSvc:     opts.Resources,
		notificationsSvc: opts.Notifications,
		hub:              opts.Hub,
		cookieCodec:      opts.CookieCodec,
		cookieSecure:     opts.CookieSecure,
		sessionTTL:       opts.SessionTTL,
		loginLimiter:     newAttemptLimiter(opts.LoginAttempts, opts.LoginWindow),
	}

	publicMux := http.NewServeMux()
	apiMux := http.NewServeMux()

	publicMux.HandleFunc("GET /healthz", api.handleHealthz)

	apiMux.HandleFunc("POST /api/auth/register", api.handleAuthRegister)
	apiMux.HandleFunc("POST /api/auth/login", api.handleAuthLogin)
	apiMux.HandleFunc("POST /api/auth/logout", api.requireAuth(api.handleAuthLogout))
	apiMux.HandleFunc("GET /api/users/me", api.requireAuth(api.handleUsersMe))

	if api.requestsSvc != nil {
		apiMux.HandleFunc("GET /api/requests", api.handleRequestsListOpen)
		apiMux.HandleFunc("POST /api/requests", api.requireAuth(api.handleRequestsCreate))
		apiMux.HandleFunc("GET /api/requests/my", api.requireAuth(api.handleRequestsListMine))
		apiMux.HandleFunc("DELETE /api/requests/my/all", api.requireAuth(api.handleRequestsDeleteAllMine))
		apiMux.HandleFunc("DELETE /api/requests/{id}", api.requireAuth(api.handleRequestsDelete))
		apiMux.HandleFunc("POST /api/requests/{id}/offer", api.requireAuth(api.handleTransition(api.requestsSvc.OfferHelp)))
		apiMux.HandleFunc("POST /api/requests/{id}/accept", api.requireAuth(api.handleTransition(api.requestsSvc.AcceptHelp)))
		apiMux.HandleFunc("POST /api/requests/{id}/reject", api.requireAuth(api.handleTransition(api.requestsSvc.RejectHelp)))
		apiMux.HandleFunc("POST /api/requests/{id}/complete", api.requireAuth(api.handleTransition(api.requestsSvc.Complete)))
		apiMux.HandleFunc("POST /api/requests/{id}/reopen", api.requireAuth(api.handleTransition(api.requestsSvc.Reopen)))
	}

	if api.chatSvc != nil {
		apiMux.HandleFunc("POST /api/chat/send", api.requireAuth(api.handleChatSend))
		apiMux.HandleFunc("GET /api/chat/history", api.requireAuth(api.handleChatHistory))
		apiMux.HandleFunc("GET /api/chat/conversations", api.requireAuth(api.handleChatConversations))
		if api.hub != nil {
			apiMux.HandleFunc("GET /api/ws", api.requireAuth(api.handleWS))
		}
	}

	if api.resourcesSvc != nil {
		apiMux.HandleFunc("GET /api/resources", api.handleResourcesList)
		apiMux.HandleFunc("POST /api/resources", api.requireAuth(api.handleResourcesCreate))
		apiMux.HandleFunc("GET /api/resources/my", api.requireAuth(api.handleResourcesListMine))
	}

	if api.notificationsSvc != nil {
		apiMux.HandleFunc("POST /api/notifications/token", api.requireAuth(api.handleNotificationsTokenUpsert))
		apiMux.HandleFunc("DELETE /api/notifications/token", api.requireAuth(api.handleNotificationsTokenDelete))
	}

	apiHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Handler only reports the match; ServeHTTP is what fills in path wildcards.
		if _, pattern := apiMux.Handler(r); pattern == "" {
			WriteError(w, http.StatusNotFound, "not found")
			return
		}
		apiMux.ServeHTTP(w, r)
	})

	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/api" {
			apiHandler.ServeHTTP(w, r)
			return
		}
		publicMux.ServeHTTP(w, r)
	})

	var h http.Handler = root
	h = RequestLogger(logger)(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

type api struct {
	logger *slog.Logger

	dbPing func(context.Context) error

	authSvc          *service.AuthService
	requestsSvc      *service.RequestService
	chatSvc          *service.ChatService
	resourcesSvc     *service.ResourceService
	notificationsSvc *service.NotificationService
	hub              *live.Hub

	cookieCodec  auth.CookieCodec
	cookieSecure bool
	sessionTTL   time.Duration

	loginLimiter *attemptLimiter
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}
