package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"SkillSwapserver/internal/auth"
	"SkillSwapserver/internal/clock"
	"SkillSwapserver/internal/config"
	"SkillSwapserver/internal/email"
	"SkillSwapserver/internal/httpapi"
	"SkillSwapserver/internal/live"
	"SkillSwapserver/internal/notifications"
	"SkillSwapserver/internal/scheduler"
	"SkillSwapserver/internal/service"
	"SkillSwapserver/internal/store/memory"
	"SkillSwapserver/internal/store/postgres"
)

// stores groups the persistence ports the services need.
type stores struct {
	users     service.UsersStore
	sessions  service.SessionsStore
	requests  service.RequestsStore
	messages  service.MessagesStore
	resources service.ResourcesStore
	tokens    service.NotificationTokensStore
	directory service.UserDirectory
	ping      func(context.Context) error
	close     func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)

	st, err := openStores(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("store init failed", "err", err)
		os.Exit(1)
	}
	defer st.close()

	hub := live.NewHub(logger, cfg.WSAllowedOrigins)
	sched := scheduler.New(clock.Real(), logger)

	var mailer service.Mailer = &email.LogMailer{Logger: logger}
	if cfg.SMTP.Enabled() {
		mailer = &email.SMTPMailer{
			Settings: email.SMTPSettings{
				Host:     cfg.SMTP.Host,
				Port:     cfg.SMTP.Port,
				Username: cfg.SMTP.Username,
				Password: cfg.SMTP.Password,
				TLSMode:  cfg.SMTP.TLSMode,
			},
			FromName:  cfg.SMTP.FromName,
			FromEmail: cfg.SMTP.FromEmail,
		}
	} else {
		logger.Info("smtp disabled, outgoing mail is only logged")
	}

	notificationsSvc := &service.NotificationService{Tokens: st.tokens, Logger: logger}
	if cfg.FCMCredentials != "" {
		sender, err := notifications.NewFCMSender(context.Background(), cfg.FCMProjectID, cfg.FCMCredentials)
		if err != nil {
			logger.Error("fcm init failed", "err", err)
			os.Exit(1)
		}
		notificationsSvc.Sender = sender
		logger.Info("fcm push enabled")
	}

	dispatcher := &service.Dispatcher{
		Live:        hub,
		Devices:     notificationsSvc,
		Mail:        mailer,
		Users:       st.directory,
		Concurrency: cfg.BroadcastConcurrency,
		Logger:      logger,
	}

	authSvc := &service.AuthService{
		Users:      st.users,
		Sessions:   st.sessions,
		SessionTTL: cfg.SessionTTL,
	}
	sched.Every(cfg.SessionSweepInterval, func(ctx context.Context) {
		n, err := authSvc.PurgeSessions(ctx)
		if err != nil {
			logger.WarnContext(ctx, "session sweep failed", "err", err)
			return
		}
		logger.DebugContext(ctx, "session sweep", "deleted", n)
	})

	handler := httpapi.NewRouter(httpapi.RouterOpts{
		Logger: logger,
		IsProd: cfg.IsProd(),
		DBPing: st.ping,
		Auth:   authSvc,
		Requests: &service.RequestService{
			Requests: st.requests,
			Users:    st.users,
			Notifier: dispatcher,
			Logger:   logger,
		},
		Chat: &service.ChatService{
			Messages:      st.messages,
			Users:         st.users,
			Live:          hub,
			Mail:          mailer,
			Presence:      hub,
			Scheduler:     sched,
			FallbackDelay: cfg.ChatEmailDelay,
			Logger:        logger,
		},
		Resources: &service.ResourceService{
			Resources: st.resources,
			Users:     st.users,
			Notifier:  dispatcher,
			Logger:    logger,
		},
		Notifications: notificationsSvc,
		Hub:           hub,
		CookieCodec:   cookieCodec(cfg),
		CookieSecure:  cfg.CookieSecure(),
		SessionTTL:    cfg.SessionTTL,
		LoginAttempts: cfg.LoginMaxAttempts,
		LoginWindow:   cfg.LoginWindow,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr, "db_enabled", cfg.DBDSN != "")
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		hub.Close()
		_ = srv.Shutdown(ctx)
		sched.Close()
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			hub.Close()
			sched.Close()
			os.Exit(1)
		}
	}
}

// openStores connects to Postgres when APP_DB_DSN is set and falls back to the in-memory
// store otherwise.
func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (stores, error) {
	if cfg.DBDSN == "" {
		logger.Warn("APP_DB_DSN not set, using in-memory store")
		m := memory.New()
		return stores{
			users:     m,
			sessions:  m,
			requests:  m,
			messages:  m,
			resources: m,
			tokens:    m,
			directory: m,
			close:     func() {},
		}, nil
	}

	pool, err := postgres.Open(ctx, cfg.DBDSN)
	if err != nil {
		return stores{}, err
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return stores{}, err
	}
	users := postgres.NewUsersStore(pool)
	return stores{
		users:     users,
		sessions:  postgres.NewSessionsStore(pool),
		requests:  postgres.NewRequestsStore(pool),
		messages:  postgres.NewMessagesStore(pool),
		resources: postgres.NewResourcesStore(pool),
		tokens:    postgres.NewNotificationTokensStore(pool),
		directory: users,
		ping:      pool.Ping,
		close:     pool.Close,
	}, nil
}

func cookieCodec(cfg config.Config) auth.CookieCodec {
	previous := make([][]byte, 0, len(cfg.PreviousCookieSecrets))
	for _, s := range cfg.PreviousCookieSecrets {
		previous = append(previous, []byte(s))
	}
	return auth.NewCookieCodec([]byte(cfg.CookieSecret), previous...)
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
