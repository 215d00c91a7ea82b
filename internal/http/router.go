package http

import (
	"log/slog"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
)

// APIPrefix is the mount point of every route.
const APIPrefix = "/api"

type RouterConfig struct {
	Auth          *AuthHandler
	Bookings      *BookingHandler
	Sync          *SyncHandler
	Notifications *NotificationHandler
	Admin         *AdminHandler
	Profile       *ProfileHandler
	Reports       *ReportHandler
	System        *SystemHandler

	Resolver     ActorResolver
	SyncLimiter  Limiter
	// LoginLimiter throttles POST /sessions per client address.
	LoginLimiter Limiter
	CORSOrigins  []string
	Logger       *slog.Logger
	Middleware   []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := defaultLogger(cfg.Logger)
	router := httprouter.New()

	public := func(method, path string, h http.HandlerFunc) {
		router.Handler(method, APIPrefix+path, h)
	}
	requireActor := RequireActor(cfg.Resolver, logger)
	protected := func(method, path string, h http.HandlerFunc) {
		router.Handler(method, APIPrefix+path, requireActor(h))
	}
	limited := RateLimit(cfg.SyncLimiter, logger)

	if cfg.Auth != nil {
		loginLimited := RateLimit(cfg.LoginLimiter, logger)
		router.Handler(http.MethodPost, APIPrefix+"/sessions", loginLimited(http.HandlerFunc(cfg.Auth.CreateSession)))
		protected(http.MethodGet, "/sessions/current", cfg.Auth.CurrentSession)
		protected(http.MethodDelete, "/sessions/current", cfg.Auth.DeleteCurrentSession)
		protected(http.MethodPost, "/sessions/shared", cfg.Auth.CreateSharedSession)
		protected(http.MethodGet, "/sessions/shared/card", cfg.Auth.SharedAccessCard)
	}

	if cfg.Bookings != nil {
		protected(http.MethodGet, "/bookings", cfg.Bookings.List)
		protected(http.MethodPost, "/bookings", cfg.Bookings.Create)
		// GET /bookings/mine is dispatched by Get.
		protected(http.MethodGet, "/bookings/:id", cfg.Bookings.Get)
		protected(http.MethodPatch, "/bookings/:id", cfg.Bookings.Update)
		protected(http.MethodDelete, "/bookings/:id", cfg.Bookings.Delete)
		protected(http.MethodPost, "/bookings/:id/status", cfg.Bookings.SetStatus)
		protected(http.MethodPost, "/bookings/:id/attachments", cfg.Bookings.AddAttachment)
		protected(http.MethodDelete, "/bookings/:id/attachments/:filename", cfg.Bookings.RemoveAttachment)
		protected(http.MethodGet, "/calendar", cfg.Bookings.Calendar)
		protected(http.MethodGet, "/stats", cfg.Bookings.Stats)
	}

	if cfg.Sync != nil {
		router.Handler(http.MethodGet, APIPrefix+"/sync", requireActor(limited(http.HandlerFunc(cfg.Sync.Pull))))
		router.Handler(http.MethodPost, APIPrefix+"/sync", requireActor(limited(http.HandlerFunc(cfg.Sync.Push))))
	}

	if cfg.Notifications != nil {
		protected(http.MethodGet, "/notifications", cfg.Notifications.List)
		protected(http.MethodGet, "/notifications/unread-count", cfg.Notifications.UnreadCount)
		// POST /notifications/read-all shares its position with :id.
		protected(http.MethodPost, "/notifications/:id", cfg.Notifications.MarkAllRead)
		protected(http.MethodPost, "/notifications/:id/read", cfg.Notifications.MarkRead)
		protected(http.MethodDelete, "/notifications/:id", cfg.Notifications.Delete)
	}

	if cfg.Admin != nil {
		protected(http.MethodGet, "/admin/users", cfg.Admin.ListUsers)
		protected(http.MethodPost, "/admin/users", cfg.Admin.RegisterStaff)
		protected(http.MethodGet, "/admin/users/:id", cfg.Admin.GetUser)
		protected(http.MethodPut, "/admin/users/:id/tier", cfg.Admin.SetTier)
		protected(http.MethodPut, "/admin/users/:id/active", cfg.Admin.SetActive)
		protected(http.MethodGet, "/admin/audit", cfg.Admin.ListAudit)
	}

	if cfg.Profile != nil {
		protected(http.MethodGet, "/profile", cfg.Profile.Get)
		protected(http.MethodPut, "/profile", cfg.Profile.Update)
		protected(http.MethodPut, "/profile/password", cfg.Profile.ChangePassword)
		protected(http.MethodGet, "/profile/activity", cfg.Profile.Activity)
	}

	if cfg.Reports != nil {
		protected(http.MethodGet, "/reports/bookings.csv", cfg.Reports.CSV)
		protected(http.MethodGet, "/reports/bookings.pdf", cfg.Reports.PDF)
		protected(http.MethodGet, "/profile/bookings.csv", cfg.Reports.MyCSV)
		protected(http.MethodGet, "/profile/bookings.pdf", cfg.Reports.MyPDF)
	}

	if cfg.System != nil {
		protected(http.MethodGet, "/ws", cfg.System.Stream)
		public(http.MethodGet, "/healthz", cfg.System.Health)
	}

	var handler http.Handler = router
	if len(cfg.CORSOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "Authorization", "If-None-Match"},
			ExposedHeaders:   []string{"ETag", "X-Session-Token", "Retry-After"},
			AllowCredentials: true,
		}).Handler(handler)
	}
	handler = SecurityHeaders(handler)
	handler = RequestLogger(logger)(handler)

	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}
	return handler
}
