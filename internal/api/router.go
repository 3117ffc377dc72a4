package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/hugh/poolparty/internal/api/handlers"
	"github.com/hugh/poolparty/internal/api/middleware"
	"github.com/hugh/poolparty/internal/auth"
	"github.com/hugh/poolparty/internal/business"
	"github.com/hugh/poolparty/internal/database/models"
	"github.com/hugh/poolparty/internal/events"
	"github.com/hugh/poolparty/internal/gallery"
	"github.com/hugh/poolparty/internal/groups"
	"github.com/hugh/poolparty/internal/invites"
	"github.com/hugh/poolparty/internal/members"
	"github.com/hugh/poolparty/internal/notify"
	"github.com/hugh/poolparty/internal/referrals"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB          *gorm.DB
	Redis       *redis.Client
	Logger      *slog.Logger
	JWTService  *auth.JWTService
	AuthService *auth.Service
	Notifier    *notify.Notifier
	Invitations notify.InvitationDeliverer // queued or inline invitation delivery
	EventQueue  events.Enqueuer            // nil announces events inline
	InviteTTL   time.Duration
	SiteURL     string

	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
	SecureCookies  bool
	CSRFSecret     []byte
}

// sensitive routes get their own, much tighter per-IP budget
const (
	sensitiveRequests = 10
	sensitiveWindow   = time.Minute
)

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.Metrics)

	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
	}

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{cfg.SiteURL}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.TokenHeader, middleware.CSRFHeaderName},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize services
	tokenStore := invites.NewStore(cfg.DB, cfg.InviteTTL)
	inviteService := invites.NewService(tokenStore, cfg.Invitations, cfg.Logger)
	referralService := referrals.NewService(cfg.DB, tokenStore, cfg.Invitations, cfg.Logger)
	memberService := members.NewService(cfg.DB, cfg.Logger)
	groupService := groups.NewService(cfg.DB, cfg.Logger)
	eventService := events.NewService(cfg.DB, cfg.Notifier, cfg.SiteURL, cfg.Logger)
	if cfg.EventQueue != nil {
		eventService.WithQueue(cfg.EventQueue)
	}
	businessService := business.NewService(cfg.DB, cfg.Logger)
	galleryService := gallery.NewService(cfg.DB, cfg.Logger)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, memberService, cfg.JWTService.Expiry(), cfg.SecureCookies, cfg.Logger)
	inviteHandler := handlers.NewInviteHandler(tokenStore, inviteService, cfg.Logger)
	referralHandler := handlers.NewReferralHandler(referralService, cfg.Logger)
	memberHandler := handlers.NewMemberHandler(memberService, groupService, cfg.Logger)
	groupHandler := handlers.NewGroupHandler(groupService, cfg.Logger)
	eventHandler := handlers.NewEventHandler(eventService, cfg.Logger)
	businessHandler := handlers.NewBusinessHandler(businessService, cfg.Logger)
	galleryHandler := handlers.NewGalleryHandler(galleryService, cfg.Logger)

	sensitive := httprate.LimitByIP(sensitiveRequests, sensitiveWindow)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CSRF(cfg.CSRFSecret))

		// Public endpoints
		r.With(sensitive).Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.With(sensitive).Post("/auth/check-member", authHandler.CheckMember)

		r.Get("/invite/{token}", inviteHandler.Inspect)
		r.With(sensitive).Post("/invite/{token}", inviteHandler.Redeem)

		// Directory, visible to anyone with contact details for members
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWTService))
			r.Get("/members", memberHandler.List)
			r.Get("/members/{id}", memberHandler.Get)
			r.Get("/events", eventHandler.List)
			r.Get("/events/{code}", eventHandler.Get)
			r.Get("/business", businessHandler.List)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))

			r.Get("/me", authHandler.Me)

			r.Route("/profile", func(r chi.Router) {
				r.Get("/", memberHandler.GetProfile)
				r.Put("/", memberHandler.UpdateProfile)
				r.Delete("/", memberHandler.DeleteProfile)
			})

			r.With(middleware.RequireRole(models.RoleMember)).Post("/referrals", referralHandler.Submit)
			r.Post("/events/{code}/join", eventHandler.Join)
			r.Post("/business", businessHandler.Create)
			r.Get("/gallery", galleryHandler.List)
			r.Post("/gallery", galleryHandler.Create)

			// Admin routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleAdmin))

				r.Get("/referrals", referralHandler.List)
				r.Get("/referrals/{id}", referralHandler.Get)
				r.Put("/referrals/{id}", referralHandler.Decide)

				r.Post("/events", eventHandler.Create)
				r.Delete("/events/{code}", eventHandler.Delete)
				r.Post("/events/{code}/notify", eventHandler.Notify)

				r.Route("/admin", func(r chi.Router) {
					r.Post("/invites", inviteHandler.Create)

					r.Put("/members/{id}", memberHandler.Update)
					r.Delete("/members/{id}", memberHandler.Delete)
					r.Put("/members/{id}/groups", memberHandler.SetGroups)

					r.Get("/groups", groupHandler.List)
					r.Post("/groups", groupHandler.Create)
					r.Put("/groups/{id}", groupHandler.Update)
					r.Delete("/groups/{id}", groupHandler.Delete)
				})
			})
		})
	})

	return &Router{r}
}
