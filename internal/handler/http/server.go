package http

import (
	"LinkSnap-Backend/internal/auth"
	"LinkSnap-Backend/internal/ratelimit"
	"LinkSnap-Backend/internal/service"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

const (
	createURLLimitMessage = "Too many URL creation requests from this IP, please try again after 15 minutes"
	authLimitMessage      = "Too many login attempts from this IP, please try again after an hour"
)

// Dependencies всё, что нужно HTTP слою
type Dependencies struct {
	Storage   Pinger
	Shortener *service.URLShortenerService
	Redirects *service.RedirectService
	Analytics *service.AnalyticsService
	Auth      *auth.AuthHandlers
	JWT       *auth.JWTService
	Processor StatsReporter

	// Nil limiters disable rate limiting for their routes.
	CreateURLLimiter ratelimit.Limiter
	AuthLimiter      ratelimit.Limiter

	AllowedOrigins []string
}

// Server HTTP сервер с обработчиками
type Server struct {
	authHandlers     *auth.AuthHandlers
	linksHandler     *LinksHandler
	redirectHandler  *RedirectHandler
	analyticsHandler *AnalyticsHandler
	healthHandler    *HealthHandler
	authMiddleware   *auth.Middleware
	createURLLimit   func(http.Handler) http.Handler
	authLimit        func(http.Handler) http.Handler
	allowedOrigins   []string
	log              *zap.Logger
}

// NewServer создает новый HTTP сервер
func NewServer(deps Dependencies, log *zap.Logger) *Server {
	return &Server{
		authHandlers:     deps.Auth,
		linksHandler:     NewLinksHandler(deps.Shortener, deps.Analytics, log),
		redirectHandler:  NewRedirectHandler(deps.Redirects, log),
		analyticsHandler: NewAnalyticsHandler(deps.Analytics, log),
		healthHandler:    NewHealthHandler(deps.Storage, deps.Processor, log),
		authMiddleware:   auth.NewMiddleware(deps.JWT, log),
		createURLLimit:   limitOrPass(deps.CreateURLLimiter, createURLLimitMessage, log),
		authLimit:        limitOrPass(deps.AuthLimiter, authLimitMessage, log),
		allowedOrigins:   deps.AllowedOrigins,
		log:              log,
	}
}

func limitOrPass(limiter ratelimit.Limiter, message string, log *zap.Logger) func(http.Handler) http.Handler {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return ratelimit.Middleware(limiter, extractIPAddress, message, log)
}

// SetupRoutes настраивает маршруты
func (s *Server) SetupRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))
	r.Use(cors(s.allowedOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, s.log, "Route not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, s.log, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// Health checks (без аутентификации)
	r.Get("/health", s.healthHandler.Health)
	r.Get("/ready", s.healthHandler.Ready)

	// Swagger документация
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	r.Route("/api/auth", func(ar chi.Router) {
		ar.Use(s.authLimit)
		ar.Post("/register", s.authHandlers.Register)
		ar.Post("/login", s.authHandlers.Login)
		ar.Post("/refresh", s.authHandlers.Refresh)
		ar.With(s.authMiddleware.RequireAuth).Get("/profile", s.authHandlers.Profile)
	})

	r.Route("/api/url", func(ur chi.Router) {
		// Публичный редирект
		ur.Get("/{shortCode}", s.redirectHandler.HandleRedirect)

		ur.Group(func(pr chi.Router) {
			pr.Use(s.authMiddleware.RequireAuth)
			pr.With(s.createURLLimit).Post("/shorten", s.linksHandler.CreateLink)
			pr.Get("/myurls", s.linksHandler.ListLinks)
			pr.Get("/{id}/stats", s.linksHandler.GetStats)
			pr.Get("/{id}/qr", s.linksHandler.QRCode)
			pr.Delete("/{id}", s.linksHandler.DeleteLink)
		})
	})

	r.Route("/api/analytics", func(ar chi.Router) {
		ar.Use(s.authMiddleware.RequireAuth)
		ar.Get("/dashboard/summary", s.analyticsHandler.Dashboard)
		ar.Get("/{shortCode}", s.analyticsHandler.CodeAnalytics)
	})

	// Redirect endpoint (без аутентификации)
	r.Get("/{shortCode}", s.redirectHandler.HandleRedirect)

	return r
}
