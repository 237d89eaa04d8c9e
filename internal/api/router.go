package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/account-service/internal/api/handlers"
	"github.com/isdelr/account-service/internal/auth"
	"github.com/isdelr/account-service/internal/metrics"
	"github.com/isdelr/account-service/internal/ratelimit"
	"github.com/isdelr/account-service/internal/services"
	"github.com/isdelr/account-service/internal/websocket"
)

// Deps are the collaborators the router dispatches to.
type Deps struct {
	Accounts services.AccountServiceProvider
	Events   services.EventServiceProvider
	Hub      *websocket.Hub

	// Limiter guards /register and /login when set.
	Limiter        *ratelimit.Limiter
	AuthRateLimit  int
	AuthRateWindow time.Duration

	AllowedOrigins []string
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(Metrics)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	userHandler := handlers.NewUserHandler(deps.Accounts)
	healthHandler := handlers.NewHealthHandler(deps.Accounts)

	r.Get("/healthz", healthHandler.Check)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.With(limit(deps, "register")...).Post("/register", userHandler.Register)
	r.With(limit(deps, "login")...).Post("/login", userHandler.Login)

	if deps.Events != nil {
		eventHandler := handlers.NewEventHandler(deps.Events)
		r.With(handlers.RequireAudience(deps.Accounts, auth.AudienceAdmin, false)).
			Get("/events", eventHandler.GetRecent)
	}
	if deps.Hub != nil {
		wsHandler := handlers.NewWebSocketHandler(deps.Hub, deps.AllowedOrigins)
		r.With(handlers.RequireAudience(deps.Accounts, auth.AudienceAdmin, true)).
			Get("/events/ws", wsHandler.Serve)
	}

	r.Get("/", userHandler.GetAll)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", userHandler.Get)
		r.Patch("/", userHandler.Update)
		r.Delete("/", userHandler.Delete)
	})

	return r
}

func limit(deps Deps, name string) []func(http.Handler) http.Handler {
	if deps.Limiter == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{
		deps.Limiter.Middleware(ratelimit.Limit{
			Name:     name,
			Capacity: deps.AuthRateLimit,
			Window:   deps.AuthRateWindow,
		}),
	}
}
