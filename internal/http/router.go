package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/serenify/server/internal/http/handlers"
	"github.com/serenify/server/internal/middleware"
)

// RouterDeps collects what the router mounts.
type RouterDeps struct {
	Auth       *handlers.AuthHandler
	Health     http.Handler
	Metrics    http.Handler
	CORSOrigin string
	Logger     *slog.Logger
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(d RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(d.CORSOrigin))

	r.Method(http.MethodGet, "/health", d.Health)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/signup", d.Auth.HandleSignup)
		r.Post("/resend-otp", d.Auth.HandleResendOTP)
		r.Post("/verify-otp", d.Auth.HandleVerifyOTP)
		r.Post("/login", d.Auth.HandleLogin)
	})

	return r
}
