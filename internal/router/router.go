package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-registration/internal/config"
	"github.com/iliyamo/event-registration/internal/handler"
	"github.com/iliyamo/event-registration/internal/metrics"
	"github.com/iliyamo/event-registration/internal/middleware"
	"github.com/iliyamo/event-registration/internal/model"
	"github.com/iliyamo/event-registration/internal/ratelimit"
)

// RegisterRoutes registers operational routes that sit outside admission
// control: liveness, readiness and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
	e.GET("/metrics", metrics.Handler)
}

// PublicHandlers bundles the unauthenticated endpoints.
type PublicHandlers struct {
	Events        *handler.EventsHandler
	Registrations *handler.RegistrationHandler
	Payments      *handler.PaymentHandler
	Contact       *handler.ContactHandler
}

// RegisterPublic registers the participant-facing routes.  Each route runs
// the limiter class matching its cost; the webhook is called by the payment
// provider and is authenticated by its signature instead.
func RegisterPublic(e *echo.Echo, h PublicHandlers, l *ratelimit.Limiter, cache echo.MiddlewareFunc) {
	v1 := e.Group("/v1")

	v1.GET("/events", h.Events.List, middleware.RateLimit(l, config.ClassPublic), cache)

	registration := middleware.RateLimit(l, config.ClassRegistration)
	v1.POST("/registrations", h.Registrations.Create, registration)
	v1.POST("/payments/orders", h.Payments.CreateOrder, registration)
	v1.POST("/payments/webhook", h.Payments.Webhook)

	v1.POST("/contact", h.Contact.Create, middleware.RateLimit(l, config.ClassContact))
}

// RegisterAdmin registers the organizer login and the read-only admin lists.
// The admin limiter runs after JWTAuth so that the ip_user strategy sees the
// authenticated user id.
func RegisterAdmin(e *echo.Echo, a *handler.AuthHandler, h *handler.AdminHandler, l *ratelimit.Limiter, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.POST("/login", a.Login, middleware.RateLimit(l, config.ClassContact))

	auth := g.Group("")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleAdmin))
	auth.Use(middleware.RateLimit(l, config.ClassAdmin))
	auth.GET("/me", a.Me)
	auth.GET("/registrations", h.Registrations)
	auth.GET("/messages", h.Messages)
	auth.GET("/payments", h.Payments)
}
