package router

import (
	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/mathieu-neron/packprice/packprice-go/internal/handler"
	"github.com/mathieu-neron/packprice/packprice-go/internal/middleware"
)

// Handlers holds all handler instances needed by the router.
type Handlers struct {
	Price    *handler.PriceHandler
	Vote     *handler.VoteHandler
	Flag     *handler.FlagHandler
	Security *handler.SecurityHandler
	Stats    *handler.StatsHandler
	Health   *handler.HealthHandler
}

// Setup configures the middleware stack and all API routes on the given
// Fiber app. The returned func stops the throttles' background cleanup.
func Setup(app *fiber.App, h *Handlers, corsOrigins string) (stop func()) {
	readLimit := middleware.NewReadThrottle()
	writeLimit := middleware.NewWriteThrottle()
	securityLimit := middleware.NewSecurityThrottle()

	// Middleware stack (order matters)
	app.Use(recoverer.New())
	app.Use(middleware.NewRequestLogger())
	app.Use(middleware.NewCORS(corsOrigins))
	app.Use(handler.MetricsMiddleware())

	// Health and metrics sit outside the throttled API group
	app.Get("/health/live", h.Health.Live)
	app.Get("/health/ready", h.Health.Ready)
	app.Get("/metrics", handler.MetricsHandler())

	api := app.Group("/api")

	// Price routes
	api.Post("/prices", writeLimit.Handler(), h.Price.Submit)
	api.Get("/items/:itemId/prices/best", readLimit.Handler(), h.Price.Best)
	api.Get("/items/:itemId/prices", readLimit.Handler(), h.Price.List)
	api.Get("/items/:itemId/stats", readLimit.Handler(), h.Stats.ItemStats)

	// Vote and flag routes
	api.Post("/prices/:id/votes", writeLimit.Handler(), h.Vote.Cast)
	api.Post("/prices/:id/flag", writeLimit.Handler(), h.Flag.Flag)

	// Security routes
	api.Get("/security/ip/:ip", securityLimit.Handler(), h.Security.IPReport)

	return func() {
		readLimit.Stop()
		writeLimit.Stop()
		securityLimit.Stop()
	}
}
