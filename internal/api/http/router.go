package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/symptomcheck/symptom-service/internal/api/http/handlers"
	"github.com/symptomcheck/symptom-service/internal/auth"
	"github.com/symptomcheck/symptom-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Symptoms       *handlers.SymptomsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "Symptom Checker API", "status": "running"})
	})
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	me := authGroup.Group("", cfg.AuthMiddleware.Handle)
	me.Get("/me", cfg.Users.Me)
	me.Get("/history", cfg.Users.History)
	me.Post("/logout", cfg.Users.Logout)

	symptoms := app.Group("/api/symptoms", cfg.AuthMiddleware.Handle)
	symptoms.Post("/analyze", cfg.Symptoms.Analyze)
	symptoms.Post("/analyze-image", cfg.Symptoms.AnalyzeImage)
	symptoms.Post("/upload-pdf", cfg.Symptoms.UploadPDF)
	symptoms.Post("/analyze-with-pdf", cfg.Symptoms.AnalyzeWithPDF)
	symptoms.Get("/history/:id", cfg.Symptoms.GetRecord)
}
