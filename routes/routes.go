package routes

import (
	controller "leadintake/controllers"
	"leadintake/middleware"
	"leadintake/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

type Handlers struct {
	Intake *controller.IntakeController
	Tokens *controller.TokenController
	Query  *controller.QueryController
	Health *controller.HealthController
}

type Config struct {
	JWTSecret string
	// IssueLimiter guards token issuance; nil disables rate limiting.
	IssueLimiter fiber.Handler
	// AccessLog toggles the request log line per call.
	AccessLog bool
}

func SetupRoutes(app *fiber.App, h Handlers, cfg Config) {
	if cfg.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}

	app.Get("/health", h.Health.Health)

	SetupFormRoutes(app, h)
	SetupAPIRoutes(app, h, cfg)

	utils.Logger("routes").Info("Routes initialized successfully")
}

// SetupFormRoutes registers the public endpoints the intake form calls. The
// form token in each request is the credential.
func SetupFormRoutes(app *fiber.App, h Handlers) {
	form := app.Group("/form")
	form.Get("/validate", h.Intake.ValidateToken)
	form.Post("/submit", h.Intake.Submit)
	form.Get("/check", h.Intake.CheckExisting)
}

// SetupAPIRoutes registers the service-to-service API: token issuance for the
// messaging collaborator and the read side for the dashboard.
func SetupAPIRoutes(app *fiber.App, h Handlers, cfg Config) {
	api := app.Group("/api/v1")

	issue := []fiber.Handler{middleware.ServiceAuth(cfg.JWTSecret, utils.ScopeIssueTokens)}
	if cfg.IssueLimiter != nil {
		issue = append(issue, cfg.IssueLimiter)
	}
	issue = append(issue, h.Tokens.IssueToken)
	api.Post("/tokens", issue...)

	read := middleware.ServiceAuth(cfg.JWTSecret, utils.ScopeReadRecords)
	api.Get("/leads", read, h.Query.ListLeads)
	api.Get("/leads/:phone", read, h.Query.GetLead)
	api.Get("/user-data", read, h.Query.ListUserData)
	api.Get("/user-data/:phone", read, h.Query.GetUserData)
	api.Get("/classifications", read, h.Query.ListClassifications)
	api.Get("/classifications/:userId", read, h.Query.GetClassification)
	api.Get("/classifications/:userId/history", read, h.Query.ClassificationHistory)
	api.Get("/submissions", read, h.Query.ListSubmissions)
}
