package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/abhisheksingh810/marking-api/internal/config"
	"github.com/abhisheksingh810/marking-api/internal/handler"
	"github.com/abhisheksingh810/marking-api/internal/middleware"
	"github.com/abhisheksingh810/marking-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	IntakeHandler      *handler.IntakeHandler
	MarkingHandler     *handler.MarkingHandler
	GradingHandler     *handler.GradingHandler
	RubricHandler      *handler.RubricHandler
	MalpracticeHandler *handler.MalpracticeHandler
	ActivityHandler    *handler.ActivityHandler
	JWTMiddleware      fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Submission intake (learner facing; released grades ride along on the
	// submission payload). Intake is rate limited per learner so a misbehaving
	// LMS launch cannot flood the attempt pipeline.
	if deps.IntakeHandler != nil {
		submissions := api.Group("/submissions", jwtMiddleware, middleware.RateLimit("intake", 30, time.Minute))
		deps.IntakeHandler.Register(submissions)
	}

	// Marking workflow (markers and admins)
	if deps.MarkingHandler != nil {
		marking := api.Group("/marking", jwtMiddleware, middleware.RequireRole("marker", "admin"))
		deps.MarkingHandler.Register(marking)

		if deps.GradingHandler != nil {
			deps.GradingHandler.Register(marking)
		}
	}

	// Rubric administration
	if deps.RubricHandler != nil {
		assessments := api.Group("/assessments", jwtMiddleware, middleware.RequireRole("admin"))
		deps.RubricHandler.Register(assessments)
	}

	// Malpractice enforcement
	if deps.MalpracticeHandler != nil {
		malpractice := api.Group("/malpractice", jwtMiddleware, middleware.RequireRole("admin"))
		deps.MalpracticeHandler.Register(malpractice)
	}

	// Audit trail
	if deps.ActivityHandler != nil {
		activity := api.Group("/activity", jwtMiddleware, middleware.RequireRole("admin"))
		deps.ActivityHandler.Register(activity)
	}
}
