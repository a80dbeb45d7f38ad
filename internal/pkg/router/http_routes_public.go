package router

import (
	"github.com/launchstack/launchstack/app/controllers"
	"github.com/launchstack/launchstack/internal/pkg/constants"
	"github.com/launchstack/launchstack/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Get(constants.PublicRoute, controllers.HandleIndex)
	app.Get("/health", controllers.HandleHealth)

	// Auth
	app.Post("/register", controllers.HandleAuthRegister)
	app.Post("/login", controllers.HandleAuthLogin)
	app.Post("/logout", middleware.RequireAuth, controllers.HandleAuthLogout)
	app.Post("/password-reset", controllers.HandlePasswordResetRequest)
	app.Post("/password-reset/confirm", controllers.HandlePasswordResetConfirm)

	// Billing provider webhooks (no auth, signature-verified in controller)
	app.Post(constants.StripeWebhookRoute, controllers.HandleStripeWebhook)
}
