package router

import (
	"github.com/launchstack/launchstack/app/controllers"
	"github.com/launchstack/launchstack/internal/pkg/constants"
	"github.com/launchstack/launchstack/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	ac := controllers.GetAdminController()

	adminGroup := app.Group(constants.AdminRoute, middleware.RequireAdmin)
	adminGroup.Get("/stats", ac.HandleStats)

	// User management
	adminGroup.Get("/users", ac.HandleUsers)
	adminGroup.Put("/users/:id", ac.HandleUserUpdate)
	adminGroup.Delete("/users/:id", ac.HandleUserDelete)

	// Manual subscription control
	adminGroup.Get("/users/:id/subscription", ac.HandleUserSubscription)
	adminGroup.Put("/users/:id/subscription", ac.HandleUserSubscriptionUpdate)

	// Category management
	adminGroup.Post("/categories", controllers.HandleCategoryCreate)
	adminGroup.Put("/categories/:id", controllers.HandleCategoryUpdate)
	adminGroup.Delete("/categories/:id", controllers.HandleCategoryDelete)
}
