package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/launchstack/launchstack/app/controllers"
	"github.com/launchstack/launchstack/internal/pkg/constants"
	"github.com/launchstack/launchstack/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", cors.New(), limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// Mounted by absolute path; requests still pass the /api group
	// middleware above because it is matched by prefix.
	v1 := app.Group(constants.APIV1Route)

	// Account
	v1.Get("/me", middleware.RequireAuth, controllers.HandleUserMe)
	v1.Put("/me", middleware.RequireAuth, controllers.HandleUserUpdateProfile)
	v1.Put("/me/password", middleware.RequireAuth, controllers.HandleUserChangePassword)

	// Billing
	v1.Get("/billing/subscription", middleware.RequireAuth, controllers.HandleBillingSubscription)
	v1.Post("/billing/checkout", middleware.RequireAuth, controllers.HandleBillingCheckout)
	v1.Post("/billing/portal", middleware.RequireAuth, controllers.HandleBillingPortal)

	// Projects
	v1.Get("/projects", middleware.RequireAuth, controllers.HandleProjectList)
	v1.Post("/projects", middleware.RequireAuth, controllers.HandleProjectCreate)
	v1.Get("/projects/:uuid", middleware.RequireAuth, controllers.HandleProjectGet)
	v1.Put("/projects/:uuid", middleware.RequireAuth, controllers.HandleProjectUpdate)
	v1.Delete("/projects/:uuid", middleware.RequireAuth, controllers.HandleProjectDelete)
	v1.Get("/projects/:uuid/variations", middleware.RequireAuth, controllers.HandleProjectVariations)
	v1.Post("/projects/:uuid/variations", middleware.RequireAuth, controllers.HandleProjectVariationCreate)

	// Categories (read-only outside admin)
	v1.Get("/categories", controllers.HandleCategoryList)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
