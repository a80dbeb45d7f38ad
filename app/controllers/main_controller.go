package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/launchstack/launchstack/internal/pkg/env"
)

// HandleIndex answers the root route with basic service information.
func HandleIndex(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"name": "launchstack",
		"env":  env.GetEnv("APP_ENV", "prod"),
	})
}

// HandleHealth is the liveness probe.
func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
