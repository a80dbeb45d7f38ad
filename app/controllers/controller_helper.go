package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/launchstack/launchstack/app/models"
	"github.com/launchstack/launchstack/app/repository"
	"github.com/launchstack/launchstack/internal/pkg/usercontext"
)

// currentUser loads the authenticated user record, or nil if the session is
// anonymous or the account no longer exists.
func currentUser(c *fiber.Ctx) *models.User {
	userID := usercontext.GetUserID(c)
	if userID == 0 {
		return nil
	}
	user, err := repository.GetGlobalRepositories().User.GetByID(userID)
	if err != nil {
		return nil
	}
	return user
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   "bad_request",
		"message": message,
	})
}

func notFound(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":   "not_found",
		"message": message,
	})
}

func forbidden(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"error":   "forbidden",
		"message": message,
	})
}

func internalError(c *fiber.Ctx, err error) error {
	log.Printf("[HTTP] %s %s failed: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "internal_error",
		"message": "something went wrong",
	})
}
