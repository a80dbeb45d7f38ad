package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/launchstack/launchstack/app/repository"
	"github.com/launchstack/launchstack/internal/pkg/usercontext"
	"github.com/launchstack/launchstack/internal/pkg/utils"
)

type profileUpdateRequest struct {
	Name string `json:"name" validate:"required,min=3,max=150"`
}

type passwordChangeRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// HandleUserMe returns the current user's profile with their plan.
func HandleUserMe(c *fiber.Ctx) error {
	user := currentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	userCtx := usercontext.GetUserContext(c)
	return c.JSON(fiber.Map{
		"id":         user.ID,
		"name":       user.Name,
		"email":      user.Email,
		"role":       user.Role,
		"status":     user.Status,
		"plan":       userCtx.Plan,
		"avatar_url": utils.GetGravatarURL(user.Email, 200),
		"created_at": user.CreatedAt,
	})
}

// HandleUserUpdateProfile updates the current user's profile.
func HandleUserUpdateProfile(c *fiber.Ctx) error {
	user := currentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req profileUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	user.Name = req.Name
	if err := repository.GetGlobalRepositories().User.Update(user); err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"message": "profile updated"})
}

// HandleUserChangePassword changes the current user's password after
// verifying the old one.
func HandleUserChangePassword(c *fiber.Ctx) error {
	user := currentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req passwordChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if !user.CheckPassword(req.CurrentPassword) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "current password is incorrect",
		})
	}
	if err := user.SetPassword(req.NewPassword); err != nil {
		return internalError(c, err)
	}
	if err := repository.GetGlobalRepositories().User.Update(user); err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"message": "password changed"})
}
