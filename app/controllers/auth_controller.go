package controllers

import (
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/launchstack/launchstack/app/models"
	"github.com/launchstack/launchstack/app/repository"
	"github.com/launchstack/launchstack/internal/pkg/database"
	"github.com/launchstack/launchstack/internal/pkg/env"
	"github.com/launchstack/launchstack/internal/pkg/mail"
	"github.com/launchstack/launchstack/internal/pkg/security"
	"github.com/launchstack/launchstack/internal/pkg/session"
)

const (
	AUTH_KEY       string = "authenticated"
	USER_ID        string = "user_id"
	USER_EMAIL     string = "email"
	USER_ROLE      string = "role"
	USER_IS_ADMIN  string = "isAdmin"
	FROM_PROTECTED string = "fromProtected"
)

var validate = validator.New()

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=3,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleAuthRegister creates a new user account.
func HandleAuthRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	user, err := models.CreateUser(req.Name, req.Email, req.Password)
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := database.GetDB().Create(user).Error; err != nil {
		log.Printf("[Auth] register failed for %s: %v", req.Email, err)
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "conflict",
			"message": "an account with this email already exists",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":    user.ID,
		"email": user.Email,
	})
}

// HandleAuthLogin verifies credentials and establishes a session.
func HandleAuthLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	// notice: in production you should not inform the user
	// with detailed messages about login failures
	user, err := repository.GetGlobalRepositories().User.GetByEmail(req.Email)
	if err != nil || !models.CheckPasswordHash(req.Password, user.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "invalid email or password",
		})
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return internalError(c, err)
	}

	sess.Set(AUTH_KEY, true)
	sess.Set(USER_ID, user.ID)
	sess.Set(USER_EMAIL, user.Email)
	sess.Set(USER_ROLE, user.Role)
	sess.Set(USER_IS_ADMIN, user.IsAdmin())

	if err := sess.Save(); err != nil {
		return internalError(c, err)
	}

	database.GetDB().Model(user).Update("last_login_at", time.Now())

	return c.JSON(fiber.Map{
		"id":    user.ID,
		"email": user.Email,
		"role":  user.Role,
	})
}

type passwordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type passwordResetConfirmRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// HandlePasswordResetRequest mails a signed reset link. The response does not
// reveal whether the address has an account.
func HandlePasswordResetRequest(c *fiber.Ctx) error {
	var req passwordResetRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if user, err := repository.GetGlobalRepositories().User.GetByEmail(req.Email); err == nil {
		secret := env.GetEnv("APP_SECRET", "")
		token, err := security.GenerateResetToken(user.ID, user.Email, time.Hour, secret)
		if err != nil {
			log.Printf("[Auth] reset token for %s failed: %v", req.Email, err)
		} else {
			domain := env.GetEnv("PUBLIC_DOMAIN", "http://localhost:8080")
			resetURL := domain + "/reset-password?token=" + token
			if err := mail.NewNotifier().SendPasswordReset(user.Email, resetURL); err != nil {
				log.Printf("[Auth] reset email to %s failed: %v", user.Email, err)
			}
		}
	}

	return c.JSON(fiber.Map{"message": "if the account exists, a reset email has been sent"})
}

// HandlePasswordResetConfirm sets a new password from a valid reset token.
func HandlePasswordResetConfirm(c *fiber.Ctx) error {
	var req passwordResetConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	secret := env.GetEnv("APP_SECRET", "")
	claims, err := security.VerifyResetToken(req.Token, secret)
	if err != nil {
		return badRequest(c, "invalid or expired reset token")
	}

	repos := repository.GetGlobalRepositories()
	user, err := repos.User.GetByID(claims.UserID)
	if err != nil || user.Email != claims.Email {
		return badRequest(c, "invalid or expired reset token")
	}

	if err := user.SetPassword(req.NewPassword); err != nil {
		return internalError(c, err)
	}
	if err := repos.User.Update(user); err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"message": "password updated"})
}

// HandleAuthLogout destroys the current session.
func HandleAuthLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return internalError(c, err)
	}

	if err := sess.Destroy(); err != nil {
		return internalError(c, err)
	}

	c.Locals(FROM_PROTECTED, false)

	return c.JSON(fiber.Map{"message": "logged out"})
}
