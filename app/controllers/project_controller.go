package controllers

import (
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/launchstack/launchstack/app/models"
	"github.com/launchstack/launchstack/app/repository"
	"github.com/launchstack/launchstack/internal/pkg/entitlements"
	"github.com/launchstack/launchstack/internal/pkg/mail"
	"github.com/launchstack/launchstack/internal/pkg/metrics/counter"
)

type projectRequest struct {
	Name        string `json:"name" validate:"required,min=3,max=150"`
	Description string `json:"description" validate:"max=2000"`
	ImageURL    string `json:"image_url" validate:"max=255"`
	CategoryID  *uint  `json:"category_id"`
}

type variationRequest struct {
	Name        string   `json:"name" validate:"required,min=1,max=150"`
	Description string   `json:"description" validate:"max=2000"`
	Price       *float64 `json:"price"`
}

// HandleProjectList returns the current user's projects.
func HandleProjectList(c *fiber.Ctx) error {
	user := currentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage := 20
	repos := repository.GetGlobalRepositories()

	projects, err := repos.Project.GetByUserID(user.ID, (page-1)*perPage, perPage)
	if err != nil {
		return internalError(c, err)
	}
	total, err := repos.Project.CountByUserID(user.ID)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"projects": projects,
		"page":     page,
		"total":    total,
	})
}

// HandleProjectCreate creates a project for the current user. Free accounts
// are capped; paid and admin accounts are not.
func HandleProjectCreate(c *fiber.Ctx) error {
	user := currentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req projectRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	repos := repository.GetGlobalRepositories()
	count, err := repos.Project.CountByUserID(user.ID)
	if err != nil {
		return internalError(c, err)
	}
	sub, err := subscriptionForEntitlement(c, user.ID)
	if err != nil {
		return internalError(c, err)
	}
	if !entitlements.CanCreateProject(user, sub, count) {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error":   "limit_reached",
			"message": "free plan is limited to 2 projects, upgrade to create more",
		})
	}

	project := &models.Project{
		UserID:      user.ID,
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		CategoryID:  req.CategoryID,
	}
	if err := repos.Project.Create(project); err != nil {
		return internalError(c, err)
	}

	go func() {
		if err := mail.NewNotifier().SendProjectCreated(user.Email, user.Name, project.Name); err != nil {
			log.Printf("[Project] creation email to %s failed: %v", user.Email, err)
		}
	}()

	return c.Status(fiber.StatusCreated).JSON(project)
}

// HandleProjectGet returns one of the current user's projects by UUID.
func HandleProjectGet(c *fiber.Ctx) error {
	user := currentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	project, err := ownedProject(c, user)
	if err != nil {
		return notFound(c, "project not found")
	}

	if err := counter.AddProjectView(project.ID); err != nil {
		log.Printf("[Project] view counter for %d failed: %v", project.ID, err)
	}
	return c.JSON(project)
}

// HandleProjectUpdate updates one of the current user's projects.
func HandleProjectUpdate(c *fiber.Ctx) error {
	user := currentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	project, err := ownedProject(c, user)
	if err != nil {
		return notFound(c, "project not found")
	}

	var req projectRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	project.Name = req.Name
	project.Description = req.Description
	project.ImageURL = req.ImageURL
	project.CategoryID = req.CategoryID

	if err := repository.GetGlobalRepositories().Project.Update(project); err != nil {
		return internalError(c, err)
	}
	return c.JSON(project)
}

// HandleProjectDelete deletes one of the current user's projects.
func HandleProjectDelete(c *fiber.Ctx) error {
	user := currentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	project, err := ownedProject(c, user)
	if err != nil {
		return notFound(c, "project not found")
	}

	if err := repository.GetGlobalRepositories().Project.Delete(project.ID); err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"message": "project deleted"})
}

// HandleProjectVariations lists the variations of one of the user's projects.
func HandleProjectVariations(c *fiber.Ctx) error {
	user := currentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	project, err := ownedProject(c, user)
	if err != nil {
		return notFound(c, "project not found")
	}

	variations, err := repository.GetGlobalRepositories().Project.GetVariations(project.ID)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"variations": variations})
}

// HandleProjectVariationCreate adds a variation to one of the user's projects.
func HandleProjectVariationCreate(c *fiber.Ctx) error {
	user := currentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	project, err := ownedProject(c, user)
	if err != nil {
		return notFound(c, "project not found")
	}

	var req variationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	variation := &models.ProjectVariation{
		ProjectID:   project.ID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	}
	if err := repository.GetGlobalRepositories().Project.CreateVariation(variation); err != nil {
		return internalError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(variation)
}

// ownedProject resolves the :uuid route param to a project owned by user.
func ownedProject(c *fiber.Ctx, user *models.User) (*models.Project, error) {
	project, err := repository.GetGlobalRepositories().Project.GetByUUID(c.Params("uuid"))
	if err != nil {
		return nil, err
	}
	if project.UserID != user.ID && !user.IsAdmin() {
		return nil, fiber.ErrNotFound
	}
	return project, nil
}

// subscriptionForEntitlement loads the user's subscription row for a limit
// check; a missing row means the free tier.
func subscriptionForEntitlement(c *fiber.Ctx, userID uint) (*models.Subscription, error) {
	return billingService().SubscriptionForUser(c.Context(), userID)
}
