package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/launchstack/launchstack/app/models"
	"github.com/launchstack/launchstack/app/repository"
)

type categoryRequest struct {
	Name  string `json:"name" validate:"required,min=2,max=100"`
	Color string `json:"color" validate:"max=20"`
}

// HandleCategoryList returns all categories.
func HandleCategoryList(c *fiber.Ctx) error {
	categories, err := repository.GetGlobalRepositories().Category.List()
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"categories": categories})
}

// HandleCategoryCreate creates a category (admin only, enforced by route).
func HandleCategoryCreate(c *fiber.Ctx) error {
	var req categoryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	category := &models.Category{
		Name:  req.Name,
		Color: req.Color,
	}
	if err := repository.GetGlobalRepositories().Category.Create(category); err != nil {
		return internalError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}

// HandleCategoryUpdate renames or recolors a category (admin only).
func HandleCategoryUpdate(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return badRequest(c, "invalid category id")
	}

	repos := repository.GetGlobalRepositories()
	category, err := repos.Category.GetByID(uint(id))
	if err != nil {
		return notFound(c, "category not found")
	}

	var req categoryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	category.Name = req.Name
	category.Color = req.Color
	if err := repos.Category.Update(category); err != nil {
		return internalError(c, err)
	}
	return c.JSON(category)
}

// HandleCategoryDelete removes a category (admin only).
func HandleCategoryDelete(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return badRequest(c, "invalid category id")
	}
	if err := repository.GetGlobalRepositories().Category.Delete(uint(id)); err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"message": "category deleted"})
}
