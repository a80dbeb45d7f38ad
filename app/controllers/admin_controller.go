package controllers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/launchstack/launchstack/app/models"
	"github.com/launchstack/launchstack/app/repository"
	"github.com/launchstack/launchstack/internal/pkg/billing"
)

// AdminController handles admin-related HTTP requests using repository pattern
type AdminController struct {
	repos *repository.Repositories
}

// NewAdminController creates a new admin controller with repository dependencies
func NewAdminController(repos *repository.Repositories) *AdminController {
	return &AdminController{
		repos: repos,
	}
}

// globalAdminController is initialized once during router setup
var globalAdminController *AdminController

// InitializeAdminController sets up the admin controller with global repositories
func InitializeAdminController() {
	globalAdminController = NewAdminController(repository.GetGlobalRepositories())
}

// GetAdminController returns the initialized admin controller
func GetAdminController() *AdminController {
	return globalAdminController
}

// HandleStats returns aggregate counts for the admin dashboard.
func (ac *AdminController) HandleStats(c *fiber.Ctx) error {
	totalUsers, err := ac.repos.User.Count()
	if err != nil {
		return internalError(c, err)
	}
	totalProjects, err := ac.repos.Project.Count()
	if err != nil {
		return internalError(c, err)
	}
	totalSubscriptions, err := ac.repos.Subscription.Count()
	if err != nil {
		return internalError(c, err)
	}
	activeSubscriptions, err := ac.repos.Subscription.CountByStatuses([]string{
		models.SubscriptionStatusActive,
		models.SubscriptionStatusTrialing,
	})
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"total_users":          totalUsers,
		"total_projects":       totalProjects,
		"total_subscriptions":  totalSubscriptions,
		"active_subscriptions": activeSubscriptions,
	})
}

// HandleUsers returns a paginated user listing.
func (ac *AdminController) HandleUsers(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage := 20
	offset := (page - 1) * perPage

	totalUsers, err := ac.repos.User.Count()
	if err != nil {
		return internalError(c, err)
	}
	users, err := ac.repos.User.List(offset, perPage)
	if err != nil {
		return internalError(c, err)
	}

	totalPages := int(totalUsers) / perPage
	if int(totalUsers)%perPage > 0 {
		totalPages++
	}

	return c.JSON(fiber.Map{
		"users":       users,
		"page":        page,
		"total_pages": totalPages,
		"total":       totalUsers,
	})
}

type adminUserUpdateRequest struct {
	Name   string `json:"name" validate:"omitempty,min=3,max=150"`
	Role   string `json:"role" validate:"omitempty,oneof=user admin super_admin"`
	Status string `json:"status" validate:"omitempty,oneof=active inactive disabled"`
}

// HandleUserUpdate changes a user's profile, role or status. Role changes
// follow the admin hierarchy: only super admins may touch other admins or
// grant elevated roles.
func (ac *AdminController) HandleUserUpdate(c *fiber.Ctx) error {
	actor := currentUser(c)
	if actor == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	target, err := ac.targetUser(c)
	if err != nil {
		return notFound(c, "user not found")
	}
	if !actor.CanManage(target) {
		return forbidden(c, "cannot manage this user")
	}

	var req adminUserUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if req.Role != "" && req.Role != target.Role {
		if !actor.IsSuperAdmin() {
			return forbidden(c, "only super admins may change roles")
		}
		target.Role = req.Role
	}
	if req.Name != "" {
		target.Name = req.Name
	}
	if req.Status != "" {
		target.Status = req.Status
	}

	if err := ac.repos.User.Update(target); err != nil {
		return internalError(c, err)
	}
	return c.JSON(target)
}

// HandleUserDelete removes a user account.
func (ac *AdminController) HandleUserDelete(c *fiber.Ctx) error {
	actor := currentUser(c)
	if actor == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	target, err := ac.targetUser(c)
	if err != nil {
		return notFound(c, "user not found")
	}
	if !actor.CanManage(target) || target.ID == actor.ID {
		return forbidden(c, "cannot delete this user")
	}

	if err := ac.repos.User.Delete(target.ID); err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"message": "user deleted"})
}

// HandleUserSubscription returns the stored subscription row for a user.
func (ac *AdminController) HandleUserSubscription(c *fiber.Ctx) error {
	target, err := ac.targetUser(c)
	if err != nil {
		return notFound(c, "user not found")
	}

	svc := billingService()
	sub, err := svc.SubscriptionForUser(c.Context(), target.ID)
	if err != nil {
		return internalError(c, err)
	}

	plans := billing.PlanConfigFromEnv()
	resp := fiber.Map{
		"user_id":  target.ID,
		"entitled": target.IsAdmin() || (sub != nil && sub.IsEntitling()),
	}
	if sub == nil {
		resp["plan"] = string(billing.PlanFree)
		resp["status"] = "none"
	} else {
		resp["plan"] = string(plans.PlanForPrice(sub.PriceID))
		resp["status"] = sub.Status
		resp["origin"] = sub.Origin
		resp["current_period_end"] = sub.CurrentPeriodEnd
		resp["stripe_subscription_id"] = sub.StripeSubscriptionID
	}
	return c.JSON(resp)
}

type subscriptionOverrideRequest struct {
	Plan      string     `json:"plan" validate:"required,oneof=free monthly yearly lifetime"`
	CustomEnd *time.Time `json:"custom_end"`
}

// HandleUserSubscriptionUpdate applies a manual subscription override for a
// user: a paid plan extends or creates the row, free revokes it.
func (ac *AdminController) HandleUserSubscriptionUpdate(c *fiber.Ctx) error {
	actor := currentUser(c)
	if actor == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	target, err := ac.targetUser(c)
	if err != nil {
		return notFound(c, "user not found")
	}

	var req subscriptionOverrideRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	plan, err := billing.ParsePlan(req.Plan)
	if err != nil {
		return badRequest(c, err.Error())
	}

	svc := billingService()
	sub, err := svc.ApplyOverride(c.Context(), actor, target.ID, plan, req.CustomEnd)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrUnauthorized):
			return forbidden(c, "admin access required")
		case errors.Is(err, billing.ErrNothingToRevoke):
			return notFound(c, "no subscription to revoke")
		default:
			return internalError(c, err)
		}
	}

	if sub == nil {
		return c.JSON(fiber.Map{"message": "subscription revoked", "user_id": target.ID})
	}
	return c.JSON(sub)
}

func (ac *AdminController) targetUser(c *fiber.Ctx) (*models.User, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return nil, errors.New("invalid user id")
	}
	return ac.repos.User.GetByID(uint(id))
}
