package entitlements

import (
	"github.com/launchstack/launchstack/app/models"
)

// MaxFreeProjects is the project cap for accounts without paid entitlement.
const MaxFreeProjects = 2

// IsEntitled answers whether a user currently has paid-tier access.
// Administrators are unconditionally entitled so staff can use the product
// unencumbered. Otherwise entitlement follows the stored subscription status
// alone; expiry is enforced by provider status transitions, not by comparing
// current_period_end on read.
func IsEntitled(user *models.User, sub *models.Subscription) bool {
	if user != nil && user.IsAdmin() {
		return true
	}
	return sub != nil && sub.IsEntitling()
}

// CanCreateProject applies the free-tier project cap. Entitled users and
// administrators create without limit.
func CanCreateProject(user *models.User, sub *models.Subscription, projectCount int64) bool {
	if IsEntitled(user, sub) {
		return true
	}
	return projectCount < MaxFreeProjects
}
