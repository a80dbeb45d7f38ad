package repository

import (
	"github.com/launchstack/launchstack/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// SubscriptionRepository defines the interface for the subscription
// projection table. UpsertByUserID is the single write path that keeps the
// at-most-one-row-per-user invariant; it replaces all mutable columns.
type SubscriptionRepository interface {
	UpsertByUserID(sub *models.Subscription) error
	GetByUserID(userID uint) (*models.Subscription, error)
	GetByStripeSubscriptionID(stripeSubID string) (*models.Subscription, error)
	UpdateByStripeSubscriptionID(stripeSubID string, updates map[string]interface{}) error
	DeleteByUserID(userID uint) (int64, error)
	CountByStatuses(statuses []string) (int64, error)
	Count() (int64, error)
}

// ProjectRepository defines the interface for project-related database operations
type ProjectRepository interface {
	Create(project *models.Project) error
	GetByID(id uint) (*models.Project, error)
	GetByUUID(uuid string) (*models.Project, error)
	GetByUserID(userID uint, offset, limit int) ([]models.Project, error)
	Update(project *models.Project) error
	Delete(id uint) error
	List(offset, limit int) ([]models.Project, error)
	Count() (int64, error)
	CountByUserID(userID uint) (int64, error)
	DeleteByUserID(userID uint) error
	GetVariations(projectID uint) ([]models.ProjectVariation, error)
	CreateVariation(variation *models.ProjectVariation) error
	DeleteVariation(id uint) error
}

// CategoryRepository defines the interface for category-related database operations
type CategoryRepository interface {
	Create(category *models.Category) error
	GetByID(id uint) (*models.Category, error)
	Update(category *models.Category) error
	Delete(id uint) error
	List() ([]models.Category, error)
}

// WebhookEventRepository stores provider webhook deliveries for idempotent
// processing.
type WebhookEventRepository interface {
	CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkProcessed(id uint, processingError string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Subscription SubscriptionRepository
	Project      ProjectRepository
	Category     CategoryRepository
	WebhookEvent WebhookEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Project:      NewProjectRepository(db),
		Category:     NewCategoryRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
	}
}
