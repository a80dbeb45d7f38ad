package repository

import (
	"github.com/launchstack/launchstack/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// UpsertByUserID inserts or replaces the user's subscription row. The unique
// index on user_id turns concurrent inserts into updates, so the table never
// holds two rows for one user.
func (r *subscriptionRepository) UpsertByUserID(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"stripe_subscription_id",
			"stripe_customer_id",
			"price_id",
			"status",
			"origin",
			"current_period_end",
			"metadata_json",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("user_id = ?", sub.UserID).First(sub).Error
}

// GetByUserID retrieves the subscription row for a user
func (r *subscriptionRepository) GetByUserID(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("user_id = ?", userID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetByStripeSubscriptionID retrieves a subscription row by its provider identifier
func (r *subscriptionRepository) GetByStripeSubscriptionID(stripeSubID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("stripe_subscription_id = ?", stripeSubID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpdateByStripeSubscriptionID applies the given column updates to the row
// matching the provider identifier. A missing row is not an error; provider
// events may reference subscriptions this instance never recorded.
func (r *subscriptionRepository) UpdateByStripeSubscriptionID(stripeSubID string, updates map[string]interface{}) error {
	return r.db.Model(&models.Subscription{}).
		Where("stripe_subscription_id = ?", stripeSubID).
		Updates(updates).Error
}

// DeleteByUserID removes the user's subscription row and reports how many
// rows were affected (zero means there was nothing to revoke).
func (r *subscriptionRepository) DeleteByUserID(userID uint) (int64, error) {
	tx := r.db.Where("user_id = ?", userID).Delete(&models.Subscription{})
	return tx.RowsAffected, tx.Error
}

// CountByStatuses counts subscription rows whose status is in the given set
func (r *subscriptionRepository) CountByStatuses(statuses []string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Subscription{}).Where("status IN ?", statuses).Count(&count).Error
	return count, err
}

// Count returns the all-time number of subscription rows
func (r *subscriptionRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Subscription{}).Count(&count).Error
	return count, err
}
