package models

import "time"

// Provider subscription lifecycle states, mirrored verbatim from Stripe.
// The status string is treated as opaque; local code only distinguishes
// entitling from non-entitling states.
const (
	SubscriptionStatusActive     = "active"
	SubscriptionStatusTrialing   = "trialing"
	SubscriptionStatusPastDue    = "past_due"
	SubscriptionStatusCanceled   = "canceled"
	SubscriptionStatusIncomplete = "incomplete"
	SubscriptionStatusUnpaid     = "unpaid"
)

// Origin tags the provenance of a subscription row. It is set explicitly at
// write time, never inferred from identifier prefixes.
const (
	SubscriptionOriginProvider = "subscription"
	SubscriptionOriginLifetime = "lifetime"
	SubscriptionOriginManual   = "manual"
)

// Subscription is the current-entitlement projection for one user. The unique
// index on user_id keeps it at most one row per user; every write replaces the
// mutable columns wholesale (last write wins).
type Subscription struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	UserID               uint       `gorm:"not null;uniqueIndex:ux_subscriptions_user" json:"user_id"`
	StripeSubscriptionID string     `gorm:"type:varchar(191);not null;index:idx_subscriptions_stripe_sub" json:"stripe_subscription_id"`
	StripeCustomerID     string     `gorm:"type:varchar(191);default:''" json:"stripe_customer_id"`
	PriceID              string     `gorm:"type:varchar(191);not null" json:"price_id"`
	Status               string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	Origin               string     `gorm:"type:varchar(20);not null;default:'subscription'" json:"origin"`
	CurrentPeriodEnd     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	MetadataJSON         string     `gorm:"type:text" json:"metadata_json,omitempty"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsEntitling reports whether the status grants paid-tier access.
func (s *Subscription) IsEntitling() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusTrialing
}

// IsProviderBacked reports whether the row still references a real recurring
// subscription at the payment provider.
func (s *Subscription) IsProviderBacked() bool {
	return s.Origin == SubscriptionOriginProvider
}

// HasUnexpiredPeriod reports whether the current period end lies in the future.
func (s *Subscription) HasUnexpiredPeriod(now time.Time) bool {
	return s.CurrentPeriodEnd != nil && s.CurrentPeriodEnd.After(now)
}
