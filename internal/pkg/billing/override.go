package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/launchstack/launchstack/app/models"
	"gorm.io/gorm"
)

// ApplyOverride lets an administrator set a user's plan directly, bypassing
// the payment provider. It writes through the same upsert as the webhook
// path; whichever write lands last wins by wall-clock time.
func (s *Service) ApplyOverride(ctx context.Context, actor *models.User, targetUserID uint, plan Plan, customEnd *time.Time) (*models.Subscription, error) {
	_ = ctx
	if actor == nil || !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if targetUserID == 0 {
		return nil, errors.New("target user id is required")
	}

	if plan == PlanFree {
		affected, err := s.subs.DeleteByUserID(targetUserID)
		if err != nil {
			return nil, fmt.Errorf("delete subscription for user %d: %w", targetUserID, err)
		}
		if affected == 0 {
			return nil, ErrNothingToRevoke
		}
		return nil, nil
	}

	priceID, err := s.plans.PriceFor(plan)
	if err != nil {
		return nil, err
	}

	existing, err := s.subs.GetByUserID(targetUserID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("look up subscription for user %d: %w", targetUserID, err)
	}

	now := s.now()
	var periodEnd time.Time
	if customEnd != nil {
		// Explicit dates are taken verbatim.
		periodEnd = *customEnd
	} else {
		// Additive renewal: unused paid time is preserved by extending from
		// the current period end when it is still in the future.
		base := now
		if existing != nil && existing.HasUnexpiredPeriod(now) {
			base = *existing.CurrentPeriodEnd
		}
		periodEnd = PeriodEndFor(plan, base)
	}

	row := &models.Subscription{
		UserID:           targetUserID,
		PriceID:          priceID,
		Status:           models.SubscriptionStatusActive,
		CurrentPeriodEnd: &periodEnd,
		MetadataJSON:     overrideMetadata(actor.ID),
	}
	if existing != nil {
		// Keep the provider reference so a real subscription is not
		// orphaned, and keep its provenance with it.
		row.StripeSubscriptionID = existing.StripeSubscriptionID
		row.StripeCustomerID = existing.StripeCustomerID
		row.Origin = existing.Origin
	} else {
		row.StripeSubscriptionID = fmt.Sprintf("manual_%d_%d", actor.ID, now.Unix())
		row.Origin = models.SubscriptionOriginManual
	}

	if err := s.subs.UpsertByUserID(row); err != nil {
		return nil, fmt.Errorf("store override for user %d: %w", targetUserID, err)
	}
	return row, nil
}

// SubscriptionForUser returns the user's current subscription row, or nil
// when the user is on the free tier.
func (s *Service) SubscriptionForUser(ctx context.Context, userID uint) (*models.Subscription, error) {
	_ = ctx
	sub, err := s.subs.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

func overrideMetadata(actorID uint) string {
	data, _ := json.Marshal(map[string]interface{}{
		"updated_by": actorID,
		"type":       "admin_override",
	})
	return string(data)
}
