package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/launchstack/launchstack/app/models"
)

func adminActor() *models.User {
	return &models.User{ID: 9, Role: models.ROLE_ADMIN}
}

func TestApplyOverrideRequiresAdmin(t *testing.T) {
	env := newTestEnv()
	cases := []struct {
		name  string
		actor *models.User
	}{
		{"nil actor", nil},
		{"regular user", &models.User{ID: 3, Role: models.ROLE_USER}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.ApplyOverride(context.Background(), tc.actor, 42, PlanMonthly, nil)
			if !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("err = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestApplyOverrideSuperAdminAllowed(t *testing.T) {
	env := newTestEnv()
	actor := &models.User{ID: 1, Role: models.ROLE_SUPER_ADMIN}
	sub, err := env.svc.ApplyOverride(context.Background(), actor, 42, PlanMonthly, nil)
	if err != nil {
		t.Fatalf("ApplyOverride: %v", err)
	}
	if sub == nil || sub.UserID != 42 {
		t.Fatalf("unexpected row: %+v", sub)
	}
}

func TestApplyOverrideCreatesManualRow(t *testing.T) {
	env := newTestEnv()
	sub, err := env.svc.ApplyOverride(context.Background(), adminActor(), 42, PlanMonthly, nil)
	if err != nil {
		t.Fatalf("ApplyOverride: %v", err)
	}

	if sub.Origin != models.SubscriptionOriginManual {
		t.Errorf("origin = %q, want manual", sub.Origin)
	}
	wantID := fmt.Sprintf("manual_%d_%d", 9, env.now.Unix())
	if sub.StripeSubscriptionID != wantID {
		t.Errorf("subscription id = %q, want %q", sub.StripeSubscriptionID, wantID)
	}
	if sub.Status != models.SubscriptionStatusActive {
		t.Errorf("status = %q, want active", sub.Status)
	}
	wantEnd := env.now.AddDate(0, 1, 0)
	if sub.CurrentPeriodEnd == nil || !sub.CurrentPeriodEnd.Equal(wantEnd) {
		t.Errorf("period end = %v, want %v", sub.CurrentPeriodEnd, wantEnd)
	}
	if sub.PriceID != "price_monthly" {
		t.Errorf("price id = %q, want price_monthly", sub.PriceID)
	}
}

func TestApplyOverrideExtendsUnexpiredPeriod(t *testing.T) {
	env := newTestEnv()
	existingEnd := env.now.AddDate(0, 0, 10)
	env.subs.rows[42] = &models.Subscription{
		ID:                   1,
		UserID:               42,
		StripeSubscriptionID: "sub_live",
		StripeCustomerID:     "cus_live",
		PriceID:              "price_monthly",
		Status:               models.SubscriptionStatusActive,
		Origin:               models.SubscriptionOriginProvider,
		CurrentPeriodEnd:     &existingEnd,
	}

	sub, err := env.svc.ApplyOverride(context.Background(), adminActor(), 42, PlanMonthly, nil)
	if err != nil {
		t.Fatalf("ApplyOverride: %v", err)
	}

	// One month on top of the remaining 10 days, not on top of now.
	wantEnd := existingEnd.AddDate(0, 1, 0)
	if sub.CurrentPeriodEnd == nil || !sub.CurrentPeriodEnd.Equal(wantEnd) {
		t.Errorf("period end = %v, want additive %v", sub.CurrentPeriodEnd, wantEnd)
	}
	// Provider linkage and provenance survive the override.
	if sub.StripeSubscriptionID != "sub_live" || sub.StripeCustomerID != "cus_live" {
		t.Errorf("provider reference lost: %+v", sub)
	}
	if sub.Origin != models.SubscriptionOriginProvider {
		t.Errorf("origin = %q, want preserved provider origin", sub.Origin)
	}
}

func TestApplyOverrideExpiredPeriodExtendsFromNow(t *testing.T) {
	env := newTestEnv()
	expired := env.now.AddDate(0, 0, -5)
	env.subs.rows[42] = &models.Subscription{
		ID:                   1,
		UserID:               42,
		StripeSubscriptionID: "sub_old",
		Status:               models.SubscriptionStatusCanceled,
		Origin:               models.SubscriptionOriginProvider,
		CurrentPeriodEnd:     &expired,
	}

	sub, err := env.svc.ApplyOverride(context.Background(), adminActor(), 42, PlanYearly, nil)
	if err != nil {
		t.Fatalf("ApplyOverride: %v", err)
	}
	wantEnd := env.now.AddDate(1, 0, 0)
	if sub.CurrentPeriodEnd == nil || !sub.CurrentPeriodEnd.Equal(wantEnd) {
		t.Errorf("period end = %v, want %v from now", sub.CurrentPeriodEnd, wantEnd)
	}
	if sub.Status != models.SubscriptionStatusActive {
		t.Errorf("status = %q, want active after override", sub.Status)
	}
}

func TestApplyOverrideCustomEndTakenVerbatim(t *testing.T) {
	env := newTestEnv()
	custom := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	sub, err := env.svc.ApplyOverride(context.Background(), adminActor(), 42, PlanLifetime, &custom)
	if err != nil {
		t.Fatalf("ApplyOverride: %v", err)
	}
	if sub.CurrentPeriodEnd == nil || !sub.CurrentPeriodEnd.Equal(custom) {
		t.Errorf("period end = %v, want custom %v", sub.CurrentPeriodEnd, custom)
	}
}

func TestApplyOverrideFreeDeletesRow(t *testing.T) {
	env := newTestEnv()
	end := env.now.AddDate(0, 1, 0)
	env.subs.rows[42] = &models.Subscription{
		ID:               1,
		UserID:           42,
		Status:           models.SubscriptionStatusActive,
		CurrentPeriodEnd: &end,
	}

	sub, err := env.svc.ApplyOverride(context.Background(), adminActor(), 42, PlanFree, nil)
	if err != nil {
		t.Fatalf("ApplyOverride: %v", err)
	}
	if sub != nil {
		t.Errorf("expected nil row after revocation, got %+v", sub)
	}
	if _, err := env.subs.GetByUserID(42); err == nil {
		t.Error("row must be deleted")
	}
}

func TestApplyOverrideFreeWithoutRow(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.ApplyOverride(context.Background(), adminActor(), 42, PlanFree, nil)
	if !errors.Is(err, ErrNothingToRevoke) {
		t.Fatalf("err = %v, want ErrNothingToRevoke", err)
	}
}

func TestSubscriptionForUserMissingRowIsNil(t *testing.T) {
	env := newTestEnv()
	sub, err := env.svc.SubscriptionForUser(context.Background(), 42)
	if err != nil {
		t.Fatalf("SubscriptionForUser: %v", err)
	}
	if sub != nil {
		t.Errorf("sub = %+v, want nil", sub)
	}
}
