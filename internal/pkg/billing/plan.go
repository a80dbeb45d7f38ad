package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/launchstack/launchstack/internal/pkg/env"
)

// Plan is the administrative plan tag used by manual overrides and checkout.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanMonthly  Plan = "monthly"
	PlanYearly   Plan = "yearly"
	PlanLifetime Plan = "lifetime"
)

// Lifetime grants and manual "forever" overrides use a far-future period end
// instead of a nullable column; 100 years is the practical sentinel.
const lifetimeYears = 100

// checkoutPeriodFallback is applied when the provider omits the period end on
// a fresh subscription. Blocking paid access would be worse than a slightly
// wrong expiry, so the row gets a conservative 30 days.
const checkoutPeriodFallback = 30 * 24 * time.Hour

// ParsePlan validates a plan tag coming from request input.
func ParsePlan(raw string) (Plan, error) {
	switch p := Plan(strings.ToLower(strings.TrimSpace(raw))); p {
	case PlanFree, PlanMonthly, PlanYearly, PlanLifetime:
		return p, nil
	default:
		return "", fmt.Errorf("unknown plan %q", raw)
	}
}

// PlanConfig maps plan tags to the provider price identifiers configured
// out-of-band.
type PlanConfig struct {
	MonthlyPriceID  string
	YearlyPriceID   string
	LifetimePriceID string
}

// PlanConfigFromEnv reads the three price identifiers from the environment.
func PlanConfigFromEnv() PlanConfig {
	return PlanConfig{
		MonthlyPriceID:  strings.TrimSpace(env.GetEnv("STRIPE_PRICE_MONTHLY", "")),
		YearlyPriceID:   strings.TrimSpace(env.GetEnv("STRIPE_PRICE_YEARLY", "")),
		LifetimePriceID: strings.TrimSpace(env.GetEnv("STRIPE_PRICE_LIFETIME", "")),
	}
}

// PriceFor resolves a paid plan tag to its configured price identifier.
func (pc PlanConfig) PriceFor(plan Plan) (string, error) {
	var priceID string
	switch plan {
	case PlanMonthly:
		priceID = pc.MonthlyPriceID
	case PlanYearly:
		priceID = pc.YearlyPriceID
	case PlanLifetime:
		priceID = pc.LifetimePriceID
	default:
		return "", fmt.Errorf("plan %q has no price", plan)
	}
	if priceID == "" {
		return "", fmt.Errorf("price id for plan %q is not configured", plan)
	}
	return priceID, nil
}

// IsLifetimePrice reports whether a price identifier is the one-time
// lifetime purchase.
func (pc PlanConfig) IsLifetimePrice(priceID string) bool {
	return priceID != "" && priceID == pc.LifetimePriceID
}

// PeriodEndFor extends a base timestamp by one billing period of the plan.
func PeriodEndFor(plan Plan, from time.Time) time.Time {
	switch plan {
	case PlanMonthly:
		return from.AddDate(0, 1, 0)
	case PlanYearly:
		return from.AddDate(1, 0, 0)
	case PlanLifetime:
		return from.AddDate(lifetimeYears, 0, 0)
	default:
		return from
	}
}

// PlanForPrice resolves a price identifier back to its plan tag; unknown
// prices map to free.
func (pc PlanConfig) PlanForPrice(priceID string) Plan {
	switch {
	case priceID == "":
		return PlanFree
	case priceID == pc.MonthlyPriceID:
		return PlanMonthly
	case priceID == pc.YearlyPriceID:
		return PlanYearly
	case priceID == pc.LifetimePriceID:
		return PlanLifetime
	default:
		return PlanFree
	}
}

// PriceLabel returns the human-readable price used in notifications.
func PriceLabel(plan Plan) string {
	switch plan {
	case PlanMonthly:
		return "$19/month"
	case PlanYearly:
		return "$190/year"
	case PlanLifetime:
		return "$499 once"
	default:
		return "free"
	}
}

// PlanDisplayName returns the human-readable plan name used in notifications.
func PlanDisplayName(plan Plan) string {
	switch plan {
	case PlanMonthly:
		return "Pro Monthly"
	case PlanYearly:
		return "Pro Yearly"
	case PlanLifetime:
		return "Pro Lifetime"
	default:
		return "Free"
	}
}
