package controllers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/launchstack/launchstack/app/models"
	"github.com/launchstack/launchstack/internal/pkg/billing"
	"github.com/launchstack/launchstack/internal/pkg/database"
	"github.com/launchstack/launchstack/internal/pkg/env"
	"github.com/launchstack/launchstack/internal/pkg/mail"
	"github.com/launchstack/launchstack/internal/pkg/usercontext"
)

func billingService() *billing.Service {
	return billing.NewServiceFromDB(
		database.GetDB(),
		billing.NewStripeClientFromEnv(),
		mail.NewNotifier(),
		billing.PlanConfigFromEnv(),
	)
}

// HandleStripeWebhook receives provider webhook deliveries. The payload is
// authenticated by signature, recorded for idempotency, and then applied.
// Only deliveries that already processed successfully are acknowledged
// without reprocessing; a redelivery after a failed attempt runs again so
// the provider's retries converge.
func HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")
	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")

	ev, err := billing.VerifyWebhookEvent(rawBody, signature, secret)
	if err != nil {
		if errors.Is(err, billing.ErrSignatureInvalid) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	svc := billingService()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	created, stored, err := svc.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: ev.ID,
		EventType:       ev.Type,
		PayloadJSON:     string(rawBody),
		SignatureValid:  true,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created && stored.ProcessedSuccessfully() {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}

	processErr := svc.ProcessEvent(ctx, *ev)
	if markErr := svc.MarkWebhookProcessed(ctx, stored.ID, processErr); markErr != nil {
		log.Printf("[billing] mark webhook event %d processed: %v", stored.ID, markErr)
	}
	if processErr != nil {
		// Attribution failures and unreconcilable session modes are
		// permanent; redelivery cannot fix them, so answer 400 instead
		// of putting the provider into a retry loop.
		if errors.Is(processErr, billing.ErrMissingUserMetadata) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_user_metadata"})
		}
		if errors.Is(processErr, billing.ErrUnknownSessionMode) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown_session_mode"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event_processing_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

type checkoutRequest struct {
	Plan string `json:"plan" validate:"required,oneof=monthly yearly lifetime"`
}

// HandleBillingCheckout creates a provider checkout session for the current
// user and returns its redirect URL.
func HandleBillingCheckout(c *fiber.Ctx) error {
	user := currentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	plan, err := billing.ParsePlan(req.Plan)
	if err != nil || plan == billing.PlanFree {
		return badRequest(c, "plan must be monthly, yearly or lifetime")
	}

	plans := billing.PlanConfigFromEnv()
	priceID, err := plans.PriceFor(plan)
	if err != nil {
		return internalError(c, err)
	}

	provider := billing.NewStripeClientFromEnv()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	customerID, err := ensureStripeCustomer(ctx, provider, user)
	if err != nil {
		return internalError(c, err)
	}

	domain := env.GetEnv("PUBLIC_DOMAIN", "http://localhost:8080")
	url, err := provider.NewCheckoutSession(ctx, billing.CheckoutInput{
		CustomerID: customerID,
		PriceID:    priceID,
		OneTime:    plan == billing.PlanLifetime,
		SuccessURL: domain + "/billing/success",
		CancelURL:  domain + "/pricing",
		Metadata: map[string]string{
			"user_id":  fmt.Sprintf("%d", user.ID),
			"price_id": priceID,
		},
	})
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"url": url})
}

// HandleBillingPortal creates a provider billing portal session so the user
// can manage payment methods and cancellation.
func HandleBillingPortal(c *fiber.Ctx) error {
	user := currentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	if user.StripeCustomerID == "" {
		return badRequest(c, "no billing account")
	}

	provider := billing.NewStripeClientFromEnv()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	domain := env.GetEnv("PUBLIC_DOMAIN", "http://localhost:8080")
	returnURL := domain + "/account"

	svc := billingService()
	sub, err := svc.SubscriptionForUser(ctx, user.ID)
	if err != nil {
		return internalError(c, err)
	}

	var url string
	if c.Query("flow") == "update" && sub != nil && sub.IsProviderBacked() && sub.StripeSubscriptionID != "" {
		url, err = provider.NewPortalUpdateSession(ctx, user.StripeCustomerID, sub.StripeSubscriptionID, returnURL)
	} else {
		url, err = provider.NewPortalSession(ctx, user.StripeCustomerID, returnURL)
	}
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"url": url})
}

// HandleBillingSubscription returns the current user's subscription summary.
func HandleBillingSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	svc := billingService()
	sub, err := svc.SubscriptionForUser(c.Context(), userCtx.UserID)
	if err != nil {
		return internalError(c, err)
	}
	if sub == nil {
		return c.JSON(fiber.Map{"plan": string(billing.PlanFree), "status": "none"})
	}

	plans := billing.PlanConfigFromEnv()
	return c.JSON(fiber.Map{
		"plan":               string(plans.PlanForPrice(sub.PriceID)),
		"status":             sub.Status,
		"origin":             sub.Origin,
		"current_period_end": sub.CurrentPeriodEnd,
		"entitled":           sub.IsEntitling(),
	})
}

// ensureStripeCustomer returns the user's provider customer id, creating one
// on first use and persisting it on the user row.
func ensureStripeCustomer(ctx context.Context, provider billing.ProviderClient, user *models.User) (string, error) {
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}
	customerID, err := provider.CreateCustomer(ctx, user.Email, user.ID)
	if err != nil {
		return "", fmt.Errorf("create provider customer: %w", err)
	}
	if err := database.GetDB().Model(user).Update("stripe_customer_id", customerID).Error; err != nil {
		return "", fmt.Errorf("store provider customer id: %w", err)
	}
	user.StripeCustomerID = customerID
	return customerID, nil
}
