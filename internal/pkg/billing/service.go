package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/launchstack/launchstack/app/models"
	"github.com/launchstack/launchstack/app/repository"
	"gorm.io/gorm"
)

// Service reconciles the local subscription projection against payment
// provider events and administrative decisions. Every handler re-fetches the
// authoritative subscription from the provider before writing, so replayed or
// reordered deliveries converge to the same row.
type Service struct {
	subs     repository.SubscriptionRepository
	events   repository.WebhookEventRepository
	provider ProviderClient
	mailer   Mailer
	plans    PlanConfig

	now func() time.Time
}

// NewService creates a reconciliation service from injected dependencies.
func NewService(subs repository.SubscriptionRepository, events repository.WebhookEventRepository, provider ProviderClient, mailer Mailer, plans PlanConfig) *Service {
	return &Service{
		subs:     subs,
		events:   events,
		provider: provider,
		mailer:   mailer,
		plans:    plans,
		now:      time.Now,
	}
}

// NewServiceFromDB creates a reconciliation service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, provider ProviderClient, mailer Mailer, plans PlanConfig) *Service {
	return NewService(
		repository.NewSubscriptionRepository(db),
		repository.NewWebhookEventRepository(db),
		provider,
		mailer,
		plans,
	)
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.WebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.events.CreateIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.events.MarkProcessed(webhookEventID, errMsg)
}

// ProcessEvent applies exactly one reconciliation action for a verified
// provider event. Unrecognized event types are acknowledged without a write.
func (s *Service) ProcessEvent(ctx context.Context, ev Event) error {
	switch ev.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, ev.Payload)
	case "invoice.payment_succeeded":
		return s.handleInvoicePaid(ctx, ev.Payload)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, ev.Payload)
	case "customer.subscription.updated":
		return s.handleSubscriptionUpdated(ctx, ev.Payload)
	default:
		return nil
	}
}

// checkoutSessionPayload is the slice of the provider's checkout session
// object this service needs. Expandable references arrive as plain ids in
// webhook payloads.
type checkoutSessionPayload struct {
	ID              string            `json:"id"`
	Mode            string            `json:"mode"`
	Subscription    string            `json:"subscription"`
	Customer        string            `json:"customer"`
	Metadata        map[string]string `json:"metadata"`
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, payload []byte) error {
	var session checkoutSessionPayload
	if err := json.Unmarshal(payload, &session); err != nil {
		return fmt.Errorf("parse checkout session payload: %w", err)
	}

	userID, err := userIDFromMetadata(session.Metadata)
	if err != nil {
		log.Printf("[billing] checkout session %s cannot be attributed: %v", session.ID, err)
		return err
	}

	switch session.Mode {
	case "subscription":
		return s.applyRecurringCheckout(ctx, userID, &session)
	case "payment":
		return s.applyLifetimeCheckout(ctx, userID, &session)
	default:
		return fmt.Errorf("checkout session %s mode %q: %w", session.ID, session.Mode, ErrUnknownSessionMode)
	}
}

func (s *Service) applyRecurringCheckout(ctx context.Context, userID uint, session *checkoutSessionPayload) error {
	if session.Subscription == "" {
		return fmt.Errorf("checkout session %s in subscription mode has no subscription id", session.ID)
	}

	// Never trust the checkout payload's partial view; the provider record
	// is authoritative.
	sub, err := s.provider.GetSubscription(ctx, session.Subscription)
	if err != nil {
		return fmt.Errorf("fetch subscription %s from provider: %w", session.Subscription, err)
	}

	periodEnd := sub.CurrentPeriodEnd
	if periodEnd == nil {
		fallback := s.now().Add(checkoutPeriodFallback)
		periodEnd = &fallback
		log.Printf("[billing] subscription %s missing current_period_end, defaulting to 30 days", sub.ID)
	}

	priceID := sub.PriceID
	if priceID == "" {
		priceID = session.Metadata["price_id"]
	}

	row := &models.Subscription{
		UserID:               userID,
		StripeSubscriptionID: sub.ID,
		StripeCustomerID:     firstNonEmpty(sub.CustomerID, session.Customer),
		PriceID:              priceID,
		Status:               sub.Status,
		Origin:               models.SubscriptionOriginProvider,
		CurrentPeriodEnd:     periodEnd,
	}
	if err := s.subs.UpsertByUserID(row); err != nil {
		return fmt.Errorf("store subscription for user %d: %w", userID, err)
	}

	s.sendConfirmation(session.CustomerDetails.Email, priceID)
	return nil
}

func (s *Service) applyLifetimeCheckout(ctx context.Context, userID uint, session *checkoutSessionPayload) error {
	// A lifetime purchase supersedes any running recurring subscription;
	// cancel it at the provider so the user is not billed twice.
	existing, err := s.subs.GetByUserID(userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("look up subscription for user %d: %w", userID, err)
	}
	if existing != nil && existing.IsEntitling() && existing.IsProviderBacked() && existing.StripeSubscriptionID != "" {
		log.Printf("[billing] cancelling subscription %s for user %d due to lifetime upgrade", existing.StripeSubscriptionID, userID)
		if err := s.provider.CancelSubscription(ctx, existing.StripeSubscriptionID); err != nil {
			// The local row is replaced either way; a failed cancel is
			// surfaced in logs for manual follow-up, not returned, so the
			// provider does not redeliver a checkout that already paid.
			log.Printf("[billing] failed to cancel subscription %s during lifetime upgrade: %v", existing.StripeSubscriptionID, err)
		}
	}

	periodEnd := s.now().AddDate(lifetimeYears, 0, 0)
	priceID := session.Metadata["price_id"]
	if priceID == "" {
		priceID = s.plans.LifetimePriceID
	}

	row := &models.Subscription{
		UserID:               userID,
		StripeSubscriptionID: "lifetime_" + session.ID,
		StripeCustomerID:     session.Customer,
		PriceID:              priceID,
		Status:               models.SubscriptionStatusActive,
		Origin:               models.SubscriptionOriginLifetime,
		CurrentPeriodEnd:     &periodEnd,
	}
	if err := s.subs.UpsertByUserID(row); err != nil {
		return fmt.Errorf("store lifetime grant for user %d: %w", userID, err)
	}

	s.sendConfirmation(session.CustomerDetails.Email, priceID)
	return nil
}

// invoicePayload is the slice of the provider's invoice object this service
// needs for renewals.
type invoicePayload struct {
	ID               string `json:"id"`
	Number           string `json:"number"`
	Subscription     string `json:"subscription"`
	CustomerEmail    string `json:"customer_email"`
	HostedInvoiceURL string `json:"hosted_invoice_url"`
	AmountPaid       int64  `json:"amount_paid"`
}

func (s *Service) handleInvoicePaid(ctx context.Context, payload []byte) error {
	var invoice invoicePayload
	if err := json.Unmarshal(payload, &invoice); err != nil {
		return fmt.Errorf("parse invoice payload: %w", err)
	}

	// One-time invoices carry no subscription and are outside this model.
	if invoice.Subscription == "" {
		return nil
	}

	// The invoice's embedded subscription snapshot may be stale.
	sub, err := s.provider.GetSubscription(ctx, invoice.Subscription)
	if err != nil {
		return fmt.Errorf("fetch subscription %s from provider: %w", invoice.Subscription, err)
	}

	if err := s.updateRowFromProvider(sub); err != nil {
		return err
	}

	if invoice.CustomerEmail != "" && s.mailer != nil {
		amount := fmt.Sprintf("$%.2f", float64(invoice.AmountPaid)/100)
		if err := s.mailer.SendInvoicePaid(invoice.CustomerEmail, invoice.Number, amount, invoice.HostedInvoiceURL); err != nil {
			log.Printf("[billing] invoice email to %s failed: %v", invoice.CustomerEmail, err)
		}
	}
	return nil
}

// subscriptionPayload is the slice of the provider's subscription object
// carried by lifecycle events.
type subscriptionPayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, payload []byte) error {
	_ = ctx
	var sub subscriptionPayload
	if err := json.Unmarshal(payload, &sub); err != nil {
		return fmt.Errorf("parse subscription payload: %w", err)
	}
	if sub.ID == "" {
		return errors.New("subscription deletion event has no subscription id")
	}

	status := sub.Status
	if status == "" {
		status = models.SubscriptionStatusCanceled
	}

	// The row is kept: a canceled record still answers "when did access end".
	if err := s.subs.UpdateByStripeSubscriptionID(sub.ID, map[string]interface{}{
		"status": status,
	}); err != nil {
		return fmt.Errorf("mark subscription %s canceled: %w", sub.ID, err)
	}
	return nil
}

func (s *Service) handleSubscriptionUpdated(ctx context.Context, payload []byte) error {
	var sub subscriptionPayload
	if err := json.Unmarshal(payload, &sub); err != nil {
		return fmt.Errorf("parse subscription payload: %w", err)
	}
	if sub.ID == "" {
		return errors.New("subscription update event has no subscription id")
	}

	fresh, err := s.provider.GetSubscription(ctx, sub.ID)
	if err != nil {
		return fmt.Errorf("fetch subscription %s from provider: %w", sub.ID, err)
	}
	return s.updateRowFromProvider(fresh)
}

// updateRowFromProvider overwrites the mutable columns of the row matching
// the provider subscription id with freshly fetched state.
func (s *Service) updateRowFromProvider(sub *ProviderSubscription) error {
	updates := map[string]interface{}{
		"status": sub.Status,
	}
	if sub.PriceID != "" {
		updates["price_id"] = sub.PriceID
	}
	if sub.CurrentPeriodEnd != nil {
		updates["current_period_end"] = sub.CurrentPeriodEnd
	}
	if err := s.subs.UpdateByStripeSubscriptionID(sub.ID, updates); err != nil {
		return fmt.Errorf("update subscription %s: %w", sub.ID, err)
	}
	return nil
}

func (s *Service) sendConfirmation(email, priceID string) {
	if email == "" || s.mailer == nil {
		return
	}
	plan := s.plans.PlanForPrice(priceID)
	if err := s.mailer.SendSubscriptionConfirmation(email, PlanDisplayName(plan), PriceLabel(plan)); err != nil {
		log.Printf("[billing] confirmation email to %s failed: %v", email, err)
	}
}

func userIDFromMetadata(metadata map[string]string) (uint, error) {
	raw := strings.TrimSpace(metadata["user_id"])
	if raw == "" {
		return 0, ErrMissingUserMetadata
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, ErrMissingUserMetadata
	}
	return uint(id), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
