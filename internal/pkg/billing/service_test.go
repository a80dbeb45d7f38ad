package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/launchstack/launchstack/app/models"
)

func checkoutPayload(mode, sessionID, subscriptionID, userID string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"mode": %q,
		"subscription": %q,
		"customer": "cus_123",
		"metadata": {"user_id": %q},
		"customer_details": {"email": "buyer@example.com"}
	}`, sessionID, mode, subscriptionID, userID))
}

func TestProcessEventRecurringCheckout(t *testing.T) {
	env := newTestEnv()
	periodEnd := env.now.AddDate(0, 1, 0)
	env.provider.subs["sub_123"] = &ProviderSubscription{
		ID:               "sub_123",
		CustomerID:       "cus_123",
		PriceID:          "price_monthly",
		Status:           models.SubscriptionStatusActive,
		CurrentPeriodEnd: &periodEnd,
	}

	ev := Event{ID: "evt_1", Type: "checkout.session.completed", Payload: checkoutPayload("subscription", "cs_1", "sub_123", "42")}
	if err := env.svc.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	row, err := env.subs.GetByUserID(42)
	if err != nil {
		t.Fatalf("expected subscription row: %v", err)
	}
	if row.StripeSubscriptionID != "sub_123" {
		t.Errorf("stripe subscription id = %q, want sub_123", row.StripeSubscriptionID)
	}
	if row.Origin != models.SubscriptionOriginProvider {
		t.Errorf("origin = %q, want %q", row.Origin, models.SubscriptionOriginProvider)
	}
	if row.PriceID != "price_monthly" {
		t.Errorf("price id = %q, want price_monthly", row.PriceID)
	}
	if row.CurrentPeriodEnd == nil || !row.CurrentPeriodEnd.Equal(periodEnd) {
		t.Errorf("current period end = %v, want %v", row.CurrentPeriodEnd, periodEnd)
	}
	if len(env.mailer.confirmations) != 1 || env.mailer.confirmations[0] != "buyer@example.com" {
		t.Errorf("confirmations = %v, want one to buyer@example.com", env.mailer.confirmations)
	}
}

func TestProcessEventCheckoutPeriodEndFallback(t *testing.T) {
	env := newTestEnv()
	env.provider.subs["sub_nope"] = &ProviderSubscription{
		ID:      "sub_nope",
		PriceID: "price_monthly",
		Status:  models.SubscriptionStatusActive,
	}

	ev := Event{Type: "checkout.session.completed", Payload: checkoutPayload("subscription", "cs_2", "sub_nope", "7")}
	if err := env.svc.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	row, err := env.subs.GetByUserID(7)
	if err != nil {
		t.Fatalf("expected subscription row: %v", err)
	}
	want := env.now.Add(30 * 24 * time.Hour)
	if row.CurrentPeriodEnd == nil || !row.CurrentPeriodEnd.Equal(want) {
		t.Errorf("current period end = %v, want 30-day fallback %v", row.CurrentPeriodEnd, want)
	}
}

func TestProcessEventCheckoutReplayConverges(t *testing.T) {
	env := newTestEnv()
	periodEnd := env.now.AddDate(0, 1, 0)
	env.provider.subs["sub_123"] = &ProviderSubscription{
		ID:               "sub_123",
		CustomerID:       "cus_123",
		PriceID:          "price_monthly",
		Status:           models.SubscriptionStatusActive,
		CurrentPeriodEnd: &periodEnd,
	}

	ev := Event{Type: "checkout.session.completed", Payload: checkoutPayload("subscription", "cs_1", "sub_123", "42")}
	for i := 0; i < 3; i++ {
		if err := env.svc.ProcessEvent(context.Background(), ev); err != nil {
			t.Fatalf("replay %d: %v", i, err)
		}
	}

	total, _ := env.subs.Count()
	if total != 1 {
		t.Fatalf("row count after replay = %d, want 1", total)
	}
	row, _ := env.subs.GetByUserID(42)
	if row.StripeSubscriptionID != "sub_123" || !row.CurrentPeriodEnd.Equal(periodEnd) {
		t.Errorf("row diverged after replay: %+v", row)
	}
}

func TestProcessEventLifetimeCheckoutSupersedesRecurring(t *testing.T) {
	env := newTestEnv()
	oldEnd := env.now.AddDate(0, 1, 0)
	env.subs.rows[42] = &models.Subscription{
		ID:                   1,
		UserID:               42,
		StripeSubscriptionID: "sub_old",
		PriceID:              "price_monthly",
		Status:               models.SubscriptionStatusActive,
		Origin:               models.SubscriptionOriginProvider,
		CurrentPeriodEnd:     &oldEnd,
	}

	ev := Event{Type: "checkout.session.completed", Payload: checkoutPayload("payment", "cs_life", "", "42")}
	if err := env.svc.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	if len(env.provider.canceled) != 1 || env.provider.canceled[0] != "sub_old" {
		t.Errorf("canceled = %v, want [sub_old]", env.provider.canceled)
	}

	row, _ := env.subs.GetByUserID(42)
	if row.StripeSubscriptionID != "lifetime_cs_life" {
		t.Errorf("subscription id = %q, want lifetime_cs_life", row.StripeSubscriptionID)
	}
	if row.Origin != models.SubscriptionOriginLifetime {
		t.Errorf("origin = %q, want %q", row.Origin, models.SubscriptionOriginLifetime)
	}
	if row.CurrentPeriodEnd == nil || row.CurrentPeriodEnd.Before(env.now.AddDate(99, 0, 0)) {
		t.Errorf("period end %v not far enough in the future", row.CurrentPeriodEnd)
	}
}

func TestProcessEventLifetimeCancelFailureIsNotFatal(t *testing.T) {
	env := newTestEnv()
	oldEnd := env.now.AddDate(0, 1, 0)
	env.subs.rows[42] = &models.Subscription{
		ID:                   1,
		UserID:               42,
		StripeSubscriptionID: "sub_old",
		Status:               models.SubscriptionStatusActive,
		Origin:               models.SubscriptionOriginProvider,
		CurrentPeriodEnd:     &oldEnd,
	}
	env.provider.cancelErr = errProviderDown

	ev := Event{Type: "checkout.session.completed", Payload: checkoutPayload("payment", "cs_life", "", "42")}
	if err := env.svc.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("ProcessEvent should not fail on cancel error: %v", err)
	}

	row, _ := env.subs.GetByUserID(42)
	if row.Origin != models.SubscriptionOriginLifetime {
		t.Errorf("origin = %q, want lifetime grant despite failed cancel", row.Origin)
	}
}

func TestProcessEventCheckoutMissingUserMetadata(t *testing.T) {
	env := newTestEnv()
	payload := []byte(`{"id": "cs_x", "mode": "subscription", "subscription": "sub_123", "metadata": {}}`)

	err := env.svc.ProcessEvent(context.Background(), Event{Type: "checkout.session.completed", Payload: payload})
	if !errors.Is(err, ErrMissingUserMetadata) {
		t.Fatalf("err = %v, want ErrMissingUserMetadata", err)
	}
	if total, _ := env.subs.Count(); total != 0 {
		t.Errorf("row count = %d, want 0", total)
	}
}

func TestProcessEventCheckoutProviderFetchFails(t *testing.T) {
	env := newTestEnv()
	env.provider.getErr = errProviderDown

	ev := Event{Type: "checkout.session.completed", Payload: checkoutPayload("subscription", "cs_1", "sub_123", "42")}
	if err := env.svc.ProcessEvent(context.Background(), ev); err == nil {
		t.Fatal("expected error when provider fetch fails")
	}
	if total, _ := env.subs.Count(); total != 0 {
		t.Errorf("row count = %d, want 0 when provider is unreachable", total)
	}
}

func TestProcessEventInvoiceWithoutSubscriptionIsNoOp(t *testing.T) {
	env := newTestEnv()
	payload := []byte(`{"id": "in_1", "number": "INV-1", "subscription": "", "customer_email": "x@example.com"}`)

	if err := env.svc.ProcessEvent(context.Background(), Event{Type: "invoice.payment_succeeded", Payload: payload}); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}
	if total, _ := env.subs.Count(); total != 0 {
		t.Errorf("row count = %d, want 0", total)
	}
	if len(env.mailer.invoices) != 0 {
		t.Errorf("invoices = %v, want none", env.mailer.invoices)
	}
}

func TestProcessEventInvoiceRenewalUpdatesRow(t *testing.T) {
	env := newTestEnv()
	oldEnd := env.now.AddDate(0, -1, 0)
	env.subs.rows[42] = &models.Subscription{
		ID:                   1,
		UserID:               42,
		StripeSubscriptionID: "sub_123",
		PriceID:              "price_monthly",
		Status:               models.SubscriptionStatusPastDue,
		Origin:               models.SubscriptionOriginProvider,
		CurrentPeriodEnd:     &oldEnd,
	}
	newEnd := env.now.AddDate(0, 1, 0)
	env.provider.subs["sub_123"] = &ProviderSubscription{
		ID:               "sub_123",
		PriceID:          "price_monthly",
		Status:           models.SubscriptionStatusActive,
		CurrentPeriodEnd: &newEnd,
	}

	payload := []byte(`{"id": "in_2", "number": "INV-2", "subscription": "sub_123", "customer_email": "buyer@example.com", "amount_paid": 1900}`)
	if err := env.svc.ProcessEvent(context.Background(), Event{Type: "invoice.payment_succeeded", Payload: payload}); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	row, _ := env.subs.GetByUserID(42)
	if row.Status != models.SubscriptionStatusActive {
		t.Errorf("status = %q, want active", row.Status)
	}
	if row.CurrentPeriodEnd == nil || !row.CurrentPeriodEnd.Equal(newEnd) {
		t.Errorf("period end = %v, want %v", row.CurrentPeriodEnd, newEnd)
	}
	if len(env.mailer.invoices) != 1 {
		t.Errorf("invoices = %v, want one", env.mailer.invoices)
	}
}

func TestProcessEventSubscriptionDeletedKeepsRow(t *testing.T) {
	env := newTestEnv()
	end := env.now.AddDate(0, 1, 0)
	env.subs.rows[42] = &models.Subscription{
		ID:                   1,
		UserID:               42,
		StripeSubscriptionID: "sub_123",
		Status:               models.SubscriptionStatusActive,
		Origin:               models.SubscriptionOriginProvider,
		CurrentPeriodEnd:     &end,
	}

	payload := []byte(`{"id": "sub_123", "status": "canceled"}`)
	if err := env.svc.ProcessEvent(context.Background(), Event{Type: "customer.subscription.deleted", Payload: payload}); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	row, err := env.subs.GetByUserID(42)
	if err != nil {
		t.Fatal("row must be kept after deletion event")
	}
	if row.Status != models.SubscriptionStatusCanceled {
		t.Errorf("status = %q, want canceled", row.Status)
	}
	if row.CurrentPeriodEnd == nil || !row.CurrentPeriodEnd.Equal(end) {
		t.Errorf("period end changed on deletion event: %v", row.CurrentPeriodEnd)
	}
}

func TestProcessEventSubscriptionUpdatedRefetches(t *testing.T) {
	env := newTestEnv()
	env.subs.rows[42] = &models.Subscription{
		ID:                   1,
		UserID:               42,
		StripeSubscriptionID: "sub_123",
		PriceID:              "price_monthly",
		Status:               models.SubscriptionStatusActive,
		Origin:               models.SubscriptionOriginProvider,
	}
	newEnd := env.now.AddDate(1, 0, 0)
	env.provider.subs["sub_123"] = &ProviderSubscription{
		ID:               "sub_123",
		PriceID:          "price_yearly",
		Status:           models.SubscriptionStatusActive,
		CurrentPeriodEnd: &newEnd,
	}

	// The event payload itself claims a stale status; the fresh fetch wins.
	payload := []byte(`{"id": "sub_123", "status": "past_due"}`)
	if err := env.svc.ProcessEvent(context.Background(), Event{Type: "customer.subscription.updated", Payload: payload}); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	row, _ := env.subs.GetByUserID(42)
	if row.PriceID != "price_yearly" {
		t.Errorf("price id = %q, want price_yearly after plan change", row.PriceID)
	}
	if row.Status != models.SubscriptionStatusActive {
		t.Errorf("status = %q, want active from fresh fetch", row.Status)
	}
}

func TestProcessEventUnknownTypeIsAcknowledged(t *testing.T) {
	env := newTestEnv()
	if err := env.svc.ProcessEvent(context.Background(), Event{Type: "customer.created", Payload: []byte(`{}`)}); err != nil {
		t.Fatalf("unknown event type should be acknowledged, got %v", err)
	}
}

func TestProcessEventUnknownSessionModeIsPermanent(t *testing.T) {
	env := newTestEnv()

	ev := Event{Type: "checkout.session.completed", Payload: checkoutPayload("setup", "cs_setup", "", "42")}
	err := env.svc.ProcessEvent(context.Background(), ev)
	if !errors.Is(err, ErrUnknownSessionMode) {
		t.Fatalf("error = %v, want ErrUnknownSessionMode", err)
	}
	if total, _ := env.subs.Count(); total != 0 {
		t.Errorf("row count = %d, want 0", total)
	}
}

func TestRecordWebhookEventRedeliveryAfterFailureIsReprocessable(t *testing.T) {
	env := newTestEnv()
	periodEnd := env.now.AddDate(0, 1, 0)
	env.provider.subs["sub_123"] = &ProviderSubscription{
		ID:               "sub_123",
		CustomerID:       "cus_123",
		PriceID:          "price_monthly",
		Status:           models.SubscriptionStatusActive,
		CurrentPeriodEnd: &periodEnd,
	}
	env.provider.getErr = errProviderDown

	in := WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: "evt_retry",
		EventType:       "checkout.session.completed",
		PayloadJSON:     `{}`,
		SignatureValid:  true,
	}
	ev := Event{ID: "evt_retry", Type: "checkout.session.completed", Payload: checkoutPayload("subscription", "cs_1", "sub_123", "42")}
	ctx := context.Background()

	// First delivery: recorded, but processing fails while the provider
	// is unreachable. The webhook endpoint answers 500 in this case.
	created, stored, err := env.svc.RecordWebhookEvent(ctx, in)
	if err != nil || !created {
		t.Fatalf("first delivery: created=%v err=%v", created, err)
	}
	processErr := env.svc.ProcessEvent(ctx, ev)
	if processErr == nil {
		t.Fatal("processing must fail while the provider is down")
	}
	if err := env.svc.MarkWebhookProcessed(ctx, stored.ID, processErr); err != nil {
		t.Fatalf("MarkWebhookProcessed: %v", err)
	}

	// The provider recovers and redelivers the same event id. The
	// stored row must not count as a processed duplicate, so the
	// delivery runs again and the customer ends up entitled.
	env.provider.getErr = nil
	created, stored, err = env.svc.RecordWebhookEvent(ctx, in)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if created {
		t.Fatal("redelivery must not create a second event row")
	}
	if stored.ProcessedSuccessfully() {
		t.Fatal("failed event must not be treated as a processed duplicate")
	}
	if err := env.svc.ProcessEvent(ctx, ev); err != nil {
		t.Fatalf("reprocessing after recovery: %v", err)
	}
	if err := env.svc.MarkWebhookProcessed(ctx, stored.ID, nil); err != nil {
		t.Fatalf("MarkWebhookProcessed: %v", err)
	}

	row, err := env.subs.GetByUserID(42)
	if err != nil {
		t.Fatalf("expected subscription row after redelivery: %v", err)
	}
	if row.StripeSubscriptionID != "sub_123" {
		t.Errorf("stripe subscription id = %q, want sub_123", row.StripeSubscriptionID)
	}

	// A third delivery now is a genuine duplicate and may be skipped.
	_, stored, err = env.svc.RecordWebhookEvent(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.ProcessedSuccessfully() {
		t.Error("successfully processed event must count as a duplicate")
	}
}

func TestRecordWebhookEventDeduplicates(t *testing.T) {
	env := newTestEnv()
	in := WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: "evt_1",
		EventType:       "checkout.session.completed",
		PayloadJSON:     `{}`,
		SignatureValid:  true,
	}

	created, first, err := env.svc.RecordWebhookEvent(context.Background(), in)
	if err != nil || !created {
		t.Fatalf("first delivery: created=%v err=%v", created, err)
	}
	created, second, err := env.svc.RecordWebhookEvent(context.Background(), in)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if created {
		t.Fatal("second delivery must not create a new event")
	}
	if first.ID != second.ID {
		t.Errorf("duplicate returned different event: %d vs %d", first.ID, second.ID)
	}
}

func TestRecordWebhookEventHashesMissingEventID(t *testing.T) {
	env := newTestEnv()
	in := WebhookEventInput{
		Provider:    models.BillingProviderStripe,
		EventType:   "invoice.payment_succeeded",
		PayloadJSON: `{"id":"in_1"}`,
	}

	created, stored, err := env.svc.RecordWebhookEvent(context.Background(), in)
	if err != nil || !created {
		t.Fatalf("created=%v err=%v", created, err)
	}
	if stored.ProviderEventID == "" {
		t.Fatal("event id must be derived from payload hash")
	}

	// Same payload again collapses onto the same synthetic id.
	created, _, err = env.svc.RecordWebhookEvent(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("identical payload without event id must deduplicate")
	}
}

func TestMarkWebhookProcessedStoresError(t *testing.T) {
	env := newTestEnv()
	_, stored, err := env.svc.RecordWebhookEvent(context.Background(), WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: "evt_9",
		EventType:       "checkout.session.completed",
		PayloadJSON:     `{}`,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := env.svc.MarkWebhookProcessed(context.Background(), stored.ID, errProviderDown); err != nil {
		t.Fatalf("MarkWebhookProcessed: %v", err)
	}
	key := models.BillingProviderStripe + "/evt_9"
	if env.events.events[key].ProcessingError != errProviderDown.Error() {
		t.Errorf("processing error = %q", env.events.events[key].ProcessingError)
	}
	if env.events.events[key].ProcessedAt == nil {
		t.Error("processed_at not set")
	}
}
