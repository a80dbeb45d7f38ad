package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/launchstack/launchstack/app/models"
	"gorm.io/gorm"
)

// fakeSubscriptionRepo is an in-memory SubscriptionRepository with the same
// single-row-per-user semantics as the MySQL implementation.
type fakeSubscriptionRepo struct {
	rows   map[uint]*models.Subscription
	nextID uint
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{rows: map[uint]*models.Subscription{}, nextID: 1}
}

func (f *fakeSubscriptionRepo) UpsertByUserID(sub *models.Subscription) error {
	if existing, ok := f.rows[sub.UserID]; ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	} else {
		sub.ID = f.nextID
		f.nextID++
	}
	cp := *sub
	f.rows[sub.UserID] = &cp
	return nil
}

func (f *fakeSubscriptionRepo) GetByUserID(userID uint) (*models.Subscription, error) {
	sub, ok := f.rows[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *sub
	return &cp, nil
}

func (f *fakeSubscriptionRepo) GetByStripeSubscriptionID(stripeSubID string) (*models.Subscription, error) {
	for _, sub := range f.rows {
		if sub.StripeSubscriptionID == stripeSubID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSubscriptionRepo) UpdateByStripeSubscriptionID(stripeSubID string, updates map[string]interface{}) error {
	for _, sub := range f.rows {
		if sub.StripeSubscriptionID != stripeSubID {
			continue
		}
		if v, ok := updates["status"]; ok {
			sub.Status = v.(string)
		}
		if v, ok := updates["price_id"]; ok {
			sub.PriceID = v.(string)
		}
		if v, ok := updates["current_period_end"]; ok {
			sub.CurrentPeriodEnd = v.(*time.Time)
		}
		return nil
	}
	return nil
}

func (f *fakeSubscriptionRepo) DeleteByUserID(userID uint) (int64, error) {
	if _, ok := f.rows[userID]; !ok {
		return 0, nil
	}
	delete(f.rows, userID)
	return 1, nil
}

func (f *fakeSubscriptionRepo) CountByStatuses(statuses []string) (int64, error) {
	var n int64
	for _, sub := range f.rows {
		for _, s := range statuses {
			if sub.Status == s {
				n++
				break
			}
		}
	}
	return n, nil
}

func (f *fakeSubscriptionRepo) Count() (int64, error) {
	return int64(len(f.rows)), nil
}

// fakeWebhookEventRepo deduplicates on (provider, provider_event_id).
type fakeWebhookEventRepo struct {
	events map[string]*models.WebhookEvent
	nextID uint
}

func newFakeWebhookEventRepo() *fakeWebhookEventRepo {
	return &fakeWebhookEventRepo{events: map[string]*models.WebhookEvent{}, nextID: 1}
}

func (f *fakeWebhookEventRepo) CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	key := event.Provider + "/" + event.ProviderEventID
	if existing, ok := f.events[key]; ok {
		cp := *existing
		return false, &cp, nil
	}
	event.ID = f.nextID
	f.nextID++
	cp := *event
	f.events[key] = &cp
	return true, event, nil
}

func (f *fakeWebhookEventRepo) MarkProcessed(id uint, processingError string) error {
	for _, ev := range f.events {
		if ev.ID == id {
			now := time.Now()
			ev.ProcessedAt = &now
			ev.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// fakeProvider serves canned subscriptions and records cancellations.
type fakeProvider struct {
	subs     map[string]*ProviderSubscription
	canceled []string

	getErr    error
	cancelErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{subs: map[string]*ProviderSubscription{}}
}

func (f *fakeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	sub, ok := f.subs[subscriptionID]
	if !ok {
		return nil, fmt.Errorf("no such subscription %s", subscriptionID)
	}
	cp := *sub
	return &cp, nil
}

func (f *fakeProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.canceled = append(f.canceled, subscriptionID)
	return nil
}

func (f *fakeProvider) CreateCustomer(ctx context.Context, email string, userID uint) (string, error) {
	return "cus_fake", nil
}

func (f *fakeProvider) NewCheckoutSession(ctx context.Context, in CheckoutInput) (string, error) {
	return "https://checkout.example/session", nil
}

func (f *fakeProvider) NewPortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	return "https://portal.example/session", nil
}

func (f *fakeProvider) NewPortalUpdateSession(ctx context.Context, customerID, subscriptionID, returnURL string) (string, error) {
	return "https://portal.example/update", nil
}

// fakeMailer records sends.
type fakeMailer struct {
	confirmations []string
	invoices      []string
	sendErr       error
}

func (f *fakeMailer) SendSubscriptionConfirmation(to, planName, priceLabel string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.confirmations = append(f.confirmations, to)
	return nil
}

func (f *fakeMailer) SendInvoicePaid(to, invoiceNumber, amount, invoiceURL string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.invoices = append(f.invoices, to)
	return nil
}

var errProviderDown = errors.New("provider unavailable")

func testPlanConfig() PlanConfig {
	return PlanConfig{
		MonthlyPriceID:  "price_monthly",
		YearlyPriceID:   "price_yearly",
		LifetimePriceID: "price_lifetime",
	}
}

type testEnv struct {
	svc      *Service
	subs     *fakeSubscriptionRepo
	events   *fakeWebhookEventRepo
	provider *fakeProvider
	mailer   *fakeMailer
	now      time.Time
}

func newTestEnv() *testEnv {
	env := &testEnv{
		subs:     newFakeSubscriptionRepo(),
		events:   newFakeWebhookEventRepo(),
		provider: newFakeProvider(),
		mailer:   &fakeMailer{},
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	env.svc = NewService(env.subs, env.events, env.provider, env.mailer, testPlanConfig())
	env.svc.now = func() time.Time { return env.now }
	return env
}
