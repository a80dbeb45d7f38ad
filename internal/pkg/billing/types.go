package billing

import (
	"context"
	"time"
)

// Event is the normalized webhook delivery handed to the reconciliation
// service after signature verification.
type Event struct {
	ID      string
	Type    string
	Payload []byte
}

// ProviderSubscription is the provider-agnostic view of a recurring
// subscription, re-fetched from the provider of record before every write.
type ProviderSubscription struct {
	ID               string
	CustomerID       string
	PriceID          string
	Status           string
	CurrentPeriodEnd *time.Time
}

// CheckoutInput describes a checkout session to create at the provider.
type CheckoutInput struct {
	CustomerID string
	PriceID    string
	OneTime    bool
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// ProviderClient is the outbound surface of the payment provider used by the
// reconciliation core. All calls are synchronous request/response.
type ProviderClient interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	CreateCustomer(ctx context.Context, email string, userID uint) (string, error)
	NewCheckoutSession(ctx context.Context, in CheckoutInput) (string, error)
	NewPortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	NewPortalUpdateSession(ctx context.Context, customerID, subscriptionID, returnURL string) (string, error)
}

// Mailer sends billing notifications. Sends are best-effort; failures are
// logged by the caller and never fail reconciliation.
type Mailer interface {
	SendSubscriptionConfirmation(to, planName, priceLabel string) error
	SendInvoicePaid(to, invoiceNumber, amount, invoiceURL string) error
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}
