package billing

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/launchstack/launchstack/internal/pkg/env"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeClient implements ProviderClient against the Stripe API.
type StripeClient struct {
	client *stripe.Client
}

// NewStripeClient creates a provider client for the given secret key.
func NewStripeClient(secretKey string) *StripeClient {
	return &StripeClient{client: stripe.NewClient(secretKey, nil)}
}

// NewStripeClientFromEnv creates a provider client configured from the
// environment.
func NewStripeClientFromEnv() *StripeClient {
	return NewStripeClient(strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")))
}

// GetSubscription retrieves the authoritative subscription state from Stripe.
func (c *StripeClient) GetSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error) {
	if strings.TrimSpace(subscriptionID) == "" {
		return nil, fmt.Errorf("subscription id is required")
	}
	sub, err := c.client.V1Subscriptions.Retrieve(ctx, subscriptionID, nil)
	if err != nil {
		return nil, fmt.Errorf("stripe subscription retrieve: %w", err)
	}
	return normalizeStripeSubscription(sub), nil
}

// CancelSubscription cancels a subscription at Stripe to stop future billing.
func (c *StripeClient) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if _, err := c.client.V1Subscriptions.Cancel(ctx, subscriptionID, nil); err != nil {
		return fmt.Errorf("stripe subscription cancel: %w", err)
	}
	return nil
}

// CreateCustomer creates a billing customer tagged with the local user id.
func (c *StripeClient) CreateCustomer(ctx context.Context, email string, userID uint) (string, error) {
	params := &stripe.CustomerCreateParams{
		Email: stripe.String(email),
		Metadata: map[string]string{
			"user_id": strconv.FormatUint(uint64(userID), 10),
		},
	}
	customer, err := c.client.V1Customers.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("stripe customer create: %w", err)
	}
	return customer.ID, nil
}

// NewCheckoutSession creates a checkout session and returns its redirect URL.
func (c *StripeClient) NewCheckoutSession(ctx context.Context, in CheckoutInput) (string, error) {
	mode := "subscription"
	if in.OneTime {
		mode = "payment"
	}
	params := &stripe.CheckoutSessionCreateParams{
		Customer:           stripe.String(in.CustomerID),
		Mode:               stripe.String(mode),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(in.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(in.SuccessURL),
		CancelURL:  stripe.String(in.CancelURL),
		Metadata:   in.Metadata,
	}
	session, err := c.client.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("stripe checkout session create: %w", err)
	}
	if session.URL == "" {
		return "", fmt.Errorf("stripe checkout session %s has no url", session.ID)
	}
	return session.URL, nil
}

// NewPortalSession creates a billing portal session for self-service
// subscription management.
func (c *StripeClient) NewPortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionCreateParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	session, err := c.client.V1BillingPortalSessions.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("stripe portal session create: %w", err)
	}
	return session.URL, nil
}

// NewPortalUpdateSession creates a portal session pre-set to the subscription
// update flow, used when an active subscriber switches plans (the portal
// applies the provider's standard proration).
func (c *StripeClient) NewPortalUpdateSession(ctx context.Context, customerID, subscriptionID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionCreateParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
		FlowData: &stripe.BillingPortalSessionCreateFlowDataParams{
			Type: stripe.String("subscription_update"),
			SubscriptionUpdate: &stripe.BillingPortalSessionCreateFlowDataSubscriptionUpdateParams{
				Subscription: stripe.String(subscriptionID),
			},
		},
	}
	session, err := c.client.V1BillingPortalSessions.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("stripe portal session create: %w", err)
	}
	return session.URL, nil
}

// VerifyWebhookEvent checks the payload signature against the shared secret
// and returns the normalized event. ErrSignatureInvalid is returned for any
// mismatch.
func VerifyWebhookEvent(payload []byte, signatureHeader, webhookSecret string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, ErrSignatureInvalid
	}
	return &Event{
		ID:      ev.ID,
		Type:    string(ev.Type),
		Payload: []byte(ev.Data.Raw),
	}, nil
}

func normalizeStripeSubscription(sub *stripe.Subscription) *ProviderSubscription {
	out := &ProviderSubscription{
		ID:     sub.ID,
		Status: string(sub.Status),
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			out.PriceID = item.Price.ID
		}
		if item.CurrentPeriodEnd > 0 {
			end := time.Unix(item.CurrentPeriodEnd, 0)
			out.CurrentPeriodEnd = &end
		}
	}
	return out
}
