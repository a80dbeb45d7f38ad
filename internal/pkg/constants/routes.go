package constants

// Static route constants
const (
	PublicRoute        = "/"
	APIV1Route         = "/api/v1"
	AdminRoute         = "/admin"
	StripeWebhookRoute = "/webhooks/stripe"
)
