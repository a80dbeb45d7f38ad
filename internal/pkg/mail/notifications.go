package mail

import "fmt"

// Notifier sends transactional notification emails over SMTP. It satisfies
// the billing.Mailer interface; all sends are best-effort from the caller's
// point of view.
type Notifier struct{}

// NewNotifier creates a notification mailer.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// SendSubscriptionConfirmation welcomes a user to their paid plan.
func (n *Notifier) SendSubscriptionConfirmation(to, planName, priceLabel string) error {
	subject := fmt.Sprintf("Welcome to %s!", planName)
	body := fmt.Sprintf(
		"<h1>Welcome to %s</h1>"+
			"<p>Your subscription (%s) is now active. Head over to your dashboard to get started.</p>",
		planName, priceLabel,
	)
	return SendMail(to, subject, body)
}

// SendInvoicePaid confirms a paid renewal invoice.
func (n *Notifier) SendInvoicePaid(to, invoiceNumber, amount, invoiceURL string) error {
	subject := fmt.Sprintf("Invoice %s Paid", invoiceNumber)
	body := fmt.Sprintf(
		"<h1>Thank you!</h1>"+
			"<p>Your payment of %s for invoice %s was received.</p>"+
			"<p><a href=\"%s\">View invoice</a></p>",
		amount, invoiceNumber, invoiceURL,
	)
	return SendMail(to, subject, body)
}

// SendPasswordReset delivers a password reset link.
func (n *Notifier) SendPasswordReset(to, resetURL string) error {
	subject := "Reset Your Password"
	body := fmt.Sprintf(
		"<h1>Password Reset</h1>"+
			"<p>Click the link below to choose a new password. The link expires in one hour.</p>"+
			"<p><a href=\"%s\">Reset password</a></p>"+
			"<p>If you did not request this, you can ignore this email.</p>",
		resetURL,
	)
	return SendMail(to, subject, body)
}

// SendProjectCreated confirms a newly created project.
func (n *Notifier) SendProjectCreated(to, firstName, projectName string) error {
	subject := "Project Created!"
	body := fmt.Sprintf(
		"<h1>Hi %s</h1>"+
			"<p>Your project <strong>%s</strong> has been created.</p>",
		firstName, projectName,
	)
	return SendMail(to, subject, body)
}
