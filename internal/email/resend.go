package email

import (
	"context"
	"fmt"

	resend "github.com/resend/resend-go/v3"
)

// ResendProvider delivers order lifecycle mail through the Resend API.
type ResendProvider struct {
	from   string
	client *resend.Client
}

func NewResendProvider(apiKey, from string) *ResendProvider {
	return &ResendProvider{
		from:   from,
		client: resend.NewClient(apiKey),
	}
}

func (r *ResendProvider) SendEmail(ctx context.Context, email *Email) error {
	if email == nil {
		return fmt.Errorf("email is required")
	}
	if r.client == nil {
		return fmt.Errorf("resend client not configured")
	}

	params := &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{email.To},
		Subject: email.Subject,
	}
	if email.HTML != "" {
		params.Html = email.HTML
	}
	if email.Text != "" {
		params.Text = email.Text
	}
	if params.Html == "" && params.Text == "" {
		return fmt.Errorf("email body is empty")
	}

	if _, err := r.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send email via resend: %w", err)
	}
	return nil
}

// ValidateAPIKey makes a cheap authenticated call so a bad EMAIL_API_KEY
// surfaces at startup instead of on the first order confirmation.
func (r *ResendProvider) ValidateAPIKey(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("resend client not configured")
	}
	if _, err := r.client.ApiKeys.ListWithContext(ctx); err != nil {
		return fmt.Errorf("invalid API key: %w", err)
	}
	return nil
}
