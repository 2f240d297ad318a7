// internal/infra/email/client.go
package email

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridAdapter implements the dispatch.EmailSender interface using the
// SendGrid v3 API. The API key and from address are fixed at construction.
type SendGridAdapter struct {
	client      *sendgrid.Client
	fromName    string
	fromAddress string
}

func NewSendGridAdapter(apiKey, fromName, fromAddress string) *SendGridAdapter {
	return &SendGridAdapter{
		client:      sendgrid.NewSendClient(apiKey),
		fromName:    fromName,
		fromAddress: fromAddress,
	}
}

// Send delivers a single email. A non-2xx response from SendGrid is returned
// as an error so the dispatcher can record the failure for that recipient.
func (a *SendGridAdapter) Send(ctx context.Context, toAddress, subject, htmlBody, textBody string) error {
	from := mail.NewEmail(a.fromName, a.fromAddress)
	to := mail.NewEmail("", toAddress)
	message := mail.NewSingleEmail(from, subject, to, textBody, htmlBody)

	resp, err := a.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sendgrid rejected message: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
