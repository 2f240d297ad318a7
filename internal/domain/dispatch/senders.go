package dispatch

import "context"

// EmailSender sends a single reminder email. This decouples the job from the
// concrete mail provider.
type EmailSender interface {
	Send(ctx context.Context, toAddress, subject, htmlBody, textBody string) error
}

// WhatsAppSender sends a single templated WhatsApp reminder. toNumber already
// carries the "whatsapp:" prefix; humanDate and messages fill the template's
// two variables.
type WhatsAppSender interface {
	Send(ctx context.Context, toNumber, humanDate, messages string) error
}
