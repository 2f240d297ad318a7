// internal/infra/whatsapp/client.go
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioAdapter implements the dispatch.WhatsAppSender interface using the
// Twilio Messages API with a content template carrying two variables: the
// human-readable date and the joined anniversary names. Credentials and the
// from number are fixed at construction.
type TwilioAdapter struct {
	client      *twilio.RestClient
	fromNumber  string
	templateSID string
}

func NewTwilioAdapter(accountSID, authToken, fromNumber, templateSID string, timeout time.Duration) *TwilioAdapter {
	httpClient := &twclient.Client{
		Credentials: twclient.NewCredentials(accountSID, authToken),
	}
	httpClient.SetAccountSid(accountSID)
	// The REST client has no per-call context, so the timeout bound lives on
	// the underlying HTTP client.
	httpClient.SetTimeout(timeout)

	return &TwilioAdapter{
		client:      twilio.NewRestClientWithParams(twilio.ClientParams{Client: httpClient}),
		fromNumber:  fromNumber,
		templateSID: templateSID,
	}
}

// Send delivers a single templated WhatsApp message. toNumber must already
// carry the "whatsapp:" prefix.
func (a *TwilioAdapter) Send(_ context.Context, toNumber, humanDate, messages string) error {
	vars, err := json.Marshal(map[string]string{
		"1": humanDate,
		"2": messages,
	})
	if err != nil {
		return fmt.Errorf("marshal content variables: %w", err)
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(toNumber)
	params.SetFrom("whatsapp:" + a.fromNumber)
	params.SetContentSid(a.templateSID)
	params.SetContentVariables(string(vars))

	if _, err := a.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio send failed: %w", err)
	}
	return nil
}
