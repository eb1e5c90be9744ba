// Package sms sends text messages through Twilio or a simple GET-based
// gateway such as CallMeBot.
package sms

import (
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Twilio sends messages through the Twilio REST API.
type Twilio struct {
	from   string
	client *twilio.RestClient
}

// NewTwilio returns a Twilio sender. from may be a phone number or a
// "whatsapp:+..." sender.
func NewTwilio(accountSID, authToken, from string) *Twilio {
	return &Twilio{
		from: from,
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
	}
}

// Send delivers body to the E.164 number to.
func (t *Twilio) Send(to, body string) error {
	number := strings.TrimPrefix(to, "whatsapp:")
	if !strings.HasPrefix(number, "+") {
		return fmt.Errorf("invalid phone number: %s", to)
	}
	if strings.HasPrefix(t.from, "whatsapp:") && !strings.HasPrefix(to, "whatsapp:") {
		to = "whatsapp:" + to
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.from)
	params.SetBody(body)

	if _, err := t.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send SMS to %s: %w", to, err)
	}
	return nil
}
