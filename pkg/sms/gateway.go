package sms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Gateway sends a message with a single GET request carrying the phone
// number, text and API key as query parameters.
type Gateway struct {
	endpoint string
	phone    string
	apiKey   string
	client   *http.Client
}

// NewGateway returns a Gateway for endpoint. A nil client gets a 15s timeout.
func NewGateway(endpoint, phone, apiKey string, client *http.Client) *Gateway {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Gateway{endpoint: endpoint, phone: phone, apiKey: apiKey, client: client}
}

// Send delivers text. Any non-2xx response is an error.
func (g *Gateway) Send(ctx context.Context, text string) error {
	u, err := url.Parse(g.endpoint)
	if err != nil {
		return fmt.Errorf("invalid gateway url %q: %w", g.endpoint, err)
	}
	q := u.Query()
	q.Set("phone", g.phone)
	q.Set("text", text)
	q.Set("apikey", g.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create gateway request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", g.phone, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("gateway returned status %d for %s: %s", resp.StatusCode, g.phone, strings.TrimSpace(string(snippet)))
	}
	return nil
}
