// Package payment integrates the external checkout gateway.  The service
// only touches the gateway at two points: creating a checkout session for a
// single cell at the fixed price, and verifying the signed callback the
// gateway sends once a session is paid.  Everything in between (the hosted
// payment page, card handling, retries on the gateway side) is the
// gateway's business.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Metadata is the opaque context attached to a checkout session.  The
// gateway echoes it back verbatim in the completion callback, which is how
// a callback is matched to its reservation without a separate lookup table.
type Metadata struct {
	CellID      string `json:"cell_id"`
	Color       string `json:"color"`
	Fingerprint string `json:"fingerprint"`
}

// CheckoutSession is the gateway's handle for one payment attempt.
//
// Fields:
//
//	TransactionID – the checkout transaction id; stored on the pending claim
//	                and later presented by the owner as proof of ownership.
//	RedirectURL   – hosted payment page the browser is sent to.
type CheckoutSession struct {
	TransactionID string `json:"transaction_id"`
	RedirectURL   string `json:"redirect_url"`
}

// Client calls the checkout gateway over HTTPS.  Construct with NewClient.
type Client struct {
	baseURL    string
	apiKey     string
	successURL string
	cancelURL  string
	httpClient *http.Client
}

// NewClient returns a gateway client.  successURL and cancelURL are where
// the gateway redirects the browser after the hosted checkout finishes.
func NewClient(baseURL, apiKey, successURL, cancelURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		successURL: successURL,
		cancelURL:  cancelURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// createSessionRequest is the wire format for opening a checkout session.
// Quantity is always one: a session buys exactly one cell.
type createSessionRequest struct {
	AmountCents uint32   `json:"amount_cents"`
	Currency    string   `json:"currency"`
	Quantity    int      `json:"quantity"`
	SuccessURL  string   `json:"success_url"`
	CancelURL   string   `json:"cancel_url"`
	Metadata    Metadata `json:"metadata"`
}

// CreateCheckout opens a checkout session for one cell at the fixed price.
// The returned transaction id must be persisted on the pending claim before
// the caller reports success; a session whose insert subsequently fails is
// simply abandoned and voided by the gateway's own session timeout.
func (c *Client) CreateCheckout(ctx context.Context, amountCents uint32, currency string, meta Metadata) (*CheckoutSession, error) {
	body, err := json.Marshal(createSessionRequest{
		AmountCents: amountCents,
		Currency:    currency,
		Quantity:    1,
		SuccessURL:  c.successURL,
		CancelURL:   c.cancelURL,
		Metadata:    meta,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		// Drain a little of the body for the log line without trusting it.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, snippet)
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}
	if session.TransactionID == "" || session.RedirectURL == "" {
		return nil, errors.New("gateway response missing transaction id or redirect url")
	}
	return &session, nil
}
