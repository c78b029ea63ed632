package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries the callback signature in the form
// "t=<unix seconds>,v1=<hex hmac-sha256>".  The HMAC is computed over
// "<t>.<raw body>" with the shared webhook secret, so the signature binds
// both the payload and the moment it was sent.  The raw body must be
// verified exactly as received, before any JSON parsing.
const SignatureHeader = "Mosaic-Signature"

// DefaultTolerance bounds how old a signed timestamp may be before the
// callback is treated as a replay.
const DefaultTolerance = 5 * time.Minute

// ErrInvalidSignature is returned for any callback whose signature cannot
// be verified: malformed header, wrong secret, tampered body, or a
// timestamp outside the tolerance window.  The cases are deliberately not
// distinguished to the caller.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Sign produces a signature header value for the given body, timestamp and
// secret.  The service itself only verifies; signing is exported for tests
// and local gateway simulators.
func Sign(body []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// VerifySignature checks the signature header against the raw request body.
// now is passed explicitly so callers (and tests) control the clock used
// for the tolerance check.  Comparison is constant-time.
func VerifySignature(body []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sig = v
		}
	}
	if ts == "" || sig == "" {
		return ErrInvalidSignature
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	age := now.Sub(time.Unix(unix, 0))
	if age > tolerance || age < -tolerance {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return ErrInvalidSignature
	}
	return nil
}

// EventTypeCheckoutCompleted is the only callback type the service acts on.
const EventTypeCheckoutCompleted = "checkout.completed"

// Event is the decoded completion callback.
//
// Fields:
//
//	ID            – the gateway's event id; unique per delivery attempt group.
//	Type          – event type; anything but checkout.completed is ignored.
//	TransactionID – the checkout transaction the event reports on.
//	PaymentID     – the finalized payment behind the transaction.
//	Metadata      – echo of the metadata attached at session creation.
type Event struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	TransactionID string   `json:"transaction_id"`
	PaymentID     string   `json:"payment_id"`
	Metadata      Metadata `json:"metadata"`
}

// ParseEvent decodes a callback body.  Call only after VerifySignature has
// accepted the raw bytes.
func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	if ev.ID == "" || ev.TransactionID == "" {
		return nil, errors.New("webhook event missing id or transaction id")
	}
	return &ev, nil
}
