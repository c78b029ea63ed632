package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/pixelhue/pixel-mosaic/internal/model"
	"github.com/pixelhue/pixel-mosaic/internal/payment"
	"github.com/pixelhue/pixel-mosaic/internal/queue"
)

const webhookSecret = "whsec_test"

// completedEvent builds a checkout.completed callback body.
func completedEvent(eventID, cellID, transactionID, paymentID string) []byte {
	body, _ := json.Marshal(map[string]any{
		"id":             eventID,
		"type":           payment.EventTypeCheckoutCompleted,
		"transaction_id": transactionID,
		"payment_id":     paymentID,
		"metadata": map[string]string{
			"cell_id":     cellID,
			"color":       "#aa11ff",
			"fingerprint": "fp-1",
		},
	})
	return body
}

// deliver posts a callback body with the given signature header.
func deliver(t *testing.T, h *WebhookHandler, body []byte, header string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(string(body)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if header != "" {
		req.Header.Set(payment.SignatureHeader, header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	assert.NoError(t, h.HandlePaymentCompleted(c))
	return rec
}

func signNow(body []byte) string {
	return payment.Sign(body, webhookSecret, time.Now())
}

func TestWebhookForgedSignatureRejected(t *testing.T) {
	store := newMemStore()
	store.seedPending("a1f", "#aa11ff", "fp-1", "cs_1", time.Now().UTC().Add(10*time.Minute))
	h := NewWebhookHandler(store, webhookSecret, payment.DefaultTolerance, nil)

	body := completedEvent("evt_1", "a1f", "cs_1", "pay_1")
	rec := deliver(t, h, body, payment.Sign(body, "wrong-secret", time.Now()))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	claim, err := store.GetByCell(context.Background(), "a1f")
	if assert.NoError(t, err) {
		assert.Equal(t, model.ClaimStatusPending, claim.PaymentStatus)
		assert.Nil(t, claim.ConfirmedPaymentID)
	}
}

func TestWebhookMissingSignatureRejected(t *testing.T) {
	h := NewWebhookHandler(newMemStore(), webhookSecret, payment.DefaultTolerance, nil)
	rec := deliver(t, h, completedEvent("evt_1", "a1f", "cs_1", "pay_1"), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookCompletesPendingClaim(t *testing.T) {
	store := newMemStore()
	store.seedPending("a1f", "#aa11ff", "fp-1", "cs_1", time.Now().UTC().Add(10*time.Minute))
	h := NewWebhookHandler(store, webhookSecret, payment.DefaultTolerance, nil)

	body := completedEvent("evt_1", "a1f", "cs_1", "pay_1")
	rec := deliver(t, h, body, signNow(body))

	assert.Equal(t, http.StatusOK, rec.Code)
	claim, err := store.GetByCell(context.Background(), "a1f")
	if assert.NoError(t, err) {
		assert.Equal(t, model.ClaimStatusCompleted, claim.PaymentStatus)
		if assert.NotNil(t, claim.ConfirmedPaymentID) {
			assert.Equal(t, "pay_1", *claim.ConfirmedPaymentID)
		}
		assert.NotNil(t, claim.ClaimedAt)
		assert.Nil(t, claim.ReservedAt)
		assert.Nil(t, claim.ReservedUntil)
	}
}

func TestWebhookIdempotentReplay(t *testing.T) {
	store := newMemStore()
	store.seedPending("a1f", "#aa11ff", "fp-1", "cs_1", time.Now().UTC().Add(10*time.Minute))
	h := NewWebhookHandler(store, webhookSecret, payment.DefaultTolerance, nil)

	body := completedEvent("evt_1", "a1f", "cs_1", "pay_1")
	first := deliver(t, h, body, signNow(body))
	assert.Equal(t, http.StatusOK, first.Code)

	claimAfterFirst, err := store.GetByCell(context.Background(), "a1f")
	assert.NoError(t, err)

	second := deliver(t, h, body, signNow(body))
	assert.Equal(t, http.StatusOK, second.Code)

	claimAfterSecond, err := store.GetByCell(context.Background(), "a1f")
	if assert.NoError(t, err) {
		// The replay is acknowledged but transitions nothing.
		assert.Equal(t, *claimAfterFirst.ClaimedAt, *claimAfterSecond.ClaimedAt)
		assert.Equal(t, *claimAfterFirst.ConfirmedPaymentID, *claimAfterSecond.ConfirmedPaymentID)
	}
}

// A confirmation that lands after the reservation window but before any
// cleanup pass still completes the claim: payment is the authoritative
// signal of intent.
func TestWebhookLateConfirmationWins(t *testing.T) {
	store := newMemStore()
	store.seedPending("a1f", "#aa11ff", "fp-1", "cs_1", time.Now().UTC().Add(-2*time.Minute))
	h := NewWebhookHandler(store, webhookSecret, payment.DefaultTolerance, nil)

	body := completedEvent("evt_1", "a1f", "cs_1", "pay_1")
	rec := deliver(t, h, body, signNow(body))

	assert.Equal(t, http.StatusOK, rec.Code)
	claim, err := store.GetByCell(context.Background(), "a1f")
	if assert.NoError(t, err) {
		assert.Equal(t, model.ClaimStatusCompleted, claim.PaymentStatus)
	}
}

func TestWebhookMismatchedTransactionAcked(t *testing.T) {
	store := newMemStore()
	store.seedPending("a1f", "#aa11ff", "fp-1", "cs_1", time.Now().UTC().Add(10*time.Minute))
	h := NewWebhookHandler(store, webhookSecret, payment.DefaultTolerance, nil)

	// Stale callback for a session that no longer owns the cell.
	body := completedEvent("evt_9", "a1f", "cs_stale", "pay_9")
	rec := deliver(t, h, body, signNow(body))

	assert.Equal(t, http.StatusOK, rec.Code)
	claim, err := store.GetByCell(context.Background(), "a1f")
	if assert.NoError(t, err) {
		assert.Equal(t, model.ClaimStatusPending, claim.PaymentStatus)
		assert.Equal(t, "cs_1", claim.PaymentTransactionID)
	}
}

func TestWebhookUnknownCellAcked(t *testing.T) {
	h := NewWebhookHandler(newMemStore(), webhookSecret, payment.DefaultTolerance, nil)
	body := completedEvent("evt_1", "a1f", "cs_1", "pay_1")
	rec := deliver(t, h, body, signNow(body))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookIgnoresOtherEventTypes(t *testing.T) {
	store := newMemStore()
	store.seedPending("a1f", "#aa11ff", "fp-1", "cs_1", time.Now().UTC().Add(10*time.Minute))
	h := NewWebhookHandler(store, webhookSecret, payment.DefaultTolerance, nil)

	body, _ := json.Marshal(map[string]any{
		"id":             "evt_2",
		"type":           "checkout.expired",
		"transaction_id": "cs_1",
	})
	rec := deliver(t, h, body, signNow(body))

	assert.Equal(t, http.StatusOK, rec.Code)
	claim, err := store.GetByCell(context.Background(), "a1f")
	if assert.NoError(t, err) {
		assert.Equal(t, model.ClaimStatusPending, claim.PaymentStatus)
	}
}

func TestWebhookMalformedPayloadAfterValidSignature(t *testing.T) {
	h := NewWebhookHandler(newMemStore(), webhookSecret, payment.DefaultTolerance, nil)
	body := []byte(`not json at all`)
	rec := deliver(t, h, body, signNow(body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookPublishesClaimCompletedEvent(t *testing.T) {
	store := newMemStore()
	store.seedPending("a1f", "#aa11ff", "fp-1", "cs_1", time.Now().UTC().Add(10*time.Minute))
	var published []queue.ClaimCompletedEvent
	h := NewWebhookHandler(store, webhookSecret, payment.DefaultTolerance,
		func(_ context.Context, ev queue.ClaimCompletedEvent) error {
			published = append(published, ev)
			return nil
		})

	body := completedEvent("evt_1", "a1f", "cs_1", "pay_1")
	deliver(t, h, body, signNow(body))

	if assert.Len(t, published, 1) {
		assert.Equal(t, "a1f", published[0].CellID)
		assert.Equal(t, "#aa11ff", published[0].Color)
		assert.Equal(t, "pay_1", published[0].PaymentID)
		assert.NotEmpty(t, published[0].ClaimedAt)
	}

	// A replay acknowledges without publishing again.
	deliver(t, h, body, signNow(body))
	assert.Len(t, published, 1)
}
