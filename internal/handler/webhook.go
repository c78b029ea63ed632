package handler

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pixelhue/pixel-mosaic/internal/grid"
	"github.com/pixelhue/pixel-mosaic/internal/payment"
	"github.com/pixelhue/pixel-mosaic/internal/queue"
)

// maxWebhookBody bounds how much of a callback body is read.
const maxWebhookBody = 1 << 20

// WebhookHandler consumes the payment gateway's signed completion
// callbacks.  The HMAC signature over the raw body is the endpoint's only
// authentication, so the body is verified exactly as received, before any
// parsing.  Deliveries can arrive late, repeated, or for transactions
// whose reservation is long gone; everything after signature verification
// is therefore idempotent and always acknowledged with 200 so the gateway
// stops retrying.
type WebhookHandler struct {
	Store     ClaimStore
	Secret    string        // shared webhook secret
	Tolerance time.Duration // signed-timestamp tolerance
	// Publish pushes a claim.completed event after a finalizing
	// transition.  Best effort: a nil func or a failed publish never
	// affects the acknowledgement.
	Publish func(ctx context.Context, ev queue.ClaimCompletedEvent) error
}

// NewWebhookHandler constructs a WebhookHandler.  Store must be non-nil.
func NewWebhookHandler(store ClaimStore, secret string, tolerance time.Duration, publish func(ctx context.Context, ev queue.ClaimCompletedEvent) error) *WebhookHandler {
	if store == nil {
		panic("nil store passed to NewWebhookHandler")
	}
	return &WebhookHandler{Store: store, Secret: secret, Tolerance: tolerance, Publish: publish}
}

// HandlePaymentCompleted handles POST /webhook.
func (h *WebhookHandler) HandlePaymentCompleted(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}
	sig := c.Request().Header.Get(payment.SignatureHeader)
	if err := payment.VerifySignature(body, sig, h.Secret, h.Tolerance, time.Now()); err != nil {
		// Integrity failure: logged, rejected, and no state is touched.
		log.Printf("webhook: rejected callback: %v", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
	}

	ev, err := payment.ParseEvent(body)
	if err != nil {
		log.Printf("webhook: verified callback with malformed payload: %v", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed payload"})
	}
	if ev.Type != payment.EventTypeCheckoutCompleted {
		// Unknown event types are acknowledged and ignored.
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}
	if ev.Metadata.CellID == "" {
		log.Printf("webhook: event %s has no cell id in metadata", ev.ID)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed payload"})
	}

	ctx := c.Request().Context()

	// The update matches on (cell, transaction, still-pending) and nothing
	// else.  A reservation whose window lapsed seconds ago still completes:
	// payment is the authoritative signal of intent, and the cleanup
	// pass only ever deletes rows that are both pending and expired, so
	// this update and cleanup can race without losing a paid claim.
	transitioned, err := h.Store.Finalize(ctx, ev.Metadata.CellID, ev.TransactionID, ev.PaymentID)
	if err != nil {
		// Infrastructure failure: a non-2xx makes the gateway redeliver,
		// and Finalize is idempotent under redelivery.
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !transitioned {
		// Replayed event, already-completed claim, or a transaction that
		// no longer matches any row.  All are acknowledged so the gateway
		// does not retry forever.
		log.Printf("webhook: event %s matched no pending claim (cell=%s)", ev.ID, ev.Metadata.CellID)
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	h.publishCompleted(ev)
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

// publishCompleted emits the claim.completed event for a transition that
// just happened.  Detached from the request context so a gateway-side
// timeout cannot cancel the publish mid-flight.
func (h *WebhookHandler) publishCompleted(ev *payment.Event) {
	if h.Publish == nil {
		return
	}
	claim, err := h.Store.GetByCell(context.Background(), ev.Metadata.CellID)
	if err != nil || !claim.Completed() {
		return
	}
	cell := grid.Resolve(claim.CellID)
	if cell == nil {
		return
	}
	claimedAt := ""
	if claim.ClaimedAt != nil {
		claimedAt = claim.ClaimedAt.UTC().Format(time.RFC3339)
	}
	_ = h.Publish(context.Background(), queue.ClaimCompletedEvent{
		CellID:      claim.CellID,
		Color:       claim.ColorValue,
		GridRow:     cell.Row,
		GridCol:     cell.Col,
		AmountCents: claim.AmountCents,
		PaymentID:   ev.PaymentID,
		ClaimedAt:   claimedAt,
	})
}
