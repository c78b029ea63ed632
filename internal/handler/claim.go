package handler

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pixelhue/pixel-mosaic/internal/grid"
	"github.com/pixelhue/pixel-mosaic/internal/model"
	"github.com/pixelhue/pixel-mosaic/internal/payment"
	"github.com/pixelhue/pixel-mosaic/internal/repository"
)

// maxFingerprintLen caps the opaque client fingerprint to the column size.
const maxFingerprintLen = 128

// ClaimHandler implements the reservation flow: validate the cell, clear
// expired reservations, open a checkout session, and attempt the pending
// insert.  The claims unique key is the only arbiter between concurrent
// attempts on the same cell; there is no application-level lock anywhere
// in this flow.
type ClaimHandler struct {
	Store      ClaimStore      // claims table access
	Gateway    CheckoutGateway // external checkout sessions
	PriceCents uint32          // fixed price of one cell
	Currency   string          // currency of the fixed price
	Window     time.Duration   // reservation validity window
}

// NewClaimHandler constructs a ClaimHandler.  Store and Gateway must be
// non-nil.
func NewClaimHandler(store ClaimStore, gateway CheckoutGateway, priceCents uint32, currency string, window time.Duration) *ClaimHandler {
	if store == nil || gateway == nil {
		panic("nil dependency passed to NewClaimHandler")
	}
	return &ClaimHandler{
		Store:      store,
		Gateway:    gateway,
		PriceCents: priceCents,
		Currency:   currency,
		Window:     window,
	}
}

// Reserve handles POST /claim.  The request body carries the cell's short
// id and the client's anonymous fingerprint.  On success it returns 201
// with the checkout URL the browser should be sent to, the transaction id
// the client must keep as its proof of ownership, and the reservation
// deadline.  A cell that is already claimed or was just won by a
// concurrent request returns 409; that is an expected outcome and the
// caller should offer the user a different cell.
func (h *ClaimHandler) Reserve(c echo.Context) error {
	var body struct {
		CellID      string `json:"cell_id"`
		Fingerprint string `json:"fingerprint"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	cell := grid.Resolve(body.CellID)
	if cell == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid cell id"})
	}
	fingerprint := strings.TrimSpace(body.Fingerprint)
	if fingerprint == "" || len(fingerprint) > maxFingerprintLen {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "fingerprint is required"})
	}

	ctx := c.Request().Context()

	// Clear expired reservations first so the uniqueness check below sees
	// the smallest possible set of live rows.
	if _, err := h.Store.DeleteExpired(ctx); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	now := time.Now().UTC()
	existing, err := h.Store.GetByCell(ctx, cell.ShortID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	// An expired pending row is logically free; the insert below settles
	// who actually gets the cell.
	if existing != nil && !existing.ExpiredAt(now) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "cell already claimed"})
	}

	// Open the checkout session before inserting so the pending row can
	// carry the transaction id.  If the insert loses the race the session
	// is orphaned: it will never match a pending row, the webhook becomes
	// a no-op, and the gateway's own session timeout voids it.
	session, err := h.Gateway.CreateCheckout(ctx, h.PriceCents, h.Currency, payment.Metadata{
		CellID:      cell.ShortID,
		Color:       cell.Color,
		Fingerprint: fingerprint,
	})
	if err != nil {
		log.Printf("claim: create checkout for cell %s failed: %v", cell.ShortID, err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment gateway unavailable"})
	}

	reservedAt := now
	reservedUntil := now.Add(h.Window)
	outcome, err := h.Store.InsertPending(ctx, &model.Claim{
		CellID:               cell.ShortID,
		ColorValue:           cell.Color,
		OwnerFingerprint:     fingerprint,
		PaymentTransactionID: session.TransactionID,
		AmountCents:          h.PriceCents,
		PaymentStatus:        model.ClaimStatusPending,
		ReservedAt:           &reservedAt,
		ReservedUntil:        &reservedUntil,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if outcome == repository.InsertConflict {
		// A concurrent reservation won between the pre-check and the
		// insert.  Not a fault; the user just picks another cell.
		return c.JSON(http.StatusConflict, echo.Map{"error": "cell was claimed by a concurrent request"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"checkout_url":   session.RedirectURL,
		"transaction_id": session.TransactionID,
		"reserved_until": reservedUntil.Format(time.RFC3339),
	})
}
