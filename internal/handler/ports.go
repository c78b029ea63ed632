// Package handler exposes the HTTP handlers for the mosaic claim API.  The
// handlers own the request flow (validation, ordering of store calls,
// status mapping) and depend on the store and gateway through the small
// interfaces in this file, which the concrete repository and payment
// client satisfy.  Tests exercise the same flow against mocks and an
// in-memory store.
package handler

import (
	"context"

	"github.com/pixelhue/pixel-mosaic/internal/model"
	"github.com/pixelhue/pixel-mosaic/internal/payment"
	"github.com/pixelhue/pixel-mosaic/internal/repository"
)

// ClaimStore is the set of storage primitives the claim lifecycle needs.
// All cross-request coordination lives behind these methods: insert-if-
// absent arbitration, compound-key confirmation, and predicate-delete
// cleanup.  *repository.ClaimRepo is the production implementation.
type ClaimStore interface {
	// InsertPending creates the pending reservation row, reporting a
	// duplicate cell as InsertConflict rather than an error.
	InsertPending(ctx context.Context, c *model.Claim) (repository.InsertOutcome, error)
	// Finalize completes a pending claim matched by (cell, transaction).
	// It ignores expiry on purpose; see the confirmation handler.
	Finalize(ctx context.Context, cellID, transactionID, paymentID string) (bool, error)
	// DeleteExpired removes every reservation that is both pending and past
	// its window, returning the count.
	DeleteExpired(ctx context.Context) (int64, error)
	// GetByCell returns the row for a cell or repository.ErrNotFound.
	GetByCell(ctx context.Context, cellID string) (*model.Claim, error)
	// ListAll returns every row, pending and completed.
	ListAll(ctx context.Context) ([]model.Claim, error)
	// SetPersonalization overwrites the personalization fields of a
	// completed claim authorized by its transaction id.
	SetPersonalization(ctx context.Context, cellID, transactionID, colorName, displayName, blurb string) (*model.Claim, error)
}

// CheckoutGateway creates external checkout sessions.  *payment.Client is
// the production implementation.
type CheckoutGateway interface {
	CreateCheckout(ctx context.Context, amountCents uint32, currency string, meta payment.Metadata) (*payment.CheckoutSession, error)
}
