// Package queue defines message payloads exchanged over the message broker.
package queue

// ClaimCompletedEvent is published when a payment confirmation finalizes a
// claim.  It carries enough information for downstream consumers to log,
// notify, or feed a live "recent claims" ticker without querying the
// primary database.  It deliberately omits the owner fingerprint and the
// checkout transaction id: the former is never displayed and the latter is
// the ownership credential.
type ClaimCompletedEvent struct {
	CellID      string `json:"cell_id"`
	Color       string `json:"color"`
	GridRow     int    `json:"grid_row"`
	GridCol     int    `json:"grid_col"`
	AmountCents uint32 `json:"amount_cents"`
	PaymentID   string `json:"payment_id"`
	ClaimedAt   string `json:"claimed_at"`
}
