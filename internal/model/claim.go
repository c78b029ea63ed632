package model

import "time"

// ClaimStatus enumerates the payment states a claim row can be in.  A third
// implicit state, "never reserved", is represented by the absence of a row.
type ClaimStatus string

const (
	// ClaimStatusPending marks a reservation awaiting payment confirmation.
	ClaimStatusPending ClaimStatus = "PENDING"
	// ClaimStatusCompleted marks a finalized, permanently owned claim.
	ClaimStatusCompleted ClaimStatus = "COMPLETED"
)

// Claim records the reservation or completed ownership of a single grid
// cell.  At most one row exists per cell; the claims.cell_id unique key is
// the only arbiter between concurrent claim attempts.  Status only ever
// moves PENDING -> COMPLETED.
//
// Fields:
//
//	CellID               – short id of the claimed cell (unique key).
//	ColorValue           – denormalized copy of the cell's color.
//	OwnerFingerprint     – opaque anonymous claimant id; never displayed.
//	PaymentTransactionID – checkout transaction created at reservation time.
//	ConfirmedPaymentID   – finalized payment id; set only on completion.
//	AmountCents          – fixed claim price in minor currency units.
//	PaymentStatus        – PENDING or COMPLETED.
//	ReservedAt           – when the pending reservation was created.
//	ReservedUntil        – reservation expiry; nil once completed.
//	ClaimedAt            – when the claim completed.
//	CustomColorName      – optional name given by the owner.
//	OwnerDisplayName     – optional public display name.
//	Blurb                – optional short free-text note (<= 280 code points).
//	PersonalizedAt       – when personalization fields were last written.
type Claim struct {
	CellID               string
	ColorValue           string
	OwnerFingerprint     string
	PaymentTransactionID string
	ConfirmedPaymentID   *string
	AmountCents          uint32
	PaymentStatus        ClaimStatus
	ReservedAt           *time.Time
	ReservedUntil        *time.Time
	ClaimedAt            *time.Time
	CustomColorName      *string
	OwnerDisplayName     *string
	Blurb                *string
	PersonalizedAt       *time.Time
}

// Completed reports whether the claim's payment has been confirmed.
func (c *Claim) Completed() bool { return c.PaymentStatus == ClaimStatusCompleted }

// ExpiredAt reports whether the claim is a pending reservation whose window
// has lapsed at the given instant.  Such rows are logically free: readers
// and writers must treat them as absent even before the cleanup pass
// physically deletes them.
func (c *Claim) ExpiredAt(now time.Time) bool {
	return c.PaymentStatus == ClaimStatusPending &&
		c.ReservedUntil != nil && !c.ReservedUntil.After(now)
}
