package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/pixelhue/pixel-mosaic/internal/model"
)

// ClaimRepo provides data access to the claims table.  It exposes exactly
// the primitives the claim lifecycle needs: insert-if-absent for creation,
// a compound-key conditional update for confirmation, a predicate bulk
// delete for expiry cleanup, and keyed/full selects for reads.  All
// coordination between concurrent requests happens through these
// statements; there is no application-level locking.  Timestamps are
// stored and compared in UTC (the connection uses parseTime=true&loc=UTC
// and predicates use UTC_TIMESTAMP()).
type ClaimRepo struct {
	db *sql.DB
}

// NewClaimRepo returns a new ClaimRepo bound to the provided database.
func NewClaimRepo(db *sql.DB) *ClaimRepo { return &ClaimRepo{db: db} }

// DB exposes the underlying handle for callers that need to compose
// transactions or health checks.
func (r *ClaimRepo) DB() *sql.DB { return r.db }

// InsertOutcome is the tagged result of an insert-if-absent attempt.  The
// unique key on claims.cell_id is the sole arbiter between concurrent
// reservation attempts, so the two outcomes are part of normal control
// flow rather than errors.
type InsertOutcome int

const (
	// InsertCreated means the pending reservation row was created and the
	// caller won the cell.
	InsertCreated InsertOutcome = iota
	// InsertConflict means a row for the cell already existed, either a
	// completed claim or a concurrent reservation that won the race.
	InsertConflict
)

const dbTimeLayout = "2006-01-02 15:04:05"

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// InsertPending attempts to create the pending reservation row for a cell.
// A duplicate-key violation is reported as InsertConflict with a nil error;
// every other failure is returned as-is.  The claim must carry CellID,
// ColorValue, OwnerFingerprint, PaymentTransactionID, AmountCents,
// ReservedAt and ReservedUntil.
func (r *ClaimRepo) InsertPending(ctx context.Context, c *model.Claim) (InsertOutcome, error) {
	const q = `INSERT INTO claims
	           (cell_id, color_value, owner_fingerprint, payment_transaction_id,
	            amount_cents, payment_status, reserved_at, reserved_until)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		c.CellID, c.ColorValue, c.OwnerFingerprint, c.PaymentTransactionID,
		c.AmountCents, string(model.ClaimStatusPending),
		c.ReservedAt.UTC().Format(dbTimeLayout),
		c.ReservedUntil.UTC().Format(dbTimeLayout),
	)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return InsertConflict, nil
		}
		return InsertConflict, err
	}
	return InsertCreated, nil
}

// Finalize transitions a pending reservation to completed.  The update
// matches on the (cell_id, payment_transaction_id, status) compound key so
// stale or mismatched confirmations touch nothing, and it deliberately does
// not check reserved_until: a confirmation that lands after the nominal
// expiry still wins as long as the cleanup pass has not deleted the row.
// It returns true when a row transitioned and false when nothing matched
// (unknown cell, mismatched transaction, or an already-completed claim).
func (r *ClaimRepo) Finalize(ctx context.Context, cellID, transactionID, paymentID string) (bool, error) {
	const q = `UPDATE claims
	           SET payment_status = ?, confirmed_payment_id = ?,
	               claimed_at = UTC_TIMESTAMP(), reserved_at = NULL, reserved_until = NULL
	           WHERE cell_id = ? AND payment_transaction_id = ? AND payment_status = ?`
	res, err := r.db.ExecContext(ctx, q,
		string(model.ClaimStatusCompleted), paymentID,
		cellID, transactionID, string(model.ClaimStatusPending),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteExpired removes every reservation that is both still pending and
// past its expiry, returning the number of rows deleted.  It is a single
// bulk delete by predicate rather than a read-then-delete sequence, so it
// can never remove a row that Finalize completed in between: a completed
// row no longer satisfies the status predicate.  Safe to call concurrently
// with itself and with every other method.
func (r *ClaimRepo) DeleteExpired(ctx context.Context) (int64, error) {
	const q = `DELETE FROM claims
	           WHERE payment_status = ? AND reserved_until <= UTC_TIMESTAMP()`
	res, err := r.db.ExecContext(ctx, q, string(model.ClaimStatusPending))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const claimColumns = `cell_id, color_value, owner_fingerprint, payment_transaction_id,
	confirmed_payment_id, amount_cents, payment_status, reserved_at, reserved_until,
	claimed_at, custom_color_name, owner_display_name, blurb, personalized_at`

// GetByCell returns the claim row for a cell, or ErrNotFound when no row
// exists.  Callers are responsible for treating an expired pending row as
// logically absent (model.Claim.ExpiredAt).
func (r *ClaimRepo) GetByCell(ctx context.Context, cellID string) (*model.Claim, error) {
	const q = `SELECT ` + claimColumns + ` FROM claims WHERE cell_id = ?`
	c, err := scanClaim(r.db.QueryRowContext(ctx, q, cellID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListAll returns every claim row, pending and completed, ordered by cell
// id for deterministic output.  Expired pending rows may still appear if
// the cleanup pass has not run; callers that need the logical view should
// run DeleteExpired first.
func (r *ClaimRepo) ListAll(ctx context.Context) ([]model.Claim, error) {
	const q = `SELECT ` + claimColumns + ` FROM claims ORDER BY cell_id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	claims := make([]model.Claim, 0)
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return claims, nil
}

// SetPersonalization overwrites the personalization fields of a completed
// claim.  Possession of the exact checkout transaction id is the only
// authorization: when the row is missing or the stored transaction id does
// not match, ErrNotFound is returned; when the row is still pending,
// ErrPaymentNotConfirmed.  Repeated calls simply overwrite (last write
// wins) and personalized_at is refreshed on every call.  The update itself
// re-checks the compound key so a concurrent cleanup or mismatch cannot
// slip a write onto the wrong row.  Returns the updated claim.
func (r *ClaimRepo) SetPersonalization(ctx context.Context, cellID, transactionID, colorName, displayName, blurb string) (*model.Claim, error) {
	cur, err := r.GetByCell(ctx, cellID)
	if err != nil {
		return nil, err
	}
	if cur.PaymentTransactionID != transactionID {
		return nil, ErrNotFound
	}
	if !cur.Completed() {
		return nil, ErrPaymentNotConfirmed
	}
	const q = `UPDATE claims
	           SET custom_color_name = ?, owner_display_name = ?, blurb = ?,
	               personalized_at = UTC_TIMESTAMP()
	           WHERE cell_id = ? AND payment_transaction_id = ? AND payment_status = ?`
	if _, err := r.db.ExecContext(ctx, q,
		colorName, displayName, blurb,
		cellID, transactionID, string(model.ClaimStatusCompleted),
	); err != nil {
		return nil, err
	}
	return r.GetByCell(ctx, cellID)
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanClaim.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanClaim reads one claims row, converting nullable columns to pointers.
func scanClaim(s rowScanner) (*model.Claim, error) {
	var (
		c              model.Claim
		status         string
		confirmedID    sql.NullString
		reservedAt     sql.NullTime
		reservedUntil  sql.NullTime
		claimedAt      sql.NullTime
		colorName      sql.NullString
		displayName    sql.NullString
		blurb          sql.NullString
		personalizedAt sql.NullTime
	)
	if err := s.Scan(
		&c.CellID, &c.ColorValue, &c.OwnerFingerprint, &c.PaymentTransactionID,
		&confirmedID, &c.AmountCents, &status, &reservedAt, &reservedUntil,
		&claimedAt, &colorName, &displayName, &blurb, &personalizedAt,
	); err != nil {
		return nil, err
	}
	c.PaymentStatus = model.ClaimStatus(status)
	if confirmedID.Valid {
		v := confirmedID.String
		c.ConfirmedPaymentID = &v
	}
	if reservedAt.Valid {
		t := reservedAt.Time.UTC()
		c.ReservedAt = &t
	}
	if reservedUntil.Valid {
		t := reservedUntil.Time.UTC()
		c.ReservedUntil = &t
	}
	if claimedAt.Valid {
		t := claimedAt.Time.UTC()
		c.ClaimedAt = &t
	}
	if colorName.Valid {
		v := colorName.String
		c.CustomColorName = &v
	}
	if displayName.Valid {
		v := displayName.String
		c.OwnerDisplayName = &v
	}
	if blurb.Valid {
		v := blurb.String
		c.Blurb = &v
	}
	if personalizedAt.Valid {
		t := personalizedAt.Time.UTC()
		c.PersonalizedAt = &t
	}
	return &c, nil
}
