// Package repository provides data access to the claims table.  This file
// defines sentinel errors shared by the repository methods.  These values
// allow handlers to distinguish failure scenarios with errors.Is, so the
// control flow around contention and authorization is type-checked rather
// than string-matched on driver error text.
package repository

import "errors"

// ErrNotFound is returned when no claim row matches the requested cell, or
// when the supplied checkout transaction id does not match the stored one.
// The two cases are deliberately indistinguishable to callers: the
// transaction id is the ownership credential, and a mismatch must not
// reveal whether the cell is claimed.  Handlers should translate this
// into an HTTP 404 response.
var ErrNotFound = errors.New("claim not found")

// ErrPaymentNotConfirmed is returned when an operation requires a completed
// claim but the row is still pending payment confirmation.  Handlers
// should translate this into an HTTP 409 response.
var ErrPaymentNotConfirmed = errors.New("payment not confirmed")
