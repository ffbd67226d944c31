// Package service provides business logic for the application.
package service

import "errors"

// User-facing outcomes. Every error returned by Humanize wraps exactly one of these.
var (
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrHumanizationFailed  = errors.New("humanization failed")
	ErrJobInProgress       = errors.New("a humanization job is already in progress")
	ErrProfileNotFound     = errors.New("profile not found")
)

// Causes carried alongside the outcomes above.
var (
	ErrMalformedProfile  = errors.New("malformed profile")
	ErrLedgerWriteFailed = errors.New("ledger write failed")
	ErrCreditsExhausted  = errors.New("credits exhausted")
	ErrPersistenceFailed = errors.New("persistence failed")
	ErrJobTimedOut       = errors.New("rewrite job timed out")
	ErrJobFailed         = errors.New("rewrite job failed")
)
