// Package errors provides error handling for invar.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// It also defines the sentinel errors for the verification taxonomy. Every
// failure in the engine maps onto exactly one of these sentinels so callers
// can branch with errors.Is() instead of string matching.
//
// Usage:
//
//	// Veto a malformed input
//	return errors.Wrapf(errors.ErrParseFailure, "unexpected token at byte %d", off)
//
//	// Check errors
//	if errors.Is(err, errors.ErrMissingCalibration) {
//	    // refuse to compute, fail closed
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint        = crdb.WithHint
	WithHintf       = crdb.WithHintf
	WithDetail      = crdb.WithDetail
	WithDetailf     = crdb.WithDetailf
	WithSafeDetails = crdb.WithSafeDetails
)

// Error inspection
var (
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	UnwrapAll     = crdb.UnwrapAll
	GetAllDetails = crdb.GetAllDetails
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors for the verification taxonomy.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrParseFailure indicates malformed raw input. Always a veto, never
	// retried internally.
	ErrParseFailure = New("parse failure")

	// ErrValidationFailure indicates structurally valid input that violates
	// the active rule-set. Carries a specific code internally; public-facing
	// callers see only the coarse category.
	ErrValidationFailure = New("validation failure")

	// ErrInconclusive marks a defect sample where one side of a comparison
	// vetoed. Excluded from aggregate statistics, retained in the raw log.
	ErrInconclusive = New("inconclusive sample")

	// ErrMissingCalibration indicates no calibration record exists for the
	// domain. Bond Index computation is refused, never defaulted.
	ErrMissingCalibration = New("missing calibration record")

	// ErrMissingJudge indicates a judge did not respond within the collection
	// timeout. Fail-closed by default for mandatory base judges.
	ErrMissingJudge = New("judge missing")

	// ErrConfigInvalid indicates a governance or engine configuration that
	// fails load-time validation (e.g. weights not summing to 1).
	ErrConfigInvalid = New("invalid configuration")

	// ErrNoAdmissibleOption indicates every candidate option was forbidden
	// by a hard veto.
	ErrNoAdmissibleOption = New("no admissible option")

	// ErrNotFound indicates the requested record does not exist
	ErrNotFound = New("not found")
)

// IsVeto reports whether an error is a canonicalization veto
// (parse or validation failure).
func IsVeto(err error) bool {
	return err != nil && IsAny(err, ErrParseFailure, ErrValidationFailure)
}

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsConfigInvalid checks if an error is or wraps ErrConfigInvalid.
func IsConfigInvalid(err error) bool {
	return err != nil && Is(err, ErrConfigInvalid)
}

// NewValidationError creates a validation veto with a specific failure code.
// The code travels as an error detail so it survives into internal logs
// without leaking into public-facing messages.
func NewValidationError(code string, format string, args ...interface{}) error {
	err := Wrap(ErrValidationFailure, Newf(format, args...).Error())
	return WithDetailf(err, "code=%s", code)
}
