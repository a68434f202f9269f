// Package handlers provides HTTP handler implementations for the public API.
//
// This file lists the stable machine-readable error codes. Clients branch
// on the code, not on the message text, so values here must never change
// once shipped. Most codes mirror their HTTP status; the domain-specific
// ones cover business outcomes a status alone cannot express.
package handlers

const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeUnauthorized    = "unauthorized"
	ErrCodePaymentRequired = "payment_required"
	ErrCodeForbidden       = "forbidden"
	ErrCodeNotFound        = "not_found"
	ErrCodeConflict        = "conflict"
	ErrCodeRateLimited     = "too_many_requests"
	ErrCodeInternal        = "internal_error"

	// Domain-specific:
	ErrCodeFullLocked       = "full_locked"
	ErrCodeAnalysisFailed   = "analysis_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
