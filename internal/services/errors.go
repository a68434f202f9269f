// Package services defines the business logic for quiz analysis, user and
// credit accounting, and compatibility reports. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

// Authentication errors.
var (
	// ErrMissingToken is returned when no bearer token accompanies a request
	// that requires one.
	ErrMissingToken = errors.New("missing auth token")

	// ErrInvalidToken is returned when the supplied bearer token matches no
	// user.
	ErrInvalidToken = errors.New("invalid auth token")
)

// Analysis errors.
var (
	// ErrInvalidRunID is returned when a run identifier is not a UUID.
	ErrInvalidRunID = errors.New("invalid run id")

	// ErrRunNotFound indicates the requested run does not exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrResultNotFound indicates no stored result exists for the run.
	ErrResultNotFound = errors.New("result not found")

	// ErrInvalidLockedTriple is returned when a client-supplied locked
	// archetype fails validation against the closed enumerations. Unlike
	// resolver output failures this is a client error.
	ErrInvalidLockedTriple = errors.New("invalid locked archetype")

	// ErrFullLocked is returned when full profile content is requested
	// without the full entitlement.
	ErrFullLocked = errors.New("full profile locked")
)

// User and purchase errors.
var (
	// ErrIdentityRequired is returned when neither email nor telegram is
	// supplied at registration.
	ErrIdentityRequired = errors.New("email or telegram required")

	// ErrProfileRequired is returned when a new registration lacks name or
	// language.
	ErrProfileRequired = errors.New("name and lang required")

	// ErrAmbiguousIdentity is returned when the supplied email and telegram
	// belong to different existing users.
	ErrAmbiguousIdentity = errors.New("email and telegram belong to different users")

	// ErrUserNotFound indicates no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrRequestIDUsed is returned when a purchase request id was already
	// consumed by a different user.
	ErrRequestIDUsed = errors.New("request id already used")

	// ErrInvalidPackSize is returned for pack sizes outside the sold set.
	ErrInvalidPackSize = errors.New("invalid pack size")

	// ErrSeedDisabled is returned when dev seeding is requested but not
	// enabled.
	ErrSeedDisabled = errors.New("dev seeding disabled")
)

// Compatibility errors.
var (
	// ErrTargetNotFound indicates the target user of a check does not exist.
	ErrTargetNotFound = errors.New("target user not found")

	// ErrSelfCompare is returned when a user requests a report against
	// themselves.
	ErrSelfCompare = errors.New("cannot compare same user")

	// ErrQuizNotCompleted is returned when the requester has no stored
	// result.
	ErrQuizNotCompleted = errors.New("complete test first")

	// ErrInviterQuizNotCompleted is returned on invite acceptance when the
	// inviter has no stored result.
	ErrInviterQuizNotCompleted = errors.New("inviter must complete test first")

	// ErrInsufficientCredits is returned when an operation costing a credit
	// finds the balance below one.
	ErrInsufficientCredits = errors.New("not enough credits")

	// ErrTargetExists is returned when inviting a contact that already has
	// an account; the caller should use a direct check instead.
	ErrTargetExists = errors.New("target user already exists")

	// ErrInviteNotFound indicates no invite carries the supplied token.
	ErrInviteNotFound = errors.New("invite not found")

	// ErrOwnInvite is returned when a user tries to accept their own invite.
	ErrOwnInvite = errors.New("cannot accept own invite")

	// ErrInviteUsed is returned when an invite was already completed by a
	// different invitee.
	ErrInviteUsed = errors.New("invite already used")

	// ErrGenerationFailed wraps an upstream generation error. The attempt
	// is not persisted and no credit is taken, so a later call retries.
	ErrGenerationFailed = errors.New("report generation failed")

	// ErrReportConflict is returned when an idempotency race cannot be
	// recovered by re-reading the winning row.
	ErrReportConflict = errors.New("report already exists")

	// ErrReportMissing indicates a completed invite whose report row is
	// gone; it should not happen outside manual data surgery.
	ErrReportMissing = errors.New("report missing")
)
