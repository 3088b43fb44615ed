package services

import "errors"

// Shared sentinel errors, mapped to HTTP statuses in the handlers package.
var (
	// Validation (login surface; surfaced inline, never fatal).
	ErrNameRequired           = errors.New("please enter your name")
	ErrInvalidAdminPassphrase = errors.New("incorrect admin password")
	ErrAdminNameReserved      = errors.New("this username belongs to an admin, please use admin login")

	// Authorization.
	ErrAdminRequired = errors.New("operation requires an admin user")

	// Referential.
	ErrUserNotFound       = errors.New("user not found")
	ErrContestNotFound    = errors.New("contest not found")
	ErrContestantNotFound = errors.New("contestant not found")
	ErrUnknownCriterion   = errors.New("unknown criterion")
	ErrSessionNotFound    = errors.New("session not found")

	// Business rules.
	ErrVotingClosed = errors.New("voting is closed for this contest")

	// Operational.
	ErrBackupNotConfigured = errors.New("backup storage is not configured")
	ErrStoreUnavailable    = errors.New("data store unavailable, please try again")
)
