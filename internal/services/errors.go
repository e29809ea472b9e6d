// Package services defines the business logic for approval steps and the
// notification feed. This file centralizes common service-level error values
// so that they can be consistently returned by service methods and checked
// by callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

// Approval-step errors.
var (
	// ErrStepNotFound indicates the requested approval step does not exist.
	ErrStepNotFound = errors.New("approval step not found")

	// ErrEmptyPatch is returned when an update request carries no fields.
	ErrEmptyPatch = errors.New("patch contains no fields")

	// ErrInvalidState is returned when a patch carries an unknown step state.
	ErrInvalidState = errors.New("unknown approval step state")

	// ErrBlockedReasonRequired is returned when a step is moved to BLOCKED
	// without a reason.
	ErrBlockedReasonRequired = errors.New("a blocked step requires a reason")

	// ErrCollaboratorNotFound indicates an assignment referenced a
	// collaborator that does not exist. An approval step must never
	// reference a nonexistent collaborator; the whole mutation is rolled
	// back.
	ErrCollaboratorNotFound = errors.New("collaborator not found")

	// ErrTeamUserNotFound indicates an assignment referenced a team user
	// that does not exist.
	ErrTeamUserNotFound = errors.New("team user not found")
)

// Notification feed errors.
var (
	// ErrNotificationNotFound indicates the requested notification does not
	// exist or is soft-deleted.
	ErrNotificationNotFound = errors.New("notification not found")
)
