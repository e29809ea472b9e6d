// Package handlers defines HTTP-layer error codes used across all API
// endpoints. Handlers select the most specific matching code and pass it to
// fail() along with the HTTP status and message; clients branch on these
// codes for programmatic error handling.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeInvalidPatch     = "invalid_patch"
	ErrCodeUpdateFailed     = "update_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
