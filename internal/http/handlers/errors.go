// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses (via the `fail()` helper in this package). These codes provide
// clients with a stable, machine-readable error taxonomy that supplements
// human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthorized, conflict) mirror common
//     HTTP status semantics to aid interoperability.
//   - Domain-specific codes (e.g., window_closed, idempotency_key_reuse) are
//     reserved for business outcomes that cannot be conveyed by status alone.
//   - All error responses must include both an HTTP status and one of these codes.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "window_closed",
//	  "message": "too close to the appointment start"
//	}
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
	ErrCodeMissingTenant      = "missing_tenant"
	ErrCodeTenantMismatch     = "tenant_mismatch"
	ErrCodeEmployeeInactive   = "employee_inactive"
	ErrCodeWindowClosed       = "window_closed"
	ErrCodeNotActive          = "not_active"
	ErrCodeKeyReuse           = "idempotency_key_reuse"
	ErrCodeLimiterUnavailable = "rate_limiter_unavailable"
	ErrCodeCreateFailed       = "create_failed"
	ErrCodeListFailed         = "list_failed"
	ErrCodeMethodNotAllowed   = "method_not_allowed"
)
