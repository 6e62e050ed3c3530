// Package services defines the business logic of the booking core. This file
// centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the
// handler layer. ErrNotFound deliberately covers both "does not exist" and
// "belongs to another tenant" so that responses never leak cross-tenant
// existence.
package services

import "errors"

var (
	// ErrNotFound indicates that a referenced entity is absent or not
	// accessible to the current tenant.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInterval is returned when a requested interval is malformed
	// (end not after start, or not expressible on the slot grid).
	ErrInvalidInterval = errors.New("end must be after start")

	// ErrEmployeeInactive is returned when a booking targets an employee
	// whose calendar is closed.
	ErrEmployeeInactive = errors.New("employee is not active")

	// ErrConflict is returned when the requested interval overlaps an
	// existing pending/confirmed appointment for the same employee. It is a
	// terminal business outcome: retrying the same slot cannot succeed.
	ErrConflict = errors.New("interval conflicts with an existing appointment")

	// ErrWindowClosed is returned when a cancellation or reschedule arrives
	// inside the minimum-notice window.
	ErrWindowClosed = errors.New("too close to the appointment start")

	// ErrNotActive is returned when a cancel/reschedule targets an
	// appointment that is already canceled or done.
	ErrNotActive = errors.New("appointment is not active")

	// ErrInvalidInput is returned when reference-data input fails validation
	// (blank names, non-positive durations, negative prices).
	ErrInvalidInput = errors.New("invalid input")
)
