package service

import "errors"

// Common service errors
var (
	// ErrPermissionDenied is returned when a user doesn't have permission for an action
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when there's a conflict (e.g., duplicate)
	ErrConflict = errors.New("resource conflict")

	// ErrUnauthorized is returned when user is not authenticated
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = errors.New("user not found")

	// ErrOrganizationNotFound is returned when an organization is not found
	ErrOrganizationNotFound = errors.New("organization not found")

	// ErrVendorNotFound is returned when a vendor is not found
	ErrVendorNotFound = errors.New("vendor not found")

	// ErrNotEditable is returned when a PR may no longer be edited in its
	// current status by the acting user
	ErrNotEditable = errors.New("purchase request is not editable in its current status")

	// ErrNumberExhausted is returned when PR number generation keeps
	// colliding after the configured number of attempts
	ErrNumberExhausted = errors.New("could not generate a unique request number")
)
