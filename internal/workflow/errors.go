package workflow

import (
	"errors"
	"fmt"

	"github.com/onepwr/procurement-api/internal/domain"
)

// ReferenceDataError signals a configuration problem (missing rules, empty
// approver pool, missing exchange rate) that makes validation impossible.
// It is distinct from business-rule violations, which are returned in a
// ValidationResult and never raised as errors: reference data problems need
// admin action, violations need requester action.
type ReferenceDataError struct {
	Code    string
	Message string
}

func (e *ReferenceDataError) Error() string {
	return e.Message
}

// Is allows errors.Is matching on the code
func (e *ReferenceDataError) Is(target error) bool {
	var other *ReferenceDataError
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// NewReferenceDataError builds a ReferenceDataError with a formatted message
func NewReferenceDataError(code, format string, args ...any) *ReferenceDataError {
	return &ReferenceDataError{Code: code, Message: fmt.Sprintf(format, args...)}
}

var (
	// ErrNoRulesConfigured is returned when an organization has no approval rules
	ErrNoRulesConfigured = &ReferenceDataError{Code: "rules_missing", Message: "no approval rules configured for organization"}

	// ErrIncompleteRules is returned when fewer than two rule tiers exist
	ErrIncompleteRules = &ReferenceDataError{Code: "rules_incomplete", Message: "approval validation requires at least two rule tiers"}

	// ErrNoExchangeRate is returned when neither direction of a currency pair has a rate
	ErrNoExchangeRate = &ReferenceDataError{Code: "exchange_rate_missing", Message: "no exchange rate available for currency pair"}
)

// ErrNotFound is returned when a referenced PR, rule set or user does not resolve
var ErrNotFound = errors.New("referenced entity not found")

// TransitionError is a user-correctable state machine rejection: illegal
// edge, terminal state, unauthorized actor or missing notes. The transition
// is aborted before any state mutation.
type TransitionError struct {
	From   domain.PRStatus
	To     domain.PRStatus
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition %s -> %s: %s", e.From, e.To, e.Reason)
}

// ValidationResult is the approval validator's verdict: a yes/no decision
// plus the accumulated list of human-readable violations
type ValidationResult struct {
	Valid  bool
	Errors []string
}

func invalid(errs ...string) *ValidationResult {
	return &ValidationResult{Valid: false, Errors: errs}
}
