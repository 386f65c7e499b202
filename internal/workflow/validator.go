package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/onepwr/procurement-api/internal/domain"
)

// Collaborator contracts. The validator and resolver operate purely on
// in-memory entities; everything they need from the outside world comes
// through these interfaces.

// CurrencyConverter converts an amount between currency codes.
// Same-currency conversion is identity; a missing rate in both directions
// yields ErrNoExchangeRate.
type CurrencyConverter interface {
	Convert(ctx context.Context, amount float64, from, to string) (float64, error)
}

// RuleSource returns an organization's approval rules ordered ascending by
// threshold. An empty slice means no policy is configured.
type RuleSource interface {
	RulesForOrganization(ctx context.Context, orgID string) ([]domain.Rule, error)
}

// ApproverDirectory resolves users eligible to approve for an organization
type ApproverDirectory interface {
	// EligibleApprovers returns active users at the organization holding the
	// given permission level. Global approvers (level 1) are always included
	// regardless of organization.
	EligibleApprovers(ctx context.Context, orgID string, level domain.PermissionLevel) ([]domain.User, error)
	// UserByID resolves a single user; ErrNotFound when absent
	UserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	// LastAssignedAt returns when the user was last assigned as an approver,
	// or nil if never
	LastAssignedAt(ctx context.Context, userID uuid.UUID) (*time.Time, error)
}

// VendorApprovalOracle answers whether a vendor is pre-approved
type VendorApprovalOracle interface {
	IsVendorApproved(ctx context.Context, vendorID uuid.UUID) (bool, error)
}

// DefaultVendorExemptionFloor is the amount (in the rule base currency)
// below which an unapproved preferred vendor is tolerated
const DefaultVendorExemptionFloor = 1000

// Validator decides whether a PR may move into an approval-relevant status.
// Business-rule violations are accumulated and returned in a
// ValidationResult; the only raised errors are reference-data failures that
// make validation impossible.
type Validator struct {
	converter CurrencyConverter
	directory ApproverDirectory
	vendors   VendorApprovalOracle

	// vendorExemptionFloor overrides DefaultVendorExemptionFloor when > 0
	vendorExemptionFloor float64
}

// NewValidator creates an approval validator over the given collaborators
func NewValidator(converter CurrencyConverter, directory ApproverDirectory, vendors VendorApprovalOracle) *Validator {
	return &Validator{
		converter:            converter,
		directory:            directory,
		vendors:              vendors,
		vendorExemptionFloor: DefaultVendorExemptionFloor,
	}
}

// SetVendorExemptionFloor overrides the low-value vendor exemption amount
func (v *Validator) SetVendorExemptionFloor(floor float64) {
	if floor > 0 {
		v.vendorExemptionFloor = floor
	}
}

// Validate checks the PR against the organization's rules for a transition
// to the target status. All applicable violations are collected so the
// caller can display the full list; only the organization mismatch
// short-circuits.
func (v *Validator) Validate(ctx context.Context, pr *domain.PurchaseRequest, rules []domain.Rule, actor *domain.User, target domain.PRStatus) (*ValidationResult, error) {
	if len(rules) == 0 {
		return nil, ErrNoRulesConfigured
	}

	// Step 1: organization match short-circuits everything else
	for i := range rules {
		if rules[i].OrganizationID != pr.OrganizationID {
			return invalid(fmt.Sprintf(
				"approval rules belong to organization %s, not %s",
				rules[i].OrganizationID, pr.OrganizationID)), nil
		}
	}

	if len(rules) < 2 {
		return nil, ErrIncompleteRules
	}
	rule1, rule2 := rules[0], rules[1]

	// Step 2: normalize the comparison amount into the lower rule's currency.
	// The lowest quote wins over the estimate when quotes exist: competitive
	// quoting is rewarded.
	amount, err := v.comparisonAmount(ctx, pr, rule1.Currency)
	if err != nil {
		return nil, err
	}

	var errs []string

	// Step 3: actor permission. Violations accumulate, they do not
	// short-circuit the remaining checks.
	switch target {
	case domain.PRStatusPendingApproval:
		if !actor.PermissionLevel.CanMoveToApproval() {
			errs = append(errs, fmt.Sprintf(
				"user %s (level %d) may not move a request into the approval stage; procurement admin or global approver required",
				actor.DisplayName, actor.PermissionLevel))
		}
	case domain.PRStatusApproved:
		if !pr.IsAssignedApprover(actor.ID) {
			errs = append(errs, fmt.Sprintf(
				"user %s is not the designated approver for %s", actor.DisplayName, pr.Number))
		}
	}

	// Step 4: tiered quote-count requirement. Quotes without attachments are
	// silently excluded from the count.
	required, vendorExemptionApplied, qErr := v.requiredQuotes(ctx, pr, amount, rule1, rule2)
	if qErr != nil {
		return nil, qErr
	}
	attached := pr.AttachedQuoteCount()
	if attached < required {
		if amount >= rule2.Threshold {
			errs = append(errs, fmt.Sprintf(
				"%d quotes with supporting documents are required above %.2f %s, no vendor exception; found %d",
				required, rule2.Threshold, rule2.Currency, attached))
		} else if vendorExemptionApplied {
			errs = append(errs, fmt.Sprintf(
				"%d quote(s) with supporting documents required for a pre-approved vendor; found %d",
				required, attached))
		} else {
			errs = append(errs, fmt.Sprintf(
				"%d quotes with supporting documents are required; found %d (pre-approved vendors need only %d)",
				required, attached, rule1.QuotesBelowApprovedVendor))
		}
	}

	// Step 5: approver pool health for the organization
	if poolErrs, err := v.checkApproverPool(ctx, pr.OrganizationID, amount, rule1.Threshold); err != nil {
		return nil, err
	} else {
		errs = append(errs, poolErrs...)
	}

	// Step 6: preferred vendor must be pre-approved at or above the
	// low-value exemption floor
	if pr.PreferredVendorID != nil && amount >= v.vendorExemptionFloor {
		approved, err := v.vendors.IsVendorApproved(ctx, *pr.PreferredVendorID)
		if err != nil {
			return nil, err
		}
		if !approved {
			errs = append(errs, fmt.Sprintf(
				"preferred vendor is not pre-approved; approval requires a pre-approved vendor for amounts of %.2f %s and above",
				v.vendorExemptionFloor, rule1.Currency))
		}
	}

	// Step 7: adjudication notes for high-value approvals
	if target == domain.PRStatusApproved && amount >= rule2.Threshold &&
		strings.TrimSpace(pr.AdjudicationNotes) == "" {
		errs = append(errs, fmt.Sprintf(
			"adjudication notes are required to approve amounts at or above %.2f %s",
			rule2.Threshold, rule2.Currency))
	}

	return &ValidationResult{Valid: len(errs) == 0, Errors: errs}, nil
}

// comparisonAmount picks the lowest quote amount when quotes exist,
// otherwise the estimate, converted into the target currency
func (v *Validator) comparisonAmount(ctx context.Context, pr *domain.PurchaseRequest, currency string) (float64, error) {
	amount := pr.EstimatedAmount
	from := pr.Currency
	if q := pr.LowestQuote(); q != nil {
		amount = q.Amount
		from = q.Currency
	}
	return v.converter.Convert(ctx, amount, from, currency)
}

// requiredQuotes applies the two-tier quote policy. Threshold comparisons
// are inclusive: an amount exactly at a threshold takes the above branch.
func (v *Validator) requiredQuotes(ctx context.Context, pr *domain.PurchaseRequest, amount float64, rule1, rule2 domain.Rule) (required int, vendorExemption bool, err error) {
	switch {
	case amount >= rule2.Threshold:
		return rule2.QuotesAboveThreshold, false, nil
	case amount >= rule1.Threshold:
		if pr.PreferredVendorID != nil {
			approved, err := v.vendors.IsVendorApproved(ctx, *pr.PreferredVendorID)
			if err != nil {
				return 0, false, err
			}
			if approved {
				return rule1.QuotesBelowApprovedVendor, true, nil
			}
		}
		return rule1.QuotesBelowDefault, false, nil
	default:
		return 0, false, nil
	}
}

// checkApproverPool verifies the organization has someone who could approve
// at the given amount, independent of who is acting right now
func (v *Validator) checkApproverPool(ctx context.Context, orgID string, amount, elevationThreshold float64) ([]string, error) {
	var pool []domain.User
	for _, level := range []domain.PermissionLevel{
		domain.PermissionGlobalApprover,
		domain.PermissionOrgApprover,
		domain.PermissionProcurement,
	} {
		users, err := v.directory.EligibleApprovers(ctx, orgID, level)
		if err != nil {
			return nil, err
		}
		pool = append(pool, users...)
	}

	if len(pool) == 0 {
		return []string{fmt.Sprintf("organization %s has no eligible approvers", orgID)}, nil
	}

	if amount >= elevationThreshold {
		// Procurement-tier users cannot approve above the first threshold
		elevated := false
		for i := range pool {
			if pool[i].PermissionLevel == domain.PermissionGlobalApprover ||
				pool[i].PermissionLevel == domain.PermissionOrgApprover {
				elevated = true
				break
			}
		}
		if !elevated {
			return []string{fmt.Sprintf(
				"organization %s has no approver with sufficient authority for this amount", orgID)}, nil
		}
	}
	return nil, nil
}
