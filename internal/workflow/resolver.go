package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/onepwr/procurement-api/internal/domain"
	"go.uber.org/zap"
)

// Resolution is the outcome of resolving the current approver for a PR.
// The resolver itself never persists: Changed/SelfHealed tell the caller
// what to write back.
type Resolution struct {
	// Approver is the resolved current approver, nil when none can be
	// computed (no rules, empty pool)
	Approver *domain.User
	// Changed is true when the approver differs from the previous
	// assignment and must be persisted with an approval-history entry
	Changed bool
	// SelfHealed is true when the legacy mirror field diverged from the
	// authoritative assignment and was corrected on read
	SelfHealed bool
}

// Resolver decides which concrete user is the current approver for a PR.
// Manual assignment always wins; otherwise an eligible user is selected by
// least-recently-assigned order, which distributes load deterministically.
type Resolver struct {
	directory ApproverDirectory
	rules     RuleSource
	converter CurrencyConverter
	logger    *zap.Logger
}

// NewResolver creates an approver resolver over the given collaborators
func NewResolver(directory ApproverDirectory, rules RuleSource, converter CurrencyConverter, logger *zap.Logger) *Resolver {
	return &Resolver{
		directory: directory,
		rules:     rules,
		converter: converter,
		logger:    logger,
	}
}

// Resolve determines the current approver for the PR. It mutates pr's
// approver fields in memory (manual-assignment mirror heal, computed
// selection) and reports through the Resolution what the caller must
// persist.
func (r *Resolver) Resolve(ctx context.Context, pr *domain.PurchaseRequest) (*Resolution, error) {
	// Manual assignment is the source of truth when it resolves to an
	// active user
	if pr.ApproverID != nil {
		user, err := r.directory.UserByID(ctx, *pr.ApproverID)
		switch {
		case err != nil && !errors.Is(err, ErrNotFound):
			return nil, err
		case err == nil && user.IsActive:
			healed := r.healMirror(pr)
			return &Resolution{Approver: user, SelfHealed: healed}, nil
		default:
			// Assigned approver vanished or was deactivated; fall through to
			// computed selection
			r.logger.Warn("assigned approver no longer eligible, recomputing",
				zap.String("pr", pr.Number),
				zap.String("approverID", pr.ApproverID.String()))
		}
	}

	rules, err := r.rules.RulesForOrganization(ctx, pr.OrganizationID)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		// No policy means no approver can be computed
		return &Resolution{}, nil
	}

	elevated, err := r.requiresElevation(ctx, pr, rules)
	if err != nil {
		return nil, err
	}

	level := domain.PermissionProcurement
	if elevated {
		level = domain.PermissionOrgApprover
	}

	candidates, err := r.directory.EligibleApprovers(ctx, pr.OrganizationID, level)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &Resolution{}, nil
	}

	selected, err := r.leastRecentlyAssigned(ctx, candidates)
	if err != nil {
		return nil, err
	}

	id := selected.ID
	pr.ApproverID = &id
	pr.CurrentApproverID = &id
	pr.WorkflowLastUpdated = time.Now().UTC()

	return &Resolution{Approver: selected, Changed: true}, nil
}

// healMirror corrects divergence between the authoritative approver field
// and the legacy workflow mirror. Divergence is a data-integrity bug; it is
// corrected silently on read and logged for follow-up.
func (r *Resolver) healMirror(pr *domain.PurchaseRequest) bool {
	if pr.ApproverID == nil {
		return false
	}
	if pr.CurrentApproverID != nil && *pr.CurrentApproverID == *pr.ApproverID {
		return false
	}
	r.logger.Warn("approver mirror divergence detected, self-healing",
		zap.String("pr", pr.Number),
		zap.String("approverID", pr.ApproverID.String()))
	id := *pr.ApproverID
	pr.CurrentApproverID = &id
	pr.WorkflowLastUpdated = time.Now().UTC()
	return true
}

// requiresElevation reports whether the PR's amount exceeds any rule
// threshold, requiring an organization-scoped approver rather than
// procurement staff
func (r *Resolver) requiresElevation(ctx context.Context, pr *domain.PurchaseRequest, rules []domain.Rule) (bool, error) {
	for i := range rules {
		amount, err := r.converter.Convert(ctx, pr.EstimatedAmount, pr.Currency, rules[i].Currency)
		if err != nil {
			return false, err
		}
		if amount >= rules[i].Threshold {
			return true, nil
		}
	}
	return false, nil
}

// leastRecentlyAssigned picks the candidate whose last approver assignment
// is oldest; never-assigned users come first. Ties break on user ID so the
// choice is fully deterministic.
func (r *Resolver) leastRecentlyAssigned(ctx context.Context, candidates []domain.User) (*domain.User, error) {
	var best *domain.User
	var bestAt *time.Time
	bestNever := false

	for i := range candidates {
		at, err := r.directory.LastAssignedAt(ctx, candidates[i].ID)
		if err != nil {
			return nil, err
		}
		if best == nil {
			best, bestAt, bestNever = &candidates[i], at, at == nil
			continue
		}
		switch {
		case at == nil && !bestNever:
			best, bestAt, bestNever = &candidates[i], nil, true
		case at == nil && bestNever:
			if lessID(candidates[i].ID.String(), best.ID.String()) {
				best = &candidates[i]
			}
		case at != nil && !bestNever:
			if at.Before(*bestAt) || (at.Equal(*bestAt) && lessID(candidates[i].ID.String(), best.ID.String())) {
				best, bestAt = &candidates[i], at
			}
		}
	}
	return best, nil
}

func lessID(a, b string) bool {
	return strings.Compare(a, b) < 0
}
