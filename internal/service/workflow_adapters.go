package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/onepwr/procurement-api/internal/domain"
	"github.com/onepwr/procurement-api/internal/repository"
	"github.com/onepwr/procurement-api/internal/workflow"
	"gorm.io/gorm"
)

// Thin adapters binding the repositories to the workflow package's
// collaborator contracts. The workflow core never sees gorm.

type approverDirectory struct {
	users *repository.UserRepository
}

func (d *approverDirectory) EligibleApprovers(ctx context.Context, orgID string, level domain.PermissionLevel) ([]domain.User, error) {
	return d.users.EligibleApprovers(ctx, orgID, level)
}

func (d *approverDirectory) UserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := d.users.GetByID(ctx, id)
	if err == gorm.ErrRecordNotFound {
		return nil, workflow.ErrNotFound
	}
	return user, err
}

func (d *approverDirectory) LastAssignedAt(ctx context.Context, userID uuid.UUID) (*time.Time, error) {
	return d.users.LastAssignedAt(ctx, userID)
}

type ruleSource struct {
	rules *repository.RuleRepository
}

func (s *ruleSource) RulesForOrganization(ctx context.Context, orgID string) ([]domain.Rule, error) {
	return s.rules.ListForOrganization(ctx, orgID)
}

type vendorOracle struct {
	vendors *repository.VendorRepository
}

// IsVendorApproved treats unknown or deactivated vendors as unapproved
// rather than failing validation outright
func (o *vendorOracle) IsVendorApproved(ctx context.Context, vendorID uuid.UUID) (bool, error) {
	vendor, err := o.vendors.GetByID(ctx, vendorID)
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return vendor.IsActive && vendor.IsApproved, nil
}
