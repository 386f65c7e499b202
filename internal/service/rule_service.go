package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/onepwr/procurement-api/internal/auth"
	"github.com/onepwr/procurement-api/internal/domain"
	"github.com/onepwr/procurement-api/internal/mapper"
	"github.com/onepwr/procurement-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RuleService manages approval rule tiers. The validator reads rules as an
// ascending-by-threshold list and needs at least two tiers before approval
// transitions can pass, so rule management is restricted to reference-data
// admins.
type RuleService struct {
	rules  *repository.RuleRepository
	orgs   *repository.OrganizationRepository
	logger *zap.Logger
}

// NewRuleService creates a new RuleService
func NewRuleService(rules *repository.RuleRepository, orgs *repository.OrganizationRepository, logger *zap.Logger) *RuleService {
	return &RuleService{rules: rules, orgs: orgs, logger: logger}
}

// Create adds a rule tier for an organization
func (s *RuleService) Create(ctx context.Context, req *domain.CreateRuleRequest) (*domain.RuleDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !userCtx.CanManageReferenceData() {
		return nil, ErrPermissionDenied
	}
	if !userCtx.CanAccessOrganization(req.OrganizationID) {
		return nil, ErrPermissionDenied
	}

	if _, err := s.orgs.GetByID(ctx, req.OrganizationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}

	// All tiers for an organization share one currency; mixed-currency
	// thresholds would make the tier ordering ambiguous
	existing, err := s.rules.ListForOrganization(ctx, req.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing rules: %w", err)
	}
	currency := strings.ToUpper(req.Currency)
	for i := range existing {
		if existing[i].Currency != currency {
			return nil, fmt.Errorf("%w: rule currency %s does not match existing rules (%s)",
				ErrInvalidInput, currency, existing[i].Currency)
		}
		if existing[i].Threshold == req.Threshold {
			return nil, fmt.Errorf("%w: a rule with threshold %.2f already exists",
				ErrConflict, req.Threshold)
		}
	}

	rule := &domain.Rule{
		OrganizationID:            req.OrganizationID,
		Threshold:                 req.Threshold,
		Currency:                  currency,
		QuotesAboveThreshold:      req.QuotesAboveThreshold,
		QuotesBelowApprovedVendor: req.QuotesBelowApprovedVendor,
		QuotesBelowDefault:        req.QuotesBelowDefault,
		ProcurementLimit:          req.ProcurementLimit,
		FinanceAdminLimit:         req.FinanceAdminLimit,
		CEOLimit:                  req.CEOLimit,
		IsActive:                  true,
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}

	s.logger.Info("approval rule created",
		zap.String("ruleID", rule.ID.String()),
		zap.String("organizationID", rule.OrganizationID),
		zap.Float64("threshold", rule.Threshold))

	dto := mapper.ToRuleDTO(rule)
	return &dto, nil
}

// ListForOrganization returns an organization's active rules, lowest
// threshold first
func (s *RuleService) ListForOrganization(ctx context.Context, orgID string) ([]domain.RuleDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !userCtx.CanAccessOrganization(orgID) {
		return nil, ErrPermissionDenied
	}

	rules, err := s.rules.ListForOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}

	dtos := make([]domain.RuleDTO, len(rules))
	for i := range rules {
		dtos[i] = mapper.ToRuleDTO(&rules[i])
	}
	return dtos, nil
}

// Update modifies a rule tier
func (s *RuleService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateRuleRequest) (*domain.RuleDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !userCtx.CanManageReferenceData() {
		return nil, ErrPermissionDenied
	}

	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load rule: %w", err)
	}
	if !userCtx.CanAccessOrganization(rule.OrganizationID) {
		return nil, ErrPermissionDenied
	}

	if req.Threshold != nil {
		rule.Threshold = *req.Threshold
	}
	if req.Currency != nil {
		rule.Currency = strings.ToUpper(*req.Currency)
	}
	if req.QuotesAboveThreshold != nil {
		rule.QuotesAboveThreshold = *req.QuotesAboveThreshold
	}
	if req.QuotesBelowApprovedVendor != nil {
		rule.QuotesBelowApprovedVendor = *req.QuotesBelowApprovedVendor
	}
	if req.QuotesBelowDefault != nil {
		rule.QuotesBelowDefault = *req.QuotesBelowDefault
	}
	if req.ProcurementLimit != nil {
		rule.ProcurementLimit = *req.ProcurementLimit
	}
	if req.FinanceAdminLimit != nil {
		rule.FinanceAdminLimit = *req.FinanceAdminLimit
	}
	if req.CEOLimit != nil {
		rule.CEOLimit = *req.CEOLimit
	}

	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}

	s.logger.Info("approval rule updated", zap.String("ruleID", id.String()))
	dto := mapper.ToRuleDTO(rule)
	return &dto, nil
}

// Deactivate retires a rule tier
func (s *RuleService) Deactivate(ctx context.Context, id uuid.UUID) error {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return ErrUserContextRequired
	}
	if !userCtx.CanManageReferenceData() {
		return ErrPermissionDenied
	}

	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load rule: %w", err)
	}
	if !userCtx.CanAccessOrganization(rule.OrganizationID) {
		return ErrPermissionDenied
	}

	if err := s.rules.Deactivate(ctx, id); err != nil {
		return fmt.Errorf("failed to deactivate rule: %w", err)
	}
	s.logger.Info("approval rule deactivated", zap.String("ruleID", id.String()))
	return nil
}
