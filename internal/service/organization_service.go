package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/onepwr/procurement-api/internal/auth"
	"github.com/onepwr/procurement-api/internal/domain"
	"github.com/onepwr/procurement-api/internal/mapper"
	"github.com/onepwr/procurement-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OrganizationService manages the operating organizations. Only global
// approvers may create or edit organizations.
type OrganizationService struct {
	orgs   *repository.OrganizationRepository
	logger *zap.Logger
}

// NewOrganizationService creates a new OrganizationService
func NewOrganizationService(orgs *repository.OrganizationRepository, logger *zap.Logger) *OrganizationService {
	return &OrganizationService{orgs: orgs, logger: logger}
}

// Create registers a new operating organization
func (s *OrganizationService) Create(ctx context.Context, org *domain.Organization) (*domain.OrganizationDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !userCtx.IsGlobalApprover() {
		return nil, ErrPermissionDenied
	}
	if strings.TrimSpace(org.ID) == "" || strings.TrimSpace(org.Name) == "" {
		return nil, fmt.Errorf("%w: organization id and name are required", ErrInvalidInput)
	}

	if _, err := s.orgs.GetByID(ctx, org.ID); err == nil {
		return nil, fmt.Errorf("%w: organization %s already exists", ErrConflict, org.ID)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check organization: %w", err)
	}

	if org.BaseCurrency == "" {
		org.BaseCurrency = "LSL"
	}
	org.BaseCurrency = strings.ToUpper(org.BaseCurrency)
	org.IsActive = true

	if err := s.orgs.Create(ctx, org); err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	s.logger.Info("organization created",
		zap.String("organizationID", org.ID),
		zap.String("name", org.Name))

	dto := mapper.ToOrganizationDTO(org)
	return &dto, nil
}

// GetByID returns a single organization
func (s *OrganizationService) GetByID(ctx context.Context, id string) (*domain.OrganizationDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !userCtx.CanAccessOrganization(id) {
		return nil, ErrPermissionDenied
	}

	org, err := s.orgs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}

	dto := mapper.ToOrganizationDTO(org)
	return &dto, nil
}

// List returns active organizations visible to the caller. Global approvers
// see all; everyone else only their own.
func (s *OrganizationService) List(ctx context.Context) ([]domain.OrganizationDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	orgs, err := s.orgs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}

	var dtos []domain.OrganizationDTO
	for i := range orgs {
		if !userCtx.CanAccessOrganization(orgs[i].ID) {
			continue
		}
		dtos = append(dtos, mapper.ToOrganizationDTO(&orgs[i]))
	}
	return dtos, nil
}

// Update edits an organization's name, base currency or active flag
func (s *OrganizationService) Update(ctx context.Context, org *domain.Organization) (*domain.OrganizationDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !userCtx.IsGlobalApprover() {
		return nil, ErrPermissionDenied
	}

	existing, err := s.orgs.GetByID(ctx, org.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}

	if org.Name != "" {
		existing.Name = org.Name
	}
	if org.BaseCurrency != "" {
		existing.BaseCurrency = strings.ToUpper(org.BaseCurrency)
	}
	existing.IsActive = org.IsActive

	if err := s.orgs.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}

	s.logger.Info("organization updated", zap.String("organizationID", org.ID))
	dto := mapper.ToOrganizationDTO(existing)
	return &dto, nil
}
