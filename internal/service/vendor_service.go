package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/onepwr/procurement-api/internal/auth"
	"github.com/onepwr/procurement-api/internal/domain"
	"github.com/onepwr/procurement-api/internal/mapper"
	"github.com/onepwr/procurement-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// VendorService manages the vendor register. Pre-approval status is the
// reference data the quote requirements hinge on, so mutations are limited
// to reference-data admins.
type VendorService struct {
	vendors *repository.VendorRepository
	orgs    *repository.OrganizationRepository
	logger  *zap.Logger
}

// NewVendorService creates a new VendorService
func NewVendorService(vendors *repository.VendorRepository, orgs *repository.OrganizationRepository, logger *zap.Logger) *VendorService {
	return &VendorService{vendors: vendors, orgs: orgs, logger: logger}
}

// Create registers a new vendor for an organization
func (s *VendorService) Create(ctx context.Context, req *domain.CreateVendorRequest) (*domain.VendorDTO, error) {
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

	vendor := &domain.Vendor{
		Name:           req.Name,
		OrganizationID: req.OrganizationID,
		ContactEmail:   req.ContactEmail,
		ContactPhone:   req.ContactPhone,
		IsApproved:     req.IsApproved,
		IsActive:       true,
	}
	if err := s.vendors.Create(ctx, vendor); err != nil {
		return nil, fmt.Errorf("failed to create vendor: %w", err)
	}

	s.logger.Info("vendor created",
		zap.String("vendorID", vendor.ID.String()),
		zap.String("name", vendor.Name),
		zap.Bool("approved", vendor.IsApproved))

	dto := mapper.ToVendorDTO(vendor)
	return &dto, nil
}

// GetByID returns a single vendor
func (s *VendorService) GetByID(ctx context.Context, id uuid.UUID) (*domain.VendorDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	vendor, err := s.vendors.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVendorNotFound
		}
		return nil, fmt.Errorf("failed to load vendor: %w", err)
	}
	if !userCtx.CanAccessOrganization(vendor.OrganizationID) {
		return nil, ErrPermissionDenied
	}

	dto := mapper.ToVendorDTO(vendor)
	return &dto, nil
}

// List returns active vendors, scoped to the caller's organization
func (s *VendorService) List(ctx context.Context, approvedOnly bool, page, pageSize int) (*domain.ListResponse[domain.VendorDTO], error) {
	if _, ok := auth.FromContext(ctx); !ok {
		return nil, ErrUserContextRequired
	}

	orgID := auth.GetEffectiveOrganizationFilter(ctx)
	vendors, total, err := s.vendors.List(ctx, orgID, approvedOnly, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}

	dtos := make([]domain.VendorDTO, len(vendors))
	for i := range vendors {
		dtos[i] = mapper.ToVendorDTO(&vendors[i])
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	return &domain.ListResponse[domain.VendorDTO]{
		Items:      dtos,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// SetApproved flips a vendor's pre-approval flag
func (s *VendorService) SetApproved(ctx context.Context, id uuid.UUID, approved bool) (*domain.VendorDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !userCtx.CanManageReferenceData() {
		return nil, ErrPermissionDenied
	}

	vendor, err := s.vendors.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVendorNotFound
		}
		return nil, fmt.Errorf("failed to load vendor: %w", err)
	}
	if !userCtx.CanAccessOrganization(vendor.OrganizationID) {
		return nil, ErrPermissionDenied
	}

	if err := s.vendors.SetApproved(ctx, id, approved); err != nil {
		return nil, fmt.Errorf("failed to update vendor approval: %w", err)
	}

	s.logger.Info("vendor approval changed",
		zap.String("vendorID", id.String()),
		zap.Bool("approved", approved),
		zap.String("actorID", userCtx.UserID.String()))

	return s.GetByID(ctx, id)
}

// Deactivate retires a vendor. Deactivated vendors no longer qualify as
// pre-approved for validation purposes.
func (s *VendorService) Deactivate(ctx context.Context, id uuid.UUID) error {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return ErrUserContextRequired
	}
	if !userCtx.CanManageReferenceData() {
		return ErrPermissionDenied
	}

	vendor, err := s.vendors.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrVendorNotFound
		}
		return fmt.Errorf("failed to load vendor: %w", err)
	}
	if !userCtx.CanAccessOrganization(vendor.OrganizationID) {
		return ErrPermissionDenied
	}

	if err := s.vendors.Deactivate(ctx, id); err != nil {
		return fmt.Errorf("failed to deactivate vendor: %w", err)
	}
	s.logger.Info("vendor deactivated", zap.String("vendorID", id.String()))
	return nil
}
