package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/onepwr/procurement-api/internal/domain"
	"gorm.io/gorm"
)

type VendorRepository struct {
	db *gorm.DB
}

func NewVendorRepository(db *gorm.DB) *VendorRepository {
	return &VendorRepository{db: db}
}

func (r *VendorRepository) Create(ctx context.Context, vendor *domain.Vendor) error {
	return r.db.WithContext(ctx).Create(vendor).Error
}

func (r *VendorRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Vendor, error) {
	var vendor domain.Vendor
	err := r.db.WithContext(ctx).First(&vendor, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &vendor, nil
}

// List returns vendors for an organization, optionally only pre-approved ones
func (r *VendorRepository) List(ctx context.Context, orgID string, approvedOnly bool, page, pageSize int) ([]domain.Vendor, int64, error) {
	var vendors []domain.Vendor
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Vendor{}).Where("is_active = ?", true)
	if orgID != "" {
		query = query.Where("organization_id = ?", orgID)
	}
	if approvedOnly {
		query = query.Where("is_approved = ?", true)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("name ASC").Offset(offset).Limit(pageSize).Find(&vendors).Error
	return vendors, total, err
}

func (r *VendorRepository) Update(ctx context.Context, vendor *domain.Vendor) error {
	return r.db.WithContext(ctx).Save(vendor).Error
}

// SetApproved flips the vendor's pre-approval flag
func (r *VendorRepository) SetApproved(ctx context.Context, id uuid.UUID, approved bool) error {
	return r.db.WithContext(ctx).Model(&domain.Vendor{}).
		Where("id = ?", id).
		Update("is_approved", approved).Error
}

// Deactivate soft-deletes a vendor; quotes referencing it stay intact
func (r *VendorRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&domain.Vendor{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}
