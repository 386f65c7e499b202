package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/onepwr/procurement-api/internal/domain"
	"gorm.io/gorm"
)

type PurchaseRequestRepository struct {
	db *gorm.DB
}

func NewPurchaseRequestRepository(db *gorm.DB) *PurchaseRequestRepository {
	return &PurchaseRequestRepository{db: db}
}

// DB exposes the underlying handle for transaction composition in services
func (r *PurchaseRequestRepository) DB() *gorm.DB {
	return r.db
}

func (r *PurchaseRequestRepository) Create(ctx context.Context, pr *domain.PurchaseRequest) error {
	return r.db.WithContext(ctx).Create(pr).Error
}

// GetByID loads a PR with its quotes and both history collections
func (r *PurchaseRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PurchaseRequest, error) {
	var pr domain.PurchaseRequest
	err := r.db.WithContext(ctx).
		Preload("Quotes").
		Preload("PreferredVendor").
		Preload("Approver").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("changed_at DESC")
		}).
		Preload("ApprovalHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		First(&pr, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

// GetByIDForUpdate loads a PR with a row lock inside an existing transaction.
// Quotes are preloaded because every workflow decision reads them.
func (r *PurchaseRequestRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.PurchaseRequest, error) {
	var pr domain.PurchaseRequest
	err := tx.WithContext(ctx).
		Set("gorm:query_option", "FOR UPDATE").
		First(&pr, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	if err := tx.WithContext(ctx).Where("purchase_request_id = ?", id).Find(&pr.Quotes).Error; err != nil {
		return nil, err
	}
	return &pr, nil
}

func (r *PurchaseRequestRepository) GetByNumber(ctx context.Context, number string) (*domain.PurchaseRequest, error) {
	var pr domain.PurchaseRequest
	err := r.db.WithContext(ctx).
		Preload("Quotes").
		First(&pr, "pr_number = ?", number).Error
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

// List returns PRs matching the filter. Urgent requests sort first, then
// newest first; urgency never affects workflow logic, only ordering.
func (r *PurchaseRequestRepository) List(ctx context.Context, filter *domain.PRListFilter) ([]domain.PurchaseRequest, int64, error) {
	var prs []domain.PurchaseRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.PurchaseRequest{})
	query = r.applyFilters(query, filter)
	if filter == nil || filter.OrganizationID == "" {
		// Fall back to the caller's effective scope when no explicit filter
		query = ApplyOrganizationScope(ctx, query)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := 1, DefaultPageSize
	if filter != nil {
		page, pageSize = NormalizePagination(filter.Page, filter.PageSize)
	}

	err := query.
		Preload("Quotes").
		Order("is_urgent DESC, created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&prs).Error

	return prs, total, err
}

func (r *PurchaseRequestRepository) applyFilters(query *gorm.DB, filter *domain.PRListFilter) *gorm.DB {
	if filter == nil {
		return query
	}
	if filter.OrganizationID != "" {
		query = query.Where("organization_id = ?", filter.OrganizationID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.RequestorID != nil {
		query = query.Where("requestor_id = ?", *filter.RequestorID)
	}
	if filter.ApproverID != nil {
		query = query.Where("approver_id = ?", *filter.ApproverID)
	}
	return query
}

func (r *PurchaseRequestRepository) Update(ctx context.Context, pr *domain.PurchaseRequest) error {
	return r.db.WithContext(ctx).Save(pr).Error
}

// UpdateTx saves a PR inside an existing transaction
func (r *PurchaseRequestRepository) UpdateTx(ctx context.Context, tx *gorm.DB, pr *domain.PurchaseRequest) error {
	return tx.WithContext(ctx).Save(pr).Error
}

// Delete removes a PR and cascades to quotes. Only drafts may be deleted;
// everything else is canceled through the workflow instead.
func (r *PurchaseRequestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.PurchaseRequest{}, "id = ?", id).Error
}

// CountByStatus returns PR counts per status for an organization
func (r *PurchaseRequestRepository) CountByStatus(ctx context.Context, orgID string) (map[domain.PRStatus]int64, error) {
	type result struct {
		Status domain.PRStatus
		Count  int64
	}
	var results []result

	query := r.db.WithContext(ctx).Model(&domain.PurchaseRequest{}).
		Select("status, COUNT(*) as count")
	if orgID != "" {
		query = query.Where("organization_id = ?", orgID)
	}
	if err := query.Group("status").Scan(&results).Error; err != nil {
		return nil, err
	}

	counts := make(map[domain.PRStatus]int64)
	for _, res := range results {
		counts[res.Status] = res.Count
	}
	return counts, nil
}

// NumberExists reports whether a PR or PO number is already taken
func (r *PurchaseRequestRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.PurchaseRequest{}).
		Where("pr_number = ?", number).
		Count(&count).Error
	return count > 0, err
}
