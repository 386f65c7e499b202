package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/onepwr/procurement-api/internal/domain"
	"gorm.io/gorm"
)

type ApprovalHistoryRepository struct {
	db *gorm.DB
}

func NewApprovalHistoryRepository(db *gorm.DB) *ApprovalHistoryRepository {
	return &ApprovalHistoryRepository{db: db}
}

// Create appends an assignment or decision entry. Like status history, this
// collection is append-only.
func (r *ApprovalHistoryRepository) Create(ctx context.Context, item *domain.ApprovalHistoryItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// CreateTx appends an entry inside an existing transaction
func (r *ApprovalHistoryRepository) CreateTx(ctx context.Context, tx *gorm.DB, item *domain.ApprovalHistoryItem) error {
	return tx.WithContext(ctx).Create(item).Error
}

// GetByPurchaseRequest returns the approval trail for a PR, newest first
func (r *ApprovalHistoryRepository) GetByPurchaseRequest(ctx context.Context, prID uuid.UUID) ([]domain.ApprovalHistoryItem, error) {
	var items []domain.ApprovalHistoryItem
	err := r.db.WithContext(ctx).
		Where("purchase_request_id = ?", prID).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// GetByApprover returns recent entries for an approver across PRs
func (r *ApprovalHistoryRepository) GetByApprover(ctx context.Context, approverID uuid.UUID, limit int) ([]domain.ApprovalHistoryItem, error) {
	var items []domain.ApprovalHistoryItem
	err := r.db.WithContext(ctx).
		Where("approver_id = ?", approverID).
		Order("created_at DESC").
		Limit(limit).
		Find(&items).Error
	return items, err
}
