package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/onepwr/procurement-api/internal/domain"
	"gorm.io/gorm"
)

type StatusHistoryRepository struct {
	db *gorm.DB
}

func NewStatusHistoryRepository(db *gorm.DB) *StatusHistoryRepository {
	return &StatusHistoryRepository{db: db}
}

// Create records a new status transition. History is append-only; there are
// deliberately no update or delete methods on this repository.
func (r *StatusHistoryRepository) Create(ctx context.Context, history *domain.PRStatusHistory) error {
	return r.db.WithContext(ctx).Create(history).Error
}

// CreateTx records a transition inside an existing transaction so the history
// entry commits or rolls back together with the status change itself
func (r *StatusHistoryRepository) CreateTx(ctx context.Context, tx *gorm.DB, history *domain.PRStatusHistory) error {
	return tx.WithContext(ctx).Create(history).Error
}

// GetByPurchaseRequest returns all transitions for a PR, newest first
func (r *StatusHistoryRepository) GetByPurchaseRequest(ctx context.Context, prID uuid.UUID) ([]domain.PRStatusHistory, error) {
	var history []domain.PRStatusHistory
	err := r.db.WithContext(ctx).
		Where("purchase_request_id = ?", prID).
		Order("changed_at DESC").
		Find(&history).Error
	return history, err
}

// GetLatest returns the most recent transition for a PR
func (r *StatusHistoryRepository) GetLatest(ctx context.Context, prID uuid.UUID) (*domain.PRStatusHistory, error) {
	var history domain.PRStatusHistory
	err := r.db.WithContext(ctx).
		Where("purchase_request_id = ?", prID).
		Order("changed_at DESC").
		First(&history).Error
	if err != nil {
		return nil, err
	}
	return &history, nil
}

// GetTransitionsToStatus returns transitions into a status within a date range
func (r *StatusHistoryRepository) GetTransitionsToStatus(ctx context.Context, status domain.PRStatus, from, to time.Time) ([]domain.PRStatusHistory, error) {
	var history []domain.PRStatusHistory
	err := r.db.WithContext(ctx).
		Where("to_status = ?", status).
		Where("changed_at >= ? AND changed_at <= ?", from, to).
		Order("changed_at DESC").
		Find(&history).Error
	return history, err
}

// CountTransitionsByStatus returns counts of transitions into each status
// within a date range
func (r *StatusHistoryRepository) CountTransitionsByStatus(ctx context.Context, from, to time.Time) (map[domain.PRStatus]int64, error) {
	type result struct {
		ToStatus domain.PRStatus
		Count    int64
	}
	var results []result

	err := r.db.WithContext(ctx).Model(&domain.PRStatusHistory{}).
		Select("to_status, COUNT(*) as count").
		Where("changed_at >= ? AND changed_at <= ?", from, to).
		Group("to_status").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.PRStatus]int64)
	for _, res := range results {
		counts[res.ToStatus] = res.Count
	}
	return counts, nil
}
