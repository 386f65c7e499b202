package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/onepwr/procurement-api/internal/domain"
	"gorm.io/gorm"
)

type QuoteRepository struct {
	db *gorm.DB
}

func NewQuoteRepository(db *gorm.DB) *QuoteRepository {
	return &QuoteRepository{db: db}
}

func (r *QuoteRepository) Create(ctx context.Context, quote *domain.Quote) error {
	return r.db.WithContext(ctx).Create(quote).Error
}

func (r *QuoteRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Quote, error) {
	var quote domain.Quote
	err := r.db.WithContext(ctx).First(&quote, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// ListByPurchaseRequest returns all quotes for a PR, lowest amount first
func (r *QuoteRepository) ListByPurchaseRequest(ctx context.Context, prID uuid.UUID) ([]domain.Quote, error) {
	var quotes []domain.Quote
	err := r.db.WithContext(ctx).
		Where("purchase_request_id = ?", prID).
		Order("amount ASC").
		Find(&quotes).Error
	return quotes, err
}

// AppendAttachment adds a storage URI to the quote's attachment list
func (r *QuoteRepository) AppendAttachment(ctx context.Context, id uuid.UUID, uri string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quote domain.Quote
		if err := tx.First(&quote, "id = ?", id).Error; err != nil {
			return err
		}
		quote.Attachments = append(quote.Attachments, uri)
		return tx.Model(&quote).Update("attachments", pq.StringArray(quote.Attachments)).Error
	})
}

func (r *QuoteRepository) Update(ctx context.Context, quote *domain.Quote) error {
	return r.db.WithContext(ctx).Save(quote).Error
}

func (r *QuoteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Quote{}, "id = ?", id).Error
}
