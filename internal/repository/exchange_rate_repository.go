package repository

import (
	"context"

	"github.com/onepwr/procurement-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ExchangeRateRepository struct {
	db *gorm.DB
}

func NewExchangeRateRepository(db *gorm.DB) *ExchangeRateRepository {
	return &ExchangeRateRepository{db: db}
}

// GetRate returns the stored rate for the pair, or gorm.ErrRecordNotFound.
// The currency service handles reverse-pair inversion; this is the raw lookup.
func (r *ExchangeRateRepository) GetRate(ctx context.Context, from, to string) (*domain.ExchangeRate, error) {
	var rate domain.ExchangeRate
	err := r.db.WithContext(ctx).
		Where("from_currency = ? AND to_currency = ?", from, to).
		First(&rate).Error
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

// Upsert writes a rate, replacing any existing rate for the pair
func (r *ExchangeRateRepository) Upsert(ctx context.Context, rate *domain.ExchangeRate) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "from_currency"}, {Name: "to_currency"}},
			DoUpdates: clause.AssignmentColumns([]string{"rate", "updated_at"}),
		}).
		Create(rate).Error
}

func (r *ExchangeRateRepository) List(ctx context.Context) ([]domain.ExchangeRate, error) {
	var rates []domain.ExchangeRate
	err := r.db.WithContext(ctx).
		Order("from_currency ASC, to_currency ASC").
		Find(&rates).Error
	return rates, err
}
