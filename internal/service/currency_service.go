package service

import (
	"context"
	"strings"

	"github.com/onepwr/procurement-api/internal/domain"
	"github.com/onepwr/procurement-api/internal/repository"
	"github.com/onepwr/procurement-api/internal/workflow"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CurrencyService converts amounts between currencies using stored exchange
// rates. It satisfies the workflow's CurrencyConverter contract: identity for
// same-currency, direct rate first, reverse-pair inversion as fallback, and
// a reference-data error when neither direction is available.
type CurrencyService struct {
	rates  *repository.ExchangeRateRepository
	logger *zap.Logger
}

// NewCurrencyService creates a new CurrencyService
func NewCurrencyService(rates *repository.ExchangeRateRepository, logger *zap.Logger) *CurrencyService {
	return &CurrencyService{rates: rates, logger: logger}
}

// Convert converts amount from one currency code to another
func (s *CurrencyService) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	if from == to {
		return amount, nil
	}

	rate, err := s.rates.GetRate(ctx, from, to)
	if err == nil {
		return amount * rate.Rate, nil
	}
	if err != gorm.ErrRecordNotFound {
		return 0, err
	}

	// Fall back to inverting the reverse pair
	reverse, err := s.rates.GetRate(ctx, to, from)
	if err == gorm.ErrRecordNotFound {
		s.logger.Warn("no exchange rate for currency pair",
			zap.String("from", from),
			zap.String("to", to))
		return 0, workflow.NewReferenceDataError("exchange_rate_missing",
			"no exchange rate available for %s/%s", from, to)
	}
	if err != nil {
		return 0, err
	}
	if reverse.Rate == 0 {
		return 0, workflow.NewReferenceDataError("exchange_rate_missing",
			"stored %s/%s rate is zero", to, from)
	}

	return amount / reverse.Rate, nil
}

// UpsertRate stores or replaces a rate for a currency pair
func (s *CurrencyService) UpsertRate(ctx context.Context, rate *domain.ExchangeRate) error {
	rate.FromCurrency = strings.ToUpper(rate.FromCurrency)
	rate.ToCurrency = strings.ToUpper(rate.ToCurrency)
	if rate.FromCurrency == rate.ToCurrency {
		return ErrInvalidInput
	}
	return s.rates.Upsert(ctx, rate)
}

// ListRates returns all stored rates
func (s *CurrencyService) ListRates(ctx context.Context) ([]domain.ExchangeRate, error) {
	return s.rates.List(ctx)
}
