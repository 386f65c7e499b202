package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/onepwr/procurement-api/internal/domain"
	"github.com/onepwr/procurement-api/internal/repository"
	"github.com/onepwr/procurement-api/internal/service"
	"github.com/onepwr/procurement-api/internal/testutil"
	"github.com/onepwr/procurement-api/internal/workflow"
)

func newCurrency(t *testing.T) *service.CurrencyService {
	t.Helper()
	db := testutil.SetupTestDB(t)
	testutil.SeedExchangeRate(t, db, "USD", "LSL", 18.5)
	return service.NewCurrencyService(repository.NewExchangeRateRepository(db), zap.NewNop())
}

func TestConvert(t *testing.T) {
	svc := newCurrency(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		amount float64
		from   string
		to     string
		want   float64
	}{
		{"same currency is identity", 123.45, "LSL", "LSL", 123.45},
		{"direct rate", 10, "USD", "LSL", 185},
		{"inverted reverse pair", 185, "LSL", "USD", 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Convert(ctx, tt.amount, tt.from, tt.to)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestConvertMissingRate(t *testing.T) {
	svc := newCurrency(t)

	_, err := svc.Convert(context.Background(), 100, "EUR", "GBP")
	assert.ErrorIs(t, err, workflow.ErrNoExchangeRate)
}

func TestUpsertRate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := service.NewCurrencyService(repository.NewExchangeRateRepository(db), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, svc.UpsertRate(ctx, &domain.ExchangeRate{
		FromCurrency: "zar",
		ToCurrency:   "lsl",
		Rate:         1.0,
	}))

	rates, err := svc.ListRates(ctx)
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, "ZAR", rates[0].FromCurrency)
	assert.Equal(t, "LSL", rates[0].ToCurrency)

	// Replacing the pair updates in place
	require.NoError(t, svc.UpsertRate(ctx, &domain.ExchangeRate{
		FromCurrency: "ZAR",
		ToCurrency:   "LSL",
		Rate:         1.02,
	}))
	rates, err = svc.ListRates(ctx)
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.InDelta(t, 1.02, rates[0].Rate, 1e-9)

	got, err := svc.Convert(ctx, 50, "ZAR", "LSL")
	require.NoError(t, err)
	assert.InDelta(t, 51, got, 1e-9)
}

func TestUpsertRateRejectsSamePair(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := service.NewCurrencyService(repository.NewExchangeRateRepository(db), zap.NewNop())

	err := svc.UpsertRate(context.Background(), &domain.ExchangeRate{
		FromCurrency: "LSL",
		ToCurrency:   "lsl",
		Rate:         1,
	})
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}
