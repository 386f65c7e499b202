package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/onepwr/procurement-api/internal/domain"
	"github.com/onepwr/procurement-api/internal/repository"
	"github.com/onepwr/procurement-api/internal/service"
	"github.com/onepwr/procurement-api/internal/testutil"
)

func newNumbering(t *testing.T, maxAttempts int) (*service.NumberingService, *repository.PurchaseRequestRepository) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	testutil.SeedOrganization(t, db)
	prRepo := repository.NewPurchaseRequestRepository(db)
	seqRepo := repository.NewNumberSequenceRepository(db)
	return service.NewNumberingService(seqRepo, prRepo, maxAttempts, zap.NewNop()), prRepo
}

func thisPeriod() int {
	now := time.Now().UTC()
	return now.Year()*100 + int(now.Month())
}

func TestGeneratePRNumberSequence(t *testing.T) {
	svc, _ := newNumbering(t, 5)
	ctx := context.Background()
	period := thisPeriod()

	first, err := svc.GeneratePRNumber(ctx, testutil.TestOrgID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("PR-%06d-001", period), first)

	second, err := svc.GeneratePRNumber(ctx, testutil.TestOrgID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("PR-%06d-002", period), second)

	// Sequences are independent per organization
	other, err := svc.GeneratePRNumber(ctx, "1PWR_BEN")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("PR-%06d-001", period), other)
}

func TestGeneratePRNumberSkipsCollisions(t *testing.T) {
	svc, prRepo := newNumbering(t, 5)
	ctx := context.Background()
	period := thisPeriod()

	// Imported legacy data already occupies the next number
	require.NoError(t, prRepo.Create(ctx, &domain.PurchaseRequest{
		Number:          fmt.Sprintf("PR-%06d-001", period),
		OrganizationID:  testutil.TestOrgID,
		Status:          domain.PRStatusDraft,
		EstimatedAmount: 100,
		Currency:        "LSL",
		RequestorID:     uuid.New(),
	}))

	number, err := svc.GeneratePRNumber(ctx, testutil.TestOrgID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("PR-%06d-002", period), number)
}

func TestGeneratePRNumberExhaustsAttempts(t *testing.T) {
	svc, prRepo := newNumbering(t, 1)
	ctx := context.Background()
	period := thisPeriod()

	require.NoError(t, prRepo.Create(ctx, &domain.PurchaseRequest{
		Number:          fmt.Sprintf("PR-%06d-001", period),
		OrganizationID:  testutil.TestOrgID,
		Status:          domain.PRStatusDraft,
		EstimatedAmount: 100,
		Currency:        "LSL",
		RequestorID:     uuid.New(),
	}))

	_, err := svc.GeneratePRNumber(ctx, testutil.TestOrgID)
	assert.ErrorIs(t, err, service.ErrNumberExhausted)
}

func TestInitializeSequence(t *testing.T) {
	svc, _ := newNumbering(t, 5)
	ctx := context.Background()
	period := thisPeriod()

	require.NoError(t, svc.InitializeSequence(ctx, testutil.TestOrgID, period, 41))

	current, err := svc.GetCurrentSequence(ctx, testutil.TestOrgID, period)
	require.NoError(t, err)
	assert.Equal(t, 41, current)

	number, err := svc.GeneratePRNumber(ctx, testutil.TestOrgID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("PR-%06d-042", period), number)

	// Initialization never rewinds an existing sequence
	require.NoError(t, svc.InitializeSequence(ctx, testutil.TestOrgID, period, 10))
	current, err = svc.GetCurrentSequence(ctx, testutil.TestOrgID, period)
	require.NoError(t, err)
	assert.Equal(t, 42, current)
}

func TestRedesignateAsPO(t *testing.T) {
	svc, _ := newNumbering(t, 5)

	tests := []struct {
		name   string
		number string
		want   string
	}{
		{"request number", "PR-202608-004", "PO-202608-004"},
		{"already re-designated", "PO-202608-004", "PO-202608-004"},
		{"unprefixed passes through", "202608-004", "202608-004"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.RedesignateAsPO(tt.number))
		})
	}
}
