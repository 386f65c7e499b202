package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/onepwr/procurement-api/internal/repository"
	"github.com/onepwr/procurement-api/internal/service"
)

func TestSyncReceiptsWithoutErp(t *testing.T) {
	e := newEnv(t)
	svc := service.NewReceiptSyncService(nil, repository.NewPurchaseRequestRepository(e.db), e.prs, zap.NewNop())

	synced, failed, err := svc.SyncReceipts(context.Background())
	assert.ErrorIs(t, err, service.ErrErpNotAvailable)
	assert.Zero(t, synced)
	assert.Zero(t, failed)
}

func TestReceiptSyncHealthWithoutErp(t *testing.T) {
	e := newEnv(t)
	svc := service.NewReceiptSyncService(nil, repository.NewPurchaseRequestRepository(e.db), e.prs, zap.NewNop())

	status := svc.HealthCheck(context.Background())
	assert.Equal(t, "disabled", status.Status)
}
