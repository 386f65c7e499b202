package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/onepwr/procurement-api/internal/auth"
	"github.com/onepwr/procurement-api/internal/domain"
	"github.com/onepwr/procurement-api/internal/repository"
	"github.com/onepwr/procurement-api/internal/service"
	"github.com/onepwr/procurement-api/internal/testutil"
)

func newUserEnv(t *testing.T) (*service.UserService, *env) {
	t.Helper()
	e := newEnv(t)
	return service.NewUserService(repository.NewUserRepository(e.db), zap.NewNop()), e
}

func TestRecordLoginCreatesRecord(t *testing.T) {
	svc, e := newUserEnv(t)

	// First login creates the directory record
	ctx := auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID:         uuid.New(),
		DisplayName:    "Teboho Makara",
		Email:          "teboho@1pwrafrica.com",
		OrganizationID: testutil.TestOrgID,
	})
	require.NoError(t, svc.RecordLogin(ctx))

	res, err := svc.List(e.as(e.staff), 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.TotalCount)
}

func TestRecordLogin(t *testing.T) {
	svc, e := newUserEnv(t)
	ctx := e.as(e.requestor)

	require.NoError(t, svc.RecordLogin(ctx))

	dto, err := svc.GetCurrent(ctx)
	require.NoError(t, err)
	// Permission level and organization are directory-owned and preserved
	assert.Equal(t, e.requestor.PermissionLevel, dto.PermissionLevel)
	assert.Equal(t, testutil.TestOrgID, dto.OrganizationID)

	var stored domain.User
	require.NoError(t, e.db.First(&stored, "id = ?", e.requestor.ID).Error)
	assert.NotNil(t, stored.LastLoginAt)
}

func TestSetPermissionLevel(t *testing.T) {
	svc, e := newUserEnv(t)

	// Procurement staff may not manage permissions
	_, err := svc.SetPermissionLevel(e.as(e.staff), e.requestor.ID, domain.PermissionOrgApprover, "")
	assert.ErrorIs(t, err, service.ErrPermissionDenied)

	dto, err := svc.SetPermissionLevel(e.as(e.admin), e.requestor.ID, domain.PermissionOrgApprover, "")
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionOrgApprover, dto.PermissionLevel)
}

func TestDeactivateRemovesFromApproverPool(t *testing.T) {
	svc, e := newUserEnv(t)

	approvers, err := svc.ListApprovers(e.as(e.admin), testutil.TestOrgID, domain.PermissionOrgApprover)
	require.NoError(t, err)
	require.Len(t, approvers, 1)

	require.NoError(t, svc.Deactivate(e.as(e.admin), e.orgApprover.ID))

	approvers, err = svc.ListApprovers(e.as(e.admin), testutil.TestOrgID, domain.PermissionOrgApprover)
	require.NoError(t, err)
	assert.Empty(t, approvers)
}

func TestListUsersScoped(t *testing.T) {
	svc, e := newUserEnv(t)

	res, err := svc.List(e.as(e.staff), 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.TotalCount)
}
