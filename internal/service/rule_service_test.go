package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/onepwr/procurement-api/internal/domain"
	"github.com/onepwr/procurement-api/internal/repository"
	"github.com/onepwr/procurement-api/internal/service"
	"github.com/onepwr/procurement-api/internal/testutil"
)

func newRuleEnv(t *testing.T) (*service.RuleService, *env) {
	t.Helper()
	e := newEnv(t)
	svc := service.NewRuleService(
		repository.NewRuleRepository(e.db),
		repository.NewOrganizationRepository(e.db),
		zap.NewNop(),
	)
	return svc, e
}

func TestCreateRulePermissions(t *testing.T) {
	svc, e := newRuleEnv(t)
	req := &domain.CreateRuleRequest{
		OrganizationID:       testutil.TestOrgID,
		Threshold:            100000,
		Currency:             "LSL",
		QuotesAboveThreshold: 3,
	}

	// Procurement staff may not manage reference data
	_, err := svc.Create(e.as(e.staff), req)
	assert.ErrorIs(t, err, service.ErrPermissionDenied)

	dto, err := svc.Create(e.as(e.admin), req)
	require.NoError(t, err)
	assert.Equal(t, 100000.0, dto.Threshold)
	assert.Equal(t, "LSL", dto.Currency)
}

func TestCreateRuleRejectsMixedCurrency(t *testing.T) {
	svc, e := newRuleEnv(t)

	// Seeded tiers are LSL; a ZAR threshold would break tier ordering
	_, err := svc.Create(e.as(e.admin), &domain.CreateRuleRequest{
		OrganizationID: testutil.TestOrgID,
		Threshold:      100000,
		Currency:       "ZAR",
	})
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestCreateRuleRejectsDuplicateThreshold(t *testing.T) {
	svc, e := newRuleEnv(t)

	_, err := svc.Create(e.as(e.admin), &domain.CreateRuleRequest{
		OrganizationID: testutil.TestOrgID,
		Threshold:      5000,
		Currency:       "LSL",
	})
	assert.ErrorIs(t, err, service.ErrConflict)
}

func TestListRulesAscendingByThreshold(t *testing.T) {
	svc, e := newRuleEnv(t)

	rules, err := svc.ListForOrganization(e.as(e.staff), testutil.TestOrgID)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, 5000.0, rules[0].Threshold)
	assert.Equal(t, 50000.0, rules[1].Threshold)
}

func TestDeactivateRuleHidesIt(t *testing.T) {
	svc, e := newRuleEnv(t)

	rules, err := svc.ListForOrganization(e.as(e.admin), testutil.TestOrgID)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	require.NoError(t, svc.Deactivate(e.as(e.admin), rules[0].ID))

	rules, err = svc.ListForOrganization(e.as(e.admin), testutil.TestOrgID)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 50000.0, rules[0].Threshold)
}
