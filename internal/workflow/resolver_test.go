package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/onepwr/procurement-api/internal/domain"
	"github.com/onepwr/procurement-api/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newResolver(dir *fakeDirectory, rules *fakeRules) *workflow.Resolver {
	return workflow.NewResolver(
		dir,
		rules,
		&fakeConverter{rates: map[string]float64{"USD/LSL": 18.0}},
		zap.NewNop(),
	)
}

func rulesFor(org string) *fakeRules {
	return &fakeRules{rules: map[string][]domain.Rule{org: lesothoRules(org)}}
}

func TestResolve_ManualAssignmentWins(t *testing.T) {
	org := "1PWR_LSO"
	manual := testUser("manual", domain.PermissionOrgApprover, org)
	idle := testUser("idle", domain.PermissionOrgApprover, org)
	dir := &fakeDirectory{users: []domain.User{manual, idle}}
	r := newResolver(dir, rulesFor(org))

	pr := testPR(org, 60000, "LSL")
	id := manual.ID
	pr.ApproverID = &id
	pr.CurrentApproverID = &id

	res, err := r.Resolve(context.Background(), pr)
	require.NoError(t, err)
	require.NotNil(t, res.Approver)
	assert.Equal(t, manual.ID, res.Approver.ID)
	assert.False(t, res.Changed)
	assert.False(t, res.SelfHealed)
}

func TestResolve_MirrorSelfHeal(t *testing.T) {
	org := "1PWR_LSO"
	manual := testUser("manual", domain.PermissionOrgApprover, org)
	stale := uuid.New()
	dir := &fakeDirectory{users: []domain.User{manual}}
	r := newResolver(dir, rulesFor(org))

	pr := testPR(org, 1000, "LSL")
	id := manual.ID
	pr.ApproverID = &id
	pr.CurrentApproverID = &stale

	res, err := r.Resolve(context.Background(), pr)
	require.NoError(t, err)
	assert.True(t, res.SelfHealed)
	require.NotNil(t, pr.CurrentApproverID)
	assert.Equal(t, manual.ID, *pr.CurrentApproverID, "mirror must be corrected to the authoritative field")
	assert.Equal(t, manual.ID, res.Approver.ID)
}

func TestResolve_DeactivatedManualApproverIsRecomputed(t *testing.T) {
	org := "1PWR_LSO"
	gone := testUser("gone", domain.PermissionProcurement, org)
	gone.IsActive = false
	fallback := testUser("fallback", domain.PermissionProcurement, org)
	dir := &fakeDirectory{users: []domain.User{gone, fallback}}
	r := newResolver(dir, rulesFor(org))

	pr := testPR(org, 1000, "LSL") // below both thresholds
	id := gone.ID
	pr.ApproverID = &id

	res, err := r.Resolve(context.Background(), pr)
	require.NoError(t, err)
	require.NotNil(t, res.Approver)
	assert.Equal(t, fallback.ID, res.Approver.ID)
	assert.True(t, res.Changed)
	assert.Equal(t, fallback.ID, *pr.ApproverID)
	assert.Equal(t, fallback.ID, *pr.CurrentApproverID)
}

func TestResolve_ElevationPicksOrgApprover(t *testing.T) {
	org := "1PWR_LSO"
	proc := testUser("proc", domain.PermissionProcurement, org)
	approver := testUser("approver", domain.PermissionOrgApprover, org)
	dir := &fakeDirectory{users: []domain.User{proc, approver}}
	r := newResolver(dir, rulesFor(org))

	t.Run("above threshold goes to an org approver", func(t *testing.T) {
		pr := testPR(org, 6000, "LSL") // above rule1 (5,000)
		res, err := r.Resolve(context.Background(), pr)
		require.NoError(t, err)
		require.NotNil(t, res.Approver)
		assert.Equal(t, approver.ID, res.Approver.ID)
	})

	t.Run("below threshold stays with procurement", func(t *testing.T) {
		pr := testPR(org, 1000, "LSL")
		res, err := r.Resolve(context.Background(), pr)
		require.NoError(t, err)
		require.NotNil(t, res.Approver)
		assert.Equal(t, proc.ID, res.Approver.ID)
	})

	t.Run("foreign currency is normalized before the threshold check", func(t *testing.T) {
		pr := testPR(org, 400, "USD") // 7,200 LSL at the test rate
		res, err := r.Resolve(context.Background(), pr)
		require.NoError(t, err)
		require.NotNil(t, res.Approver)
		assert.Equal(t, approver.ID, res.Approver.ID)
	})
}

func TestResolve_LeastRecentlyAssigned(t *testing.T) {
	org := "1PWR_LSO"
	busy := testUser("busy", domain.PermissionProcurement, org)
	rested := testUser("rested", domain.PermissionProcurement, org)
	fresh := testUser("fresh", domain.PermissionProcurement, org)

	now := time.Now()
	dir := &fakeDirectory{
		users: []domain.User{busy, rested, fresh},
		lastAssigned: map[uuid.UUID]time.Time{
			busy.ID:   now.Add(-time.Hour),
			rested.ID: now.Add(-72 * time.Hour),
		},
	}
	r := newResolver(dir, rulesFor(org))

	// never-assigned beats everyone
	pr := testPR(org, 1000, "LSL")
	res, err := r.Resolve(context.Background(), pr)
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, res.Approver.ID)
	assert.True(t, res.Changed)

	// with fresh now assigned, the oldest assignment wins
	dir.lastAssigned[fresh.ID] = now
	pr2 := testPR(org, 1000, "LSL")
	res, err = r.Resolve(context.Background(), pr2)
	require.NoError(t, err)
	assert.Equal(t, rested.ID, res.Approver.ID)
}

func TestResolve_DeterministicTieBreak(t *testing.T) {
	org := "1PWR_LSO"
	a := testUser("a", domain.PermissionProcurement, org)
	b := testUser("b", domain.PermissionProcurement, org)
	dir := &fakeDirectory{users: []domain.User{a, b}}
	r := newResolver(dir, rulesFor(org))

	want := a.ID
	if b.ID.String() < a.ID.String() {
		want = b.ID
	}

	for i := 0; i < 5; i++ {
		pr := testPR(org, 1000, "LSL")
		res, err := r.Resolve(context.Background(), pr)
		require.NoError(t, err)
		assert.Equal(t, want, res.Approver.ID, "selection must not vary between runs")
	}
}

func TestResolve_NoRulesYieldsNoApprover(t *testing.T) {
	org := "1PWR_LSO"
	dir := &fakeDirectory{users: []domain.User{testUser("proc", domain.PermissionProcurement, org)}}
	r := newResolver(dir, &fakeRules{rules: map[string][]domain.Rule{}})

	pr := testPR(org, 1000, "LSL")
	res, err := r.Resolve(context.Background(), pr)
	require.NoError(t, err)
	assert.Nil(t, res.Approver)
	assert.False(t, res.Changed)
	assert.Nil(t, pr.ApproverID)
}

func TestResolve_EmptyPoolYieldsNoApprover(t *testing.T) {
	org := "1PWR_LSO"
	r := newResolver(&fakeDirectory{}, rulesFor(org))

	pr := testPR(org, 1000, "LSL")
	res, err := r.Resolve(context.Background(), pr)
	require.NoError(t, err)
	assert.Nil(t, res.Approver)
	assert.False(t, res.Changed)
}
