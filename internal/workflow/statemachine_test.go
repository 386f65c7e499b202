package workflow_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/onepwr/procurement-api/internal/domain"
	"github.com/onepwr/procurement-api/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_TerminalStatesAreImmutable(t *testing.T) {
	procurement := testUser("proc", domain.PermissionProcurementAdmin, "1PWR_LSO")
	admin := testUser("admin", domain.PermissionGlobalApprover, "1PWR_LSO")

	terminals := []domain.PRStatus{
		domain.PRStatusCompleted,
		domain.PRStatusRejected,
		domain.PRStatusCanceled,
	}
	targets := []domain.PRStatus{
		domain.PRStatusSubmitted,
		domain.PRStatusInQueue,
		domain.PRStatusPendingApproval,
		domain.PRStatusApproved,
		domain.PRStatusCanceled,
	}

	for _, from := range terminals {
		for _, to := range targets {
			pr := testPR("1PWR_LSO", 1000, "LSL")
			pr.Status = from
			for _, actor := range []domain.User{procurement, admin} {
				err := workflow.Guard(pr, &actor, to, "forced")
				assert.Error(t, err, "expected %s -> %s to be rejected for %s", from, to, actor.DisplayName)
			}
		}
	}
}

func TestGuard_NotesRequiredForRejectAndRevision(t *testing.T) {
	procurement := testUser("proc", domain.PermissionProcurement, "1PWR_LSO")

	tests := []struct {
		name   string
		target domain.PRStatus
		notes  string
		wantOK bool
	}{
		{"reject without notes", domain.PRStatusRejected, "", false},
		{"reject with whitespace notes", domain.PRStatusRejected, "   ", false},
		{"reject with notes", domain.PRStatusRejected, "over budget", true},
		{"revision without notes", domain.PRStatusRevisionRequired, "", false},
		{"revision with notes", domain.PRStatusRevisionRequired, "missing specs", true},
		{"in_queue without notes is fine", domain.PRStatusInQueue, "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pr := testPR("1PWR_LSO", 1000, "LSL")
			pr.Status = domain.PRStatusSubmitted
			err := workflow.Guard(pr, &procurement, tc.target, tc.notes)
			if tc.wantOK {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				var te *workflow.TransitionError
				require.ErrorAs(t, err, &te)
			}
		})
	}
}

func TestGuard_ActorConstraints(t *testing.T) {
	org := "1PWR_LSO"
	procurement := testUser("proc", domain.PermissionProcurement, org)
	procAdmin := testUser("padmin", domain.PermissionProcurementAdmin, org)
	approver := testUser("approver", domain.PermissionOrgApprover, org)
	outsider := testUser("outsider", domain.PermissionLevel(0), org)

	t.Run("only procurement moves submitted to in_queue", func(t *testing.T) {
		pr := testPR(org, 1000, "LSL")
		pr.Status = domain.PRStatusSubmitted
		assert.NoError(t, workflow.Guard(pr, &procurement, domain.PRStatusInQueue, ""))
		assert.Error(t, workflow.Guard(pr, &outsider, domain.PRStatusInQueue, ""))
	})

	t.Run("only current approver approves", func(t *testing.T) {
		pr := testPR(org, 1000, "LSL")
		pr.Status = domain.PRStatusPendingApproval
		id := approver.ID
		pr.ApproverID = &id

		assert.NoError(t, workflow.Guard(pr, &approver, domain.PRStatusApproved, ""))
		assert.Error(t, workflow.Guard(pr, &procAdmin, domain.PRStatusApproved, ""))
		assert.Error(t, workflow.Guard(pr, &procurement, domain.PRStatusApproved, ""))
	})

	t.Run("pending back to queue by approver or procurement", func(t *testing.T) {
		pr := testPR(org, 1000, "LSL")
		pr.Status = domain.PRStatusPendingApproval
		id := approver.ID
		pr.ApproverID = &id

		assert.NoError(t, workflow.Guard(pr, &approver, domain.PRStatusInQueue, ""))
		assert.NoError(t, workflow.Guard(pr, &procurement, domain.PRStatusInQueue, ""))
		assert.Error(t, workflow.Guard(pr, &outsider, domain.PRStatusInQueue, ""))
	})

	t.Run("requestor resubmits after revision", func(t *testing.T) {
		pr := testPR(org, 1000, "LSL")
		pr.Status = domain.PRStatusRevisionRequired
		requestor := testUser("req", domain.PermissionLevel(0), org)
		pr.RequestorID = requestor.ID

		assert.NoError(t, workflow.Guard(pr, &requestor, domain.PRStatusResubmitted, ""))
		assert.Error(t, workflow.Guard(pr, &outsider, domain.PRStatusResubmitted, ""))
	})
}

func TestGuard_CancelRules(t *testing.T) {
	org := "1PWR_LSO"
	procurement := testUser("proc", domain.PermissionProcurement, org)
	requestor := testUser("req", domain.PermissionLevel(0), org)

	t.Run("requestor cancels before approval begins", func(t *testing.T) {
		for _, st := range []domain.PRStatus{
			domain.PRStatusSubmitted,
			domain.PRStatusResubmitted,
			domain.PRStatusInQueue,
			domain.PRStatusRevisionRequired,
		} {
			pr := testPR(org, 1000, "LSL")
			pr.Status = st
			pr.RequestorID = requestor.ID
			assert.NoError(t, workflow.Guard(pr, &requestor, domain.PRStatusCanceled, ""), "status %s", st)
		}
	})

	t.Run("requestor cannot cancel once approval started", func(t *testing.T) {
		for _, st := range []domain.PRStatus{
			domain.PRStatusPendingApproval,
			domain.PRStatusApproved,
			domain.PRStatusOrdered,
		} {
			pr := testPR(org, 1000, "LSL")
			pr.Status = st
			pr.RequestorID = requestor.ID
			assert.Error(t, workflow.Guard(pr, &requestor, domain.PRStatusCanceled, ""), "status %s", st)
		}
	})

	t.Run("procurement cancels any open status", func(t *testing.T) {
		for _, st := range []domain.PRStatus{
			domain.PRStatusSubmitted,
			domain.PRStatusPendingApproval,
			domain.PRStatusApproved,
			domain.PRStatusOrdered,
			domain.PRStatusPartiallyReceived,
		} {
			pr := testPR(org, 1000, "LSL")
			pr.Status = st
			assert.NoError(t, workflow.Guard(pr, &procurement, domain.PRStatusCanceled, ""), "status %s", st)
		}
	})
}

func TestCanTransition_FulfillmentChain(t *testing.T) {
	assert.True(t, workflow.CanTransition(domain.PRStatusApproved, domain.PRStatusOrdered))
	assert.True(t, workflow.CanTransition(domain.PRStatusOrdered, domain.PRStatusPartiallyReceived))
	assert.True(t, workflow.CanTransition(domain.PRStatusOrdered, domain.PRStatusCompleted))
	assert.True(t, workflow.CanTransition(domain.PRStatusPartiallyReceived, domain.PRStatusCompleted))

	assert.False(t, workflow.CanTransition(domain.PRStatusApproved, domain.PRStatusCompleted))
	assert.False(t, workflow.CanTransition(domain.PRStatusSubmitted, domain.PRStatusApproved))
	assert.False(t, workflow.CanTransition(domain.PRStatusSubmitted, domain.PRStatusPendingApproval))
}

func TestRedesignation(t *testing.T) {
	assert.True(t, workflow.RedesignatesAsPO(domain.PRStatusInQueue, domain.PRStatusPendingApproval))
	assert.True(t, workflow.RedesignatesAsPO(domain.PRStatusRevisionRequired, domain.PRStatusPendingApproval))
	assert.False(t, workflow.RedesignatesAsPO(domain.PRStatusPendingApproval, domain.PRStatusApproved))

	assert.Equal(t, "PO-202608-042", workflow.RedesignateNumber("PR-202608-042"))
	// idempotent on already re-designated numbers
	assert.Equal(t, "PO-202608-042", workflow.RedesignateNumber("PO-202608-042"))
}

func TestRequiresApprovalValidation(t *testing.T) {
	assert.True(t, workflow.RequiresApprovalValidation(domain.PRStatusPendingApproval))
	assert.True(t, workflow.RequiresApprovalValidation(domain.PRStatusApproved))
	assert.False(t, workflow.RequiresApprovalValidation(domain.PRStatusInQueue))
	assert.False(t, workflow.RequiresApprovalValidation(domain.PRStatusCanceled))
}

func TestAllowedTargets(t *testing.T) {
	targets := workflow.AllowedTargets(domain.PRStatusCompleted)
	assert.Empty(t, targets)

	targets = workflow.AllowedTargets(domain.PRStatusOrdered)
	assert.ElementsMatch(t, []domain.PRStatus{
		domain.PRStatusPartiallyReceived,
		domain.PRStatusCompleted,
		domain.PRStatusCanceled,
	}, targets)
}

func TestGuard_UnknownTargetRejected(t *testing.T) {
	procurement := testUser("proc", domain.PermissionProcurement, "1PWR_LSO")
	pr := testPR("1PWR_LSO", 1000, "LSL")
	pr.Status = domain.PRStatusSubmitted
	pr.RequestorID = uuid.New()

	err := workflow.Guard(pr, &procurement, domain.PRStatus("bogus"), "")
	assert.Error(t, err)
}
