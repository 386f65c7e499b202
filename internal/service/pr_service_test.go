package service_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/onepwr/procurement-api/internal/domain"
	"github.com/onepwr/procurement-api/internal/repository"
	"github.com/onepwr/procurement-api/internal/service"
	"github.com/onepwr/procurement-api/internal/storage"
	"github.com/onepwr/procurement-api/internal/testutil"
	"github.com/onepwr/procurement-api/internal/workflow"
)

// env wires the full service stack over an in-memory database
type env struct {
	db        *gorm.DB
	prs       *service.PurchaseRequestService
	quotes    *service.QuoteService
	numbering *service.NumberingService
	currency  *service.CurrencyService

	requestor   *domain.User
	admin       *domain.User
	staff       *domain.User
	orgApprover *domain.User
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	log := zap.NewNop()

	prRepo := repository.NewPurchaseRequestRepository(db)
	quoteRepo := repository.NewQuoteRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)
	ruleRepo := repository.NewRuleRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	vendorRepo := repository.NewVendorRepository(db)
	userRepo := repository.NewUserRepository(db)
	statusHistoryRepo := repository.NewStatusHistoryRepository(db)
	approvalHistoryRepo := repository.NewApprovalHistoryRepository(db)
	numberSequenceRepo := repository.NewNumberSequenceRepository(db)
	exchangeRateRepo := repository.NewExchangeRateRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	currency := service.NewCurrencyService(exchangeRateRepo, log)
	numbering := service.NewNumberingService(numberSequenceRepo, prRepo, 5, log)
	notifications := service.NewNotificationService(notificationRepo, log)

	prs := service.NewPurchaseRequestService(
		db, prRepo, quoteRepo, ruleRepo, orgRepo, vendorRepo, userRepo,
		statusHistoryRepo, approvalHistoryRepo,
		numbering, currency, notifications, 1000, log,
	)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	quotes := service.NewQuoteService(quoteRepo, attachmentRepo, prRepo, vendorRepo, store, log)

	testutil.SeedOrganization(t, db)
	testutil.SeedRules(t, db)

	return &env{
		db:          db,
		prs:         prs,
		quotes:      quotes,
		numbering:   numbering,
		currency:    currency,
		requestor:   testutil.SeedUser(t, db, "Lineo Mohale", "lineo@1pwrafrica.com", 0),
		admin:       testutil.SeedUser(t, db, "Thabo Letsie", "thabo@1pwrafrica.com", domain.PermissionProcurementAdmin),
		staff:       testutil.SeedUser(t, db, "Palesa Nkhahle", "palesa@1pwrafrica.com", domain.PermissionProcurement),
		orgApprover: testutil.SeedUser(t, db, "Mpho Ramaema", "mpho@1pwrafrica.com", domain.PermissionOrgApprover),
	}
}

func (e *env) as(user *domain.User) context.Context {
	return testutil.ContextWithUser(user)
}

func (e *env) transition(t *testing.T, user *domain.User, pr *domain.PurchaseRequestDTO, target domain.PRStatus, notes string) *domain.PurchaseRequestDTO {
	t.Helper()
	updated, err := e.prs.Transition(e.as(user), pr.ID, &domain.TransitionRequest{TargetStatus: target, Notes: notes})
	require.NoError(t, err)
	require.Equal(t, target, updated.Status)
	return updated
}

func TestCreatePurchaseRequest(t *testing.T) {
	e := newEnv(t)

	dto, err := e.prs.Create(e.as(e.requestor), &domain.CreatePurchaseRequestRequest{
		OrganizationID:  testutil.TestOrgID,
		Description:     "Solar panel mounting brackets",
		EstimatedAmount: 800,
		Currency:        "lsl",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.PRStatusDraft, dto.Status)
	assert.Regexp(t, regexp.MustCompile(`^PR-\d{6}-\d{3}$`), dto.Number)
	assert.Equal(t, "LSL", dto.Currency)
	assert.Equal(t, e.requestor.ID, dto.RequestorID)

	// Creation writes the first status history entry
	require.Len(t, dto.StatusHistory, 1)
	assert.Nil(t, dto.StatusHistory[0].FromStatus)
	assert.Equal(t, domain.PRStatusDraft, dto.StatusHistory[0].ToStatus)
}

func TestCreatePurchaseRequestForeignOrganization(t *testing.T) {
	e := newEnv(t)

	_, err := e.prs.Create(e.as(e.requestor), &domain.CreatePurchaseRequestRequest{
		OrganizationID:  "1PWR_BEN",
		EstimatedAmount: 800,
		Currency:        "LSL",
	})
	assert.ErrorIs(t, err, service.ErrPermissionDenied)
}

func TestFullLifecycleLowValue(t *testing.T) {
	e := newEnv(t)

	dto, err := e.prs.Create(e.as(e.requestor), &domain.CreatePurchaseRequestRequest{
		OrganizationID:  testutil.TestOrgID,
		Description:     "Distribution box fuses",
		EstimatedAmount: 800,
		Currency:        "LSL",
	})
	require.NoError(t, err)

	dto = e.transition(t, e.requestor, dto, domain.PRStatusSubmitted, "")

	// Only procurement moves a submitted request into the queue
	_, err = e.prs.Transition(e.as(e.requestor), dto.ID, &domain.TransitionRequest{TargetStatus: domain.PRStatusInQueue})
	var terr *workflow.TransitionError
	require.ErrorAs(t, err, &terr)

	dto = e.transition(t, e.admin, dto, domain.PRStatusInQueue, "")

	// Entering the approval stage re-designates the number and assigns an
	// approver. 800 LSL is below the first tier, so no elevation: the
	// procurement-level user is selected.
	dto = e.transition(t, e.admin, dto, domain.PRStatusPendingApproval, "")
	assert.Regexp(t, regexp.MustCompile(`^PO-\d{6}-\d{3}$`), dto.Number)
	require.NotNil(t, dto.ApproverID)
	assert.Equal(t, e.staff.ID, *dto.ApproverID)

	// Only the assigned approver may approve
	_, err = e.prs.Transition(e.as(e.orgApprover), dto.ID, &domain.TransitionRequest{TargetStatus: domain.PRStatusApproved})
	require.Error(t, err)

	dto = e.transition(t, e.staff, dto, domain.PRStatusApproved, "")
	dto = e.transition(t, e.admin, dto, domain.PRStatusOrdered, "")
	dto = e.transition(t, e.admin, dto, domain.PRStatusPartiallyReceived, "")
	dto = e.transition(t, e.admin, dto, domain.PRStatusCompleted, "")

	// Terminal: nothing moves out of completed
	_, err = e.prs.Transition(e.as(e.admin), dto.ID, &domain.TransitionRequest{TargetStatus: domain.PRStatusOrdered})
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "status is terminal", terr.Reason)
}

func TestTransitionRejectRequiresNotes(t *testing.T) {
	e := newEnv(t)
	pr := testutil.SeedPurchaseRequest(t, e.db, e.requestor, "PR-202608-050", domain.PRStatusSubmitted, 800)

	_, err := e.prs.Transition(e.as(e.admin), pr.ID, &domain.TransitionRequest{TargetStatus: domain.PRStatusRejected})
	var terr *workflow.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "notes required", terr.Reason)

	dto, err := e.prs.Transition(e.as(e.admin), pr.ID, &domain.TransitionRequest{
		TargetStatus: domain.PRStatusRejected,
		Notes:        "duplicate of PR-202608-049",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PRStatusRejected, dto.Status)
}

func TestApprovalBlockedByQuoteRequirement(t *testing.T) {
	e := newEnv(t)
	pr := testutil.SeedPurchaseRequest(t, e.db, e.requestor, "PR-202608-051", domain.PRStatusInQueue, 10000)

	_, err := e.prs.Transition(e.as(e.admin), pr.ID, &domain.TransitionRequest{TargetStatus: domain.PRStatusPendingApproval})
	var blocked *service.ApprovalBlockedError
	require.ErrorAs(t, err, &blocked)
	require.Len(t, blocked.Violations, 1)
	assert.Contains(t, blocked.Violations[0], "3 quotes")

	// PR stays put and keeps its PR prefix on a blocked transition
	reloaded, err := e.prs.GetByID(e.as(e.admin), pr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PRStatusInQueue, reloaded.Status)
	assert.Equal(t, "PR-202608-051", reloaded.Number)
}

func TestApprovalElevatedWithQuotes(t *testing.T) {
	e := newEnv(t)
	vendor := testutil.SeedVendor(t, e.db, "Maseru Electrical Supplies", true)
	pr := testutil.SeedPurchaseRequest(t, e.db, e.requestor, "PR-202608-052", domain.PRStatusInQueue, 10000)

	// Quotes without attachments never count toward the requirement
	testutil.SeedQuote(t, e.db, pr.ID, vendor, 9800, false)
	for _, amount := range []float64{9500, 9700, 9900} {
		testutil.SeedQuote(t, e.db, pr.ID, vendor, amount, true)
	}

	dto, err := e.prs.Transition(e.as(e.admin), pr.ID, &domain.TransitionRequest{TargetStatus: domain.PRStatusPendingApproval})
	require.NoError(t, err)

	// Above the first tier the resolver elevates past procurement staff
	require.NotNil(t, dto.ApproverID)
	assert.Equal(t, e.orgApprover.ID, *dto.ApproverID)
	assert.Equal(t, "PO-202608-052", dto.Number)
}

func TestTransitionMissingRules(t *testing.T) {
	e := newEnv(t)
	global := testutil.SeedUser(t, e.db, "Karabo Sense", "karabo@1pwrafrica.com", domain.PermissionGlobalApprover)

	require.NoError(t, e.db.Create(&domain.Organization{
		ID: "1PWR_BEN", Name: "1PWR Benin", BaseCurrency: "XOF", IsActive: true,
	}).Error)
	pr := &domain.PurchaseRequest{
		Number:          "PR-202608-060",
		OrganizationID:  "1PWR_BEN",
		Status:          domain.PRStatusInQueue,
		EstimatedAmount: 500,
		Currency:        "XOF",
		RequestorID:     e.requestor.ID,
	}
	require.NoError(t, e.db.Create(pr).Error)

	_, err := e.prs.Transition(e.as(global), pr.ID, &domain.TransitionRequest{TargetStatus: domain.PRStatusPendingApproval})
	assert.ErrorIs(t, err, workflow.ErrNoRulesConfigured)
}

func TestTransitionMissingExchangeRate(t *testing.T) {
	e := newEnv(t)
	pr := testutil.SeedPurchaseRequest(t, e.db, e.requestor, "PR-202608-061", domain.PRStatusInQueue, 100)
	require.NoError(t, e.db.Model(pr).Update("currency", "EUR").Error)

	_, err := e.prs.Transition(e.as(e.admin), pr.ID, &domain.TransitionRequest{TargetStatus: domain.PRStatusPendingApproval})
	assert.ErrorIs(t, err, workflow.ErrNoExchangeRate)
}

func TestRequestorCancelWindow(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name    string
		status  domain.PRStatus
		wantErr bool
	}{
		{"submitted is cancelable", domain.PRStatusSubmitted, false},
		{"in queue is cancelable", domain.PRStatusInQueue, false},
		{"pending approval is not", domain.PRStatusPendingApproval, true},
		{"ordered is not", domain.PRStatusOrdered, true},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			number := "PR-202608-07" + string(rune('0'+i))
			pr := testutil.SeedPurchaseRequest(t, e.db, e.requestor, number, tt.status, 800)

			_, err := e.prs.Transition(e.as(e.requestor), pr.ID, &domain.TransitionRequest{TargetStatus: domain.PRStatusCanceled})
			if tt.wantErr {
				var terr *workflow.TransitionError
				assert.ErrorAs(t, err, &terr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUpdatePermissions(t *testing.T) {
	e := newEnv(t)
	pr := testutil.SeedPurchaseRequest(t, e.db, e.requestor, "PR-202608-080", domain.PRStatusDraft, 800)

	desc := "Replacement inverter fans"
	dto, err := e.prs.Update(e.as(e.requestor), pr.ID, &domain.UpdatePurchaseRequestRequest{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, desc, dto.Description)

	// Adjudication notes are procurement-only
	notes := "sole supplier in district"
	_, err = e.prs.Update(e.as(e.requestor), pr.ID, &domain.UpdatePurchaseRequestRequest{AdjudicationNotes: &notes})
	assert.ErrorIs(t, err, service.ErrPermissionDenied)

	_, err = e.prs.Update(e.as(e.admin), pr.ID, &domain.UpdatePurchaseRequestRequest{AdjudicationNotes: &notes})
	require.NoError(t, err)

	// Nothing is requestor-editable once ordered
	require.NoError(t, e.db.Model(pr).Update("status", domain.PRStatusOrdered).Error)
	_, err = e.prs.Update(e.as(e.requestor), pr.ID, &domain.UpdatePurchaseRequestRequest{Description: &desc})
	assert.ErrorIs(t, err, service.ErrNotEditable)
}

func TestDeleteOnlyDrafts(t *testing.T) {
	e := newEnv(t)
	draft := testutil.SeedPurchaseRequest(t, e.db, e.requestor, "PR-202608-090", domain.PRStatusDraft, 800)
	submitted := testutil.SeedPurchaseRequest(t, e.db, e.requestor, "PR-202608-091", domain.PRStatusSubmitted, 800)

	assert.ErrorIs(t, e.prs.Delete(e.as(e.requestor), submitted.ID), service.ErrNotEditable)
	require.NoError(t, e.prs.Delete(e.as(e.requestor), draft.ID))

	_, err := e.prs.GetByID(e.as(e.requestor), draft.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestAssignApproverManualWins(t *testing.T) {
	e := newEnv(t)
	pr := testutil.SeedPurchaseRequest(t, e.db, e.requestor, "PO-202608-100", domain.PRStatusPendingApproval, 800)

	// Only procurement may assign
	_, err := e.prs.AssignApprover(e.as(e.requestor), pr.ID, &domain.AssignApproverRequest{ApproverID: e.orgApprover.ID})
	assert.ErrorIs(t, err, service.ErrPermissionDenied)

	dto, err := e.prs.AssignApprover(e.as(e.admin), pr.ID, &domain.AssignApproverRequest{ApproverID: e.orgApprover.ID})
	require.NoError(t, err)
	require.NotNil(t, dto.ApproverID)
	assert.Equal(t, e.orgApprover.ID, *dto.ApproverID)

	// Resolution keeps the manual assignment even though the amount would
	// select a procurement-level approver
	wf, err := e.prs.ResolveApprover(e.as(e.admin), pr.ID)
	require.NoError(t, err)
	require.NotNil(t, wf.CurrentApproverID)
	assert.Equal(t, e.orgApprover.ID, *wf.CurrentApproverID)
}

func TestAssignApproverRejectsNonApprover(t *testing.T) {
	e := newEnv(t)
	pr := testutil.SeedPurchaseRequest(t, e.db, e.requestor, "PO-202608-101", domain.PRStatusPendingApproval, 800)

	_, err := e.prs.AssignApprover(e.as(e.admin), pr.ID, &domain.AssignApproverRequest{ApproverID: e.requestor.ID})
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestResolveApproverHealsMirror(t *testing.T) {
	e := newEnv(t)
	pr := testutil.SeedPurchaseRequest(t, e.db, e.requestor, "PO-202608-102", domain.PRStatusPendingApproval, 800)

	// Authoritative assignment with a diverged legacy mirror
	require.NoError(t, e.db.Model(pr).Updates(map[string]interface{}{
		"approver_id":         e.orgApprover.ID,
		"current_approver_id": e.staff.ID,
	}).Error)

	wf, err := e.prs.ResolveApprover(e.as(e.admin), pr.ID)
	require.NoError(t, err)
	require.NotNil(t, wf.CurrentApproverID)
	assert.Equal(t, e.orgApprover.ID, *wf.CurrentApproverID)

	var reloaded domain.PurchaseRequest
	require.NoError(t, e.db.First(&reloaded, "id = ?", pr.ID).Error)
	require.NotNil(t, reloaded.CurrentApproverID)
	assert.Equal(t, e.orgApprover.ID, *reloaded.CurrentApproverID)
}

func TestListScopedToOrganization(t *testing.T) {
	e := newEnv(t)
	testutil.SeedPurchaseRequest(t, e.db, e.requestor, "PR-202608-110", domain.PRStatusSubmitted, 800)

	require.NoError(t, e.db.Create(&domain.Organization{
		ID: "1PWR_BEN", Name: "1PWR Benin", BaseCurrency: "XOF", IsActive: true,
	}).Error)
	outsider := &domain.User{
		DisplayName:     "Ayo Dossou",
		Email:           "ayo@1pwrafrica.com",
		PermissionLevel: domain.PermissionProcurement,
		OrganizationID:  "1PWR_BEN",
		IsActive:        true,
	}
	require.NoError(t, e.db.Create(outsider).Error)

	res, err := e.prs.List(e.as(e.requestor), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.TotalCount)

	res, err = e.prs.List(e.as(outsider), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.TotalCount)
}

func TestAllowedTransitions(t *testing.T) {
	e := newEnv(t)
	pr := testutil.SeedPurchaseRequest(t, e.db, e.requestor, "PR-202608-120", domain.PRStatusSubmitted, 800)

	targets, err := e.prs.AllowedTransitions(e.as(e.requestor), pr.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.PRStatus{
		domain.PRStatusInQueue,
		domain.PRStatusRejected,
		domain.PRStatusRevisionRequired,
		domain.PRStatusCanceled,
	}, targets)
}

func TestValidateApprovalDryRun(t *testing.T) {
	e := newEnv(t)
	pr := testutil.SeedPurchaseRequest(t, e.db, e.requestor, "PR-202608-130", domain.PRStatusInQueue, 10000)

	result, err := e.prs.ValidateApproval(e.as(e.admin), pr.ID, domain.PRStatusPendingApproval)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)

	// The dry run never mutates
	reloaded, err := e.prs.GetByID(e.as(e.admin), pr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PRStatusInQueue, reloaded.Status)
}

func TestTransitionWithoutUserContext(t *testing.T) {
	e := newEnv(t)
	pr := testutil.SeedPurchaseRequest(t, e.db, e.requestor, "PR-202608-140", domain.PRStatusDraft, 800)

	_, err := e.prs.Transition(context.Background(), pr.ID, &domain.TransitionRequest{TargetStatus: domain.PRStatusSubmitted})
	assert.True(t, errors.Is(err, service.ErrUserContextRequired))
}
