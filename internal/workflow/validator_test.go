package workflow_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/onepwr/procurement-api/internal/domain"
	"github.com/onepwr/procurement-api/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrg = "1PWR_LSO"

func newValidator(dir *fakeDirectory, vendors *fakeVendors) *workflow.Validator {
	return workflow.NewValidator(
		&fakeConverter{rates: map[string]float64{"USD/LSL": 18.0}},
		dir,
		vendors,
	)
}

func healthyDirectory() *fakeDirectory {
	return &fakeDirectory{users: []domain.User{
		testUser("global", domain.PermissionGlobalApprover, "1PWR_HQ"),
		testUser("org-approver", domain.PermissionOrgApprover, testOrg),
		testUser("proc", domain.PermissionProcurement, testOrg),
	}}
}

func TestValidate_OrganizationMismatchShortCircuits(t *testing.T) {
	v := newValidator(healthyDirectory(), &fakeVendors{approved: map[uuid.UUID]bool{}})
	actor := testUser("padmin", domain.PermissionProcurementAdmin, testOrg)

	pr := testPR("1PWR_BEN", 100000, "LSL") // would also fail quotes, approver etc.
	res, err := v.Validate(context.Background(), pr, lesothoRules(testOrg), &actor, domain.PRStatusPendingApproval)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	// the mismatch is the single error; later checks are skipped
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "organization")
}

func TestValidate_NoRulesIsReferenceDataError(t *testing.T) {
	v := newValidator(healthyDirectory(), &fakeVendors{})
	actor := testUser("padmin", domain.PermissionProcurementAdmin, testOrg)
	pr := testPR(testOrg, 1000, "LSL")

	_, err := v.Validate(context.Background(), pr, nil, &actor, domain.PRStatusPendingApproval)
	require.Error(t, err)
	var refErr *workflow.ReferenceDataError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "rules_missing", refErr.Code)
}

func TestValidate_SingleRuleTierIsReferenceDataError(t *testing.T) {
	v := newValidator(healthyDirectory(), &fakeVendors{})
	actor := testUser("padmin", domain.PermissionProcurementAdmin, testOrg)
	pr := testPR(testOrg, 1000, "LSL")

	_, err := v.Validate(context.Background(), pr, lesothoRules(testOrg)[:1], &actor, domain.PRStatusPendingApproval)
	require.Error(t, err)
	var refErr *workflow.ReferenceDataError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "rules_incomplete", refErr.Code)
}

func TestValidate_QuoteCountingExcludesUnattachedQuotes(t *testing.T) {
	v := newValidator(healthyDirectory(), &fakeVendors{approved: map[uuid.UUID]bool{}})
	actor := testUser("padmin", domain.PermissionProcurementAdmin, testOrg)

	// 60,000 LSL is above rule2 (50,000): three attachment-bearing quotes
	// required. Three quotes exist but only one carries an attachment.
	pr := testPR(testOrg, 60000, "LSL")
	pr.Quotes = []domain.Quote{
		quoteWithAttachments(60000, "LSL", "minio://quotes/a.pdf"),
		quoteWithAttachments(61000, "LSL"),
		quoteWithAttachments(62000, "LSL"),
	}

	res, err := v.Validate(context.Background(), pr, lesothoRules(testOrg), &actor, domain.PRStatusPendingApproval)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	found := false
	for _, e := range res.Errors {
		if strings.Contains(e, "3 quotes") && strings.Contains(e, "found 1") {
			found = true
		}
	}
	assert.True(t, found, "expected a quote-count error, got %v", res.Errors)
}

func TestValidate_ThresholdTieBreakIsInclusive(t *testing.T) {
	v := newValidator(healthyDirectory(), &fakeVendors{approved: map[uuid.UUID]bool{}})
	actor := testUser("padmin", domain.PermissionProcurementAdmin, testOrg)

	// Exactly at rule2.threshold: must take the above-threshold branch
	// (3 quotes, no vendor exception)
	vendorID := uuid.New()
	pr := testPR(testOrg, 50000, "LSL")
	pr.PreferredVendorID = &vendorID
	pr.Quotes = []domain.Quote{
		quoteWithAttachments(50000, "LSL", "minio://quotes/a.pdf"),
	}

	vendors := &fakeVendors{approved: map[uuid.UUID]bool{vendorID: true}}
	v = newValidator(healthyDirectory(), vendors)

	res, err := v.Validate(context.Background(), pr, lesothoRules(testOrg), &actor, domain.PRStatusPendingApproval)
	require.NoError(t, err)
	assert.False(t, res.Valid, "pre-approved vendor must not exempt at or above the top threshold")
}

func TestValidate_ApprovedVendorExemption(t *testing.T) {
	vendorID := uuid.New()
	actor := testUser("padmin", domain.PermissionProcurementAdmin, testOrg)

	// between rule1 (5,000) and rule2 (50,000)
	newPR := func() *domain.PurchaseRequest {
		pr := testPR(testOrg, 20000, "LSL")
		pr.PreferredVendorID = &vendorID
		pr.Quotes = []domain.Quote{
			quoteWithAttachments(20000, "LSL", "minio://quotes/a.pdf"),
		}
		return pr
	}

	t.Run("pre-approved vendor needs one quote", func(t *testing.T) {
		v := newValidator(healthyDirectory(), &fakeVendors{approved: map[uuid.UUID]bool{vendorID: true}})
		res, err := v.Validate(context.Background(), newPR(), lesothoRules(testOrg), &actor, domain.PRStatusPendingApproval)
		require.NoError(t, err)
		assert.True(t, res.Valid, "errors: %v", res.Errors)
	})

	t.Run("unapproved vendor needs three quotes", func(t *testing.T) {
		v := newValidator(healthyDirectory(), &fakeVendors{approved: map[uuid.UUID]bool{vendorID: false}})
		res, err := v.Validate(context.Background(), newPR(), lesothoRules(testOrg), &actor, domain.PRStatusPendingApproval)
		require.NoError(t, err)
		assert.False(t, res.Valid)
		// both the quote-count and the vendor-approval violations surface
		assert.GreaterOrEqual(t, len(res.Errors), 2)
	})
}

func TestValidate_BelowLowerThresholdNeedsNoQuotes(t *testing.T) {
	v := newValidator(healthyDirectory(), &fakeVendors{approved: map[uuid.UUID]bool{}})
	actor := testUser("padmin", domain.PermissionProcurementAdmin, testOrg)

	pr := testPR(testOrg, 900, "LSL") // below rule1 and below the vendor floor
	res, err := v.Validate(context.Background(), pr, lesothoRules(testOrg), &actor, domain.PRStatusPendingApproval)
	require.NoError(t, err)
	assert.True(t, res.Valid, "errors: %v", res.Errors)
}

func TestValidate_LowestQuoteBeatsEstimate(t *testing.T) {
	actor := testUser("padmin", domain.PermissionProcurementAdmin, testOrg)
	v := newValidator(healthyDirectory(), &fakeVendors{approved: map[uuid.UUID]bool{}})

	// Estimate is above rule2, but the lowest quote lands below rule1:
	// competitive quoting removes the quote requirement entirely.
	pr := testPR(testOrg, 55000, "LSL")
	pr.Quotes = []domain.Quote{
		quoteWithAttachments(4000, "LSL", "minio://quotes/cheap.pdf"),
		quoteWithAttachments(52000, "LSL", "minio://quotes/pricey.pdf"),
	}

	res, err := v.Validate(context.Background(), pr, lesothoRules(testOrg), &actor, domain.PRStatusPendingApproval)
	require.NoError(t, err)
	assert.True(t, res.Valid, "errors: %v", res.Errors)
}

func TestValidate_CurrencyNormalization(t *testing.T) {
	actor := testUser("padmin", domain.PermissionProcurementAdmin, testOrg)
	v := newValidator(healthyDirectory(), &fakeVendors{approved: map[uuid.UUID]bool{}})

	// 4,000 USD at 18 LSL/USD = 72,000 LSL, above rule2: three quotes needed
	pr := testPR(testOrg, 4000, "USD")
	res, err := v.Validate(context.Background(), pr, lesothoRules(testOrg), &actor, domain.PRStatusPendingApproval)
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestValidate_MissingRateIsReferenceDataError(t *testing.T) {
	actor := testUser("padmin", domain.PermissionProcurementAdmin, testOrg)
	v := newValidator(healthyDirectory(), &fakeVendors{approved: map[uuid.UUID]bool{}})

	pr := testPR(testOrg, 4000, "EUR")
	_, err := v.Validate(context.Background(), pr, lesothoRules(testOrg), &actor, domain.PRStatusPendingApproval)
	require.Error(t, err)
	var refErr *workflow.ReferenceDataError
	assert.ErrorAs(t, err, &refErr)
}

func TestValidate_ActorPermissionErrorsAccumulate(t *testing.T) {
	// A non-procurement actor pushing to pending_approval on a PR that also
	// lacks quotes: both violations must be reported together.
	actor := testUser("viewer", domain.PermissionLevel(0), testOrg)
	v := newValidator(healthyDirectory(), &fakeVendors{approved: map[uuid.UUID]bool{}})

	pr := testPR(testOrg, 60000, "LSL")
	res, err := v.Validate(context.Background(), pr, lesothoRules(testOrg), &actor, domain.PRStatusPendingApproval)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.GreaterOrEqual(t, len(res.Errors), 2, "errors: %v", res.Errors)
}

func TestValidate_ApproveRequiresDesignatedApprover(t *testing.T) {
	approver := testUser("approver", domain.PermissionOrgApprover, testOrg)
	other := testUser("other", domain.PermissionOrgApprover, testOrg)
	dir := &fakeDirectory{users: []domain.User{approver, other}}
	v := newValidator(dir, &fakeVendors{approved: map[uuid.UUID]bool{}})

	pr := testPR(testOrg, 900, "LSL")
	pr.Status = domain.PRStatusPendingApproval
	id := approver.ID
	pr.ApproverID = &id

	res, err := v.Validate(context.Background(), pr, lesothoRules(testOrg), &other, domain.PRStatusApproved)
	require.NoError(t, err)
	assert.False(t, res.Valid)

	res, err = v.Validate(context.Background(), pr, lesothoRules(testOrg), &approver, domain.PRStatusApproved)
	require.NoError(t, err)
	assert.True(t, res.Valid, "errors: %v", res.Errors)
}

func TestValidate_ApproverPoolHealth(t *testing.T) {
	actor := testUser("padmin", domain.PermissionProcurementAdmin, testOrg)

	t.Run("empty pool is always an error", func(t *testing.T) {
		v := newValidator(&fakeDirectory{}, &fakeVendors{approved: map[uuid.UUID]bool{}})
		pr := testPR(testOrg, 900, "LSL")
		res, err := v.Validate(context.Background(), pr, lesothoRules(testOrg), &actor, domain.PRStatusPendingApproval)
		require.NoError(t, err)
		assert.False(t, res.Valid)
	})

	t.Run("procurement-only pool cannot cover elevated amounts", func(t *testing.T) {
		dir := &fakeDirectory{users: []domain.User{
			testUser("proc", domain.PermissionProcurement, testOrg),
		}}
		v := newValidator(dir, &fakeVendors{approved: map[uuid.UUID]bool{}})

		pr := testPR(testOrg, 6000, "LSL") // above rule1
		pr.Quotes = []domain.Quote{
			quoteWithAttachments(6000, "LSL", "a.pdf"),
			quoteWithAttachments(6100, "LSL", "b.pdf"),
			quoteWithAttachments(6200, "LSL", "c.pdf"),
		}
		res, err := v.Validate(context.Background(), pr, lesothoRules(testOrg), &actor, domain.PRStatusPendingApproval)
		require.NoError(t, err)
		assert.False(t, res.Valid)

		// the same pool is fine below rule1
		pr2 := testPR(testOrg, 900, "LSL")
		res, err = v.Validate(context.Background(), pr2, lesothoRules(testOrg), &actor, domain.PRStatusPendingApproval)
		require.NoError(t, err)
		assert.True(t, res.Valid, "errors: %v", res.Errors)
	})
}

func TestValidate_AdjudicationNotesAboveTopThreshold(t *testing.T) {
	approver := testUser("approver", domain.PermissionOrgApprover, testOrg)
	dir := &fakeDirectory{users: []domain.User{approver}}
	v := newValidator(dir, &fakeVendors{approved: map[uuid.UUID]bool{}})

	newPR := func() *domain.PurchaseRequest {
		pr := testPR(testOrg, 60000, "LSL")
		pr.Status = domain.PRStatusPendingApproval
		id := approver.ID
		pr.ApproverID = &id
		pr.Quotes = []domain.Quote{
			quoteWithAttachments(60000, "LSL", "a.pdf"),
			quoteWithAttachments(61000, "LSL", "b.pdf"),
			quoteWithAttachments(62000, "LSL", "c.pdf"),
		}
		return pr
	}

	pr := newPR()
	res, err := v.Validate(context.Background(), pr, lesothoRules(testOrg), &approver, domain.PRStatusApproved)
	require.NoError(t, err)
	assert.False(t, res.Valid, "missing adjudication notes must block approval")

	pr = newPR()
	pr.AdjudicationNotes = "single qualified supplier for grid-tie inverters"
	res, err = v.Validate(context.Background(), pr, lesothoRules(testOrg), &approver, domain.PRStatusApproved)
	require.NoError(t, err)
	assert.True(t, res.Valid, "errors: %v", res.Errors)
}

// TestValidate_EndToEndScenario is the reference scenario: 60,000 LSL PR in
// 1PWR_LSO with rule2 at 50,000 LSL. Two attachment-bearing quotes fail even
// with a pre-approved vendor; a third quote makes it pass.
func TestValidate_EndToEndScenario(t *testing.T) {
	vendorID := uuid.New()
	actor := testUser("padmin", domain.PermissionProcurementAdmin, testOrg)
	dir := healthyDirectory()
	v := newValidator(dir, &fakeVendors{approved: map[uuid.UUID]bool{vendorID: true}})

	pr := testPR(testOrg, 60000, "LSL")
	pr.PreferredVendorID = &vendorID
	pr.Quotes = []domain.Quote{
		quoteWithAttachments(60000, "LSL", "minio://quotes/sun-king.pdf"),
		quoteWithAttachments(61500, "LSL", "minio://quotes/solartech.pdf"),
	}

	res, err := v.Validate(context.Background(), pr, lesothoRules(testOrg), &actor, domain.PRStatusPendingApproval)
	require.NoError(t, err)
	assert.False(t, res.Valid, "two quotes must not satisfy the above-threshold requirement")

	pr.Quotes = append(pr.Quotes, quoteWithAttachments(63000, "LSL", "minio://quotes/ecogen.pdf"))
	res, err = v.Validate(context.Background(), pr, lesothoRules(testOrg), &actor, domain.PRStatusPendingApproval)
	require.NoError(t, err)
	assert.True(t, res.Valid, "errors: %v", res.Errors)
}
