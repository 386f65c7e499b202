package workflow_test

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/onepwr/procurement-api/internal/domain"
	"github.com/onepwr/procurement-api/internal/workflow"
)

// In-memory collaborator fakes shared by the validator and resolver tests.

type fakeConverter struct {
	// rates maps "FROM/TO" to a multiplier
	rates map[string]float64
}

func (c *fakeConverter) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	if from == to {
		return amount, nil
	}
	if r, ok := c.rates[from+"/"+to]; ok {
		return amount * r, nil
	}
	if r, ok := c.rates[to+"/"+from]; ok && r != 0 {
		return amount / r, nil
	}
	return 0, workflow.ErrNoExchangeRate
}

type fakeDirectory struct {
	users        []domain.User
	lastAssigned map[uuid.UUID]time.Time
}

func (d *fakeDirectory) EligibleApprovers(ctx context.Context, orgID string, level domain.PermissionLevel) ([]domain.User, error) {
	var out []domain.User
	for _, u := range d.users {
		if !u.IsActive || u.PermissionLevel != level {
			continue
		}
		if u.OrganizationID == orgID || u.PermissionLevel == domain.PermissionGlobalApprover {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d *fakeDirectory) UserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	for i := range d.users {
		if d.users[i].ID == id {
			return &d.users[i], nil
		}
	}
	return nil, workflow.ErrNotFound
}

func (d *fakeDirectory) LastAssignedAt(ctx context.Context, userID uuid.UUID) (*time.Time, error) {
	if at, ok := d.lastAssigned[userID]; ok {
		t := at
		return &t, nil
	}
	return nil, nil
}

type fakeVendors struct {
	approved map[uuid.UUID]bool
}

func (v *fakeVendors) IsVendorApproved(ctx context.Context, vendorID uuid.UUID) (bool, error) {
	return v.approved[vendorID], nil
}

type fakeRules struct {
	rules map[string][]domain.Rule
}

func (r *fakeRules) RulesForOrganization(ctx context.Context, orgID string) ([]domain.Rule, error) {
	return r.rules[orgID], nil
}

// lesothoRules builds the standard two-tier policy used across tests:
// rule1 at 5,000 LSL and rule2 at 50,000 LSL
func lesothoRules(orgID string) []domain.Rule {
	return []domain.Rule{
		{
			BaseModel:                 domain.BaseModel{ID: uuid.New()},
			OrganizationID:            orgID,
			Threshold:                 5000,
			Currency:                  "LSL",
			QuotesAboveThreshold:      3,
			QuotesBelowApprovedVendor: 1,
			QuotesBelowDefault:        3,
		},
		{
			BaseModel:                 domain.BaseModel{ID: uuid.New()},
			OrganizationID:            orgID,
			Threshold:                 50000,
			Currency:                  "LSL",
			QuotesAboveThreshold:      3,
			QuotesBelowApprovedVendor: 1,
			QuotesBelowDefault:        3,
		},
	}
}

func testUser(name string, level domain.PermissionLevel, org string) domain.User {
	return domain.User{
		BaseModel:       domain.BaseModel{ID: uuid.New()},
		DisplayName:     name,
		Email:           fmt.Sprintf("%s@example.org", name),
		PermissionLevel: level,
		OrganizationID:  org,
		IsActive:        true,
	}
}

func testPR(org string, amount float64, currency string) *domain.PurchaseRequest {
	return &domain.PurchaseRequest{
		BaseModel:       domain.BaseModel{ID: uuid.New()},
		Number:          "PR-202608-001",
		OrganizationID:  org,
		Status:          domain.PRStatusInQueue,
		EstimatedAmount: amount,
		Currency:        currency,
		RequestorID:     uuid.New(),
		RequestorName:   "Requestor",
	}
}

func quoteWithAttachments(amount float64, currency string, attachments ...string) domain.Quote {
	return domain.Quote{
		BaseModel:   domain.BaseModel{ID: uuid.New()},
		VendorID:    uuid.New(),
		Amount:      amount,
		Currency:    currency,
		Attachments: attachments,
		SubmittedAt: time.Now(),
	}
}
