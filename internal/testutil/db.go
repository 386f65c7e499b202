// Package testutil provides shared helpers for package-level tests.
// Tests run against an in-memory sqlite database with the full schema
// applied, so no external services are required.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/onepwr/procurement-api/internal/auth"
	"github.com/onepwr/procurement-api/internal/database"
	"github.com/onepwr/procurement-api/internal/domain"
)

// TestOrgID is the default organization used by seed helpers
const TestOrgID = "1PWR_LSO"

// SetupTestDB creates an in-memory sqlite database with the full schema.
// The database name is unique per call so tests stay isolated; shared cache
// lets the service-layer transactions and repository reads use separate
// pooled connections against the same database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000&_fk=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "failed to open test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(4)

	// A shared-cache memory database is dropped when its last connection
	// closes; pin one for the test's lifetime
	pin, err := sqlDB.Conn(context.Background())
	require.NoError(t, err)

	require.NoError(t, database.AutoMigrate(db), "failed to migrate test database")

	t.Cleanup(func() {
		_ = pin.Close()
		_ = sqlDB.Close()
	})
	return db
}

// SeedOrganization inserts the default test organization
func SeedOrganization(t *testing.T, db *gorm.DB) *domain.Organization {
	t.Helper()
	org := &domain.Organization{
		ID:           TestOrgID,
		Name:         "1PWR Lesotho",
		BaseCurrency: "LSL",
		IsActive:     true,
	}
	require.NoError(t, db.Create(org).Error)
	return org
}

// SeedUser inserts an active user at the given permission level
func SeedUser(t *testing.T, db *gorm.DB, name, email string, level domain.PermissionLevel) *domain.User {
	t.Helper()
	user := &domain.User{
		DisplayName:     name,
		Email:           email,
		PermissionLevel: level,
		OrganizationID:  TestOrgID,
		IsActive:        true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// SeedVendor inserts an active vendor, optionally pre-approved
func SeedVendor(t *testing.T, db *gorm.DB, name string, approved bool) *domain.Vendor {
	t.Helper()
	vendor := &domain.Vendor{
		Name:           name,
		OrganizationID: TestOrgID,
		IsApproved:     approved,
		IsActive:       true,
	}
	require.NoError(t, db.Create(vendor).Error)
	return vendor
}

// SeedRules inserts the standard two-tier approval policy: a lower tier at
// 5,000 LSL and an upper tier at 50,000 LSL
func SeedRules(t *testing.T, db *gorm.DB) []domain.Rule {
	t.Helper()
	rules := []domain.Rule{
		{
			OrganizationID:            TestOrgID,
			Threshold:                 5000,
			Currency:                  "LSL",
			QuotesAboveThreshold:      3,
			QuotesBelowApprovedVendor: 1,
			QuotesBelowDefault:        3,
			ProcurementLimit:          5000,
			FinanceAdminLimit:         50000,
			CEOLimit:                  500000,
			IsActive:                  true,
		},
		{
			OrganizationID:            TestOrgID,
			Threshold:                 50000,
			Currency:                  "LSL",
			QuotesAboveThreshold:      3,
			QuotesBelowApprovedVendor: 1,
			QuotesBelowDefault:        3,
			ProcurementLimit:          5000,
			FinanceAdminLimit:         50000,
			CEOLimit:                  500000,
			IsActive:                  true,
		},
	}
	for i := range rules {
		require.NoError(t, db.Create(&rules[i]).Error)
	}
	return rules
}

// SeedExchangeRate inserts a single currency pair rate
func SeedExchangeRate(t *testing.T, db *gorm.DB, from, to string, rate float64) {
	t.Helper()
	require.NoError(t, db.Create(&domain.ExchangeRate{
		FromCurrency: from,
		ToCurrency:   to,
		Rate:         rate,
		UpdatedAt:    time.Now(),
	}).Error)
}

// SeedPurchaseRequest inserts a PR in the given status for the default org
func SeedPurchaseRequest(t *testing.T, db *gorm.DB, requestor *domain.User, number string, status domain.PRStatus, amount float64) *domain.PurchaseRequest {
	t.Helper()
	pr := &domain.PurchaseRequest{
		Number:          number,
		OrganizationID:  TestOrgID,
		Status:          status,
		Description:     "Test purchase request",
		EstimatedAmount: amount,
		Currency:        "LSL",
		RequestorID:     requestor.ID,
		RequestorName:   requestor.DisplayName,
		RequestorEmail:  requestor.Email,
	}
	require.NoError(t, db.Create(pr).Error)
	return pr
}

// SeedQuote inserts a quote for a PR. withAttachment controls whether the
// quote counts toward quote requirements.
func SeedQuote(t *testing.T, db *gorm.DB, prID uuid.UUID, vendor *domain.Vendor, amount float64, withAttachment bool) *domain.Quote {
	t.Helper()
	quote := &domain.Quote{
		PurchaseRequestID: prID,
		VendorID:          vendor.ID,
		VendorName:        vendor.Name,
		Amount:            amount,
		Currency:          "LSL",
		SubmittedAt:       time.Now(),
	}
	if withAttachment {
		quote.Attachments = pq.StringArray{"https://storage.example.com/quotes/" + uuid.NewString() + ".pdf"}
	}
	require.NoError(t, db.Create(quote).Error)
	return quote
}

// ContextWithUser returns a context carrying the given user's identity,
// mirroring what the auth middleware injects
func ContextWithUser(user *domain.User) context.Context {
	return auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID:          user.ID,
		DisplayName:     user.DisplayName,
		Email:           user.Email,
		PermissionLevel: user.PermissionLevel,
		OrganizationID:  user.OrganizationID,
	})
}
