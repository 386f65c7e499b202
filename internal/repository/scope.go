package repository

import (
	"context"

	"github.com/onepwr/procurement-api/internal/auth"
	"gorm.io/gorm"
)

// MaxPageSize is the maximum allowed page size for paginated queries
const MaxPageSize = 200

// DefaultPageSize is used when the caller does not specify a page size
const DefaultPageSize = 50

// NormalizePagination clamps page and pageSize into valid bounds
func NormalizePagination(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}
	return page, pageSize
}

// ApplyOrganizationScope applies the caller's effective organization filter to
// a query. Global approvers carry no filter and see all organizations.
func ApplyOrganizationScope(ctx context.Context, query *gorm.DB) *gorm.DB {
	if orgID := auth.GetEffectiveOrganizationFilter(ctx); orgID != "" {
		return query.Where("organization_id = ?", orgID)
	}
	return query
}

// ApplyOrganizationScopeWithColumn applies the organization filter using a
// specific column name. Use this when the column needs table qualification.
func ApplyOrganizationScopeWithColumn(ctx context.Context, query *gorm.DB, columnName string) *gorm.DB {
	if orgID := auth.GetEffectiveOrganizationFilter(ctx); orgID != "" {
		return query.Where(columnName+" = ?", orgID)
	}
	return query
}
