package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/onepwr/procurement-api/internal/domain"
)

// UserContext holds authenticated user information
type UserContext struct {
	UserID          uuid.UUID
	DisplayName     string
	Email           string
	PermissionLevel domain.PermissionLevel
	OrganizationID  string
}

type contextKey string

const userContextKey contextKey = "userContext"
const orgFilterKey contextKey = "orgFilter"

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}

// MustFromContext extracts user context or panics
func MustFromContext(ctx context.Context) *UserContext {
	user, ok := FromContext(ctx)
	if !ok {
		panic("user context not found in context")
	}
	return user
}

// IsProcurement checks if the user carries any procurement role
func (u *UserContext) IsProcurement() bool {
	return u.PermissionLevel.IsProcurement()
}

// IsGlobalApprover checks if the user can approve across all organizations
func (u *UserContext) IsGlobalApprover() bool {
	return u.PermissionLevel == domain.PermissionGlobalApprover
}

// CanManageReferenceData checks if the user may edit rules, vendors and
// exchange rates
func (u *UserContext) CanManageReferenceData() bool {
	return u.PermissionLevel == domain.PermissionGlobalApprover ||
		u.PermissionLevel == domain.PermissionProcurementAdmin
}

// CanAccessOrganization checks if the user can access data for a specific
// organization. Global approvers see everything; everyone else is scoped to
// their own organization.
func (u *UserContext) CanAccessOrganization(orgID string) bool {
	if u.IsGlobalApprover() {
		return true
	}
	return u.OrganizationID == orgID
}

// GetOrganizationFilter returns the organization ID to filter queries by.
// Returns empty string for global approvers (no filtering needed).
func (u *UserContext) GetOrganizationFilter() string {
	if u.IsGlobalApprover() {
		return ""
	}
	return u.OrganizationID
}

// GetDisplayNameInitials returns initials from the display name (e.g., "John Doe" -> "JD")
func (u *UserContext) GetDisplayNameInitials() string {
	if u.DisplayName == "" {
		return ""
	}
	parts := strings.Fields(u.DisplayName)
	initials := ""
	for _, part := range parts {
		if len(part) > 0 {
			initials += strings.ToUpper(string(part[0]))
		}
	}
	return initials
}

// OrganizationFilter represents the effective organization filter for queries
// This is set by middleware based on user context and query parameters
type OrganizationFilter struct {
	// OrganizationID is the organization to filter by (empty means no filter)
	OrganizationID string
	// RequestedByGlobalUser indicates a global approver explicitly requested
	// a specific organization
	RequestedByGlobalUser bool
}

// WithOrganizationFilter adds an organization filter to the context
func WithOrganizationFilter(ctx context.Context, filter *OrganizationFilter) context.Context {
	return context.WithValue(ctx, orgFilterKey, filter)
}

// OrganizationFilterFromContext extracts the organization filter from the context
func OrganizationFilterFromContext(ctx context.Context) (*OrganizationFilter, bool) {
	filter, ok := ctx.Value(orgFilterKey).(*OrganizationFilter)
	return filter, ok
}

// GetEffectiveOrganizationFilter returns the organization ID to filter queries by.
// This should be used by repositories to apply organization scoping.
// Returns empty string if no filtering should be applied.
func GetEffectiveOrganizationFilter(ctx context.Context) string {
	// An explicit filter set by middleware wins
	if filter, ok := OrganizationFilterFromContext(ctx); ok && filter != nil {
		return filter.OrganizationID
	}

	// Fall back to the user's default scope
	if userCtx, ok := FromContext(ctx); ok {
		return userCtx.GetOrganizationFilter()
	}

	return ""
}
