package auth_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/onepwr/procurement-api/internal/auth"
	"github.com/onepwr/procurement-api/internal/domain"
)

func userAt(level domain.PermissionLevel) *auth.UserContext {
	return &auth.UserContext{
		UserID:          uuid.New(),
		DisplayName:     "Thabo Letsie",
		Email:           "thabo@1pwrafrica.com",
		PermissionLevel: level,
		OrganizationID:  "1PWR_LSO",
	}
}

func TestUserContextRoundTrip(t *testing.T) {
	user := userAt(domain.PermissionProcurement)
	ctx := auth.WithUserContext(context.Background(), user)

	got, ok := auth.FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, user, got)

	_, ok = auth.FromContext(context.Background())
	assert.False(t, ok)
}

func TestPermissionChecks(t *testing.T) {
	tests := []struct {
		name            string
		level           domain.PermissionLevel
		isProcurement   bool
		canManageRef    bool
		isGlobal        bool
	}{
		{"global approver", domain.PermissionGlobalApprover, true, true, true},
		{"org approver", domain.PermissionOrgApprover, false, false, false},
		{"procurement admin", domain.PermissionProcurementAdmin, true, true, false},
		{"procurement staff", domain.PermissionProcurement, true, false, false},
		{"plain user", 0, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := userAt(tt.level)
			assert.Equal(t, tt.isProcurement, u.IsProcurement())
			assert.Equal(t, tt.canManageRef, u.CanManageReferenceData())
			assert.Equal(t, tt.isGlobal, u.IsGlobalApprover())
		})
	}
}

func TestCanAccessOrganization(t *testing.T) {
	global := userAt(domain.PermissionGlobalApprover)
	assert.True(t, global.CanAccessOrganization("1PWR_LSO"))
	assert.True(t, global.CanAccessOrganization("1PWR_BEN"))

	scoped := userAt(domain.PermissionProcurement)
	assert.True(t, scoped.CanAccessOrganization("1PWR_LSO"))
	assert.False(t, scoped.CanAccessOrganization("1PWR_BEN"))
}

func TestGetEffectiveOrganizationFilter(t *testing.T) {
	t.Run("no context means no filter", func(t *testing.T) {
		assert.Empty(t, auth.GetEffectiveOrganizationFilter(context.Background()))
	})

	t.Run("scoped user falls back to own organization", func(t *testing.T) {
		ctx := auth.WithUserContext(context.Background(), userAt(domain.PermissionProcurement))
		assert.Equal(t, "1PWR_LSO", auth.GetEffectiveOrganizationFilter(ctx))
	})

	t.Run("global approver sees everything", func(t *testing.T) {
		ctx := auth.WithUserContext(context.Background(), userAt(domain.PermissionGlobalApprover))
		assert.Empty(t, auth.GetEffectiveOrganizationFilter(ctx))
	})

	t.Run("explicit filter wins over user scope", func(t *testing.T) {
		ctx := auth.WithUserContext(context.Background(), userAt(domain.PermissionGlobalApprover))
		ctx = auth.WithOrganizationFilter(ctx, &auth.OrganizationFilter{
			OrganizationID:        "1PWR_BEN",
			RequestedByGlobalUser: true,
		})
		assert.Equal(t, "1PWR_BEN", auth.GetEffectiveOrganizationFilter(ctx))
	})
}

func TestDisplayNameInitials(t *testing.T) {
	u := userAt(domain.PermissionProcurement)
	assert.Equal(t, "TL", u.GetDisplayNameInitials())

	u.DisplayName = ""
	assert.Empty(t, u.GetDisplayNameInitials())
}
