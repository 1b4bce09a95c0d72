package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bureau.org/internal/domain"
)

func actor(id string, role domain.Role) *domain.Actor {
	return &domain.Actor{ID: id, Email: id + "@bureau.example", Role: role, IsActive: true}
}

func TestHasPermissionNilActor(t *testing.T) {
	p := NewPolicy(nil)
	assert.False(t, p.HasPermission(nil, CanReportIncidents))
	assert.True(t, p.HasPermission(actor("c", domain.RoleCitizen), CanReportIncidents))
}

func TestCanAssess(t *testing.T) {
	p := NewPolicy(nil)
	tests := []struct {
		name       string
		actor      *domain.Actor
		byRole     domain.Role
		byActorID  string
		wantAssess bool
	}{
		{"sentinel overrides high judge", actor("s", domain.RoleSentinel), domain.RoleHighJudge, "h", true},
		{"sentinel on unassessed", actor("s", domain.RoleSentinel), "", "", true},
		{"high judge on unassessed", actor("h", domain.RoleHighJudge), "", "", true},
		{"high judge overrides judge", actor("h", domain.RoleHighJudge), domain.RoleJudge, "j", true},
		{"high judge vs other high judge", actor("h", domain.RoleHighJudge), domain.RoleHighJudge, "h2", false},
		{"high judge vs own assessment", actor("h", domain.RoleHighJudge), domain.RoleHighJudge, "h", false},
		{"high judge vs sentinel", actor("h", domain.RoleHighJudge), domain.RoleSentinel, "s", false},
		{"judge on unassessed", actor("j", domain.RoleJudge), "", "", true},
		{"judge re-assesses own", actor("j", domain.RoleJudge), domain.RoleJudge, "j", true},
		{"judge vs other judge", actor("j", domain.RoleJudge), domain.RoleJudge, "j2", false},
		{"judge vs high judge", actor("j", domain.RoleJudge), domain.RoleHighJudge, "h", false},
		{"legal authority", actor("l", domain.RoleLegalAuthority), "", "", false},
		{"bounty hunter", actor("b", domain.RoleBountyHunter), "", "", false},
		{"citizen", actor("c", domain.RoleCitizen), "", "", false},
		{"nil actor", nil, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantAssess, p.CanAssess(tt.actor, tt.byRole, tt.byActorID))
		})
	}
}

func TestCanManageStatus(t *testing.T) {
	p := NewPolicy(nil)
	for _, role := range domain.Roles {
		want := role == domain.RoleSentinel || role == domain.RoleHighJudge || role == domain.RoleJudge
		assert.Equal(t, want, p.CanManageStatus(actor("x", role)), role)
	}
	assert.False(t, p.CanManageStatus(nil))
}

func TestCanManageStatusRequiresRoleAndCapability(t *testing.T) {
	// A registry granting canManageStatus to a non-judicial role still denies.
	reg := NewRegistry(RoleDefinition{
		Role:         domain.RoleCitizen,
		Capabilities: map[Capability]bool{CanManageStatus: true},
	})
	p := NewPolicy(reg)
	assert.False(t, p.CanManageStatus(actor("c", domain.RoleCitizen)))
	assert.False(t, p.CanManageStatus(actor("j", domain.RoleJudge)))
}
