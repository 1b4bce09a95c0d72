package domain

import (
	"strings"
	"time"
)

// Role is the single bureau role an actor holds.
type Role string

const (
	RoleSentinel       Role = "sentinel"
	RoleHighJudge      Role = "high_judge"
	RoleJudge          Role = "judge"
	RoleLegalAuthority Role = "legal_authority"
	RoleBountyHunter   Role = "bounty_hunter"
	RoleCitizen        Role = "citizen"
)

// Roles lists every role in descending order of authority.
var Roles = []Role{
	RoleSentinel,
	RoleHighJudge,
	RoleJudge,
	RoleLegalAuthority,
	RoleBountyHunter,
	RoleCitizen,
}

func (r Role) String() string { return string(r) }

func (r Role) IsValid() bool {
	switch r {
	case RoleSentinel, RoleHighJudge, RoleJudge, RoleLegalAuthority, RoleBountyHunter, RoleCitizen:
		return true
	}
	return false
}

// ParseRole normalizes user input into a Role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.IsValid()
}

// Actor is an authenticated user of the bureau.
type Actor struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	RealName     string    `json:"real_name,omitempty"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	IsMaster     bool      `json:"is_master"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ActorUpdate carries optional changes; nil fields are left untouched.
type ActorUpdate struct {
	RealName     *string
	Role         *Role
	IsActive     *bool
	PasswordHash *string
}
