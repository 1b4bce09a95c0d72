package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bureau.org/internal/domain"
)

func TestDisplayEmail(t *testing.T) {
	p := NewPolicy(nil)
	judge := actor("j", domain.RoleJudge)
	citizen := actor("c", domain.RoleCitizen)

	tests := []struct {
		name   string
		viewer *domain.Actor
		sub    *Subject
		want   string
	}{
		{"nil subject", judge, nil, "unknown@hidden.com"},
		{"empty email", citizen, &Subject{}, "unknown@hidden.com"},
		{"sensitive viewer", judge, &Subject{Email: "alice@x.org"}, "alice@x.org"},
		{"masked", citizen, &Subject{Email: "alice@x.org"}, "al***@x.org"},
		{"two char local", citizen, &Subject{Email: "al@x.org"}, "al***@x.org"},
		{"one char local", citizen, &Subject{Email: "a@x.org"}, "a***@x.org"},
		{"no at sign", citizen, &Subject{Email: "alice"}, "xx***"},
		{"nil viewer", nil, &Subject{Email: "bob@y.io"}, "bo***@y.io"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.DisplayEmail(tt.viewer, tt.sub))
		})
	}
}

func TestDisplayName(t *testing.T) {
	p := NewPolicy(nil)
	judge := actor("j", domain.RoleJudge)
	citizen := actor("c", domain.RoleCitizen)

	tests := []struct {
		name   string
		viewer *domain.Actor
		sub    *Subject
		want   string
	}{
		{"nil subject", judge, nil, "Unknown"},
		{"real name wins for anyone", citizen, &Subject{RealName: "Alice", Handle: "al", Email: "a@x.org"}, "Alice"},
		{"assessor name", citizen, &Subject{AssessedByName: "Judge Dredd", Handle: "dredd"}, "Judge Dredd"},
		{"handle for sensitive viewer", judge, &Subject{Handle: "shadow", Email: "s@x.org"}, "shadow"},
		{"full email for sensitive viewer", judge, &Subject{Email: "sam@x.org"}, "sam@x.org"},
		{"handle for others", citizen, &Subject{Handle: "shadow", Email: "s@x.org"}, "shadow"},
		{"email local part for others", citizen, &Subject{Email: "sam@x.org"}, "sam"},
		{"nothing known", citizen, &Subject{}, "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.DisplayName(tt.viewer, tt.sub))
		})
	}
}
