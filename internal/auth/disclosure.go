package auth

import (
	"strings"

	"bureau.org/internal/domain"
)

const (
	// UnknownName stands in when no name may be shown.
	UnknownName  = "Unknown"
	unknownEmail = "unknown@hidden.com"
)

// Subject is the identity data a view may reveal about a person or actor.
type Subject struct {
	RealName       string
	AssessedByName string
	Handle         string
	Email          string
}

// SubjectFromActor builds a subject from an actor record.
func SubjectFromActor(a *domain.Actor) *Subject {
	if a == nil {
		return nil
	}
	return &Subject{RealName: a.RealName, Email: a.Email}
}

// DisplayName picks the name viewer may see for s. A real name is shown to
// everyone; otherwise the recorded assessor name, then the handle, and
// finally a full e-mail for sensitive viewers or its local part for others.
func (p *Policy) DisplayName(viewer *domain.Actor, s *Subject) string {
	if s == nil {
		return UnknownName
	}
	if name := strings.TrimSpace(s.RealName); name != "" {
		return name
	}
	if name := strings.TrimSpace(s.AssessedByName); name != "" {
		return name
	}
	if handle := strings.TrimSpace(s.Handle); handle != "" {
		return handle
	}
	email := strings.TrimSpace(s.Email)
	if email == "" {
		return UnknownName
	}
	if p.HasPermission(viewer, CanViewSensitiveData) {
		return email
	}
	if local, _, ok := strings.Cut(email, "@"); ok {
		if local == "" {
			return UnknownName
		}
		return local
	}
	return email
}

// DisplayEmail returns s's e-mail, masked unless viewer may see sensitive data.
func (p *Policy) DisplayEmail(viewer *domain.Actor, s *Subject) string {
	if s == nil || strings.TrimSpace(s.Email) == "" {
		return unknownEmail
	}
	if p.HasPermission(viewer, CanViewSensitiveData) {
		return s.Email
	}
	return MaskEmail(s.Email)
}

// MaskEmail keeps the first two characters of the local part and the domain:
// "alice@x.org" becomes "al***@x.org". Addresses without "@" become "xx***".
func MaskEmail(email string) string {
	local, domainPart, ok := strings.Cut(email, "@")
	if !ok {
		return "xx***"
	}
	runes := []rune(local)
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return string(runes) + "***@" + domainPart
}
