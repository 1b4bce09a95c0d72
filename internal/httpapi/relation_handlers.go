package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bureau.org/internal/casefile"
)

type membershipRequest struct {
	PersonID       string     `json:"person_id"`
	OrganizationID string     `json:"organization_id"`
	Role           string     `json:"role"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
	IsActive       *bool      `json:"is_active"`
}

type membershipPatchRequest struct {
	Role      *string    `json:"role"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	IsActive  *bool      `json:"is_active"`
}

type relationshipRequest struct {
	SourceOrgID string     `json:"source_org_id"`
	TargetOrgID string     `json:"target_org_id"`
	Type        string     `json:"relationship_type"`
	Description string     `json:"description"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

type relationshipPatchRequest struct {
	Type        *string    `json:"relationship_type"`
	Description *string    `json:"description"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

func (a *API) addMembership(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	m, err := a.cases.AddMembership(r.Context(), caller(r), casefile.MembershipInput{
		PersonID:       req.PersonID,
		OrganizationID: req.OrganizationID,
		Role:           req.Role,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		IsActive:       req.IsActive,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (a *API) updateMembership(w http.ResponseWriter, r *http.Request) {
	var req membershipPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	m, err := a.cases.UpdateMembership(r.Context(), caller(r), chi.URLParam(r, "id"), casefile.MembershipPatch{
		Role:      req.Role,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		IsActive:  req.IsActive,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) verifyMembership(w http.ResponseWriter, r *http.Request) {
	m, err := a.cases.VerifyMembership(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) removeMembership(w http.ResponseWriter, r *http.Request) {
	if err := a.cases.RemoveMembership(r.Context(), caller(r), chi.URLParam(r, "id")); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) addRelationship(w http.ResponseWriter, r *http.Request) {
	var req relationshipRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	rel, err := a.cases.AddRelationship(r.Context(), caller(r), casefile.RelationshipInput{
		SourceOrgID: req.SourceOrgID,
		TargetOrgID: req.TargetOrgID,
		Type:        req.Type,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rel)
}

func (a *API) updateRelationship(w http.ResponseWriter, r *http.Request) {
	var req relationshipPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	rel, err := a.cases.UpdateRelationship(r.Context(), caller(r), chi.URLParam(r, "id"), casefile.RelationshipPatch{
		Type:        req.Type,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

func (a *API) removeRelationship(w http.ResponseWriter, r *http.Request) {
	if err := a.cases.RemoveRelationship(r.Context(), caller(r), chi.URLParam(r, "id")); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) organizationRelationships(w http.ResponseWriter, r *http.Request) {
	list, err := a.cases.ListRelationships(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"relationships": list})
}
