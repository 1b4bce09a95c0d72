package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bureau.org/internal/casefile"
	"bureau.org/internal/domain"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

type personRequest struct {
	Handle   string `json:"handle"`
	RealName string `json:"real_name"`
	Notes    string `json:"notes"`
}

type personPatchRequest struct {
	Handle   *string `json:"handle"`
	RealName *string `json:"real_name"`
	Notes    *string `json:"notes"`
}

type organizationRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type organizationPatchRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type incidentRequest struct {
	PersonID    string     `json:"person_id"`
	Handle      string     `json:"handle"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	OccurredAt  *time.Time `json:"occurred_at"`
	WitnessIDs  []string   `json:"witness_ids"`
}

type incidentPatchRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	OccurredAt  *time.Time `json:"occurred_at"`
	WitnessIDs  *[]string  `json:"witness_ids"`
}

type assessmentRequest struct {
	DangerLevel    int    `json:"danger_level"`
	Classification string `json:"classification"`
	Notes          string `json:"notes"`
}

type statusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// Persons.

func (a *API) listPersons(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultListLimit, maxListLimit)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	status, err := queryStatus(r)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	list, err := a.cases.ListPersons(r.Context(), caller(r), casefile.PersonFilter{
		Handle: r.URL.Query().Get("handle"),
		Status: status,
		Limit:  limit,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"persons": a.viewerFor(r.Context(), caller(r)).persons(list)})
}

func (a *API) createPerson(w http.ResponseWriter, r *http.Request) {
	var req personRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	p, err := a.cases.CreatePerson(r.Context(), caller(r), casefile.PersonInput{
		Handle:   req.Handle,
		RealName: req.RealName,
		Notes:    req.Notes,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/persons/%s", p.ID))
	writeJSON(w, http.StatusCreated, a.viewerFor(r.Context(), caller(r)).person(p))
}

func (a *API) getPerson(w http.ResponseWriter, r *http.Request) {
	p, err := a.cases.GetPerson(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.viewerFor(r.Context(), caller(r)).person(p))
}

func (a *API) updatePerson(w http.ResponseWriter, r *http.Request) {
	var req personPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	p, err := a.cases.UpdatePerson(r.Context(), caller(r), chi.URLParam(r, "id"), casefile.PersonPatch{
		Handle:   req.Handle,
		RealName: req.RealName,
		Notes:    req.Notes,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.viewerFor(r.Context(), caller(r)).person(p))
}

func (a *API) personMemberships(w http.ResponseWriter, r *http.Request) {
	list, err := a.cases.ListMemberships(r.Context(), caller(r), casefile.MembershipFilter{
		PersonID:   chi.URLParam(r, "id"),
		ActiveOnly: r.URL.Query().Get("active") == "true",
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memberships": list})
}

func (a *API) personIncidents(w http.ResponseWriter, r *http.Request) {
	list, err := a.cases.ListIncidents(r.Context(), caller(r), casefile.IncidentFilter{
		PersonID: chi.URLParam(r, "id"),
		Limit:    maxListLimit,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"incidents": a.viewerFor(r.Context(), caller(r)).incidents(list)})
}

// Organizations.

func (a *API) listOrganizations(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultListLimit, maxListLimit)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	status, err := queryStatus(r)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	list, err := a.cases.ListOrganizations(r.Context(), caller(r), casefile.OrganizationFilter{Status: status, Limit: limit})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": a.viewerFor(r.Context(), caller(r)).organizations(list)})
}

func (a *API) createOrganization(w http.ResponseWriter, r *http.Request) {
	var req organizationRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	o, err := a.cases.CreateOrganization(r.Context(), caller(r), casefile.OrganizationInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/organizations/%s", o.ID))
	writeJSON(w, http.StatusCreated, a.viewerFor(r.Context(), caller(r)).organization(o))
}

func (a *API) getOrganization(w http.ResponseWriter, r *http.Request) {
	o, err := a.cases.GetOrganization(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.viewerFor(r.Context(), caller(r)).organization(o))
}

func (a *API) updateOrganization(w http.ResponseWriter, r *http.Request) {
	var req organizationPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	o, err := a.cases.UpdateOrganization(r.Context(), caller(r), chi.URLParam(r, "id"), casefile.OrganizationPatch{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.viewerFor(r.Context(), caller(r)).organization(o))
}

func (a *API) organizationMemberships(w http.ResponseWriter, r *http.Request) {
	list, err := a.cases.ListMemberships(r.Context(), caller(r), casefile.MembershipFilter{
		OrganizationID: chi.URLParam(r, "id"),
		ActiveOnly:     r.URL.Query().Get("active") == "true",
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memberships": list})
}

// Incidents.

func (a *API) listIncidents(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultListLimit, maxListLimit)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	status, err := queryStatus(r)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	q := r.URL.Query()
	list, err := a.cases.ListIncidents(r.Context(), caller(r), casefile.IncidentFilter{
		PersonID:   q.Get("person_id"),
		ReporterID: q.Get("reporter_id"),
		Status:     status,
		Limit:      limit,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"incidents": a.viewerFor(r.Context(), caller(r)).incidents(list)})
}

func (a *API) reportIncident(w http.ResponseWriter, r *http.Request) {
	var req incidentRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	in, err := a.cases.ReportIncident(r.Context(), caller(r), casefile.IncidentInput{
		PersonID:    req.PersonID,
		Handle:      req.Handle,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		OccurredAt:  req.OccurredAt,
		WitnessIDs:  req.WitnessIDs,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/incidents/%s", in.ID))
	writeJSON(w, http.StatusCreated, a.viewerFor(r.Context(), caller(r)).incident(in))
}

func (a *API) getIncident(w http.ResponseWriter, r *http.Request) {
	in, err := a.cases.GetIncident(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.viewerFor(r.Context(), caller(r)).incident(in))
}

func (a *API) updateIncident(w http.ResponseWriter, r *http.Request) {
	var req incidentPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	in, err := a.cases.UpdateIncident(r.Context(), caller(r), chi.URLParam(r, "id"), casefile.IncidentPatch{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		OccurredAt:  req.OccurredAt,
		WitnessIDs:  req.WitnessIDs,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.viewerFor(r.Context(), caller(r)).incident(in))
}

// Assessments. The handlers are bound to a target kind at routing time.

func (a *API) updateAssessment(kind domain.TargetKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req assessmentRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		target := domain.TargetRef{Kind: kind, ID: chi.URLParam(r, "id")}
		as, err := a.cases.UpdateAssessment(r.Context(), caller(r), target, casefile.AssessmentInput{
			DangerLevel:    req.DangerLevel,
			Classification: req.Classification,
			Notes:          req.Notes,
		})
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, a.viewerFor(r.Context(), caller(r)).assessment(as))
	}
}

func (a *API) setStatus(kind domain.TargetKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req statusRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		target := domain.TargetRef{Kind: kind, ID: chi.URLParam(r, "id")}
		as, err := a.cases.SetStatus(r.Context(), caller(r), target, req.Status, req.Notes)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, a.viewerFor(r.Context(), caller(r)).assessment(as))
	}
}

func (a *API) history(kind domain.TargetKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := domain.TargetRef{Kind: kind, ID: chi.URLParam(r, "id")}
		list, err := a.cases.History(r.Context(), caller(r), target)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"history": a.viewerFor(r.Context(), caller(r)).history(list)})
	}
}
