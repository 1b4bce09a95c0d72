package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bureau.org/internal/casefile"
)

type hearingRequest struct {
	IncidentID string   `json:"incident_id"`
	Question   string   `json:"question"`
	WitnessIDs []string `json:"witness_ids"`
}

type hearingResponseRequest struct {
	Agreement string `json:"agreement"`
	Comment   string `json:"comment"`
}

type statementsRequest struct {
	WitnessIDs []string `json:"witness_ids"`
	Request    string   `json:"request"`
}

type statementRequest struct {
	Statement string `json:"statement"`
}

type statementCommentRequest struct {
	Comment *string `json:"judge_comment"`
	Request *string `json:"judge_request"`
}

func (a *API) openHearing(w http.ResponseWriter, r *http.Request) {
	var req hearingRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	h, err := a.cases.OpenHearing(r.Context(), caller(r), casefile.HearingInput{
		IncidentID: req.IncidentID,
		Question:   req.Question,
		WitnessIDs: req.WitnessIDs,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/hearings/%s", h.ID))
	writeJSON(w, http.StatusCreated, a.viewerFor(r.Context(), caller(r)).hearing(h))
}

func (a *API) getHearing(w http.ResponseWriter, r *http.Request) {
	h, err := a.cases.GetHearing(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.viewerFor(r.Context(), caller(r)).hearing(h))
}

func (a *API) listHearings(w http.ResponseWriter, r *http.Request) {
	list, err := a.cases.ListHearings(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hearings": a.viewerFor(r.Context(), caller(r)).hearings(list)})
}

func (a *API) submitResponse(w http.ResponseWriter, r *http.Request) {
	var req hearingResponseRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	h, err := a.cases.SubmitResponse(r.Context(), caller(r), chi.URLParam(r, "id"), req.Agreement, req.Comment)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.viewerFor(r.Context(), caller(r)).hearing(h))
}

func (a *API) closeHearing(w http.ResponseWriter, r *http.Request) {
	h, err := a.cases.CloseHearing(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.viewerFor(r.Context(), caller(r)).hearing(h))
}

func (a *API) requestStatements(w http.ResponseWriter, r *http.Request) {
	var req statementsRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	list, err := a.cases.RequestStatements(r.Context(), caller(r), chi.URLParam(r, "id"), req.WitnessIDs, req.Request)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"statements": list})
}

func (a *API) listStatements(w http.ResponseWriter, r *http.Request) {
	list, err := a.cases.ListStatements(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"statements": list})
}

func (a *API) submitStatement(w http.ResponseWriter, r *http.Request) {
	var req statementRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	st, err := a.cases.SubmitStatement(r.Context(), caller(r), chi.URLParam(r, "id"), req.Statement)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) commentStatement(w http.ResponseWriter, r *http.Request) {
	var req statementCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	st, err := a.cases.CommentStatement(r.Context(), caller(r), chi.URLParam(r, "id"), casefile.StatementComment{
		Comment: req.Comment,
		Request: req.Request,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
