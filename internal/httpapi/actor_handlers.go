package httpapi

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bureau.org/internal/audit"
	"bureau.org/internal/auth"
	"bureau.org/internal/domain"
)

type createActorRequest struct {
	Email    string `json:"email"`
	RealName string `json:"real_name"`
	Role     string `json:"role"`
	Password string `json:"password"`
	IsMaster bool   `json:"is_master"`
}

type updateActorRequest struct {
	RealName *string `json:"real_name"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type actorListResponse struct {
	Actors   []actorView `json:"actors"`
	Degraded bool        `json:"degraded"`
}

func (a *API) listActors(w http.ResponseWriter, r *http.Request) {
	list, err := a.actors.ListActors(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	v := a.viewerFor(r.Context(), caller(r))
	writeJSON(w, http.StatusOK, actorListResponse{Actors: v.actors(list.Actors), Degraded: list.Degraded})
}

func (a *API) createActor(w http.ResponseWriter, r *http.Request) {
	var req createActorRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	act, err := a.actors.CreateActor(r.Context(), caller(r), auth.CreateActorInput{
		Email:    req.Email,
		RealName: req.RealName,
		Role:     req.Role,
		Password: req.Password,
		IsMaster: req.IsMaster,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "actor.created", map[string]any{
		"created_actor_id": act.ID,
		"role":             string(act.Role),
		"is_master":        act.IsMaster,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/actors/%s", act.ID))
	writeJSON(w, http.StatusCreated, a.viewerFor(r.Context(), caller(r)).actorView(act))
}

func (a *API) getActor(w http.ResponseWriter, r *http.Request) {
	act, err := a.actors.GetActor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.viewerFor(r.Context(), caller(r)).actorView(act))
}

func (a *API) updateActor(w http.ResponseWriter, r *http.Request) {
	var req updateActorRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	act, err := a.actors.UpdateActor(r.Context(), caller(r), id, auth.ActorPatch{
		RealName: req.RealName,
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	fields := map[string]any{"updated_actor_id": id}
	if req.Role != nil {
		fields["role"] = string(act.Role)
	}
	if req.IsActive != nil {
		fields["is_active"] = act.IsActive
	}
	_ = audit.LogEvent(r.Context(), "actor.updated", fields)
	writeJSON(w, http.StatusOK, a.viewerFor(r.Context(), caller(r)).actorView(act))
}

func (a *API) deactivateActor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	act, err := a.actors.DeactivateActor(r.Context(), caller(r), id)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "actor.deactivated", map[string]any{"deactivated_actor_id": id})
	writeJSON(w, http.StatusOK, a.viewerFor(r.Context(), caller(r)).actorView(act))
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := a.actors.ChangePassword(r.Context(), caller(r), id, req.CurrentPassword, req.NewPassword); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "actor.password.changed", map[string]any{"target_actor_id": id})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listRoles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"roles": a.images.Views()})
}

func (a *API) uploadRoleImage(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, a.maxImageBytes+1))
	if err != nil {
		a.writeServiceError(w, r, domain.NewValidationError("image", "could not read upload"))
		return
	}
	img, err := a.images.Upload(r.Context(), caller(r), chi.URLParam(r, "role"), data)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "role.image.updated", map[string]any{
		"role":  string(img.Role),
		"bytes": img.Size,
	})
	writeJSON(w, http.StatusOK, img)
}
