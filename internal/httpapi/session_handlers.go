package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"bureau.org/internal/audit"
	"bureau.org/internal/auth"
	"bureau.org/internal/domain"
)

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Actor     actorView `json:"actor"`
}

type meResponse struct {
	Actor         actorView         `json:"actor"`
	Original      *actorView        `json:"original,omitempty"`
	Impersonating bool              `json:"impersonating"`
	Capabilities  []auth.Capability `json:"capabilities"`
}

type impersonateRequest struct {
	ActorID string `json:"actor_id"`
}

func (a *API) issueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	act, err := a.actors.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			_ = audit.LogEvent(r.Context(), "auth.login.failed", map[string]any{"email": auth.MaskEmail(strings.TrimSpace(req.Email))})
			unauthorized(w, r, "invalid credentials")
			return
		}
		a.writeServiceError(w, r, err)
		return
	}
	token, sid, err := a.tokens.Issue(act.ID, "")
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if err := a.sessions.Save(r.Context(), sid, auth.Normal(act), a.tokens.TTL()); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	expiresAt := time.Now().UTC().Add(a.tokens.TTL())
	_ = audit.LogEvent(auth.WithIdentity(r.Context(), auth.Normal(act)), "auth.token.issued", map[string]any{
		"session_id": sid,
		"expires_at": expiresAt.Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Actor:     a.viewerFor(r.Context(), &act).actorView(act),
	})
}

func (a *API) revokeToken(w http.ResponseWriter, r *http.Request) {
	sid := requestSession(r).ID
	if err := a.sessions.Delete(r.Context(), sid); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.token.revoked", map[string]any{"session_id": sid})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) meResponse(r *http.Request, id auth.SessionIdentity) meResponse {
	eff := id.Effective()
	v := a.viewerFor(r.Context(), eff)
	resp := meResponse{
		Actor:         v.actorView(*eff),
		Impersonating: id.Impersonating(),
		Capabilities:  []auth.Capability{},
	}
	if def, ok := a.policy.Registry().Definition(eff.Role); ok {
		resp.Capabilities = def.Granted()
	}
	if id.Original != nil {
		orig := v.actorView(*id.Original)
		orig.Email = id.Original.Email
		resp.Original = &orig
	}
	return resp
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	id, _ := identity(r)
	writeJSON(w, http.StatusOK, a.meResponse(r, id))
}

func (a *API) startImpersonation(w http.ResponseWriter, r *http.Request) {
	id, _ := identity(r)
	sid := requestSession(r).ID
	var req impersonateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if strings.TrimSpace(req.ActorID) == "" {
		a.writeServiceError(w, r, domain.NewValidationError("actor_id", "is required"))
		return
	}
	target, err := a.actors.GetActor(r.Context(), strings.TrimSpace(req.ActorID))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	next, err := a.policy.Impersonate(id, target)
	if err != nil {
		_ = audit.LogEvent(r.Context(), "session.impersonation.denied", map[string]any{"target_actor_id": target.ID})
		a.writeServiceError(w, r, err)
		return
	}
	if err := a.sessions.Save(r.Context(), sid, next, a.tokens.TTL()); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(auth.WithIdentity(r.Context(), next), "session.impersonation.started", map[string]any{
		"target_actor_id": target.ID,
		"target_role":     string(target.Role),
	})
	writeJSON(w, http.StatusOK, a.meResponse(r, next))
}

func (a *API) stopImpersonation(w http.ResponseWriter, r *http.Request) {
	id, _ := identity(r)
	sid := requestSession(r).ID
	next := auth.StopImpersonation(id)
	if id.Impersonating() {
		if err := a.sessions.Save(r.Context(), sid, next, a.tokens.TTL()); err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "session.impersonation.stopped", map[string]any{"target_actor_id": id.Active.ID})
	}
	writeJSON(w, http.StatusOK, a.meResponse(r, next))
}
