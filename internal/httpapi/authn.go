package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"bureau.org/internal/audit"
	"bureau.org/internal/auth"
	"bureau.org/internal/domain"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="bureau"`)
	writeError(w, r, http.StatusUnauthorized, msg)
}

// authenticate resolves the bearer token to its stored session identity and
// reloads both actors so that deactivation takes effect immediately.
func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			unauthorized(w, r, err.Error())
			return
		}
		claims, err := a.tokens.Parse(token)
		if err != nil {
			unauthorized(w, r, "invalid token")
			return
		}
		ctx := r.Context()
		id, err := a.sessions.Load(ctx, claims.SessionID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				unauthorized(w, r, "session expired")
				return
			}
			a.writeServiceError(w, r, err)
			return
		}
		if id.TrueActor().ID != claims.Subject {
			unauthorized(w, r, "invalid token")
			return
		}
		sess := auth.RequestSession{ID: claims.SessionID, Identity: id}
		sess, err = a.refreshSession(r, sess)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthenticated) {
				unauthorized(w, r, "actor is inactive")
				return
			}
			a.writeServiceError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithSession(ctx, sess)))
	})
}

// refreshSession reloads the actors of sess. When only the impersonated actor
// is gone or inactive, the session drops back to the master's own identity
// and is saved that way.
func (a *API) refreshSession(r *http.Request, sess auth.RequestSession) (auth.RequestSession, error) {
	load := func(actorID string) (domain.Actor, error) {
		act, err := a.actors.GetActor(r.Context(), actorID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Actor{}, domain.ErrUnauthenticated
			}
			return domain.Actor{}, err
		}
		if !act.IsActive {
			return domain.Actor{}, domain.ErrUnauthenticated
		}
		return act, nil
	}
	id := sess.Identity
	if id.Original != nil {
		orig, err := load(id.Original.ID)
		if err != nil {
			return auth.RequestSession{}, err
		}
		id.Original = &orig
	}
	active, err := load(id.Active.ID)
	switch {
	case err == nil:
		id.Active = active
	case errors.Is(err, domain.ErrUnauthenticated) && id.Impersonating():
		target := id.Active.ID
		id = auth.StopImpersonation(id)
		if err := a.sessions.Save(r.Context(), sess.ID, id, a.tokens.TTL()); err != nil {
			return auth.RequestSession{}, err
		}
		a.logger.WarnContext(r.Context(), "impersonation ended, target unavailable", "target_actor_id", target, "actor_id", id.Active.ID)
		_ = audit.LogEvent(auth.WithIdentity(r.Context(), id), "session.impersonation.stopped", map[string]any{
			"target_actor_id": target,
			"reason":          "target_unavailable",
		})
	default:
		return auth.RequestSession{}, err
	}
	sess.Identity = id
	return sess, nil
}

// requestSession returns the session placed by authenticate.
func requestSession(r *http.Request) auth.RequestSession {
	s, _ := auth.SessionFromContext(r.Context())
	return s
}

// identity returns the session identity placed by authenticate.
func identity(r *http.Request) (auth.SessionIdentity, bool) {
	return auth.IdentityFromContext(r.Context())
}

// caller returns the effective actor, or nil outside authenticated routes.
func caller(r *http.Request) *domain.Actor {
	id, ok := identity(r)
	if !ok {
		return nil
	}
	return id.Effective()
}
