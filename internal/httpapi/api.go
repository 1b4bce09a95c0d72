// Package httpapi exposes the bureau over JSON/HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bureau.org/internal/auth"
	"bureau.org/internal/casefile"
	"bureau.org/internal/domain"
	"bureau.org/internal/obs"
	"bureau.org/internal/roleimage"
	"bureau.org/internal/session"
	"bureau.org/internal/stream"
)

// Pinger reports whether the persistence backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the API is built on.
type Deps struct {
	Actors   *auth.ActorService
	Cases    *casefile.Service
	Images   *roleimage.Service
	Tokens   *auth.TokenIssuer
	Sessions session.Store
	Stream   *stream.Stream
	Backend  Pinger
	Logger   *slog.Logger
	Version  string
}

// API is the HTTP layer.
type API struct {
	actors   *auth.ActorService
	cases    *casefile.Service
	images   *roleimage.Service
	policy   *auth.Policy
	tokens   *auth.TokenIssuer
	sessions session.Store
	stream   *stream.Stream
	backend  Pinger
	logger   *slog.Logger
	version  string

	ratePerSec    float64
	rateBurst     int
	maxBodyBytes  int64
	maxImageBytes int64
	origins       []string
	staticDir     string
	staticPrefix  string
}

// Option configures API.
type Option func(*API)

func WithRateLimit(perSecond float64, burst int) Option {
	return func(a *API) {
		a.ratePerSec = perSecond
		a.rateBurst = burst
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(a *API) { a.maxBodyBytes = n }
}

func WithMaxImageBytes(n int64) Option {
	return func(a *API) { a.maxImageBytes = n }
}

func WithCORSOrigins(origins []string) Option {
	return func(a *API) { a.origins = origins }
}

// WithStaticImages serves uploaded role images from dir under prefix.
func WithStaticImages(prefix, dir string) Option {
	return func(a *API) {
		a.staticPrefix = prefix
		a.staticDir = dir
	}
}

func New(deps Deps, opts ...Option) *API {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &API{
		actors:        deps.Actors,
		cases:         deps.Cases,
		images:        deps.Images,
		policy:        deps.Cases.Policy(),
		tokens:        deps.Tokens,
		sessions:      deps.Sessions,
		stream:        deps.Stream,
		backend:       deps.Backend,
		logger:        logger,
		version:       deps.Version,
		ratePerSec:    20,
		rateBurst:     40,
		maxBodyBytes:  6 << 20,
		maxImageBytes: roleimage.DefaultMaxBytes,
		origins:       []string{"*"},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler builds the router with the full middleware chain.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Recovery(a.logger))
	r.Use(AccessLog(a.logger))
	r.Use(obs.Instrument)
	r.Use(CORS(a.origins))
	r.Use(SecurityHeaders)
	r.Use(MaxBodyBytes(a.maxBodyBytes))
	r.Use(RateLimit(a.ratePerSec, a.rateBurst))

	r.Get("/healthz", a.healthz)
	r.Get("/readyz", a.readyz)
	r.Method(http.MethodGet, "/metrics", obs.Handler())
	if a.staticDir != "" && a.staticPrefix != "" {
		r.Handle(a.staticPrefix+"/*", http.StripPrefix(a.staticPrefix, http.FileServer(http.Dir(a.staticDir))))
	}

	r.Post("/v1/auth/token", a.issueToken)

	r.Group(func(r chi.Router) {
		r.Use(a.authenticate)

		r.Delete("/v1/auth/token", a.revokeToken)
		r.Get("/v1/me", a.me)
		r.Post("/v1/session/impersonate", a.startImpersonation)
		r.Delete("/v1/session/impersonate", a.stopImpersonation)
		r.Get("/v1/events", a.events)

		r.Route("/v1/actors", func(r chi.Router) {
			r.Get("/", a.listActors)
			r.Post("/", a.createActor)
			r.Get("/{id}", a.getActor)
			r.Patch("/{id}", a.updateActor)
			r.Post("/{id}/deactivate", a.deactivateActor)
			r.Put("/{id}/password", a.changePassword)
		})

		r.Get("/v1/roles", a.listRoles)
		r.Put("/v1/roles/{role}/image", a.uploadRoleImage)

		r.Route("/v1/persons", func(r chi.Router) {
			r.Get("/", a.listPersons)
			r.Post("/", a.createPerson)
			r.Get("/{id}", a.getPerson)
			r.Patch("/{id}", a.updatePerson)
			r.Get("/{id}/memberships", a.personMemberships)
			r.Get("/{id}/incidents", a.personIncidents)
			a.assessmentRoutes(r, domain.TargetPerson)
		})
		r.Route("/v1/organizations", func(r chi.Router) {
			r.Get("/", a.listOrganizations)
			r.Post("/", a.createOrganization)
			r.Get("/{id}", a.getOrganization)
			r.Patch("/{id}", a.updateOrganization)
			r.Get("/{id}/memberships", a.organizationMemberships)
			r.Get("/{id}/relationships", a.organizationRelationships)
			a.assessmentRoutes(r, domain.TargetOrganization)
		})
		r.Route("/v1/incidents", func(r chi.Router) {
			r.Get("/", a.listIncidents)
			r.Post("/", a.reportIncident)
			r.Get("/{id}", a.getIncident)
			r.Patch("/{id}", a.updateIncident)
			r.Get("/{id}/hearings", a.listHearings)
			r.Get("/{id}/statements", a.listStatements)
			r.Post("/{id}/statements", a.requestStatements)
			a.assessmentRoutes(r, domain.TargetIncident)
		})

		r.Post("/v1/memberships", a.addMembership)
		r.Patch("/v1/memberships/{id}", a.updateMembership)
		r.Post("/v1/memberships/{id}/verify", a.verifyMembership)
		r.Delete("/v1/memberships/{id}", a.removeMembership)

		r.Post("/v1/relationships", a.addRelationship)
		r.Patch("/v1/relationships/{id}", a.updateRelationship)
		r.Delete("/v1/relationships/{id}", a.removeRelationship)

		r.Post("/v1/hearings", a.openHearing)
		r.Get("/v1/hearings/{id}", a.getHearing)
		r.Post("/v1/hearings/{id}/responses", a.submitResponse)
		r.Post("/v1/hearings/{id}/close", a.closeHearing)

		r.Put("/v1/statements/{id}", a.submitStatement)
		r.Patch("/v1/statements/{id}/comment", a.commentStatement)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// assessmentRoutes mounts the assessment, status and history endpoints of
// one target kind.
func (a *API) assessmentRoutes(r chi.Router, kind domain.TargetKind) {
	r.Put("/{id}/assessment", a.updateAssessment(kind))
	r.Put("/{id}/status", a.setStatus(kind))
	r.Get("/{id}/history", a.history(kind))
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "bureau-api",
		"version": a.version,
	})
}

// readyz reports "degraded" when the database is unreachable; the actor
// directory keeps serving from its built-in fallback in that state.
func (a *API) readyz(w http.ResponseWriter, r *http.Request) {
	backend := "ok"
	if a.backend != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.backend.Ping(ctx); err != nil {
			if !errors.Is(err, domain.ErrBackendUnavailable) {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{
					"status": "not_ready",
					"error":  err.Error(),
				})
				return
			}
			backend = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ready",
		"backend": backend,
	})
}
