package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"bureau.org/internal/domain"
	"bureau.org/internal/ids"
)

// ActorStore persists bureau actors.
type ActorStore interface {
	CreateActor(ctx context.Context, a domain.Actor) error
	GetActor(ctx context.Context, id string) (domain.Actor, error)
	GetActorByEmail(ctx context.Context, email string) (domain.Actor, error)
	ListActors(ctx context.Context) ([]domain.Actor, error)
	UpdateActor(ctx context.Context, id string, upd domain.ActorUpdate, at time.Time) (domain.Actor, error)
}

// ActorList is a page of actors. Degraded is set when the store was
// unreachable and the built-in demo directory was served instead.
type ActorList struct {
	Actors   []domain.Actor `json:"actors"`
	Degraded bool           `json:"degraded"`
}

// CreateActorInput is the payload for CreateActor.
type CreateActorInput struct {
	Email    string
	RealName string
	Role     string
	Password string
	IsMaster bool
}

// ActorPatch carries optional changes to an actor.
type ActorPatch struct {
	RealName *string
	Role     *string
	IsActive *bool
}

// ActorService manages the actor directory.
type ActorService struct {
	store      ActorStore
	policy     *Policy
	fallback   []domain.Actor
	now        func() time.Time
	logger     *slog.Logger
	onDegraded func(op string)
}

// ActorOption configures ActorService.
type ActorOption func(*ActorService)

// WithActorClock overrides the time source.
func WithActorClock(now func() time.Time) ActorOption {
	return func(s *ActorService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithActorLogger sets the service logger.
func WithActorLogger(l *slog.Logger) ActorOption {
	return func(s *ActorService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFallbackActors replaces the embedded demo directory.
func WithFallbackActors(actors []domain.Actor) ActorOption {
	return func(s *ActorService) {
		s.fallback = actors
	}
}

// WithDegradedHook is called with the operation name whenever the fallback directory is served.
func WithDegradedHook(fn func(op string)) ActorOption {
	return func(s *ActorService) {
		s.onDegraded = fn
	}
}

// NewActorService returns a service over store.
func NewActorService(store ActorStore, policy *Policy, opts ...ActorOption) (*ActorService, error) {
	if store == nil {
		return nil, errors.New("actor store is required")
	}
	if policy == nil {
		policy = NewPolicy(nil)
	}
	s := &ActorService{
		store:  store,
		policy: policy,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fallback == nil {
		demo, err := DemoActors()
		if err != nil {
			return nil, err
		}
		s.fallback = demo
	}
	s.logger = s.logger.With("service", "actors")
	return s, nil
}

func (s *ActorService) require(caller *domain.Actor, c Capability) error {
	if !s.policy.HasPermission(caller, c) {
		return fmt.Errorf("%w: %s required", domain.ErrPermissionDenied, c)
	}
	return nil
}

func validateEmail(v *domain.Violations, email string) {
	if email == "" {
		v.Add("email", "is required")
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		v.Add("email", "is not a valid address")
	}
}

// CreateActor registers a new actor. The caller needs canManageUsers; only a
// master may create another master.
func (s *ActorService) CreateActor(ctx context.Context, caller *domain.Actor, in CreateActorInput) (domain.Actor, error) {
	if err := s.require(caller, CanManageUsers); err != nil {
		return domain.Actor{}, err
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.RealName = strings.TrimSpace(in.RealName)

	var v domain.Violations
	validateEmail(&v, in.Email)
	role, ok := domain.ParseRole(in.Role)
	if !ok {
		v.Add("role", "unknown role")
	}
	var pwErr *domain.ValidationError
	if err := ValidatePassword(in.Password); errors.As(err, &pwErr) {
		v = append(v, pwErr.Errors...)
	}
	if err := v.Err(); err != nil {
		return domain.Actor{}, err
	}
	if in.IsMaster && !caller.IsMaster {
		return domain.Actor{}, fmt.Errorf("%w: only a master may create a master actor", domain.ErrPermissionDenied)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return domain.Actor{}, err
	}
	now := s.now().UTC()
	actor := domain.Actor{
		ID:           ids.NewAt(now),
		Email:        in.Email,
		RealName:     in.RealName,
		Role:         role,
		IsActive:     true,
		IsMaster:     in.IsMaster,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateActor(ctx, actor); err != nil {
		return domain.Actor{}, err
	}
	s.logger.InfoContext(ctx, "actor created", "actor_id", actor.ID, "role", actor.Role)
	return actor, nil
}

// GetActor loads one actor, consulting the demo directory when the store is down.
func (s *ActorService) GetActor(ctx context.Context, id string) (domain.Actor, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Actor{}, domain.NewValidationError("id", "is required")
	}
	a, err := s.store.GetActor(ctx, id)
	if errors.Is(err, domain.ErrBackendUnavailable) {
		for _, fa := range s.fallback {
			if fa.ID == id {
				s.degraded(ctx, "get_actor", err)
				return fa, nil
			}
		}
	}
	return a, err
}

// ListActors returns the directory, or the demo directory with Degraded set
// when the store is unreachable.
func (s *ActorService) ListActors(ctx context.Context) (ActorList, error) {
	actors, err := s.store.ListActors(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrBackendUnavailable) {
			return ActorList{}, err
		}
		s.degraded(ctx, "list_actors", err)
		out := make([]domain.Actor, len(s.fallback))
		copy(out, s.fallback)
		return ActorList{Actors: out, Degraded: true}, nil
	}
	return ActorList{Actors: actors}, nil
}

func (s *ActorService) degraded(ctx context.Context, op string, err error) {
	s.logger.WarnContext(ctx, "actor store unavailable, serving demo directory", "op", op, "err", err)
	if s.onDegraded != nil {
		s.onDegraded(op)
	}
}

// UpdateActor applies patch to actor id. The caller needs canManageUsers.
func (s *ActorService) UpdateActor(ctx context.Context, caller *domain.Actor, id string, patch ActorPatch) (domain.Actor, error) {
	if err := s.require(caller, CanManageUsers); err != nil {
		return domain.Actor{}, err
	}
	current, err := s.store.GetActor(ctx, id)
	if err != nil {
		return domain.Actor{}, err
	}
	var upd domain.ActorUpdate
	var v domain.Violations
	if patch.RealName != nil {
		name := strings.TrimSpace(*patch.RealName)
		upd.RealName = &name
	}
	if patch.Role != nil {
		role, ok := domain.ParseRole(*patch.Role)
		if !ok {
			v.Add("role", "unknown role")
		}
		upd.Role = &role
	}
	if patch.IsActive != nil {
		if !*patch.IsActive && current.IsMaster && current.IsActive {
			v.Add("is_active", "an active master actor cannot be deactivated")
		}
		upd.IsActive = patch.IsActive
	}
	if err := v.Err(); err != nil {
		return domain.Actor{}, err
	}
	return s.store.UpdateActor(ctx, id, upd, s.now().UTC())
}

// DeactivateActor soft-deletes actor id. Active master actors are protected.
func (s *ActorService) DeactivateActor(ctx context.Context, caller *domain.Actor, id string) (domain.Actor, error) {
	inactive := false
	return s.UpdateActor(ctx, caller, id, ActorPatch{IsActive: &inactive})
}

// ChangePassword sets a new password for actor id. Actors may change their
// own password by presenting the current one; canManageUsers may reset anyone's.
func (s *ActorService) ChangePassword(ctx context.Context, caller *domain.Actor, id, current, next string) error {
	if caller == nil {
		return domain.ErrUnauthenticated
	}
	self := caller.ID == id
	admin := s.policy.HasPermission(caller, CanManageUsers)
	if !self && !admin {
		return fmt.Errorf("%w: cannot change another actor's password", domain.ErrPermissionDenied)
	}
	target, err := s.store.GetActor(ctx, id)
	if err != nil {
		return err
	}
	if self && !admin {
		if err := VerifyPassword(target.PasswordHash, current); err != nil {
			return domain.NewValidationError("current_password", "does not match")
		}
	}
	if err := ValidatePassword(next); err != nil {
		return err
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	_, err = s.store.UpdateActor(ctx, id, domain.ActorUpdate{PasswordHash: &hash}, s.now().UTC())
	return err
}

// Authenticate checks credentials and returns the active actor.
func (s *ActorService) Authenticate(ctx context.Context, email, password string) (domain.Actor, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return domain.Actor{}, domain.ErrUnauthenticated
	}
	a, err := s.store.GetActorByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Actor{}, domain.ErrUnauthenticated
		}
		return domain.Actor{}, err
	}
	if !a.IsActive || VerifyPassword(a.PasswordHash, password) != nil {
		return domain.Actor{}, domain.ErrUnauthenticated
	}
	return a, nil
}
