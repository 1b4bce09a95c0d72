package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"bureau.org/internal/domain"
)

// MemoryActorStore is a process-local ActorStore.
type MemoryActorStore struct {
	mu      sync.RWMutex
	byID    map[string]domain.Actor
	byEmail map[string]string
}

// NewMemoryActorStore seeds a store with actors.
func NewMemoryActorStore(seed ...domain.Actor) *MemoryActorStore {
	m := &MemoryActorStore{
		byID:    make(map[string]domain.Actor),
		byEmail: make(map[string]string),
	}
	for _, a := range seed {
		m.byID[a.ID] = a
		m.byEmail[strings.ToLower(a.Email)] = a.ID
	}
	return m
}

func (m *MemoryActorStore) CreateActor(_ context.Context, a domain.Actor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[a.ID]; ok {
		return fmt.Errorf("%w: actor %s exists", domain.ErrConflict, a.ID)
	}
	email := strings.ToLower(a.Email)
	if _, ok := m.byEmail[email]; ok {
		return fmt.Errorf("%w: email %s already registered", domain.ErrConflict, a.Email)
	}
	m.byID[a.ID] = a
	m.byEmail[email] = a.ID
	return nil
}

func (m *MemoryActorStore) GetActor(_ context.Context, id string) (domain.Actor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.byID[id]
	if !ok {
		return domain.Actor{}, fmt.Errorf("%w: actor %s", domain.ErrNotFound, id)
	}
	return a, nil
}

func (m *MemoryActorStore) GetActorByEmail(ctx context.Context, email string) (domain.Actor, error) {
	m.mu.RLock()
	id, ok := m.byEmail[strings.ToLower(email)]
	m.mu.RUnlock()
	if !ok {
		return domain.Actor{}, fmt.Errorf("%w: actor %s", domain.ErrNotFound, email)
	}
	return m.GetActor(ctx, id)
}

func (m *MemoryActorStore) ListActors(context.Context) ([]domain.Actor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Actor, 0, len(m.byID))
	for _, a := range m.byID {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryActorStore) UpdateActor(_ context.Context, id string, upd domain.ActorUpdate, at time.Time) (domain.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return domain.Actor{}, fmt.Errorf("%w: actor %s", domain.ErrNotFound, id)
	}
	if upd.RealName != nil {
		a.RealName = *upd.RealName
	}
	if upd.Role != nil {
		a.Role = *upd.Role
	}
	if upd.IsActive != nil {
		a.IsActive = *upd.IsActive
	}
	if upd.PasswordHash != nil {
		a.PasswordHash = *upd.PasswordHash
	}
	a.UpdatedAt = at
	m.byID[id] = a
	return a, nil
}
