// Package roleimage stores the optional picture shown for each bureau role.
// Role definitions stay immutable; image URLs live in a separate role-keyed
// cache that is merged into role views at read time.
package roleimage

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"bureau.org/internal/auth"
	"bureau.org/internal/domain"
	"bureau.org/internal/obs"
)

// DefaultMaxBytes caps uploads at 5 MiB.
const DefaultMaxBytes = 5 << 20

var allowedTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// Image records where a role's picture lives.
type Image struct {
	Role        domain.Role `json:"role"`
	URL         string      `json:"url"`
	ContentType string      `json:"content_type"`
	Size        int64       `json:"size"`
	UpdatedBy   string      `json:"updated_by"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Repository persists the role -> image lookup. UpsertRoleImage replaces any
// existing row for the role.
type Repository interface {
	UpsertRoleImage(ctx context.Context, img Image) error
	ListRoleImages(ctx context.Context) ([]Image, error)
}

// ObjectStore keeps uploaded bytes and returns a publicly resolvable URL.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// RoleView is a role definition merged with its current image URL.
type RoleView struct {
	auth.RoleDefinition
	ImageURL string `json:"image_url,omitempty"`
}

// Service validates uploads and serves the role -> URL cache.
type Service struct {
	repo     Repository
	objects  ObjectStore
	policy   *auth.Policy
	maxBytes int64
	now      func() time.Time
	logger   *slog.Logger

	mu    sync.RWMutex
	cache map[domain.Role]string
}

// Option configures Service.
type Option func(*Service)

func WithMaxBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(repo Repository, objects ObjectStore, policy *auth.Policy, opts ...Option) *Service {
	if policy == nil {
		policy = auth.NewPolicy(nil)
	}
	s := &Service{
		repo:     repo,
		objects:  objects,
		policy:   policy,
		maxBytes: DefaultMaxBytes,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   slog.Default(),
		cache:    make(map[domain.Role]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks size and sniffed content type, returning the content type.
func (s *Service) Validate(data []byte) (string, error) {
	var v domain.Violations
	if len(data) == 0 {
		v.Add("image", "is empty")
	}
	if int64(len(data)) > s.maxBytes {
		v.Add("image", fmt.Sprintf("exceeds %d bytes", s.maxBytes))
	}
	ct := http.DetectContentType(data)
	if _, ok := allowedTypes[ct]; !ok && len(data) > 0 {
		v.Add("content_type", fmt.Sprintf("%s is not one of image/png, image/jpeg, image/webp", ct))
	}
	return ct, v.Err()
}

// Upload stores a new picture for role and updates the cache.
func (s *Service) Upload(ctx context.Context, actor *domain.Actor, role string, data []byte) (Image, error) {
	if actor == nil {
		return Image{}, domain.ErrUnauthenticated
	}
	if !s.policy.HasPermission(actor, auth.CanManageRoleImages) {
		obs.RecordPermissionDenied(string(auth.CanManageRoleImages))
		return Image{}, fmt.Errorf("%w: %s may not manage role images", domain.ErrPermissionDenied, actor.Role)
	}
	r, ok := domain.ParseRole(role)
	if !ok {
		return Image{}, domain.NewValidationError("role", fmt.Sprintf("unknown role %q", role))
	}
	ct, err := s.Validate(data)
	if err != nil {
		return Image{}, err
	}
	now := s.now()
	key := fmt.Sprintf("%s-%d%s", r, now.UnixMilli(), allowedTypes[ct])
	url, err := s.objects.Put(ctx, key, ct, data)
	if err != nil {
		return Image{}, fmt.Errorf("store role image: %w", err)
	}
	img := Image{Role: r, URL: url, ContentType: ct, Size: int64(len(data)), UpdatedBy: actor.ID, UpdatedAt: now}
	if err := s.repo.UpsertRoleImage(ctx, img); err != nil {
		return Image{}, err
	}
	s.mu.Lock()
	s.cache[r] = url
	s.mu.Unlock()
	s.logger.InfoContext(ctx, "role image updated", "role", string(r), "actor_id", actor.ID, "bytes", len(data))
	return img, nil
}

// Refresh replaces the whole cache with the repository's contents. A failed
// load leaves the previous cache in place.
func (s *Service) Refresh(ctx context.Context) error {
	imgs, err := s.repo.ListRoleImages(ctx)
	if err != nil {
		return err
	}
	next := make(map[domain.Role]string, len(imgs))
	for _, img := range imgs {
		next[img.Role] = img.URL
	}
	s.mu.Lock()
	s.cache = next
	s.mu.Unlock()
	return nil
}

// ImageURL returns the cached URL for role, or "".
func (s *Service) ImageURL(role domain.Role) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache[role]
}

// Views merges every role definition with its image URL.
func (s *Service) Views() []RoleView {
	defs := s.policy.Registry().Definitions()
	out := make([]RoleView, 0, len(defs))
	for _, d := range defs {
		out = append(out, RoleView{RoleDefinition: d, ImageURL: s.ImageURL(d.Role)})
	}
	return out
}
