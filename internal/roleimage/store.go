package roleimage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"bureau.org/internal/domain"
)

// FileStore writes objects into a directory served at baseURL.
type FileStore struct {
	dir     string
	baseURL string
}

func NewFileStore(dir, baseURL string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	return &FileStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (f *FileStore) Dir() string { return f.dir }

// Put writes data atomically under key.
func (f *FileStore) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", domain.NewValidationError("key", "invalid object key")
	}
	tmp, err := os.CreateTemp(f.dir, ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(f.dir, key)); err != nil {
		return "", err
	}
	return f.baseURL + "/" + key, nil
}

// MemoryRepository keeps role images in memory.
type MemoryRepository struct {
	mu   sync.RWMutex
	imgs map[domain.Role]Image
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{imgs: make(map[domain.Role]Image)}
}

func (m *MemoryRepository) UpsertRoleImage(_ context.Context, img Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imgs[img.Role] = img
	return nil
}

func (m *MemoryRepository) ListRoleImages(_ context.Context) ([]Image, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Image, 0, len(m.imgs))
	for _, img := range m.imgs {
		out = append(out, img)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out, nil
}
