package roleimage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bureau.org/internal/auth"
	"bureau.org/internal/domain"
)

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	jpegBytes = append([]byte("\xff\xd8\xff\xe0"), make([]byte, 32)...)
	webpBytes = append([]byte("RIFF\x00\x00\x00\x00WEBPVP8 "), make([]byte, 32)...)
)

type failingRepo struct{ *MemoryRepository }

func (failingRepo) ListRoleImages(context.Context) ([]Image, error) {
	return nil, domain.ErrBackendUnavailable
}

func newTestService(t *testing.T, repo Repository) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFileStore(dir, "/static/role-images/")
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return NewService(repo, fs, auth.NewPolicy(nil), WithClock(func() time.Time { return now })), dir
}

func TestValidateAcceptsImageTypes(t *testing.T) {
	svc, _ := newTestService(t, NewMemoryRepository())
	for name, data := range map[string][]byte{"png": pngBytes, "jpeg": jpegBytes, "webp": webpBytes} {
		_, err := svc.Validate(data)
		assert.NoError(t, err, name)
	}
}

func TestValidateRejectsWrongTypeAndSize(t *testing.T) {
	svc, _ := newTestService(t, NewMemoryRepository())

	_, err := svc.Validate([]byte("GIF89a......"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	big := append(append([]byte{}, pngBytes...), bytes.Repeat([]byte{0}, DefaultMaxBytes)...)
	_, err = svc.Validate(big)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "image", ve.Errors[0].Field)

	_, err = svc.Validate(nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUploadRequiresCapability(t *testing.T) {
	svc, _ := newTestService(t, NewMemoryRepository())
	judge := &domain.Actor{ID: "j1", Role: domain.RoleJudge, IsActive: true}
	_, err := svc.Upload(context.Background(), judge, "judge", pngBytes)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = svc.Upload(context.Background(), nil, "judge", pngBytes)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestUploadStoresFileAndUpdatesCache(t *testing.T) {
	repo := NewMemoryRepository()
	svc, dir := newTestService(t, repo)
	sentinel := &domain.Actor{ID: "s1", Role: domain.RoleSentinel, IsActive: true, IsMaster: true}

	_, err := svc.Upload(context.Background(), sentinel, "overlord", pngBytes)
	assert.ErrorIs(t, err, domain.ErrValidation)

	img, err := svc.Upload(context.Background(), sentinel, "Judge", pngBytes)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleJudge, img.Role)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, "/static/role-images/judge-1772366400000.png", img.URL)
	assert.Equal(t, img.URL, svc.ImageURL(domain.RoleJudge))

	raw, err := os.ReadFile(filepath.Join(dir, "judge-1772366400000.png"))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, raw)

	stored, err := repo.ListRoleImages(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "s1", stored[0].UpdatedBy)
}

func TestViewsMergeWithoutMutatingRegistry(t *testing.T) {
	repo := NewMemoryRepository()
	require.NoError(t, repo.UpsertRoleImage(context.Background(), Image{Role: domain.RoleCitizen, URL: "/img/citizen.png"}))
	svc, _ := newTestService(t, repo)
	require.NoError(t, svc.Refresh(context.Background()))

	views := svc.Views()
	require.Len(t, views, len(domain.Roles))
	for _, v := range views {
		if v.Role == domain.RoleCitizen {
			assert.Equal(t, "/img/citizen.png", v.ImageURL)
		} else {
			assert.Empty(t, v.ImageURL, v.Role)
		}
	}
	def, ok := auth.DefaultRegistry().Definition(domain.RoleCitizen)
	require.True(t, ok)
	assert.True(t, def.Capabilities[auth.CanReportIncidents])
}

func TestRefreshFailureKeepsCache(t *testing.T) {
	mem := NewMemoryRepository()
	require.NoError(t, mem.UpsertRoleImage(context.Background(), Image{Role: domain.RoleJudge, URL: "/a.png"}))
	svc, _ := newTestService(t, mem)
	require.NoError(t, svc.Refresh(context.Background()))

	svc.repo = failingRepo{mem}
	err := svc.Refresh(context.Background())
	assert.True(t, errors.Is(err, domain.ErrBackendUnavailable))
	assert.Equal(t, "/a.png", svc.ImageURL(domain.RoleJudge))
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), "/x")
	require.NoError(t, err)
	_, err = fs.Put(context.Background(), "../evil.png", "image/png", pngBytes)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
