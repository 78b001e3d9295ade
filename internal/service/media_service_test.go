package service

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulalink/aulalink-api/internal/models"
	appErrors "github.com/aulalink/aulalink-api/pkg/errors"
	"github.com/aulalink/aulalink-api/pkg/storage"
	"github.com/aulalink/aulalink-api/pkg/thumbnail"
)

type mockMediaRepo struct {
	items     map[int64]*models.MediaItem
	visible   map[int64]map[int64]bool
	nextID    int64
	targets   map[int64][]models.Target
	downloads []models.MediaDownload
	deleted   []int64
}

func (m *mockMediaRepo) List(ctx context.Context, filter models.MediaFilter) ([]models.MediaItem, int, error) {
	var out []models.MediaItem
	for _, item := range m.items {
		out = append(out, *item)
	}
	return out, len(out), nil
}

func (m *mockMediaRepo) GetByID(ctx context.Context, id int64) (*models.MediaItem, error) {
	if item, ok := m.items[id]; ok {
		cp := *item
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockMediaRepo) IsVisible(ctx context.Context, viewerID, mediaID int64) (bool, error) {
	return m.visible[mediaID][viewerID], nil
}

func (m *mockMediaRepo) Create(ctx context.Context, item *models.MediaItem, targets []models.Target) error {
	if m.items == nil {
		m.items = make(map[int64]*models.MediaItem)
	}
	if m.targets == nil {
		m.targets = make(map[int64][]models.Target)
	}
	m.nextID++
	item.ID = m.nextID
	cp := *item
	m.items[item.ID] = &cp
	m.targets[item.ID] = targets
	return nil
}

func (m *mockMediaRepo) Update(ctx context.Context, item *models.MediaItem, resync bool, targets []models.Target) error {
	cp := *item
	m.items[item.ID] = &cp
	if resync {
		m.targets[item.ID] = targets
	}
	return nil
}

func (m *mockMediaRepo) Delete(ctx context.Context, id int64) error {
	m.deleted = append(m.deleted, id)
	delete(m.items, id)
	return nil
}

func (m *mockMediaRepo) RecordDownload(ctx context.Context, download *models.MediaDownload) error {
	download.ID = int64(len(m.downloads) + 1)
	m.downloads = append(m.downloads, *download)
	return nil
}

func (m *mockMediaRepo) ListDownloads(ctx context.Context, mediaID int64, limit int) ([]models.MediaDownload, error) {
	return m.downloads, nil
}

type mockPreviewGenerator struct {
	result *thumbnail.Result
	calls  int
}

func (m *mockPreviewGenerator) Generate(ctx context.Context, srcPath, mimeType string, maxPx int) *thumbnail.Result {
	m.calls++
	return m.result
}

func newMediaFixture(t *testing.T, repo *mockMediaRepo, previews thumbnailGenerator) *MediaService {
	t.Helper()
	blobs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	thumbs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	groups := &mockGroupLookup{groups: map[int64]*models.Group{
		9: {ID: 9, Name: "5B"},
	}}
	users := &mockUserLookup{users: map[int64]*models.User{
		1: {ID: 1, Role: models.RoleTeacher, Active: true},
		5: {ID: 5, Role: models.RoleParent, Active: true},
	}}
	return NewMediaService(repo, groups, users, blobs, thumbs, previews, 1<<20, nil, nil)
}

func TestMediaServiceUpload(t *testing.T) {
	repo := &mockMediaRepo{}
	svc := newMediaFixture(t, repo, &mockPreviewGenerator{})
	teacher := &models.User{ID: 1, Role: models.RoleTeacher}

	item, err := svc.Upload(context.Background(), teacher, models.CreateMediaRequest{
		Title:   "Homework sheet",
		Scope:   "groups",
		Targets: []models.TargetInput{{TargetType: "group", GroupID: ptrInt64(9)}},
	}, MediaUpload{
		File:     bytes.NewReader([]byte("pdf bytes")),
		Filename: "sheet.pdf",
		MimeType: "application/pdf",
		Size:     9,
	})
	require.NoError(t, err)
	assert.NotZero(t, item.ID)
	assert.Equal(t, int64(9), item.FileSizeBytes)
	assert.Len(t, item.ChecksumSHA256, 64)
	require.Len(t, repo.targets[item.ID], 1)
	assert.Equal(t, models.TargetTypeGroup, repo.targets[item.ID][0].TargetType)
}

func TestMediaServiceUploadParentForbidden(t *testing.T) {
	svc := newMediaFixture(t, &mockMediaRepo{}, &mockPreviewGenerator{})
	parent := &models.User{ID: 5, Role: models.RoleParent}

	_, err := svc.Upload(context.Background(), parent, models.CreateMediaRequest{
		Title: "Nope", Scope: "all",
	}, MediaUpload{File: bytes.NewReader([]byte("x")), Filename: "x.txt", Size: 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Status, appErrors.FromError(err).Status)
}

func TestMediaServiceUploadTooLarge(t *testing.T) {
	svc := newMediaFixture(t, &mockMediaRepo{}, &mockPreviewGenerator{})
	teacher := &models.User{ID: 1, Role: models.RoleTeacher}

	_, err := svc.Upload(context.Background(), teacher, models.CreateMediaRequest{
		Title: "Big", Scope: "all",
	}, MediaUpload{File: bytes.NewReader([]byte("x")), Filename: "big.bin", Size: 2 << 20})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestMediaServiceUploadScopeAllRejectsTargets(t *testing.T) {
	svc := newMediaFixture(t, &mockMediaRepo{}, &mockPreviewGenerator{})
	teacher := &models.User{ID: 1, Role: models.RoleTeacher}

	_, err := svc.Upload(context.Background(), teacher, models.CreateMediaRequest{
		Title:   "Everyone",
		Scope:   "all",
		Targets: []models.TargetInput{{TargetType: "group", GroupID: ptrInt64(9)}},
	}, MediaUpload{File: bytes.NewReader([]byte("x")), Filename: "x.txt", Size: 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestMediaServiceHiddenAnswersNotFound(t *testing.T) {
	repo := &mockMediaRepo{
		items:   map[int64]*models.MediaItem{3: {ID: 3, UploaderUserID: 1, Scope: models.ScopeUsers}},
		visible: map[int64]map[int64]bool{3: {1: true}},
	}
	svc := newMediaFixture(t, repo, &mockPreviewGenerator{})

	_, err := svc.Get(context.Background(), 5, 3)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestMediaServiceUpdateNonUploaderForbidden(t *testing.T) {
	repo := &mockMediaRepo{
		items: map[int64]*models.MediaItem{3: {ID: 3, UploaderUserID: 1, Title: "Old", Scope: models.ScopeAll}},
	}
	svc := newMediaFixture(t, repo, &mockPreviewGenerator{})
	other := &models.User{ID: 2, Role: models.RoleTeacher}

	title := "New"
	_, err := svc.Update(context.Background(), other, 3, models.UpdateMediaRequest{Title: &title})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Status, appErrors.FromError(err).Status)
}

func TestMediaServiceDownloadRecordsAudit(t *testing.T) {
	repo := &mockMediaRepo{}
	svc := newMediaFixture(t, repo, &mockPreviewGenerator{})
	teacher := &models.User{ID: 1, Role: models.RoleTeacher}

	item, err := svc.Upload(context.Background(), teacher, models.CreateMediaRequest{
		Title: "Notes", Scope: "all",
	}, MediaUpload{File: bytes.NewReader([]byte("notes")), Filename: "notes.txt", MimeType: "text/plain", Size: 5})
	require.NoError(t, err)
	repo.visible = map[int64]map[int64]bool{item.ID: {5: true}}

	viewer := &models.User{ID: 5, Role: models.RoleParent}
	got, file, err := svc.Download(context.Background(), viewer, item.ID, "10.0.0.2")
	require.NoError(t, err)
	defer file.Close()

	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "notes", string(data))
	assert.Equal(t, item.ID, got.ID)
	require.Len(t, repo.downloads, 1)
	assert.Equal(t, int64(5), repo.downloads[0].UserID)
	assert.Equal(t, "10.0.0.2", repo.downloads[0].IPAddress)
}

func TestMediaServiceThumbnailCachesRenders(t *testing.T) {
	repo := &mockMediaRepo{
		items:   map[int64]*models.MediaItem{3: {ID: 3, UploaderUserID: 1, FilePath: "media/x.jpg", MimeType: "image/jpeg", Scope: models.ScopeAll}},
		visible: map[int64]map[int64]bool{3: {5: true}},
	}
	previews := &mockPreviewGenerator{result: &thumbnail.Result{Data: []byte("jpeg"), ContentType: "image/jpeg"}}
	svc := newMediaFixture(t, repo, previews)

	data, contentType, err := svc.Thumbnail(context.Background(), 5, 3, "md")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", contentType)
	assert.Equal(t, []byte("jpeg"), data)

	_, _, err = svc.Thumbnail(context.Background(), 5, 3, "md")
	require.NoError(t, err)
	assert.Equal(t, 1, previews.calls)
}

func TestMediaServiceThumbnailPlaceholderNotCached(t *testing.T) {
	repo := &mockMediaRepo{
		items:   map[int64]*models.MediaItem{3: {ID: 3, UploaderUserID: 1, FilePath: "media/x.bin", MimeType: "application/zip", Scope: models.ScopeAll}},
		visible: map[int64]map[int64]bool{3: {5: true}},
	}
	previews := &mockPreviewGenerator{result: &thumbnail.Result{Data: []byte("<svg/>"), ContentType: "image/svg+xml", Placeholder: true}}
	svc := newMediaFixture(t, repo, previews)

	_, _, err := svc.Thumbnail(context.Background(), 5, 3, "md")
	require.NoError(t, err)
	_, _, err = svc.Thumbnail(context.Background(), 5, 3, "md")
	require.NoError(t, err)
	assert.Equal(t, 2, previews.calls)
}

func TestMediaServiceThumbnailUnknownSize(t *testing.T) {
	svc := newMediaFixture(t, &mockMediaRepo{}, &mockPreviewGenerator{})

	_, _, err := svc.Thumbnail(context.Background(), 5, 3, "xl")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
