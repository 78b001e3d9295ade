package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulalink/aulalink-api/internal/models"
)

func newMediaRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestMediaRepositoryIsVisible(t *testing.T) {
	db, mock, cleanup := newMediaRepoMock(t)
	defer cleanup()
	repo := NewMediaRepository(db)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(7), int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := repo.IsVisible(context.Background(), 7, 12)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaRepositoryCreateWithTargets(t *testing.T) {
	db, mock, cleanup := newMediaRepoMock(t)
	defer cleanup()
	repo := NewMediaRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO media_items").
		WithArgs(int64(2), "Concert photos", nil, "media/ab/cd.jpg", "image/jpeg", int64(2048), "deadbeef", "users", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(12)))
	mock.ExpectExec("INSERT INTO media_targets").
		WithArgs(int64(12), "user", nil, int64(5), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	item := &models.MediaItem{
		UploaderUserID: 2,
		Title:          "Concert photos",
		FilePath:       "media/ab/cd.jpg",
		MimeType:       "image/jpeg",
		FileSizeBytes:  2048,
		ChecksumSHA256: "deadbeef",
		Scope:          models.ScopeUsers,
	}
	err := repo.Create(context.Background(), item, []models.Target{models.UserTarget(5)})
	require.NoError(t, err)
	assert.Equal(t, int64(12), item.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaRepositoryRecordDownload(t *testing.T) {
	db, mock, cleanup := newMediaRepoMock(t)
	defer cleanup()
	repo := NewMediaRepository(db)

	mock.ExpectQuery("INSERT INTO media_downloads").
		WithArgs(int64(12), int64(7), sqlmock.AnyArg(), "10.0.0.1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(40)))

	download := &models.MediaDownload{MediaID: 12, UserID: 7, DownloadedAt: time.Now().UTC(), IPAddress: "10.0.0.1"}
	require.NoError(t, repo.RecordDownload(context.Background(), download))
	assert.Equal(t, int64(40), download.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaRepositoryListDownloadsDefaultLimit(t *testing.T) {
	db, mock, cleanup := newMediaRepoMock(t)
	defer cleanup()
	repo := NewMediaRepository(db)

	rows := sqlmock.NewRows([]string{"id", "media_id", "user_id", "downloaded_at", "ip_address"}).
		AddRow(int64(40), int64(12), int64(7), time.Now(), "10.0.0.1")
	mock.ExpectQuery("FROM media_downloads").
		WithArgs(int64(12)).
		WillReturnRows(rows)

	downloads, err := repo.ListDownloads(context.Background(), 12, 0)
	require.NoError(t, err)
	assert.Len(t, downloads, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
