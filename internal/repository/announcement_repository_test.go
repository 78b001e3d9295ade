package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulalink/aulalink-api/internal/models"
)

func newAnnouncementRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAnnouncementRepositoryIsVisible(t *testing.T) {
	db, mock, cleanup := newAnnouncementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(7), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.IsVisible(context.Background(), 7, 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryCreateWithTargets(t *testing.T) {
	db, mock, cleanup := newAnnouncementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO announcements").
		WithArgs("Field trip", "Details", int64(2), "groups", nil, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectExec("INSERT INTO announcement_targets").
		WithArgs(int64(3), "group", int64(9), nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	announcement := &models.Announcement{
		Title:        "Field trip",
		BodyMD:       "Details",
		AuthorUserID: 2,
		Scope:        models.ScopeGroups,
	}
	err := repo.Create(context.Background(), announcement, []models.Target{models.GroupTarget(9)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), announcement.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryUpdateResyncsTargetsInOneTransaction(t *testing.T) {
	db, mock, cleanup := newAnnouncementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE announcements SET").
		WithArgs(int64(3), "Field trip", "Details", "users", nil, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM announcement_targets WHERE announcement_id").
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO announcement_targets").
		WithArgs(int64(3), "user", nil, int64(5)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	announcement := &models.Announcement{
		ID:           3,
		Title:        "Field trip",
		BodyMD:       "Details",
		AuthorUserID: 2,
		Scope:        models.ScopeUsers,
	}
	err := repo.Update(context.Background(), announcement, true, []models.Target{models.UserTarget(5)})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryUpdateTargetInsertFailureRollsBack(t *testing.T) {
	db, mock, cleanup := newAnnouncementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE announcements SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM announcement_targets WHERE announcement_id").
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO announcement_targets").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	announcement := &models.Announcement{ID: 3, Title: "Field trip", Scope: models.ScopeUsers}
	err := repo.Update(context.Background(), announcement, true, []models.Target{models.UserTarget(5)})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryPublish(t *testing.T) {
	db, mock, cleanup := newAnnouncementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec("UPDATE announcements SET published_at").
		WithArgs(int64(3), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Publish(context.Background(), 3, now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryMarkReadIdempotent(t *testing.T) {
	db, mock, cleanup := newAnnouncementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO announcement_reads").
		WithArgs(int64(3), int64(7), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkRead(context.Background(), 3, 7, now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryVisibleUserIDs(t *testing.T) {
	db, mock, cleanup := newAnnouncementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	rows := sqlmock.NewRows([]string{"id"}).AddRow(int64(4)).AddRow(int64(5))
	mock.ExpectQuery("SELECT").
		WithArgs(int64(3)).
		WillReturnRows(rows)

	ids, err := repo.VisibleUserIDs(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
