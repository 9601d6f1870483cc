package database

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMigrations_Embedded(t *testing.T) {
	fsys, root := Migrations()

	names, err := ListMigrations(fsys, root)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_users.up.sql", "000002_withdrawals.up.sql"}, names)
}

func expectVersions(mock sqlmock.Sqlmock, applied ...string) {
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{"version"})
	for _, v := range applied {
		rows.AddRow(v)
	}
	mock.ExpectQuery(`SELECT version FROM schema_migrations`).WillReturnRows(rows)
}

func TestMigrator_ApplyFS(t *testing.T) {
	fsys := fstest.MapFS{
		"m/002_b.up.sql":     {Data: []byte("CREATE TABLE b (id INT);")},
		"m/001_a.up.sql":     {Data: []byte("CREATE TABLE a (id INT);")},
		"m/001_a.down.sql":   {Data: []byte("DROP TABLE a;")},
		"m/003_empty.up.sql": {Data: []byte("  \n")},
	}

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectVersions(mock)
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE a`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs("001_a").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE b`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs("002_b").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewMigrator(db, nil).ApplyFS(context.Background(), fsys, "m"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrator_ApplyFS_SkipsApplied(t *testing.T) {
	fsys := fstest.MapFS{
		"m/001_a.up.sql": {Data: []byte("CREATE TABLE a (id INT);")},
		"m/002_b.up.sql": {Data: []byte("CREATE TABLE b (id INT);")},
	}

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectVersions(mock, "001_a")
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE b`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs("002_b").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewMigrator(db, nil).ApplyFS(context.Background(), fsys, "m"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrator_ApplyFS_RollsBackOnFailure(t *testing.T) {
	fsys := fstest.MapFS{
		"m/001_a.up.sql": {Data: []byte("CREATE TABLE a (id INT);")},
		"m/002_b.up.sql": {Data: []byte("CREATE TABLE b (id INT);")},
	}

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectVersions(mock)
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE a`).WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	err = NewMigrator(db, nil).ApplyFS(context.Background(), fsys, "m")
	assert.ErrorContains(t, err, "001_a.up.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}
