package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLMirrorMock(t *testing.T) (*SQLMirrorBackend, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	t.Cleanup(func() { _ = sqlxDB.Close() })
	return NewSQLMirrorBackend(sqlxDB), mock
}

func TestSQLMirrorRead(t *testing.T) {
	backend, mock := newSQLMirrorMock(t)
	rows := sqlmock.NewRows([]string{"key", "value"}).AddRow("alunos", `[]`)
	mock.ExpectQuery(`SELECT key, value FROM mirror_entries WHERE key IN \(\$1, \$2\)`).
		WithArgs("alunos", "turmas").
		WillReturnRows(rows)

	values, err := backend.Read(context.Background(), "alunos", "turmas")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"alunos": []byte(`[]`)}, values)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMirrorWriteAllIsTransactional(t *testing.T) {
	backend, mock := newSQLMirrorMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO mirror_entries`).
		WithArgs("turmas", `[]`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO mirror_entries`).
		WithArgs("alunos", `[{"id":1}]`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := backend.WriteAll(context.Background(), []MirrorEntry{
		{Key: "turmas", Value: []byte(`[]`)},
		{Key: "alunos", Value: []byte(`[{"id":1}]`)},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMirrorWriteAllRollsBack(t *testing.T) {
	backend, mock := newSQLMirrorMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO mirror_entries`).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := backend.WriteAll(context.Background(), []MirrorEntry{{Key: "turmas", Value: []byte(`[]`)}})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMirrorEnsureSchema(t *testing.T) {
	backend, mock := newSQLMirrorMock(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS mirror_entries`).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, backend.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
