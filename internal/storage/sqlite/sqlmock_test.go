package sqlite

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/facet/internal/logging"
	"github.com/mesh-intelligence/facet/internal/storage"
)

// These tests pin the SQL the store emits, independent of any real
// database. Behavior against SQLite proper lives in store_test.go.

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db, logging.Nop()), mock
}

func TestInsertEmitsQuotedTable(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT INTO "acme" (up, type, val, ord, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
	)).WithArgs(int64(0), int64(1), "Person", int64(1), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(100, 1))

	id, err := s.Insert(context.Background(), "acme", 0, 1, 1, "Person", "test")
	require.NoError(t, err)
	assert.Equal(t, int64(100), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateValueBindsIDLast(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE "acme" SET val = ?, updated_at = ? WHERE id = ?`,
	)).WithArgs("after", sqlmock.AnyArg(), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := s.UpdateValue(context.Background(), "acme", 42, "after", "test")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNextOrderScopesByType(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT COALESCE(MAX(ord), 0) + 1 FROM "acme" WHERE up = ? AND type = ?`,
	)).WithArgs(int64(7), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(int64(4)))

	next, err := s.NextOrder(context.Background(), "acme", 7, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNextOrderDropsZeroType(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT COALESCE(MAX(ord), 0) + 1 FROM "acme" WHERE up = ?`,
	)).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(int64(1)))

	next, err := s.NextOrder(context.Background(), "acme", 7, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectRendersBuilderQuery(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT id, up, type, val, ord, created_at, updated_at FROM "acme" WHERE type = ? ORDER BY ord ASC LIMIT 10`,
	)).WithArgs(int64(18)).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "up", "type", "val", "ord", "created_at", "updated_at"},
		).AddRow(int64(101), int64(0), int64(18), "Alice", int64(1),
			"2026-08-23T10:00:00Z", "2026-08-23T10:00:00Z"))

	entities, err := s.Select(context.Background(),
		s.Query("acme").WhereType(18).OrderBy("ord", "ASC").Limit(10), "test")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, int64(101), entities[0].ID)
	assert.Equal(t, "Alice", entities[0].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxCommitsAndRollsBack(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "acme" WHERE id = ?`)).
		WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.RunInTx(ctx, func(st storage.Store) error {
		_, err := st.Delete(ctx, "acme", 5, "test")
		return err
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err = s.RunInTx(ctx, func(storage.Store) error {
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}
