package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/facet/internal/logging"
	"github.com/mesh-intelligence/facet/internal/storage"
	"github.com/mesh-intelligence/facet/pkg/types"
)

const testDB = "acme"

// newTestStore opens an in-memory store with the test tenant created.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory(logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.CreateTenant(context.Background(), testDB))
	return s
}

func TestCreateTenantSeedsBasicTypes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entities, err := s.Select(ctx, s.Query(testDB).WhereParent(0).OrderBy("id", "ASC"), "test")
	require.NoError(t, err)
	require.Len(t, entities, len(types.BasicTypes))
	assert.Equal(t, "SHORT", entities[0].Value)
	assert.Equal(t, types.TypeShort, entities[0].TypeID, "built-ins are self-typed")

	// Creating the tenant again must not duplicate the seeds.
	require.NoError(t, s.CreateTenant(ctx, testDB))
	again, err := s.Select(ctx, s.Query(testDB).WhereParent(0), "test")
	require.NoError(t, err)
	assert.Len(t, again, len(types.BasicTypes))
}

func TestInsertStartsAboveSystemRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, testDB, 0, 1, types.TypeShort, "Person", "test")
	require.NoError(t, err)
	assert.Equal(t, types.SystemTypeMax, id, "first user row takes the first id above the reserved range")
}

func TestNextOrderMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Orders within one (parent, type) scope increase strictly.
	var seen []int64
	for i := 0; i < 3; i++ {
		ord, err := s.NextOrder(ctx, testDB, 0, types.TypeShort)
		require.NoError(t, err)
		_, err = s.Insert(ctx, testDB, 0, ord, types.TypeShort, "row", "test")
		require.NoError(t, err)
		seen = append(seen, ord)
	}
	// The seeded SHORT row already holds ord 1 in this scope.
	assert.Equal(t, []int64{2, 3, 4}, seen)

	// A different scope starts over.
	ord, err := s.NextOrder(ctx, testDB, 7, types.TypeShort)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ord)
}

func TestUpdateDeleteReportMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, testDB, 0, 1, types.TypeShort, "before", "test")
	require.NoError(t, err)

	ok, err := s.UpdateValue(ctx, testDB, id, "after", "test")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.UpdateValue(ctx, testDB, id+999, "never", "test")
	require.NoError(t, err)
	assert.False(t, ok, "update of a missing row reports no match")

	ok, err = s.Delete(ctx, testDB, id, "test")
	require.NoError(t, err)
	assert.True(t, ok)

	occupied, err := s.IsOccupied(ctx, testDB, id)
	require.NoError(t, err)
	assert.False(t, occupied)
}

func TestBatchDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	parent, err := s.Insert(ctx, testDB, 0, 1, types.TypeShort, "parent", "test")
	require.NoError(t, err)
	for i := int64(1); i <= 3; i++ {
		_, err := s.Insert(ctx, testDB, parent, i, types.TypeText, "child", "test")
		require.NoError(t, err)
	}

	n, err := s.BatchDelete(ctx, testDB, parent, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = s.BatchDelete(ctx, testDB, parent, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(st storage.Store) error {
		if _, err := st.Insert(ctx, testDB, 0, 1, types.TypeShort, "doomed", "test"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	entities, err := s.Select(ctx, s.Query(testDB).Where("val = ?", "doomed"), "test")
	require.NoError(t, err)
	assert.Empty(t, entities, "rolled-back insert must not be visible")
}

func TestRunInTxNestedJoins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.RunInTx(ctx, func(st storage.Store) error {
		return st.RunInTx(ctx, func(inner storage.Store) error {
			_, err := inner.Insert(ctx, testDB, 0, 1, types.TypeShort, "nested", "test")
			return err
		})
	})
	require.NoError(t, err)

	entities, err := s.Select(ctx, s.Query(testDB).Where("val = ?", "nested"), "test")
	require.NoError(t, err)
	assert.Len(t, entities, 1)
}

func TestSelectRowsAggregates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 4; i++ {
		_, err := s.Insert(ctx, testDB, 0, i, types.TypeText, "row", "test")
		require.NoError(t, err)
	}

	rows, err := s.SelectRows(ctx,
		s.Query(testDB).Select("COUNT(*) AS cnt").WhereType(types.TypeText).WhereParent(0), "test")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	// The seeded TEXT built-in has up=0 and type=TEXT as well.
	assert.EqualValues(t, 5, rows[0]["cnt"])
}

func TestDropAndListTenants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTenant(ctx, "other"))
	names, err := s.ListTenants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{testDB, "other"}, names)

	require.NoError(t, s.DropTenant(ctx, "other"))
	names, err = s.ListTenants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{testDB}, names)
}

func TestCreateTenantRejectsBadNames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.CreateTenant(ctx, "bad name; drop")
	assert.True(t, types.IsInjection(err))

	err = s.CreateTenant(ctx, "")
	assert.True(t, types.IsValidation(err))

	err = s.DropTenant(ctx, "bad name; drop")
	assert.True(t, types.IsInjection(err))

	// Nothing leaked into the catalog.
	names, err := s.ListTenants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{testDB}, names)
}
