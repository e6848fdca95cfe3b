package query

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/facet/internal/logging"
	"github.com/mesh-intelligence/facet/internal/object"
	"github.com/mesh-intelligence/facet/internal/schema"
	"github.com/mesh-intelligence/facet/internal/storage/sqlite"
	"github.com/mesh-intelligence/facet/pkg/types"
)

const testDB = "acme"

type fixture struct {
	store   *sqlite.Store
	objects *object.Service
	queries *Service

	personID int64
	nameReq  int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.OpenMemory(logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.CreateTenant(ctx, testDB))

	schemas := schema.New(store, nil, logging.Nop())
	objects := object.New(store, schemas, logging.Nop())
	queries := New(store, schemas, logging.Nop())

	personID, err := schemas.CreateType(ctx, testDB, schema.TypeDef{
		Name: "Person",
		Requisites: []schema.RequisiteDef{
			{Name: "name", BaseType: "SHORT", Required: true},
		},
	})
	require.NoError(t, err)
	reqs, err := schemas.GetRequisites(ctx, testDB, personID)
	require.NoError(t, err)

	return &fixture{
		store:    store,
		objects:  objects,
		queries:  queries,
		personID: personID,
		nameReq:  reqs[0].ID,
	}
}

func (f *fixture) createPerson(t *testing.T, value, name string) int64 {
	t.Helper()
	id, err := f.objects.Create(context.Background(), testDB, object.Def{
		TypeID: f.personID,
		Value:  value,
		Requisites: map[string]any{
			strconv.FormatInt(f.nameReq, 10): name,
		},
	})
	require.NoError(t, err)
	return id
}

func TestQueryObjectsPagingAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, v := range []string{"alice", "bob", "carol", "dave"} {
		f.createPerson(t, v, v)
	}

	page, err := f.queries.QueryObjects(ctx, testDB, f.personID, types.Filters{Limit: 2, OrderBy: "val", SortDir: "DESC"})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "dave", page[0].Value)
	assert.Equal(t, "carol", page[1].Value)

	count, err := f.queries.CountObjects(ctx, testDB, f.personID, types.Filters{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestQueryObjectsWithRequisitesBatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.createPerson(t, "alice", "Alice")
	f.createPerson(t, "bob", "Bob")

	objects, err := f.queries.QueryObjectsWithRequisites(ctx, testDB, f.personID, types.Filters{})
	require.NoError(t, err)
	require.Len(t, objects, 2)
	for _, obj := range objects {
		require.Len(t, obj.Requisites[f.nameReq], 1)
		if obj.ID == a {
			assert.Equal(t, "Alice", obj.Requisites[f.nameReq][0].Value)
		}
	}
}

func TestSearchObjectsRejectsInjection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createPerson(t, "alice", "Alice")

	matched, err := f.queries.SearchObjects(ctx, testDB, f.personID, "lic", types.Filters{})
	require.NoError(t, err)
	assert.Len(t, matched, 1)

	_, err = f.queries.SearchObjects(ctx, testDB, f.personID, "x; DROP TABLE acme", types.Filters{})
	assert.True(t, types.IsInjection(err))
}

func TestAggregates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.createPerson(t, "alice", "Alice")
	last := f.createPerson(t, "bob", "Bob")

	max, err := f.queries.GetMax(ctx, testDB, "id", f.personID)
	require.NoError(t, err)
	assert.Equal(t, last, max)

	min, err := f.queries.GetMin(ctx, testDB, "id", f.personID)
	require.NoError(t, err)
	assert.Equal(t, first, min)

	_, err = f.queries.GetMax(ctx, testDB, "id); --", f.personID)
	assert.True(t, types.IsInjection(err))
}

func TestCountByTypeCountsOnlyObjects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createPerson(t, "alice", "Alice")
	f.createPerson(t, "bob", "Bob")

	counts, err := f.queries.CountByType(ctx, testDB)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{f.personID: 2}, counts,
		"schema rows and attribute values stay out of the counts")
}

func TestLegacyShapes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("data shape keeps header when empty", func(t *testing.T) {
		data, err := f.queries.QueryJSONData(ctx, testDB, f.personID, types.Filters{})
		require.NoError(t, err)
		require.Len(t, data, 1)
		assert.Equal(t, []any{"id", "up", "type", "val", "ord"}, data[0])
	})

	id := f.createPerson(t, "alice", "Alice")

	t.Run("data shape rows", func(t *testing.T) {
		data, err := f.queries.QueryJSONData(ctx, testDB, f.personID, types.Filters{})
		require.NoError(t, err)
		require.Len(t, data, 2)
		assert.Equal(t, []any{id, int64(0), f.personID, "alice", int64(1)}, data[1])
	})

	t.Run("kv shape", func(t *testing.T) {
		kv, err := f.queries.QueryJSONKV(ctx, testDB, f.personID, types.Filters{})
		require.NoError(t, err)
		assert.Equal(t, map[int64]string{id: "alice"}, kv)

		empty, err := f.queries.QueryJSONKV(ctx, testDB, f.personID, types.Filters{ValueLike: "nomatch"})
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})

	t.Run("columns rows shape", func(t *testing.T) {
		cr, err := f.queries.QueryJSONCR(ctx, testDB, f.personID, types.Filters{})
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "up", "type", "val", "ord"}, cr.Columns)
		require.Len(t, cr.Rows, 1)
		assert.Equal(t, "alice", cr.Rows[0][3])
	})
}

func TestGetTreeDepthCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A five-deep chain of plain rows, no attribute noise.
	ids := make([]int64, 5)
	var parent int64
	for i := range ids {
		id, err := f.store.Insert(ctx, testDB, parent, 1, f.personID, "n"+strconv.Itoa(i), "test")
		require.NoError(t, err)
		ids[i] = id
		parent = id
	}

	tree, err := f.queries.GetTree(ctx, testDB, ids[0], 2)
	require.NoError(t, err)

	require.Len(t, tree.Children, 1, "level one expanded")
	level2 := tree.Children[0]
	require.Len(t, level2.Children, 1, "level two expanded")
	level3 := level2.Children[0]
	assert.Empty(t, level3.Children, "expansion stops at maxDepth")
	assert.True(t, level3.Truncated)

	missing, err := f.queries.GetTree(ctx, testDB, 99999, 2)
	require.NoError(t, err)
	assert.Nil(t, missing, "absence is not an error")
}

func TestGetAncestors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	grand, err := f.store.Insert(ctx, testDB, 0, 1, f.personID, "grand", "test")
	require.NoError(t, err)
	parent, err := f.store.Insert(ctx, testDB, grand, 1, f.personID, "parent", "test")
	require.NoError(t, err)
	child, err := f.store.Insert(ctx, testDB, parent, 1, f.personID, "child", "test")
	require.NoError(t, err)

	ancestors, err := f.queries.GetAncestors(ctx, testDB, child)
	require.NoError(t, err)
	require.Len(t, ancestors, 2)
	assert.Equal(t, parent, ancestors[0].ID, "nearest ancestor first")
	assert.Equal(t, grand, ancestors[1].ID)

	_, err = f.queries.GetAncestors(ctx, testDB, 99999)
	assert.True(t, types.IsNotFound(err))
}

func TestGetAncestorsTerminatesOnCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.store.Insert(ctx, testDB, 0, 1, f.personID, "a", "test")
	require.NoError(t, err)
	b, err := f.store.Insert(ctx, testDB, a, 1, f.personID, "b", "test")
	require.NoError(t, err)

	// Corrupt the chain into a two-cycle.
	_, err = f.store.Exec(ctx,
		`UPDATE "`+testDB+`" SET up = ? WHERE id = ?`, []any{b, a}, "test")
	require.NoError(t, err)

	ancestors, err := f.queries.GetAncestors(ctx, testDB, b)
	require.NoError(t, err)
	require.Len(t, ancestors, 1, "the walk stops where the cycle closes")
	assert.Equal(t, a, ancestors[0].ID)
}
