package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/facet/internal/logging"
	"github.com/mesh-intelligence/facet/internal/storage/sqlite"
	"github.com/mesh-intelligence/facet/pkg/types"
)

const testDB = "acme"

func newTestService(t *testing.T) (*Service, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.OpenMemory(logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.CreateTenant(context.Background(), testDB))
	return New(store, nil, logging.Nop()), store
}

func personDef() TypeDef {
	return TypeDef{
		Name: "Person",
		Requisites: []RequisiteDef{
			{Name: "name", BaseType: "SHORT", Required: true},
			{Name: "bio", BaseType: "TEXT"},
			{Name: "email", BaseType: "SHORT", Alias: "mail", Multi: true},
		},
	}
}

func TestCreateTypeWithRequisites(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	typeID, err := svc.CreateType(ctx, testDB, personDef())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, typeID, types.SystemTypeMax)

	schema, err := svc.GetSchema(ctx, testDB, typeID)
	require.NoError(t, err)
	assert.Equal(t, "Person", schema.Type.Value)
	assert.Equal(t, types.TypeShort, schema.Type.TypeID, "default base type is SHORT")
	require.Len(t, schema.Requisites, 3)

	byName := map[string]types.Requisite{}
	for _, req := range schema.Requisites {
		byName[req.Modifiers.Name] = req
	}
	assert.True(t, byName["name"].Modifiers.Required)
	assert.Equal(t, types.TypeText, byName["bio"].TypeID)
	assert.Equal(t, "mail", byName["email"].Modifiers.Alias)
	assert.True(t, byName["email"].Modifiers.Multi)
}

func TestCreateTypeRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateType(ctx, "bad;db", TypeDef{Name: "X"})
	assert.True(t, types.IsInjection(err))

	_, err = svc.CreateType(ctx, testDB, TypeDef{Name: ""})
	assert.True(t, types.IsValidation(err))

	_, err = svc.CreateType(ctx, testDB, TypeDef{Name: "X", BaseType: "FANCY"})
	assert.True(t, types.IsValidation(err))
}

func TestGetAllTypesFiltersBuiltins(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	typeID, err := svc.CreateType(ctx, testDB, TypeDef{Name: "Person"})
	require.NoError(t, err)

	visible, err := svc.GetAllTypes(ctx, testDB, false)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, typeID, visible[0].ID)

	all, err := svc.GetAllTypes(ctx, testDB, true)
	require.NoError(t, err)
	assert.Len(t, all, len(types.BasicTypes)+1)
}

func TestUpdateTypeRenames(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	typeID, err := svc.CreateType(ctx, testDB, TypeDef{Name: "Person"})
	require.NoError(t, err)

	name := "Employee"
	require.NoError(t, svc.UpdateType(ctx, testDB, typeID, TypeUpdate{Name: &name}))

	schema, err := svc.GetSchema(ctx, testDB, typeID)
	require.NoError(t, err)
	assert.Equal(t, "Employee", schema.Type.Value)
	assert.Equal(t, typeID, schema.Type.ID, "identity survives the update")
}

func TestUpdateRequisitePreservesUnspecifiedModifiers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	typeID, err := svc.CreateType(ctx, testDB, personDef())
	require.NoError(t, err)
	reqs, err := svc.GetRequisites(ctx, testDB, typeID)
	require.NoError(t, err)

	var email types.Requisite
	for _, req := range reqs {
		if req.Modifiers.Name == "email" {
			email = req
		}
	}
	require.NotZero(t, email.ID)

	required := true
	require.NoError(t, svc.UpdateRequisite(ctx, testDB, email.ID, RequisiteUpdate{Required: &required}))

	reqs, err = svc.GetRequisites(ctx, testDB, typeID)
	require.NoError(t, err)
	for _, req := range reqs {
		if req.ID == email.ID {
			assert.True(t, req.Modifiers.Required)
			assert.True(t, req.Modifiers.Multi, "multi flag survives")
			assert.Equal(t, "mail", req.Modifiers.Alias, "alias survives")
		}
	}
}

func TestDeleteRequisiteRemovesAttributeRows(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	typeID, err := svc.CreateType(ctx, testDB, personDef())
	require.NoError(t, err)
	reqs, err := svc.GetRequisites(ctx, testDB, typeID)
	require.NoError(t, err)
	nameReq := reqs[0]

	// Simulate an object with a value in the slot.
	objID, err := store.Insert(ctx, testDB, 0, 1, typeID, "alice", "test")
	require.NoError(t, err)
	_, err = store.Insert(ctx, testDB, objID, 1, nameReq.ID, "Alice", "test")
	require.NoError(t, err)

	parent, err := svc.DeleteRequisite(ctx, testDB, nameReq.ID)
	require.NoError(t, err)
	assert.Equal(t, typeID, parent)

	orphans, err := store.Select(ctx, store.Query(testDB).WhereType(nameReq.ID), "test")
	require.NoError(t, err)
	assert.Empty(t, orphans, "attribute rows of the slot are gone")
}

func TestDeleteTypeInUse(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	typeID, err := svc.CreateType(ctx, testDB, personDef())
	require.NoError(t, err)
	objID, err := store.Insert(ctx, testDB, 0, 1, typeID, "alice", "test")
	require.NoError(t, err)

	err = svc.DeleteType(ctx, testDB, typeID, false)
	assert.True(t, types.IsConflict(err), "in-use type without cascade is a conflict")

	require.NoError(t, svc.DeleteType(ctx, testDB, typeID, true))

	remaining, err := store.Select(ctx, store.Query(testDB).WhereIDIn([]int64{typeID, objID}), "test")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	err = svc.DeleteType(ctx, testDB, types.TypeShort, true)
	assert.True(t, types.IsValidation(err), "built-ins are protected")
}

func TestGetRequisitesCaches(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	typeID, err := svc.CreateType(ctx, testDB, personDef())
	require.NoError(t, err)

	first, err := svc.GetRequisites(ctx, testDB, typeID)
	require.NoError(t, err)

	// An out-of-band row does not show up while the cache entry lives.
	_, err = store.Insert(ctx, testDB, typeID, 9, types.TypeShort, "ghost", "test")
	require.NoError(t, err)
	second, err := svc.GetRequisites(ctx, testDB, typeID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// A write through the service invalidates and the row appears.
	_, err = svc.AddRequisites(ctx, testDB, typeID, []RequisiteDef{{Name: "phone"}})
	require.NoError(t, err)
	third, err := svc.GetRequisites(ctx, testDB, typeID)
	require.NoError(t, err)
	assert.Len(t, third, len(first)+2)
}

func TestCloneType(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	typeID, err := svc.CreateType(ctx, testDB, personDef())
	require.NoError(t, err)

	cloneID, err := svc.CloneType(ctx, testDB, typeID, "Contact")
	require.NoError(t, err)
	assert.NotEqual(t, typeID, cloneID)

	original, err := svc.GetSchema(ctx, testDB, typeID)
	require.NoError(t, err)
	clone, err := svc.GetSchema(ctx, testDB, cloneID)
	require.NoError(t, err)

	assert.Equal(t, "Contact", clone.Type.Value)
	require.Len(t, clone.Requisites, len(original.Requisites))
	for i := range clone.Requisites {
		assert.Equal(t, original.Requisites[i].Modifiers, clone.Requisites[i].Modifiers)
		assert.Equal(t, original.Requisites[i].TypeID, clone.Requisites[i].TypeID)
		assert.NotEqual(t, original.Requisites[i].ID, clone.Requisites[i].ID)
	}
}

func TestResolveTypeID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	typeID, err := svc.CreateType(ctx, testDB, TypeDef{Name: "Person"})
	require.NoError(t, err)

	got, err := svc.ResolveTypeID(ctx, testDB, "SHORT")
	require.NoError(t, err)
	assert.Equal(t, types.TypeShort, got)

	got, err = svc.ResolveTypeID(ctx, testDB, "Person")
	require.NoError(t, err)
	assert.Equal(t, typeID, got)

	got, err = svc.ResolveTypeID(ctx, testDB, typeID)
	require.NoError(t, err)
	assert.Equal(t, typeID, got)

	_, err = svc.ResolveTypeID(ctx, testDB, "Nothing")
	assert.True(t, types.IsNotFound(err))
}

func TestDeleteTypeCascadeRemovesNestedSubtrees(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	typeID, err := svc.CreateType(ctx, testDB, TypeDef{Name: "Person"})
	require.NoError(t, err)
	noteID, err := svc.CreateType(ctx, testDB, TypeDef{Name: "Note"})
	require.NoError(t, err)

	// An object of the type carrying a nested chain of other-typed rows.
	objID, err := store.Insert(ctx, testDB, 0, 1, typeID, "alice", "test")
	require.NoError(t, err)
	childID, err := store.Insert(ctx, testDB, objID, 1, noteID, "note", "test")
	require.NoError(t, err)
	grandID, err := store.Insert(ctx, testDB, childID, 1, noteID, "subnote", "test")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteType(ctx, testDB, typeID, true))

	remaining, err := store.Select(ctx, store.Query(testDB).WhereIDIn([]int64{objID, childID, grandID}), "test")
	require.NoError(t, err)
	assert.Empty(t, remaining, "the whole subtree goes with the object")

	// Nothing left points at a deleted row.
	orphans, err := store.Select(ctx, store.Query(testDB).WhereParentIn([]int64{objID, childID, grandID}), "test")
	require.NoError(t, err)
	assert.Empty(t, orphans)

	// The unrelated type is untouched.
	_, err = svc.GetSchema(ctx, testDB, noteID)
	require.NoError(t, err)
}

func TestRefreshRequisitesBypassesCache(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	typeID, err := svc.CreateType(ctx, testDB, personDef())
	require.NoError(t, err)
	first, err := svc.GetRequisites(ctx, testDB, typeID)
	require.NoError(t, err)

	_, err = store.Insert(ctx, testDB, typeID, 9, types.TypeShort, "ghost", "test")
	require.NoError(t, err)

	stale, err := svc.GetRequisites(ctx, testDB, typeID)
	require.NoError(t, err)
	assert.Len(t, stale, len(first), "cached entry still served")

	fresh, err := svc.RefreshRequisites(ctx, testDB, typeID)
	require.NoError(t, err)
	assert.Len(t, fresh, len(first)+1, "refresh re-reads storage")

	cached, err := svc.GetRequisites(ctx, testDB, typeID)
	require.NoError(t, err)
	assert.Equal(t, fresh, cached, "refresh repopulates the cache")
}
