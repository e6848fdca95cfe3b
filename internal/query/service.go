// Package query serves the read side: filtered object reads, legacy
// JSON projections, aggregates, and tree traversals.
package query

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/facet/internal/logging"
	"github.com/mesh-intelligence/facet/internal/schema"
	"github.com/mesh-intelligence/facet/internal/storage"
	"github.com/mesh-intelligence/facet/internal/validate"
	"github.com/mesh-intelligence/facet/pkg/types"
)

// Service implements read operations over the storage collaborator.
type Service struct {
	store  storage.Store
	schema *schema.Service
	log    *logging.Logger
}

// New builds a query service.
func New(store storage.Store, sch *schema.Service, log *logging.Logger) *Service {
	return &Service{store: store, schema: sch, log: log}
}

// ColumnsRows is the legacy columns-and-rows projection shape.
type ColumnsRows struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// jsonDataHeader is the fixed header row of the legacy data shape.
var jsonDataHeader = []any{"id", "up", "type", "val", "ord"}

// QueryObjects returns the entities of a type under the filter block.
func (s *Service) QueryObjects(ctx context.Context, db string, typeID int64, f types.Filters) ([]types.Entity, error) {
	if err := validate.Database(db); err != nil {
		return nil, err
	}
	if _, err := validate.TypeID("typeId", typeID); err != nil {
		return nil, err
	}
	if err := validate.Filters(&f); err != nil {
		return nil, err
	}
	label := uuid.NewString()
	b := s.buildFiltered(db, typeID, f)
	entities, err := s.store.Select(ctx, b, label)
	if err != nil {
		return nil, fmt.Errorf("querying objects of type %d: %w", typeID, err)
	}
	return entities, nil
}

// QueryObjectsWithRequisites returns a page of objects with their
// attribute values attached, batching the attribute fetch across the
// page.
func (s *Service) QueryObjectsWithRequisites(ctx context.Context, db string, typeID int64, f types.Filters) ([]types.Object, error) {
	entities, err := s.QueryObjects(ctx, db, typeID, f)
	if err != nil {
		return nil, err
	}
	objects := make([]types.Object, 0, len(entities))
	if len(entities) == 0 {
		return objects, nil
	}

	label := uuid.NewString()
	ids := make([]int64, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
	}
	attrs, err := s.store.Select(ctx,
		s.store.Query(db).WhereParentIn(ids).OrderBy("ord", "ASC").OrderBy("id", "ASC"), label)
	if err != nil {
		return nil, fmt.Errorf("fetching attributes: %w", err)
	}
	byParent := make(map[int64]map[int64][]types.ValueRef)
	for _, attr := range attrs {
		slots := byParent[attr.ParentID]
		if slots == nil {
			slots = make(map[int64][]types.ValueRef)
			byParent[attr.ParentID] = slots
		}
		slots[attr.TypeID] = append(slots[attr.TypeID], types.ValueRef{ID: attr.ID, Value: attr.Value})
	}
	for _, e := range entities {
		objects = append(objects, types.Object{Entity: e, Requisites: byParent[e.ID]})
	}
	return objects, nil
}

// SearchObjects returns the objects of a type whose value contains the
// search text, ascending by value unless the filter orders otherwise.
func (s *Service) SearchObjects(ctx context.Context, db string, typeID int64, text string, f types.Filters) ([]types.Entity, error) {
	if err := validate.FreeText("search", text); err != nil {
		return nil, err
	}
	f.ValueLike = text
	if f.OrderBy == "" {
		f.OrderBy = "val"
	}
	return s.QueryObjects(ctx, db, typeID, f)
}

// CountObjects returns how many objects match the filter, ignoring
// paging.
func (s *Service) CountObjects(ctx context.Context, db string, typeID int64, f types.Filters) (int64, error) {
	if err := validate.Database(db); err != nil {
		return 0, err
	}
	if _, err := validate.TypeID("typeId", typeID); err != nil {
		return 0, err
	}
	if err := validate.Filters(&f); err != nil {
		return 0, err
	}
	label := uuid.NewString()
	b := s.store.Query(db).Select("COUNT(*) AS cnt").WhereType(typeID)
	if f.ParentID != nil {
		b.WhereParent(*f.ParentID)
	}
	if f.ValueLike != "" {
		b.Where("val LIKE ?", "%"+f.ValueLike+"%")
	}
	rows, err := s.store.SelectRows(ctx, b, label)
	if err != nil {
		return 0, fmt.Errorf("counting objects of type %d: %w", typeID, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return toInt64(rows[0]["cnt"]), nil
}

// CountByType groups object counts by type across the tenant. Only
// rows referencing a user-defined root type count; schema rows and
// attribute values fall outside that reference set.
func (s *Service) CountByType(ctx context.Context, db string) (map[int64]int64, error) {
	if err := validate.Database(db); err != nil {
		return nil, err
	}
	label := uuid.NewString()
	table := storage.QuoteIdent(db)
	rows, err := s.store.SelectRows(ctx,
		s.store.Query(db).Select("type", "COUNT(*) AS cnt").
			Where("type IN (SELECT id FROM "+table+" WHERE up = 0 AND id >= ?)", types.SystemTypeMax).
			GroupBy("type"), label)
	if err != nil {
		return nil, fmt.Errorf("counting by type: %w", err)
	}
	counts := make(map[int64]int64, len(rows))
	for _, row := range rows {
		counts[toInt64(row["type"])] = toInt64(row["cnt"])
	}
	return counts, nil
}

// GetMax returns the maximum of an allow-listed column over the objects
// of a type.
func (s *Service) GetMax(ctx context.Context, db, column string, typeID int64) (int64, error) {
	return s.aggregate(ctx, db, "MAX", column, typeID)
}

// GetMin returns the minimum of an allow-listed column over the objects
// of a type.
func (s *Service) GetMin(ctx context.Context, db, column string, typeID int64) (int64, error) {
	return s.aggregate(ctx, db, "MIN", column, typeID)
}

func (s *Service) aggregate(ctx context.Context, db, fn, column string, typeID int64) (int64, error) {
	if err := validate.Database(db); err != nil {
		return 0, err
	}
	if err := validate.Column(column); err != nil {
		return 0, err
	}
	if _, err := validate.TypeID("typeId", typeID); err != nil {
		return 0, err
	}
	label := uuid.NewString()
	rows, err := s.store.SelectRows(ctx,
		s.store.Query(db).Select(fn+"("+column+") AS agg").WhereType(typeID), label)
	if err != nil {
		return 0, fmt.Errorf("aggregating %s(%s): %w", fn, column, err)
	}
	if len(rows) == 0 || rows[0]["agg"] == nil {
		return 0, nil
	}
	return toInt64(rows[0]["agg"]), nil
}

// QueryJSONData returns the legacy row-array shape: a header row
// followed by one value row per entity. The header is present even when
// nothing matches.
func (s *Service) QueryJSONData(ctx context.Context, db string, typeID int64, f types.Filters) ([][]any, error) {
	entities, err := s.QueryObjects(ctx, db, typeID, f)
	if err != nil {
		return nil, err
	}
	out := make([][]any, 0, len(entities)+1)
	out = append(out, jsonDataHeader)
	for _, e := range entities {
		out = append(out, []any{e.ID, e.ParentID, e.TypeID, e.Value, e.Order})
	}
	return out, nil
}

// QueryJSONKV returns the legacy id-to-value map shape. An empty result
// is an empty map, never nil.
func (s *Service) QueryJSONKV(ctx context.Context, db string, typeID int64, f types.Filters) (map[int64]string, error) {
	entities, err := s.QueryObjects(ctx, db, typeID, f)
	if err != nil {
		return nil, err
	}
	kv := make(map[int64]string, len(entities))
	for _, e := range entities {
		kv[e.ID] = e.Value
	}
	return kv, nil
}

// QueryJSONCR returns the legacy columns-and-rows shape.
func (s *Service) QueryJSONCR(ctx context.Context, db string, typeID int64, f types.Filters) (*ColumnsRows, error) {
	entities, err := s.QueryObjects(ctx, db, typeID, f)
	if err != nil {
		return nil, err
	}
	cr := &ColumnsRows{
		Columns: []string{"id", "up", "type", "val", "ord"},
		Rows:    make([][]any, 0, len(entities)),
	}
	for _, e := range entities {
		cr.Rows = append(cr.Rows, []any{e.ID, e.ParentID, e.TypeID, e.Value, e.Order})
	}
	return cr, nil
}

// GetTypes returns the tenant's user-defined types.
func (s *Service) GetTypes(ctx context.Context, db string) ([]types.Entity, error) {
	return s.schema.GetAllTypes(ctx, db, false)
}

// GetTypeSchema returns a type with its parsed requisites.
func (s *Service) GetTypeSchema(ctx context.Context, db string, typeID int64) (*types.Schema, error) {
	return s.schema.GetSchema(ctx, db, typeID)
}

// buildFiltered composes the standard filtered read over one type.
func (s *Service) buildFiltered(db string, typeID int64, f types.Filters) *storage.Builder {
	b := s.store.Query(db).WhereType(typeID)
	if f.ParentID != nil {
		b.WhereParent(*f.ParentID)
	}
	if f.ValueLike != "" {
		b.Where("val LIKE ?", "%"+f.ValueLike+"%")
	}
	if len(f.IDs) > 0 {
		b.WhereIDIn(f.IDs)
	}
	orderBy := f.OrderBy
	if orderBy == "" {
		orderBy = "ord"
	}
	return b.OrderBy(orderBy, f.SortDir).Limit(f.Limit).Offset(f.Offset)
}

// toInt64 reads a column value the driver may hand back in any integer
// shape.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case []byte:
		var out int64
		fmt.Sscanf(string(n), "%d", &out)
		return out
	default:
		return 0
	}
}
