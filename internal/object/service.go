// Package object manages data objects: the non-root entities that
// instantiate a Type and the attribute rows hanging under them.
package object

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/facet/internal/logging"
	"github.com/mesh-intelligence/facet/internal/schema"
	"github.com/mesh-intelligence/facet/internal/storage"
	"github.com/mesh-intelligence/facet/internal/validate"
	"github.com/mesh-intelligence/facet/pkg/types"
)

// Service implements object operations over the storage collaborator.
// Schema lookups go through the schema service so requisite parsing and
// caching stay in one place.
type Service struct {
	store  storage.Store
	schema *schema.Service
	log    *logging.Logger
}

// New builds an object service.
func New(store storage.Store, sch *schema.Service, log *logging.Logger) *Service {
	return &Service{store: store, schema: sch, log: log}
}

// Def describes an object to create. Requisites maps requisite slot ids
// to raw values; keys may arrive as strings over JSON boundaries. A nil
// Order is assigned automatically.
type Def struct {
	TypeID     int64
	ParentID   int64
	Value      string
	Order      *int64
	Requisites map[string]any
}

// BatchOptions carries batch-wide overrides: a nonzero TypeID or a set
// ParentID replaces each item's own.
type BatchOptions struct {
	TypeID   int64
	ParentID *int64
}

// Update carries the fields of a composite object update; nil fields
// keep their stored value. A parent change recomputes the sibling order
// under the destination scope.
type Update struct {
	Value      *string
	TypeID     *int64
	ParentID   *int64
	Order      *int64
	Requisites map[string]any
}

// Create inserts an object and its attribute values in one transaction
// and returns the new object id. Without an explicit order the sibling
// order is assigned as max(ord)+1 within the (parent, type) scope.
func (s *Service) Create(ctx context.Context, db string, def Def) (int64, error) {
	if err := validate.Database(db); err != nil {
		return 0, err
	}
	if _, err := validate.TypeID("typeId", def.TypeID); err != nil {
		return 0, err
	}
	if _, err := validate.ID("parentId", def.ParentID); err != nil {
		return 0, err
	}
	if err := validate.Value("value", def.Value, validate.ValueOptions{AllowEmpty: true}); err != nil {
		return 0, err
	}
	requisites, err := validate.Requisites(def.Requisites)
	if err != nil {
		return 0, err
	}
	slots, err := s.schema.GetRequisites(ctx, db, def.TypeID)
	if err != nil {
		return 0, err
	}

	label := uuid.NewString()
	var objID int64
	err = s.store.RunInTx(ctx, func(st storage.Store) error {
		var order int64
		if def.Order != nil {
			if err := validate.Order(*def.Order); err != nil {
				return err
			}
			order = *def.Order
		} else {
			var err error
			order, err = st.NextOrder(ctx, db, def.ParentID, def.TypeID)
			if err != nil {
				return err
			}
		}
		var err error
		objID, err = st.Insert(ctx, db, def.ParentID, order, def.TypeID, def.Value, label)
		if err != nil {
			return err
		}
		return s.saveRequisites(ctx, st, db, objID, slots, requisites, label)
	})
	if err != nil {
		return 0, fmt.Errorf("creating object: %w", err)
	}
	s.log.Info("object created", "db", db, "id", objID, "type", def.TypeID, "label", label)
	return objID, nil
}

// CreateBatch inserts several objects atomically and returns their ids
// in definition order. Batch-level overrides in opts replace each
// item's own parent and type.
func (s *Service) CreateBatch(ctx context.Context, db string, defs []Def, opts BatchOptions) ([]int64, error) {
	if err := validate.Database(db); err != nil {
		return nil, err
	}
	for i := range defs {
		if opts.TypeID != 0 {
			defs[i].TypeID = opts.TypeID
		}
		if opts.ParentID != nil {
			defs[i].ParentID = *opts.ParentID
		}
	}
	if err := validate.Batch(len(defs), func(i int) error {
		if _, err := validate.TypeID(fmt.Sprintf("items[%d].typeId", i), defs[i].TypeID); err != nil {
			return err
		}
		_, err := validate.ID(fmt.Sprintf("items[%d].parentId", i), defs[i].ParentID)
		return err
	}); err != nil {
		return nil, err
	}

	// Slot sets are resolved up front so the transaction below never
	// reads outside itself.
	slotsByType := make(map[int64][]types.Requisite)
	for _, def := range defs {
		if _, ok := slotsByType[def.TypeID]; ok {
			continue
		}
		slots, err := s.schema.GetRequisites(ctx, db, def.TypeID)
		if err != nil {
			return nil, err
		}
		slotsByType[def.TypeID] = slots
	}

	label := uuid.NewString()
	ids := make([]int64, 0, len(defs))
	err := s.store.RunInTx(ctx, func(st storage.Store) error {
		for _, def := range defs {
			requisites, err := validate.Requisites(def.Requisites)
			if err != nil {
				return err
			}
			order, err := st.NextOrder(ctx, db, def.ParentID, def.TypeID)
			if err != nil {
				return err
			}
			id, err := st.Insert(ctx, db, def.ParentID, order, def.TypeID, def.Value, label)
			if err != nil {
				return err
			}
			if err := s.saveRequisites(ctx, st, db, id, slotsByType[def.TypeID], requisites, label); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating %d objects: %w", len(defs), err)
	}
	return ids, nil
}

// GetByID returns an object with its attribute values grouped by slot,
// or (nil, nil) when no row holds the id.
func (s *Service) GetByID(ctx context.Context, db string, id int64) (*types.Object, error) {
	if err := validate.Database(db); err != nil {
		return nil, err
	}
	label := uuid.NewString()
	rows, err := s.store.Select(ctx, s.store.Query(db).WhereID(id), label)
	if err != nil {
		return nil, fmt.Errorf("fetching object %d: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	obj := types.Object{Entity: rows[0]}
	attrs, err := s.store.Select(ctx,
		s.store.Query(db).WhereParent(id).OrderBy("ord", "ASC").OrderBy("id", "ASC"), label)
	if err != nil {
		return nil, fmt.Errorf("fetching attributes of %d: %w", id, err)
	}
	obj.Requisites = groupAttributes(attrs)
	return &obj, nil
}

// GetByIDs returns the objects holding the given ids, attributes
// included, in id order. Missing ids are skipped.
func (s *Service) GetByIDs(ctx context.Context, db string, ids []int64) ([]types.Object, error) {
	if err := validate.Database(db); err != nil {
		return nil, err
	}
	label := uuid.NewString()
	rows, err := s.store.Select(ctx,
		s.store.Query(db).WhereIDIn(ids).OrderBy("id", "ASC"), label)
	if err != nil {
		return nil, fmt.Errorf("fetching objects: %w", err)
	}
	return s.attachAttributes(ctx, db, rows, label)
}

// GetByType returns the objects of a type under the filter's paging and
// ordering.
func (s *Service) GetByType(ctx context.Context, db string, typeID int64, f types.Filters) ([]types.Entity, error) {
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
	b := s.store.Query(db).WhereType(typeID)
	applyFilters(b, f)
	entities, err := s.store.Select(ctx, b, label)
	if err != nil {
		return nil, fmt.Errorf("fetching objects of type %d: %w", typeID, err)
	}
	return entities, nil
}

// GetChildren returns the direct children of an object in sibling
// order, optionally narrowed by the filter's type and paging.
func (s *Service) GetChildren(ctx context.Context, db string, parentID int64, f types.Filters) ([]types.Entity, error) {
	if err := validate.Database(db); err != nil {
		return nil, err
	}
	if err := validate.Filters(&f); err != nil {
		return nil, err
	}
	label := uuid.NewString()
	b := s.store.Query(db).WhereParent(parentID)
	if f.TypeID != 0 {
		b.WhereType(f.TypeID)
	}
	b.OrderBy("ord", "ASC").OrderBy("id", "ASC").Limit(f.Limit).Offset(f.Offset)
	entities, err := s.store.Select(ctx, b, label)
	if err != nil {
		return nil, fmt.Errorf("fetching children of %d: %w", parentID, err)
	}
	return entities, nil
}

// CountByType returns how many objects reference the type.
func (s *Service) CountByType(ctx context.Context, db string, typeID int64) (int64, error) {
	if err := validate.Database(db); err != nil {
		return 0, err
	}
	label := uuid.NewString()
	rows, err := s.store.SelectRows(ctx,
		s.store.Query(db).Select("COUNT(*) AS cnt").WhereType(typeID), label)
	if err != nil {
		return 0, fmt.Errorf("counting objects of type %d: %w", typeID, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return toCount(rows[0]["cnt"]), nil
}

// UpdateValue rewrites an object's own value.
func (s *Service) UpdateValue(ctx context.Context, db string, id int64, value string) error {
	if err := validate.Database(db); err != nil {
		return err
	}
	if err := validate.Value("value", value, validate.ValueOptions{AllowEmpty: true}); err != nil {
		return err
	}
	label := uuid.NewString()
	matched, err := s.store.UpdateValue(ctx, db, id, value, label)
	if err != nil {
		return fmt.Errorf("updating object %d: %w", id, err)
	}
	if !matched {
		return &types.NotFoundError{Kind: "object", ID: id}
	}
	return nil
}

// UpdateType rebinds an object to another type. The attribute rows are
// left in place; slots of the old type simply stop resolving.
func (s *Service) UpdateType(ctx context.Context, db string, id, typeID int64) error {
	if err := validate.Database(db); err != nil {
		return err
	}
	if _, err := validate.TypeID("typeId", typeID); err != nil {
		return err
	}
	if _, err := s.schema.GetSchema(ctx, db, typeID); err != nil {
		return err
	}
	label := uuid.NewString()
	matched, err := s.store.UpdateType(ctx, db, id, typeID, label)
	if err != nil {
		return fmt.Errorf("retyping object %d: %w", id, err)
	}
	if !matched {
		return &types.NotFoundError{Kind: "object", ID: id}
	}
	return nil
}

// ApplyUpdate applies a composite update: each present field goes
// through its focused mutation, attribute values are replaced per slot,
// and a parent change recomputes the sibling order under the
// destination, all in one transaction.
func (s *Service) ApplyUpdate(ctx context.Context, db string, id int64, upd Update) error {
	if err := validate.Database(db); err != nil {
		return err
	}
	obj, err := s.GetByID(ctx, db, id)
	if err != nil {
		return err
	}
	if obj == nil {
		return &types.NotFoundError{Kind: "object", ID: id}
	}
	coerced, err := validate.Requisites(upd.Requisites)
	if err != nil {
		return err
	}
	typeID := obj.TypeID
	if upd.TypeID != nil {
		if _, err := validate.TypeID("typeId", *upd.TypeID); err != nil {
			return err
		}
		typeID = *upd.TypeID
	}
	slots, err := s.schema.GetRequisites(ctx, db, typeID)
	if err != nil {
		return err
	}

	label := uuid.NewString()
	err = s.store.RunInTx(ctx, func(st storage.Store) error {
		if upd.Value != nil {
			if err := validate.Value("value", *upd.Value, validate.ValueOptions{AllowEmpty: true}); err != nil {
				return err
			}
			if _, err := st.UpdateValue(ctx, db, id, *upd.Value, label); err != nil {
				return err
			}
		}
		if upd.TypeID != nil {
			if _, err := st.UpdateType(ctx, db, id, *upd.TypeID, label); err != nil {
				return err
			}
		}
		if upd.ParentID != nil {
			if _, err := validate.ID("parentId", *upd.ParentID); err != nil {
				return err
			}
			order, err := st.NextOrder(ctx, db, *upd.ParentID, typeID)
			if err != nil {
				return err
			}
			if _, err := st.Exec(ctx,
				"UPDATE "+storage.QuoteIdent(db)+" SET up = ?, ord = ? WHERE id = ?",
				[]any{*upd.ParentID, order, id}, label); err != nil {
				return err
			}
		}
		if upd.Order != nil && upd.ParentID == nil {
			if err := validate.Order(*upd.Order); err != nil {
				return err
			}
			if _, err := st.Exec(ctx,
				"UPDATE "+storage.QuoteIdent(db)+" SET ord = ? WHERE id = ?",
				[]any{*upd.Order, id}, label); err != nil {
				return err
			}
		}
		return s.replaceRequisites(ctx, st, db, id, obj.Requisites, slots, coerced, label)
	})
	if err != nil {
		return fmt.Errorf("updating object %d: %w", id, err)
	}
	return nil
}

// Update rewrites an object's value and replaces the given attribute
// values in one transaction.
func (s *Service) Update(ctx context.Context, db string, id int64, value *string, requisites map[string]any) error {
	return s.ApplyUpdate(ctx, db, id, Update{Value: value, Requisites: requisites})
}

// SaveRequisites replaces attribute values on an existing object.
func (s *Service) SaveRequisites(ctx context.Context, db string, id int64, requisites map[string]any) error {
	return s.ApplyUpdate(ctx, db, id, Update{Requisites: requisites})
}

// GetRequisiteByType returns the object's values in the slots of one
// basic type, flattened across slots.
func (s *Service) GetRequisiteByType(ctx context.Context, db string, id, baseType int64) ([]types.ValueRef, error) {
	if err := validate.Database(db); err != nil {
		return nil, err
	}
	obj, err := s.GetByID(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, &types.NotFoundError{Kind: "object", ID: id}
	}
	slots, err := s.schema.GetRequisites(ctx, db, obj.TypeID)
	if err != nil {
		return nil, err
	}
	var out []types.ValueRef
	for _, slot := range slots {
		if slot.TypeID != baseType {
			continue
		}
		out = append(out, obj.Requisites[slot.ID]...)
	}
	if out == nil {
		out = []types.ValueRef{}
	}
	return out, nil
}

// MoveToParent reparents an object, assigning it the next sibling order
// in the destination scope.
func (s *Service) MoveToParent(ctx context.Context, db string, id, newParentID int64) error {
	if err := validate.Database(db); err != nil {
		return err
	}
	if _, err := validate.ID("parentId", newParentID); err != nil {
		return err
	}
	if id == newParentID {
		return &types.ValidationError{Field: "parentId", Reason: "object cannot be its own parent"}
	}

	label := uuid.NewString()
	return s.store.RunInTx(ctx, func(st storage.Store) error {
		rows, err := st.Select(ctx, st.Query(db).WhereID(id), label)
		if err != nil {
			return fmt.Errorf("fetching object %d: %w", id, err)
		}
		if len(rows) == 0 {
			return &types.NotFoundError{Kind: "object", ID: id}
		}
		obj := rows[0]
		order, err := st.NextOrder(ctx, db, newParentID, obj.TypeID)
		if err != nil {
			return err
		}
		res, err := st.Exec(ctx,
			"UPDATE "+storage.QuoteIdent(db)+" SET up = ?, ord = ? WHERE id = ?",
			[]any{newParentID, order, id}, label)
		if err != nil {
			return err
		}
		if res.AffectedRows == 0 {
			return &types.NotFoundError{Kind: "object", ID: id}
		}
		return nil
	})
}

// Delete removes an object, cascading through its whole subtree depth
// first in one transaction. Without cascade only the row itself goes.
// Returns the number of rows removed.
func (s *Service) Delete(ctx context.Context, db string, id int64, cascade bool) (int64, error) {
	if err := validate.Database(db); err != nil {
		return 0, err
	}
	label := uuid.NewString()
	var removed int64
	var err error
	if cascade {
		err = s.store.RunInTx(ctx, func(st storage.Store) error {
			var err error
			removed, err = s.deleteSubtree(ctx, st, db, id, label)
			return err
		})
	} else {
		var matched bool
		matched, err = s.store.Delete(ctx, db, id, label)
		if matched {
			removed = 1
		}
	}
	if err != nil {
		return 0, fmt.Errorf("deleting object %d: %w", id, err)
	}
	if removed == 0 {
		return 0, &types.NotFoundError{Kind: "object", ID: id}
	}
	s.log.Info("object deleted", "db", db, "id", id, "removed", removed, "label", label)
	return removed, nil
}

// DeleteChildren removes the direct children of an object, leaving the
// object itself in place. The non-cascading path is one bulk statement;
// cascading recurses through each child's subtree.
func (s *Service) DeleteChildren(ctx context.Context, db string, parentID int64, cascade bool) (int64, error) {
	if err := validate.Database(db); err != nil {
		return 0, err
	}
	label := uuid.NewString()
	if !cascade {
		n, err := s.store.BatchDelete(ctx, db, parentID, label)
		if err != nil {
			return 0, fmt.Errorf("deleting children of %d: %w", parentID, err)
		}
		return n, nil
	}
	var removed int64
	err := s.store.RunInTx(ctx, func(st storage.Store) error {
		children, err := st.Select(ctx, st.Query(db).WhereParent(parentID), label)
		if err != nil {
			return err
		}
		for _, child := range children {
			n, err := s.deleteSubtree(ctx, st, db, child.ID, label)
			if err != nil {
				return err
			}
			removed += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("deleting children of %d: %w", parentID, err)
	}
	return removed, nil
}

// DeleteByIDs bulk-deletes rows by id in one statement and returns the
// affected count. An empty list is a no-op.
func (s *Service) DeleteByIDs(ctx context.Context, db string, ids []int64) (int64, error) {
	if err := validate.Database(db); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	label := uuid.NewString()
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	res, err := s.store.Exec(ctx,
		"DELETE FROM "+storage.QuoteIdent(db)+" WHERE id IN ("+strings.Join(placeholders, ", ")+")",
		args, label)
	if err != nil {
		return 0, fmt.Errorf("deleting %d objects: %w", len(ids), err)
	}
	return res.AffectedRows, nil
}

// deleteSubtree removes an entity and everything under it, children
// before parents.
func (s *Service) deleteSubtree(ctx context.Context, st storage.Store, db string, id int64, label string) (int64, error) {
	children, err := st.Select(ctx, st.Query(db).WhereParent(id), label)
	if err != nil {
		return 0, err
	}
	var removed int64
	for _, child := range children {
		n, err := s.deleteSubtree(ctx, st, db, child.ID, label)
		if err != nil {
			return 0, err
		}
		removed += n
	}
	matched, err := st.Delete(ctx, db, id, label)
	if err != nil {
		return 0, err
	}
	if matched {
		removed++
	}
	return removed, nil
}

// SetID moves an object and its references to an explicit id. The
// target must be free, the source must not be a root row, and the id,
// parent references, and attribute type references move in one
// transaction.
func (s *Service) SetID(ctx context.Context, db string, id, newID int64) error {
	if err := validate.Database(db); err != nil {
		return err
	}
	if _, err := validate.ID("newId", newID); err != nil {
		return err
	}
	if newID == 0 {
		return &types.ValidationError{Field: "newId", Reason: "must be positive"}
	}
	if id == newID {
		return nil
	}

	label := uuid.NewString()
	err := s.store.RunInTx(ctx, func(st storage.Store) error {
		rows, err := st.Select(ctx, st.Query(db).WhereID(id), label)
		if err != nil {
			return fmt.Errorf("fetching object %d: %w", id, err)
		}
		if len(rows) == 0 {
			return &types.NotFoundError{Kind: "object", ID: id}
		}
		if rows[0].IsRoot() {
			return &types.ValidationError{Field: "id", Reason: "metadata object ids are immutable"}
		}
		occupied, err := st.IsOccupied(ctx, db, newID)
		if err != nil {
			return err
		}
		if occupied {
			return &types.ConflictError{Reason: fmt.Sprintf("id %d is already occupied", newID)}
		}

		table := storage.QuoteIdent(db)
		if _, err := st.Exec(ctx,
			"UPDATE "+table+" SET id = ? WHERE id = ?", []any{newID, id}, label); err != nil {
			return err
		}
		if _, err := st.Exec(ctx,
			"UPDATE "+table+" SET up = ? WHERE up = ?", []any{newID, id}, label); err != nil {
			return err
		}
		_, err = st.Exec(ctx,
			"UPDATE "+table+" SET type = ? WHERE type = ?", []any{newID, id}, label)
		return err
	})
	if err != nil {
		return fmt.Errorf("moving object %d to id %d: %w", id, newID, err)
	}
	s.log.Info("object id moved", "db", db, "from", id, "to", newID, "label", label)
	return nil
}

// Exists reports whether any row holds the id.
func (s *Service) Exists(ctx context.Context, db string, id int64) (bool, error) {
	if err := validate.Database(db); err != nil {
		return false, err
	}
	return s.store.IsOccupied(ctx, db, id)
}

// saveRequisites inserts attribute rows for the given slot values.
// Values are coerced against each slot's basic type; required slots
// must be present, single-valued slots take exactly one value.
func (s *Service) saveRequisites(ctx context.Context, st storage.Store, db string, objID int64, slots []types.Requisite, values map[int64]string, label string) error {
	slotByID := make(map[int64]types.Requisite, len(slots))
	for _, slot := range slots {
		slotByID[slot.ID] = slot
	}
	for reqID := range values {
		if _, ok := slotByID[reqID]; !ok {
			return &types.ValidationError{Field: "requisites", Reason: fmt.Sprintf("slot %d is not part of the type", reqID)}
		}
	}
	for _, slot := range slots {
		raw, ok := values[slot.ID]
		if !ok {
			if slot.Modifiers.Required {
				return &types.ValidationError{Field: slot.Modifiers.Name, Reason: "is required"}
			}
			continue
		}
		coerced, err := validate.ValueByType(slot.Modifiers.Name, raw, slot.TypeID)
		if err != nil {
			return err
		}
		order, err := st.NextOrder(ctx, db, objID, slot.ID)
		if err != nil {
			return err
		}
		if _, err := st.Insert(ctx, db, objID, order, slot.ID, coerced, label); err != nil {
			return err
		}
	}
	return nil
}

// replaceRequisites rewrites the attribute rows of the named slots,
// leaving slots absent from values untouched.
func (s *Service) replaceRequisites(ctx context.Context, st storage.Store, db string, objID int64, existing map[int64][]types.ValueRef, slots []types.Requisite, values map[int64]string, label string) error {
	slotByID := make(map[int64]types.Requisite, len(slots))
	for _, slot := range slots {
		slotByID[slot.ID] = slot
	}
	for reqID, raw := range values {
		slot, ok := slotByID[reqID]
		if !ok {
			return &types.ValidationError{Field: "requisites", Reason: fmt.Sprintf("slot %d is not part of the type", reqID)}
		}
		coerced, err := validate.ValueByType(slot.Modifiers.Name, raw, slot.TypeID)
		if err != nil {
			return err
		}
		if refs := existing[reqID]; len(refs) > 0 {
			if _, err := st.UpdateValue(ctx, db, refs[0].ID, coerced, label); err != nil {
				return err
			}
			for _, extra := range refs[1:] {
				if _, err := st.Delete(ctx, db, extra.ID, label); err != nil {
					return err
				}
			}
			continue
		}
		order, err := st.NextOrder(ctx, db, objID, reqID)
		if err != nil {
			return err
		}
		if _, err := st.Insert(ctx, db, objID, order, reqID, coerced, label); err != nil {
			return err
		}
	}
	return nil
}

// attachAttributes batches the attribute fetch for a page of objects.
func (s *Service) attachAttributes(ctx context.Context, db string, rows []types.Entity, label string) ([]types.Object, error) {
	objects := make([]types.Object, 0, len(rows))
	if len(rows) == 0 {
		return objects, nil
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	attrs, err := s.store.Select(ctx,
		s.store.Query(db).WhereParentIn(ids).OrderBy("ord", "ASC").OrderBy("id", "ASC"), label)
	if err != nil {
		return nil, fmt.Errorf("fetching attributes: %w", err)
	}
	byParent := make(map[int64][]types.Entity)
	for _, attr := range attrs {
		byParent[attr.ParentID] = append(byParent[attr.ParentID], attr)
	}
	for _, row := range rows {
		objects = append(objects, types.Object{
			Entity:     row,
			Requisites: groupAttributes(byParent[row.ID]),
		})
	}
	return objects, nil
}

// groupAttributes buckets attribute rows by the slot they fill.
func groupAttributes(attrs []types.Entity) map[int64][]types.ValueRef {
	grouped := make(map[int64][]types.ValueRef, len(attrs))
	for _, attr := range attrs {
		grouped[attr.TypeID] = append(grouped[attr.TypeID], types.ValueRef{ID: attr.ID, Value: attr.Value})
	}
	return grouped
}

// applyFilters maps a validated filter block onto the builder.
func applyFilters(b *storage.Builder, f types.Filters) {
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
	b.OrderBy(orderBy, f.SortDir).Limit(f.Limit).Offset(f.Offset)
}

// toCount reads an aggregate column the driver may hand back as any
// integer shape.
func toCount(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
