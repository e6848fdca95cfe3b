// Package schema manages Type definitions and their requisites: the
// root rows of a tenant and the attribute slots hanging under them.
package schema

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/facet/internal/logging"
	"github.com/mesh-intelligence/facet/internal/storage"
	"github.com/mesh-intelligence/facet/internal/validate"
	"github.com/mesh-intelligence/facet/pkg/types"
)

// Service implements schema operations over the storage collaborator.
type Service struct {
	store storage.Store
	cache *Cache
	log   *logging.Logger
}

// New builds a schema service. A nil cache gets the default TTL.
func New(store storage.Store, cache *Cache, log *logging.Logger) *Service {
	if cache == nil {
		cache = NewCache(DefaultTTL)
	}
	return &Service{store: store, cache: cache, log: log}
}

// RequisiteDef describes one attribute slot to create. BaseType takes a
// basic type id or its canonical name; empty means SHORT.
type RequisiteDef struct {
	Name     string
	BaseType any
	Alias    string
	Required bool
	Multi    bool
}

// TypeDef describes a Type to create, optionally with initial
// requisites.
type TypeDef struct {
	Name       string
	BaseType   any
	Requisites []RequisiteDef
}

// TypeUpdate carries the fields of a type to change; nil fields stay.
type TypeUpdate struct {
	Name     *string
	BaseType any
}

// RequisiteUpdate carries the fields of a requisite to change; nil
// fields keep their stored value, including modifiers.
type RequisiteUpdate struct {
	Name     *string
	BaseType any
	Alias    *string
	Required *bool
	Multi    *bool
}

// GetAllTypes returns the tenant's Type rows. Built-in basic types are
// filtered out unless includeSystem is set.
func (s *Service) GetAllTypes(ctx context.Context, db string, includeSystem bool) ([]types.Entity, error) {
	if err := validate.Database(db); err != nil {
		return nil, err
	}
	label := uuid.NewString()
	entities, err := s.store.Select(ctx,
		s.store.Query(db).WhereParent(0).OrderBy("id", "ASC"), label)
	if err != nil {
		return nil, fmt.Errorf("fetching types: %w", err)
	}
	if includeSystem {
		return entities, nil
	}
	out := make([]types.Entity, 0, len(entities))
	for _, e := range entities {
		if !types.IsSystemType(e.ID) {
			out = append(out, e)
		}
	}
	return out, nil
}

// CreateType creates a Type row and its initial requisites in one
// transaction and returns the new type id.
func (s *Service) CreateType(ctx context.Context, db string, def TypeDef) (int64, error) {
	if err := validate.Database(db); err != nil {
		return 0, err
	}
	if err := validate.Value("name", def.Name, validate.ValueOptions{MaxLength: validate.MaxShortLength}); err != nil {
		return 0, err
	}
	baseType, err := s.resolveBaseType(ctx, db, def.BaseType)
	if err != nil {
		return 0, err
	}

	label := uuid.NewString()
	var typeID int64
	err = s.store.RunInTx(ctx, func(st storage.Store) error {
		order, err := st.NextOrder(ctx, db, 0, baseType)
		if err != nil {
			return err
		}
		typeID, err = st.Insert(ctx, db, 0, order, baseType, def.Name, label)
		if err != nil {
			return err
		}
		_, err = s.addRequisites(ctx, st, db, typeID, def.Requisites, label)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("creating type %q: %w", def.Name, err)
	}
	s.log.Info("type created", "db", db, "type", typeID, "name", def.Name, "label", label)
	return typeID, nil
}

// UpdateType renames a Type or rebinds its base type. Identity (id,
// parent) never changes.
func (s *Service) UpdateType(ctx context.Context, db string, typeID int64, upd TypeUpdate) error {
	if err := validate.Database(db); err != nil {
		return err
	}
	if _, err := s.getType(ctx, db, typeID); err != nil {
		return err
	}

	label := uuid.NewString()
	err := s.store.RunInTx(ctx, func(st storage.Store) error {
		if upd.Name != nil {
			if err := validate.Value("name", *upd.Name, validate.ValueOptions{MaxLength: validate.MaxShortLength}); err != nil {
				return err
			}
			if _, err := st.UpdateValue(ctx, db, typeID, *upd.Name, label); err != nil {
				return err
			}
		}
		if upd.BaseType != nil {
			baseType, err := s.resolveBaseType(ctx, db, upd.BaseType)
			if err != nil {
				return err
			}
			if _, err := st.UpdateType(ctx, db, typeID, baseType, label); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("updating type %d: %w", typeID, err)
	}
	s.cache.Invalidate(db, typeID)
	return nil
}

// DeleteType removes a Type. With objects still referencing it the call
// fails unless cascade is set, in which case every object of the type
// with its whole subtree, the requisites, and the type row itself go in
// one transaction.
func (s *Service) DeleteType(ctx context.Context, db string, typeID int64, cascade bool) error {
	if err := validate.Database(db); err != nil {
		return err
	}
	if types.IsSystemType(typeID) {
		return &types.ValidationError{Field: "typeId", Reason: "built-in types cannot be deleted"}
	}
	if _, err := s.getType(ctx, db, typeID); err != nil {
		return err
	}

	label := uuid.NewString()
	objects, err := s.store.Select(ctx, s.store.Query(db).WhereType(typeID), label)
	if err != nil {
		return fmt.Errorf("counting objects of type %d: %w", typeID, err)
	}
	if len(objects) > 0 && !cascade {
		return &types.ConflictError{Reason: fmt.Sprintf("type %d has %d objects; delete them first or cascade", typeID, len(objects))}
	}

	err = s.store.RunInTx(ctx, func(st storage.Store) error {
		for _, obj := range objects {
			if err := s.deleteSubtree(ctx, st, db, obj.ID, label); err != nil {
				return err
			}
		}
		if _, err := st.BatchDelete(ctx, db, typeID, label); err != nil {
			return err
		}
		matched, err := st.Delete(ctx, db, typeID, label)
		if err != nil {
			return err
		}
		if !matched {
			return &types.NotFoundError{Kind: "type", ID: typeID}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting type %d: %w", typeID, err)
	}
	s.cache.Invalidate(db, typeID)
	s.log.Info("type deleted", "db", db, "type", typeID, "cascaded", len(objects), "label", label)
	return nil
}

// deleteSubtree removes an entity and everything under it, children
// before parents, so no surviving row references a deleted one.
func (s *Service) deleteSubtree(ctx context.Context, st storage.Store, db string, id int64, label string) error {
	children, err := st.Select(ctx, st.Query(db).WhereParent(id), label)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := s.deleteSubtree(ctx, st, db, child.ID, label); err != nil {
			return err
		}
	}
	_, err = st.Delete(ctx, db, id, label)
	return err
}

// AddRequisites appends attribute slots to an existing Type and returns
// their new ids in definition order.
func (s *Service) AddRequisites(ctx context.Context, db string, typeID int64, defs []RequisiteDef) ([]int64, error) {
	if err := validate.Database(db); err != nil {
		return nil, err
	}
	if _, err := s.getType(ctx, db, typeID); err != nil {
		return nil, err
	}

	label := uuid.NewString()
	var ids []int64
	err := s.store.RunInTx(ctx, func(st storage.Store) error {
		var err error
		ids, err = s.addRequisites(ctx, st, db, typeID, defs, label)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("adding requisites to type %d: %w", typeID, err)
	}
	s.cache.Invalidate(db, typeID)
	return ids, nil
}

// addRequisites inserts slot rows under typeID through st, which may be
// a transaction.
func (s *Service) addRequisites(ctx context.Context, st storage.Store, db string, typeID int64, defs []RequisiteDef, label string) ([]int64, error) {
	ids := make([]int64, 0, len(defs))
	for i, def := range defs {
		if err := validate.Value(fmt.Sprintf("requisites[%d].name", i), def.Name, validate.ValueOptions{MaxLength: validate.MaxShortLength}); err != nil {
			return nil, err
		}
		baseType, err := s.resolveBaseType(ctx, db, def.BaseType)
		if err != nil {
			return nil, err
		}
		value := types.Modifiers{
			Name:     def.Name,
			Alias:    def.Alias,
			Required: def.Required,
			Multi:    def.Multi,
		}.Encode()
		order, err := st.NextOrder(ctx, db, typeID, baseType)
		if err != nil {
			return nil, err
		}
		id, err := st.Insert(ctx, db, typeID, order, baseType, value, label)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// UpdateRequisite changes a slot's name, modifiers, or base type.
// Modifiers not named in the update keep their stored state.
func (s *Service) UpdateRequisite(ctx context.Context, db string, requisiteID int64, upd RequisiteUpdate) error {
	if err := validate.Database(db); err != nil {
		return err
	}
	row, err := s.getEntity(ctx, db, requisiteID, "requisite")
	if err != nil {
		return err
	}
	if row.IsRoot() {
		return &types.ValidationError{Field: "requisiteId", Reason: "refers to a type, not a requisite"}
	}

	mods := types.DecodeModifiers(row.Value)
	if upd.Name != nil {
		if err := validate.Value("name", *upd.Name, validate.ValueOptions{MaxLength: validate.MaxShortLength}); err != nil {
			return err
		}
		mods.Name = *upd.Name
	}
	if upd.Alias != nil {
		mods.Alias = *upd.Alias
	}
	if upd.Required != nil {
		mods.Required = *upd.Required
	}
	if upd.Multi != nil {
		mods.Multi = *upd.Multi
	}

	label := uuid.NewString()
	err = s.store.RunInTx(ctx, func(st storage.Store) error {
		if _, err := st.UpdateValue(ctx, db, requisiteID, mods.Encode(), label); err != nil {
			return err
		}
		if upd.BaseType != nil {
			baseType, err := s.resolveBaseType(ctx, db, upd.BaseType)
			if err != nil {
				return err
			}
			if _, err := st.UpdateType(ctx, db, requisiteID, baseType, label); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("updating requisite %d: %w", requisiteID, err)
	}
	s.cache.Invalidate(db, row.ParentID)
	return nil
}

// DeleteRequisite removes a slot and every attribute value stored
// against it, and returns the owning type id.
func (s *Service) DeleteRequisite(ctx context.Context, db string, requisiteID int64) (int64, error) {
	if err := validate.Database(db); err != nil {
		return 0, err
	}
	row, err := s.getEntity(ctx, db, requisiteID, "requisite")
	if err != nil {
		return 0, err
	}
	if row.IsRoot() {
		return 0, &types.ValidationError{Field: "requisiteId", Reason: "refers to a type, not a requisite"}
	}

	label := uuid.NewString()
	err = s.store.RunInTx(ctx, func(st storage.Store) error {
		// Attribute rows reference the slot through their type column.
		if _, err := st.Exec(ctx,
			"DELETE FROM "+storage.QuoteIdent(db)+" WHERE type = ?",
			[]any{requisiteID}, label); err != nil {
			return err
		}
		_, err := st.Delete(ctx, db, requisiteID, label)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("deleting requisite %d: %w", requisiteID, err)
	}
	s.cache.Invalidate(db, row.ParentID)
	return row.ParentID, nil
}

// GetRequisites returns the parsed attribute slots of a Type, cached
// per tenant and type.
func (s *Service) GetRequisites(ctx context.Context, db string, typeID int64) ([]types.Requisite, error) {
	if err := validate.Database(db); err != nil {
		return nil, err
	}
	if cached, ok := s.cache.Get(db, typeID); ok {
		return cached, nil
	}
	if _, err := s.getType(ctx, db, typeID); err != nil {
		return nil, err
	}

	label := uuid.NewString()
	rows, err := s.store.Select(ctx,
		s.store.Query(db).WhereParent(typeID).OrderBy("ord", "ASC").OrderBy("id", "ASC"), label)
	if err != nil {
		return nil, fmt.Errorf("fetching requisites of type %d: %w", typeID, err)
	}
	requisites := make([]types.Requisite, 0, len(rows))
	for _, row := range rows {
		requisites = append(requisites, types.Requisite{
			ID:        row.ID,
			TypeID:    row.TypeID,
			Order:     row.Order,
			Modifiers: types.DecodeModifiers(row.Value),
		})
	}
	s.cache.Put(db, typeID, requisites)
	return requisites, nil
}

// RefreshRequisites drops the cached slots of a Type and re-reads them
// from storage, for callers that cannot tolerate the staleness window.
func (s *Service) RefreshRequisites(ctx context.Context, db string, typeID int64) ([]types.Requisite, error) {
	if err := validate.Database(db); err != nil {
		return nil, err
	}
	s.cache.Invalidate(db, typeID)
	return s.GetRequisites(ctx, db, typeID)
}

// GetSchema returns a Type row together with its parsed requisites.
func (s *Service) GetSchema(ctx context.Context, db string, typeID int64) (*types.Schema, error) {
	if err := validate.Database(db); err != nil {
		return nil, err
	}
	typeRow, err := s.getType(ctx, db, typeID)
	if err != nil {
		return nil, err
	}
	requisites, err := s.GetRequisites(ctx, db, typeID)
	if err != nil {
		return nil, err
	}
	return &types.Schema{Type: typeRow, Requisites: requisites}, nil
}

// CloneType copies a Type and its requisites under a new name and
// returns the clone's id. Objects are not copied.
func (s *Service) CloneType(ctx context.Context, db string, typeID int64, newName string) (int64, error) {
	schema, err := s.GetSchema(ctx, db, typeID)
	if err != nil {
		return 0, err
	}
	defs := make([]RequisiteDef, 0, len(schema.Requisites))
	for _, req := range schema.Requisites {
		defs = append(defs, RequisiteDef{
			Name:     req.Modifiers.Name,
			BaseType: req.TypeID,
			Alias:    req.Modifiers.Alias,
			Required: req.Modifiers.Required,
			Multi:    req.Modifiers.Multi,
		})
	}
	return s.CreateType(ctx, db, TypeDef{
		Name:       newName,
		BaseType:   schema.Type.TypeID,
		Requisites: defs,
	})
}

// ResolveTypeID resolves a type reference: a numeric id, a built-in
// name, or a user-defined type name.
func (s *Service) ResolveTypeID(ctx context.Context, db string, ref any) (int64, error) {
	if err := validate.Database(db); err != nil {
		return 0, err
	}
	switch v := ref.(type) {
	case string:
		if id, ok := types.ResolveBasicType(v); ok {
			return id, nil
		}
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			if _, err := s.getType(ctx, db, id); err != nil {
				return 0, err
			}
			return id, nil
		}
		label := uuid.NewString()
		rows, err := s.store.Select(ctx,
			s.store.Query(db).WhereParent(0).Where("val = ?", v).Limit(1), label)
		if err != nil {
			return 0, fmt.Errorf("resolving type %q: %w", v, err)
		}
		if len(rows) == 0 {
			return 0, &types.NotFoundError{Kind: "type", ID: 0}
		}
		return rows[0].ID, nil
	default:
		id, err := validate.TypeID("type", ref)
		if err != nil {
			return 0, err
		}
		if _, err := s.getType(ctx, db, id); err != nil {
			return 0, err
		}
		return id, nil
	}
}

// resolveBaseType maps a RequisiteDef/TypeDef base type reference to a
// basic type id. Nil or empty means SHORT.
func (s *Service) resolveBaseType(ctx context.Context, db string, ref any) (int64, error) {
	switch v := ref.(type) {
	case nil:
		return types.TypeShort, nil
	case string:
		if v == "" {
			return types.TypeShort, nil
		}
		if id, ok := types.ResolveBasicType(v); ok {
			return id, nil
		}
		return 0, &types.ValidationError{Field: "baseType", Reason: fmt.Sprintf("unknown basic type %q", v)}
	default:
		id, err := validate.TypeID("baseType", ref)
		if err != nil {
			return 0, err
		}
		if !types.IsSystemType(id) {
			return 0, &types.ValidationError{Field: "baseType", Reason: "must be a built-in basic type"}
		}
		return id, nil
	}
}

// getType fetches a root row or reports what went wrong.
func (s *Service) getType(ctx context.Context, db string, typeID int64) (types.Entity, error) {
	row, err := s.getEntity(ctx, db, typeID, "type")
	if err != nil {
		return types.Entity{}, err
	}
	if !row.IsRoot() {
		return types.Entity{}, &types.ValidationError{Field: "typeId", Reason: "refers to a non-root entity"}
	}
	return row, nil
}

func (s *Service) getEntity(ctx context.Context, db string, id int64, kind string) (types.Entity, error) {
	label := uuid.NewString()
	rows, err := s.store.Select(ctx, s.store.Query(db).WhereID(id), label)
	if err != nil {
		return types.Entity{}, fmt.Errorf("fetching %s %d: %w", kind, id, err)
	}
	if len(rows) == 0 {
		return types.Entity{}, &types.NotFoundError{Kind: kind, ID: id}
	}
	return rows[0], nil
}
