// Package storage defines the collaborator interface the Facet services
// persist through, plus the parameterized query builder all reads are
// composed with.
package storage

import (
	"context"

	"github.com/mesh-intelligence/facet/pkg/types"
)

// Row is one generic result row keyed by column name. Used for
// aggregates and grouped reads that do not map onto an Entity.
type Row map[string]any

// ExecResult reports the outcome of a raw write statement.
type ExecResult struct {
	AffectedRows int64
}

// Store is the storage collaborator the services operate on. The db
// parameter is a validated tenant name selecting the tenant's table;
// label tags the operation for logging, and every statement of a
// multi-statement operation carries the same label.
//
// Implementations must be safe for concurrent use. Atomicity for
// multi-statement operations comes from RunInTx: the callback receives
// a Store whose statements all join one transaction.
type Store interface {
	// Insert adds a row and returns its assigned id.
	Insert(ctx context.Context, db string, parentID, order, typeID int64, value, label string) (int64, error)

	// UpdateValue rewrites a row's value. Reports whether a row matched.
	UpdateValue(ctx context.Context, db string, id int64, value, label string) (bool, error)

	// UpdateType rewrites a row's type column. Reports whether a row matched.
	UpdateType(ctx context.Context, db string, id, typeID int64, label string) (bool, error)

	// Delete removes a single row. Reports whether a row matched.
	Delete(ctx context.Context, db string, id int64, label string) (bool, error)

	// BatchDelete removes every direct child of parentID in one
	// statement and returns the number of rows removed.
	BatchDelete(ctx context.Context, db string, parentID int64, label string) (int64, error)

	// IsOccupied reports whether any row holds the given id.
	IsOccupied(ctx context.Context, db string, id int64) (bool, error)

	// NextOrder returns max(ord)+1 within the (parentID, typeID) sibling
	// scope. A typeID of 0 drops the type from the scope.
	NextOrder(ctx context.Context, db string, parentID, typeID int64) (int64, error)

	// Exec runs a raw write statement with bound args.
	Exec(ctx context.Context, query string, args []any, label string) (ExecResult, error)

	// Select runs the builder's query and hydrates full entity rows.
	Select(ctx context.Context, b *Builder, label string) ([]types.Entity, error)

	// SelectRows runs the builder's query and returns generic rows, for
	// aggregate or grouped column sets.
	SelectRows(ctx context.Context, b *Builder, label string) ([]Row, error)

	// Query starts a builder over the tenant's table.
	Query(db string) *Builder

	// RunInTx runs fn inside a single transaction. A nested call joins
	// the enclosing transaction rather than opening a new one.
	RunInTx(ctx context.Context, fn func(Store) error) error
}
