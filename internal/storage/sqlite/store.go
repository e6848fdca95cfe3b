// Package sqlite implements the Facet storage collaborator on SQLite.
// Each tenant maps to one table inside a single database file; the
// tenant name is validated upstream and quoted as an identifier here,
// never interpolated raw.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/facet/internal/logging"
	"github.com/mesh-intelligence/facet/internal/storage"
	"github.com/mesh-intelligence/facet/pkg/types"
)

// timeLayout is the stored timestamp format.
const timeLayout = time.RFC3339

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements storage.Store on a SQLite database file with one
// table per tenant. A Store returned to a RunInTx callback shares the
// same *sql.DB but issues every statement through the transaction.
type Store struct {
	db  *sql.DB
	q   querier
	log *logging.Logger
}

var _ storage.Store = (*Store)(nil)

// Open opens (or creates) the database file under dataDir.
func Open(dataDir string, log *logging.Logger) (*Store, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, "facet.db"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	return NewWithDB(db, log), nil
}

// OpenMemory opens an in-memory store. Used by tests; the connection
// pool is pinned to one connection so every statement sees the same
// database.
func OpenMemory(log *logging.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return NewWithDB(db, log), nil
}

// NewWithDB wraps an already-open handle.
func NewWithDB(db *sql.DB, log *logging.Logger) *Store {
	return &Store{db: db, q: db, log: log}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert adds a row and returns its assigned id.
func (s *Store) Insert(ctx context.Context, db string, parentID, order, typeID int64, value, label string) (int64, error) {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.q.ExecContext(ctx,
		"INSERT INTO "+storage.QuoteIdent(db)+" (up, type, val, ord, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		parentID, typeID, value, order, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting entity [%s]: %w", label, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading inserted id [%s]: %w", label, err)
	}
	s.log.Debug("insert", "db", db, "id", id, "up", parentID, "type", typeID, "label", label)
	return id, nil
}

// UpdateValue rewrites a row's value. Reports whether a row matched.
func (s *Store) UpdateValue(ctx context.Context, db string, id int64, value, label string) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		"UPDATE "+storage.QuoteIdent(db)+" SET val = ?, updated_at = ? WHERE id = ?",
		value, time.Now().UTC().Format(timeLayout), id,
	)
	if err != nil {
		return false, fmt.Errorf("updating value [%s]: %w", label, err)
	}
	return affected(res, label)
}

// UpdateType rewrites a row's type column. Reports whether a row matched.
func (s *Store) UpdateType(ctx context.Context, db string, id, typeID int64, label string) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		"UPDATE "+storage.QuoteIdent(db)+" SET type = ?, updated_at = ? WHERE id = ?",
		typeID, time.Now().UTC().Format(timeLayout), id,
	)
	if err != nil {
		return false, fmt.Errorf("updating type [%s]: %w", label, err)
	}
	return affected(res, label)
}

// Delete removes a single row. Reports whether a row matched.
func (s *Store) Delete(ctx context.Context, db string, id int64, label string) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		"DELETE FROM "+storage.QuoteIdent(db)+" WHERE id = ?", id,
	)
	if err != nil {
		return false, fmt.Errorf("deleting entity [%s]: %w", label, err)
	}
	return affected(res, label)
}

// BatchDelete removes every direct child of parentID in one statement.
func (s *Store) BatchDelete(ctx context.Context, db string, parentID int64, label string) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		"DELETE FROM "+storage.QuoteIdent(db)+" WHERE up = ?", parentID,
	)
	if err != nil {
		return 0, fmt.Errorf("batch deleting children [%s]: %w", label, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows [%s]: %w", label, err)
	}
	return n, nil
}

// IsOccupied reports whether any row holds the given id.
func (s *Store) IsOccupied(ctx context.Context, db string, id int64) (bool, error) {
	var one int
	err := s.q.QueryRowContext(ctx,
		"SELECT 1 FROM "+storage.QuoteIdent(db)+" WHERE id = ?", id,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking id occupancy: %w", err)
	}
	return true, nil
}

// NextOrder returns max(ord)+1 within the (parentID, typeID) sibling
// scope. A typeID of 0 drops the type from the scope.
func (s *Store) NextOrder(ctx context.Context, db string, parentID, typeID int64) (int64, error) {
	query := "SELECT COALESCE(MAX(ord), 0) + 1 FROM " + storage.QuoteIdent(db) + " WHERE up = ?"
	args := []any{parentID}
	if typeID > 0 {
		query += " AND type = ?"
		args = append(args, typeID)
	}
	var next int64
	if err := s.q.QueryRowContext(ctx, query, args...).Scan(&next); err != nil {
		return 0, fmt.Errorf("computing next order: %w", err)
	}
	return next, nil
}

// Exec runs a raw write statement with bound args.
func (s *Store) Exec(ctx context.Context, query string, args []any, label string) (storage.ExecResult, error) {
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return storage.ExecResult{}, fmt.Errorf("executing statement [%s]: %w", label, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storage.ExecResult{}, fmt.Errorf("reading affected rows [%s]: %w", label, err)
	}
	return storage.ExecResult{AffectedRows: n}, nil
}

// Select runs the builder's query and hydrates full entity rows.
func (s *Store) Select(ctx context.Context, b *storage.Builder, label string) ([]types.Entity, error) {
	query, args := b.BuildSelect()
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting entities [%s]: %w", label, err)
	}
	defer rows.Close()

	var results []types.Entity
	for rows.Next() {
		e, err := hydrateEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating entity [%s]: %w", label, err)
		}
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities [%s]: %w", label, err)
	}
	if results == nil {
		results = []types.Entity{}
	}
	return results, nil
}

// SelectRows runs the builder's query and returns generic rows.
func (s *Store) SelectRows(ctx context.Context, b *storage.Builder, label string) ([]storage.Row, error) {
	query, args := b.BuildSelect()
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting rows [%s]: %w", label, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns [%s]: %w", label, err)
	}

	var results []storage.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row [%s]: %w", label, err)
		}
		rec := make(storage.Row, len(cols))
		for i, col := range cols {
			rec[col] = values[i]
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows [%s]: %w", label, err)
	}
	if results == nil {
		results = []storage.Row{}
	}
	return results, nil
}

// Query starts a builder over the tenant's table.
func (s *Store) Query(db string) *storage.Builder {
	return storage.NewBuilder(db)
}

// RunInTx runs fn inside a single transaction. A nested call joins the
// enclosing transaction rather than opening a new one.
func (s *Store) RunInTx(ctx context.Context, fn func(storage.Store) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Store{db: s.db, q: tx, log: s.log}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// affected reports whether the statement matched at least one row.
func affected(res sql.Result, label string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading affected rows [%s]: %w", label, err)
	}
	return n > 0, nil
}

// hydrateEntity converts the current row of a full-column select into a
// types.Entity.
func hydrateEntity(rows *sql.Rows) (types.Entity, error) {
	var e types.Entity
	var createdAt, updatedAt string
	if err := rows.Scan(&e.ID, &e.ParentID, &e.TypeID, &e.Value, &e.Order, &createdAt, &updatedAt); err != nil {
		return types.Entity{}, err
	}
	var err error
	e.Created, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return types.Entity{}, fmt.Errorf("parsing created_at: %w", err)
	}
	e.Updated, err = time.Parse(timeLayout, updatedAt)
	if err != nil {
		return types.Entity{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return e, nil
}
