package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/mesh-intelligence/facet/internal/storage"
	"github.com/mesh-intelligence/facet/internal/validate"
	"github.com/mesh-intelligence/facet/pkg/types"
)

// tenantDDL is the per-tenant table shape. AUTOINCREMENT keeps the id
// sequence monotone even across deletes, so a freed id is never
// silently reissued.
const tenantDDL = `CREATE TABLE IF NOT EXISTS %s (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    up INTEGER NOT NULL DEFAULT 0,
    type INTEGER NOT NULL,
    val TEXT NOT NULL DEFAULT '',
    ord INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

// CreateTenant creates the tenant's table, its indexes, and the seeded
// built-in type rows, then reserves the system id range so the first
// user-defined row lands at SystemTypeMax. Idempotent. The name must
// pass the tenant identifier checks; otherwise the services could
// never reach the tenant afterward.
func (s *Store) CreateTenant(ctx context.Context, db string) error {
	if err := validate.Database(db); err != nil {
		return err
	}
	return s.RunInTx(ctx, func(st storage.Store) error {
		ts := st.(*Store)
		ident := storage.QuoteIdent(db)

		if _, err := ts.q.ExecContext(ctx, fmt.Sprintf(tenantDDL, ident)); err != nil {
			return fmt.Errorf("creating tenant table: %w", err)
		}
		for _, idx := range []struct{ suffix, column string }{
			{"up", "up"},
			{"type", "type"},
			{"up_type", "up, type"},
		} {
			stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
				storage.QuoteIdent("idx_"+db+"_"+idx.suffix), ident, idx.column)
			if _, err := ts.q.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("creating index %s: %w", idx.suffix, err)
			}
		}

		if err := ts.seedBasicTypes(ctx, db); err != nil {
			return err
		}

		// Reserve the system range: the next assigned id is SystemTypeMax.
		if _, err := ts.q.ExecContext(ctx,
			"UPDATE sqlite_sequence SET seq = ? WHERE name = ? AND seq < ?",
			types.SystemTypeMax-1, db, types.SystemTypeMax-1,
		); err != nil {
			return fmt.Errorf("reserving system id range: %w", err)
		}
		return nil
	})
}

// seedBasicTypes inserts the built-in type rows. Each is a root row
// whose type column references itself.
func (s *Store) seedBasicTypes(ctx context.Context, db string) error {
	now := time.Now().UTC().Format(timeLayout)
	for i, bt := range types.BasicTypes {
		_, err := s.q.ExecContext(ctx,
			"INSERT OR IGNORE INTO "+storage.QuoteIdent(db)+
				" (id, up, type, val, ord, created_at, updated_at) VALUES (?, 0, ?, ?, ?, ?, ?)",
			bt.ID, bt.ID, bt.Name, int64(i+1), now, now,
		)
		if err != nil {
			return fmt.Errorf("seeding basic type %s: %w", bt.Name, err)
		}
	}
	return nil
}

// DropTenant removes the tenant's table and all of its rows.
func (s *Store) DropTenant(ctx context.Context, db string) error {
	if err := validate.Database(db); err != nil {
		return err
	}
	if _, err := s.q.ExecContext(ctx, "DROP TABLE IF EXISTS "+storage.QuoteIdent(db)); err != nil {
		return fmt.Errorf("dropping tenant table: %w", err)
	}
	return nil
}

// ListTenants returns the tenant table names in the database.
func (s *Store) ListTenants(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning tenant name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tenants: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}
