package storage

import (
	"fmt"
	"strings"
)

// EntityColumns is the full column set of a tenant table, in the order
// Select hydrates them.
const EntityColumns = "id, up, type, val, ord, created_at, updated_at"

// Builder accumulates a parameterized SELECT over one tenant table.
// Predicate values are always bound parameters. Column names passed to
// Where, OrderBy, and GroupBy are interpolated and must have passed the
// validation allow-list before reaching the builder; the tenant name is
// quoted as an identifier.
type Builder struct {
	table   string
	columns []string
	conds   []string
	args    []any
	orderBy []string
	groupBy []string
	limit   int64
	offset  int64
}

// NewBuilder starts a builder over the named tenant table.
func NewBuilder(db string) *Builder {
	return &Builder{table: db}
}

// Table returns the tenant table the builder targets.
func (b *Builder) Table() string {
	return b.table
}

// Select replaces the projected column set. Without it, BuildSelect
// projects EntityColumns.
func (b *Builder) Select(columns ...string) *Builder {
	b.columns = columns
	return b
}

// Where appends a raw condition with bound args.
func (b *Builder) Where(cond string, args ...any) *Builder {
	b.conds = append(b.conds, cond)
	b.args = append(b.args, args...)
	return b
}

// WhereID filters on the id column.
func (b *Builder) WhereID(id int64) *Builder {
	return b.Where("id = ?", id)
}

// WhereType filters on the type column.
func (b *Builder) WhereType(typeID int64) *Builder {
	return b.Where("type = ?", typeID)
}

// WhereParent filters on the parent (up) column.
func (b *Builder) WhereParent(parentID int64) *Builder {
	return b.Where("up = ?", parentID)
}

// WhereIDIn filters on a bound id set. An empty set yields a condition
// that matches nothing.
func (b *Builder) WhereIDIn(ids []int64) *Builder {
	return b.whereIn("id", ids)
}

// WhereParentIn filters on a bound parent-id set.
func (b *Builder) WhereParentIn(ids []int64) *Builder {
	return b.whereIn("up", ids)
}

func (b *Builder) whereIn(column string, ids []int64) *Builder {
	if len(ids) == 0 {
		return b.Where("1 = 0")
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return b.Where(column+" IN ("+strings.Join(placeholders, ", ")+")", args...)
}

// OrderBy appends an ordering term. dir is normalized to ASC unless it
// is DESC (any case).
func (b *Builder) OrderBy(column, dir string) *Builder {
	d := "ASC"
	if strings.EqualFold(dir, "DESC") {
		d = "DESC"
	}
	b.orderBy = append(b.orderBy, column+" "+d)
	return b
}

// GroupBy appends a grouping column.
func (b *Builder) GroupBy(column string) *Builder {
	b.groupBy = append(b.groupBy, column)
	return b
}

// Limit caps the result set; non-positive values leave it uncapped.
func (b *Builder) Limit(n int64) *Builder {
	b.limit = n
	return b
}

// Offset skips leading rows; non-positive values are ignored.
func (b *Builder) Offset(n int64) *Builder {
	b.offset = n
	return b
}

// BuildSelect renders the SELECT statement and its bound arguments.
func (b *Builder) BuildSelect() (string, []any) {
	cols := EntityColumns
	if len(b.columns) > 0 {
		cols = strings.Join(b.columns, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(QuoteIdent(b.table))

	if len(b.conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.conds, " AND "))
	}
	if len(b.groupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(b.groupBy, ", "))
	}
	if len(b.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.orderBy, ", "))
	}
	if b.limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", b.limit)
	}
	if b.offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", b.offset)
	}

	return sb.String(), b.args
}

// QuoteIdent quotes an identifier for inclusion in SQL text. The
// identifier must already have passed tenant-name validation; quoting
// is defense in depth, never a substitute for it.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
