// Package validate holds the stateless input checks shared by every
// service. Values are coerced to their canonical wire form here so the
// services and the storage layer only ever see clean input.
package validate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mesh-intelligence/facet/pkg/types"
)

const (
	// MaxValueLength caps TEXT values and anything untyped.
	MaxValueLength = 65535
	// MaxShortLength caps SHORT values.
	MaxShortLength = 255
	// MaxDatabaseLength caps tenant identifiers.
	MaxDatabaseLength = 64
	// DefaultPageSize applies when a filter leaves Limit unset.
	DefaultPageSize = 100
	// MaxPageSize is the hard ceiling on a single page.
	MaxPageSize = 1000
)

var (
	databasePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
	freeTextPattern = regexp.MustCompile(`(?i)(;|--|/\*|\*/|\b(select|insert|update|delete|drop|union|alter|exec)\b)`)

	// sqlKeywords are rejected as tenant names even though they match the
	// identifier pattern.
	sqlKeywords = map[string]struct{}{
		"select": {}, "insert": {}, "update": {}, "delete": {}, "drop": {},
		"create": {}, "alter": {}, "table": {}, "index": {}, "union": {},
		"where": {}, "from": {}, "join": {}, "exec": {},
	}

	// allowedColumns is the only column set sortable or aggregatable from
	// the outside.
	allowedColumns = map[string]struct{}{
		"id": {}, "up": {}, "type": {}, "val": {}, "ord": {},
		"created_at": {}, "updated_at": {},
	}

	// datetimeLayouts are accepted on input; storage is always RFC3339.
	datetimeLayouts = []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
)

// Database checks a tenant identifier. Anything that could change the
// meaning of the SQL it gets quoted into is an InjectionError.
func Database(db string) error {
	if db == "" {
		return &types.ValidationError{Field: "database", Reason: "must not be empty"}
	}
	if len(db) > MaxDatabaseLength {
		return &types.ValidationError{Field: "database", Reason: fmt.Sprintf("exceeds %d characters", MaxDatabaseLength)}
	}
	if !databasePattern.MatchString(db) {
		return &types.InjectionError{Input: db}
	}
	if _, bad := sqlKeywords[strings.ToLower(db)]; bad {
		return &types.InjectionError{Input: db}
	}
	return nil
}

// ID coerces an id from any of the shapes a caller may hand over
// (native ints, JSON numbers, digit strings) to a non-negative int64.
func ID(field string, v any) (int64, error) {
	id, err := toInt64(v)
	if err != nil {
		return 0, &types.ValidationError{Field: field, Reason: err.Error()}
	}
	if id < 0 {
		return 0, &types.ValidationError{Field: field, Reason: "must not be negative"}
	}
	return id, nil
}

// TypeID coerces a type reference; zero is not a valid type.
func TypeID(field string, v any) (int64, error) {
	id, err := ID(field, v)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, &types.ValidationError{Field: field, Reason: "must be positive"}
	}
	return id, nil
}

// Order checks a sibling order index.
func Order(order int64) error {
	if order < 0 {
		return &types.ValidationError{Field: "order", Reason: "must not be negative"}
	}
	return nil
}

// ValueOptions tunes Value for a particular slot.
type ValueOptions struct {
	MaxLength  int
	AllowEmpty bool
}

// Value checks a stored value against length and emptiness rules.
func Value(field, v string, opts ValueOptions) error {
	if v == "" && !opts.AllowEmpty {
		return &types.ValidationError{Field: field, Reason: "must not be empty"}
	}
	maxLen := opts.MaxLength
	if maxLen <= 0 {
		maxLen = MaxValueLength
	}
	if len(v) > maxLen {
		return &types.ValidationError{Field: field, Reason: fmt.Sprintf("exceeds %d characters", maxLen)}
	}
	return nil
}

// ValueByType coerces a raw value to the canonical stored form of a
// basic type. Unknown type ids fall through as general text.
func ValueByType(field, v string, baseType int64) (string, error) {
	switch baseType {
	case types.TypeNumber:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return "", &types.ValidationError{Field: field, Reason: "must be a number"}
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	case types.TypeSigned:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return "", &types.ValidationError{Field: field, Reason: "must be an integer"}
		}
		return strconv.FormatInt(n, 10), nil
	case types.TypeBool:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "on":
			return "1", nil
		case "0", "false", "no", "off":
			return "0", nil
		}
		return "", &types.ValidationError{Field: field, Reason: "must be a boolean"}
	case types.TypeDateTime:
		s := strings.TrimSpace(v)
		for _, layout := range datetimeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC().Format(time.RFC3339), nil
			}
		}
		return "", &types.ValidationError{Field: field, Reason: "must be a datetime"}
	case types.TypeShort:
		if err := Value(field, v, ValueOptions{MaxLength: MaxShortLength, AllowEmpty: true}); err != nil {
			return "", err
		}
		return v, nil
	default:
		if err := Value(field, v, ValueOptions{AllowEmpty: true}); err != nil {
			return "", err
		}
		return v, nil
	}
}

// Requisites coerces a requisite-id-keyed map into int64 keys and
// string values. Map keys arrive as strings over JSON boundaries.
func Requisites(in map[string]any) (map[int64]string, error) {
	out := make(map[int64]string, len(in))
	for key, raw := range in {
		id, err := toInt64(key)
		if err != nil || id <= 0 {
			return nil, &types.ValidationError{Field: "requisites", Reason: fmt.Sprintf("key %q is not a positive id", key)}
		}
		out[id] = fmt.Sprintf("%v", raw)
	}
	return out, nil
}

// Batch runs check over n items and reports the first failure with its
// index attached.
func Batch(n int, check func(i int) error) error {
	for i := 0; i < n; i++ {
		if err := check(i); err != nil {
			if types.IsValidation(err) || types.IsInjection(err) {
				return err
			}
			return &types.ValidationError{Field: fmt.Sprintf("items[%d]", i), Reason: err.Error()}
		}
	}
	return nil
}

// Column checks a column name against the entity table allow-list.
func Column(name string) error {
	if _, ok := allowedColumns[name]; !ok {
		return &types.InjectionError{Input: name}
	}
	return nil
}

// SortDir normalizes a sort direction; empty means ascending.
func SortDir(dir string) (string, error) {
	switch strings.ToUpper(dir) {
	case "", "ASC":
		return "ASC", nil
	case "DESC":
		return "DESC", nil
	}
	return "", &types.ValidationError{Field: "sortDir", Reason: "must be ASC or DESC"}
}

// FreeText checks caller-supplied search text for SQL fragments. The
// text is bound, never interpolated; this guards against smuggled
// fragments surviving into LIKE patterns and logs.
func FreeText(field, text string) error {
	if freeTextPattern.MatchString(text) {
		return &types.InjectionError{Input: text}
	}
	return nil
}

// Filters checks a filter block and fills paging defaults in place.
func Filters(f *types.Filters) error {
	if f.TypeID < 0 {
		return &types.ValidationError{Field: "typeId", Reason: "must not be negative"}
	}
	if f.ParentID != nil && *f.ParentID < 0 {
		return &types.ValidationError{Field: "parentId", Reason: "must not be negative"}
	}
	for _, id := range f.IDs {
		if id <= 0 {
			return &types.ValidationError{Field: "ids", Reason: "must be positive"}
		}
	}
	if f.ValueLike != "" {
		if err := FreeText("valueLike", f.ValueLike); err != nil {
			return err
		}
	}
	if f.OrderBy != "" {
		if err := Column(f.OrderBy); err != nil {
			return err
		}
	}
	dir, err := SortDir(f.SortDir)
	if err != nil {
		return err
	}
	f.SortDir = dir

	switch {
	case f.Limit < 0:
		return &types.ValidationError{Field: "limit", Reason: "must not be negative"}
	case f.Limit == 0:
		f.Limit = DefaultPageSize
	case f.Limit > MaxPageSize:
		return &types.ValidationError{Field: "limit", Reason: fmt.Sprintf("exceeds maximum of %d", MaxPageSize)}
	}
	if f.Offset < 0 {
		return &types.ValidationError{Field: "offset", Reason: "must not be negative"}
	}
	return nil
}

// toInt64 accepts the numeric shapes that reach the services: native
// ints, float64 from decoded JSON, json.Number, and digit strings.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", n)
		}
		return id, nil
	case nil:
		return 0, fmt.Errorf("missing value")
	default:
		return 0, fmt.Errorf("unsupported id type %T", v)
	}
}
