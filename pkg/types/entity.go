// Package types defines the entity model, requisite modifiers, schema
// shapes, filters, and error kinds for the Facet storage system.
package types

import "time"

// Entity is one row in the generic store. Schema definitions and data
// objects share this shape; which one a row is follows from its
// ParentID/TypeID references, not from any column of its own.
type Entity struct {
	ID       int64     `json:"id"`
	ParentID int64     `json:"up"`
	TypeID   int64     `json:"type"`
	Value    string    `json:"val"`
	Order    int64     `json:"ord"`
	Created  time.Time `json:"created_at"`
	Updated  time.Time `json:"updated_at"`
}

// IsRoot reports whether the entity is a root-level row, i.e. a Type
// definition. Root rows are immutable in identity.
func (e *Entity) IsRoot() bool {
	return e.ParentID == 0
}

// ValueRef is one attribute value of an object: the row id holding the
// value plus the literal payload.
type ValueRef struct {
	ID    int64  `json:"id"`
	Value string `json:"val"`
}

// Object is an entity together with its attribute values, grouped by
// the requisite slot that defines each value.
type Object struct {
	Entity
	Requisites map[int64][]ValueRef `json:"requisites,omitempty"`
}

// Requisite is one attribute slot of a Type: the child entity id, the
// basic type of the values it holds, its sibling order, and the decoded
// modifiers.
type Requisite struct {
	ID        int64     `json:"id"`
	TypeID    int64     `json:"type"`
	Order     int64     `json:"ord"`
	Modifiers Modifiers `json:"modifiers"`
}

// Schema is a type together with its parsed requisites.
type Schema struct {
	Type       Entity      `json:"type"`
	Requisites []Requisite `json:"requisites"`
}

// Filters bounds and orders a read over objects. A zero Limit means the
// service default page size; OrderBy and SortDir must pass the column
// allow-list before reaching query text.
type Filters struct {
	TypeID    int64
	ParentID  *int64
	ValueLike string
	IDs       []int64
	Limit     int64
	Offset    int64
	OrderBy   string
	SortDir   string
}
