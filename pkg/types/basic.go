package types

// Built-in basic type ids. Every tenant is seeded with these rows on
// creation; requisite slots reference them as their TypeID.
const (
	TypeShort    int64 = 1
	TypeText     int64 = 2
	TypeNumber   int64 = 3
	TypeSigned   int64 = 4
	TypeBool     int64 = 5
	TypeDateTime int64 = 6
)

// SystemTypeMax is the first id available to user-defined types. Ids
// below it are reserved for built-ins and are filtered from type
// listings by default.
const SystemTypeMax int64 = 100

// BasicType pairs a built-in type id with its canonical name.
type BasicType struct {
	ID   int64
	Name string
}

// BasicTypes lists the built-in basic types in seeding order.
var BasicTypes = []BasicType{
	{TypeShort, "SHORT"},
	{TypeText, "TEXT"},
	{TypeNumber, "NUMBER"},
	{TypeSigned, "SIGNED"},
	{TypeBool, "BOOL"},
	{TypeDateTime, "DATETIME"},
}

// basicTypesByName indexes BasicTypes for name resolution.
var basicTypesByName = func() map[string]int64 {
	m := make(map[string]int64, len(BasicTypes))
	for _, bt := range BasicTypes {
		m[bt.Name] = bt.ID
	}
	return m
}()

// ResolveBasicType returns the id of a built-in type by canonical name.
func ResolveBasicType(name string) (int64, bool) {
	id, ok := basicTypesByName[name]
	return id, ok
}

// IsSystemType reports whether id falls in the reserved built-in range.
func IsSystemType(id int64) bool {
	return id > 0 && id < SystemTypeMax
}
