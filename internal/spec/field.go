package spec

import "fmt"

// FieldType is the declared storage type of a field.
type FieldType int

// Field types understood by the predicate lowerings.
const (
	FieldText FieldType = iota
	FieldInteger
	FieldTimestamp
	FieldJSON
)

func (t FieldType) String() string {
	switch t {
	case FieldText:
		return "text"
	case FieldInteger:
		return "integer"
	case FieldTimestamp:
		return "timestamp"
	case FieldJSON:
		return "json"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// Field is a typed reference from an entity's query root to one value.
// Name identifies the value in in-memory records, Column is the qualified
// SQL expression, and Join names a relation that must be joined to reach
// the column.
type Field struct {
	Name   string
	Column string
	Type   FieldType
	Join   string
}

// TextField declares a textual column.
func TextField(name, column string) Field { return Field{Name: name, Column: column, Type: FieldText} }

// IntegerField declares an integer column.
func IntegerField(name, column string) Field {
	return Field{Name: name, Column: column, Type: FieldInteger}
}

// TimestampField declares a column holding UTC instants.
func TimestampField(name, column string) Field {
	return Field{Name: name, Column: column, Type: FieldTimestamp}
}

// JSONField declares a column holding a JSON document.
func JSONField(name, column string) Field { return Field{Name: name, Column: column, Type: FieldJSON} }

// Via returns a copy of f reached through the named join.
func (f Field) Via(join string) Field {
	f.Join = join
	return f
}

func (f Field) String() string { return f.Name }

// FieldTypeError reports a predicate applied to a field of an incompatible
// type. Such predicates never match.
type FieldTypeError struct {
	Predicate string
	Field     Field
	Want      []FieldType
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("%s on field %s of type %s, want %v", e.Predicate, e.Field.Name, e.Field.Type, e.Want)
}
