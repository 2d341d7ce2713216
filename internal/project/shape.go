// Package project implements the Papyrus projector (C5): converting a
// resolved Object Value into a typed Record by name-directed
// destructuring against a declared field shape.
package project

import "github.com/forrestthewoods/anubis/internal/papyrus"

// FieldKind is the expected Go-level shape of a projected field.
type FieldKind int

const (
	KindString FieldKind = iota
	KindNumber
	KindBool
	KindArray
	KindMap
	KindObject
)

// FieldShape describes one expected field of a projection shape: its
// name, expected kind, whether it is required, and its default when
// optional and absent.
type FieldShape struct {
	Name     string
	Kind     FieldKind
	Required bool
	Default  *papyrus.Value

	// NonEmptyArray fails projection when a Kind == KindArray field
	// resolves to a present-but-empty array (e.g. a rule's "srcs").
	NonEmptyArray bool

	// ElemShape constrains Array/Map element projection; nil means
	// elements are coerced generically from their Papyrus atom kind.
	ElemShape *FieldShape

	// ObjectType is the required TypeName when Kind == KindObject.
	ObjectType string

	// NumberIsInteger fails projection on a fractional Number.
	NumberIsInteger bool
	// NumberBits bounds integer width for overflow checking (0 = unchecked).
	NumberBits int
	// NumberSigned controls the overflow range when NumberBits is set.
	NumberSigned bool
}

// RecordShape is the full expected shape of one object type: its ordered
// field list. A registry (internal/rules) maps object type names to
// RecordShapes and to the rule factory that consumes the projected Record.
type RecordShape struct {
	TypeName string
	Fields   []FieldShape
}

// Lookup finds a field's shape by name.
func (s RecordShape) Lookup(name string) (FieldShape, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldShape{}, false
}
