package project

import (
	"fmt"
	"math"

	"github.com/forrestthewoods/anubis/internal/diagnostic"
	"github.com/forrestthewoods/anubis/internal/papyrus"
)

// ShapeLookup resolves a nested Object field's expected RecordShape by
// its type name, for recursive Object projection. The registry
// (internal/rules) supplies this.
type ShapeLookup func(typeName string) (RecordShape, bool)

// Project converts a resolved Object Value into a Record matching shape.
// Missing required fields fail; missing optional fields take their
// default. Field names present on obj but absent from shape produce an
// UnknownField diagnostic returned as a warning, not an error.
func Project(lookup ShapeLookup, shape RecordShape, obj *papyrus.Value) (*Record, []*diagnostic.Diagnostic, error) {
	if obj.Kind != papyrus.ValueObject {
		return nil, nil, diagnostic.New(diagnostic.Projection, fmt.Sprintf("expected an Object, got %s", obj.Kind)).At("", obj.Pos.Line, obj.Pos.Col)
	}
	if obj.TypeName != shape.TypeName {
		return nil, nil, diagnostic.New(diagnostic.Projection,
			fmt.Sprintf("expected object type %q, got %q", shape.TypeName, obj.TypeName)).At("", obj.Pos.Line, obj.Pos.Col)
	}

	record := &Record{TypeName: shape.TypeName, Fields: make(map[string]*Value, len(shape.Fields))}

	for _, fs := range shape.Fields {
		raw, present := obj.Field(fs.Name)
		if !present {
			if fs.Required {
				return nil, nil, diagnostic.New(diagnostic.Projection,
					fmt.Sprintf("missing required field %q", fs.Name)).
					At("", obj.Pos.Line, obj.Pos.Col).
					WithFrame("object", obj.TypeName)
			}
			if fs.Default == nil {
				continue
			}
			raw = fs.Default
		}
		val, err := coerce(lookup, fs, raw)
		if err != nil {
			return nil, nil, diagnostic.Wrap(diagnostic.Projection, fmt.Sprintf("field %q", fs.Name), err).
				At("", raw.Pos.Line, raw.Pos.Col).
				WithFrame("object", obj.TypeName)
		}
		if fs.NonEmptyArray && val.Kind == KindArray && len(val.Elems) == 0 {
			return nil, nil, diagnostic.New(diagnostic.Projection, fmt.Sprintf("field %q must be non-empty", fs.Name)).
				At("", raw.Pos.Line, raw.Pos.Col).
				WithFrame("object", obj.TypeName)
		}
		record.Fields[fs.Name] = val
		record.FieldOrder = append(record.FieldOrder, fs.Name)
	}

	var warnings []*diagnostic.Diagnostic
	for _, f := range obj.Fields {
		if f.Name == "name" {
			continue
		}
		if _, known := shape.Lookup(f.Name); !known {
			warnings = append(warnings, diagnostic.New(diagnostic.UnknownField,
				fmt.Sprintf("unknown field %q on %s", f.Name, obj.TypeName)).
				At("", f.Value.Pos.Line, f.Value.Pos.Col))
		}
	}

	return record, warnings, nil
}

func coerce(lookup ShapeLookup, fs FieldShape, v *papyrus.Value) (*Value, error) {
	switch fs.Kind {
	case KindString:
		if v.Kind != papyrus.ValueString {
			return nil, fmt.Errorf("expected a string, got %s", v.Kind)
		}
		return &Value{Kind: KindString, Str: v.Str}, nil

	case KindBool:
		if v.Kind != papyrus.ValueBool {
			return nil, fmt.Errorf("expected a bool, got %s", v.Kind)
		}
		return &Value{Kind: KindBool, Bool: v.Bool}, nil

	case KindNumber:
		return coerceNumber(fs, v)

	case KindArray:
		if v.Kind != papyrus.ValueArray {
			return nil, fmt.Errorf("expected an array, got %s", v.Kind)
		}
		elems := make([]*Value, len(v.Elems))
		for i, e := range v.Elems {
			ev, err := coerceElem(lookup, fs.ElemShape, e)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			elems[i] = ev
		}
		return &Value{Kind: KindArray, Elems: elems}, nil

	case KindMap:
		if v.Kind != papyrus.ValueMap {
			return nil, fmt.Errorf("expected a map, got %s", v.Kind)
		}
		pairs := make([]Entry, len(v.Pairs))
		for i, p := range v.Pairs {
			ev, err := coerceElem(lookup, fs.ElemShape, p.Value)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			pairs[i] = Entry{Key: mapKeyLabel(p.Key), Value: ev}
		}
		return &Value{Kind: KindMap, Pairs: pairs}, nil

	case KindObject:
		return coerceObject(lookup, fs, v)

	default:
		return nil, fmt.Errorf("unknown field kind %d", fs.Kind)
	}
}

// coerceElem coerces one Array/Map element. With no declared element
// shape, it infers a generic projection directly from the Papyrus atom
// kind (the common case: arrays/maps of strings).
func coerceElem(lookup ShapeLookup, elemShape *FieldShape, v *papyrus.Value) (*Value, error) {
	if elemShape != nil {
		return coerce(lookup, *elemShape, v)
	}
	switch v.Kind {
	case papyrus.ValueString:
		return &Value{Kind: KindString, Str: v.Str}, nil
	case papyrus.ValueNumber:
		return &Value{Kind: KindNumber, Num: v.Num}, nil
	case papyrus.ValueBool:
		return &Value{Kind: KindBool, Bool: v.Bool}, nil
	case papyrus.ValueIdentifier:
		return &Value{Kind: KindString, Str: v.Str}, nil
	default:
		return nil, fmt.Errorf("array/map elements of kind %s need an explicit element shape", v.Kind)
	}
}

func coerceObject(lookup ShapeLookup, fs FieldShape, v *papyrus.Value) (*Value, error) {
	if v.Kind != papyrus.ValueObject {
		return nil, fmt.Errorf("expected an object of type %q, got %s", fs.ObjectType, v.Kind)
	}
	if v.TypeName != fs.ObjectType {
		return nil, fmt.Errorf("expected object type %q, got %q", fs.ObjectType, v.TypeName)
	}
	nested, ok := lookup(fs.ObjectType)
	if !ok {
		return nil, fmt.Errorf("no registered shape for object type %q", fs.ObjectType)
	}
	record, _, err := Project(lookup, nested, v)
	if err != nil {
		return nil, err
	}
	return &Value{Kind: KindObject, Record: record}, nil
}

func coerceNumber(fs FieldShape, v *papyrus.Value) (*Value, error) {
	if v.Kind != papyrus.ValueNumber {
		return nil, fmt.Errorf("expected a number, got %s", v.Kind)
	}
	n := v.Num
	if fs.NumberIsInteger && n != math.Trunc(n) {
		return nil, fmt.Errorf("expected an integer, got %v", n)
	}
	if fs.NumberBits > 0 {
		lo, hi := numberRange(fs.NumberBits, fs.NumberSigned)
		if n < lo || n > hi {
			return nil, fmt.Errorf("value %v overflows a %d-bit %s integer", n, fs.NumberBits, signedness(fs.NumberSigned))
		}
	}
	return &Value{Kind: KindNumber, Num: n}, nil
}

func numberRange(bits int, signed bool) (float64, float64) {
	if !signed {
		return 0, math.Pow(2, float64(bits)) - 1
	}
	half := math.Pow(2, float64(bits-1))
	return -half, half - 1
}

func signedness(signed bool) string {
	if signed {
		return "signed"
	}
	return "unsigned"
}

func mapKeyLabel(k papyrus.MapKey) string {
	if k.IsDefault {
		return "default"
	}
	label := ""
	for i, id := range k.Idents {
		if i > 0 {
			label += ","
		}
		label += id
	}
	return label
}
