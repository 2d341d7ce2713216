package resolve

import (
	"fmt"

	"github.com/forrestthewoods/anubis/internal/diagnostic"
	"github.com/forrestthewoods/anubis/internal/papyrus"
)

// Value walks v, evaluating every Call and Concat node against env, and
// returns the fully resolved tree. Atomic nodes (String, Number, Bool,
// Wildcard, Identifier) are returned unchanged; Array/Map/Object nodes
// are resolved field-by-field, preserving declaration order.
func Value(env *Environment, v *papyrus.Value) (*papyrus.Value, error) {
	switch v.Kind {
	case papyrus.ValueString, papyrus.ValueNumber, papyrus.ValueBool, papyrus.ValueWildcard, papyrus.ValueIdentifier:
		return v, nil

	case papyrus.ValueArray:
		elems := make([]*papyrus.Value, len(v.Elems))
		for i, e := range v.Elems {
			r, err := Value(env, e)
			if err != nil {
				return nil, err
			}
			elems[i] = r
		}
		return papyrus.NewArray(elems, v.Pos), nil

	case papyrus.ValueMap:
		pairs := make([]papyrus.MapEntry, len(v.Pairs))
		for i, p := range v.Pairs {
			r, err := Value(env, p.Value)
			if err != nil {
				return nil, err
			}
			pairs[i] = papyrus.MapEntry{Key: p.Key, Value: r}
		}
		return papyrus.NewMap(pairs, v.Pos), nil

	case papyrus.ValueObject:
		fields := make([]papyrus.Field, len(v.Fields))
		for i, f := range v.Fields {
			r, err := Value(env, f.Value)
			if err != nil {
				return nil, diagnostic.Wrap(diagnostic.Resolve, fmt.Sprintf("field %q", f.Name), err).
					WithFrame("object", v.TypeName)
			}
			fields[i] = papyrus.Field{Name: f.Name, Value: r}
		}
		return papyrus.NewObject(v.TypeName, fields, v.Pos), nil

	case papyrus.ValueConcat:
		left, err := Value(env, v.Left)
		if err != nil {
			return nil, err
		}
		right, err := Value(env, v.Right)
		if err != nil {
			return nil, err
		}
		result, err := papyrus.Concat(left, right, v.Pos)
		if err != nil {
			return nil, diagnostic.Wrap(diagnostic.Resolve, err.Error(), err).At("", v.Pos.Line, v.Pos.Col)
		}
		return result, nil

	case papyrus.ValueCall:
		return call(env, v)

	case papyrus.ValueTuple:
		return nil, diagnostic.New(diagnostic.Resolve, "tuple values may only appear as selector keys").At("", v.Pos.Line, v.Pos.Col)

	default:
		return nil, diagnostic.New(diagnostic.Resolve, fmt.Sprintf("unresolvable value kind %s", v.Kind))
	}
}

func call(env *Environment, v *papyrus.Value) (*papyrus.Value, error) {
	switch v.FuncName {
	case "glob":
		return glob(env, v)
	case "RelPath":
		return relPath(env, v)
	case "RelPaths":
		return relPaths(env, v)
	case "select":
		return selectValue(env, v)
	default:
		// Any other call name is object construction, the same way a
		// top-level statement is — e.g. a toolchain()'s `cc` field built as
		// CcToolchain(compiler = "...", ...). Unlike top-level statements, a
		// nested object construction has no mandatory "name" argument.
		return objectFromCall(env, v)
	}
}

// objectFromCall resolves a non-builtin call's named arguments and wraps
// them into an Object Value, named by the call's function name.
func objectFromCall(env *Environment, v *papyrus.Value) (*papyrus.Value, error) {
	fields := make([]papyrus.Field, 0, len(v.NamedOrd))
	for _, name := range v.NamedOrd {
		resolved, err := Value(env, v.Named[name])
		if err != nil {
			return nil, diagnostic.Wrap(diagnostic.Resolve, fmt.Sprintf("field %q", name), err).WithFrame("object", v.FuncName)
		}
		fields = append(fields, papyrus.Field{Name: name, Value: resolved})
	}
	return papyrus.NewObject(v.FuncName, fields, v.Pos), nil
}

// stringArg resolves the nth positional argument, or the named argument
// if name is non-empty and present, and requires the result be a String.
func stringArg(env *Environment, v *papyrus.Value, index int, name string) (string, error) {
	arg, err := pickArg(v, index, name)
	if err != nil {
		return "", err
	}
	resolved, err := Value(env, arg)
	if err != nil {
		return "", err
	}
	if resolved.Kind != papyrus.ValueString {
		return "", diagnostic.New(diagnostic.Resolve, fmt.Sprintf("argument to %q must be a string", v.FuncName)).At("", arg.Pos.Line, arg.Pos.Col)
	}
	return resolved.Str, nil
}

func pickArg(v *papyrus.Value, index int, name string) (*papyrus.Value, error) {
	if name != "" {
		if arg, ok := v.Named[name]; ok {
			return arg, nil
		}
	}
	if index < len(v.Args) {
		return v.Args[index], nil
	}
	return nil, diagnostic.New(diagnostic.Resolve, fmt.Sprintf("%q: missing required argument", v.FuncName)).At("", v.Pos.Line, v.Pos.Col)
}

// stringArrayArg resolves an array-valued argument into a []string,
// erroring if any element is not a String.
func stringArrayArg(env *Environment, v *papyrus.Value, index int, name string, required bool) ([]string, error) {
	arg, err := pickArg(v, index, name)
	if err != nil {
		if required {
			return nil, err
		}
		return nil, nil
	}
	resolved, err := Value(env, arg)
	if err != nil {
		return nil, err
	}
	if resolved.Kind != papyrus.ValueArray {
		return nil, diagnostic.New(diagnostic.Resolve, fmt.Sprintf("argument to %q must be an array of strings", v.FuncName)).At("", arg.Pos.Line, arg.Pos.Col)
	}
	out := make([]string, len(resolved.Elems))
	for i, e := range resolved.Elems {
		if e.Kind != papyrus.ValueString {
			return nil, diagnostic.New(diagnostic.Resolve, fmt.Sprintf("argument to %q must be an array of strings", v.FuncName)).At("", e.Pos.Line, e.Pos.Col)
		}
		out[i] = e.Str
	}
	return out, nil
}
