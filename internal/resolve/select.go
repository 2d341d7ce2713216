package resolve

import (
	"fmt"
	"strings"

	"github.com/forrestthewoods/anubis/internal/diagnostic"
	"github.com/forrestthewoods/anubis/internal/papyrus"
)

// selectValue implements select((k1, k2, …) => { (v11, v12, …) = expr1, …,
// default = exprD }). The key tuple identifiers are looked up in env.Vars;
// each map entry's key is matched positionally against the resolved
// values. A '_' component matches anything; a component parsed as a
// disjunction ("a|b") matches any listed alternative. The first matching
// entry wins; if none match, default is used; if neither exists,
// resolution fails naming the mode variables and available keys.
func selectValue(env *Environment, v *papyrus.Value) (*papyrus.Value, error) {
	if len(v.Args) != 2 {
		return nil, diagnostic.New(diagnostic.Resolve, "select() requires a key tuple and a case map").At("", v.Pos.Line, v.Pos.Col)
	}
	tuple, cases := v.Args[0], v.Args[1]
	if tuple.Kind != papyrus.ValueTuple {
		return nil, diagnostic.New(diagnostic.Resolve, "select()'s first argument must be a key tuple").At("", tuple.Pos.Line, tuple.Pos.Col)
	}
	if cases.Kind != papyrus.ValueMap {
		return nil, diagnostic.New(diagnostic.Resolve, "select()'s second argument must be a case map").At("", cases.Pos.Line, cases.Pos.Col)
	}

	keyVals := make([]string, len(tuple.Elems))
	for i, ident := range tuple.Elems {
		if ident.Kind != papyrus.ValueIdentifier {
			return nil, diagnostic.New(diagnostic.Resolve, "select() key tuple must contain bare variable names").At("", ident.Pos.Line, ident.Pos.Col)
		}
		val, ok := env.Vars[ident.Str]
		if !ok {
			return nil, diagnostic.New(diagnostic.Resolve, fmt.Sprintf("select(): mode has no variable %q", ident.Str)).At("", ident.Pos.Line, ident.Pos.Col)
		}
		text, err := valueText(val)
		if err != nil {
			return nil, diagnostic.Wrap(diagnostic.Resolve, fmt.Sprintf("select() variable %q", ident.Str), err).At("", ident.Pos.Line, ident.Pos.Col)
		}
		keyVals[i] = text
	}

	var defaultEntry *papyrus.MapEntry
	for idx := range cases.Pairs {
		entry := &cases.Pairs[idx]
		if entry.Key.IsDefault {
			defaultEntry = entry
			continue
		}
		if len(entry.Key.Idents) != len(keyVals) {
			return nil, diagnostic.New(diagnostic.Resolve, "select() case key arity does not match the selector tuple").At("", v.Pos.Line, v.Pos.Col)
		}
		if matchesTuple(entry.Key.Idents, keyVals) {
			return Value(env, entry.Value)
		}
	}

	if defaultEntry != nil {
		return Value(env, defaultEntry.Value)
	}

	return nil, diagnostic.New(diagnostic.Resolve, fmt.Sprintf(
		"select(): no case matched (%s) and no default was given; available cases: %s",
		strings.Join(keyVals, ", "), caseSummary(cases),
	)).At("", v.Pos.Line, v.Pos.Col)
}

// matchesTuple reports whether every position of a case key matches the
// corresponding resolved variable value; a position may itself be a
// '|'-joined disjunction of alternatives, or '_' to match anything.
func matchesTuple(keyPositions []string, values []string) bool {
	for i, pos := range keyPositions {
		if !matchesPosition(pos, values[i]) {
			return false
		}
	}
	return true
}

func matchesPosition(pos, value string) bool {
	for _, alt := range strings.Split(pos, "|") {
		if alt == "_" || alt == value {
			return true
		}
	}
	return false
}

func caseSummary(cases *papyrus.Value) string {
	parts := make([]string, 0, len(cases.Pairs))
	for _, entry := range cases.Pairs {
		if entry.Key.IsDefault {
			continue
		}
		parts = append(parts, "("+strings.Join(entry.Key.Idents, ", ")+")")
	}
	return strings.Join(parts, ", ")
}

// valueText extracts a comparable string from a resolved atomic Value, the
// way select() needs for matching against mode variables.
func valueText(v *papyrus.Value) (string, error) {
	switch v.Kind {
	case papyrus.ValueString, papyrus.ValueIdentifier:
		return v.Str, nil
	case papyrus.ValueBool:
		if v.Bool {
			return "true", nil
		}
		return "false", nil
	default:
		return "", fmt.Errorf("value of kind %s cannot be used as a select() key", v.Kind)
	}
}
