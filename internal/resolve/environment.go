// Package resolve implements the Papyrus resolution pipeline: expanding
// glob() calls, evaluating select() against mode variables, rewriting
// relative paths, and collapsing Concat nodes, per the resolver design in
// the Anubis specification.
package resolve

import "github.com/forrestthewoods/anubis/internal/papyrus"

// Environment carries everything the resolver needs to evaluate Calls and
// Concats: the active mode's variable bindings, the directory of the
// ANUBIS file currently resolving, and the project root relative paths
// are checked against.
type Environment struct {
	Vars        map[string]*papyrus.Value
	ConfigDir   string
	ProjectRoot string
}
