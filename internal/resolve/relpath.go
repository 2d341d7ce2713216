package resolve

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/forrestthewoods/anubis/internal/diagnostic"
	"github.com/forrestthewoods/anubis/internal/papyrus"
)

// relPath implements RelPath(s): join(config_dir, s), normalized and
// converted to forward slashes. Fails if the result escapes project_root.
func relPath(env *Environment, v *papyrus.Value) (*papyrus.Value, error) {
	s, err := stringArg(env, v, 0, "s")
	if err != nil {
		return nil, err
	}
	joined, err := joinUnderRoot(env, s)
	if err != nil {
		return nil, diagnostic.Wrap(diagnostic.Resolve, err.Error(), err).At("", v.Pos.Line, v.Pos.Col)
	}
	return papyrus.NewString(joined, v.Pos), nil
}

// relPaths implements RelPaths([s1, s2, …]): RelPath applied element-wise,
// preserving order.
func relPaths(env *Environment, v *papyrus.Value) (*papyrus.Value, error) {
	ss, err := stringArrayArg(env, v, 0, "ss", true)
	if err != nil {
		return nil, err
	}
	elems := make([]*papyrus.Value, len(ss))
	for i, s := range ss {
		joined, err := joinUnderRoot(env, s)
		if err != nil {
			return nil, diagnostic.Wrap(diagnostic.Resolve, err.Error(), err).At("", v.Pos.Line, v.Pos.Col)
		}
		elems[i] = papyrus.NewString(joined, v.Pos)
	}
	return papyrus.NewArray(elems, v.Pos), nil
}

func joinUnderRoot(env *Environment, s string) (string, error) {
	joined := filepath.Clean(filepath.Join(env.ConfigDir, filepath.FromSlash(s)))
	rel, err := filepath.Rel(env.ProjectRoot, joined)
	if err != nil {
		return "", fmt.Errorf("RelPath(%q): %w", s, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("RelPath(%q): result %q escapes project root %q", s, joined, env.ProjectRoot)
	}
	return filepath.ToSlash(joined), nil
}
