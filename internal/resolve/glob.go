package resolve

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/forrestthewoods/anubis/internal/diagnostic"
	"github.com/forrestthewoods/anubis/internal/papyrus"
)

// glob implements glob(includes[, excludes]): includes/excludes are
// arrays of string patterns matched relative to config_dir (`**` crosses
// directories, `*` does not). The result is a sorted, deduplicated array
// of project-root-relative, forward-slash paths. A glob that matches
// nothing is not an error.
func glob(env *Environment, v *papyrus.Value) (*papyrus.Value, error) {
	includes, err := stringArrayArg(env, v, 0, "includes", true)
	if err != nil {
		return nil, err
	}
	excludes, err := stringArrayArg(env, v, 1, "excludes", false)
	if err != nil {
		return nil, err
	}

	fsys := os.DirFS(env.ConfigDir)

	included := make(map[string]struct{})
	for _, pattern := range includes {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, diagnostic.Wrap(diagnostic.Resolve, fmt.Sprintf("glob include pattern %q", pattern), err).At("", v.Pos.Line, v.Pos.Col)
		}
		for _, m := range matches {
			included[m] = struct{}{}
		}
	}

	for _, pattern := range excludes {
		for m := range included {
			ok, err := doublestar.Match(pattern, m)
			if err != nil {
				return nil, diagnostic.Wrap(diagnostic.Resolve, fmt.Sprintf("glob exclude pattern %q", pattern), err).At("", v.Pos.Line, v.Pos.Col)
			}
			if ok {
				delete(included, m)
			}
		}
	}

	paths := make([]string, 0, len(included))
	for m := range included {
		abs := filepath.Join(env.ConfigDir, filepath.FromSlash(m))
		rel, err := filepath.Rel(env.ProjectRoot, abs)
		if err != nil {
			return nil, diagnostic.Wrap(diagnostic.Resolve, "glob result path", err).At("", v.Pos.Line, v.Pos.Col)
		}
		paths = append(paths, filepath.ToSlash(rel))
	}
	sort.Strings(paths)

	elems := make([]*papyrus.Value, len(paths))
	for i, p := range paths {
		elems[i] = papyrus.NewString(p, v.Pos)
	}
	return papyrus.NewArray(elems, v.Pos), nil
}
