// Package target implements spec.md §3/§6's Anubis target addressing:
// "//dir/path:name" (project-root-relative) or ":name" (relative to the
// current config file's directory). A Target is the normalized form used
// as a cache key throughout internal/registry and internal/job — two
// spellings of the same target must compare equal, which is why Dir is
// always stored as an absolute, cleaned path rather than the raw string
// a user typed.
package target

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/forrestthewoods/anubis/internal/diagnostic"
)

// nameRegexp enforces spec.md §6's "Names are [A-Za-z_][A-Za-z0-9_]*".
var nameRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Target is a normalized reference to one object declared in an ANUBIS
// file: Dir is the absolute, cleaned path to that file's directory, and
// Name is the object's "name" field. It is a plain comparable struct so
// it can key a map directly — two targets are equal iff their normalized
// (absolute directory, name) pairs agree, per spec.md §3.
type Target struct {
	Dir  string
	Name string
}

// Parse parses raw as either a project-root-relative target
// ("//dir/path:name") or a current-config-relative target (":name"),
// per spec.md §6. currentDir is the directory the bare ":name" form is
// resolved against (the ANUBIS file currently being processed, or the
// project root for targets named on the command line).
func Parse(raw, projectRoot, currentDir string) (Target, error) {
	switch {
	case strings.HasPrefix(raw, "//"):
		return parseAbsolute(raw, projectRoot)
	case strings.HasPrefix(raw, ":"):
		return parseRelative(raw, currentDir)
	default:
		return Target{}, diagnostic.New(diagnostic.Resolve,
			fmt.Sprintf("invalid target %q: must start with %q or %q", raw, "//", ":"))
	}
}

func parseAbsolute(raw, projectRoot string) (Target, error) {
	body := raw[len("//"):]
	dirPart, name, err := splitNameSuffix(raw, body)
	if err != nil {
		return Target{}, err
	}
	dir := filepath.Join(projectRoot, filepath.FromSlash(dirPart))
	return normalize(raw, projectRoot, dir, name)
}

func parseRelative(raw, currentDir string) (Target, error) {
	name := raw[len(":"):]
	if name == "" {
		return Target{}, diagnostic.New(diagnostic.Resolve,
			fmt.Sprintf("invalid target %q: empty name", raw))
	}
	if !nameRegexp.MatchString(name) {
		return Target{}, diagnostic.New(diagnostic.Resolve,
			fmt.Sprintf("invalid target %q: name %q does not match [A-Za-z_][A-Za-z0-9_]*", raw, name))
	}
	return Target{Dir: filepath.Clean(currentDir), Name: name}, nil
}

// splitNameSuffix splits a "dir/path:name" body into its directory part
// and name, validating that exactly one ':' separates them.
func splitNameSuffix(raw, body string) (dirPart, name string, err error) {
	idx := strings.LastIndex(body, ":")
	if idx < 0 {
		return "", "", diagnostic.New(diagnostic.Resolve,
			fmt.Sprintf("invalid target %q: missing \":name\" suffix", raw))
	}
	if strings.Count(body, ":") > 1 {
		return "", "", diagnostic.New(diagnostic.Resolve,
			fmt.Sprintf("invalid target %q: more than one ':'", raw))
	}
	dirPart, name = body[:idx], body[idx+1:]
	if name == "" {
		return "", "", diagnostic.New(diagnostic.Resolve,
			fmt.Sprintf("invalid target %q: empty name", raw))
	}
	if !nameRegexp.MatchString(name) {
		return "", "", diagnostic.New(diagnostic.Resolve,
			fmt.Sprintf("invalid target %q: name %q does not match [A-Za-z_][A-Za-z0-9_]*", raw, name))
	}
	return dirPart, name, nil
}

// normalize cleans dir and verifies it does not escape projectRoot,
// mirroring the same "does the result escape the project root" check
// spec.md §4.4 requires of RelPath.
func normalize(raw, projectRoot, dir, name string) (Target, error) {
	cleaned := filepath.Clean(dir)
	rel, err := filepath.Rel(projectRoot, cleaned)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Target{}, diagnostic.New(diagnostic.Resolve,
			fmt.Sprintf("invalid target %q: escapes project root", raw))
	}
	return Target{Dir: cleaned, Name: name}, nil
}

// Rel renders t in the canonical "//dir:name" form, relative to
// projectRoot with forward-slash separators, for diagnostics and logs.
func (t Target) Rel(projectRoot string) string {
	rel, err := filepath.Rel(projectRoot, t.Dir)
	if err != nil {
		return t.String()
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return "//:" + t.Name
	}
	return "//" + rel + ":" + t.Name
}

// String renders t as an absolute-path target, used internally before a
// project root is known (e.g. in composite cache keys).
func (t Target) String() string {
	return filepath.ToSlash(t.Dir) + ":" + t.Name
}
