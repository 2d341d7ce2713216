// Package registry implements the Anubis target registry (C6): it caches
// raw and resolved configuration per config-file directory, and caches
// modes, toolchains, and projected rule records per normalized target,
// with at-most-one-loader semantics for every cache.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/forrestthewoods/anubis/internal/diagnostic"
	"github.com/forrestthewoods/anubis/internal/papyrus"
	"github.com/forrestthewoods/anubis/internal/project"
	"github.com/forrestthewoods/anubis/internal/resolve"
	"github.com/forrestthewoods/anubis/internal/target"
)

// ConfigFileName is the name every Papyrus source file must carry.
const ConfigFileName = "ANUBIS"

// ShapeProvider resolves an object type name (mode, toolchain,
// CcToolchain, cpp_binary, …) to its projection shape. internal/rules
// implements this; registry depends only on the interface so the two
// packages don't form an import cycle (rules needs the registry to
// resolve dependencies when it builds root jobs).
type ShapeProvider interface {
	Shape(typeName string) (project.RecordShape, bool)
}

// Mode is the projected form of a `mode(...)` object: a name and a set of
// variable bindings, auto-augmented with host_platform/host_arch.
type Mode struct {
	Name string
	Vars map[string]*papyrus.Value
}

// Toolchain is the projected form of a `toolchain(...)` object, resolved
// under a specific Mode.
type Toolchain struct {
	Name          string
	Compiler      string
	Archiver      string
	Flags         []string
	IncludeDirs   []string
	LibDirs       []string
	Libraries     []string
	Defines       []string
}

// RuleInstance is a projected typed record keyed by (mode, target),
// stored once it has been successfully projected. Consumers (internal/
// rules) use TypeName to pick the right factory.
type RuleInstance struct {
	TypeName string
	Record   *project.Record
}

type resolvedKey struct {
	dir  string
	mode string
}

type toolchainKey struct {
	dir  string
	mode string
	name string
}

type ruleKey struct {
	dir  string
	mode string
	name string
}

// Registry is the C6 target registry. All methods are safe for concurrent
// use; each cache guarantees at most one in-flight loader per key via
// singleflight, so N parallel requests for the same key trigger exactly
// one load and all observe the same result.
type Registry struct {
	projectRoot string
	shapes      ShapeProvider

	rawMu    sync.RWMutex
	raw      map[string][]*papyrus.Value
	rawGroup singleflight.Group

	resolvedMu    sync.RWMutex
	resolved      map[resolvedKey][]*papyrus.Value
	resolvedGroup singleflight.Group

	modeMu    sync.RWMutex
	modes     map[target.Target]*Mode
	modeGroup singleflight.Group

	toolchainMu    sync.RWMutex
	toolchains     map[toolchainKey]*Toolchain
	toolchainGroup singleflight.Group

	ruleMu    sync.RWMutex
	rules     map[ruleKey]*RuleInstance
	ruleGroup singleflight.Group
}

// New creates a Registry rooted at projectRoot, using shapes to project
// raw objects of any type name.
func New(projectRoot string, shapes ShapeProvider) *Registry {
	return &Registry{
		projectRoot: projectRoot,
		shapes:      shapes,
		raw:         make(map[string][]*papyrus.Value),
		resolved:    make(map[resolvedKey][]*papyrus.Value),
		modes:       make(map[target.Target]*Mode),
		toolchains:  make(map[toolchainKey]*Toolchain),
		rules:       make(map[ruleKey]*RuleInstance),
	}
}

// ProjectRoot returns the directory the Registry is rooted at, for
// callers (internal/rules) that need to render targets in //dir:name form.
func (r *Registry) ProjectRoot() string {
	return r.projectRoot
}

// GetRaw returns the parsed (unresolved) top-level objects declared in
// configDir's ANUBIS file, memoized by configDir.
func (r *Registry) GetRaw(configDir string) ([]*papyrus.Value, error) {
	configDir = filepath.Clean(configDir)

	r.rawMu.RLock()
	if v, ok := r.raw[configDir]; ok {
		r.rawMu.RUnlock()
		return v, nil
	}
	r.rawMu.RUnlock()

	v, err, _ := r.rawGroup.Do(configDir, func() (interface{}, error) {
		path := filepath.Join(configDir, ConfigFileName)
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, diagnostic.Wrap(diagnostic.Parse, fmt.Sprintf("reading %s", path), err)
		}
		objs, err := papyrus.Parse(path, string(src))
		if err != nil {
			return nil, err
		}
		r.rawMu.Lock()
		r.raw[configDir] = objs
		r.rawMu.Unlock()
		return objs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*papyrus.Value), nil
}

// GetResolved returns configDir's top-level objects resolved under mode,
// memoized by (configDir, mode.Name).
func (r *Registry) GetResolved(configDir string, mode *Mode) ([]*papyrus.Value, error) {
	configDir = filepath.Clean(configDir)
	key := resolvedKey{dir: configDir, mode: mode.Name}

	r.resolvedMu.RLock()
	if v, ok := r.resolved[key]; ok {
		r.resolvedMu.RUnlock()
		return v, nil
	}
	r.resolvedMu.RUnlock()

	cacheKey := key.dir + "\x00" + key.mode
	v, err, _ := r.resolvedGroup.Do(cacheKey, func() (interface{}, error) {
		raw, err := r.GetRaw(configDir)
		if err != nil {
			return nil, err
		}
		env := &resolve.Environment{Vars: mode.Vars, ConfigDir: configDir, ProjectRoot: r.projectRoot}
		out := make([]*papyrus.Value, len(raw))
		for i, obj := range raw {
			resolved, err := resolve.Value(env, obj)
			if err != nil {
				nameVal, _ := obj.Field("name")
				name := ""
				if nameVal != nil {
					name = nameVal.Str
				}
				return nil, diagnostic.Wrap(diagnostic.Resolve, fmt.Sprintf("resolving %s under mode %q", configDir, mode.Name), err).
					WithFrame("target", name)
			}
			out[i] = resolved
		}
		r.resolvedMu.Lock()
		r.resolved[key] = out
		r.resolvedMu.Unlock()
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*papyrus.Value), nil
}

func findObject(objs []*papyrus.Value, name string) (*papyrus.Value, error) {
	for _, obj := range objs {
		nameVal, ok := obj.Field("name")
		if ok && nameVal.Kind == papyrus.ValueString && nameVal.Str == name {
			return obj, nil
		}
	}
	return nil, fmt.Errorf("no object named %q in this file", name)
}

// GetMode loads and projects the mode() object named by tgt, memoized by
// normalized target. A mode's own fields are resolved with no mode
// variables in scope (modes are the source of variables, not consumers
// of them) other than the auto-injected host_platform/host_arch.
func (r *Registry) GetMode(tgt target.Target) (*Mode, error) {
	r.modeMu.RLock()
	if m, ok := r.modes[tgt]; ok {
		r.modeMu.RUnlock()
		return m, nil
	}
	r.modeMu.RUnlock()

	cacheKey := tgt.String()
	v, err, _ := r.modeGroup.Do(cacheKey, func() (interface{}, error) {
		raw, err := r.GetRaw(tgt.Dir)
		if err != nil {
			return nil, err
		}
		obj, err := findObject(raw, tgt.Name)
		if err != nil {
			return nil, diagnostic.Wrap(diagnostic.Resolve, fmt.Sprintf("mode target %s", tgt), err)
		}
		env := &resolve.Environment{Vars: hostVars(), ConfigDir: tgt.Dir, ProjectRoot: r.projectRoot}
		resolved, err := resolve.Value(env, obj)
		if err != nil {
			return nil, err
		}
		shape, ok := r.shapes.Shape("mode")
		if !ok {
			return nil, diagnostic.New(diagnostic.Projection, "no projection shape registered for \"mode\"")
		}
		record, _, err := project.Project(r.shapes.Shape, shape, resolved)
		if err != nil {
			return nil, err
		}

		mode := &Mode{Name: tgt.Name, Vars: map[string]*papyrus.Value{}}
		for k, v := range hostVars() {
			mode.Vars[k] = v
		}
		if varsField, ok := record.Field("vars"); ok {
			for _, entry := range varsField.Pairs {
				mode.Vars[entry.Key] = projectValueToPapyrus(entry.Value)
			}
		}

		r.modeMu.Lock()
		r.modes[tgt] = mode
		r.modeMu.Unlock()
		return mode, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Mode), nil
}

// hostVars returns the auto-injected host_platform/host_arch bindings
// every mode receives regardless of its own declared vars.
func hostVars() map[string]*papyrus.Value {
	return map[string]*papyrus.Value{
		"host_platform": papyrus.NewString(hostPlatform(), papyrus.Pos{}),
		"host_arch":     papyrus.NewString(runtime.GOARCH, papyrus.Pos{}),
	}
}

func hostPlatform() string {
	switch runtime.GOOS {
	case "darwin":
		return "macos"
	default:
		return runtime.GOOS
	}
}

// projectValueToPapyrus converts a projected project.Value back into a
// resolved papyrus.Value, so Mode.Vars can feed directly into
// resolve.Environment for subsequent select() evaluation.
func projectValueToPapyrus(v *project.Value) *papyrus.Value {
	switch v.Kind {
	case project.KindString:
		return papyrus.NewString(v.Str, papyrus.Pos{})
	case project.KindBool:
		return papyrus.NewBool(v.Bool, papyrus.Pos{})
	case project.KindNumber:
		return papyrus.NewNumber("", v.Num, papyrus.Pos{})
	default:
		return papyrus.NewString(v.Str, papyrus.Pos{})
	}
}
