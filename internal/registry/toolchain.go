package registry

import (
	"fmt"

	"github.com/forrestthewoods/anubis/internal/diagnostic"
	"github.com/forrestthewoods/anubis/internal/project"
	"github.com/forrestthewoods/anubis/internal/target"
)

// GetToolchain loads and projects the toolchain() object named by tgt,
// resolved under mode, memoized by (mode, target).
func (r *Registry) GetToolchain(mode *Mode, tgt target.Target) (*Toolchain, error) {
	key := toolchainKey{dir: tgt.Dir, mode: mode.Name, name: tgt.Name}

	r.toolchainMu.RLock()
	if tc, ok := r.toolchains[key]; ok {
		r.toolchainMu.RUnlock()
		return tc, nil
	}
	r.toolchainMu.RUnlock()

	cacheKey := key.dir + "\x00" + key.mode + "\x00" + key.name
	v, err, _ := r.toolchainGroup.Do(cacheKey, func() (interface{}, error) {
		resolved, err := r.GetResolved(tgt.Dir, mode)
		if err != nil {
			return nil, err
		}
		obj, err := findObject(resolved, tgt.Name)
		if err != nil {
			return nil, diagnostic.Wrap(diagnostic.Resolve, fmt.Sprintf("toolchain target %s", tgt), err)
		}
		shape, ok := r.shapes.Shape("toolchain")
		if !ok {
			return nil, diagnostic.New(diagnostic.Projection, "no projection shape registered for \"toolchain\"")
		}
		record, _, err := project.Project(r.shapes.Shape, shape, obj)
		if err != nil {
			return nil, err
		}

		tc := &Toolchain{Name: tgt.Name}
		ccField, ok := record.Field("cc")
		if !ok || ccField.Kind != project.KindObject {
			return nil, diagnostic.New(diagnostic.Projection, fmt.Sprintf("toolchain %s: missing \"cc\" record", tgt))
		}
		cc := ccField.Record
		if v, ok := cc.Field("compiler"); ok {
			tc.Compiler = v.Str
		}
		if v, ok := cc.Field("archiver"); ok {
			tc.Archiver = v.Str
		}
		if v, ok := cc.Field("flags"); ok {
			tc.Flags = v.Strings()
		}
		if v, ok := cc.Field("include_dirs"); ok {
			tc.IncludeDirs = v.Strings()
		}
		if v, ok := cc.Field("lib_dirs"); ok {
			tc.LibDirs = v.Strings()
		}
		if v, ok := cc.Field("libraries"); ok {
			tc.Libraries = v.Strings()
		}
		if v, ok := cc.Field("defines"); ok {
			tc.Defines = v.Strings()
		}

		r.toolchainMu.Lock()
		r.toolchains[key] = tc
		r.toolchainMu.Unlock()
		return tc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Toolchain), nil
}

// GetRule loads, resolves under mode, and projects the object named by
// tgt into a RuleInstance, memoized by (mode, target). The object's type
// name selects its projection shape via the Registry's ShapeProvider.
func (r *Registry) GetRule(mode *Mode, tgt target.Target) (*RuleInstance, error) {
	key := ruleKey{dir: tgt.Dir, mode: mode.Name, name: tgt.Name}

	r.ruleMu.RLock()
	if ri, ok := r.rules[key]; ok {
		r.ruleMu.RUnlock()
		return ri, nil
	}
	r.ruleMu.RUnlock()

	cacheKey := key.dir + "\x00" + key.mode + "\x00" + key.name
	v, err, _ := r.ruleGroup.Do(cacheKey, func() (interface{}, error) {
		resolved, err := r.GetResolved(tgt.Dir, mode)
		if err != nil {
			return nil, err
		}
		obj, err := findObject(resolved, tgt.Name)
		if err != nil {
			return nil, diagnostic.Wrap(diagnostic.Resolve, fmt.Sprintf("rule target %s", tgt), err)
		}
		shape, ok := r.shapes.Shape(obj.TypeName)
		if !ok {
			return nil, diagnostic.New(diagnostic.Projection,
				fmt.Sprintf("no projection shape registered for object type %q (target %s)", obj.TypeName, tgt))
		}
		record, warnings, err := project.Project(r.shapes.Shape, shape, obj)
		if err != nil {
			return nil, diagnostic.Wrap(diagnostic.Projection, fmt.Sprintf("projecting rule target %s", tgt), err)
		}
		for _, w := range warnings {
			w.WithFrame("target", tgt.String())
		}

		ri := &RuleInstance{TypeName: obj.TypeName, Record: record}
		r.ruleMu.Lock()
		r.rules[key] = ri
		r.ruleMu.Unlock()
		return ri, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*RuleInstance), nil
}
