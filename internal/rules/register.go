package rules

import (
	"fmt"

	"github.com/forrestthewoods/anubis/internal/diagnostic"
	"github.com/forrestthewoods/anubis/internal/job"
	"github.com/forrestthewoods/anubis/internal/project"
	"github.com/forrestthewoods/anubis/internal/registry"
	"github.com/forrestthewoods/anubis/internal/target"
)

// factory builds the root Job for one already-projected rule instance.
// Only object types that describe a buildable artifact register one;
// mode/toolchain/CcToolchain are projection-only shapes.
type factory func(rules *Registry, reg *registry.Registry, sched *job.Scheduler, mode *registry.Mode, toolchainTgt target.Target, tgt target.Target, ri *registry.RuleInstance) job.Spec

type entry struct {
	shape   project.RecordShape
	factory factory
}

// Registry is the C8 built-in object registry: it implements
// registry.ShapeProvider for every built-in type and, for buildable
// types, knows how to turn a projected RuleInstance into a root job.
type Registry struct {
	entries map[string]entry
}

// NewRegistry builds the registry of Anubis's built-in object types.
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[string]entry)}
	r.register("mode", modeShape, nil)
	r.register("toolchain", toolchainShape, nil)
	r.register("CcToolchain", ccToolchainShape, nil)
	r.register("ToolchainInstall", ToolchainInstallShape, nil)
	r.register("cpp_binary", cppBinaryShape, createCppBinaryRootJob)
	r.register("cpp_static_library", cppStaticLibraryShape, createCppStaticLibraryRootJob)
	r.register("nasm_objects", nasmObjectsShape, createNasmObjectsRootJob)
	return r
}

func (r *Registry) register(name string, shape project.RecordShape, f factory) {
	r.entries[name] = entry{shape: shape, factory: f}
}

// Shape implements registry.ShapeProvider.
func (r *Registry) Shape(typeName string) (project.RecordShape, bool) {
	e, ok := r.entries[typeName]
	if !ok {
		return project.RecordShape{}, false
	}
	return e.shape, true
}

// CreateRootJob resolves tgt's rule under mode and submits (or reuses, via
// the scheduler's memoization) its root job, returning the job's ID.
// toolchainTgt is the toolchain selected once for the whole build (the
// CLI's --toolchain flag, spec.md §6) and threaded unchanged through every
// dependency. Per spec.md §4.5, a buildable object type exposes exactly
// this capability: create_root_job(target) → Job.
func (r *Registry) CreateRootJob(reg *registry.Registry, sched *job.Scheduler, mode *registry.Mode, toolchainTgt, tgt target.Target) (job.ID, error) {
	ri, err := reg.GetRule(mode, tgt)
	if err != nil {
		return 0, err
	}
	e, ok := r.entries[ri.TypeName]
	if !ok || e.factory == nil {
		return 0, diagnostic.New(diagnostic.Projection,
			fmt.Sprintf("object type %q is not a buildable rule", ri.TypeName)).
			WithFrame("target", tgt.Rel(reg.ProjectRoot()))
	}

	key := mode.Name + "\x00" + toolchainTgt.String() + "\x00" + tgt.Dir + "\x00" + tgt.Name + "\x00build"
	return sched.GetOrAdd(key, func() job.Spec {
		return e.factory(r, reg, sched, mode, toolchainTgt, tgt, ri)
	})
}

// resolveDeps parses tgt's "deps" list (already-relative-to-tgt.Dir target
// strings) into normalized Targets.
func resolveDeps(reg *registry.Registry, tgt target.Target, deps []string) ([]target.Target, error) {
	out := make([]target.Target, len(deps))
	for i, raw := range deps {
		dt, err := target.Parse(raw, reg.ProjectRoot(), tgt.Dir)
		if err != nil {
			return nil, diagnostic.Wrap(diagnostic.Resolve, fmt.Sprintf("dependency %q", raw), err).
				WithFrame("target", tgt.Rel(reg.ProjectRoot()))
		}
		out[i] = dt
	}
	return out, nil
}
