package rules

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/forrestthewoods/anubis/internal/diagnostic"
	"github.com/forrestthewoods/anubis/internal/job"
	"github.com/forrestthewoods/anubis/internal/registry"
	"github.com/forrestthewoods/anubis/internal/target"
)

// createCppStaticLibraryRootJob builds the root job for a
// cpp_static_library target: compile every own source against the union
// of dependency include dirs, archive the resulting objects, and publish
// an ArchiveArtifact whose IncludeDirs/LinkInputs already fold in every
// transitive dependency, so a consumer only ever needs to look at its
// direct deps' artifacts (spec.md §4.8).
func createCppStaticLibraryRootJob(rules *Registry, reg *registry.Registry, sched *job.Scheduler, mode *registry.Mode, toolchainTgt, tgt target.Target, ri *registry.RuleInstance) job.Spec {
	label := tgt.Rel(reg.ProjectRoot())

	return job.Spec{
		Description: "cpp_static_library " + label,
		Fn: func(jc *job.Context) job.Result {
			srcsField, _ := ri.Record.Field("srcs")
			srcs := srcsField.Strings()

			tc, err := reg.GetToolchain(mode, toolchainTgt)
			if err != nil {
				return job.Failure(err)
			}

			depsField, _ := ri.Record.Field("deps")
			depTargets, err := resolveDeps(reg, tgt, depsField.Strings())
			if err != nil {
				return job.Failure(err)
			}
			depIDs := make([]job.ID, len(depTargets))
			for i, dt := range depTargets {
				id, err := rules.CreateRootJob(reg, sched, mode, toolchainTgt, dt)
				if err != nil {
					return job.Failure(err)
				}
				depIDs[i] = id
			}

			flagsField, _ := ri.Record.Field("flags")
			definesField, _ := ri.Record.Field("defines")
			ownIncludesField, _ := ri.Record.Field("include_dirs")
			flags, defines := flagsField.Strings(), definesField.Strings()

			ownIncludeDirs := make([]string, len(ownIncludesField.Strings()))
			for i, d := range ownIncludesField.Strings() {
				if filepath.IsAbs(d) {
					ownIncludeDirs[i] = d
				} else {
					ownIncludeDirs[i] = filepath.Join(tgt.Dir, d)
				}
			}

			objDir := buildTreeDir(reg.ProjectRoot(), tgt, mode.Name)
			binDir := binTreeDir(reg.ProjectRoot(), tgt, mode.Name)

			return job.DeferOn(nil, depIDs, func(jc *job.Context) job.Result {
				var depIncludeDirs, depLinkInputs []string
				for _, id := range depIDs {
					if dirs, ok := jc.Artifacts.IncludeDirs(id); ok {
						depIncludeDirs = append(depIncludeDirs, dirs...)
					}
					if inputs, ok := jc.Artifacts.LinkInputs(id); ok {
						depLinkInputs = append(depLinkInputs, inputs...)
					}
				}
				depIncludeDirs = dedupPaths(depIncludeDirs)
				depLinkInputs = dedupPaths(depLinkInputs)
				compileIncludeDirs := dedupPaths(append(append([]string{}, ownIncludeDirs...), depIncludeDirs...))

				objPaths := make([]string, len(srcs))
				children := make([]job.Spec, len(srcs))
				for i, src := range srcs {
					i, src := i, src
					children[i] = job.Spec{
						Description: fmt.Sprintf("compile %s", src),
						Fn: func(jc *job.Context) job.Result {
							objPath, err := compileOne(jc, tc, tgt.Dir, objDir, src, flags, defines, compileIncludeDirs)
							if err != nil {
								return job.Failure(err)
							}
							objPaths[i] = objPath
							return job.Success(job.ObjectFileArtifact{Path: objPath})
						},
					}
				}

				return job.Defer(children, func(jc *job.Context) job.Result {
					libPath := filepath.Join(binDir, "lib"+tgt.Name+".a")
					if err := os.MkdirAll(filepath.Dir(libPath), 0o755); err != nil {
						return job.Failure(diagnostic.Wrap(diagnostic.JobFailure, "creating output directory", err))
					}

					archiver := tc.Archiver
					if archiver == "" {
						archiver = "ar"
					}
					argv := append([]string{archiver, "rcs", libPath}, objPaths...)
					if _, err := runExternalTool(jc.Ctx, tgt.Dir, argv); err != nil {
						return job.Failure(err)
					}

					artifact := job.ArchiveArtifact{
						Path:        libPath,
						IncludeDirs: dedupPaths(append(append([]string{}, ownIncludeDirs...), depIncludeDirs...)),
						LinkInputs:  dedupPaths(append([]string{libPath}, depLinkInputs...)),
					}
					return job.Success(artifact)
				})
			})
		},
	}
}
