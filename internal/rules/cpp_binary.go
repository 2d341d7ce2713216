package rules

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/forrestthewoods/anubis/internal/diagnostic"
	"github.com/forrestthewoods/anubis/internal/job"
	"github.com/forrestthewoods/anubis/internal/output"
	"github.com/forrestthewoods/anubis/internal/registry"
	"github.com/forrestthewoods/anubis/internal/target"
)

// createCppBinaryRootJob builds the root job for a cpp_binary target:
// compile every dependency, then compile every own source against the
// union of the dependencies' public include dirs, then link. Per spec.md
// §4.8, producing the executable artifact requires the whole pipeline to
// complete before anything depending on this binary may proceed.
func createCppBinaryRootJob(rules *Registry, reg *registry.Registry, sched *job.Scheduler, mode *registry.Mode, toolchainTgt, tgt target.Target, ri *registry.RuleInstance) job.Spec {
	label := tgt.Rel(reg.ProjectRoot())

	return job.Spec{
		Description: "cpp_binary " + label,
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
			ldflagsField, _ := ri.Record.Field("ldflags")
			definesField, _ := ri.Record.Field("defines")
			flags, ldflags, defines := flagsField.Strings(), ldflagsField.Strings(), definesField.Strings()

			objDir := buildTreeDir(reg.ProjectRoot(), tgt, mode.Name)
			binDir := binTreeDir(reg.ProjectRoot(), tgt, mode.Name)

			return job.DeferOn(nil, depIDs, func(jc *job.Context) job.Result {
				var includeDirs, linkInputs []string
				for _, id := range depIDs {
					if dirs, ok := jc.Artifacts.IncludeDirs(id); ok {
						includeDirs = append(includeDirs, dirs...)
					}
					if inputs, ok := jc.Artifacts.LinkInputs(id); ok {
						linkInputs = append(linkInputs, inputs...)
					}
				}
				includeDirs = dedupPaths(includeDirs)
				linkInputs = dedupPaths(linkInputs)

				objPaths := make([]string, len(srcs))
				children := make([]job.Spec, len(srcs))
				for i, src := range srcs {
					i, src := i, src
					children[i] = job.Spec{
						Description: fmt.Sprintf("compile %s", src),
						Fn: func(jc *job.Context) job.Result {
							objPath, err := compileOne(jc, tc, tgt.Dir, objDir, src, flags, defines, includeDirs)
							if err != nil {
								return job.Failure(err)
							}
							objPaths[i] = objPath
							return job.Success(job.ObjectFileArtifact{Path: objPath})
						},
					}
				}

				return job.Defer(children, func(jc *job.Context) job.Result {
					outPath := filepath.Join(binDir, tgt.Name+executableSuffix())
					if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
						return job.Failure(diagnostic.Wrap(diagnostic.JobFailure, "creating output directory", err))
					}

					argv := linkExecutableArgv(tc, ldflags, objPaths, linkInputs, outPath)
					if _, err := runExternalTool(jc.Ctx, tgt.Dir, argv); err != nil {
						return job.Failure(err)
					}
					var size int64
					if info, err := os.Stat(outPath); err == nil {
						size = info.Size()
					}
					output.Info("linked executable", "target", label, "path", outPath)
					return job.Success(job.ExecutableArtifact{Path: outPath, Size: size})
				})
			})
		},
	}
}

// linkExecutableArgv builds the compiler-as-linker invocation for a
// cpp_binary, mirroring qobs's runLinkJob non-library branch.
func linkExecutableArgv(tc *registry.Toolchain, ldflags, objs, linkInputs []string, out string) []string {
	argv := []string{tc.Compiler}
	for _, d := range tc.LibDirs {
		argv = append(argv, "-L"+d)
	}
	argv = append(argv, objs...)
	argv = append(argv, linkInputs...)
	for _, lib := range tc.Libraries {
		argv = append(argv, "-l"+lib)
	}
	argv = append(argv, tc.Flags...)
	argv = append(argv, ldflags...)
	argv = append(argv, "-o", out)
	return argv
}
