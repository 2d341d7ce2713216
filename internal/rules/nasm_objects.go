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

// createNasmObjectsRootJob builds the root job for a nasm_objects target:
// assemble every source in parallel and publish the resulting object
// files as an ArchiveArtifact's LinkInputs, with no IncludeDirs and no
// archive file of its own — per spec.md §4.8 this object type only
// produces objects, it never links or archives.
func createNasmObjectsRootJob(_ *Registry, reg *registry.Registry, _ *job.Scheduler, mode *registry.Mode, _ target.Target, tgt target.Target, ri *registry.RuleInstance) job.Spec {
	label := tgt.Rel(reg.ProjectRoot())

	return job.Spec{
		Description: "nasm_objects " + label,
		Fn: func(jc *job.Context) job.Result {
			srcsField, _ := ri.Record.Field("srcs")
			srcs := srcsField.Strings()
			flagsField, _ := ri.Record.Field("flags")
			flags := flagsField.Strings()

			outDir := buildTreeDir(reg.ProjectRoot(), tgt, mode.Name)
			objPaths := make([]string, len(srcs))
			children := make([]job.Spec, len(srcs))
			for i, src := range srcs {
				i, src := i, src
				children[i] = job.Spec{
					Description: fmt.Sprintf("assemble %s", src),
					Fn: func(jc *job.Context) job.Result {
						objPath := objectPathFor(outDir, src)
						if err := os.MkdirAll(filepath.Dir(objPath), 0o755); err != nil {
							return job.Failure(diagnostic.Wrap(diagnostic.JobFailure, fmt.Sprintf("creating object directory for %s", src), err))
						}
						argv := append([]string{"nasm"}, flags...)
						argv = append(argv, "-o", objPath, src)
						if _, err := runExternalTool(jc.Ctx, tgt.Dir, argv); err != nil {
							return job.Failure(err)
						}
						objPaths[i] = objPath
						return job.Success(job.ObjectFileArtifact{Path: objPath})
					},
				}
			}

			return job.Defer(children, func(jc *job.Context) job.Result {
				return job.Success(job.ArchiveArtifact{LinkInputs: objPaths})
			})
		},
	}
}
