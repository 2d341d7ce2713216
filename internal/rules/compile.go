package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/forrestthewoods/anubis/internal/diagnostic"
	"github.com/forrestthewoods/anubis/internal/job"
	"github.com/forrestthewoods/anubis/internal/registry"
	"github.com/forrestthewoods/anubis/internal/target"
)

// buildTreeDir is a target's object-output directory under the project's
// ".anubis-build/{mode}/**" tree (spec.md §6): projectRoot-relative target
// dir, then the target name, so two targets compiling same-named sources
// never collide.
func buildTreeDir(projectRoot string, tgt target.Target, modeName string) string {
	rel, err := filepath.Rel(projectRoot, tgt.Dir)
	if err != nil {
		rel = tgt.Dir
	}
	return filepath.Join(projectRoot, ".anubis-build", modeName, rel, tgt.Name)
}

// binTreeDir is a target's linked-artifact directory under the project's
// ".anubis-bin/{mode}/**" tree (spec.md §6).
func binTreeDir(projectRoot string, tgt target.Target, modeName string) string {
	rel, err := filepath.Rel(projectRoot, tgt.Dir)
	if err != nil {
		rel = tgt.Dir
	}
	return filepath.Join(projectRoot, ".anubis-bin", modeName, rel)
}

// executableSuffix returns the host's native executable extension.
func executableSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// dedupPaths drops repeated entries from paths, keeping each path's first
// occurrence. Used to fold dependency include-dirs/link-inputs: a diamond
// dependency (two deps sharing one transitive dep) must still contribute
// that shared dep's path exactly once (spec.md §8 S3).
func dedupPaths(paths []string) []string {
	if len(paths) == 0 {
		return paths
	}
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// objectPathFor derives src's object file path under outDir, preserving
// its relative structure so two sources with the same base name in
// different directories don't collide.
func objectPathFor(outDir, src string) string {
	rel := filepath.Clean(src)
	if filepath.IsAbs(rel) {
		rel = filepath.Base(rel)
	}
	rel = strings.ReplaceAll(rel, "..", "up")
	return filepath.Join(outDir, rel+".o")
}

// compileOne compiles src (resolved relative to srcDir) to an object file
// under outDir, returning the object's path. Grounded on qobs's
// runCompileJob.
func compileOne(jc *job.Context, tc *registry.Toolchain, srcDir, outDir, src string, flags, defines, includeDirs []string) (string, error) {
	objPath := objectPathFor(outDir, src)
	if err := os.MkdirAll(filepath.Dir(objPath), 0o755); err != nil {
		return "", diagnostic.Wrap(diagnostic.JobFailure, fmt.Sprintf("creating object directory for %s", src), err)
	}

	argv := compileArgv(tc, flags, defines, includeDirs, src, objPath)
	if _, err := runExternalTool(jc.Ctx, srcDir, argv); err != nil {
		return "", err
	}
	return objPath, nil
}

// compileArgv builds one compile-to-object invocation.
func compileArgv(tc *registry.Toolchain, flags, defines, includeDirs []string, src, objPath string) []string {
	argv := []string{tc.Compiler}
	for _, d := range tc.IncludeDirs {
		argv = append(argv, "-I"+d)
	}
	for _, d := range includeDirs {
		argv = append(argv, "-I"+d)
	}
	for _, d := range tc.Defines {
		argv = append(argv, "-D"+d)
	}
	for _, d := range defines {
		argv = append(argv, "-D"+d)
	}
	argv = append(argv, tc.Flags...)
	argv = append(argv, flags...)
	argv = append(argv, "-c", src, "-o", objPath)
	return argv
}
