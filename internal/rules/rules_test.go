package rules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forrestthewoods/anubis/internal/job"
	"github.com/forrestthewoods/anubis/internal/registry"
	"github.com/forrestthewoods/anubis/internal/target"
	"github.com/forrestthewoods/anubis/internal/testutil"
)

// writeFakeTool writes a shell script standing in for a compiler/linker/
// archiver: it finds the argument following "-o" (or, for "ar rcs OUT …",
// its second argument) and touches it, without caring about the rest of
// argv. This lets the pipeline tests exercise real process invocation and
// real dependency ordering without depending on a real C toolchain.
func writeFakeTool(t *testing.T, dir, name string) string {
	t.Helper()
	script := `#!/bin/sh
if [ "$1" = "rcs" ]; then
  : > "$2"
  exit 0
fi
prev=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then
    out="$a"
  fi
  prev="$a"
done
: > "$out"
`
	path := testutil.WriteFile(t, dir, name, script)
	require.NoError(t, os.Chmod(path, 0o755))
	return path
}

func TestCppBinaryWithStaticLibraryDependencyBuilds(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	t.Cleanup(cleanup)

	cc := writeFakeTool(t, dir, "fakecc")
	ar := writeFakeTool(t, dir, "fakear")

	testutil.WriteFile(t, dir, registry.ConfigFileName, fmt.Sprintf(`
mode(name = "release", vars = { opt_level = "2" })

toolchain(name = "default", cc = CcToolchain(compiler = "%s", archiver = "%s"))

cpp_static_library(name = "util", srcs = ["util.c"], include_dirs = ["include"])

cpp_binary(name = "app", srcs = ["main.c"], deps = [":util"])
`, cc, ar))

	rulesReg := NewRegistry()
	reg := registry.New(dir, rulesReg)
	sched := job.New(2)

	modeTgt := target.Target{Dir: dir, Name: "release"}
	mode, err := reg.GetMode(modeTgt)
	require.NoError(t, err)

	toolchainTgt := target.Target{Dir: dir, Name: "default"}
	appTgt := target.Target{Dir: dir, Name: "app"}

	rootID, err := rulesReg.CreateRootJob(reg, sched, mode, toolchainTgt, appTgt)
	require.NoError(t, err)

	require.NoError(t, sched.Run(context.Background()))
	assert.Equal(t, job.Succeeded, sched.State(rootID))

	exe, ok := sched.Artifacts().Executable(rootID)
	require.True(t, ok)
	assert.FileExists(t, exe.Path)
	assert.Equal(t, filepath.Join(dir, ".anubis-bin", "release", "app"), exe.Path)
}

func TestCppBinaryRejectsEmptySrcs(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	t.Cleanup(cleanup)

	testutil.WriteFile(t, dir, registry.ConfigFileName, `
mode(name = "release", vars = { opt_level = "2" })
toolchain(name = "default", cc = CcToolchain(compiler = "cc"))
cpp_binary(name = "app", srcs = [])
`)

	rulesReg := NewRegistry()
	reg := registry.New(dir, rulesReg)
	sched := job.New(1)

	modeTgt := target.Target{Dir: dir, Name: "release"}
	mode, err := reg.GetMode(modeTgt)
	require.NoError(t, err)

	toolchainTgt := target.Target{Dir: dir, Name: "default"}
	appTgt := target.Target{Dir: dir, Name: "app"}

	// An empty "srcs" is a project-time error (spec.md §8): it must be
	// rejected by CreateRootJob itself, before any job is ever submitted,
	// not surfaced as a job failure once the scheduler runs.
	_, err = rulesReg.CreateRootJob(reg, sched, mode, toolchainTgt, appTgt)
	require.Error(t, err)
}

func TestNasmObjectsProducesLinkInputsOnly(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	t.Cleanup(cleanup)

	nasm := writeFakeTool(t, dir, "nasm")
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	_ = nasm

	testutil.WriteFile(t, dir, registry.ConfigFileName, `
mode(name = "release", vars = { opt_level = "2" })
toolchain(name = "default", cc = CcToolchain(compiler = "cc"))
nasm_objects(name = "asm_bits", srcs = ["a.asm", "b.asm"])
`)

	rulesReg := NewRegistry()
	reg := registry.New(dir, rulesReg)
	sched := job.New(2)

	mode, err := reg.GetMode(target.Target{Dir: dir, Name: "release"})
	require.NoError(t, err)
	toolchainTgt := target.Target{Dir: dir, Name: "default"}
	asmTgt := target.Target{Dir: dir, Name: "asm_bits"}

	rootID, err := rulesReg.CreateRootJob(reg, sched, mode, toolchainTgt, asmTgt)
	require.NoError(t, err)
	require.NoError(t, sched.Run(context.Background()))

	inputs, ok := sched.Artifacts().LinkInputs(rootID)
	require.True(t, ok)
	assert.Len(t, inputs, 2)
	for _, p := range inputs {
		assert.FileExists(t, p)
	}
}

func TestDiamondDependencyBuildsSharedLibraryOnce(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	t.Cleanup(cleanup)

	cc := writeFakeTool(t, dir, "fakecc")
	ar := writeFakeTool(t, dir, "fakear")

	testutil.WriteFile(t, dir, registry.ConfigFileName, fmt.Sprintf(`
mode(name = "release", vars = { opt_level = "2" })
toolchain(name = "default", cc = CcToolchain(compiler = "%s", archiver = "%s"))

cpp_static_library(name = "shared", srcs = ["shared.c"])
cpp_binary(name = "m", srcs = ["m.c"], deps = [":shared"])
cpp_binary(name = "n", srcs = ["n.c"], deps = [":shared"])
`, cc, ar))

	rulesReg := NewRegistry()
	reg := registry.New(dir, rulesReg)
	sched := job.New(4)

	mode, err := reg.GetMode(target.Target{Dir: dir, Name: "release"})
	require.NoError(t, err)
	toolchainTgt := target.Target{Dir: dir, Name: "default"}

	mID, err := rulesReg.CreateRootJob(reg, sched, mode, toolchainTgt, target.Target{Dir: dir, Name: "m"})
	require.NoError(t, err)
	nID, err := rulesReg.CreateRootJob(reg, sched, mode, toolchainTgt, target.Target{Dir: dir, Name: "n"})
	require.NoError(t, err)

	require.NoError(t, sched.Run(context.Background()))
	assert.Equal(t, job.Succeeded, sched.State(mID))
	assert.Equal(t, job.Succeeded, sched.State(nID))
}

// writeLoggingFakeTool is writeFakeTool plus appending every invocation's
// argv to logPath, letting a test inspect exactly what a link/archive step
// was invoked with.
func writeLoggingFakeTool(t *testing.T, dir, name, logPath string) string {
	t.Helper()
	script := fmt.Sprintf(`#!/bin/sh
echo "$@" >> %q
if [ "$1" = "rcs" ]; then
  : > "$2"
  exit 0
fi
prev=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then
    out="$a"
  fi
  prev="$a"
done
: > "$out"
`, logPath)
	path := testutil.WriteFile(t, dir, name, script)
	require.NoError(t, os.Chmod(path, 0o755))
	return path
}

// TestDiamondDependencyLinksSharedLibraryOnce covers spec.md §8 S3 exactly:
// one binary M depending on two libraries A and B that both depend on a
// shared library U. U must be compiled once (scheduler memoization) and,
// just as importantly, must appear in M's link argv exactly once rather
// than once per path through the diamond.
func TestDiamondDependencyLinksSharedLibraryOnce(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	t.Cleanup(cleanup)

	logPath := filepath.Join(dir, "invocations.log")
	cc := writeLoggingFakeTool(t, dir, "fakecc", logPath)
	ar := writeLoggingFakeTool(t, dir, "fakear", logPath)

	testutil.WriteFile(t, dir, registry.ConfigFileName, fmt.Sprintf(`
mode(name = "release", vars = { opt_level = "2" })
toolchain(name = "default", cc = CcToolchain(compiler = "%s", archiver = "%s"))

cpp_static_library(name = "u", srcs = ["u.c"])
cpp_static_library(name = "a", srcs = ["a.c"], deps = [":u"])
cpp_static_library(name = "b", srcs = ["b.c"], deps = [":u"])
cpp_binary(name = "m", srcs = ["m.c"], deps = [":a", ":b"])
`, cc, ar))

	rulesReg := NewRegistry()
	reg := registry.New(dir, rulesReg)
	sched := job.New(4)

	mode, err := reg.GetMode(target.Target{Dir: dir, Name: "release"})
	require.NoError(t, err)
	toolchainTgt := target.Target{Dir: dir, Name: "default"}

	mID, err := rulesReg.CreateRootJob(reg, sched, mode, toolchainTgt, target.Target{Dir: dir, Name: "m"})
	require.NoError(t, err)

	require.NoError(t, sched.Run(context.Background()))
	assert.Equal(t, job.Succeeded, sched.State(mID))

	libU := filepath.Join(dir, ".anubis-bin", "release", "libu.a")
	assert.FileExists(t, libU)

	log, err := os.ReadFile(logPath)
	require.NoError(t, err)
	// libU is never a compile input, and an archive command lists only
	// its own objects, so libU shows up in the invocation log as the
	// output of its own archive command and as a link input on M's link
	// line. It must never appear twice within the same line.
	for _, line := range strings.Split(strings.TrimSpace(string(log)), "\n") {
		assert.LessOrEqual(t, strings.Count(line, libU), 1, "argv line repeats %s: %s", libU, line)
	}
}
