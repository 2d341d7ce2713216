package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forrestthewoods/anubis/internal/job"
	"github.com/forrestthewoods/anubis/internal/registry"
	"github.com/forrestthewoods/anubis/internal/target"
	"github.com/forrestthewoods/anubis/internal/testutil"
)

func TestRegistryExposesShapesForEveryBuiltinType(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"mode", "toolchain", "CcToolchain", "cpp_binary", "cpp_static_library", "nasm_objects"} {
		_, ok := r.Shape(name)
		assert.True(t, ok, "missing shape for %q", name)
	}
	_, ok := r.Shape("not_a_real_type")
	assert.False(t, ok)
}

func TestCreateRootJobRejectsNonBuildableType(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	t.Cleanup(cleanup)

	testutil.WriteFile(t, dir, registry.ConfigFileName, `
mode(name = "release", vars = { opt_level = "2" })
toolchain(name = "default", cc = CcToolchain(compiler = "cc"))
`)

	rulesReg := NewRegistry()
	reg := registry.New(dir, rulesReg)
	sched := job.New(1)

	mode, err := reg.GetMode(target.Target{Dir: dir, Name: "release"})
	require.NoError(t, err)

	// "default" is a toolchain object, not a buildable rule.
	_, err = rulesReg.CreateRootJob(reg, sched, mode, target.Target{Dir: dir, Name: "default"}, target.Target{Dir: dir, Name: "default"})
	require.Error(t, err)
}

func TestCreateRootJobIsMemoizedAcrossRepeatedCalls(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	t.Cleanup(cleanup)

	cc := writeFakeTool(t, dir, "fakecc")
	ar := writeFakeTool(t, dir, "fakear")

	testutil.WriteFile(t, dir, registry.ConfigFileName, `
mode(name = "release", vars = { opt_level = "2" })
toolchain(name = "default", cc = CcToolchain(compiler = "`+cc+`", archiver = "`+ar+`"))
cpp_static_library(name = "util", srcs = ["util.c"])
`)

	rulesReg := NewRegistry()
	reg := registry.New(dir, rulesReg)
	sched := job.New(4)

	mode, err := reg.GetMode(target.Target{Dir: dir, Name: "release"})
	require.NoError(t, err)
	toolchainTgt := target.Target{Dir: dir, Name: "default"}
	utilTgt := target.Target{Dir: dir, Name: "util"}

	id1, err := rulesReg.CreateRootJob(reg, sched, mode, toolchainTgt, utilTgt)
	require.NoError(t, err)
	id2, err := rulesReg.CreateRootJob(reg, sched, mode, toolchainTgt, utilTgt)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	require.NoError(t, sched.Run(context.Background()))
	assert.Equal(t, job.Succeeded, sched.State(id1))
}
