package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forrestthewoods/anubis/internal/project"
	"github.com/forrestthewoods/anubis/internal/target"
	"github.com/forrestthewoods/anubis/internal/testutil"
)

var ccToolchainShape = project.RecordShape{
	TypeName: "CcToolchain",
	Fields: []project.FieldShape{
		{Name: "compiler", Kind: project.KindString, Required: true},
		{Name: "archiver", Kind: project.KindString, Required: false},
		{Name: "flags", Kind: project.KindArray, Required: false},
		{Name: "include_dirs", Kind: project.KindArray, Required: false},
		{Name: "lib_dirs", Kind: project.KindArray, Required: false},
		{Name: "libraries", Kind: project.KindArray, Required: false},
		{Name: "defines", Kind: project.KindArray, Required: false},
	},
}

var toolchainShape = project.RecordShape{
	TypeName: "toolchain",
	Fields: []project.FieldShape{
		{Name: "name", Kind: project.KindString, Required: true},
		{Name: "cc", Kind: project.KindObject, Required: true, ObjectType: "CcToolchain"},
	},
}

var modeShape = project.RecordShape{
	TypeName: "mode",
	Fields: []project.FieldShape{
		{Name: "name", Kind: project.KindString, Required: true},
		{Name: "vars", Kind: project.KindMap, Required: true},
	},
}

var cppBinaryShape = project.RecordShape{
	TypeName: "cpp_binary",
	Fields: []project.FieldShape{
		{Name: "name", Kind: project.KindString, Required: true},
		{Name: "srcs", Kind: project.KindArray, Required: true},
		{Name: "deps", Kind: project.KindArray, Required: false},
	},
}

type fakeShapes struct {
	shapes map[string]project.RecordShape
}

func (f fakeShapes) Shape(typeName string) (project.RecordShape, bool) {
	s, ok := f.shapes[typeName]
	return s, ok
}

func newTestShapes() fakeShapes {
	return fakeShapes{shapes: map[string]project.RecordShape{
		"CcToolchain": ccToolchainShape,
		"toolchain":   toolchainShape,
		"mode":        modeShape,
		"cpp_binary":  cppBinaryShape,
	}}
}

const testANUBIS = `
mode(name = "release", vars = { target_platform = "linux", opt_level = "2" })

toolchain(name = "default", cc = CcToolchain(compiler = "clang++", flags = ["-O2"], include_dirs = ["include"]))

cpp_binary(name = "app", srcs = ["main.cpp"])
`

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	dir, cleanup := testutil.TempDir(t)
	t.Cleanup(cleanup)
	testutil.WriteFile(t, dir, ConfigFileName, testANUBIS)
	return New(dir, newTestShapes()), dir
}

func TestGetRawParsesTopLevelObjects(t *testing.T) {
	reg, dir := newTestRegistry(t)

	raw, err := reg.GetRaw(dir)
	require.NoError(t, err)
	require.Len(t, raw, 3)

	names := make([]string, len(raw))
	for i, obj := range raw {
		nameVal, ok := obj.Field("name")
		require.True(t, ok)
		names[i] = nameVal.Str
	}
	assert.Equal(t, []string{"release", "default", "app"}, names)
}

func TestGetRawIsMemoized(t *testing.T) {
	reg, dir := newTestRegistry(t)

	raw1, err := reg.GetRaw(dir)
	require.NoError(t, err)
	raw2, err := reg.GetRaw(dir)
	require.NoError(t, err)

	require.Len(t, raw1, len(raw2))
	for i := range raw1 {
		assert.Same(t, raw1[i], raw2[i])
	}
}

func TestGetModeProjectsVarsAndInjectsHostVars(t *testing.T) {
	reg, dir := newTestRegistry(t)

	mode, err := reg.GetMode(target.Target{Dir: dir, Name: "release"})
	require.NoError(t, err)
	assert.Equal(t, "release", mode.Name)

	require.Contains(t, mode.Vars, "target_platform")
	assert.Equal(t, "linux", mode.Vars["target_platform"].Str)
	require.Contains(t, mode.Vars, "opt_level")
	assert.Equal(t, "2", mode.Vars["opt_level"].Str)

	assert.Contains(t, mode.Vars, "host_platform")
	assert.Contains(t, mode.Vars, "host_arch")
}

func TestGetModeUnknownTargetFails(t *testing.T) {
	reg, dir := newTestRegistry(t)

	_, err := reg.GetMode(target.Target{Dir: dir, Name: "nope"})
	assert.Error(t, err)
}

func TestGetToolchainProjectsNestedCcRecord(t *testing.T) {
	reg, dir := newTestRegistry(t)
	mode := &Mode{Name: "release"}

	tc, err := reg.GetToolchain(mode, target.Target{Dir: dir, Name: "default"})
	require.NoError(t, err)
	assert.Equal(t, "default", tc.Name)
	assert.Equal(t, "clang++", tc.Compiler)
	assert.Equal(t, []string{"-O2"}, tc.Flags)
	assert.Equal(t, []string{"include"}, tc.IncludeDirs)
}

func TestGetToolchainIsMemoizedPerMode(t *testing.T) {
	reg, dir := newTestRegistry(t)
	tgt := target.Target{Dir: dir, Name: "default"}

	tc1, err := reg.GetToolchain(&Mode{Name: "a"}, tgt)
	require.NoError(t, err)
	tc2, err := reg.GetToolchain(&Mode{Name: "a"}, tgt)
	require.NoError(t, err)
	assert.Same(t, tc1, tc2)

	tc3, err := reg.GetToolchain(&Mode{Name: "b"}, tgt)
	require.NoError(t, err)
	assert.NotSame(t, tc1, tc3)
	assert.Equal(t, tc1.Compiler, tc3.Compiler)
}

func TestGetRuleProjectsByObjectTypeName(t *testing.T) {
	reg, dir := newTestRegistry(t)
	mode := &Mode{Name: "release"}

	ri, err := reg.GetRule(mode, target.Target{Dir: dir, Name: "app"})
	require.NoError(t, err)
	assert.Equal(t, "cpp_binary", ri.TypeName)

	srcs, ok := ri.Record.Field("srcs")
	require.True(t, ok)
	assert.Equal(t, []string{"main.cpp"}, srcs.Strings())
}

func TestGetRuleUnknownObjectTypeFails(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()
	testutil.WriteFile(t, dir, ConfigFileName, `widget(name = "w")`)

	reg := New(dir, fakeShapes{shapes: map[string]project.RecordShape{}})
	_, err := reg.GetRule(&Mode{Name: "release"}, target.Target{Dir: dir, Name: "w"})
	assert.Error(t, err)
}

func TestGetRuleMissingTargetFails(t *testing.T) {
	reg, dir := newTestRegistry(t)
	_, err := reg.GetRule(&Mode{Name: "release"}, target.Target{Dir: dir, Name: "missing"})
	assert.Error(t, err)
}
