package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forrestthewoods/anubis/internal/papyrus"
	"github.com/forrestthewoods/anubis/internal/testutil"
)

func TestGlobExclusion(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	testutil.WriteFile(t, dir, "a.cpp", "")
	testutil.WriteFile(t, dir, "sub/b.cpp", "")
	testutil.WriteFile(t, dir, "sub/b_test.cpp", "")

	env := &Environment{ConfigDir: dir, ProjectRoot: dir}
	v := parseField(t, `x(name = "n", srcs = glob(includes = ["**/*.cpp"], excludes = ["**/*_test.cpp"]))`, "srcs")

	got, err := Value(env, v)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.cpp", "sub/b.cpp"}, strs(got))
}

func TestGlobEmptyIsNotAnError(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	env := &Environment{ConfigDir: dir, ProjectRoot: dir}
	v := parseField(t, `x(name = "n", srcs = glob(includes = ["**/*.cpp"]))`, "srcs")

	got, err := Value(env, v)
	require.NoError(t, err)
	assert.Empty(t, got.Elems)
}

func TestGlobDeterministicSortedOrder(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	testutil.WriteFile(t, dir, "z.cpp", "")
	testutil.WriteFile(t, dir, "a.cpp", "")
	testutil.WriteFile(t, dir, "m.cpp", "")

	env := &Environment{ConfigDir: dir, ProjectRoot: dir}
	v := parseField(t, `x(name = "n", srcs = glob(includes = ["*.cpp"]))`, "srcs")

	got1, err := Value(env, v)
	require.NoError(t, err)
	got2, err := Value(env, v)
	require.NoError(t, err)

	want := []string{"a.cpp", "m.cpp", "z.cpp"}
	assert.Equal(t, want, strs(got1))
	assert.Equal(t, want, strs(got2))
}

func TestGlobSingleStarDoesNotCrossDirectories(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	testutil.WriteFile(t, dir, "a.cpp", "")
	testutil.WriteFile(t, dir, "sub/b.cpp", "")

	env := &Environment{ConfigDir: dir, ProjectRoot: dir}
	v := parseField(t, `x(name = "n", srcs = glob(includes = ["*.cpp"]))`, "srcs")

	got, err := Value(env, v)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.cpp"}, strs(got))
}

func TestGlobPathsAreProjectRootRelative(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	testutil.WriteFile(t, dir, "libs/widgets/main.cpp", "")

	env := &Environment{ConfigDir: dir + "/libs/widgets", ProjectRoot: dir}
	v := parseField(t, `x(name = "n", srcs = glob(includes = ["*.cpp"]))`, "srcs")

	got, err := Value(env, v)
	require.NoError(t, err)
	assert.Equal(t, []string{"libs/widgets/main.cpp"}, strs(got))
}

func TestResolveNestedCallBecomesObject(t *testing.T) {
	v := parseField(t, `toolchain(name = "n", cc = CcToolchain(compiler = "clang++", flags = ["-O2"]))`, "cc")
	env := &Environment{Vars: map[string]*papyrus.Value{}}
	got, err := Value(env, v)
	require.NoError(t, err)
	require.Equal(t, papyrus.ValueObject, got.Kind)
	assert.Equal(t, "CcToolchain", got.TypeName)

	compiler, ok := got.Field("compiler")
	require.True(t, ok)
	assert.Equal(t, "clang++", compiler.Str)
}

func TestResolveIdentifierIsAtomic(t *testing.T) {
	v := parseField(t, `x(name = "n", k = some_identifier)`, "k")
	env := &Environment{Vars: map[string]*papyrus.Value{}}
	got, err := Value(env, v)
	require.NoError(t, err)
	assert.Equal(t, papyrus.ValueIdentifier, got.Kind)
	assert.Equal(t, "some_identifier", got.Str)
}
