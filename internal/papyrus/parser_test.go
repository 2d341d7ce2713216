package papyrus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrivialBinary(t *testing.T) {
	src := `cpp_binary(name = "hi", srcs = ["main.cpp"], deps = [])`
	objs, err := Parse("ANUBIS", src)
	require.NoError(t, err)
	require.Len(t, objs, 1)

	obj := objs[0]
	assert.Equal(t, ValueObject, obj.Kind)
	assert.Equal(t, "cpp_binary", obj.TypeName)

	name, ok := obj.Field("name")
	require.True(t, ok)
	assert.Equal(t, "hi", name.Str)

	srcs, ok := obj.Field("srcs")
	require.True(t, ok)
	require.Len(t, srcs.Elems, 1)
	assert.Equal(t, "main.cpp", srcs.Elems[0].Str)

	deps, ok := obj.Field("deps")
	require.True(t, ok)
	assert.Empty(t, deps.Elems)
}

func TestParseMissingNameFails(t *testing.T) {
	_, err := Parse("ANUBIS", `cpp_binary(srcs = ["main.cpp"])`)
	require.Error(t, err)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestParseDuplicateNameFails(t *testing.T) {
	src := `
cpp_binary(name = "hi", srcs = ["a.cpp"])
cpp_binary(name = "hi", srcs = ["b.cpp"])
`
	_, err := Parse("ANUBIS", src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate name")
}

func TestParseConcatExpression(t *testing.T) {
	src := `cpp_binary(name = "hi", flags = ["-O2"] + ["-DWIN"])`
	objs, err := Parse("ANUBIS", src)
	require.NoError(t, err)
	flags, ok := objs[0].Field("flags")
	require.True(t, ok)
	assert.Equal(t, ValueConcat, flags.Kind)
	assert.Equal(t, ValueArray, flags.Left.Kind)
	assert.Equal(t, ValueArray, flags.Right.Kind)
}

func TestParseSelectExpression(t *testing.T) {
	src := `cpp_binary(name = "hi", flags = ["-O2"] + select((target_platform) => {
		(windows) = ["-DWIN"],
		(linux) = ["-DLIN"],
		default = [],
	}))`
	objs, err := Parse("ANUBIS", src)
	require.NoError(t, err)
	flags, ok := objs[0].Field("flags")
	require.True(t, ok)
	require.Equal(t, ValueConcat, flags.Kind)

	sel := flags.Right
	require.Equal(t, ValueCall, sel.Kind)
	assert.Equal(t, "select", sel.FuncName)
	require.Len(t, sel.Args, 2)

	tuple := sel.Args[0]
	require.Equal(t, ValueTuple, tuple.Kind)
	require.Len(t, tuple.Elems, 1)
	assert.Equal(t, "target_platform", tuple.Elems[0].Str)

	cases := sel.Args[1]
	require.Equal(t, ValueMap, cases.Kind)
	require.Len(t, cases.Pairs, 3)
	assert.Equal(t, []string{"windows"}, cases.Pairs[0].Key.Idents)
	assert.True(t, cases.Pairs[2].Key.IsDefault)
}

func TestParseSelectorDisjunctionKey(t *testing.T) {
	src := `cpp_binary(name = "hi", flags = select((target_platform) => {
		(windows | linux) = ["-DUNIX_LIKE"],
		default = [],
	}))`
	objs, err := Parse("ANUBIS", src)
	require.NoError(t, err)
	flags, _ := objs[0].Field("flags")
	cases := flags.Args[1]
	assert.Equal(t, "windows|linux", cases.Pairs[0].Key.Idents[0])
}

func TestParseWildcardSelectorKey(t *testing.T) {
	src := `cpp_binary(name = "hi", flags = select((target_arch) => {
		(_) = ["-Wall"],
	}))`
	objs, err := Parse("ANUBIS", src)
	require.NoError(t, err)
	flags, _ := objs[0].Field("flags")
	cases := flags.Args[1]
	assert.Equal(t, "_", cases.Pairs[0].Key.Idents[0])
}

func TestParseTrailingCommas(t *testing.T) {
	src := `cpp_binary(
		name = "hi",
		srcs = ["a.cpp", "b.cpp",],
	)`
	objs, err := Parse("ANUBIS", src)
	require.NoError(t, err)
	srcs, _ := objs[0].Field("srcs")
	assert.Len(t, srcs.Elems, 2)
}

func TestParseUnexpectedTokenFails(t *testing.T) {
	_, err := Parse("ANUBIS", `cpp_binary(name = )`)
	require.Error(t, err)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestParseMultipleStatements(t *testing.T) {
	src := `
cpp_static_library(name = "core", srcs = glob(includes = ["src/*.cpp"]))
cpp_binary(name = "hi", srcs = ["main.cpp"], deps = [":core"])
`
	objs, err := Parse("ANUBIS", src)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "cpp_static_library", objs[0].TypeName)
	assert.Equal(t, "cpp_binary", objs[1].TypeName)

	srcsCall, ok := objs[0].Field("srcs")
	require.True(t, ok)
	assert.Equal(t, ValueCall, srcsCall.Kind)
	assert.Equal(t, "glob", srcsCall.FuncName)
}
