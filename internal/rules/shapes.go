// Package rules implements Anubis's built-in object types (C8): the
// projection shapes for mode, toolchain, CcToolchain, cpp_binary,
// cpp_static_library, and nasm_objects, plus the job factories that turn a
// projected rule record into a compile/archive/link pipeline on top of the
// C7 scheduler.
package rules

import (
	"github.com/forrestthewoods/anubis/internal/papyrus"
	"github.com/forrestthewoods/anubis/internal/project"
)

// emptyArray is the zero-value default for an optional array-of-string
// field (deps, flags, defines, …) left unset in an ANUBIS file.
func emptyArray() *papyrus.Value {
	return papyrus.NewArray(nil, papyrus.Pos{})
}

var ccToolchainShape = project.RecordShape{
	TypeName: "CcToolchain",
	Fields: []project.FieldShape{
		{Name: "compiler", Kind: project.KindString, Required: true},
		{Name: "archiver", Kind: project.KindString, Required: false, Default: papyrus.NewString("ar", papyrus.Pos{})},
		{Name: "flags", Kind: project.KindArray, Required: false, Default: emptyArray()},
		{Name: "include_dirs", Kind: project.KindArray, Required: false, Default: emptyArray()},
		{Name: "lib_dirs", Kind: project.KindArray, Required: false, Default: emptyArray()},
		{Name: "libraries", Kind: project.KindArray, Required: false, Default: emptyArray()},
		{Name: "defines", Kind: project.KindArray, Required: false, Default: emptyArray()},
	},
}

var toolchainShape = project.RecordShape{
	TypeName: "toolchain",
	Fields: []project.FieldShape{
		{Name: "name", Kind: project.KindString, Required: true},
		{Name: "cc", Kind: project.KindObject, Required: true, ObjectType: "CcToolchain"},
		{Name: "install", Kind: project.KindObject, Required: false, ObjectType: "ToolchainInstall"},
	},
}

// ToolchainInstallShape describes the optional fetch source for a
// toolchain() object, consumed by the "install-toolchains" subcommand
// (internal/toolchaindb) rather than by the build pipeline itself. A
// toolchain with no "install" field is assumed already present on the
// host (e.g. a system "cc").
var ToolchainInstallShape = project.RecordShape{
	TypeName: "ToolchainInstall",
	Fields: []project.FieldShape{
		{Name: "url", Kind: project.KindString, Required: true},
		{Name: "sha256", Kind: project.KindString, Required: true},
		{Name: "version", Kind: project.KindString, Required: true},
		{Name: "strip_components", Kind: project.KindNumber, Required: false, NumberIsInteger: true, Default: papyrus.NewNumber("0", 0, papyrus.Pos{})},
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
		{Name: "srcs", Kind: project.KindArray, Required: true, NonEmptyArray: true},
		{Name: "deps", Kind: project.KindArray, Required: false, Default: emptyArray()},
		{Name: "flags", Kind: project.KindArray, Required: false, Default: emptyArray()},
		{Name: "ldflags", Kind: project.KindArray, Required: false, Default: emptyArray()},
		{Name: "defines", Kind: project.KindArray, Required: false, Default: emptyArray()},
	},
}

var cppStaticLibraryShape = project.RecordShape{
	TypeName: "cpp_static_library",
	Fields: []project.FieldShape{
		{Name: "name", Kind: project.KindString, Required: true},
		{Name: "srcs", Kind: project.KindArray, Required: true, NonEmptyArray: true},
		{Name: "deps", Kind: project.KindArray, Required: false, Default: emptyArray()},
		{Name: "flags", Kind: project.KindArray, Required: false, Default: emptyArray()},
		{Name: "defines", Kind: project.KindArray, Required: false, Default: emptyArray()},
		{Name: "include_dirs", Kind: project.KindArray, Required: false, Default: emptyArray()},
	},
}

var nasmObjectsShape = project.RecordShape{
	TypeName: "nasm_objects",
	Fields: []project.FieldShape{
		{Name: "name", Kind: project.KindString, Required: true},
		{Name: "srcs", Kind: project.KindArray, Required: true, NonEmptyArray: true},
		{Name: "flags", Kind: project.KindArray, Required: false, Default: emptyArray()},
	},
}
